package parse

import "testing"

func TestReassignmentHistoryFull(t *testing.T) {
	text := "02/10/2024. Re-assigned to Don Rake on the 21/03/2025. Re-assigned to Dennis Yuambri on the 21/03/2025"
	res := ReassignmentHistory(text)
	if len(res.Events) != 3 {
		t.Fatalf("expected 3 events, got %d (%+v)", len(res.Events), res.Events)
	}
	first := res.Events[0]
	if first.Date != "2024-10-02" || first.Officer != nil || first.Kind != KindInitial {
		t.Fatalf("unexpected initial event %+v", first)
	}
	second := res.Events[1]
	if second.Date != "2025-03-21" || second.Officer == nil || *second.Officer != "Don Rake" || second.Kind != KindReassignment {
		t.Fatalf("unexpected second event %+v", second)
	}
	third := res.Events[2]
	if third.Date != "2025-03-21" || third.Officer == nil || *third.Officer != "Dennis Yuambri" {
		t.Fatalf("unexpected third event %+v", third)
	}
}

func TestReassignmentHistoryEmpty(t *testing.T) {
	if res := ReassignmentHistory(""); len(res.Events) != 0 {
		t.Fatalf("expected no events for empty text, got %+v", res.Events)
	}
	res := ReassignmentHistory("no relevant text here")
	if len(res.Events) != 0 {
		t.Fatalf("expected no events, got %+v", res.Events)
	}
	if len(res.Remainder) != 1 || res.Remainder[0] != "no relevant text here" {
		t.Fatalf("expected text in remainder, got %+v", res.Remainder)
	}
}

func TestReassignmentHistoryMarkerCaseInsensitive(t *testing.T) {
	res := ReassignmentHistory("05/01/2023. RE-ASSIGNED TO Mary Kaupa on the 10/02/2023")
	if len(res.Events) != 2 {
		t.Fatalf("expected 2 events, got %+v", res.Events)
	}
	if res.Events[1].Officer == nil || *res.Events[1].Officer != "Mary Kaupa" {
		t.Fatalf("unexpected officer %+v", res.Events[1])
	}
}

func TestReassignmentHistorySkipsSegmentsWithoutDates(t *testing.T) {
	res := ReassignmentHistory("02/10/2024. Re-assigned to someone at some point. Re-assigned to Don Rake on the 21/03/2025")
	if len(res.Events) != 2 {
		t.Fatalf("expected 2 events, got %+v", res.Events)
	}
	if res.Events[1].Officer == nil || *res.Events[1].Officer != "Don Rake" {
		t.Fatalf("unexpected officer %+v", res.Events[1])
	}
	if len(res.Remainder) != 1 {
		t.Fatalf("expected skipped segment in remainder, got %+v", res.Remainder)
	}
}

func TestReassignmentHistoryNoInitialDate(t *testing.T) {
	res := ReassignmentHistory("File opened, no date recorded. Re-assigned to Don Rake on the 21/03/2025")
	if len(res.Events) != 1 {
		t.Fatalf("expected 1 event, got %+v", res.Events)
	}
	if res.Events[0].Kind != KindReassignment {
		t.Fatalf("expected reassignment kind, got %+v", res.Events[0])
	}
}

func TestReassignmentTextOrderPreserved(t *testing.T) {
	// Later reassignment carries an earlier date; text order wins.
	res := ReassignmentHistory("01/06/2024. Re-assigned to A on the 05/05/2025. Re-assigned to B on the 01/01/2025")
	if len(res.Events) != 3 {
		t.Fatalf("expected 3 events, got %+v", res.Events)
	}
	if res.Events[1].Date != "2025-05-05" || res.Events[2].Date != "2025-01-01" {
		t.Fatalf("expected text order preserved, got %+v", res.Events)
	}
}

func TestCanonicalDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"02/10/2024", "2024-10-02", true},
		{"21/03/2025", "2025-03-21", true},
		{"2/10/2024", "", false},
		{"02/10/24", "", false},
		{"aa/bb/cccc", "", false},
		{"02-10-2024", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := CanonicalDate(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("CanonicalDate(%q) = %q,%v want %q,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestDateText(t *testing.T) {
	date, ok := DateText("filed before the court on 15/08/2022, mention pending")
	if !ok || date != "2022-08-15" {
		t.Fatalf("unexpected result %q %v", date, ok)
	}
	if _, ok := DateText("no dates at all"); ok {
		t.Fatalf("expected no date")
	}
}
