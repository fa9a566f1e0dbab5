package advice

import (
	"strings"
	"testing"

	"caseline/internal/domain"
)

func entry(role, adviceText string) domain.WorkflowEntry {
	return domain.WorkflowEntry{OfficerRole: role, Advice: adviceText}
}

func TestCompileAllRoles(t *testing.T) {
	entries := []domain.WorkflowEntry{
		entry("secretary_lands", "Verify title boundaries."),
		entry("director_legal", "Engage state solicitor."),
		entry("manager_legal", "Assign senior officer."),
	}
	got := Compile(entries)
	for _, want := range []string{
		"**Secretary (Lands):**\nVerify title boundaries.",
		"**Director (Legal Services):**\nEngage state solicitor.",
		"**Manager (Legal Services):**\nAssign senior officer.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("compiled block missing %q:\n%s", want, got)
		}
	}
	if strings.Count(got, "---") != 2 {
		t.Fatalf("expected 2 delimiters, got:\n%s", got)
	}
}

func TestCompileSentinelWhenEmpty(t *testing.T) {
	if got := Compile(nil); got != NoCommentary {
		t.Fatalf("expected sentinel, got %q", got)
	}
	entries := []domain.WorkflowEntry{
		entry("secretary_lands", ""),
		entry("director_legal", "   "),
	}
	if got := Compile(entries); got != NoCommentary {
		t.Fatalf("expected sentinel for blank advice, got %q", got)
	}
}

func TestCompileLastAdvicePerRoleWins(t *testing.T) {
	entries := []domain.WorkflowEntry{
		entry("director_legal", "First round of directions."),
		entry("director_legal", "Revised directions after loop-back."),
	}
	got := Compile(entries)
	if strings.Contains(got, "First round") {
		t.Fatalf("expected only latest advice, got:\n%s", got)
	}
	if !strings.Contains(got, "Revised directions after loop-back.") {
		t.Fatalf("missing latest advice:\n%s", got)
	}
}

func TestCompileDeterministic(t *testing.T) {
	entries := []domain.WorkflowEntry{
		entry("manager_legal", "Manager note."),
		entry("secretary_lands", "Secretary note."),
	}
	first := Compile(entries)
	for i := 0; i < 5; i++ {
		if got := Compile(entries); got != first {
			t.Fatalf("compile not deterministic: %q vs %q", first, got)
		}
	}
	// Roles compile in chain order regardless of input order.
	if strings.Index(first, "Secretary") > strings.Index(first, "Manager") {
		t.Fatalf("expected secretary before manager:\n%s", first)
	}
}

func TestCompileFallsBackToRecommendationsAndCommentary(t *testing.T) {
	entries := []domain.WorkflowEntry{
		{OfficerRole: "secretary_lands", Recommendations: "Use recommendations."},
		{OfficerRole: "director_legal", Commentary: "Use commentary."},
	}
	got := Compile(entries)
	if !strings.Contains(got, "Use recommendations.") || !strings.Contains(got, "Use commentary.") {
		t.Fatalf("expected fallback text, got:\n%s", got)
	}
}

func TestContributions(t *testing.T) {
	entries := []domain.WorkflowEntry{
		entry("secretary_lands", "Advice."),
		entry("manager_legal", ""),
	}
	p := Contributions(entries)
	if !p.Secretary || p.Director || p.Manager {
		t.Fatalf("unexpected presence flags %+v", p)
	}
}
