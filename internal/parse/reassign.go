// Package parse reconstructs structured assignment history from the
// hand-typed free text of imported case registers. Parsing never fails:
// malformed text degrades to fewer events, with skipped text reported
// through the Remainder channel so the heuristics can be checked against
// real register data.
package parse

import (
	"regexp"
	"strings"
)

type Kind string

const (
	KindInitial      Kind = "initial"
	KindReassignment Kind = "reassignment"
)

// Event is one assignment event recovered from register text. Officer is
// nil for the officer-less initial period.
type Event struct {
	Date    string  `json:"date"`
	Officer *string `json:"officer"`
	Kind    Kind    `json:"kind"`
}

// Result carries the ordered events (text order, which is authoritative)
// and the text segments that produced no event.
type Result struct {
	Events    []Event  `json:"events"`
	Remainder []string `json:"remainder,omitempty"`
}

var (
	markerRe = regexp.MustCompile(`(?i)re-assigned\s+to`)
	dateRe   = regexp.MustCompile(`\b(\d{2})/(\d{2})/(\d{4})\b`)
	onTheRe  = regexp.MustCompile(`(?i)\s*\bon\s+the\s*$`)
)

// ReassignmentHistory splits free text on the "Re-assigned to" marker and
// extracts one event per segment. Segment 0 is the initial period: its
// first DD/MM/YYYY date, if any, becomes an officer-less initial event.
// Later segments are expected to read "<name> on the <DD/MM/YYYY>"; a
// segment without a parseable date is skipped, not an error.
func ReassignmentHistory(text string) Result {
	var res Result
	if strings.TrimSpace(text) == "" {
		return res
	}
	segments := markerRe.Split(text, -1)

	initial := segments[0]
	if loc := dateRe.FindStringIndex(initial); loc != nil {
		if date, ok := CanonicalDate(initial[loc[0]:loc[1]]); ok {
			res.Events = append(res.Events, Event{Date: date, Kind: KindInitial})
		} else {
			res.Remainder = appendRemainder(res.Remainder, initial)
		}
	} else {
		res.Remainder = appendRemainder(res.Remainder, initial)
	}

	for _, seg := range segments[1:] {
		loc := dateRe.FindStringIndex(seg)
		if loc == nil {
			res.Remainder = appendRemainder(res.Remainder, seg)
			continue
		}
		date, ok := CanonicalDate(seg[loc[0]:loc[1]])
		if !ok {
			res.Remainder = appendRemainder(res.Remainder, seg)
			continue
		}
		name := officerName(seg[:loc[0]])
		evt := Event{Date: date, Kind: KindReassignment}
		if name != "" {
			evt.Officer = &name
		}
		res.Events = append(res.Events, evt)
	}
	return res
}

// officerName trims the "<name> on the" prefix of a reassignment segment
// down to the bare name: strip the trailing "on the", surrounding space,
// and a trailing period.
func officerName(prefix string) string {
	name := onTheRe.ReplaceAllString(prefix, "")
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, ".")
	return strings.TrimSpace(name)
}

// CanonicalDate converts DD/MM/YYYY to YYYY-MM-DD. Any 3-part split with
// non-numeric or wrong-length parts is unparseable.
func CanonicalDate(s string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return "", false
	}
	day, month, year := parts[0], parts[1], parts[2]
	if len(day) != 2 || len(month) != 2 || len(year) != 4 {
		return "", false
	}
	for _, p := range parts {
		if !numeric(p) {
			return "", false
		}
	}
	return year + "-" + month + "-" + day, true
}

// DateText finds the first DD/MM/YYYY date embedded in free text and
// returns it in canonical form.
func DateText(text string) (string, bool) {
	for _, m := range dateRe.FindAllString(text, -1) {
		if date, ok := CanonicalDate(m); ok {
			return date, true
		}
	}
	return "", false
}

func numeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func appendRemainder(rem []string, seg string) []string {
	seg = strings.TrimSpace(seg)
	if seg == "" {
		return rem
	}
	return append(rem, seg)
}
