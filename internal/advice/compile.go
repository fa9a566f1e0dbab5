// Package advice compiles workflow sign-off commentary into the single
// executive block attached to officer assignments. Compile is pure and
// deterministic; the result is embedded as an immutable snapshot.
package advice

import (
	"strings"

	"caseline/internal/domain"
)

// NoCommentary is the sentinel used when no role has recorded advice.
// Downstream consumers treat it as absence, not content.
const NoCommentary = "No executive commentary provided"

const delimiter = "\n\n---\n\n"

var compiledRoles = []struct {
	role  string
	label string
}{
	{"secretary_lands", "**Secretary (Lands):**"},
	{"director_legal", "**Director (Legal Services):**"},
	{"manager_legal", "**Manager (Legal Services):**"},
}

// Presence reports which roles contributed advice, without the text.
type Presence struct {
	Secretary bool `json:"secretary"`
	Director  bool `json:"director"`
	Manager   bool `json:"manager"`
}

// Compile takes workflow entries in creation order and produces the
// consolidated commentary block: for each role, the last entry with
// non-empty advice text, prefixed with a bold role label. Roles appear
// in chain order regardless of entry order within the input.
func Compile(entries []domain.WorkflowEntry) string {
	var blocks []string
	for _, rl := range compiledRoles {
		if text := lastText(entries, rl.role); text != "" {
			blocks = append(blocks, rl.label+"\n"+text)
		}
	}
	if len(blocks) == 0 {
		return NoCommentary
	}
	return strings.Join(blocks, delimiter)
}

// Contributions reports per-role presence flags for the same entries.
func Contributions(entries []domain.WorkflowEntry) Presence {
	return Presence{
		Secretary: lastText(entries, "secretary_lands") != "",
		Director:  lastText(entries, "director_legal") != "",
		Manager:   lastText(entries, "manager_legal") != "",
	}
}

// lastText returns the advice text of the last entry for the role that
// carries any; a case returned to a stage may record advice twice and the
// most recent wins.
func lastText(entries []domain.WorkflowEntry, role string) string {
	text := ""
	for _, e := range entries {
		if e.OfficerRole != role {
			continue
		}
		if t := entryText(e); t != "" {
			text = t
		}
	}
	return text
}

func entryText(e domain.WorkflowEntry) string {
	for _, t := range []string{e.Advice, e.Recommendations, e.Commentary} {
		if strings.TrimSpace(t) != "" {
			return strings.TrimSpace(t)
		}
	}
	return ""
}
