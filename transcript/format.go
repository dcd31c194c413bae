package transcript

import (
	"fmt"
	"strings"
	"time"

	"earshot/audio"
)

func speakerLabel(s audio.Source) string {
	if s == audio.SourceInterviewee {
		return "Interviewee says"
	}
	return "Interviewer says"
}

// Speaker returns the display name used in formatted context blocks.
func Speaker(s audio.Source) string {
	if s == audio.SourceInterviewee {
		return "Interviewee"
	}
	return "Interviewer"
}

// FormatContext renders entries as a prompt context block, oldest first,
// trimmed from the front so the total stays within wordBudget words.
// Entries are annotated with their age relative to now.
func FormatContext(entries []Entry, now time.Time, wordBudget int) string {
	// Walk backwards so the most recent lines always survive the budget.
	words := 0
	start := len(entries)
	for i := len(entries) - 1; i >= 0; i-- {
		n := len(strings.Fields(entries[i].Text))
		if words+n > wordBudget && start < len(entries) {
			break
		}
		words += n
		start = i
		if words >= wordBudget {
			break
		}
	}

	var b strings.Builder
	for _, e := range entries[start:] {
		age := int(now.Sub(e.Time).Seconds())
		if age < 0 {
			age = 0
		}
		fmt.Fprintf(&b, "[%ds ago] %s: %s\n", age, Speaker(e.Source), e.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
