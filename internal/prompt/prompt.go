// Package prompt merges the user's text with content extracted from
// attachments into the single prompt string sent to the model.
package prompt

import "strings"

const (
	// MaxFragmentChars caps the extracted characters embedded per file.
	MaxFragmentChars = 15000
	// FallbackPrompt leads the prompt when the user sent files without text.
	FallbackPrompt = "Please analyze the following files:"
)

// FormatFragment renders one file's extracted text. Text longer than
// MaxFragmentChars runes is cut at that boundary.
func FormatFragment(name, text string) string {
	return "\n\n--- File: " + name + " ---\n" + Truncate(text, MaxFragmentChars)
}

// Truncate returns the first max runes of s.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// Compose builds the prompt. Without fragments the user text is returned
// verbatim; otherwise fragments follow the user text (or FallbackPrompt)
// in input order.
func Compose(userText string, fragments []string) string {
	if len(fragments) == 0 {
		return userText
	}
	lead := userText
	if lead == "" {
		lead = FallbackPrompt
	}
	var b strings.Builder
	b.WriteString(lead)
	for _, f := range fragments {
		b.WriteString(f)
	}
	return b.String()
}
