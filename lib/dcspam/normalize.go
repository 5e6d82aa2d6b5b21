package dcspam

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize canonicalizes raw message text for comparison. The result is lowercased, contains only
// letters, numbers, underscores and single spaces, and has no leading or trailing space.
// Empty result means the message carries no comparable text.
func Normalize(text string) string {
	lower := cases.Lower(language.Und).String(text)

	var sb strings.Builder
	sb.Grow(len(lower))
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || unicode.IsSpace(r) {
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
