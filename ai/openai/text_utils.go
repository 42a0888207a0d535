package openai

import "strings"

// scrubString removes quoting and bracket punctuation that would confuse
// the JSON reply, and trims whitespace.
func scrubString(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune("\"'`{}[]", r) {
			return -1
		}
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// isLetter returns true if the rune is an ASCII letter.
func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
