package quality

import (
	"strings"

	"github.com/poiesic/doccache/core"
)

// Normalize prepares text for fingerprinting. Line endings are unified,
// trailing whitespace is stripped from each line, runs of blank lines
// collapse to one and the result is trimmed. Case is preserved.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Fingerprint returns the content hash of text after normalization.
func Fingerprint(text string) string {
	return core.HashHex(Normalize(text))
}
