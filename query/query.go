// Package query canonicalizes raw query text and derives its cache key.
package query

import (
	"strings"
	"unicode"

	"github.com/poiesic/doccache/core"
)

// keySeparator separates the text from the technology hint in the hash input,
// so "go" + "lang" and "gol" + "ang" never collide.
const keySeparator = "\x1f"

// Normalize returns the canonical form of raw with the given technology hint.
//
// Text is lowercased, runs of whitespace collapse to a single space, and
// trailing punctuation ("?", "!", ".") is dropped. The hint is trimmed and
// lowercased but never inferred from the text. Two queries with the same
// normalized text and hint always share a Hash.
func Normalize(raw, technology string) (core.NormalizedQuery, error) {
	text := canonical(raw)
	if text == "" {
		return core.NormalizedQuery{}, core.ErrEmptyQuery
	}
	tech := strings.ToLower(strings.TrimSpace(technology))

	return core.NormalizedQuery{
		Raw:        raw,
		Text:       text,
		Hash:       Key(text, tech),
		Technology: tech,
	}, nil
}

// Key hashes already-normalized text and technology.
func Key(text, technology string) string {
	return core.HashHex(text + keySeparator + technology)
}

func canonical(raw string) string {
	fields := strings.FieldsFunc(strings.ToLower(raw), unicode.IsSpace)
	text := strings.Join(fields, " ")
	return strings.TrimRightFunc(text, func(r rune) bool {
		return r == '?' || r == '!' || r == '.' || unicode.IsSpace(r)
	})
}
