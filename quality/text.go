package quality

import "strings"

// Stop words to filter out when matching query terms
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "how": true, "what": true, "does": true,
}

// Tokenize splits text into words, lowercases, trims punctuation, and removes stop words
func Tokenize(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}`*#<>"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// KeywordScore returns the fraction of query terms present in document,
// in [0,1]. A query made only of stop words scores 0.
func KeywordScore(document, query string) float64 {
	queryWords := Tokenize(query)
	if len(queryWords) == 0 {
		return 0
	}

	docWords := Tokenize(document)
	docWordSet := make(map[string]bool, len(docWords))
	for _, word := range docWords {
		docWordSet[word] = true
	}

	matched := 0
	seen := make(map[string]bool, len(queryWords))
	for _, qWord := range queryWords {
		if seen[qWord] {
			continue
		}
		seen[qWord] = true
		if docWordSet[qWord] {
			matched++
		}
	}
	return float64(matched) / float64(len(seen))
}

// ContainsAll checks if all query words (after filtering) appear in the document
func ContainsAll(document, query string) bool {
	return len(Tokenize(query)) > 0 && KeywordScore(document, query) == 1
}
