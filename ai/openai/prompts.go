// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/doccache/ai"
	"github.com/poiesic/doccache/core"
)

// snippetLimit caps each result snippet shown to the model.
const snippetLimit = 400

const evaluationPrompt = `You are a documentation retrieval judge.
You receive a developer question and the documentation passages a search engine returned for it.

Decide how completely the passages answer the question.

Respond with a single JSON object only, no prose:
{
  "sufficiency": <number 0.0-1.0, how completely the passages answer the question>,
  "confidence": <number 0.0-1.0, how sure you are of that score>,
  "missing_aspects": [<short phrases naming what the passages do not cover>],
  "rationale": "<one sentence>"
}

Rules:
- An empty passage list has sufficiency 0.0.
- Passages about a different technology than the question asks about do not count.
- Outdated or deprecated material counts for less than current material.
- missing_aspects is empty when sufficiency is 1.0.`

// buildEvaluationPrompt returns the system prompt for evaluation.
func buildEvaluationPrompt() string {
	return evaluationPrompt
}

// buildStrategyPrompt returns the system prompt for strategy proposals.
func buildStrategyPrompt() string {
	kinds := make([]string, len(ai.SourceKinds))
	for i, k := range ai.SourceKinds {
		kinds[i] = string(k)
	}
	types := make([]string, len(ai.DocumentTypes))
	for i, t := range ai.DocumentTypes {
		types[i] = string(t)
	}

	return fmt.Sprintf(`You plan documentation acquisition for a developer search engine.
You receive a question, its technology and the aspects current documentation fails to cover.

Propose at most 5 sources that would cover the missing aspects.

Respond with a single JSON object only, no prose:
{
  "targets": [
    {
      "kind": "<one of: %s>",
      "location": "<for code-host: owner/repo/path/to/file.md@ref, for web: an absolute https URL>",
      "document_type": "<one of: %s>",
      "version": "<documented version, e.g. latest or 2.1.0>"
    }
  ],
  "reason": "<one sentence>"
}

Rules:
- Prefer official documentation over blogs.
- Only propose locations you are confident exist.
- Return an empty targets list when no source is known.`, strings.Join(kinds, ", "), strings.Join(types, ", "))
}

// formatResults renders a query and its hits as the human message for evaluation.
func formatResults(query core.NormalizedQuery, hits []core.SearchHit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", query.Text)
	if query.Technology != "" {
		fmt.Fprintf(&b, "Technology: %s\n", query.Technology)
	}
	if len(hits) == 0 {
		b.WriteString("\nPassages: none\n")
		return b.String()
	}
	b.WriteString("\nPassages:\n")
	for i, h := range hits {
		snippet := strings.Join(strings.Fields(h.Snippet), " ")
		if r := []rune(snippet); len(r) > snippetLimit {
			snippet = string(r[:snippetLimit]) + "..."
		}
		fmt.Fprintf(&b, "[%d] %s (%s, score %.2f)\n%s\n\n", i+1, scrubString(h.Title), h.Technology, h.Score, snippet)
	}
	return b.String()
}

// formatGaps renders a query and its verdict as the human message for strategy proposals.
func formatGaps(query core.NormalizedQuery, verdict *core.EvaluationVerdict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", query.Text)
	tech := query.Technology
	if tech == "" {
		tech = "unspecified"
	}
	fmt.Fprintf(&b, "Technology: %s\n", tech)
	if verdict != nil {
		fmt.Fprintf(&b, "Sufficiency: %.2f\n", verdict.Sufficiency)
		if len(verdict.MissingAspects) > 0 {
			b.WriteString("Missing aspects:\n")
			for _, a := range verdict.MissingAspects {
				fmt.Fprintf(&b, "- %s\n", scrubString(a))
			}
		}
	}
	return b.String()
}
