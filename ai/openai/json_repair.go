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

// repairJSON attempts to fix common JSON formatting issues from LLM responses.
// It handles missing opening quotes before keys and trailing commas.
func repairJSON(s string) string {
	return stripTrailingCommas(quoteKeys(s))
}

// quoteKeys restores a missing opening quote before object keys.
// Example: `, type":` -> `, "type":`
func quoteKeys(s string) string {
	result := []rune(s)
	fixed := make([]rune, 0, len(result)+100)

	i := 0
	for i < len(result) {
		ch := result[i]

		if ch != '{' && ch != ',' {
			fixed = append(fixed, ch)
			i++
			continue
		}

		fixed = append(fixed, ch)
		i++
		for i < len(result) && isSpace(result[i]) {
			fixed = append(fixed, result[i])
			i++
		}

		if i >= len(result) || result[i] == '"' || !isLetter(result[i]) {
			continue
		}

		keyStart := i
		for i < len(result) && (isLetter(result[i]) || result[i] == '_') {
			i++
		}
		if i+1 < len(result) && result[i] == '"' && result[i+1] == ':' {
			fixed = append(fixed, '"')
		}
		fixed = append(fixed, result[keyStart:i]...)
	}

	return string(fixed)
}

// stripTrailingCommas removes commas directly before a closing bracket,
// leaving string contents untouched.
func stripTrailingCommas(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in))
	inString := false
	escaped := false

	for i := 0; i < len(in); i++ {
		ch := in[i]
		if inString {
			out = append(out, ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			out = append(out, ch)
			continue
		}
		if ch == ',' {
			j := i + 1
			for j < len(in) && isSpace(in[j]) {
				j++
			}
			if j < len(in) && (in[j] == '}' || in[j] == ']') {
				continue
			}
		}
		out = append(out, ch)
	}
	return string(out)
}
