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
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// maxAttempts bounds retries on malformed model output.
const maxAttempts = 3

// ErrNoChoices is returned when the model answers with no choices.
var ErrNoChoices = errors.New("model returned no choices")

// generateJSON sends a system and human prompt and decodes the JSON reply into out.
// Transport errors are returned immediately; malformed JSON is retried.
func generateJSON(ctx context.Context, client llms.Model, logger *slog.Logger, systemPrompt, humanPrompt string, out any) error {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(humanPrompt)},
		},
	}

	var lastErr error
	for attempt := range maxAttempts {
		response, err := client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return err
		}
		if len(response.Choices) < 1 {
			return ErrNoChoices
		}

		responseText := stripFences(response.Choices[0].Content)
		responseText = repairJSON(responseText)

		if err := json.Unmarshal([]byte(responseText), out); err != nil {
			lastErr = err
			logger.Warn("error parsing model response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}
		return nil
	}

	logger.Error("failed to parse model response after retries", "err", lastErr)
	return lastErr
}

// stripFences removes markdown code fences around a JSON reply.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
