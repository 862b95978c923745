// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cloud

import (
	"context"
	"fmt"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

// GeminiConversation answers free chat with the project's conversation
// history as context.
type GeminiConversation struct {
	model        ContentGenerator
	instructions string

	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	retries      metric.Int64Counter
}

func NewGeminiConversation(model ContentGenerator, instructions string) *GeminiConversation {
	meter := otel.Meter("cloud.conversation")
	in, _ := meter.Int64Counter("chat.tokens.input")
	out, _ := meter.Int64Counter("chat.tokens.output")
	retry, _ := meter.Int64Counter("chat.retries")
	return &GeminiConversation{
		model:        model,
		instructions: instructions,
		inputTokens:  in,
		outputTokens: out,
		retries:      retry,
	}
}

// Reply returns the model's answer to message.
func (c *GeminiConversation) Reply(ctx context.Context, history []*model.ChatTurn, message string) (string, error) {
	text, err := GenerateMultiModalResponse(ctx, c.inputTokens, c.outputTokens, c.retries, 0, c.model,
		ConversationContent(c.instructions, history, message))
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	return text, nil
}

// ConversationContent maps stored turns onto Gemini roles. The instructions,
// when set, lead the first user turn.
func ConversationContent(instructions string, history []*model.ChatTurn, message string) []*genai.Content {
	out := make([]*genai.Content, 0, len(history)+1)
	if len(instructions) > 0 {
		out = append(out, &genai.Content{
			Role:  string(genai.RoleUser),
			Parts: []*genai.Part{{Text: instructions}},
		})
	}
	for _, turn := range history {
		if turn == nil || len(turn.Content) == 0 {
			continue
		}
		role := string(genai.RoleUser)
		if turn.Role == model.RoleAssistant {
			role = string(genai.RoleModel)
		}
		out = append(out, &genai.Content{Role: role, Parts: []*genai.Part{{Text: turn.Content}}})
	}
	return append(out, &genai.Content{
		Role:  string(genai.RoleUser),
		Parts: []*genai.Part{{Text: message}},
	})
}
