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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// GeminiVision describes film stills with a multimodal Gemini model.
type GeminiVision struct {
	model   ContentGenerator
	prompt  string
	timeout time.Duration

	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	retries      metric.Int64Counter
}

// NewGeminiVision sends prompt alongside every image. A zero timeout means
// the caller's context alone bounds each call.
func NewGeminiVision(model ContentGenerator, prompt string, timeout time.Duration) *GeminiVision {
	meter := otel.Meter("cloud.vision")
	in, _ := meter.Int64Counter("vision.tokens.input")
	out, _ := meter.Int64Counter("vision.tokens.output")
	retry, _ := meter.Int64Counter("vision.retries")
	return &GeminiVision{
		model:        model,
		prompt:       prompt,
		timeout:      timeout,
		inputTokens:  in,
		outputTokens: out,
		retries:      retry,
	}
}

// DescribeImage returns the model's free text description of image.
func (v *GeminiVision) DescribeImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	text, err := GenerateMultiModalResponse(ctx, v.inputTokens, v.outputTokens, v.retries, 0, v.model,
		NewInlineImage(v.prompt, image, mimeType))
	if err != nil {
		return "", fmt.Errorf("vision request: %w", err)
	}
	return text, nil
}
