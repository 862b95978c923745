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

// Package cloud provides components for interacting with Google Cloud services.
// This file contains the hierarchical configuration loader and the retrying
// wrapper used for every Gemini call.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/BurntSushi/toml"
	"google.golang.org/genai"
)

const (
	ConfigFileBaseName  = ".env"
	ConfigFileExtension = ".toml"
	ConfigSeparator     = "."
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // Directory holding the config files.
	EnvConfigRuntime    = "GCP_RUNTIME"       // Runtime name selecting the override file, e.g. "local" or "test".
	MaxRetries          = 3
)

// RetryBackoff is the delay before the first retry; it doubles per attempt.
var RetryBackoff = 2 * time.Second

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// ConfigFiles returns the base and runtime specific config file names
// derived from the environment. The runtime defaults to "test".
func ConfigFiles() (base string, runtime string) {
	prefix := os.Getenv(EnvConfigFilePrefix)
	if len(prefix) > 0 && !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix = prefix + string(os.PathSeparator)
	}
	env := os.Getenv(EnvConfigRuntime)
	if env == "" {
		env = "test"
	}
	base = prefix + ConfigFileBaseName + ConfigFileExtension
	runtime = prefix + ConfigFileBaseName + ConfigSeparator + env + ConfigFileExtension
	return base, runtime
}

// LoadConfig decodes the base file (e.g. configs/.env.toml) and then the
// runtime file (e.g. configs/.env.local.toml) into baseConfig, so runtime
// values override base values. Missing files are skipped.
func LoadConfig(baseConfig interface{}) error {
	base, runtime := ConfigFiles()
	for _, name := range []string{base, runtime} {
		if !fileExists(name) {
			log.Printf("configuration file %s not found, skipping", name)
			continue
		}
		if _, err := toml.DecodeFile(name, baseConfig); err != nil {
			return fmt.Errorf("failed to decode configuration file %s: %w", name, err)
		}
		log.Printf("loaded configuration file %s", name)
	}
	return nil
}

// ContentGenerator is satisfied by QuotaAwareGenerativeAIModel.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error)
}

// GenerateMultiModalResponse calls the model, retrying up to MaxRetries times
// with exponential backoff, and returns the concatenated text of the
// response with any markdown code fence removed.
//
// Inputs:
//   - inputTokenCounter, outputTokenCounter: token usage counters.
//   - retryCounter: incremented on each retry.
//   - tryCount: the current attempt, 0 for the first call.
func GenerateMultiModalResponse(
	ctx context.Context,
	inputTokenCounter metric.Int64Counter,
	outputTokenCounter metric.Int64Counter,
	retryCounter metric.Int64Counter,
	tryCount int,
	model ContentGenerator,
	content []*genai.Content) (value string, err error) {

	resp, err := model.GenerateContent(ctx, content)
	if err != nil {
		if tryCount >= MaxRetries || ctx.Err() != nil {
			return "", err
		}
		if retryCounter != nil {
			retryCounter.Add(ctx, 1)
		}
		select {
		case <-time.After(RetryBackoff << tryCount):
		case <-ctx.Done():
			return "", errors.Join(err, ctx.Err())
		}
		return GenerateMultiModalResponse(ctx, inputTokenCounter, outputTokenCounter, retryCounter, tryCount+1, model, content)
	}

	if resp.UsageMetadata != nil {
		if inputTokenCounter != nil {
			inputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		}
		if outputTokenCounter != nil {
			outputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
		}
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return stripCodeFence(sb.String()), nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], " \t") {
		// Drop the language tag of the opening fence.
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// NewTextPart wraps text as user content.
func NewTextPart(in string) []*genai.Content {
	return genai.Text(in)
}

// NewInlineImage builds a user turn holding a prompt and an inline image.
func NewInlineImage(prompt string, data []byte, mimeType string) []*genai.Content {
	return []*genai.Content{{
		Role:  string(genai.RoleUser),
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}},
		},
	}}
}
