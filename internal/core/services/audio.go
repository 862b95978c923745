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

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/cloud"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// MinTrackSeconds is the shortest clip the audio service is asked for.
const MinTrackSeconds = 10.0

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 64 << 10

// AudioServiceError is a non-2xx answer of the audio service.
type AudioServiceError struct {
	Status  int
	Message string
}

func (e *AudioServiceError) Error() string {
	return fmt.Sprintf("audio service returned %d: %s", e.Status, e.Message)
}

type audioRequest struct {
	Prompt          string  `json:"prompt"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// AudioClient calls the generative audio service.
type AudioClient struct {
	endpoint    string
	apiKey      string
	client      *http.Client
	limiter     *rate.Limiter
	minDuration float64
}

func NewAudioClient(config cloud.Audio) *AudioClient {
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	minDuration := config.MinDurationSeconds
	if minDuration <= 0 {
		minDuration = MinTrackSeconds
	}
	return &AudioClient{
		endpoint: config.Endpoint,
		apiKey:   config.APIKey,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   config.Timeout(),
		},
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		minDuration: minDuration,
	}
}

// MinDuration is the floor callers apply to requested durations.
func (a *AudioClient) MinDuration() float64 {
	return a.minDuration
}

// Generate returns the audio bytes for prompt.
func (a *AudioClient) Generate(ctx context.Context, prompt string, durationSeconds float64) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for audio quota: %w", err)
	}
	body, err := json.Marshal(audioRequest{Prompt: prompt, DurationSeconds: durationSeconds})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if len(a.apiKey) > 0 {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling audio service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &AudioServiceError{Status: resp.StatusCode, Message: ErrorMessage(data, resp.StatusCode)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio after %s: %w", time.Since(start), err)
	}
	return data, nil
}

// ErrorMessage extracts a readable message from an error body. It looks at
// error.message, error, detail and message in that order.
func ErrorMessage(body []byte, status int) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error", "detail", "message"} {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String && len(v.String()) > 0 {
				return v.String()
			}
		}
	}
	if text := strings.TrimSpace(string(body)); len(text) > 0 && len(text) <= 512 {
		return text
	}
	return http.StatusText(status)
}

// TrackDuration is the clip length requested for a scene.
func TrackDuration(sceneSeconds float64, minSeconds float64) float64 {
	if sceneSeconds < minSeconds {
		return minSeconds
	}
	return sceneSeconds
}
