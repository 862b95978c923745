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

// Package cloud holds the application configuration and the adapters for
// Google Cloud services: Cloud Storage, Pub/Sub, BigQuery clients and the
// Gemini models used for vision and conversation.
//
// Configuration is read from TOML (see LoadConfig). Every section has
// defaults applied by Config.ApplyDefaults, so a minimal file only needs the
// project, buckets and model names.
package cloud

import (
	"time"

	"google.golang.org/genai"
)

// DefaultSafetySettings leaves every harm category unblocked. Frames are
// film stills, and thresholds would silently drop violent or dark scenes.
var DefaultSafetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
}

// Backend store kinds.
const (
	StoreBigQuery = "bigquery"
	StoreSQLite   = "sqlite"
)

const DefaultFramePrompt = "Describe this film still for a music supervisor. " +
	"Cover the lighting (bright, dim, dark or golden hour), the camera angle (low, high or eye-level), " +
	"the shot type (close-up, wide or medium), the mood (tense, peaceful, dramatic or neutral), " +
	"the dominant color, and the emotion the frame conveys. Answer in plain prose, not JSON."

// BigQueryDataSource names the dataset and tables of the warehouse store.
type BigQueryDataSource struct {
	DatasetName string `toml:"dataset"`
	VideoTable  string `toml:"video_table"`
	SceneTable  string `toml:"scene_table"`
	FrameTable  string `toml:"frame_table"`
	PromptTable string `toml:"prompt_table"`
	TrackTable  string `toml:"track_table"`
	ChatTable   string `toml:"chat_table"`
}

// SQLite configures the local store.
type SQLite struct {
	Path string `toml:"path"` // File path or ":memory:".
}

// Backend selects the store implementation.
type Backend struct {
	Store string `toml:"store"` // "bigquery" or "sqlite".
}

// PromptTemplates holds the fixed texts sent to the models.
type PromptTemplates struct {
	FramePrompt      string `toml:"frame"`
	ChatInstructions string `toml:"chat_instructions"`
}

// VertexAiLLMModel configures one generative model.
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`
	SystemInstructions string  `toml:"system_instructions"`
	Temperature        float32 `toml:"temperature"`
	TopP               float32 `toml:"top_p"`
	TopK               float32 `toml:"top_k"`
	MaxTokens          int32   `toml:"max_tokens"` // Token budget of each response.
	OutputFormat       string  `toml:"output_format"`
	RateLimit          int     `toml:"rate_limit"` // Requests per second.
}

// TopicSubscription is one Pub/Sub subscription the server listens on.
type TopicSubscription struct {
	Name             string `toml:"name"`
	DeadLetterTopic  string `toml:"dead_letter_topic"`
	TimeoutInSeconds int    `toml:"timeout_in_seconds"`
}

// Storage configures Cloud Storage.
type Storage struct {
	UploadBucket        string `toml:"upload_bucket"` // Raw uploads; finalize events trigger segmentation.
	MediaBucket         string `toml:"media_bucket"`  // Scene cuts and generated audio.
	SignedURLTTLSeconds int    `toml:"signed_url_ttl_seconds"`
	SignedURLCacheSize  int    `toml:"signed_url_cache_size"`
	TimeoutSeconds      int    `toml:"timeout_seconds"` // Per object read or write.
	MaxUploadMegabytes  int    `toml:"max_upload_megabytes"`
}

func (s Storage) SignedURLTTL() time.Duration { return seconds(s.SignedURLTTLSeconds) }
func (s Storage) Timeout() time.Duration      { return seconds(s.TimeoutSeconds) }
func (s Storage) MaxUploadBytes() int64       { return int64(s.MaxUploadMegabytes) << 20 }

// Pipeline tunes segmentation, sampling and analysis.
type Pipeline struct {
	FFMpegPath               string  `toml:"ffmpeg_path"`
	FrameIntervalSeconds     float64 `toml:"frame_interval_seconds"`
	FrameWidth               int     `toml:"frame_width"`
	FrameHeight              int     `toml:"frame_height"`
	CutParallelism           int     `toml:"cut_parallelism"`
	CutPacingMillis          int     `toml:"cut_pacing_millis"`
	SubprocessTimeoutSeconds int     `toml:"subprocess_timeout_seconds"`
	VisionTimeoutSeconds     int     `toml:"vision_timeout_seconds"`
	DownloadTimeoutSeconds   int     `toml:"download_timeout_seconds"`
	AnalysisWorkers          int     `toml:"analysis_workers"`
	VisionModel              string  `toml:"vision_model"` // Key into agent_models.
	ChatModel                string  `toml:"chat_model"`   // Key into agent_models.
	AnalyzeOnUpload          bool    `toml:"analyze_on_upload"`
}

func (p Pipeline) CutPacing() time.Duration {
	return time.Duration(p.CutPacingMillis) * time.Millisecond
}
func (p Pipeline) SubprocessTimeout() time.Duration { return seconds(p.SubprocessTimeoutSeconds) }
func (p Pipeline) VisionTimeout() time.Duration     { return seconds(p.VisionTimeoutSeconds) }
func (p Pipeline) DownloadTimeout() time.Duration   { return seconds(p.DownloadTimeoutSeconds) }

// Workspace configures scratch directories and the reaper.
type Workspace struct {
	Root                 string `toml:"root"`
	MaxAgeHours          int    `toml:"max_age_hours"`
	SweepIntervalMinutes int    `toml:"sweep_interval_minutes"`
}

func (w Workspace) MaxAge() time.Duration { return time.Duration(w.MaxAgeHours) * time.Hour }
func (w Workspace) SweepInterval() time.Duration {
	return time.Duration(w.SweepIntervalMinutes) * time.Minute
}

// Audio configures the generative audio service.
type Audio struct {
	Endpoint           string  `toml:"endpoint"`
	APIKey             string  `toml:"api_key"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`
	RequestsPerSecond  float64 `toml:"requests_per_second"`
	MinDurationSeconds float64 `toml:"min_duration_seconds"`
}

func (a Audio) Timeout() time.Duration { return seconds(a.TimeoutSeconds) }

// Telemetry configures logging and the OpenTelemetry exporters.
type Telemetry struct {
	LogLevel string `toml:"log_level"` // debug, info, warn or error.
	LogFile  string `toml:"log_file"`  // Optional copy of the log output.
	Export   bool   `toml:"export"`    // Send spans and metrics to Cloud Trace and Cloud Monitoring.
}

// Config is the root of the TOML configuration.
type Config struct {
	Application struct {
		Name                      string `toml:"name"`
		GoogleProjectId           string `toml:"google_project_id"`
		GoogleLocation            string `toml:"location"`
		ThreadPoolSize            int    `toml:"thread_pool_size"`
		SignerServiceAccountEmail string `toml:"signer_service_account_email"`
		HTTPPort                  int    `toml:"http_port"`
	} `toml:"application"`
	Storage            Storage                      `toml:"storage"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"`
	SQLite             SQLite                       `toml:"sqlite"`
	Backend            Backend                      `toml:"backend"`
	PromptTemplates    PromptTemplates              `toml:"prompt_templates"`
	Pipeline           Pipeline                     `toml:"pipeline"`
	Workspace          Workspace                    `toml:"workspace"`
	Audio              Audio                        `toml:"audio"`
	Telemetry          Telemetry                    `toml:"telemetry"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"` // Keyed by logical name, e.g. "UploadTopic".
	AgentModels        map[string]VertexAiLLMModel  `toml:"agent_models"`        // Keyed by logical name, e.g. "vision-flash".
}

// NewConfig returns a Config with its maps initialized so the TOML decoder
// can populate them.
func NewConfig() *Config {
	return &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		AgentModels:        make(map[string]VertexAiLLMModel),
	}
}

// ApplyDefaults fills every unset value.
func (c *Config) ApplyDefaults() {
	if c.Application.Name == "" {
		c.Application.Name = "scene-scoring"
	}
	if c.Application.ThreadPoolSize <= 0 {
		c.Application.ThreadPoolSize = 4
	}
	if c.Application.HTTPPort <= 0 {
		c.Application.HTTPPort = 8080
	}

	setInt(&c.Storage.SignedURLTTLSeconds, 900)
	setInt(&c.Storage.SignedURLCacheSize, 1024)
	setInt(&c.Storage.TimeoutSeconds, 120)
	setInt(&c.Storage.MaxUploadMegabytes, 2048)

	b := &c.BigQueryDataSource
	setString(&b.DatasetName, "scene_scoring")
	setString(&b.VideoTable, "videos")
	setString(&b.SceneTable, "scenes")
	setString(&b.FrameTable, "frame_analyses")
	setString(&b.PromptTable, "music_prompts")
	setString(&b.TrackTable, "tracks")
	setString(&b.ChatTable, "chat_turns")

	setString(&c.SQLite.Path, "scene-scoring.db")
	setString(&c.Backend.Store, StoreBigQuery)

	setString(&c.PromptTemplates.FramePrompt, DefaultFramePrompt)
	setString(&c.PromptTemplates.ChatInstructions,
		"You are a film composer collaborating with a director. Keep replies short and concrete.")

	p := &c.Pipeline
	setString(&p.FFMpegPath, "ffmpeg")
	if p.FrameIntervalSeconds <= 0 {
		p.FrameIntervalSeconds = 5
	}
	setInt(&p.FrameWidth, 640)
	setInt(&p.FrameHeight, 360)
	setInt(&p.CutParallelism, 1)
	setInt(&p.CutPacingMillis, 500)
	setInt(&p.SubprocessTimeoutSeconds, 300)
	setInt(&p.VisionTimeoutSeconds, 60)
	setInt(&p.DownloadTimeoutSeconds, 300)
	setInt(&p.AnalysisWorkers, c.Application.ThreadPoolSize)
	setString(&p.VisionModel, "vision-flash")
	setString(&p.ChatModel, "chat-flash")

	w := &c.Workspace
	setString(&w.Root, "/tmp/scene-scoring")
	setInt(&w.MaxAgeHours, 24)
	setInt(&w.SweepIntervalMinutes, 60)

	setString(&c.Telemetry.LogLevel, "info")

	a := &c.Audio
	setInt(&a.TimeoutSeconds, 180)
	if a.RequestsPerSecond <= 0 {
		a.RequestsPerSecond = 1
	}
	if a.MinDurationSeconds <= 0 {
		a.MinDurationSeconds = 10
	}
}

func setInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func setString(v *string, def string) {
	if len(*v) == 0 {
		*v = def
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
