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

// Package model defines the data structures shared by the scoring pipeline.
// This file holds transient values: requests flowing through the workflows
// and derived values that are computed on demand and never stored as rows.
package model

// Unknown is the value of every aggregated attribute when nothing was analyzed.
const Unknown = "unknown"

// Keyword values recognized by the frame parser, in match priority order.
const (
	LightingBright     = "bright"
	LightingDim        = "dim"
	LightingDark       = "dark"
	LightingGoldenHour = "golden-hour"
	LightingNatural    = "natural"

	CameraLow      = "low"
	CameraHigh     = "high"
	CameraEyeLevel = "eye-level"

	ShotCloseUp = "close-up"
	ShotWide    = "wide"
	ShotMedium  = "medium"

	MoodTense    = "tense"
	MoodPeaceful = "peaceful"
	MoodDramatic = "dramatic"
	MoodNeutral  = "neutral"

	ColorRed     = "red"
	ColorBlue    = "blue"
	ColorGreen   = "green"
	ColorNeutral = "neutral"
)

// FrameAttributes is the fixed schema imposed on a free-text vision response.
type FrameAttributes struct {
	Lighting       string `json:"lighting"`
	CameraAngle    string `json:"camera_angle"`
	ShotType       string `json:"shot_type"`
	Mood           string `json:"mood"`
	DominantColor  string `json:"dominant_color"`
	EmotionSnippet string `json:"emotion_snippet"`
}

// AggregatedSceneProfile is the per-attribute mode across a scene's frames.
type AggregatedSceneProfile struct {
	Lighting      string `json:"lighting"`
	Mood          string `json:"mood"`
	ShotType      string `json:"shot_type"`
	DominantColor string `json:"dominant_color"`
	FrameCount    int    `json:"frame_count"`
}

// SampledFrame is a still image extracted into the scratch workspace.
type SampledFrame struct {
	Timestamp float64 // Seconds relative to the scene start.
	Path      string
}

// CutRequest is one requested (start, end) boundary in seconds.
type CutRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SegmentationRequest asks the segmentation engine to cut a video.
type SegmentationRequest struct {
	Video      *Video       `json:"video"`
	Cuts       []CutRequest `json:"cuts"`
	WholeVideo bool         `json:"whole_video"`
	Reencode   bool         `json:"reencode"`
	BatchId    string       `json:"batch_id"`
	SourcePath string       `json:"-"` // Local copy of the video inside the workspace.
}

// SegmentationResult lists the created scenes in cut order. Warnings are keyed
// by scene id and only present for scenes whose cut failed.
type SegmentationResult struct {
	Scenes   []*Scene          `json:"scenes"`
	Warnings map[string]string `json:"warnings,omitempty"`
}

// ScriptScene is one scene of an optional screenplay breakdown.
type ScriptScene struct {
	Description string `json:"description"`
	Mood        string `json:"mood,omitempty"`
	Tone        string `json:"tone,omitempty"`
}

// ScriptContext is the narrative context derived from a script.
type ScriptContext struct {
	OverallMood string        `json:"overall_mood,omitempty"`
	Scenes      []ScriptScene `json:"scenes,omitempty"`
}

// AnalysisRequest asks for a full analysis of one scene.
type AnalysisRequest struct {
	Scene  *Scene         `json:"scene"`
	Video  *Video         `json:"video"`
	Script *ScriptContext `json:"script,omitempty"`
}

// SamplingPlan locates the frames of a scene inside a local media file.
// Offset and Duration are in seconds; Offset is non-zero only when the
// scene is read from its parent video.
type SamplingPlan struct {
	SceneId    string
	SourcePath string
	Offset     float64
	Duration   float64
}

// AnalysisResult is the outcome of a scene analysis.
type AnalysisResult struct {
	Scene   *Scene                  `json:"scene"`
	Frames  []*FrameAnalysis        `json:"frames"`
	Profile *AggregatedSceneProfile `json:"profile"`
	Prompt  *MusicPrompt            `json:"prompt"`
}

// GenerationAction is the side effect requested by the intent dispatcher.
type GenerationAction struct {
	SceneId string `json:"scene_id"`
	Prompt  string `json:"prompt"`
}
