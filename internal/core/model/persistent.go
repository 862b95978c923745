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
// This file holds the persistent records: the rows written to the backing
// store (BigQuery or SQLite). Each struct carries both `bigquery` and `db`
// tags so the same value can be streamed into a BigQuery table or bound to a
// sqlx named statement.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrInvalidCut is returned for a scene boundary that does not satisfy end > start >= 0.
var ErrInvalidCut = errors.New("invalid cut")

// ErrNotFound is returned by stores when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrMalformedInput marks input that can never be processed, such as a
// notification without owner metadata. Retrying it is pointless.
var ErrMalformedInput = errors.New("malformed input")

// Video is the uploaded source media that scenes are cut from.
type Video struct {
	Id              string    `json:"id" bigquery:"id" db:"id"`
	ProjectId       string    `json:"project_id" bigquery:"project_id" db:"project_id"`
	OwnerId         string    `json:"owner_id" bigquery:"owner_id" db:"owner_id"`
	MediaKey        string    `json:"media_key" bigquery:"media_key" db:"media_key"`
	MIMEType        string    `json:"mime_type" bigquery:"mime_type" db:"mime_type"`
	DurationSeconds float64   `json:"duration_seconds" bigquery:"duration_seconds" db:"duration_seconds"`
	CreateTime      time.Time `json:"create_time" bigquery:"create_time" db:"create_time"`
}

// NewVideo creates a video record whose id is derived from its object key, so
// repeated notifications for the same upload map onto the same record.
func NewVideo(ownerId string, projectId string, mediaKey string) *Video {
	return &Video{
		Id:         uuid.NewSHA1(uuid.NameSpaceURL, []byte(mediaKey)).String(),
		ProjectId:  projectId,
		OwnerId:    ownerId,
		MediaKey:   mediaKey,
		CreateTime: time.Now(),
	}
}

// Scene is a time-bounded segment of a video. An empty MediaKey means the
// scene was never cut ("whole video" mode or a failed cut) and its frames are
// read from the parent video at Start + offset.
type Scene struct {
	Id         string    `json:"id" bigquery:"id" db:"id"`
	VideoId    string    `json:"video_id" bigquery:"video_id" db:"video_id"`
	ProjectId  string    `json:"project_id" bigquery:"project_id" db:"project_id"`
	OwnerId    string    `json:"owner_id" bigquery:"owner_id" db:"owner_id"`
	Sequence   int       `json:"sequence" bigquery:"sequence" db:"sequence"`
	Start      float64   `json:"start" bigquery:"start_seconds" db:"start_seconds"`
	End        float64   `json:"end" bigquery:"end_seconds" db:"end_seconds"`
	MediaKey   string    `json:"media_key,omitempty" bigquery:"media_key" db:"media_key"`
	BatchId    string    `json:"batch_id,omitempty" bigquery:"batch_id" db:"batch_id"`
	CreateTime time.Time `json:"create_time" bigquery:"create_time" db:"create_time"`
}

// NewScene builds a scene for the given video. The boundary is validated so
// that no record with end <= start is ever produced.
func NewScene(video *Video, sequence int, start float64, end float64, batchId string) (*Scene, error) {
	if err := ValidateCut(start, end); err != nil {
		return nil, err
	}
	return &Scene{
		Id:         uuid.New().String(),
		VideoId:    video.Id,
		ProjectId:  video.ProjectId,
		OwnerId:    video.OwnerId,
		Sequence:   sequence,
		Start:      start,
		End:        end,
		BatchId:    batchId,
		CreateTime: time.Now(),
	}, nil
}

// Duration returns the scene length in seconds.
func (s *Scene) Duration() float64 {
	return s.End - s.Start
}

// IsWholeVideo reports whether the scene has no durable media of its own.
func (s *Scene) IsWholeVideo() bool {
	return len(s.MediaKey) == 0
}

// ValidateCut checks a (start, end) pair.
func ValidateCut(start float64, end float64) error {
	if start < 0 || end <= start {
		return fmt.Errorf("%w: start=%.3f end=%.3f", ErrInvalidCut, start, end)
	}
	return nil
}

// FrameAnalysis is the parsed vision response for one sampled frame. It is
// created once and never updated.
type FrameAnalysis struct {
	Id             string    `json:"id" bigquery:"id" db:"id"`
	SceneId        string    `json:"scene_id" bigquery:"scene_id" db:"scene_id"`
	Timestamp      float64   `json:"timestamp" bigquery:"timestamp_seconds" db:"timestamp_seconds"`
	Lighting       string    `json:"lighting" bigquery:"lighting" db:"lighting"`
	CameraAngle    string    `json:"camera_angle" bigquery:"camera_angle" db:"camera_angle"`
	ShotType       string    `json:"shot_type" bigquery:"shot_type" db:"shot_type"`
	Mood           string    `json:"mood" bigquery:"mood" db:"mood"`
	DominantColor  string    `json:"dominant_color" bigquery:"dominant_color" db:"dominant_color"`
	EmotionSnippet string    `json:"emotion_snippet" bigquery:"emotion_snippet" db:"emotion_snippet"`
	RawText        string    `json:"raw_text" bigquery:"raw_text" db:"raw_text"`
	CreateTime     time.Time `json:"create_time" bigquery:"create_time" db:"create_time"`
}

// NewFrameAnalysis combines parsed attributes with the verbatim vision text.
func NewFrameAnalysis(sceneId string, timestamp float64, attrs FrameAttributes, rawText string) *FrameAnalysis {
	return &FrameAnalysis{
		Id:             uuid.New().String(),
		SceneId:        sceneId,
		Timestamp:      timestamp,
		Lighting:       attrs.Lighting,
		CameraAngle:    attrs.CameraAngle,
		ShotType:       attrs.ShotType,
		Mood:           attrs.Mood,
		DominantColor:  attrs.DominantColor,
		EmotionSnippet: attrs.EmotionSnippet,
		RawText:        rawText,
		CreateTime:     time.Now(),
	}
}

// MusicPrompt is a synthesized prompt for the generative-audio service. Only
// the most recently created prompt for a scene is authoritative.
type MusicPrompt struct {
	Id         string    `json:"id" bigquery:"id" db:"id"`
	SceneId    string    `json:"scene_id" bigquery:"scene_id" db:"scene_id"`
	Prompt     string    `json:"prompt" bigquery:"prompt" db:"prompt"`
	Summary    string    `json:"summary" bigquery:"summary" db:"summary"`
	CreateTime time.Time `json:"create_time" bigquery:"create_time" db:"create_time"`
}

func NewMusicPrompt(sceneId string, prompt string, summary string) *MusicPrompt {
	return &MusicPrompt{
		Id:         uuid.New().String(),
		SceneId:    sceneId,
		Prompt:     prompt,
		Summary:    summary,
		CreateTime: time.Now(),
	}
}

// Track is a generated audio clip for a scene.
type Track struct {
	Id              string    `json:"id" bigquery:"id" db:"id"`
	SceneId         string    `json:"scene_id" bigquery:"scene_id" db:"scene_id"`
	Kind            string    `json:"kind" bigquery:"kind" db:"kind"`
	Prompt          string    `json:"prompt" bigquery:"prompt" db:"prompt"`
	MediaKey        string    `json:"media_key" bigquery:"media_key" db:"media_key"`
	DurationSeconds float64   `json:"duration_seconds" bigquery:"duration_seconds" db:"duration_seconds"`
	CreateTime      time.Time `json:"create_time" bigquery:"create_time" db:"create_time"`
}

// Track kinds.
const (
	TrackKindMusic       = "music"
	TrackKindSoundEffect = "sound_effect"
)

func NewTrack(sceneId string, kind string, prompt string, durationSeconds float64) *Track {
	return &Track{
		Id:              uuid.New().String(),
		SceneId:         sceneId,
		Kind:            kind,
		Prompt:          prompt,
		DurationSeconds: durationSeconds,
		CreateTime:      time.Now(),
	}
}

// ChatTurn is one append-only message of the director conversation.
type ChatTurn struct {
	Id         string    `json:"id" bigquery:"id" db:"id"`
	ProjectId  string    `json:"project_id" bigquery:"project_id" db:"project_id"`
	OwnerId    string    `json:"owner_id" bigquery:"owner_id" db:"owner_id"`
	Role       string    `json:"role" bigquery:"role" db:"role"`
	Content    string    `json:"content" bigquery:"content" db:"content"`
	SceneId    string    `json:"scene_id,omitempty" bigquery:"scene_id" db:"scene_id"`
	CreateTime time.Time `json:"create_time" bigquery:"create_time" db:"create_time"`
}

func NewChatTurn(ownerId string, projectId string, role string, content string, sceneId string) *ChatTurn {
	return &ChatTurn{
		Id:         uuid.New().String(),
		ProjectId:  projectId,
		OwnerId:    ownerId,
		Role:       role,
		Content:    content,
		SceneId:    sceneId,
		CreateTime: time.Now(),
	}
}
