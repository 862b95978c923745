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

// Package commands holds the concrete pipeline steps. Each step embeds
// cor.BaseCommand, reads its primary input from the chain context and
// publishes its output for the next step. Values that later steps need
// beyond the immediate pipe are stored under the Param keys below.
package commands

import (
	"context"
	"errors"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/cor"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/workspace"
)

const (
	ParamWorkspace     = "__workspace__"
	ParamVideo         = "__video__"
	ParamScene         = "__scene__"
	ParamScript        = "__script__"
	ParamFrameAnalyses = "__frame_analyses__"
	ParamProfile       = "__profile__"
	ParamMusicPrompt   = "__music_prompt__"
)

// ErrSourceUnavailable is returned when scene or video media can be found
// neither in the workspace nor in the object store.
var ErrSourceUnavailable = errors.New("source unavailable")

// VideoTool is the media subprocess. Times are in seconds.
type VideoTool interface {
	Cut(ctx context.Context, src string, dst string, start float64, duration float64, reencode bool) error
	ExtractFrame(ctx context.Context, src string, dst string, at float64) error
	ProbeDuration(ctx context.Context, src string) (float64, error)
}

// VisionClient describes a single image in free text.
type VisionClient interface {
	DescribeImage(ctx context.Context, image []byte, mimeType string) (string, error)
}

// VideoStore reads and registers source videos. GetVideo returns an error
// wrapping model.ErrNotFound for unknown ids.
type VideoStore interface {
	CreateVideo(ctx context.Context, video *model.Video) error
	GetVideo(ctx context.Context, id string) (*model.Video, error)
	UpdateVideoDuration(ctx context.Context, id string, seconds float64) error
}

type SceneWriter interface {
	CreateScene(ctx context.Context, scene *model.Scene) error
}

type FrameAnalysisWriter interface {
	CreateFrameAnalyses(ctx context.Context, frames []*model.FrameAnalysis) error
}

type MusicPromptWriter interface {
	CreateMusicPrompt(ctx context.Context, prompt *model.MusicPrompt) error
}

// GetWorkspace returns the workspace the chain runs in, or nil.
func GetWorkspace(context cor.Context) *workspace.Workspace {
	ws, _ := context.Get(ParamWorkspace).(*workspace.Workspace)
	return ws
}

// workspaceExecutable extends the default precondition with a workspace.
func workspaceExecutable(c *cor.BaseCommand, context cor.Context) bool {
	return c.IsExecutable(context) && GetWorkspace(context) != nil
}
