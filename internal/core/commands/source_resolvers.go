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

package commands

import (
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/cor"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/workspace"
)

// Workspace relative locations of resolved media. The scene cutter writes
// its artifacts to CutPath, so an analysis in the same workspace never
// downloads them again.
const (
	sourceDir = "source"
	cutsDir   = "cuts"
)

func SourcePath(videoId string) string { return sourceDir + "/" + videoId }
func CutPath(sceneId string) string    { return cutsDir + "/" + sceneId + ".mp4" }

// VideoSourceResolver places the source video of a segmentation request in
// the workspace and fills in a missing duration.
type VideoSourceResolver struct {
	cor.BaseCommand
	manager  *workspace.Manager
	resolver *MediaResolver
	tool     VideoTool
}

func NewVideoSourceResolver(name string, manager *workspace.Manager, resolver *MediaResolver, tool VideoTool) *VideoSourceResolver {
	return &VideoSourceResolver{BaseCommand: *cor.NewBaseCommand(name), manager: manager, resolver: resolver, tool: tool}
}

func (c *VideoSourceResolver) IsExecutable(context cor.Context) bool {
	return workspaceExecutable(&c.BaseCommand, context)
}

func (c *VideoSourceResolver) Execute(context cor.Context) {
	req := context.Get(c.GetInputParam()).(*model.SegmentationRequest)
	ctx := context.GetContext()

	local, err := c.manager.Path(GetWorkspace(context), SourcePath(req.Video.Id))
	if err != nil {
		c.Fail(context, err)
		return
	}
	if req.SourcePath, err = c.resolver.Resolve(ctx, local, req.Video.MediaKey); err != nil {
		c.Fail(context, err)
		return
	}

	if req.Video.DurationSeconds <= 0 {
		d, err := c.tool.ProbeDuration(ctx, req.SourcePath)
		switch {
		case err == nil:
			req.Video.DurationSeconds = d
		case req.WholeVideo || len(req.Cuts) == 0:
			c.Fail(context, fmt.Errorf("probing duration of video %s: %w", req.Video.Id, err))
			return
		default:
			slog.Warn("duration probe failed", "video", req.Video.Id, "error", err)
		}
	}
	c.Succeed(context, req)
}

// SceneSourceResolver turns an analysis request into a sampling plan. Cut
// scenes read their own media; whole video scenes read the parent video
// offset by the scene start.
type SceneSourceResolver struct {
	cor.BaseCommand
	manager *workspace.Manager
	scenes  *MediaResolver
	videos  *MediaResolver
}

func NewSceneSourceResolver(name string, manager *workspace.Manager, scenes *MediaResolver, videos *MediaResolver) *SceneSourceResolver {
	return &SceneSourceResolver{BaseCommand: *cor.NewBaseCommand(name), manager: manager, scenes: scenes, videos: videos}
}

func (c *SceneSourceResolver) IsExecutable(context cor.Context) bool {
	return workspaceExecutable(&c.BaseCommand, context)
}

func (c *SceneSourceResolver) Execute(context cor.Context) {
	req := context.Get(c.GetInputParam()).(*model.AnalysisRequest)
	ctx := context.GetContext()
	ws := GetWorkspace(context)
	scene := req.Scene

	context.Add(ParamScene, scene)
	if req.Script != nil {
		context.Add(ParamScript, req.Script)
	}

	plan := &model.SamplingPlan{SceneId: scene.Id, Duration: scene.Duration()}
	if scene.IsWholeVideo() {
		if req.Video == nil {
			c.Fail(context, fmt.Errorf("%w: scene %s has no media and no parent video", ErrSourceUnavailable, scene.Id))
			return
		}
		local, err := c.manager.Path(ws, SourcePath(req.Video.Id))
		if err != nil {
			c.Fail(context, err)
			return
		}
		if plan.SourcePath, err = c.videos.Resolve(ctx, local, req.Video.MediaKey); err != nil {
			c.Fail(context, err)
			return
		}
		plan.Offset = scene.Start
	} else {
		local, err := c.manager.Path(ws, CutPath(scene.Id))
		if err != nil {
			c.Fail(context, err)
			return
		}
		if plan.SourcePath, err = c.scenes.Resolve(ctx, local, scene.MediaKey); err != nil {
			c.Fail(context, err)
			return
		}
	}
	c.Succeed(context, plan)
}
