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

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/cloud"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/commands"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/cor"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/workspace"
)

// SegmentationWorkflow cuts an uploaded video into scenes.
//
// As a command it reads an upload notification from cor.CtxIn, which is how
// the Pub/Sub listener drives it. Segment serves callers that already hold a
// request. Either way the work happens in a workspace of the video owner
// that is released before returning. When an analysis workflow is attached,
// every new scene is analyzed in the same workspace.
type SegmentationWorkflow struct {
	cor.BaseCommand
	config     *cloud.Config
	components *Components
	reader     cor.Command
	chain      cor.Chain
	analysis   *AnalysisWorkflow
}

func NewSegmentationWorkflow(config *cloud.Config, components *Components, analysis *AnalysisWorkflow) *SegmentationWorkflow {
	w := &SegmentationWorkflow{
		BaseCommand: *cor.NewBaseCommand("segmentation-pipeline"),
		config:      config,
		components:  components,
		reader:      commands.NewUploadTriggerReader("upload-trigger-reader"),
		analysis:    analysis,
	}
	w.initializeChain()
	return w
}

func (w *SegmentationWorkflow) initializeChain() {
	c, p := w.components, w.config.Pipeline
	sources := commands.NewMediaResolver(c.Uploads, w.config.Storage.SignedURLTTL(), p.DownloadTimeout())

	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewVideoSourceResolver("resolve-video-source", c.Workspaces, sources, c.Tool))
	out.AddCommand(commands.NewVideoRegistrar("register-video", c.Repository))
	out.AddCommand(commands.NewSceneCutter("cut-scenes", c.Workspaces, c.Tool, c.Media, c.Repository, p.CutParallelism, p.CutPacing()))
	w.chain = out
}

// IsExecutable accepts raw notifications.
func (w *SegmentationWorkflow) IsExecutable(context cor.Context) bool {
	return w.reader.IsExecutable(context)
}

func (w *SegmentationWorkflow) Execute(context cor.Context) {
	w.reader.Execute(context)
	if context.HasErrors() {
		return
	}
	req := context.Get(cor.CtxOut).(*model.SegmentationRequest)
	context.Remove(cor.CtxOut)
	context.Add(cor.CtxIn, req)
	w.run(context, req)
}

// Segment runs the pipeline for req and returns the created scenes.
func (w *SegmentationWorkflow) Segment(ctx context.Context, req *model.SegmentationRequest) (*model.SegmentationResult, error) {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	defer chainCtx.Close()
	chainCtx.Add(cor.CtxIn, req)

	result := w.run(chainCtx, req)
	if err := chainError(chainCtx); err != nil {
		return nil, fmt.Errorf("segmenting video %s: %w", req.Video.Id, err)
	}
	return result, nil
}

func (w *SegmentationWorkflow) run(context cor.Context, req *model.SegmentationRequest) *model.SegmentationResult {
	manager := w.components.Workspaces
	ws, err := manager.Acquire(req.Video.OwnerId)
	if errors.Is(err, workspace.ErrInvalidOwner) {
		err = fmt.Errorf("%w: %w", model.ErrMalformedInput, err)
	}
	if err != nil {
		context.AddError(w.GetName(), err)
		return nil
	}
	defer manager.Release(ws)
	context.Add(commands.ParamWorkspace, ws)

	w.chain.Execute(context)
	if context.HasErrors() {
		return nil
	}
	result := context.Get(cor.CtxIn).(*model.SegmentationResult)
	slog.Info("video segmented", "video", req.Video.Id, "scenes", len(result.Scenes), "warnings", len(result.Warnings))

	if w.analysis != nil {
		w.analyzeAll(context.GetContext(), ws, req.Video, result)
	}
	return result
}

// analyzeAll analyzes the new scenes one at a time. A failed analysis is
// recorded as a warning of the segmentation result.
func (w *SegmentationWorkflow) analyzeAll(ctx context.Context, ws *workspace.Workspace, video *model.Video, result *model.SegmentationResult) {
	for _, scene := range result.Scenes {
		if ctx.Err() != nil {
			return
		}
		if _, failed := result.Warnings[scene.Id]; failed {
			continue
		}
		if _, err := w.analysis.AnalyzeIn(ctx, ws, &model.AnalysisRequest{Scene: scene, Video: video}); err != nil {
			slog.Warn("scene analysis after upload failed", "scene", scene.Id, "error", err)
			if result.Warnings == nil {
				result.Warnings = make(map[string]string)
			}
			result.Warnings[scene.Id] = err.Error()
		}
	}
}
