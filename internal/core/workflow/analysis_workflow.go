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
	"fmt"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/cloud"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/analysis"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/commands"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/cor"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/prompt"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/services"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/workspace"
)

var _ services.SceneAnalyzer = (*AnalysisWorkflow)(nil)

// AnalysisWorkflow samples the frames of one scene, describes them with the
// vision model and turns the aggregate into a stored music prompt.
//
// The chain expects an *model.AnalysisRequest in cor.CtxIn and a workspace
// under commands.ParamWorkspace.
type AnalysisWorkflow struct {
	cor.BaseCommand
	config     *cloud.Config
	components *Components
	chain      cor.Chain
}

func (w *AnalysisWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

func (w *AnalysisWorkflow) initializeChain() {
	c, p := w.components, w.config.Pipeline
	scenes := commands.NewMediaResolver(c.Media, w.config.Storage.SignedURLTTL(), p.DownloadTimeout())
	videos := commands.NewMediaResolver(c.Uploads, w.config.Storage.SignedURLTTL(), p.DownloadTimeout())

	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewSceneSourceResolver("resolve-scene-source", c.Workspaces, scenes, videos))
	out.AddCommand(commands.NewFrameSampler("sample-frames", c.Workspaces, c.Tool, p.FrameIntervalSeconds))
	out.AddCommand(commands.NewFrameAnalyzer("analyze-frames", c.Vision, analysis.NewKeywordParser(), p.AnalysisWorkers))
	out.AddCommand(commands.NewFrameAnalysisPersister("persist-frame-analyses", c.Repository))
	out.AddCommand(commands.NewSceneAggregator("aggregate-scene"))
	out.AddCommand(commands.NewPromptSynthesizer("synthesize-prompt", prompt.NewSynthesizer()))
	out.AddCommand(commands.NewMusicPromptPersister("persist-music-prompt", c.Repository))
	w.chain = out
}

func NewAnalysisWorkflow(config *cloud.Config, components *Components) *AnalysisWorkflow {
	w := &AnalysisWorkflow{
		BaseCommand: *cor.NewBaseCommand("scene-analysis-pipeline"),
		config:      config,
		components:  components,
	}
	w.initializeChain()
	return w
}

// Analyze runs the pipeline in a fresh workspace of owner.
func (w *AnalysisWorkflow) Analyze(ctx context.Context, owner string, req *model.AnalysisRequest) (*model.AnalysisResult, error) {
	ws, err := w.components.Workspaces.Acquire(owner)
	if err != nil {
		return nil, err
	}
	defer w.components.Workspaces.Release(ws)
	return w.AnalyzeIn(ctx, ws, req)
}

// AnalyzeIn runs the pipeline in an existing workspace, so media already
// placed there is not downloaded again.
func (w *AnalysisWorkflow) AnalyzeIn(ctx context.Context, ws *workspace.Workspace, req *model.AnalysisRequest) (*model.AnalysisResult, error) {
	if req == nil || req.Scene == nil {
		return nil, fmt.Errorf("%w: analysis without a scene", model.ErrMalformedInput)
	}
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	defer chainCtx.Close()
	chainCtx.Add(cor.CtxIn, req)
	chainCtx.Add(commands.ParamWorkspace, ws)

	w.Execute(chainCtx)
	if err := chainError(chainCtx); err != nil {
		return nil, fmt.Errorf("analyzing scene %s: %w", req.Scene.Id, err)
	}

	result := &model.AnalysisResult{Scene: req.Scene}
	result.Frames, _ = chainCtx.Get(commands.ParamFrameAnalyses).([]*model.FrameAnalysis)
	result.Profile, _ = chainCtx.Get(commands.ParamProfile).(*model.AggregatedSceneProfile)
	result.Prompt, _ = chainCtx.Get(commands.ParamMusicPrompt).(*model.MusicPrompt)
	return result, nil
}
