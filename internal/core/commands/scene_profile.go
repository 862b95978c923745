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
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/analysis"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/cor"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/prompt"
)

// SceneAggregator reduces frame analyses to a scene profile.
type SceneAggregator struct {
	cor.BaseCommand
}

func NewSceneAggregator(name string) *SceneAggregator {
	return &SceneAggregator{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *SceneAggregator) Execute(context cor.Context) {
	frames := context.Get(c.GetInputParam()).([]*model.FrameAnalysis)
	profile := analysis.Aggregate(frames)
	context.Add(ParamProfile, profile)
	c.Succeed(context, profile)
}

// PromptSynthesizer turns the scene profile into a music prompt, folding in
// the script when one was supplied.
type PromptSynthesizer struct {
	cor.BaseCommand
	synthesizer *prompt.Synthesizer
}

func NewPromptSynthesizer(name string, synthesizer *prompt.Synthesizer) *PromptSynthesizer {
	if synthesizer == nil {
		synthesizer = prompt.NewSynthesizer()
	}
	return &PromptSynthesizer{BaseCommand: *cor.NewBaseCommand(name), synthesizer: synthesizer}
}

func (c *PromptSynthesizer) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && context.Get(ParamScene) != nil
}

func (c *PromptSynthesizer) Execute(context cor.Context) {
	profile := context.Get(c.GetInputParam()).(*model.AggregatedSceneProfile)
	scene := context.Get(ParamScene).(*model.Scene)
	frames, _ := context.Get(ParamFrameAnalyses).([]*model.FrameAnalysis)
	script, _ := context.Get(ParamScript).(*model.ScriptContext)

	text := c.synthesizer.Synthesize(profile, prompt.VisualDescription(frames), script)
	mp := model.NewMusicPrompt(scene.Id, text, prompt.Summary(profile))
	context.Add(ParamMusicPrompt, mp)
	c.Succeed(context, mp)
}
