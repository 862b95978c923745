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
	"log"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/cor"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
)

// FrameAnalysisPersister writes the analyses of a scene and passes them on.
type FrameAnalysisPersister struct {
	cor.BaseCommand
	store FrameAnalysisWriter
}

func NewFrameAnalysisPersister(name string, store FrameAnalysisWriter) *FrameAnalysisPersister {
	return &FrameAnalysisPersister{BaseCommand: *cor.NewBaseCommand(name), store: store}
}

func (c *FrameAnalysisPersister) Execute(context cor.Context) {
	frames := context.Get(c.GetInputParam()).([]*model.FrameAnalysis)
	if len(frames) > 0 {
		if err := c.store.CreateFrameAnalyses(context.GetContext(), frames); err != nil {
			c.Fail(context, fmt.Errorf("persisting %d frame analyses of scene %s: %w", len(frames), frames[0].SceneId, err))
			return
		}
		log.Printf("persisted %d frame analyses for scene %s", len(frames), frames[0].SceneId)
	}
	c.Succeed(context, frames)
}

// MusicPromptPersister writes a synthesized prompt and passes it on.
type MusicPromptPersister struct {
	cor.BaseCommand
	store MusicPromptWriter
}

func NewMusicPromptPersister(name string, store MusicPromptWriter) *MusicPromptPersister {
	return &MusicPromptPersister{BaseCommand: *cor.NewBaseCommand(name), store: store}
}

func (c *MusicPromptPersister) Execute(context cor.Context) {
	mp := context.Get(c.GetInputParam()).(*model.MusicPrompt)
	if err := c.store.CreateMusicPrompt(context.GetContext(), mp); err != nil {
		c.Fail(context, fmt.Errorf("persisting music prompt of scene %s: %w", mp.SceneId, err))
		return
	}
	c.Succeed(context, mp)
}
