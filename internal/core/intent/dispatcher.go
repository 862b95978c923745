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

package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
)

const (
	// Acknowledgment is the only reply sent for a generation request. It never
	// describes the action, since the generated track arrives as its own message.
	Acknowledgment = "On it."

	// FallbackPrompt is used for scenes that were never analyzed or scored.
	FallbackPrompt = "Cinematic instrumental underscore with a clear melodic theme, medium tempo."
)

// PromptSource looks up the prompts a scene was last scored with. Both
// methods return model.ErrNotFound when the scene has none.
type PromptSource interface {
	LatestMusicPrompt(ctx context.Context, sceneId string) (*model.MusicPrompt, error)
	LatestTrack(ctx context.Context, sceneId string) (*model.Track, error)
}

// Decision is the outcome of dispatching one message. Action is set only for
// GenerateMusic.
type Decision struct {
	Intent Intent
	Action *model.GenerationAction
	Reply  string
}

// Dispatcher resolves a message and, for generation requests, builds the
// final prompt.
type Dispatcher struct {
	prompts  PromptSource
	modifier PromptModifier
}

func NewDispatcher(prompts PromptSource, modifier PromptModifier) *Dispatcher {
	if modifier == nil {
		modifier = NewRuleModifier()
	}
	return &Dispatcher{prompts: prompts, modifier: modifier}
}

// Dispatch classifies message against c. Store failures other than a missing
// prompt are returned; a failing modifier is not.
func (d *Dispatcher) Dispatch(ctx context.Context, message string, c Context) (*Decision, error) {
	resolved := Resolve(message, c)
	gen, ok := resolved.(GenerateMusic)
	if !ok {
		return &Decision{Intent: resolved}, nil
	}

	base, err := d.BasePrompt(ctx, gen.Scene.Id)
	if err != nil {
		return nil, err
	}

	final, err := d.modifier.Modify(ctx, base, gen.Modification)
	if err != nil {
		slog.Warn("prompt modification failed, using base prompt", "scene", gen.Scene.Id, "error", err)
		final = base
	}

	return &Decision{
		Intent: gen,
		Action: &model.GenerationAction{SceneId: gen.Scene.Id, Prompt: final},
		Reply:  Acknowledgment,
	}, nil
}

// BasePrompt prefers the latest music prompt, then the latest track prompt,
// then FallbackPrompt.
func (d *Dispatcher) BasePrompt(ctx context.Context, sceneId string) (string, error) {
	mp, err := d.prompts.LatestMusicPrompt(ctx, sceneId)
	switch {
	case err == nil && mp != nil && len(mp.Prompt) > 0:
		return mp.Prompt, nil
	case err != nil && !errors.Is(err, model.ErrNotFound):
		return "", fmt.Errorf("loading music prompt for scene %s: %w", sceneId, err)
	}

	track, err := d.prompts.LatestTrack(ctx, sceneId)
	switch {
	case err == nil && track != nil && len(track.Prompt) > 0:
		return track.Prompt, nil
	case err != nil && !errors.Is(err, model.ErrNotFound):
		return "", fmt.Errorf("loading track for scene %s: %w", sceneId, err)
	}

	return FallbackPrompt, nil
}
