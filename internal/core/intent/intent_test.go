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

package intent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/intent"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectContext() intent.Context {
	return intent.Context{
		ProjectId: "p1",
		Scenes: []*model.Scene{
			{Id: "s1", Sequence: 0},
			{Id: "s2", Sequence: 1},
			{Id: "s3", Sequence: 2},
		},
	}
}

func TestResolve(t *testing.T) {
	c := projectContext()

	tests := []struct {
		message string
		want    intent.Intent
	}{
		{"generate / 2 - add strings", intent.GenerateMusic{Scene: c.Scenes[1], Ordinal: 2, Modification: "add strings"}},
		{"GENERATE/1-louder  ", intent.GenerateMusic{Scene: c.Scenes[0], Ordinal: 1, Modification: "louder"}},
		{"generate / 9 - louder", intent.FreeChat{Message: "generate / 9 - louder"}},
		{"generate / 0 - louder", intent.FreeChat{Message: "generate / 0 - louder"}},
		{"generate / 1 - sound effect please", intent.GenerateMusic{Scene: c.Scenes[0], Ordinal: 1, Modification: "sound effect please"}},
		{"add a sound effect of thunder to scene two", intent.SoundEffect{Scene: c.Scenes[1], Description: "add a sound effect of thunder to scene two"}},
		{"a sound effect of rain", intent.SoundEffect{Description: "a sound effect of rain"}},
		{"sound effect for scene 12", intent.SoundEffect{Description: "sound effect for scene 12"}},
		{"sound effect, then analyze scene 1", intent.SoundEffect{Scene: c.Scenes[0], Description: "sound effect, then analyze scene 1"}},
		{"Analyze scene three", intent.AnalyzeScene{Scene: c.Scenes[2], Ordinal: 3}},
		{"please analyze scene 7", intent.FreeChat{Message: "please analyze scene 7"}},
		{"analyze scene", intent.FreeChat{Message: "analyze scene"}},
		{"what do you think of the pacing?", intent.FreeChat{Message: "what do you think of the pacing?"}},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, intent.Resolve(tt.message, c))
		})
	}
}

func TestSceneReference(t *testing.T) {
	tests := map[string]int{
		"scene 4":             4,
		"scene #5":            5,
		"scene number six":    6,
		"the third scene":     3,
		"Scene Tenth":         10,
		"the tenth scene":     10,
		"scene ten, not nine": 10,
	}
	for text, want := range tests {
		got, ok := intent.SceneReference(text)
		assert.True(t, ok, text)
		assert.Equal(t, want, got, text)
	}

	for _, text := range []string{"scenery", "scene", "the scene after", ""} {
		_, ok := intent.SceneReference(text)
		assert.False(t, ok, text)
	}
}

type fakePrompts struct {
	music  map[string]*model.MusicPrompt
	tracks map[string]*model.Track
	err    error
}

func (f *fakePrompts) LatestMusicPrompt(_ context.Context, sceneId string) (*model.MusicPrompt, error) {
	if f.err != nil {
		return nil, f.err
	}
	if mp, ok := f.music[sceneId]; ok {
		return mp, nil
	}
	return nil, model.ErrNotFound
}

func (f *fakePrompts) LatestTrack(_ context.Context, sceneId string) (*model.Track, error) {
	if t, ok := f.tracks[sceneId]; ok {
		return t, nil
	}
	return nil, model.ErrNotFound
}

type failingModifier struct{}

func (failingModifier) Modify(context.Context, string, string) (string, error) {
	return "", errors.New("modifier unavailable")
}

func TestDispatchGenerateMusic(t *testing.T) {
	ctx := context.Background()
	prompts := &fakePrompts{
		music:  map[string]*model.MusicPrompt{"s2": {SceneId: "s2", Prompt: "Epic orchestral score."}},
		tracks: map[string]*model.Track{"s3": {SceneId: "s3", Prompt: "Soft piano."}},
	}
	d := intent.NewDispatcher(prompts, nil)

	decision, err := d.Dispatch(ctx, "generate / 2 - add strings", projectContext())
	require.NoError(t, err)
	assert.Equal(t, intent.Acknowledgment, decision.Reply)
	assert.Equal(t, &model.GenerationAction{SceneId: "s2", Prompt: "Epic orchestral score. Featuring strings."}, decision.Action)

	decision, err = d.Dispatch(ctx, "generate / 3 - louder", projectContext())
	require.NoError(t, err)
	assert.Equal(t, "Soft piano. Louder, more intense dynamics.", decision.Action.Prompt)

	decision, err = d.Dispatch(ctx, "generate / 1 - slower", projectContext())
	require.NoError(t, err)
	assert.Equal(t, intent.FallbackPrompt+" Slower tempo.", decision.Action.Prompt)
}

func TestDispatchModifierFailureKeepsBasePrompt(t *testing.T) {
	prompts := &fakePrompts{music: map[string]*model.MusicPrompt{"s1": {Prompt: "Ambient calm soundscape."}}}
	d := intent.NewDispatcher(prompts, failingModifier{})

	decision, err := d.Dispatch(context.Background(), "generate / 1 - anything", projectContext())
	require.NoError(t, err)
	assert.Equal(t, "Ambient calm soundscape.", decision.Action.Prompt)
	assert.Equal(t, intent.Acknowledgment, decision.Reply)
}

func TestDispatchNonGenerationHasNoAction(t *testing.T) {
	d := intent.NewDispatcher(&fakePrompts{}, nil)

	decision, err := d.Dispatch(context.Background(), "generate / 9 - louder", projectContext())
	require.NoError(t, err)
	assert.IsType(t, intent.FreeChat{}, decision.Intent)
	assert.Nil(t, decision.Action)
	assert.Empty(t, decision.Reply)
}

func TestDispatchPropagatesStoreFailure(t *testing.T) {
	d := intent.NewDispatcher(&fakePrompts{err: errors.New("store down")}, nil)

	_, err := d.Dispatch(context.Background(), "generate / 1 - louder", projectContext())
	assert.ErrorContains(t, err, "store down")
}

func TestRuleModifier(t *testing.T) {
	m := intent.NewRuleModifier()
	ctx := context.Background()

	got, err := m.Modify(ctx, "Base prompt", "make it weird!")
	require.NoError(t, err)
	assert.Equal(t, "Base prompt. Make it weird.", got)

	got, err = m.Modify(ctx, "Base.", "louder with more strings")
	require.NoError(t, err)
	assert.Equal(t, "Base. Louder, more intense dynamics, featuring strings.", got)

	_, err = m.Modify(ctx, "Base.", "   ")
	assert.ErrorIs(t, err, intent.ErrEmptyModification)
}
