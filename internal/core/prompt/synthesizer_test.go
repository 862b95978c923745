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

package prompt_test

import (
	"testing"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/prompt"
	"github.com/stretchr/testify/assert"
)

func TestSynthesizeMoodTable(t *testing.T) {
	s := prompt.NewSynthesizer()

	tests := []struct {
		profile model.AggregatedSceneProfile
		want    string
	}{
		{
			profile: model.AggregatedSceneProfile{Mood: "tense", Lighting: "dark", DominantColor: "red"},
			want:    "Suspenseful cinematic score with low strings and pulsing synths, moderate-to-fast tempo. Dark, brooding tone. Intense texture.",
		},
		{
			profile: model.AggregatedSceneProfile{Mood: "peaceful", Lighting: "golden-hour", DominantColor: "green"},
			want:    "Ambient calm soundscape with soft piano and warm pads, slow tempo. Warm, luminous tone. Ethereal texture.",
		},
		{
			profile: model.AggregatedSceneProfile{Mood: "dramatic", Lighting: "natural", DominantColor: "neutral"},
			want:    "Epic orchestral score with full orchestra with brass and timpani, building tempo.",
		},
		{
			profile: model.AggregatedSceneProfile{Mood: model.Unknown, Lighting: model.Unknown, DominantColor: model.Unknown},
			want:    "Understated underscore with light acoustic guitar, medium tempo.",
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Synthesize(&tt.profile, "", nil))
	}
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	s := prompt.NewSynthesizer()
	p := &model.AggregatedSceneProfile{Mood: "tense", Lighting: "dim", DominantColor: "blue"}

	assert.Equal(t, s.Synthesize(p, "x", nil), s.Synthesize(p, "x", nil))
}

func TestNarrativeCues(t *testing.T) {
	script := &model.ScriptContext{
		OverallMood: "Melancholic",
		Scenes: []model.ScriptScene{
			{Description: "Rain on the window", Mood: "Somber", Tone: "quiet"},
			{Description: "a car chase through the city at night", Mood: "tense", Tone: "urgent"},
			{Description: "RAIN ON THE WINDOW as she waits", Mood: "somber", Tone: "hopeful"},
		},
	}

	// Visual contains the script description.
	got := prompt.NarrativeCues("Close-up of rain on the window, dim light", script, "")
	assert.Equal(t, []string{"somber", "quiet"}, got)

	// Script description contains the visual description, and duplicates fold.
	got = prompt.NarrativeCues("rain on the window", script, "")
	assert.Equal(t, []string{"somber", "quiet", "hopeful"}, got)

	got = prompt.NarrativeCues("a sunny meadow", script, "")
	assert.Equal(t, []string{"melancholic"}, got)

	assert.Nil(t, prompt.NarrativeCues("anything", nil, ""))
	assert.Empty(t, prompt.NarrativeCues("anything", &model.ScriptContext{}, ""))
}

func TestSynthesizeWithScript(t *testing.T) {
	s := prompt.NewSynthesizer()
	script := &model.ScriptContext{Scenes: []model.ScriptScene{{Description: "car chase", Mood: "tense", Tone: "urgent"}}}

	got := s.Synthesize(&model.AggregatedSceneProfile{Mood: "tense"}, "A wide shot of a car chase at night.", script)
	assert.Equal(t, "Suspenseful cinematic score with low strings and pulsing synths, moderate-to-fast tempo. Narrative mood: tense, urgent.", got)
}

func TestNarrativeCuesSkipWordsAlreadyInPrompt(t *testing.T) {
	s := prompt.NewSynthesizer()
	script := &model.ScriptContext{
		OverallMood: "hopeful",
		Scenes:      []model.ScriptScene{{Description: "the alley", Mood: "Intense", Tone: "dark"}},
	}
	profile := &model.AggregatedSceneProfile{Mood: "tense", Lighting: "dark", DominantColor: "red"}

	got := s.Synthesize(profile, "A figure waits in the alley.", script)
	assert.Equal(t, "Suspenseful cinematic score with low strings and pulsing synths, moderate-to-fast tempo. Dark, brooding tone. Intense texture.", got)

	// A matched scene keeps the overall mood out even when its cues fold away.
	assert.Empty(t, prompt.NarrativeCues("the alley", script, got))

	script.Scenes[0].Tone = "dark and cold"
	assert.Equal(t, []string{"dark and cold"}, prompt.NarrativeCues("the alley", script, got))
}

func TestVisualDescriptionAndSummary(t *testing.T) {
	frames := []*model.FrameAnalysis{{RawText: " first "}, nil, {RawText: ""}, {RawText: "second"}}
	assert.Equal(t, "first second", prompt.VisualDescription(frames))

	assert.Equal(t, "No frames could be analyzed for this scene.", prompt.Summary(&model.AggregatedSceneProfile{}))
	assert.Equal(t,
		"Analyzed 1 frame: lighting dim, mood tense, shot type wide, dominant color red.",
		prompt.Summary(&model.AggregatedSceneProfile{Lighting: "dim", Mood: "tense", ShotType: "wide", DominantColor: "red", FrameCount: 1}))
}
