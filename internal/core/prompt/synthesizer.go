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

// Package prompt maps an aggregated scene profile, and optionally a script,
// onto a text prompt for the generative audio service.
package prompt

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
)

// MusicalVocabulary is the base tuple selected by the dominant mood.
type MusicalVocabulary struct {
	Genre       string
	Instruments string
	Tempo       string
}

var moodTable = map[string]MusicalVocabulary{
	model.MoodTense: {
		Genre:       "suspenseful cinematic score",
		Instruments: "low strings and pulsing synths",
		Tempo:       "moderate-to-fast tempo",
	},
	model.MoodPeaceful: {
		Genre:       "ambient calm soundscape",
		Instruments: "soft piano and warm pads",
		Tempo:       "slow tempo",
	},
	model.MoodDramatic: {
		Genre:       "epic orchestral score",
		Instruments: "full orchestra with brass and timpani",
		Tempo:       "building tempo",
	},
}

var defaultVocabulary = MusicalVocabulary{
	Genre:       "understated underscore",
	Instruments: "light acoustic guitar",
	Tempo:       "medium tempo",
}

// Vocabulary returns the tuple for mood, or the neutral tuple.
func Vocabulary(mood string) MusicalVocabulary {
	if v, ok := moodTable[strings.ToLower(mood)]; ok {
		return v
	}
	return defaultVocabulary
}

func lightingModifier(lighting string) string {
	switch strings.ToLower(lighting) {
	case model.LightingDark, model.LightingDim:
		return "dark, brooding"
	case model.LightingBright, model.LightingGoldenHour:
		return "warm, luminous"
	}
	return ""
}

func colorModifier(color string) string {
	switch strings.ToLower(color) {
	case model.ColorRed:
		return "intense"
	case model.ColorBlue, model.ColorGreen:
		return "ethereal"
	}
	return ""
}

// Synthesizer builds music prompts. It holds no state and is safe for
// concurrent use.
type Synthesizer struct{}

func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

// Synthesize returns the prompt for profile. visualDescription is the
// scene's own description used to locate it in script; script may be nil.
func (s *Synthesizer) Synthesize(profile *model.AggregatedSceneProfile, visualDescription string, script *model.ScriptContext) string {
	if profile == nil {
		profile = &model.AggregatedSceneProfile{Mood: model.Unknown}
	}
	v := Vocabulary(profile.Mood)

	sentences := []string{fmt.Sprintf("%s with %s, %s.", capitalize(v.Genre), v.Instruments, v.Tempo)}
	if m := lightingModifier(profile.Lighting); len(m) > 0 {
		sentences = append(sentences, capitalize(m)+" tone.")
	}
	if m := colorModifier(profile.DominantColor); len(m) > 0 {
		sentences = append(sentences, capitalize(m)+" texture.")
	}
	if narrative := NarrativeCues(visualDescription, script, strings.Join(sentences, " ")); len(narrative) > 0 {
		sentences = append(sentences, fmt.Sprintf("Narrative mood: %s.", strings.Join(narrative, ", ")))
	}
	return strings.Join(sentences, " ")
}

// NarrativeCues folds in the mood and tone of every script scene whose
// description matches visualDescription, case-insensitively and as a
// substring in either direction. Without a match the overall script mood is
// used. Cues whose words all occur in present, the prompt text so far, are
// dropped. A nil script yields nothing.
func NarrativeCues(visualDescription string, script *model.ScriptContext, present string) []string {
	if script == nil {
		return nil
	}
	visual := strings.ToLower(strings.TrimSpace(visualDescription))

	seen := make(map[string]bool)
	for _, w := range words(present) {
		seen[w] = true
	}
	var cues []string
	matched := false
	add := func(v string) {
		v = strings.ToLower(strings.TrimSpace(v))
		if len(v) == 0 || seen[v] {
			return
		}
		seen[v] = true
		for _, w := range words(v) {
			if !seen[w] {
				cues = append(cues, v)
				return
			}
		}
	}

	if len(visual) > 0 {
		for _, scene := range script.Scenes {
			desc := strings.ToLower(strings.TrimSpace(scene.Description))
			if len(desc) == 0 {
				continue
			}
			if strings.Contains(visual, desc) || strings.Contains(desc, visual) {
				matched = true
				add(scene.Mood)
				add(scene.Tone)
			}
		}
	}
	if !matched {
		add(script.OverallMood)
	}
	return cues
}

// words splits s into lowercase words. Hyphenated words stay whole.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

// VisualDescription joins the raw vision responses of a scene in frame order.
func VisualDescription(frames []*model.FrameAnalysis) string {
	parts := make([]string, 0, len(frames))
	for _, f := range frames {
		if f != nil && len(strings.TrimSpace(f.RawText)) > 0 {
			parts = append(parts, strings.TrimSpace(f.RawText))
		}
	}
	return strings.Join(parts, " ")
}

// Summary is the human readable analysis stored next to a prompt.
func Summary(profile *model.AggregatedSceneProfile) string {
	if profile == nil || profile.FrameCount == 0 {
		return "No frames could be analyzed for this scene."
	}
	noun := "frames"
	if profile.FrameCount == 1 {
		noun = "frame"
	}
	return fmt.Sprintf("Analyzed %d %s: lighting %s, mood %s, shot type %s, dominant color %s.",
		profile.FrameCount, noun, profile.Lighting, profile.Mood, profile.ShotType, profile.DominantColor)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
