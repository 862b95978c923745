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

// Package analysis turns free-text frame descriptions into attributes and
// reduces per-frame attributes to a scene profile.
package analysis

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
)

// MaxSnippetRunes bounds the emotion snippet kept per frame.
const MaxSnippetRunes = 160

// AttributeParser imposes the frame attribute schema on a vision response.
type AttributeParser interface {
	Parse(text string) model.FrameAttributes
}

// keyword is one candidate value and the surface forms that select it.
type keyword struct {
	value   string
	pattern *regexp.Regexp
}

func newKeyword(value string, forms ...string) keyword {
	quoted := make([]string, 0, len(forms)+1)
	quoted = append(quoted, regexp.QuoteMeta(value))
	for _, f := range forms {
		quoted = append(quoted, regexp.QuoteMeta(f))
	}
	return keyword{value: value, pattern: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)}
}

// attribute is an ordered candidate list with its default.
type attribute struct {
	candidates []keyword
	fallback   string
}

// match returns the first candidate, in list order, found anywhere in text.
func (a attribute) match(text string) string {
	for _, k := range a.candidates {
		if k.pattern.MatchString(text) {
			return k.value
		}
	}
	return a.fallback
}

var (
	lighting = attribute{
		candidates: []keyword{
			newKeyword(model.LightingBright, "brightly", "brightness"),
			newKeyword(model.LightingDim, "dimly", "dimmed"),
			newKeyword(model.LightingDark, "darkness", "darkened"),
			newKeyword(model.LightingGoldenHour, "golden hour"),
		},
		fallback: model.LightingNatural,
	}
	cameraAngle = attribute{
		candidates: []keyword{
			newKeyword(model.CameraLow),
			newKeyword(model.CameraHigh),
			newKeyword(model.CameraEyeLevel, "eye level"),
		},
		fallback: model.CameraEyeLevel,
	}
	shotType = attribute{
		candidates: []keyword{
			newKeyword(model.ShotCloseUp, "close up", "closeup"),
			newKeyword(model.ShotWide),
			newKeyword(model.ShotMedium),
		},
		fallback: model.ShotMedium,
	}
	mood = attribute{
		candidates: []keyword{
			newKeyword(model.MoodTense, "tension"),
			newKeyword(model.MoodPeaceful),
			newKeyword(model.MoodDramatic),
			newKeyword(model.MoodNeutral),
		},
		fallback: model.MoodNeutral,
	}
	dominantColor = attribute{
		candidates: []keyword{
			newKeyword(model.ColorRed),
			newKeyword(model.ColorBlue),
			newKeyword(model.ColorGreen),
			newKeyword(model.ColorNeutral),
		},
		fallback: model.ColorNeutral,
	}

	emotionCue    = regexp.MustCompile(`\b(?:emotion\w*|feel\w*|mood\w*|joy\w*|sad|sadness|fear\w*|anxi\w*|calm\w*|happy|happiness|anger|angry|hope\w*|melanchol\w*|excit\w*|tense|tension|dread\w*|seren\w*|somber|tender\w*|grief|griev\w*|lonel\w*|nostalg\w*)\b`)
	sentenceBreak = regexp.MustCompile(`[.!?]+(?:\s+|$)|\n+`)
)

// KeywordParser matches ordered keyword lists against lowercased text.
type KeywordParser struct{}

func NewKeywordParser() *KeywordParser {
	return &KeywordParser{}
}

func (p *KeywordParser) Parse(text string) model.FrameAttributes {
	lower := strings.ToLower(text)
	return model.FrameAttributes{
		Lighting:       lighting.match(lower),
		CameraAngle:    cameraAngle.match(lower),
		ShotType:       shotType.match(lower),
		Mood:           mood.match(lower),
		DominantColor:  dominantColor.match(lower),
		EmotionSnippet: emotionSnippet(text),
	}
}

// emotionSnippet picks the first sentence carrying an emotion cue, or the
// first sentence when none does, bounded to MaxSnippetRunes.
func emotionSnippet(text string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}
	chosen := sentences[0]
	for _, s := range sentences {
		if emotionCue.MatchString(strings.ToLower(s)) {
			chosen = s
			break
		}
	}
	return truncate(chosen, MaxSnippetRunes)
}

func splitSentences(text string) []string {
	var out []string
	rest := strings.TrimSpace(text)
	for len(rest) > 0 {
		loc := sentenceBreak.FindStringIndex(rest)
		if loc == nil {
			out = append(out, rest)
			break
		}
		// Keep the terminal punctuation with its sentence.
		s := strings.TrimSpace(rest[:loc[1]])
		if len(s) > 0 {
			out = append(out, s)
		}
		rest = strings.TrimSpace(rest[loc[1]:])
	}
	return out
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-3])) + "..."
}
