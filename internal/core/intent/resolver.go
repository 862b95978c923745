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

// Package intent classifies director chat messages and turns generation
// requests into actions.
//
// Resolve is a pure function from a message and the project's scene list to
// exactly one Intent variant, checked in this order:
//  1. the template "generate / <n> - <text>", n being a 1-based scene position;
//  2. a "sound effect" request, optionally naming a scene;
//  3. an "analyze scene" request naming a scene;
//  4. free chat.
//
// Anything that cannot be resolved to a concrete scene degrades to FreeChat.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
)

// Intent is one of GenerateMusic, SoundEffect, AnalyzeScene or FreeChat.
type Intent interface {
	Name() string
	isIntent()
}

// GenerateMusic regenerates music for a scene with a modification.
type GenerateMusic struct {
	Scene        *model.Scene
	Ordinal      int
	Modification string
}

// SoundEffect asks for a sound effect described by the message. Scene is nil
// when the message names none.
type SoundEffect struct {
	Scene       *model.Scene
	Description string
}

// AnalyzeScene re-runs the visual analysis of a scene.
type AnalyzeScene struct {
	Scene   *model.Scene
	Ordinal int
}

// FreeChat is handed to the conversational model.
type FreeChat struct {
	Message string
}

func (GenerateMusic) Name() string { return "generate_music" }
func (SoundEffect) Name() string   { return "sound_effect" }
func (AnalyzeScene) Name() string  { return "analyze_scene" }
func (FreeChat) Name() string      { return "free_chat" }

func (GenerateMusic) isIntent() {}
func (SoundEffect) isIntent()   {}
func (AnalyzeScene) isIntent()  {}
func (FreeChat) isIntent()      {}

// Context is what the resolver knows about the project.
type Context struct {
	ProjectId string
	Scenes    []*model.Scene // Project order; position i is scene number i+1.
}

// SceneAt returns the scene at 1-based position n.
func (c Context) SceneAt(n int) (*model.Scene, bool) {
	if n < 1 || n > len(c.Scenes) {
		return nil, false
	}
	return c.Scenes[n-1], true
}

var (
	generateTemplate = regexp.MustCompile(`(?is)^\s*generate\s*/\s*(\d+)\s*-\s*(.+?)\s*$`)

	ordinalWords = map[string]int{
		"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
		"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
		"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
		"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	}

	ordinalPattern   = `(\d+|one|two|three|four|five|six|seven|eight|nine|ten|first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth)`
	sceneThenOrdinal = regexp.MustCompile(`\bscene\s*(?:#|no\.?\s*|number\s+)?` + ordinalPattern + `\b`)
	ordinalThenScene = regexp.MustCompile(`\b` + ordinalPattern + `\s+scene\b`)
)

// Resolve classifies message. It has no side effects.
func Resolve(message string, c Context) Intent {
	if m := generateTemplate.FindStringSubmatch(message); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return FreeChat{Message: message}
		}
		scene, ok := c.SceneAt(n)
		if !ok {
			return FreeChat{Message: message}
		}
		return GenerateMusic{Scene: scene, Ordinal: n, Modification: m[2]}
	}

	lower := strings.ToLower(message)

	if strings.Contains(lower, "sound effect") {
		out := SoundEffect{Description: strings.TrimSpace(message)}
		if n, ok := SceneReference(lower); ok {
			out.Scene, _ = c.SceneAt(n)
		}
		return out
	}

	if strings.Contains(lower, "analyze scene") || strings.Contains(lower, "analyse scene") {
		if n, ok := SceneReference(lower); ok {
			if scene, ok := c.SceneAt(n); ok {
				return AnalyzeScene{Scene: scene, Ordinal: n}
			}
		}
	}

	return FreeChat{Message: message}
}

// SceneReference extracts a scene number from text such as "scene 3",
// "scene three" or "the third scene".
func SceneReference(text string) (int, bool) {
	lower := strings.ToLower(text)
	for _, re := range []*regexp.Regexp{sceneThenOrdinal, ordinalThenScene} {
		if m := re.FindStringSubmatch(lower); m != nil {
			if n, ok := ordinal(m[1]); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func ordinal(token string) (int, bool) {
	if n, ok := ordinalWords[token]; ok {
		return n, true
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return n, true
}
