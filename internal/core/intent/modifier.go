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
	"regexp"
	"strings"
)

// ErrEmptyModification is returned when there is nothing to apply.
var ErrEmptyModification = errors.New("empty prompt modification")

// PromptModifier combines a base prompt with a director's modification.
type PromptModifier interface {
	Modify(ctx context.Context, base string, modification string) (string, error)
}

type modifierRule struct {
	pattern *regexp.Regexp
	phrase  string
}

var modifierRules = []modifierRule{
	{regexp.MustCompile(`\b(?:louder|more intense|bigger)\b`), "louder, more intense dynamics"},
	{regexp.MustCompile(`\b(?:quieter|softer|gentler)\b`), "softer, more restrained dynamics"},
	{regexp.MustCompile(`\b(?:faster|quicker|speed up)\b`), "faster tempo"},
	{regexp.MustCompile(`\b(?:slower|slow down)\b`), "slower tempo"},
	{regexp.MustCompile(`\b(?:darker|sadder|moodier)\b`), "darker, more brooding tone"},
	{regexp.MustCompile(`\b(?:brighter|happier|uplifting)\b`), "brighter, more uplifting tone"},
}

var addInstrument = regexp.MustCompile(`\b(?:add|with|include)\s+(?:some\s+|more\s+)?([a-z][a-z \-]*[a-z])`)

// RuleModifier rewrites common director phrasing into prompt vocabulary.
// Modifications no rule recognizes are appended verbatim.
type RuleModifier struct{}

func NewRuleModifier() *RuleModifier {
	return &RuleModifier{}
}

func (RuleModifier) Modify(_ context.Context, base string, modification string) (string, error) {
	mod := strings.TrimSpace(modification)
	if len(mod) == 0 {
		return "", ErrEmptyModification
	}
	lower := strings.ToLower(mod)

	var phrases []string
	for _, r := range modifierRules {
		if r.pattern.MatchString(lower) {
			phrases = append(phrases, r.phrase)
		}
	}
	if m := addInstrument.FindStringSubmatch(lower); m != nil {
		phrases = append(phrases, "featuring "+strings.TrimSpace(m[1]))
	}
	if len(phrases) == 0 {
		phrases = append(phrases, strings.TrimRight(mod, ".!"))
	}

	adjusted := strings.Join(phrases, ", ")
	base = strings.TrimSpace(base)
	if len(base) == 0 {
		return capitalizeFirst(adjusted) + ".", nil
	}
	if !strings.HasSuffix(base, ".") {
		base += "."
	}
	return base + " " + capitalizeFirst(adjusted) + ".", nil
}

func capitalizeFirst(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
