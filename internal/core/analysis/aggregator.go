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

package analysis

import (
	"sort"
	"strings"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
)

// SortByTimestamp orders frames by timestamp in place. The sort is stable so
// frames sharing a timestamp keep their relative order.
func SortByTimestamp(frames []*model.FrameAnalysis) {
	sort.SliceStable(frames, func(i, j int) bool {
		return frames[i].Timestamp < frames[j].Timestamp
	})
}

// Aggregate computes the per-attribute mode of a scene's frames.
//
// Frames are put in timestamp order first, so the result does not depend on
// the order analyses completed in. Ties go to the value seen earliest. Empty
// input yields Unknown for every attribute. The input slice is not modified.
func Aggregate(frames []*model.FrameAnalysis) *model.AggregatedSceneProfile {
	ordered := make([]*model.FrameAnalysis, 0, len(frames))
	for _, f := range frames {
		if f != nil {
			ordered = append(ordered, f)
		}
	}
	SortByTimestamp(ordered)

	pick := func(get func(*model.FrameAnalysis) string) string {
		values := make([]string, len(ordered))
		for i, f := range ordered {
			values[i] = get(f)
		}
		return Mode(values)
	}

	return &model.AggregatedSceneProfile{
		Lighting:      pick(func(f *model.FrameAnalysis) string { return f.Lighting }),
		Mood:          pick(func(f *model.FrameAnalysis) string { return f.Mood }),
		ShotType:      pick(func(f *model.FrameAnalysis) string { return f.ShotType }),
		DominantColor: pick(func(f *model.FrameAnalysis) string { return f.DominantColor }),
		FrameCount:    len(ordered),
	}
}

// Mode returns the most frequent normalized value, breaking ties by first
// occurrence. Blank values do not vote; with no votes the result is Unknown.
func Mode(values []string) string {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if len(v) == 0 {
			continue
		}
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}

	best, bestCount := model.Unknown, 0
	for _, v := range order {
		// Strictly greater keeps the earliest value on ties.
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}
