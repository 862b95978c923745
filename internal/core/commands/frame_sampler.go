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
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/cor"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/workspace"
)

const (
	// DefaultFrameInterval is the sampling step in seconds.
	DefaultFrameInterval = 5.0
	// MaxFrames bounds the timestamps of one scene.
	MaxFrames = 4096
)

// Timestamps returns 0, interval, 2*interval, ... strictly below duration,
// at most MaxFrames of them. Non-finite inputs yield nothing.
func Timestamps(duration float64, interval float64) []float64 {
	if !(interval > 0) || !(duration > 0) || math.IsInf(duration, 0) || math.IsInf(interval, 0) {
		return nil
	}
	var out []float64
	for i := 0; i < MaxFrames; i++ {
		t := float64(i) * interval
		if t >= duration {
			break
		}
		out = append(out, t)
	}
	return out
}

// FrameSampler extracts one still per timestamp of a sampling plan into the
// workspace. Frames the tool fails to produce are dropped.
type FrameSampler struct {
	cor.BaseCommand
	manager  *workspace.Manager
	tool     VideoTool
	interval float64
}

func NewFrameSampler(name string, manager *workspace.Manager, tool VideoTool, interval float64) *FrameSampler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameSampler{BaseCommand: *cor.NewBaseCommand(name), manager: manager, tool: tool, interval: interval}
}

func (c *FrameSampler) IsExecutable(context cor.Context) bool {
	return workspaceExecutable(&c.BaseCommand, context)
}

func (c *FrameSampler) Execute(context cor.Context) {
	plan := context.Get(c.GetInputParam()).(*model.SamplingPlan)
	ctx := context.GetContext()

	dir, err := c.manager.Subdir(GetWorkspace(context), filepath.Join("scenes", plan.SceneId, "frames"))
	if err != nil {
		c.Fail(context, err)
		return
	}

	frames := make([]*model.SampledFrame, 0)
	for i, t := range Timestamps(plan.Duration, c.interval) {
		if err := ctx.Err(); err != nil {
			c.Fail(context, fmt.Errorf("sampling scene %s cancelled: %w", plan.SceneId, err))
			return
		}
		dst := filepath.Join(dir, fmt.Sprintf("frame_%03d.jpg", i))
		context.AddTempFile(dst)
		if err := c.tool.ExtractFrame(ctx, plan.SourcePath, dst, plan.Offset+t); err != nil {
			slog.Debug("frame extraction failed", "scene", plan.SceneId, "at", t, "error", err)
		}
		if info, err := os.Stat(dst); err != nil || info.Size() == 0 {
			continue
		}
		frames = append(frames, &model.SampledFrame{Timestamp: t, Path: dst})
	}
	if err := ctx.Err(); err != nil {
		c.Fail(context, fmt.Errorf("sampling scene %s cancelled: %w", plan.SceneId, err))
		return
	}
	c.Succeed(context, frames)
}
