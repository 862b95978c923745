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
	"errors"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/cor"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
)

// VideoRegistrar makes sure the request's video has a record. A stored
// record wins over the request's copy, which only fills in a duration the
// record lacks. The filled in duration is written back to the store.
type VideoRegistrar struct {
	cor.BaseCommand
	videos VideoStore
}

func NewVideoRegistrar(name string, videos VideoStore) *VideoRegistrar {
	return &VideoRegistrar{BaseCommand: *cor.NewBaseCommand(name), videos: videos}
}

func (c *VideoRegistrar) Execute(context cor.Context) {
	req := context.Get(c.GetInputParam()).(*model.SegmentationRequest)
	ctx := context.GetContext()

	stored, err := c.videos.GetVideo(ctx, req.Video.Id)
	switch {
	case err == nil:
		if req.Video.DurationSeconds > 0 && stored.DurationSeconds <= 0 {
			stored.DurationSeconds = req.Video.DurationSeconds
			if err := c.videos.UpdateVideoDuration(ctx, stored.Id, stored.DurationSeconds); err != nil {
				slog.Warn("storing probed duration failed", "video", stored.Id, "error", err)
			}
		}
		req.Video = stored
	case errors.Is(err, model.ErrNotFound):
		if err := c.videos.CreateVideo(ctx, req.Video); err != nil {
			c.Fail(context, fmt.Errorf("registering video %s: %w", req.Video.Id, err))
			return
		}
	default:
		c.Fail(context, fmt.Errorf("looking up video %s: %w", req.Video.Id, err))
		return
	}
	context.Add(ParamVideo, req.Video)
	c.Succeed(context, req)
}
