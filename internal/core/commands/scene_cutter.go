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
	goctx "context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/cloud"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/cor"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/workspace"
	"github.com/remeh/sizedwaitgroup"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SceneMediaKey is the object key of a freshly cut scene artifact.
func SceneMediaKey(scene *model.Scene) string {
	return fmt.Sprintf("users/%s/projects/%s/scenes/%s/%s.mp4", scene.OwnerId, scene.ProjectId, scene.Id, uuid.NewString())
}

// SceneCutter is the segmentation engine. It cuts every requested boundary
// out of the local source, stores the artifacts and creates one Scene per
// boundary in request order. A cut that fails still yields a scene, without
// media, and a warning.
type SceneCutter struct {
	cor.BaseCommand
	manager     *workspace.Manager
	tool        VideoTool
	objects     cloud.ObjectStore
	scenes      SceneWriter
	parallelism int
	pacing      time.Duration
}

func NewSceneCutter(name string, manager *workspace.Manager, tool VideoTool, objects cloud.ObjectStore, scenes SceneWriter, parallelism int, pacing time.Duration) *SceneCutter {
	if parallelism < 1 {
		parallelism = 1
	}
	return &SceneCutter{
		BaseCommand: *cor.NewBaseCommand(name),
		manager:     manager,
		tool:        tool,
		objects:     objects,
		scenes:      scenes,
		parallelism: parallelism,
		pacing:      pacing,
	}
}

func (c *SceneCutter) IsExecutable(context cor.Context) bool {
	return workspaceExecutable(&c.BaseCommand, context)
}

func (c *SceneCutter) Execute(context cor.Context) {
	req := context.Get(c.GetInputParam()).(*model.SegmentationRequest)
	ctx := context.GetContext()

	if req.WholeVideo || len(req.Cuts) == 0 {
		c.wholeVideo(context, req)
		return
	}

	// Nothing is cut or written unless the whole batch is valid.
	scenes := make([]*model.Scene, len(req.Cuts))
	for i, cut := range req.Cuts {
		scene, err := model.NewScene(req.Video, i, cut.Start, cut.End, req.BatchId)
		if err != nil {
			c.Fail(context, fmt.Errorf("%w: cut %d: %w", model.ErrMalformedInput, i, err))
			return
		}
		scenes[i] = scene
	}

	reencode := req.Reencode
	if !reencode {
		needs, err := NeedsReencode(req.SourcePath)
		if err != nil {
			slog.Warn("container detection failed, stream copying", "video", req.Video.Id, "error", err)
		}
		reencode = needs
	}

	cutDir, err := c.manager.Subdir(GetWorkspace(context), cutsDir)
	if err != nil {
		c.Fail(context, err)
		return
	}

	var mu sync.Mutex
	warnings := make(map[string]string)
	swg := sizedwaitgroup.New(c.parallelism)
	for i, scene := range scenes {
		if ctx.Err() != nil {
			break
		}
		swg.Add()
		if i > 0 && c.pacing > 0 {
			select {
			case <-time.After(c.pacing):
			case <-ctx.Done():
			}
		}
		go func(scene *model.Scene) {
			defer swg.Done()
			if err := c.cut(ctx, req, scene, cutDir, reencode); err != nil {
				slog.Warn("scene cut failed", "scene", scene.Id, "sequence", scene.Sequence, "error", err)
				mu.Lock()
				warnings[scene.Id] = err.Error()
				mu.Unlock()
				context.AddWarning(scene.Id, err.Error())
			}
		}(scene)
	}
	swg.Wait()

	if err := ctx.Err(); err != nil {
		c.Fail(context, fmt.Errorf("segmentation of video %s cancelled: %w", req.Video.Id, err))
		return
	}

	// Records go strictly after storage, in cut order.
	for _, scene := range scenes {
		if err := c.scenes.CreateScene(ctx, scene); err != nil {
			c.Fail(context, fmt.Errorf("creating scene %d of video %s: %w", scene.Sequence, req.Video.Id, err))
			return
		}
	}

	result := &model.SegmentationResult{Scenes: scenes}
	if len(warnings) > 0 {
		result.Warnings = warnings
	}
	c.Succeed(context, result)
}

func (c *SceneCutter) cut(ctx goctx.Context, req *model.SegmentationRequest, scene *model.Scene, cutDir string, reencode bool) error {
	ctx, span := c.Tracer.Start(ctx, "scene-cut")
	defer span.End()
	span.SetAttributes(
		attribute.String("scene.id", scene.Id),
		attribute.Int("scene.sequence", scene.Sequence),
		attribute.Bool("reencode", reencode),
	)

	dst := filepath.Join(cutDir, scene.Id+".mp4")
	fail := func(err error) error {
		_ = os.Remove(dst)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := c.tool.Cut(ctx, req.SourcePath, dst, scene.Start, scene.Duration(), reencode); err != nil {
		return fail(fmt.Errorf("cutting [%.3f, %.3f): %w", scene.Start, scene.End, err))
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		return fail(fmt.Errorf("reading cut artifact: %w", err))
	}
	key := SceneMediaKey(scene)
	if err := c.objects.Put(ctx, key, data, "video/mp4"); err != nil {
		return fail(fmt.Errorf("storing cut artifact: %w", err))
	}
	scene.MediaKey = key
	span.SetStatus(codes.Ok, "stored")
	return nil
}

func (c *SceneCutter) wholeVideo(context cor.Context, req *model.SegmentationRequest) {
	scene, err := model.NewScene(req.Video, 0, 0, req.Video.DurationSeconds, req.BatchId)
	if err != nil {
		c.Fail(context, fmt.Errorf("whole video scene of %s: %w", req.Video.Id, err))
		return
	}
	if err := c.scenes.CreateScene(context.GetContext(), scene); err != nil {
		c.Fail(context, fmt.Errorf("creating scene of video %s: %w", req.Video.Id, err))
		return
	}
	c.Succeed(context, &model.SegmentationResult{Scenes: []*model.Scene{scene}})
}
