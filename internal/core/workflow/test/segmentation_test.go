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

package workflow_test

import (
	"context"
	"testing"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/commands"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/cor"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-scene-scoring/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func uploadRequest(t *testing.T, cuts string) *model.SegmentationRequest {
	t.Helper()
	req, err := commands.ParseUploadNotification([]byte(test.GetTestUploadMessageText("films/a.mp4", "u1", "p1", cuts)))
	require.NoError(t, err)
	return req
}

func TestSegmentationFromNotification(t *testing.T) {
	traceCtx, span := tracer.Start(ctx, "segmentation-test")
	defer span.End()

	f := newFixture(t)
	segmentation := workflow.NewSegmentationWorkflow(config, f.components, nil)

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(traceCtx)
	chainCtx.Add(cor.CtxIn, test.GetTestUploadMessageText("films/a.mp4", "u1", "p1", "[[0,10],[10,20],[20,23]]"))
	assert.True(t, segmentation.IsExecutable(chainCtx))

	segmentation.Execute(chainCtx)
	for k, err := range chainCtx.GetErrors() {
		t.Logf("error: (%s): %v", k, err)
	}
	if chainCtx.HasErrors() {
		span.SetStatus(codes.Error, "failed to execute segmentation test")
	}
	require.False(t, chainCtx.HasErrors())

	result := chainCtx.Get(cor.CtxIn).(*model.SegmentationResult)
	require.Len(t, result.Scenes, 3)
	assert.Empty(t, result.Warnings)

	background := context.Background()
	video, err := f.repo.GetVideo(background, model.NewVideo("u1", "p1", "films/a.mp4").Id)
	require.NoError(t, err)
	assert.Equal(t, 23.0, video.DurationSeconds)

	scenes, err := f.repo.ListScenes(background, "p1")
	require.NoError(t, err)
	require.Len(t, scenes, 3)
	for i, s := range scenes {
		assert.Equal(t, i, s.Sequence)
		assert.Equal(t, video.Id, s.VideoId)
		assert.Equal(t, "1728615848664286", s.BatchId)
		data, err := f.media.Get(background, s.MediaKey)
		require.NoError(t, err)
		assert.Equal(t, test.CutContent("x/"+video.Id, s.Start, s.Duration()), data)
	}
	assert.EqualValues(t, 1, f.uploads.Downloads.Load())
	assert.Zero(t, f.vision.Calls.Load())
	f.assertReleased(t)
}

func TestSegmentationAcksMalformedNotifications(t *testing.T) {
	f := newFixture(t)
	segmentation := workflow.NewSegmentationWorkflow(config, f.components, nil)

	for _, msg := range []string{
		test.GetTestUploadMessageText("films/a.mp4", "", "", ""),
		test.GetTestUploadMessageText("films/a.mp4", "u1", "p1", "[[0,10],[10,5]]"),
		test.GetTestUploadMessageText("films/a.mp4", "../etc", "p1", ""),
	} {
		chainCtx := cor.NewBaseContext()
		chainCtx.SetContext(ctx)
		chainCtx.Add(cor.CtxIn, msg)
		segmentation.Execute(chainCtx)

		require.True(t, chainCtx.HasErrors(), msg)
		for _, err := range chainCtx.GetErrors() {
			assert.ErrorIs(t, err, model.ErrMalformedInput)
		}
	}
	scenes, err := f.repo.ListScenes(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, scenes)
	assert.Empty(t, f.media.Keys())
	assert.Empty(t, f.tool.CutCalls())
	f.assertReleased(t)
}

func TestSegmentWholeVideoWithAnalysis(t *testing.T) {
	f := newFixture(t)
	analysis := workflow.NewAnalysisWorkflow(config, f.components)
	segmentation := workflow.NewSegmentationWorkflow(config, f.components, analysis)

	req := uploadRequest(t, "")
	result, err := segmentation.Segment(ctx, req)
	require.NoError(t, err)
	require.Len(t, result.Scenes, 1)
	scene := result.Scenes[0]
	assert.Equal(t, 23.0, scene.End)
	assert.True(t, scene.IsWholeVideo())

	background := context.Background()
	frames, err := f.repo.ListFrameAnalyses(background, scene.Id)
	require.NoError(t, err)
	require.Len(t, frames, 5)
	assert.Equal(t, model.LightingDark, frames[0].Lighting)
	assert.Equal(t, model.MoodTense, frames[0].Mood)

	mp, err := f.repo.LatestMusicPrompt(background, scene.Id)
	require.NoError(t, err)
	assert.NotEmpty(t, mp.Prompt)

	// Sampling read the video already placed in the workspace.
	assert.EqualValues(t, 1, f.uploads.Downloads.Load())
	f.assertReleased(t)
}

func TestSegmentAnalyzesCutsWithoutDownloading(t *testing.T) {
	f := newFixture(t)
	f.tool.FailCutAt = map[float64]bool{10: true}
	analysis := workflow.NewAnalysisWorkflow(config, f.components)
	segmentation := workflow.NewSegmentationWorkflow(config, f.components, analysis)

	req := uploadRequest(t, "[[0,10],[10,20]]")
	result, err := segmentation.Segment(ctx, req)
	require.NoError(t, err)
	require.Len(t, result.Scenes, 2)
	assert.Contains(t, result.Warnings, result.Scenes[1].Id)

	background := context.Background()
	_, err = f.repo.LatestMusicPrompt(background, result.Scenes[0].Id)
	require.NoError(t, err)
	_, err = f.repo.LatestMusicPrompt(background, result.Scenes[1].Id)
	assert.ErrorIs(t, err, model.ErrNotFound, "scenes without media are not analyzed")
	assert.Zero(t, f.media.Downloads.Load())
	f.assertReleased(t)
}
