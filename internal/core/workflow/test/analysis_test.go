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
	"strings"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/commands"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/services"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storedScene registers a cut scene whose media lives in the media store.
func storedScene(t *testing.T, f *fixture, start float64, end float64) (*model.Video, *model.Scene) {
	t.Helper()
	background := context.Background()
	video := model.NewVideo("u1", "p1", "films/a.mp4")
	video.DurationSeconds = 60
	require.NoError(t, f.repo.CreateVideo(background, video))
	scene, err := model.NewScene(video, 0, start, end, "b1")
	require.NoError(t, err)
	scene.MediaKey = commands.SceneMediaKey(scene)
	require.NoError(t, f.media.Put(background, scene.MediaKey, []byte("cut"), "video/mp4"))
	require.NoError(t, f.repo.CreateScene(background, scene))
	return video, scene
}

func TestAnalyzeStoredScene(t *testing.T) {
	f := newFixture(t)
	f.vision.Text = ""
	f.vision.Describe = func(image []byte) string {
		if strings.Contains(string(image), "at=10.000") {
			return "A bright, peaceful wide shot."
		}
		return "A dim and tense close-up. The actor looks afraid."
	}
	video, scene := storedScene(t, f, 30, 45)
	analysis := workflow.NewAnalysisWorkflow(config, f.components)

	result, err := analysis.Analyze(ctx, "u1", &model.AnalysisRequest{Scene: scene, Video: video})
	require.NoError(t, err)
	assert.Same(t, scene, result.Scene)
	require.Len(t, result.Frames, 3)
	for i, fr := range result.Frames {
		assert.Equal(t, float64(i*5), fr.Timestamp)
	}
	assert.Equal(t, model.LightingDim, result.Profile.Lighting)
	assert.Equal(t, model.MoodTense, result.Profile.Mood)
	require.NotNil(t, result.Prompt)
	assert.Equal(t, scene.Id, result.Prompt.SceneId)

	// Cut scenes are sampled from their own media, not the parent video.
	assert.Equal(t, []float64{0, 5, 10}, f.tool.FrameAts)
	assert.EqualValues(t, 1, f.media.Downloads.Load())
	assert.Zero(t, f.uploads.Downloads.Load())

	background := context.Background()
	stored, err := f.repo.LatestMusicPrompt(background, scene.Id)
	require.NoError(t, err)
	assert.Equal(t, result.Prompt.Prompt, stored.Prompt)
	frames, err := f.repo.ListFrameAnalyses(background, scene.Id)
	require.NoError(t, err)
	assert.Len(t, frames, 3)
	f.assertReleased(t)
}

func TestAnalyzeFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.vision.FailOn = "at=5.000"
	video, scene := storedScene(t, f, 0, 15)
	analysis := workflow.NewAnalysisWorkflow(config, f.components)

	_, err := analysis.Analyze(ctx, "u1", &model.AnalysisRequest{Scene: scene, Video: video})
	require.ErrorContains(t, err, "vision service unavailable")

	background := context.Background()
	frames, err := f.repo.ListFrameAnalyses(background, scene.Id)
	require.NoError(t, err)
	assert.Empty(t, frames)
	_, err = f.repo.LatestMusicPrompt(background, scene.Id)
	assert.ErrorIs(t, err, model.ErrNotFound)
	f.assertReleased(t)
}

func TestAnalyzeMissingMedia(t *testing.T) {
	f := newFixture(t)
	video := model.NewVideo("u1", "p1", "films/missing.mp4")
	scene, err := model.NewScene(video, 0, 0, 10, "b1")
	require.NoError(t, err)
	analysis := workflow.NewAnalysisWorkflow(config, f.components)

	_, err = analysis.Analyze(ctx, "u1", &model.AnalysisRequest{Scene: scene, Video: video})
	assert.ErrorIs(t, err, commands.ErrSourceUnavailable)
	assert.Zero(t, f.vision.Calls.Load())
	f.assertReleased(t)
}

func TestChatAnalyzesThroughWorkflow(t *testing.T) {
	f := newFixture(t)
	_, scene := storedScene(t, f, 0, 12)
	analysis := workflow.NewAnalysisWorkflow(config, f.components)
	chat := services.NewChatService(f.repo, nil, nil, f.media, analysis, nil, 10, time.Minute)

	reply, err := chat.Handle(ctx, "u1", "p1", "analyze scene 1")
	require.NoError(t, err)
	assert.Equal(t, scene.Id, reply.SceneId)
	require.NotNil(t, reply.Analysis)
	assert.Contains(t, reply.Reply, "Suggested score: "+reply.Analysis.Prompt.Prompt)
	f.assertReleased(t)
}
