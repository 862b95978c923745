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

package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T) *services.SQLiteRepository {
	t.Helper()
	repo, err := services.NewSQLiteRepository(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteVideosAndScenes(t *testing.T) {
	ctx := context.Background()
	repo := newSQLite(t)

	_, err := repo.GetVideo(ctx, "missing")
	assert.ErrorIs(t, err, services.ErrNotFound)

	video := model.NewVideo("u1", "p1", "films/a.mp4")
	video.DurationSeconds = 23
	require.NoError(t, repo.CreateVideo(ctx, video))
	got, err := repo.GetVideo(ctx, video.Id)
	require.NoError(t, err)
	assert.Equal(t, video.MediaKey, got.MediaKey)
	assert.Equal(t, 23.0, got.DurationSeconds)
	assert.WithinDuration(t, video.CreateTime, got.CreateTime, time.Millisecond)

	require.NoError(t, repo.UpdateVideoDuration(ctx, video.Id, 31.5))
	got, err = repo.GetVideo(ctx, video.Id)
	require.NoError(t, err)
	assert.Equal(t, 31.5, got.DurationSeconds)
	assert.ErrorIs(t, repo.UpdateVideoDuration(ctx, "missing", 1), services.ErrNotFound)

	base := time.Now()
	for i := 2; i >= 0; i-- {
		scene, err := model.NewScene(video, i, float64(i*10), float64(i*10+10), "b1")
		require.NoError(t, err)
		scene.CreateTime = base
		if i == 1 {
			scene.MediaKey = "users/u1/projects/p1/scenes/x/y.mp4"
		}
		require.NoError(t, repo.CreateScene(ctx, scene))
	}
	other, err := model.NewScene(model.NewVideo("u2", "p2", "films/b.mp4"), 0, 0, 5, "b2")
	require.NoError(t, err)
	require.NoError(t, repo.CreateScene(ctx, other))

	scenes, err := repo.ListScenes(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, scenes, 3)
	for i, s := range scenes {
		assert.Equal(t, i, s.Sequence)
	}
	assert.Equal(t, "users/u1/projects/p1/scenes/x/y.mp4", scenes[1].MediaKey)

	one, err := repo.GetScene(ctx, scenes[2].Id)
	require.NoError(t, err)
	assert.Equal(t, 20.0, one.Start)
	_, err = repo.GetScene(ctx, "missing")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestSQLiteFramesAndPrompts(t *testing.T) {
	ctx := context.Background()
	repo := newSQLite(t)

	frames := []*model.FrameAnalysis{
		model.NewFrameAnalysis("s1", 10, model.FrameAttributes{Mood: model.MoodTense}, "late"),
		model.NewFrameAnalysis("s1", 0, model.FrameAttributes{Mood: model.MoodPeaceful}, "early"),
		model.NewFrameAnalysis("s2", 0, model.FrameAttributes{}, "other"),
	}
	require.NoError(t, repo.CreateFrameAnalyses(ctx, frames))
	listed, err := repo.ListFrameAnalyses(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, 0.0, listed[0].Timestamp)
	assert.Equal(t, "early", listed[0].RawText)
	assert.Equal(t, model.MoodTense, listed[1].Mood)

	_, err = repo.LatestMusicPrompt(ctx, "s1")
	assert.ErrorIs(t, err, services.ErrNotFound)

	first := model.NewMusicPrompt("s1", "first", "summary one")
	first.CreateTime = time.Now().Add(-time.Minute)
	second := model.NewMusicPrompt("s1", "second", "summary two")
	require.NoError(t, repo.CreateMusicPrompt(ctx, second))
	require.NoError(t, repo.CreateMusicPrompt(ctx, first))
	latest, err := repo.LatestMusicPrompt(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "second", latest.Prompt)
	assert.Equal(t, "summary two", latest.Summary)

	_, err = repo.LatestTrack(ctx, "s1")
	assert.ErrorIs(t, err, services.ErrNotFound)
	track := model.NewTrack("s1", model.TrackKindMusic, "strings", 12)
	track.MediaKey = "users/u1/projects/p1/scenes/s1/tracks/t.mp3"
	require.NoError(t, repo.CreateTrack(ctx, track))
	gotTrack, err := repo.LatestTrack(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, track.Id, gotTrack.Id)
	assert.Equal(t, 12.0, gotTrack.DurationSeconds)
}

func TestSQLiteChatHistory(t *testing.T) {
	ctx := context.Background()
	repo := newSQLite(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		turn := model.NewChatTurn("u1", "p1", model.RoleUser, fmt.Sprintf("message %d", i), "")
		turn.CreateTime = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.AppendChatTurn(ctx, turn))
	}
	require.NoError(t, repo.AppendChatTurn(ctx, model.NewChatTurn("u1", "p2", model.RoleUser, "elsewhere", "")))
	require.NoError(t, repo.AppendChatTurn(ctx, model.NewChatTurn("u2", "p1", model.RoleUser, "someone else", "")))

	turns, err := repo.ListChatTurns(ctx, "u1", "p1", 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "message 2", turns[0].Content)
	assert.Equal(t, "message 4", turns[2].Content)

	all, err := repo.ListChatTurns(ctx, "u1", "p1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := repo.ListChatTurns(ctx, "u1", "p3", 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	theirs, err := repo.ListChatTurns(ctx, "u2", "p1", 10)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, "someone else", theirs[0].Content)
}
