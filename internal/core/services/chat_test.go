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
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/intent"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/services"
	test "github.com/jaycherian/gcp-go-scene-scoring/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type audioCall struct {
	prompt   string
	duration float64
}

type fakeAudio struct {
	calls []audioCall
	err   error
}

func (a *fakeAudio) Generate(_ context.Context, prompt string, duration float64) ([]byte, error) {
	a.calls = append(a.calls, audioCall{prompt, duration})
	if a.err != nil {
		return nil, a.err
	}
	return []byte("ID3\x04\x00audio"), nil
}

type fakeAnalyzer struct {
	owner string
	req   *model.AnalysisRequest
	err   error
}

func (a *fakeAnalyzer) Analyze(_ context.Context, owner string, req *model.AnalysisRequest) (*model.AnalysisResult, error) {
	a.owner, a.req = owner, req
	if a.err != nil {
		return nil, a.err
	}
	return &model.AnalysisResult{
		Scene:  req.Scene,
		Prompt: model.NewMusicPrompt(req.Scene.Id, "Tense strings.", "A dark, tense scene."),
	}, nil
}

type fakeConversation struct {
	history []*model.ChatTurn
	message string
}

func (c *fakeConversation) Reply(_ context.Context, history []*model.ChatTurn, message string) (string, error) {
	c.history, c.message = history, message
	return "Happy to help.", nil
}

type chatFixture struct {
	repo         *test.MemoryRepository
	objects      *test.MemoryObjectStore
	audio        *fakeAudio
	analyzer     *fakeAnalyzer
	conversation *fakeConversation
	service      *services.ChatService
	video        *model.Video
	scenes       []*model.Scene
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	ctx := context.Background()
	f := &chatFixture{
		repo:         test.NewMemoryRepository(),
		objects:      test.NewMemoryObjectStore(),
		audio:        &fakeAudio{},
		analyzer:     &fakeAnalyzer{},
		conversation: &fakeConversation{},
	}
	t.Cleanup(f.objects.Close)

	f.video = model.NewVideo("u1", "p1", "films/a.mp4")
	require.NoError(t, f.repo.CreateVideo(ctx, f.video))
	now := time.Now()
	for i, bounds := range [][2]float64{{0, 4}, {4, 30}} {
		scene, err := model.NewScene(f.video, i, bounds[0], bounds[1], "b1")
		require.NoError(t, err)
		scene.CreateTime = now
		require.NoError(t, f.repo.CreateScene(ctx, scene))
		f.scenes = append(f.scenes, scene)
	}
	f.service = services.NewChatService(f.repo, nil, f.audio, f.objects, f.analyzer, f.conversation, 10, time.Minute)
	return f
}

func (f *chatFixture) turns(t *testing.T) []*model.ChatTurn {
	turns, err := f.repo.ListChatTurns(context.Background(), "u1", "p1", 100)
	require.NoError(t, err)
	return turns
}

func TestChatGenerateMusic(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.CreateMusicPrompt(ctx, model.NewMusicPrompt(f.scenes[0].Id, "Epic orchestral score.", "")))

	reply, err := f.service.Handle(ctx, "u1", "p1", "generate / 1 - add strings")
	require.NoError(t, err)
	assert.Equal(t, "generate_music", reply.Intent)
	assert.Equal(t, intent.Acknowledgment, reply.Reply)
	assert.Equal(t, f.scenes[0].Id, reply.SceneId)

	require.Len(t, f.audio.calls, 1)
	assert.Equal(t, "Epic orchestral score. Featuring strings.", f.audio.calls[0].prompt)
	assert.Equal(t, 10.0, f.audio.calls[0].duration, "short scenes get the minimum length")

	require.NotNil(t, reply.Track)
	key := regexp.MustCompile(`^users/u1/projects/p1/scenes/` + f.scenes[0].Id + `/tracks/[0-9a-f-]{36}\.mp3$`)
	assert.Regexp(t, key, reply.Track.MediaKey)
	assert.Equal(t, "audio/mpeg", f.objects.ContentType(reply.Track.MediaKey))
	assert.NotEmpty(t, reply.MediaURL)

	stored, err := f.repo.LatestTrack(ctx, f.scenes[0].Id)
	require.NoError(t, err)
	assert.Equal(t, reply.Track.Id, stored.Id)
	assert.Equal(t, model.TrackKindMusic, stored.Kind)

	turns := f.turns(t)
	require.Len(t, turns, 2)
	assert.Equal(t, model.RoleUser, turns[0].Role)
	assert.Equal(t, model.RoleAssistant, turns[1].Role)
	assert.Equal(t, intent.Acknowledgment, turns[1].Content)
	assert.Equal(t, f.scenes[0].Id, turns[1].SceneId)
}

func TestChatLongSceneUsesSceneLength(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.service.Handle(context.Background(), "u1", "p1", "generate / 2 - slower")
	require.NoError(t, err)
	require.Len(t, f.audio.calls, 1)
	assert.Equal(t, 26.0, f.audio.calls[0].duration)
	assert.Equal(t, intent.FallbackPrompt+" Slower tempo.", f.audio.calls[0].prompt)
}

func TestChatSoundEffect(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	reply, err := f.service.Handle(ctx, "u1", "p1", "add a sound effect of thunder to scene two")
	require.NoError(t, err)
	assert.Equal(t, "sound_effect", reply.Intent)
	require.NotNil(t, reply.Track)
	assert.Equal(t, model.TrackKindSoundEffect, reply.Track.Kind)
	assert.Equal(t, f.scenes[1].Id, reply.Track.SceneId)

	reply, err = f.service.Handle(ctx, "u1", "p1", "a sound effect of rain")
	require.NoError(t, err)
	assert.Nil(t, reply.Track)
	assert.Empty(t, reply.SceneId)
	assert.Equal(t, intent.Acknowledgment, reply.Reply)
	assert.NotEmpty(t, reply.MediaURL)

	var effects int
	for _, k := range f.objects.Keys() {
		if regexp.MustCompile(`^users/u1/projects/p1/effects/[0-9a-f-]{36}\.mp3$`).MatchString(k) {
			effects++
		}
	}
	assert.Equal(t, 1, effects)
}

func TestChatAnalyzeScene(t *testing.T) {
	f := newChatFixture(t)

	reply, err := f.service.Handle(context.Background(), "u1", "p1", "analyze scene two")
	require.NoError(t, err)
	assert.Equal(t, "analyze_scene", reply.Intent)
	assert.Equal(t, "A dark, tense scene. Suggested score: Tense strings.", reply.Reply)
	require.NotNil(t, reply.Analysis)
	assert.Equal(t, "u1", f.analyzer.owner)
	assert.Equal(t, f.scenes[1].Id, f.analyzer.req.Scene.Id)
	assert.Equal(t, f.video.Id, f.analyzer.req.Video.Id)
	assert.Empty(t, f.audio.calls)
}

func TestChatAnalysisFailureApologizes(t *testing.T) {
	f := newChatFixture(t)
	f.analyzer.err = errors.New("vision service unavailable")

	reply, err := f.service.Handle(context.Background(), "u1", "p1", "analyze scene 1")
	require.NoError(t, err)
	assert.Equal(t, services.AnalysisApology, reply.Reply)
	assert.Nil(t, reply.Analysis)

	turns := f.turns(t)
	require.Len(t, turns, 2)
	assert.Equal(t, services.AnalysisApology, turns[1].Content)
}

func TestChatFreeChatSeesPriorHistory(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.service.Handle(ctx, "u1", "p1", "hello there")
	require.NoError(t, err)
	assert.Empty(t, f.conversation.history)

	reply, err := f.service.Handle(ctx, "u1", "p1", "what about the pacing?")
	require.NoError(t, err)
	assert.Equal(t, "free_chat", reply.Intent)
	assert.Equal(t, "Happy to help.", reply.Reply)
	assert.Equal(t, "what about the pacing?", f.conversation.message)
	require.Len(t, f.conversation.history, 2)
	assert.Equal(t, "hello there", f.conversation.history[0].Content)
	assert.Equal(t, "Happy to help.", f.conversation.history[1].Content)
}

func TestChatAudioFailureIsReturned(t *testing.T) {
	f := newChatFixture(t)
	f.audio.err = &services.AudioServiceError{Status: 429, Message: "quota exceeded"}

	_, err := f.service.Handle(context.Background(), "u1", "p1", "generate / 1 - louder")
	var serviceErr *services.AudioServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, 429, serviceErr.Status)
	assert.Empty(t, f.objects.Keys())

	_, err = f.repo.LatestTrack(context.Background(), f.scenes[0].Id)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Len(t, f.turns(t), 1, "only the user turn is stored")
}

func TestChatStoreFailure(t *testing.T) {
	f := newChatFixture(t)
	f.repo.Err = errors.New("store down")

	_, err := f.service.Handle(context.Background(), "u1", "p1", "hello")
	assert.ErrorContains(t, err, "store down")
}

func TestChatOtherOwnerSeesNothing(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.service.Handle(ctx, "u1", "p1", "hello there")
	require.NoError(t, err)

	reply, err := f.service.Handle(ctx, "intruder", "p1", "generate / 1 - louder")
	require.NoError(t, err)
	assert.Equal(t, "free_chat", reply.Intent)
	assert.Nil(t, reply.Track)
	assert.Empty(t, reply.SceneId)
	assert.Empty(t, f.audio.calls)
	assert.Empty(t, f.conversation.history, "the other owner's turns are not shared")

	_, err = f.repo.LatestTrack(ctx, f.scenes[0].Id)
	assert.ErrorIs(t, err, model.ErrNotFound)
	for _, k := range f.objects.Keys() {
		assert.NotContains(t, k, "users/u1/")
	}

	assert.Len(t, f.turns(t), 2, "u1 keeps only its own turns")
	theirs, err := f.repo.ListChatTurns(ctx, "intruder", "p1", 100)
	require.NoError(t, err)
	assert.Len(t, theirs, 2)
}
