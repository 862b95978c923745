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

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/cloud"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/intent"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
)

// AnalysisApology is the reply when a requested scene analysis fails.
const AnalysisApology = "Sorry, I couldn't analyze that scene right now. Please try again in a moment."

// SceneAnalyzer runs the full analysis of one scene for owner.
type SceneAnalyzer interface {
	Analyze(ctx context.Context, owner string, req *model.AnalysisRequest) (*model.AnalysisResult, error)
}

// AudioGenerator produces an audio clip from a prompt.
type AudioGenerator interface {
	Generate(ctx context.Context, prompt string, durationSeconds float64) ([]byte, error)
}

// Conversation answers free chat.
type Conversation interface {
	Reply(ctx context.Context, history []*model.ChatTurn, message string) (string, error)
}

// ChatReply is what the director sees for one message.
type ChatReply struct {
	Intent   string                `json:"intent"`
	Reply    string                `json:"reply"`
	SceneId  string                `json:"scene_id,omitempty"`
	Track    *model.Track          `json:"track,omitempty"`
	MediaURL string                `json:"media_url,omitempty"`
	Analysis *model.AnalysisResult `json:"analysis,omitempty"`
}

// ChatService runs the director conversation of a project.
type ChatService struct {
	repo         SceneRepository
	dispatcher   *intent.Dispatcher
	audio        AudioGenerator
	objects      cloud.ObjectStore
	analyzer     SceneAnalyzer
	conversation Conversation
	minDuration  float64
	urlTTL       time.Duration
	historyLimit int
}

func NewChatService(repo SceneRepository, dispatcher *intent.Dispatcher, audio AudioGenerator, objects cloud.ObjectStore,
	analyzer SceneAnalyzer, conversation Conversation, minDuration float64, urlTTL time.Duration) *ChatService {
	if dispatcher == nil {
		dispatcher = intent.NewDispatcher(repo, nil)
	}
	if minDuration <= 0 {
		minDuration = MinTrackSeconds
	}
	return &ChatService{
		repo:         repo,
		dispatcher:   dispatcher,
		audio:        audio,
		objects:      objects,
		analyzer:     analyzer,
		conversation: conversation,
		minDuration:  minDuration,
		urlTTL:       urlTTL,
		historyLimit: DefaultChatHistory,
	}
}

// Handle stores the user turn, acts on the resolved intent and stores the
// assistant turn. Only the scenes and history of owner are visible. Store
// and audio failures are returned; a failed analysis becomes an apology.
func (s *ChatService) Handle(ctx context.Context, owner string, projectId string, message string) (*ChatReply, error) {
	history, err := s.repo.ListChatTurns(ctx, owner, projectId, s.historyLimit)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AppendChatTurn(ctx, model.NewChatTurn(owner, projectId, model.RoleUser, message, "")); err != nil {
		return nil, err
	}
	scenes, err := s.ownedScenes(ctx, owner, projectId)
	if err != nil {
		return nil, err
	}
	decision, err := s.dispatcher.Dispatch(ctx, message, intent.Context{ProjectId: projectId, Scenes: scenes})
	if err != nil {
		return nil, err
	}

	out := &ChatReply{Intent: decision.Intent.Name()}
	switch v := decision.Intent.(type) {
	case intent.GenerateMusic:
		out.SceneId = v.Scene.Id
		if err := s.score(ctx, out, owner, projectId, v.Scene, model.TrackKindMusic, decision.Action.Prompt); err != nil {
			return nil, err
		}
		out.Reply = decision.Reply
	case intent.SoundEffect:
		if v.Scene != nil {
			out.SceneId = v.Scene.Id
		}
		if err := s.score(ctx, out, owner, projectId, v.Scene, model.TrackKindSoundEffect, v.Description); err != nil {
			return nil, err
		}
		out.Reply = intent.Acknowledgment
	case intent.AnalyzeScene:
		out.SceneId = v.Scene.Id
		out.Reply, out.Analysis = s.analyze(ctx, owner, v.Scene)
	case intent.FreeChat:
		if out.Reply, err = s.conversation.Reply(ctx, history, message); err != nil {
			return nil, err
		}
	}

	if err := s.repo.AppendChatTurn(ctx, model.NewChatTurn(owner, projectId, model.RoleAssistant, out.Reply, out.SceneId)); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ChatService) ownedScenes(ctx context.Context, owner string, projectId string) ([]*model.Scene, error) {
	all, err := s.repo.ListScenes(ctx, projectId)
	if err != nil {
		return nil, err
	}
	scenes := make([]*model.Scene, 0, len(all))
	for _, scene := range all {
		if scene.OwnerId == owner {
			scenes = append(scenes, scene)
		}
	}
	return scenes, nil
}

// score generates audio and stores it. With a scene the clip becomes a Track
// of at least the scene's length; without one it is stored on its own.
func (s *ChatService) score(ctx context.Context, out *ChatReply, owner string, projectId string, scene *model.Scene, kind string, prompt string) error {
	duration := s.minDuration
	if scene != nil {
		duration = TrackDuration(scene.Duration(), s.minDuration)
	}
	data, err := s.audio.Generate(ctx, prompt, duration)
	if err != nil {
		return err
	}

	ext, mime := "mp3", "audio/mpeg"
	if k, err := filetype.Match(data); err == nil && k != filetype.Unknown {
		ext, mime = k.Extension, k.MIME.Value
	}

	var key string
	if scene != nil {
		track := model.NewTrack(scene.Id, kind, prompt, duration)
		key = fmt.Sprintf("users/%s/projects/%s/scenes/%s/tracks/%s.%s", scene.OwnerId, scene.ProjectId, scene.Id, track.Id, ext)
		track.MediaKey = key
		out.Track = track
	} else {
		key = fmt.Sprintf("users/%s/projects/%s/effects/%s.%s", owner, projectId, uuid.NewString(), ext)
	}

	if err := s.objects.Put(ctx, key, data, mime); err != nil {
		return err
	}
	if out.Track != nil {
		if err := s.repo.CreateTrack(ctx, out.Track); err != nil {
			return err
		}
	}
	if url, err := s.objects.SignedURL(ctx, key, s.urlTTL); err == nil {
		out.MediaURL = url
	} else {
		slog.Warn("signing track url failed", "key", key, "error", err)
	}
	return nil
}

func (s *ChatService) analyze(ctx context.Context, owner string, scene *model.Scene) (string, *model.AnalysisResult) {
	req := &model.AnalysisRequest{Scene: scene}
	if video, err := s.repo.GetVideo(ctx, scene.VideoId); err == nil {
		req.Video = video
	}
	result, err := s.analyzer.Analyze(ctx, owner, req)
	if err != nil || result == nil || result.Prompt == nil {
		slog.Error("scene analysis from chat failed", "scene", scene.Id, "error", err)
		return AnalysisApology, nil
	}
	return fmt.Sprintf("%s Suggested score: %s", result.Prompt.Summary, result.Prompt.Prompt), result
}
