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

package test

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
)

// MemoryRepository is an in-memory backing store. Records are kept in
// insertion order.
type MemoryRepository struct {
	mu      sync.Mutex
	videos  []*model.Video
	scenes  []*model.Scene
	frames  []*model.FrameAnalysis
	prompts []*model.MusicPrompt
	tracks  []*model.Track
	chat    []*model.ChatTurn

	// Err, when set, fails every call.
	Err error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Close() error { return nil }

func (r *MemoryRepository) CreateVideo(_ context.Context, video *model.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	v := *video
	r.videos = append(r.videos, &v)
	return nil
}

func (r *MemoryRepository) UpdateVideoDuration(_ context.Context, id string, seconds float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	for _, v := range r.videos {
		if v.Id == id {
			v.DurationSeconds = seconds
			return nil
		}
	}
	return fmt.Errorf("video %s: %w", id, model.ErrNotFound)
}

func (r *MemoryRepository) GetVideo(_ context.Context, id string) (*model.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, v := range r.videos {
		if v.Id == id {
			out := *v
			return &out, nil
		}
	}
	return nil, fmt.Errorf("video %s: %w", id, model.ErrNotFound)
}

func (r *MemoryRepository) CreateScene(_ context.Context, scene *model.Scene) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	s := *scene
	r.scenes = append(r.scenes, &s)
	return nil
}

func (r *MemoryRepository) GetScene(_ context.Context, id string) (*model.Scene, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, s := range r.scenes {
		if s.Id == id {
			out := *s
			return &out, nil
		}
	}
	return nil, fmt.Errorf("scene %s: %w", id, model.ErrNotFound)
}

func (r *MemoryRepository) ListScenes(_ context.Context, projectId string) ([]*model.Scene, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]*model.Scene, 0)
	for _, s := range r.scenes {
		if s.ProjectId == projectId {
			c := *s
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreateTime.Equal(out[j].CreateTime) {
			return out[i].CreateTime.Before(out[j].CreateTime)
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out, nil
}

func (r *MemoryRepository) CreateFrameAnalyses(_ context.Context, frames []*model.FrameAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	for _, f := range frames {
		c := *f
		r.frames = append(r.frames, &c)
	}
	return nil
}

func (r *MemoryRepository) ListFrameAnalyses(_ context.Context, sceneId string) ([]*model.FrameAnalysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]*model.FrameAnalysis, 0)
	for _, f := range r.frames {
		if f.SceneId == sceneId {
			c := *f
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (r *MemoryRepository) CreateMusicPrompt(_ context.Context, prompt *model.MusicPrompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	c := *prompt
	r.prompts = append(r.prompts, &c)
	return nil
}

func (r *MemoryRepository) LatestMusicPrompt(_ context.Context, sceneId string) (*model.MusicPrompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for i := len(r.prompts) - 1; i >= 0; i-- {
		if r.prompts[i].SceneId == sceneId {
			c := *r.prompts[i]
			return &c, nil
		}
	}
	return nil, fmt.Errorf("music prompt for scene %s: %w", sceneId, model.ErrNotFound)
}

func (r *MemoryRepository) CreateTrack(_ context.Context, track *model.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	c := *track
	r.tracks = append(r.tracks, &c)
	return nil
}

func (r *MemoryRepository) LatestTrack(_ context.Context, sceneId string) (*model.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for i := len(r.tracks) - 1; i >= 0; i-- {
		if r.tracks[i].SceneId == sceneId {
			c := *r.tracks[i]
			return &c, nil
		}
	}
	return nil, fmt.Errorf("track for scene %s: %w", sceneId, model.ErrNotFound)
}

func (r *MemoryRepository) AppendChatTurn(_ context.Context, turn *model.ChatTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	c := *turn
	r.chat = append(r.chat, &c)
	return nil
}

func (r *MemoryRepository) ListChatTurns(_ context.Context, ownerId string, projectId string, limit int) ([]*model.ChatTurn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]*model.ChatTurn, 0)
	for _, t := range r.chat {
		if t.ProjectId == projectId && t.OwnerId == ownerId {
			c := *t
			out = append(out, &c)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
