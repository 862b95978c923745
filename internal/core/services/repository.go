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

// Package services contains the backing store implementations and the
// services built on top of them: the generative audio client and the
// director conversation.
package services

import (
	"context"
	"fmt"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/cloud"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
)

// ErrNotFound is returned, wrapped, by every lookup that matches nothing.
var ErrNotFound = model.ErrNotFound

// DefaultChatHistory is how many past turns are handed to the conversation model.
const DefaultChatHistory = 20

// SceneRepository is the backing store of the pipeline.
type SceneRepository interface {
	CreateVideo(ctx context.Context, video *model.Video) error
	GetVideo(ctx context.Context, id string) (*model.Video, error)
	// UpdateVideoDuration back-fills the probed length of a stored video.
	UpdateVideoDuration(ctx context.Context, id string, seconds float64) error

	CreateScene(ctx context.Context, scene *model.Scene) error
	GetScene(ctx context.Context, id string) (*model.Scene, error)
	// ListScenes orders by creation time, then sequence.
	ListScenes(ctx context.Context, projectId string) ([]*model.Scene, error)

	CreateFrameAnalyses(ctx context.Context, frames []*model.FrameAnalysis) error
	// ListFrameAnalyses orders by timestamp.
	ListFrameAnalyses(ctx context.Context, sceneId string) ([]*model.FrameAnalysis, error)

	CreateMusicPrompt(ctx context.Context, prompt *model.MusicPrompt) error
	LatestMusicPrompt(ctx context.Context, sceneId string) (*model.MusicPrompt, error)

	CreateTrack(ctx context.Context, track *model.Track) error
	LatestTrack(ctx context.Context, sceneId string) (*model.Track, error)

	AppendChatTurn(ctx context.Context, turn *model.ChatTurn) error
	// ListChatTurns returns at most limit of the latest turns of owner in
	// the project, oldest first.
	ListChatTurns(ctx context.Context, ownerId string, projectId string, limit int) ([]*model.ChatTurn, error)

	Close() error
}

// NewRepository opens the store selected in the configuration. The BigQuery
// store needs clients.BiqQueryClient.
func NewRepository(ctx context.Context, config *cloud.Config, clients *cloud.ServiceClients) (SceneRepository, error) {
	switch config.Backend.Store {
	case cloud.StoreSQLite:
		return NewSQLiteRepository(ctx, config.SQLite.Path)
	case cloud.StoreBigQuery:
		if clients == nil || clients.BiqQueryClient == nil {
			return nil, fmt.Errorf("bigquery store selected without a bigquery client")
		}
		return NewBigQueryRepository(clients.BiqQueryClient, config.BigQueryDataSource), nil
	default:
		return nil, fmt.Errorf("unknown store %q", config.Backend.Store)
	}
}

func notFound(kind string, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
