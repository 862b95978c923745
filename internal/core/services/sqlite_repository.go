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
	"database/sql"
	"errors"
	"fmt"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteRepository is the local store, used by the local runtime and tests.
type SQLiteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository opens path, ":memory:" included, and creates the schema.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store %s: %w", path, err)
	}
	// One connection serializes writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating sqlite schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) exec(ctx context.Context, query string, arg interface{}) error {
	if _, err := r.db.NamedExecContext(ctx, query, arg); err != nil {
		return fmt.Errorf("sqlite write: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) get(ctx context.Context, dst interface{}, kind string, id string, query string, args ...interface{}) error {
	err := r.db.GetContext(ctx, dst, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(kind, id)
	}
	if err != nil {
		return fmt.Errorf("sqlite read %s %s: %w", kind, id, err)
	}
	return nil
}

func (r *SQLiteRepository) CreateVideo(ctx context.Context, video *model.Video) error {
	return r.exec(ctx, sqlInsertVideo, video)
}

func (r *SQLiteRepository) GetVideo(ctx context.Context, id string) (*model.Video, error) {
	out := &model.Video{}
	if err := r.get(ctx, out, "video", id, sqlGetVideo, id); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateVideoDuration(ctx context.Context, id string, seconds float64) error {
	res, err := r.db.ExecContext(ctx, sqlUpdateVideoDuration, seconds, id)
	if err != nil {
		return fmt.Errorf("sqlite write: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound("video", id)
	}
	return nil
}

func (r *SQLiteRepository) CreateScene(ctx context.Context, scene *model.Scene) error {
	return r.exec(ctx, sqlInsertScene, scene)
}

func (r *SQLiteRepository) GetScene(ctx context.Context, id string) (*model.Scene, error) {
	out := &model.Scene{}
	if err := r.get(ctx, out, "scene", id, sqlGetScene, id); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLiteRepository) ListScenes(ctx context.Context, projectId string) ([]*model.Scene, error) {
	out := make([]*model.Scene, 0)
	if err := r.db.SelectContext(ctx, &out, sqlListScenes, projectId); err != nil {
		return nil, fmt.Errorf("listing scenes of %s: %w", projectId, err)
	}
	return out, nil
}

// CreateFrameAnalyses writes all frames or none.
func (r *SQLiteRepository) CreateFrameAnalyses(ctx context.Context, frames []*model.FrameAnalysis) error {
	if len(frames) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if _, err := tx.NamedExecContext(ctx, sqlInsertFrame, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("inserting frame analysis at %.1fs: %w", f.Timestamp, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) ListFrameAnalyses(ctx context.Context, sceneId string) ([]*model.FrameAnalysis, error) {
	out := make([]*model.FrameAnalysis, 0)
	if err := r.db.SelectContext(ctx, &out, sqlListFrames, sceneId); err != nil {
		return nil, fmt.Errorf("listing frame analyses of %s: %w", sceneId, err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateMusicPrompt(ctx context.Context, prompt *model.MusicPrompt) error {
	return r.exec(ctx, sqlInsertPrompt, prompt)
}

func (r *SQLiteRepository) LatestMusicPrompt(ctx context.Context, sceneId string) (*model.MusicPrompt, error) {
	out := &model.MusicPrompt{}
	if err := r.get(ctx, out, "music prompt for scene", sceneId, sqlLatestPrompt, sceneId); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLiteRepository) CreateTrack(ctx context.Context, track *model.Track) error {
	return r.exec(ctx, sqlInsertTrack, track)
}

func (r *SQLiteRepository) LatestTrack(ctx context.Context, sceneId string) (*model.Track, error) {
	out := &model.Track{}
	if err := r.get(ctx, out, "track for scene", sceneId, sqlLatestTrack, sceneId); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLiteRepository) AppendChatTurn(ctx context.Context, turn *model.ChatTurn) error {
	return r.exec(ctx, sqlInsertChat, turn)
}

func (r *SQLiteRepository) ListChatTurns(ctx context.Context, ownerId string, projectId string, limit int) ([]*model.ChatTurn, error) {
	if limit <= 0 {
		limit = DefaultChatHistory
	}
	out := make([]*model.ChatTurn, 0, limit)
	if err := r.db.SelectContext(ctx, &out, sqlRecentChat, projectId, ownerId, limit); err != nil {
		return nil, fmt.Errorf("listing chat of %s: %w", projectId, err)
	}
	// Newest first from the query; callers want reading order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
