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
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/cloud"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// BigQueryRepository stores records with streaming inserts and reads them
// with parameterized queries.
type BigQueryRepository struct {
	client *bigquery.Client
	tables cloud.BigQueryDataSource
}

func NewBigQueryRepository(client *bigquery.Client, tables cloud.BigQueryDataSource) *BigQueryRepository {
	return &BigQueryRepository{client: client, tables: tables}
}

// Close is a no-op; the client belongs to cloud.ServiceClients.
func (r *BigQueryRepository) Close() error { return nil }

// fqn returns the table name in standard SQL form, project.dataset.table.
func (r *BigQueryRepository) fqn(table string) string {
	return strings.Replace(r.client.Dataset(r.tables.DatasetName).Table(table).FullyQualifiedName(), ":", ".", 1)
}

// EnsureTables creates every missing table with a schema inferred from the
// model structs.
func (r *BigQueryRepository) EnsureTables(ctx context.Context) error {
	tables := map[string]interface{}{
		r.tables.VideoTable:  model.Video{},
		r.tables.SceneTable:  model.Scene{},
		r.tables.FrameTable:  model.FrameAnalysis{},
		r.tables.PromptTable: model.MusicPrompt{},
		r.tables.TrackTable:  model.Track{},
		r.tables.ChatTable:   model.ChatTurn{},
	}
	for name, row := range tables {
		schema, err := bigquery.InferSchema(row)
		if err != nil {
			return fmt.Errorf("inferring schema of %s: %w", name, err)
		}
		err = r.client.Dataset(r.tables.DatasetName).Table(name).Create(ctx, &bigquery.TableMetadata{Schema: schema})
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			continue
		}
		if err != nil {
			return fmt.Errorf("creating table %s: %w", name, err)
		}
		log.Printf("created table %s", name)
	}
	return nil
}

func (r *BigQueryRepository) insert(ctx context.Context, table string, rows interface{}) error {
	if err := r.client.Dataset(r.tables.DatasetName).Table(table).Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("bigquery insert into %s: %w", table, err)
	}
	return nil
}

func (r *BigQueryRepository) query(ctx context.Context, sql string, params ...bigquery.QueryParameter) (*bigquery.RowIterator, error) {
	q := r.client.Query(sql)
	q.Parameters = params
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("bigquery query: %w", err)
	}
	return itr, nil
}

// one loads the first row of a query into dst.
func (r *BigQueryRepository) one(ctx context.Context, dst interface{}, kind string, id string, sql string, params ...bigquery.QueryParameter) error {
	itr, err := r.query(ctx, sql, params...)
	if err != nil {
		return err
	}
	err = itr.Next(dst)
	if errors.Is(err, iterator.Done) {
		return notFound(kind, id)
	}
	return err
}

func (r *BigQueryRepository) CreateVideo(ctx context.Context, video *model.Video) error {
	return r.insert(ctx, r.tables.VideoTable, video)
}

func (r *BigQueryRepository) GetVideo(ctx context.Context, id string) (*model.Video, error) {
	out := &model.Video{}
	err := r.one(ctx, out, "video", id, fmt.Sprintf(QryFindById, r.fqn(r.tables.VideoTable)),
		bigquery.QueryParameter{Name: "id", Value: id})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateVideoDuration runs a DML statement. Rows still in the streaming
// buffer cannot be updated, so it fails for videos inserted moments ago.
func (r *BigQueryRepository) UpdateVideoDuration(ctx context.Context, id string, seconds float64) error {
	q := r.client.Query(fmt.Sprintf(QryUpdateVideoDuration, r.fqn(r.tables.VideoTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "duration_seconds", Value: seconds},
		{Name: "id", Value: id},
	}
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("bigquery update of video %s: %w", id, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("bigquery update of video %s: %w", id, err)
	}
	return status.Err()
}

func (r *BigQueryRepository) CreateScene(ctx context.Context, scene *model.Scene) error {
	return r.insert(ctx, r.tables.SceneTable, scene)
}

func (r *BigQueryRepository) GetScene(ctx context.Context, id string) (*model.Scene, error) {
	out := &model.Scene{}
	err := r.one(ctx, out, "scene", id, fmt.Sprintf(QryFindById, r.fqn(r.tables.SceneTable)),
		bigquery.QueryParameter{Name: "id", Value: id})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *BigQueryRepository) ListScenes(ctx context.Context, projectId string) ([]*model.Scene, error) {
	itr, err := r.query(ctx, fmt.Sprintf(QryListScenes, r.fqn(r.tables.SceneTable)),
		bigquery.QueryParameter{Name: "project_id", Value: projectId})
	if err != nil {
		return nil, err
	}
	out := make([]*model.Scene, 0)
	for {
		s := &model.Scene{}
		err := itr.Next(s)
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}

func (r *BigQueryRepository) CreateFrameAnalyses(ctx context.Context, frames []*model.FrameAnalysis) error {
	if len(frames) == 0 {
		return nil
	}
	return r.insert(ctx, r.tables.FrameTable, frames)
}

func (r *BigQueryRepository) ListFrameAnalyses(ctx context.Context, sceneId string) ([]*model.FrameAnalysis, error) {
	itr, err := r.query(ctx, fmt.Sprintf(QryListFrames, r.fqn(r.tables.FrameTable)),
		bigquery.QueryParameter{Name: "scene_id", Value: sceneId})
	if err != nil {
		return nil, err
	}
	out := make([]*model.FrameAnalysis, 0)
	for {
		f := &model.FrameAnalysis{}
		err := itr.Next(f)
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
}

func (r *BigQueryRepository) CreateMusicPrompt(ctx context.Context, prompt *model.MusicPrompt) error {
	return r.insert(ctx, r.tables.PromptTable, prompt)
}

func (r *BigQueryRepository) LatestMusicPrompt(ctx context.Context, sceneId string) (*model.MusicPrompt, error) {
	out := &model.MusicPrompt{}
	err := r.one(ctx, out, "music prompt for scene", sceneId, fmt.Sprintf(QryLatestForScene, r.fqn(r.tables.PromptTable)),
		bigquery.QueryParameter{Name: "scene_id", Value: sceneId})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *BigQueryRepository) CreateTrack(ctx context.Context, track *model.Track) error {
	return r.insert(ctx, r.tables.TrackTable, track)
}

func (r *BigQueryRepository) LatestTrack(ctx context.Context, sceneId string) (*model.Track, error) {
	out := &model.Track{}
	err := r.one(ctx, out, "track for scene", sceneId, fmt.Sprintf(QryLatestForScene, r.fqn(r.tables.TrackTable)),
		bigquery.QueryParameter{Name: "scene_id", Value: sceneId})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *BigQueryRepository) AppendChatTurn(ctx context.Context, turn *model.ChatTurn) error {
	return r.insert(ctx, r.tables.ChatTable, turn)
}

func (r *BigQueryRepository) ListChatTurns(ctx context.Context, ownerId string, projectId string, limit int) ([]*model.ChatTurn, error) {
	if limit <= 0 {
		limit = DefaultChatHistory
	}
	itr, err := r.query(ctx, fmt.Sprintf(QryRecentChat, r.fqn(r.tables.ChatTable)),
		bigquery.QueryParameter{Name: "project_id", Value: projectId},
		bigquery.QueryParameter{Name: "owner_id", Value: ownerId},
		bigquery.QueryParameter{Name: "limit", Value: int64(limit)})
	if err != nil {
		return nil, err
	}
	out := make([]*model.ChatTurn, 0, limit)
	for {
		t := &model.ChatTurn{}
		err := itr.Next(t)
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
}
