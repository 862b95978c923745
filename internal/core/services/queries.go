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

// BigQuery statements. The %s placeholder is the fully qualified table name;
// values are always bound as named parameters.
const (
	QryFindById = "SELECT * FROM `%s` WHERE id = @id LIMIT 1"

	QryUpdateVideoDuration = "UPDATE `%s` SET duration_seconds = @duration_seconds WHERE id = @id"

	QryListScenes = "SELECT * FROM `%s` WHERE project_id = @project_id ORDER BY create_time, sequence"

	QryListFrames = "SELECT * FROM `%s` WHERE scene_id = @scene_id ORDER BY timestamp_seconds"

	// QryLatestForScene serves both music prompts and tracks.
	QryLatestForScene = "SELECT * FROM `%s` WHERE scene_id = @scene_id ORDER BY create_time DESC LIMIT 1"

	QryRecentChat = "SELECT * FROM (SELECT * FROM `%s` WHERE project_id = @project_id AND owner_id = @owner_id ORDER BY create_time DESC LIMIT @limit) ORDER BY create_time"
)

// SQLite schema and statements.
const (
	sqliteSchema = `
CREATE TABLE IF NOT EXISTS videos (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	media_key TEXT NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	duration_seconds REAL NOT NULL DEFAULT 0,
	create_time TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS scenes (
	id TEXT PRIMARY KEY,
	video_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	start_seconds REAL NOT NULL,
	end_seconds REAL NOT NULL CHECK (end_seconds > start_seconds),
	media_key TEXT NOT NULL DEFAULT '',
	batch_id TEXT NOT NULL DEFAULT '',
	create_time TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS scenes_project ON scenes (project_id, create_time, sequence);
CREATE TABLE IF NOT EXISTS frame_analyses (
	id TEXT PRIMARY KEY,
	scene_id TEXT NOT NULL,
	timestamp_seconds REAL NOT NULL,
	lighting TEXT NOT NULL,
	camera_angle TEXT NOT NULL,
	shot_type TEXT NOT NULL,
	mood TEXT NOT NULL,
	dominant_color TEXT NOT NULL,
	emotion_snippet TEXT NOT NULL,
	raw_text TEXT NOT NULL,
	create_time TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS frame_analyses_scene ON frame_analyses (scene_id, timestamp_seconds);
CREATE TABLE IF NOT EXISTS music_prompts (
	id TEXT PRIMARY KEY,
	scene_id TEXT NOT NULL,
	prompt TEXT NOT NULL,
	summary TEXT NOT NULL,
	create_time TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS tracks (
	id TEXT PRIMARY KEY,
	scene_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	prompt TEXT NOT NULL,
	media_key TEXT NOT NULL,
	duration_seconds REAL NOT NULL,
	create_time TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS chat_turns (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	scene_id TEXT NOT NULL DEFAULT '',
	create_time TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS chat_turns_project ON chat_turns (project_id, owner_id, create_time);
`

	sqlInsertVideo = `INSERT INTO videos (id, project_id, owner_id, media_key, mime_type, duration_seconds, create_time)
VALUES (:id, :project_id, :owner_id, :media_key, :mime_type, :duration_seconds, :create_time)`
	sqlGetVideo            = `SELECT * FROM videos WHERE id = ?`
	sqlUpdateVideoDuration = `UPDATE videos SET duration_seconds = ? WHERE id = ?`

	sqlInsertScene = `INSERT INTO scenes (id, video_id, project_id, owner_id, sequence, start_seconds, end_seconds, media_key, batch_id, create_time)
VALUES (:id, :video_id, :project_id, :owner_id, :sequence, :start_seconds, :end_seconds, :media_key, :batch_id, :create_time)`
	sqlGetScene    = `SELECT * FROM scenes WHERE id = ?`
	sqlListScenes  = `SELECT * FROM scenes WHERE project_id = ? ORDER BY create_time, sequence, rowid`
	sqlInsertFrame = `INSERT INTO frame_analyses (id, scene_id, timestamp_seconds, lighting, camera_angle, shot_type, mood, dominant_color, emotion_snippet, raw_text, create_time)
VALUES (:id, :scene_id, :timestamp_seconds, :lighting, :camera_angle, :shot_type, :mood, :dominant_color, :emotion_snippet, :raw_text, :create_time)`
	sqlListFrames = `SELECT * FROM frame_analyses WHERE scene_id = ? ORDER BY timestamp_seconds, rowid`

	sqlInsertPrompt = `INSERT INTO music_prompts (id, scene_id, prompt, summary, create_time)
VALUES (:id, :scene_id, :prompt, :summary, :create_time)`
	sqlLatestPrompt = `SELECT * FROM music_prompts WHERE scene_id = ? ORDER BY create_time DESC, rowid DESC LIMIT 1`

	sqlInsertTrack = `INSERT INTO tracks (id, scene_id, kind, prompt, media_key, duration_seconds, create_time)
VALUES (:id, :scene_id, :kind, :prompt, :media_key, :duration_seconds, :create_time)`
	sqlLatestTrack = `SELECT * FROM tracks WHERE scene_id = ? ORDER BY create_time DESC, rowid DESC LIMIT 1`

	sqlInsertChat = `INSERT INTO chat_turns (id, project_id, owner_id, role, content, scene_id, create_time)
VALUES (:id, :project_id, :owner_id, :role, :content, :scene_id, :create_time)`
	sqlRecentChat = `SELECT * FROM chat_turns WHERE project_id = ? AND owner_id = ? ORDER BY create_time DESC, rowid DESC LIMIT ?`
)
