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

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/api"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/commands"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/services"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-scene-scoring/internal/testutil"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/workspace"
)

var mp4Source = append([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00}, make([]byte, 256)...)

type fixture struct {
	server  *api.Server
	engine  *gin.Engine
	uploads *test.MemoryObjectStore
	media   *test.MemoryObjectStore
	repo    *test.MemoryRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager, err := workspace.NewManager(t.TempDir(), time.Hour)
	require.NoError(t, err)
	f := &fixture{
		uploads: test.NewMemoryObjectStore(),
		media:   test.NewMemoryObjectStore(),
		repo:    test.NewMemoryRepository(),
	}
	t.Cleanup(func() {
		f.uploads.Close()
		f.media.Close()
	})

	config := *test.GetConfig()
	config.Pipeline.CutPacingMillis = 1
	components := &workflow.Components{
		Workspaces: manager,
		Tool:       &test.FakeVideoTool{Duration: 23},
		Vision:     &test.FakeVision{Text: "A dark, tense close-up in deep red."},
		Uploads:    f.uploads,
		Media:      f.media,
		Repository: f.repo,
	}
	analysis := workflow.NewAnalysisWorkflow(&config, components)

	f.server = &api.Server{
		Repository:     f.repo,
		Uploads:        f.uploads,
		Media:          f.media,
		Segmenter:      workflow.NewSegmentationWorkflow(&config, components, nil),
		Analyzer:       analysis,
		Chat:           services.NewChatService(f.repo, nil, nil, f.media, analysis, nil, 10, time.Minute),
		URLTTL:         time.Minute,
		MaxUploadBytes: 1 << 20,
	}
	f.engine = gin.New()
	f.server.Register(f.engine.Group("/api/v1"))
	return f
}

func (f *fixture) do(t *testing.T, method string, path string, owner string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if len(body) > 0 {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(owner) > 0 {
		req.Header.Set(api.HeaderUser, owner)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *fixture) postFile(t *testing.T, owner string, project string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "take-1.mp4")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/"+project+"/videos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(api.HeaderUser, owner)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *fixture) upload(t *testing.T, owner string, project string) *model.Video {
	t.Helper()
	w := f.postFile(t, owner, project, mp4Source)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var video model.Video
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &video))
	return &video
}

func (f *fixture) cut(t *testing.T, owner string, video *model.Video, body string) *model.SegmentationResult {
	t.Helper()
	w := f.do(t, http.MethodPost, fmt.Sprintf("/projects/%s/videos/%s/scenes", video.ProjectId, video.Id), owner, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result model.SegmentationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return &result
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRequiresOwner(t *testing.T) {
	f := newFixture(t)
	for _, owner := range []string{"", "../etc", "a b"} {
		w := f.do(t, http.MethodGet, "/projects/p1/scenes", owner, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, owner)
	}
}

func TestUploadCutAndStream(t *testing.T) {
	f := newFixture(t)

	video := f.upload(t, "u1", "p1")
	assert.Regexp(t, `^users/u1/projects/p1/videos/[0-9a-f-]{36}\.mp4$`, video.MediaKey)
	assert.Equal(t, "video/mp4", video.MIMEType)
	assert.Equal(t, "video/mp4", f.uploads.ContentType(video.MediaKey))

	result := f.cut(t, "u1", video, `{"cuts": [[0, 4], [4, 10]]}`)
	require.Len(t, result.Scenes, 2)
	assert.Empty(t, result.Warnings)

	listed := decode[[]*model.Scene](t, f.do(t, http.MethodGet, "/projects/p1/scenes", "u1", ""))
	require.Len(t, listed, 2)
	assert.Equal(t, result.Scenes[0].Id, listed[0].Id)

	scene := result.Scenes[1]
	w := f.do(t, http.MethodGet, "/scenes/"+scene.Id+"/stream", "u1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stream := decode[api.StreamResponse](t, w)
	assert.Zero(t, stream.Offset)
	assert.Equal(t, 6.0, stream.Duration)

	resp, err := http.Get(stream.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	want, err := f.media.Get(context.Background(), scene.MediaKey)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	stats := decode[api.ProjectStats](t, f.do(t, http.MethodGet, "/projects/p1/stats", "u1", ""))
	assert.Equal(t, api.ProjectStats{Scenes: 2, Cut: 2}, stats)
}

func TestWholeVideoStreamsParent(t *testing.T) {
	f := newFixture(t)
	video := f.upload(t, "u1", "p1")

	result := f.cut(t, "u1", video, "")
	require.Len(t, result.Scenes, 1)
	scene := result.Scenes[0]
	assert.True(t, scene.IsWholeVideo())

	stream := decode[api.StreamResponse](t, f.do(t, http.MethodGet, "/scenes/"+scene.Id+"/stream", "u1", ""))
	assert.Equal(t, 23.0, stream.Duration)
	assert.Contains(t, stream.URL, url.PathEscape(video.MediaKey))
}

func TestCutRejectsMalformedRequests(t *testing.T) {
	f := newFixture(t)
	video := f.upload(t, "u1", "p1")
	path := fmt.Sprintf("/projects/p1/videos/%s/scenes", video.Id)

	for _, body := range []string{`{"cuts": [[5, 2]]}`, `{"cuts": [[1, 2, 3]]}`, `{"cuts": "soon"}`, `{"cuts":`} {
		w := f.do(t, http.MethodPost, path, "u1", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	scenes, err := f.repo.ListScenes(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, scenes)

	w := f.do(t, http.MethodPost, "/projects/p2/videos/"+video.Id+"/scenes", "u1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOtherOwnersSeeNothing(t *testing.T) {
	f := newFixture(t)
	video := f.upload(t, "u1", "p1")
	scene := f.cut(t, "u1", video, `{"cuts": [[0, 4]]}`).Scenes[0]

	w := f.do(t, http.MethodPost, fmt.Sprintf("/projects/p1/videos/%s/scenes", video.Id), "u2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	listed := decode[[]*model.Scene](t, f.do(t, http.MethodGet, "/projects/p1/scenes", "u2", ""))
	assert.Empty(t, listed)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/scenes/"+scene.Id+"/stream", "u2", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/scenes/"+scene.Id+"/analysis", "u2", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/scenes/missing/stream", "u1", "").Code)
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t)

	w := f.postFile(t, "u1", "p1", []byte("this is a screenplay, not a video"))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = f.do(t, http.MethodPost, "/projects/p1/videos", "u1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.server.MaxUploadBytes = 100
	w = f.postFile(t, "u1", "p1", mp4Source)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	f.server.MaxUploadBytes = 0
	f.uploads.FailPut = true
	w = f.postFile(t, "u1", "p1", mp4Source)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Empty(t, f.uploads.Keys())
}

func TestAnalyzeSceneWithScript(t *testing.T) {
	f := newFixture(t)
	video := f.upload(t, "u1", "p1")
	scene := f.cut(t, "u1", video, `{"cuts": [[0, 12]]}`).Scenes[0]

	w := f.do(t, http.MethodPost, "/scenes/"+scene.Id+"/analysis", "u1", `{"script": {"overall_mood": "mournful"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[model.AnalysisResult](t, w)

	require.Len(t, result.Frames, 3)
	for i, frame := range result.Frames {
		assert.Equal(t, float64(5*i), frame.Timestamp)
	}
	assert.Equal(t, "tense", result.Profile.Mood)
	require.NotNil(t, result.Prompt)
	assert.Contains(t, result.Prompt.Prompt, "Narrative mood: mournful.")

	stats := decode[api.ProjectStats](t, f.do(t, http.MethodGet, "/projects/p1/stats", "u1", ""))
	assert.Equal(t, 1, stats.Analyzed)
	assert.Zero(t, stats.Scored)
}

func TestChat(t *testing.T) {
	f := newFixture(t)
	video := f.upload(t, "u1", "p1")
	f.cut(t, "u1", video, `{"cuts": [[0, 8]]}`)

	w := f.do(t, http.MethodPost, "/projects/p1/chat", "u1", `{"message": "analyze scene 1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reply := decode[services.ChatReply](t, w)
	assert.Equal(t, "analyze_scene", reply.Intent)
	assert.NotEmpty(t, reply.Reply)
	require.NotNil(t, reply.Analysis)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/projects/p1/chat", "u1", `{}`).Code)
}

func TestStatusOf(t *testing.T) {
	tests := map[error]int{
		fmt.Errorf("x: %w", model.ErrMalformedInput):       http.StatusBadRequest,
		fmt.Errorf("x: %w", model.ErrInvalidCut):           http.StatusBadRequest,
		fmt.Errorf("x: %w", model.ErrNotFound):             http.StatusNotFound,
		fmt.Errorf("x: %w", commands.ErrSourceUnavailable): http.StatusFailedDependency,
		fmt.Errorf("x: %w", context.DeadlineExceeded):      http.StatusGatewayTimeout,
		errors.New("boom"):                                 http.StatusInternalServerError,
	}
	for err, want := range tests {
		assert.Equal(t, want, api.StatusOf(err), err.Error())
	}
}
