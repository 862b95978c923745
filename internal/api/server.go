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

// Package api defines the REST routes of the server.
//
// Every route is scoped to the caller named by the X-User-Id header. Records
// owned by someone else are reported as missing.
//
// Routes, relative to the group passed to Register:
//   - POST /projects/:project/videos: multipart upload of a source video ("file").
//   - POST /projects/:project/videos/:video/scenes: cut a video into scenes.
//   - GET  /projects/:project/scenes: list the scenes of a project.
//   - GET  /projects/:project/stats: scene, analysis and track counts.
//   - GET  /scenes/:scene/stream: signed URL of a scene's media.
//   - POST /scenes/:scene/analysis: analyze a scene, optionally with a script.
//   - POST /projects/:project/chat: one director chat message.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/cloud"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/commands"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/services"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/workspace"
)

// HeaderUser carries the caller's owner id.
const HeaderUser = "X-User-Id"

const ownerKey = "owner"

// Segmenter cuts a registered video into scenes.
type Segmenter interface {
	Segment(ctx context.Context, req *model.SegmentationRequest) (*model.SegmentationResult, error)
}

// ChatHandler answers one director message.
type ChatHandler interface {
	Handle(ctx context.Context, owner string, projectId string, message string) (*services.ChatReply, error)
}

// Server holds the collaborators of the routes.
type Server struct {
	Repository     services.SceneRepository
	Uploads        cloud.ObjectStore // Source videos.
	Media          cloud.ObjectStore // Scene cuts.
	Segmenter      Segmenter
	Analyzer       services.SceneAnalyzer
	Chat           ChatHandler
	URLTTL         time.Duration
	MaxUploadBytes int64
}

type cutRequestBody struct {
	Cuts     json.RawMessage `json:"cuts"` // [[start, end], ...]; absent for the whole video.
	Reencode bool            `json:"reencode"`
}

type analysisRequestBody struct {
	Script *model.ScriptContext `json:"script"`
}

type chatRequestBody struct {
	Message string `json:"message" binding:"required"`
}

// StreamResponse locates a scene inside the media a signed URL points at.
// Offset is non-zero only for scenes read from their parent video.
type StreamResponse struct {
	URL      string  `json:"url"`
	Offset   float64 `json:"offset"`
	Duration float64 `json:"duration"`
}

// RequireOwner rejects requests without a usable X-User-Id header.
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.GetHeader(HeaderUser)
		if !workspace.ValidOwner(owner) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + HeaderUser})
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

// Owner returns the caller accepted by RequireOwner.
func Owner(c *gin.Context) string {
	return c.GetString(ownerKey)
}

// Register adds every route to r.
func (s *Server) Register(r *gin.RouterGroup) {
	r.Use(RequireOwner())

	projects := r.Group("/projects/:project")
	{
		projects.POST("/videos", s.uploadVideo)
		projects.POST("/videos/:video/scenes", s.cutVideo)
		projects.GET("/scenes", s.listScenes)
		projects.POST("/chat", s.chat)
	}
	s.Dashboard(projects)

	scenes := r.Group("/scenes/:scene")
	{
		scenes.GET("/stream", s.stream)
		scenes.POST("/analysis", s.analyze)
	}
}

// VideoKey is the upload object key of a new source video.
func VideoKey(owner string, projectId string, extension string) string {
	return fmt.Sprintf("users/%s/projects/%s/videos/%s.%s", owner, projectId, uuid.NewString(), extension)
}

func (s *Server) uploadVideo(c *gin.Context) {
	ctx := c.Request.Context()
	owner, project := Owner(c), c.Param("project")

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	var src io.Reader = f
	if s.MaxUploadBytes > 0 {
		src = io.LimitReader(f, s.MaxUploadBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.MaxUploadBytes > 0 && int64(len(data)) > s.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds the size limit"})
		return
	}
	if !filetype.IsVideo(data) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "upload is not a recognized video"})
		return
	}
	kind, _ := filetype.Match(data)

	key := VideoKey(owner, project, kind.Extension)
	if err := s.Uploads.Put(ctx, key, data, kind.MIME.Value); err != nil {
		slog.Error("storing upload failed", "key", key, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not store the upload"})
		return
	}
	video := model.NewVideo(owner, project, key)
	video.MIMEType = kind.MIME.Value
	if err := s.Repository.CreateVideo(ctx, video); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, video)
}

func (s *Server) cutVideo(c *gin.Context) {
	ctx := c.Request.Context()
	video, ok := s.ownedVideo(c, c.Param("video"))
	if !ok {
		return
	}
	if video.ProjectId != c.Param("project") {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}

	var body cutRequestBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cuts, err := commands.ParseCuts(string(body.Cuts))
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := s.Segmenter.Segment(ctx, &model.SegmentationRequest{
		Video:      video,
		Cuts:       cuts,
		WholeVideo: len(cuts) == 0,
		Reencode:   body.Reencode,
		BatchId:    uuid.NewString(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) listScenes(c *gin.Context) {
	scenes, err := s.ownedScenes(c, c.Param("project"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scenes)
}

func (s *Server) stream(c *gin.Context) {
	ctx := c.Request.Context()
	scene, ok := s.ownedScene(c, c.Param("scene"))
	if !ok {
		return
	}

	out := StreamResponse{Duration: scene.Duration()}
	var err error
	if scene.IsWholeVideo() {
		var video *model.Video
		if video, err = s.Repository.GetVideo(ctx, scene.VideoId); err != nil {
			respondError(c, err)
			return
		}
		out.Offset = scene.Start
		out.URL, err = s.Uploads.SignedURL(ctx, video.MediaKey, s.URLTTL)
	} else {
		out.URL, err = s.Media.SignedURL(ctx, scene.MediaKey, s.URLTTL)
	}
	if err != nil {
		slog.Error("signing scene url failed", "scene", scene.Id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate streaming URL"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) analyze(c *gin.Context) {
	ctx := c.Request.Context()
	scene, ok := s.ownedScene(c, c.Param("scene"))
	if !ok {
		return
	}
	var body analysisRequestBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	video, err := s.Repository.GetVideo(ctx, scene.VideoId)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := s.Analyzer.Analyze(ctx, Owner(c), &model.AnalysisRequest{Scene: scene, Video: video, Script: body.Script})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) chat(c *gin.Context) {
	var body chatRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a message is required"})
		return
	}
	reply, err := s.Chat.Handle(c.Request.Context(), Owner(c), c.Param("project"), body.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// ownedVideo writes the error response itself when it returns false.
func (s *Server) ownedVideo(c *gin.Context, id string) (*model.Video, bool) {
	video, err := s.Repository.GetVideo(c.Request.Context(), id)
	if err == nil && video.OwnerId != Owner(c) {
		err = fmt.Errorf("video %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return video, true
}

// ownedScene writes the error response itself when it returns false.
func (s *Server) ownedScene(c *gin.Context, id string) (*model.Scene, bool) {
	scene, err := s.Repository.GetScene(c.Request.Context(), id)
	if err == nil && scene.OwnerId != Owner(c) {
		err = fmt.Errorf("scene %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return scene, true
}

func (s *Server) ownedScenes(c *gin.Context, projectId string) ([]*model.Scene, error) {
	all, err := s.Repository.ListScenes(c.Request.Context(), projectId)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Scene, 0, len(all))
	for _, scene := range all {
		if scene.OwnerId == Owner(c) {
			out = append(out, scene)
		}
	}
	return out, nil
}

// StatusOf maps pipeline errors onto HTTP status codes.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrMalformedInput), errors.Is(err, model.ErrInvalidCut):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, commands.ErrSourceUnavailable):
		return http.StatusFailedDependency
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": http.StatusText(status)})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
