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

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
)

// ProjectStats summarizes how far a project's scenes have come.
type ProjectStats struct {
	Scenes   int `json:"scenes"`
	Cut      int `json:"cut"`      // Scenes with their own media.
	Analyzed int `json:"analyzed"` // Scenes with a music prompt.
	Scored   int `json:"scored"`   // Scenes with a generated track.
}

// Dashboard adds GET /stats to a project group.
func (s *Server) Dashboard(r *gin.RouterGroup) {
	stats := r.Group("/stats")
	{
		stats.GET("", func(c *gin.Context) {
			ctx := c.Request.Context()
			scenes, err := s.ownedScenes(c, c.Param("project"))
			if err != nil {
				respondError(c, err)
				return
			}

			out := ProjectStats{Scenes: len(scenes)}
			for _, scene := range scenes {
				if !scene.IsWholeVideo() {
					out.Cut++
				}
				_, err := s.Repository.LatestMusicPrompt(ctx, scene.Id)
				switch {
				case err == nil:
					out.Analyzed++
				case !errors.Is(err, model.ErrNotFound):
					respondError(c, err)
					return
				}
				_, err = s.Repository.LatestTrack(ctx, scene.Id)
				switch {
				case err == nil:
					out.Scored++
				case !errors.Is(err, model.ErrNotFound):
					respondError(c, err)
					return
				}
			}
			c.JSON(http.StatusOK, out)
		})
	}
}
