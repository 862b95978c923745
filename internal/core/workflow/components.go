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

// Package workflow assembles commands into the two pipelines of the service:
// segmentation of an uploaded video into scenes, and analysis of one scene
// into a music prompt. Both run inside a workspace acquired for the owner
// and released when the run ends.
package workflow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/cloud"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/commands"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/cor"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/services"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/workspace"
)

// Components are the collaborators the pipelines are built from.
type Components struct {
	Workspaces *workspace.Manager
	Tool       commands.VideoTool
	Vision     commands.VisionClient
	Uploads    cloud.ObjectStore // Source videos.
	Media      cloud.ObjectStore // Scene cuts and tracks.
	Repository services.SceneRepository
}

// NewComponents wires the production collaborators from config and clients.
func NewComponents(config *cloud.Config, clients *cloud.ServiceClients, repo services.SceneRepository, manager *workspace.Manager) (*Components, error) {
	uploads, err := cloud.NewGCSObjectStore(clients.StorageClient, clients.IAMClient, config.Storage.UploadBucket,
		config.Application.SignerServiceAccountEmail, config.Storage.Timeout(), config.Storage.SignedURLCacheSize)
	if err != nil {
		return nil, err
	}
	media, err := cloud.NewGCSObjectStore(clients.StorageClient, clients.IAMClient, config.Storage.MediaBucket,
		config.Application.SignerServiceAccountEmail, config.Storage.Timeout(), config.Storage.SignedURLCacheSize)
	if err != nil {
		return nil, err
	}
	vision, ok := clients.AgentModels[config.Pipeline.VisionModel]
	if !ok {
		return nil, fmt.Errorf("no agent model named %s", config.Pipeline.VisionModel)
	}
	p := config.Pipeline
	return &Components{
		Workspaces: manager,
		Tool:       commands.NewFFMpegTool(p.FFMpegPath, p.FrameWidth, p.FrameHeight, p.SubprocessTimeout()),
		Vision:     cloud.NewGeminiVision(vision, config.PromptTemplates.FramePrompt, p.VisionTimeout()),
		Uploads:    uploads,
		Media:      media,
		Repository: repo,
	}, nil
}

// chainError joins the errors a run recorded, ordered by command name.
func chainError(context cor.Context) error {
	errs := context.GetErrors()
	if len(errs) == 0 {
		return nil
	}
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]error, 0, len(names))
	for _, name := range names {
		out = append(out, fmt.Errorf("%s: %w", name, errs[name]))
	}
	return errors.Join(out...)
}
