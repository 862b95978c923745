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

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/api"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/cloud"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/intent"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/services"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/workflow"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/workspace"
)

// StateManager holds the shared dependencies of the server.
type StateManager struct {
	config       *cloud.Config
	cloud        *cloud.ServiceClients
	repository   services.SceneRepository
	workspaces   *workspace.Manager
	segmentation *workflow.SegmentationWorkflow
	analysis     *workflow.AnalysisWorkflow
	chat         *services.ChatService
	api          *api.Server
	reaper       <-chan struct{}
}

var state = &StateManager{}

// SetupOS points the configuration loader at configs/ unless the
// environment already does. The runtime defaults to "local".
func SetupOS() (err error) {
	if _, ok := os.LookupEnv(cloud.EnvConfigFilePrefix); !ok {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if _, ok := os.LookupEnv(cloud.EnvConfigRuntime); !ok {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

// GetConfig loads the configuration on first use.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup os: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load configuration: %v\n", err)
		}
		config.ApplyDefaults()
		state.config = config
	}
	return state.config
}

// InitState connects to every service, builds the workflows and the chat
// service, and starts the workspace reaper and the Pub/Sub listeners. All
// background work stops when ctx is cancelled.
func InitState(ctx context.Context) error {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	state.cloud = cloudClients

	if state.repository, err = services.NewRepository(ctx, config, cloudClients); err != nil {
		return err
	}
	if bq, ok := state.repository.(*services.BigQueryRepository); ok {
		if err := bq.EnsureTables(ctx); err != nil {
			return fmt.Errorf("preparing bigquery tables: %w", err)
		}
	}

	if state.workspaces, err = workspace.NewManager(config.Workspace.Root, config.Workspace.MaxAge()); err != nil {
		return err
	}
	components, err := workflow.NewComponents(config, cloudClients, state.repository, state.workspaces)
	if err != nil {
		return err
	}

	state.analysis = workflow.NewAnalysisWorkflow(config, components)
	var onUpload *workflow.AnalysisWorkflow
	if config.Pipeline.AnalyzeOnUpload {
		onUpload = state.analysis
	}
	state.segmentation = workflow.NewSegmentationWorkflow(config, components, onUpload)

	chatModel, ok := cloudClients.AgentModels[config.Pipeline.ChatModel]
	if !ok {
		return fmt.Errorf("no agent model named %s", config.Pipeline.ChatModel)
	}
	state.chat = services.NewChatService(
		state.repository,
		intent.NewDispatcher(state.repository, intent.NewRuleModifier()),
		services.NewAudioClient(config.Audio),
		components.Media,
		state.analysis,
		cloud.NewGeminiConversation(chatModel, config.PromptTemplates.ChatInstructions),
		config.Audio.MinDurationSeconds,
		config.Storage.SignedURLTTL(),
	)

	state.api = &api.Server{
		Repository:     state.repository,
		Uploads:        components.Uploads,
		Media:          components.Media,
		Segmenter:      state.segmentation,
		Analyzer:       state.analysis,
		Chat:           state.chat,
		URLTTL:         config.Storage.SignedURLTTL(),
		MaxUploadBytes: config.Storage.MaxUploadBytes(),
	}

	state.reaper = state.workspaces.StartReaper(ctx, config.Workspace.SweepInterval())
	return SetupListeners(ctx, cloudClients)
}

// Close releases the store and the clients.
func (s *StateManager) Close() {
	if s.repository != nil {
		if err := s.repository.Close(); err != nil {
			log.Printf("failed to close repository: %v\n", err)
		}
	}
	if s.cloud != nil {
		s.cloud.Close()
	}
}
