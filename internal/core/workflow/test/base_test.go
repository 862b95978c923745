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

// Package workflow_test runs the pipelines end to end against in-memory
// stores, a fake video tool and a fake vision model.
package workflow_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/cloud"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/workflow"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/telemetry"
	test "github.com/jaycherian/gcp-go-scene-scoring/internal/testutil"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/workspace"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

const tName = "github.com/jaycherian/gcp-go-scene-scoring/tests/workflow"

var (
	ctx    context.Context
	config *cloud.Config

	tracer = otel.Tracer(tName)
	logger = otelslog.NewLogger(tName)
)

func TestMain(m *testing.M) {
	var cancel context.CancelFunc
	ctx, cancel = context.WithCancel(context.Background())

	loaded := *test.GetConfig()
	config = &loaded
	config.Pipeline.CutPacingMillis = 1
	config.Pipeline.AnalysisWorkers = 2

	if _, err := telemetry.SetupLogging("warn", ""); err != nil {
		panic(err)
	}
	shutdown, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		panic(err)
	}
	logger.Info("completed test setup")

	exitCode := m.Run()

	if err := shutdown(ctx); err != nil {
		logger.Error("failed to shutdown telemetry", "error", err)
	}
	cancel()
	os.Exit(exitCode)
}

// mp4Source is a minimal ISO media header followed by padding.
var mp4Source = append([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00}, make([]byte, 256)...)

type fixture struct {
	workspaces *workspace.Manager
	tool       *test.FakeVideoTool
	vision     *test.FakeVision
	uploads    *test.MemoryObjectStore
	media      *test.MemoryObjectStore
	repo       *test.MemoryRepository
	components *workflow.Components
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	manager, err := workspace.NewManager(t.TempDir(), time.Hour)
	require.NoError(t, err)
	f := &fixture{
		workspaces: manager,
		tool:       &test.FakeVideoTool{Duration: 23},
		vision:     &test.FakeVision{Text: "A dark, tense close-up in deep red."},
		uploads:    test.NewMemoryObjectStore(),
		media:      test.NewMemoryObjectStore(),
		repo:       test.NewMemoryRepository(),
	}
	t.Cleanup(func() {
		f.uploads.Close()
		f.media.Close()
	})
	f.components = &workflow.Components{
		Workspaces: manager,
		Tool:       f.tool,
		Vision:     f.vision,
		Uploads:    f.uploads,
		Media:      f.media,
		Repository: f.repo,
	}
	require.NoError(t, f.uploads.Put(context.Background(), "films/a.mp4", mp4Source, "video/mp4"))
	return f
}

// assertReleased checks that no workspace outlived its run.
func (f *fixture) assertReleased(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.workspaces.Root())
	require.NoError(t, err)
	require.Empty(t, entries)
}
