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

// Package test provides configuration helpers, sample notifications and
// in-memory fakes of the pipeline's external collaborators.
package test

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/cloud"
)

var (
	configOnce sync.Once
	config     *cloud.Config
)

// HandleErr fails t when err is set.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// SetupOS points the configuration loader at configs/.env.test.toml.
func SetupOS() (err error) {
	if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// GetConfig loads the test configuration once and applies the defaults.
func GetConfig() *cloud.Config {
	configOnce.Do(func() {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config = cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load test configuration: %v\n", err)
		}
		config.ApplyDefaults()
	})
	return config
}

// GetTestUploadMessageText returns a finalize notification for name in the
// upload bucket. Empty owner, project or cuts leave that metadata out.
func GetTestUploadMessageText(name string, owner string, project string, cuts string) string {
	metadata := map[string]string{}
	if len(owner) > 0 {
		metadata["owner_id"] = owner
	}
	if len(project) > 0 {
		metadata["project_id"] = project
	}
	if len(cuts) > 0 {
		metadata["cuts"] = cuts
	}
	n := map[string]interface{}{
		"kind":           "storage#object",
		"id":             "scene_scoring_uploads/" + name + "/1728615848664286",
		"name":           name,
		"bucket":         "scene_scoring_uploads",
		"generation":     "1728615848664286",
		"metageneration": "1",
		"contentType":    "video/mp4",
		"timeCreated":    "2024-10-11T03:04:08.672Z",
		"updated":        "2024-10-11T03:04:08.672Z",
		"size":           "259348037",
		"md5Hash":        "67c1rAU+1RYZzK5zp8iBkA==",
		"metadata":       metadata,
	}
	data, _ := json.MarshalIndent(n, "", "  ")
	return string(data)
}
