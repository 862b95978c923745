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

package cli_test

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/cli"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/workspace"
)

func execute(args ...string) (string, error) {
	root := cli.NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestFrames(t *testing.T) {
	out, err := execute("frames", "--duration", "23")
	require.NoError(t, err)
	assert.Equal(t, "0\n5\n10\n15\n20\n", out)

	out, err = execute("frames", "--duration", "3", "--interval", "1.5")
	require.NoError(t, err)
	assert.Equal(t, "0\n1.5\n", out)

	_, err = execute("frames")
	assert.Error(t, err)
}

func TestIntent(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"generate / 2 - add strings", "--scenes", "3"}, `generate_music scene=2 modification="add strings"`},
		{[]string{"generate", "/", "9", "-", "louder", "--scenes", "3"}, "free_chat"},
		{[]string{"analyze scene three", "--scenes", "3"}, "analyze_scene scene=3"},
		{[]string{"a sound effect of rain"}, "sound_effect scene=none"},
		{[]string{"sound effect for scene 2", "--scenes", "2"}, "sound_effect scene=2"},
	}
	for _, tt := range tests {
		out, err := execute(append([]string{"intent"}, tt.args...)...)
		require.NoError(t, err)
		assert.Equal(t, tt.want+"\n", out, tt.args)
	}
}

func TestSweep(t *testing.T) {
	root := t.TempDir()
	manager, err := workspace.NewManager(root, time.Hour)
	require.NoError(t, err)
	_, err = manager.Acquire("user-1")
	require.NoError(t, err)

	out, err := execute("sweep", "--root", root, "--max-age", "1h")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("removed 0 workspaces under %s\n", manager.Root()), out)

	time.Sleep(5 * time.Millisecond)
	out, err = execute("sweep", "--root", root, "--max-age", "1ms")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("removed 1 workspaces under %s\n", manager.Root()), out)
}
