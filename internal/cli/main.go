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

// Package cli implements the scenectl commands:
//
//	scenectl sweep [--root dir] [--max-age 24h]
//	scenectl frames --duration 23 [--interval 5]
//	scenectl intent "generate / 2 - add strings" --scenes 3
//
// Configuration comes from the same TOML files as the server. A .env file
// in the working directory may set GCP_CONFIG_PREFIX and GCP_RUNTIME.
package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/cloud"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/commands"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/intent"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/workspace"
)

func Main() {
	_ = godotenv.Load()

	root := NewRootCommand()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "scenectl",
		Short:         "Operate the scene scoring backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSweepCommand(), newFramesCommand(), newIntentCommand())
	return root
}

func loadConfig() (*cloud.Config, error) {
	if _, ok := os.LookupEnv(cloud.EnvConfigRuntime); !ok {
		if err := os.Setenv(cloud.EnvConfigRuntime, "local"); err != nil {
			return nil, err
		}
	}
	config := cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		return nil, err
	}
	config.ApplyDefaults()
	return config, nil
}

func newSweepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove workspaces older than the maximum age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, _ := cmd.Flags().GetString("root")
			maxAge, _ := cmd.Flags().GetDuration("max-age")
			if len(root) == 0 || maxAge <= 0 {
				config, err := loadConfig()
				if err != nil {
					return fmt.Errorf("config: %w", err)
				}
				if len(root) == 0 {
					root = config.Workspace.Root
				}
				if maxAge <= 0 {
					maxAge = config.Workspace.MaxAge()
				}
			}

			manager, err := workspace.NewManager(root, maxAge)
			if err != nil {
				return err
			}
			removed, err := manager.Sweep(time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d workspaces under %s\n", removed, manager.Root())
			return nil
		},
	}
	cmd.Flags().String("root", "", "Workspace root (defaults to the configured root)")
	cmd.Flags().Duration("max-age", 0, "Maximum workspace age (defaults to the configured age)")
	return cmd
}

func newFramesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Print the frame sampling timestamps of a scene",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			duration, _ := cmd.Flags().GetFloat64("duration")
			interval, _ := cmd.Flags().GetFloat64("interval")
			if duration <= 0 {
				return fmt.Errorf("--duration must be positive")
			}
			for _, at := range commands.Timestamps(duration, interval) {
				fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(at, 'f', -1, 64))
			}
			return nil
		},
	}
	cmd.Flags().Float64("duration", 0, "Scene duration in seconds")
	cmd.Flags().Float64("interval", 5, "Sampling interval in seconds")
	_ = cmd.MarkFlagRequired("duration")
	return cmd
}

func newIntentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intent <message>",
		Short: "Print how a chat message would be dispatched",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("scenes")
			c := intent.Context{ProjectId: "cli"}
			for i := 0; i < count; i++ {
				c.Scenes = append(c.Scenes, &model.Scene{Id: fmt.Sprintf("scene-%d", i+1), Sequence: i})
			}
			fmt.Fprintln(cmd.OutOrStdout(), Describe(intent.Resolve(strings.Join(args, " "), c)))
			return nil
		},
	}
	cmd.Flags().Int("scenes", 0, "Number of scenes in the project")
	return cmd
}

// Describe renders a resolved intent on one line.
func Describe(in intent.Intent) string {
	switch v := in.(type) {
	case intent.GenerateMusic:
		return fmt.Sprintf("%s scene=%d modification=%q", v.Name(), v.Ordinal, v.Modification)
	case intent.SoundEffect:
		if v.Scene == nil {
			return v.Name() + " scene=none"
		}
		return fmt.Sprintf("%s scene=%d", v.Name(), v.Scene.Sequence+1)
	case intent.AnalyzeScene:
		return fmt.Sprintf("%s scene=%d", v.Name(), v.Ordinal)
	default:
		return in.Name()
	}
}
