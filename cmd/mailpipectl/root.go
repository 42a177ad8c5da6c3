// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/bootstrap"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/config"
)

var (
	configPath string
	verbose    bool
	version    = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "mailpipectl",
	Short: "Operate the case mail pipeline",
	Long: `Operator CLI for the case mail ingestion, routing and triage pipeline.

Every command reads the same config.yaml as the service and works against
the configured storage backend.

Quick Start:
  mailpipectl run                        # One full pass
  mailpipectl fetch                      # Dry-run retrieval, print counts
  mailpipectl triage scan                # Report pending decisions
  mailpipectl watermark get              # Show the retrieval watermark`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: level,
		})))
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (default $CONFIG_PATH or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// withApp builds the pipeline for the duration of fn.
func withApp(ctx context.Context, fn func(app *bootstrap.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
