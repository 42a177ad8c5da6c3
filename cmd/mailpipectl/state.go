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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/bootstrap"
)

var watermarkCmd = &cobra.Command{
	Use:   "watermark",
	Short: "Show or change the retrieval watermark",
}

var watermarkGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the stored watermark",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			wm, err := app.State.Watermark(cmd.Context())
			if err != nil {
				return err
			}
			if wm == nil {
				cmd.Println("No watermark stored; the next pass fetches everything.")
				return nil
			}
			cmd.Println(wm.Format(time.RFC3339Nano))
			return nil
		})
	},
}

var watermarkSetCmd = &cobra.Command{
	Use:   "set <RFC3339 time>",
	Short: "Overwrite the watermark, moving it forwards or back",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := time.Parse(time.RFC3339Nano, args[0])
		if err != nil {
			return fmt.Errorf("invalid time %q: %w", args[0], err)
		}
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			if err := app.State.SetWatermark(cmd.Context(), t); err != nil {
				return err
			}
			cmd.Printf("Watermark set to %s\n", t.UTC().Format(time.RFC3339Nano))
			return nil
		})
	},
}

var watermarkClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the watermark so the next pass fetches everything",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			if err := app.State.ClearWatermark(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Watermark cleared")
			return nil
		})
	},
}

var lastRunCmd = &cobra.Command{
	Use:   "last-run",
	Short: "Print the last persisted run summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			sum, err := app.State.LastRun(cmd.Context())
			if err != nil {
				return err
			}
			if sum == nil {
				cmd.Println("No run recorded.")
				return nil
			}
			return printJSON(cmd, sum)
		})
	},
}

func init() {
	watermarkCmd.AddCommand(watermarkGetCmd)
	watermarkCmd.AddCommand(watermarkSetCmd)
	watermarkCmd.AddCommand(watermarkClearCmd)
	rootCmd.AddCommand(watermarkCmd)
	rootCmd.AddCommand(lastRunCmd)
}
