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
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/bootstrap"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/pipeline"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/retriever"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full pass",
	Long: `Checks the mail source, retrieves new mail since the watermark, routes it,
advances the watermark and scans the triage store. The run summary is
persisted and printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			sum, runErr := app.Scheduler.RunOnce(cmd.Context())
			if errors.Is(runErr, pipeline.ErrRunInProgress) {
				return runErr
			}
			if sum != nil {
				if err := printJSON(cmd, sum); err != nil {
					return err
				}
			}
			return runErr
		})
	},
}

var fetchIgnoreWatermark bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Dry-run retrieval and print counts",
	Long:  `Retrieves and filters mail exactly like a pass but stores nothing and leaves the watermark alone.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			res, err := fetchSinceWatermark(cmd, app)
			if err != nil {
				return err
			}
			res.Messages = nil
			return printJSON(cmd, res)
		})
	},
}

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Retrieve and store new mail without triage",
	Long: `Retrieves new mail and writes it to the raw, matched and category stores.
The watermark is not advanced and no triage runs, so a later pass sees the
same messages and rewrites identical records.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			res, err := fetchSinceWatermark(cmd, app)
			if err != nil {
				return err
			}
			stats, err := app.Router.Route(cmd.Context(), res.Messages)
			if stats != nil {
				if perr := printJSON(cmd, stats); perr != nil {
					return perr
				}
			}
			if err != nil {
				return fmt.Errorf("route: %w", err)
			}
			return nil
		})
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchIgnoreWatermark, "all", false, "Ignore the watermark and list everything the source returns")
	routeCmd.Flags().BoolVar(&fetchIgnoreWatermark, "all", false, "Ignore the watermark and route everything the source returns")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(routeCmd)
}

func fetchSinceWatermark(cmd *cobra.Command, app *bootstrap.App) (*retriever.Result, error) {
	var watermark *time.Time
	if !fetchIgnoreWatermark {
		wm, err := app.State.Watermark(cmd.Context())
		if err != nil {
			return nil, err
		}
		watermark = wm
	}
	return app.Retriever.Fetch(cmd.Context(), watermark)
}
