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
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/bootstrap"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/triage"
)

var (
	triageStore string
	triageJSON  bool
)

var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Inspect and apply triage decisions",
	Long:  `Scan a store for pending records, then apply the decisions or close the ones needing no action.`,
}

var triageScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Report decisions for pending records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			decisions, err := app.Triage.Scan(cmd.Context(), storeFor(app))
			if err != nil {
				return err
			}
			return printDecisions(cmd, decisions)
		})
	},
}

var triageApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply decisions: close NO_ACTION, mark the rest triaged",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApply(cmd, func(e *triage.Engine) applyFunc { return e.Apply })
	},
}

var triageCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close NO_ACTION records and leave the rest pending",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApply(cmd, func(e *triage.Engine) applyFunc { return e.CloseNoAction })
	},
}

func init() {
	triageCmd.PersistentFlags().StringVarP(&triageStore, "store", "s", "", "Store to triage (default: the configured triage store)")
	triageScanCmd.Flags().BoolVar(&triageJSON, "json", false, "Print decisions as JSON")

	triageCmd.AddCommand(triageScanCmd)
	triageCmd.AddCommand(triageApplyCmd)
	triageCmd.AddCommand(triageCloseCmd)
	rootCmd.AddCommand(triageCmd)
}

type applyFunc func(ctx context.Context, store string, decisions []triage.Decision) (triage.ApplyResult, error)

func runApply(cmd *cobra.Command, pick func(*triage.Engine) applyFunc) error {
	return withApp(cmd.Context(), func(app *bootstrap.App) error {
		store := storeFor(app)
		decisions, err := app.Triage.Scan(cmd.Context(), store)
		if err != nil {
			return err
		}
		res, err := pick(app.Triage)(cmd.Context(), store, decisions)
		if err != nil {
			return err
		}
		cmd.Printf("%s: %d triaged, %d closed, %d skipped\n", store, res.Triaged, res.Closed, res.Skipped)
		return nil
	})
}

func storeFor(app *bootstrap.App) string {
	if triageStore != "" {
		return triageStore
	}
	return app.TriageStore
}

func printDecisions(cmd *cobra.Command, decisions []triage.Decision) error {
	if triageJSON {
		return printJSON(cmd, decisions)
	}
	if len(decisions) == 0 {
		cmd.Println("No pending records.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tLEVEL\tCATEGORY\tSUBJECT\tREASON")
	for _, d := range decisions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Key, d.Level, d.Category, d.Subject, d.Reason)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	c := triage.CountByLevel(decisions)
	cmd.Printf("\nTotal: %d (no action %d, simple %d, complex %d)\n", c.Total, c.NoAction, c.Simple, c.Complex)
	return nil
}
