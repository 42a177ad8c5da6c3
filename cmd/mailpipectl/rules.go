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
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/bootstrap"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/rules"
)

var rulesDefault bool

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate category rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if rulesDefault {
			return printRules(cmd, rules.Default())
		}
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			return printRules(cmd, app.Rules)
		})
	},
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a rule file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, err := rules.LoadFile(args[0])
		if err != nil {
			return err
		}
		cmd.Printf("%s: %d rules, %d categories\n", args[0], len(rs), len(rules.Categories(rs)))
		return nil
	},
}

var rulesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the built-in rules as a YAML rule file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := rules.Marshal(rules.Default())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rulesListCmd.Flags().BoolVar(&rulesDefault, "default", false, "List the built-in rules without loading config")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
	rulesCmd.AddCommand(rulesExportCmd)
	rootCmd.AddCommand(rulesCmd)
}

func printRules(cmd *cobra.Command, rs []rules.Rule) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tPRIORITY\tFROM\tTO\tSUBJECT")
	for _, r := range rs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Category,
			r.Priority,
			strings.Join(r.Conditions.FromIncludes, ","),
			strings.Join(r.Conditions.ToIncludes, ","),
			strings.Join(r.Conditions.SubjectIncludes, ","),
		)
	}
	return w.Flush()
}
