// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/AleutianAI/weave/services/weave"
	"github.com/AleutianAI/weave/services/weave/graph"
	"github.com/AleutianAI/weave/services/weave/rules"
	"github.com/spf13/cobra"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Work with declarative rule files",
	}
	cmd.AddCommand(newRulesValidateCmd())
	return cmd
}

func newRulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Parse a rule file and check every rule, action and jq condition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actions := validationActions()
			parsed, err := rules.LoadRulesFile(args[0], actions)
			if err != nil {
				return err
			}

			// Registration applies the same defaults and checks as the server.
			registry := rules.NewRegistry(rules.DefaultRuleTimeout, slog.New(slog.DiscardHandler))
			for _, r := range parsed {
				if _, err := registry.Register(r); err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPRIORITY\tTRIGGERS\tENABLED")
			for _, r := range registry.All() {
				triggers := make([]string, len(r.Triggers))
				for i, t := range r.Triggers {
					triggers[i] = string(t)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", r.ID, r.Priority, strings.Join(triggers, ","), r.IsEnabled())
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d rule(s) OK\n", len(parsed))
			return nil
		},
	}
}

// validationActions returns the action set the server offers, bound to a
// throwaway graph so factories can run.
func validationActions() *rules.ActionRegistry {
	logger := slog.New(slog.DiscardHandler)
	actions := rules.NewActionRegistry(logger)
	weave.RegisterGraphActions(actions, weave.NewNotifier(graph.NewStore(), nil, logger))
	return actions
}
