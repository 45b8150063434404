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
	"os"
	"text/tabwriter"
	"time"

	"github.com/AleutianAI/weave/services/weave"
	"github.com/AleutianAI/weave/services/weave/config"
	"github.com/AleutianAI/weave/services/weave/graph"
	"github.com/AleutianAI/weave/services/weave/storage"
	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect and move graph snapshots in the configured store",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSnapshotStore(configPath, func(store storage.SnapshotStore, _ *config.Config) error {
				infos, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tBYTES\tSAVED")
				for _, info := range infos {
					fmt.Fprintf(w, "%s\t%d\t%s\n", info.Name, info.Size, info.SavedAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}

	export := &cobra.Command{
		Use:   "export [NAME]",
		Short: "Write a stored snapshot to stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshotStore(configPath, func(store storage.SnapshotStore, cfg *config.Config) error {
				name := cfg.Storage.SnapshotName
				if len(args) == 1 {
					name = args[0]
				}
				data, err := store.Load(cmd.Context(), name)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}

	imp := &cobra.Command{
		Use:   "import FILE [NAME]",
		Short: "Validate a snapshot file and store it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			g, err := graph.FromJSON(data)
			if err != nil {
				return err
			}
			return withSnapshotStore(configPath, func(store storage.SnapshotStore, cfg *config.Config) error {
				name := cfg.Storage.SnapshotName
				if len(args) == 2 {
					name = args[1]
				}
				if err := store.Save(cmd.Context(), name, data); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %q: %d nodes, %d edges\n", name, g.NodeCount(), g.EdgeCount())
				return nil
			})
		},
	}

	cmd.AddCommand(list, export, imp)
	return cmd
}

func withSnapshotStore(configPath string, fn func(storage.SnapshotStore, *config.Config) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store, err := weave.OpenSnapshotStore(cfg.Storage, slog.New(slog.DiscardHandler))
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("storage backend is %q; configure badger or sqlite", cfg.Storage.Backend)
	}
	defer store.Close()
	return fn(store, cfg)
}

