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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/AleutianAI/weave/services/weave/graph"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

func newStatsCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "stats SNAPSHOT",
		Short: "Print statistics for a graph snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadSnapshotFile(args[0])
			if err != nil {
				return err
			}
			stats := store.GetStats()
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			printStats(cmd.OutOrStdout(), store.Metadata(), stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newPathCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "path SNAPSHOT FROM TO",
		Short: "Find the shortest directed path between two nodes",
		Long: `Find the shortest directed path between two nodes.

Edges are followed from source to target only. Exits with an error when
no path exists.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadSnapshotFile(args[0])
			if err != nil {
				return err
			}
			path, found := store.FindPath(cmd.Context(), args[1], args[2])
			if jsonOutput {
				if path == nil {
					path = []string{}
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"found": found, "path": path})
			}
			if !found {
				return fmt.Errorf("no path from %q to %q", args[1], args[2])
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(path, " -> "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newRelatedCmd() *cobra.Command {
	var hops int
	cmd := &cobra.Command{
		Use:   "related SNAPSHOT NODE",
		Short: "List nodes within N hops of a node, in either direction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if hops < 1 || hops > graph.MaxRelatedHops {
				return fmt.Errorf("--hops must be between 1 and %d", graph.MaxRelatedHops)
			}
			store, err := loadSnapshotFile(args[0])
			if err != nil {
				return err
			}
			if !store.HasNode(args[1]) {
				return fmt.Errorf("node %q not found", args[1])
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tTYPE")
			for _, n := range store.FindRelated(cmd.Context(), args[1], hops) {
				fmt.Fprintf(w, "%s\t%s\t%s\n", n.ID, n.Title, n.Type)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&hops, "hops", graph.DefaultRelatedHops, "Maximum hop distance")
	return cmd
}

// =============================================================================
// HELPERS
// =============================================================================

func loadSnapshotFile(path string) (*graph.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	store, err := graph.FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStats(out io.Writer, meta graph.GraphMetadata, stats graph.GraphStats) {
	fmt.Fprintf(out, "Graph:    %s (v%s)\n", meta.Name, meta.Version)
	fmt.Fprintf(out, "Nodes:    %d\n", stats.NodeCount)
	fmt.Fprintf(out, "Edges:    %d\n", stats.EdgeCount)
	fmt.Fprintf(out, "Orphans:  %d\n", stats.OrphanCount)
	fmt.Fprintf(out, "Avg links per node: %.2f\n", stats.AverageLinksPerNode)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nTYPE\tCOUNT")
	for _, t := range graph.NodeTypes {
		if n := stats.NodesByType[t]; n > 0 {
			fmt.Fprintf(w, "%s\t%d\n", t, n)
		}
	}
	fmt.Fprintln(w, "\nSTATUS\tCOUNT")
	for _, s := range graph.NodeStatuses {
		if n := stats.NodesByStatus[s]; n > 0 {
			fmt.Fprintf(w, "%s\t%d\n", s, n)
		}
	}
	w.Flush()

	if len(stats.MostConnected) == 0 {
		return
	}
	hubs := append([]graph.ConnectedNode(nil), stats.MostConnected...)
	sort.SliceStable(hubs, func(i, j int) bool { return hubs[i].Connections > hubs[j].Connections })

	w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nMOST CONNECTED\tIN\tOUT")
	for _, h := range hubs {
		fmt.Fprintf(w, "%s\t%d\t%d\n", h.ID, h.Incoming, h.Outgoing)
	}
	w.Flush()
}
