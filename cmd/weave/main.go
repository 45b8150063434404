// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command weave runs the knowledge graph service and offers offline tools
// for graph snapshots and rule files.
//
// Usage:
//
//	weave serve --config weave.yaml
//	weave stats graph.json
//	weave path graph.json auth-service token-guide
//	weave related graph.json auth-service --hops 3
//	weave rules validate rules.yaml
//	weave snapshot list --config weave.yaml
//	weave snapshot export --config weave.yaml > graph.json
//
// Example requests against a running server:
//
//	curl http://localhost:12218/v1/weave/health
//	curl -X POST http://localhost:12218/v1/weave/triggers/file:change \
//	  -H "Content-Type: application/json" \
//	  -d '{"file_path": "/docs/auth.md"}'
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newRootCmd assembles the command tree. Commands are built fresh each call
// so tests can run them in isolation.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "weave",
		Short:         "Knowledge graph and rule engine for documentation trees",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newStatsCmd(),
		newPathCmd(),
		newRelatedCmd(),
		newRulesCmd(),
		newSnapshotCmd(),
	)
	return root
}
