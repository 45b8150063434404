// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package weave

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	graphMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weave",
		Name:      "graph_mutations_total",
		Help:      "Graph mutations applied through the notifier",
	}, []string{"op"})

	triggersDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weave",
		Name:      "triggers_total",
		Help:      "Triggers dispatched to the rule engine",
	}, []string{"trigger"})

	snapshotSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weave",
		Name:      "snapshot_saves_total",
		Help:      "Graph snapshot saves by result",
	}, []string{"result"})

	watcherDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "weave",
		Name:      "watcher_dropped_events",
		Help:      "File events dropped because the watcher buffer was full",
	})
)
