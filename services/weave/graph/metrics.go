// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("weave.graph")
	meter  = otel.Meter("weave.graph")
)

// Metrics for graph operations.
var (
	queryLatency  metric.Float64Histogram
	queryResults  metric.Int64Histogram
	snapshotBytes metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		queryLatency, err = meter.Float64Histogram(
			"graph_query_duration_seconds",
			metric.WithDescription("Duration of graph query operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryResults, err = meter.Int64Histogram(
			"graph_query_results",
			metric.WithDescription("Number of results returned per graph query"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		snapshotBytes, err = meter.Int64Histogram(
			"graph_snapshot_bytes",
			metric.WithDescription("Size of serialized graph snapshots"),
			metric.WithUnit("By"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordQueryMetrics records metrics for a query operation.
func recordQueryMetrics(ctx context.Context, queryType string, duration time.Duration, resultCount int) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("query_type", queryType))
	queryLatency.Record(ctx, duration.Seconds(), attrs)
	queryResults.Record(ctx, int64(resultCount), attrs)
}

// recordSnapshotMetrics records the size of a serialized snapshot.
func recordSnapshotMetrics(ctx context.Context, direction string, size int) {
	if err := initMetrics(); err != nil {
		return
	}

	snapshotBytes.Record(ctx, int64(size),
		metric.WithAttributes(attribute.String("direction", direction)),
	)
}

// startQuerySpan creates a span for a query operation.
func startQuerySpan(ctx context.Context, queryType, nodeID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Store."+queryType,
		trace.WithAttributes(
			attribute.String("graph.query_type", queryType),
			attribute.String("graph.node_id", nodeID),
		),
	)
}
