// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("weave.rules")
	meter  = otel.Meter("weave.rules")
)

// engineMetrics holds the dispatcher's instruments. A nil instrument means
// it failed to initialize and is skipped.
type engineMetrics struct {
	once       sync.Once
	executions metric.Int64Counter
	duration   metric.Float64Histogram
	active     metric.Int64UpDownCounter
}

func (m *engineMetrics) init(logger *slog.Logger) {
	m.once.Do(func() {
		var initErrors []string

		var err error
		m.executions, err = meter.Int64Counter("rule_executions_total",
			metric.WithDescription("Number of rule executions by terminal status"),
		)
		if err != nil {
			initErrors = append(initErrors, "executions: "+err.Error())
		}

		m.duration, err = meter.Float64Histogram("rule_execution_duration_seconds",
			metric.WithDescription("Time spent in rule condition and action"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "duration: "+err.Error())
		}

		m.active, err = meter.Int64UpDownCounter("rule_active_executions",
			metric.WithDescription("Number of rule executions currently running"),
		)
		if err != nil {
			initErrors = append(initErrors, "active: "+err.Error())
		}

		if len(initErrors) > 0 {
			logger.Error("failed to initialize some rule metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

func (m *engineMetrics) addActive(ctx context.Context, delta int64) {
	if m.active != nil {
		m.active.Add(ctx, delta)
	}
}

func (m *engineMetrics) recordOutcome(ctx context.Context, trigger Trigger, status Status, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("status", string(status)),
		attribute.String("trigger", string(trigger)),
	)
	if m.executions != nil {
		m.executions.Add(ctx, 1, attrs)
	}
	if m.duration != nil && status != StatusSkipped {
		m.duration.Record(ctx, seconds, attrs)
	}
}

// startExecutionSpan creates a span for one rule execution.
func startExecutionSpan(ctx context.Context, rule *Rule, trigger Trigger) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.execute",
		trace.WithAttributes(
			attribute.String("rule.id", rule.ID),
			attribute.String("rule.name", rule.Name),
			attribute.String("rule.priority", string(rule.Priority)),
			attribute.String("rule.trigger", string(trigger)),
		),
	)
}
