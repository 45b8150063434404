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
	"encoding/json"
	"math"
	"time"
)

// RuleStatistics are the running aggregates for one rule.
//
// Execution times are in milliseconds. Skipped executions count toward
// TotalExecutions and SkippedCount only; MinExecutionTime stays +Inf
// until the first non-skipped execution.
type RuleStatistics struct {
	TotalExecutions      int64      `json:"total_executions"`
	SuccessCount         int64      `json:"success_count"`
	FailureCount         int64      `json:"failure_count"`
	SkippedCount         int64      `json:"skipped_count"`
	AverageExecutionTime float64    `json:"average_execution_time_ms"`
	MinExecutionTime     float64    `json:"min_execution_time_ms"`
	MaxExecutionTime     float64    `json:"max_execution_time_ms"`
	LastExecutedAt       *time.Time `json:"last_executed_at,omitempty"`
	LastSuccessAt        *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt        *time.Time `json:"last_failure_at,omitempty"`
}

// MarshalJSON encodes an unset (+Inf) minimum as null.
func (s RuleStatistics) MarshalJSON() ([]byte, error) {
	type alias RuleStatistics
	out := struct {
		alias
		MinExecutionTime *float64 `json:"min_execution_time_ms"`
	}{alias: alias(s)}
	if !math.IsInf(s.MinExecutionTime, 1) {
		out.MinExecutionTime = &s.MinExecutionTime
	}
	return json.Marshal(out)
}

// timed returns the number of executions that contribute to timing.
func (s *RuleStatistics) timed() int64 {
	return s.TotalExecutions - s.SkippedCount
}

func newRuleStatistics() *RuleStatistics {
	return &RuleStatistics{MinExecutionTime: math.Inf(1)}
}

// TriggerStatistics are the running aggregates for one trigger kind.
// TotalTime excludes skipped executions.
type TriggerStatistics struct {
	TotalExecutions int64   `json:"total_executions"`
	SuccessCount    int64   `json:"success_count"`
	TotalTime       float64 `json:"total_time_ms"`
}

// Statistics is a point-in-time snapshot of dispatcher activity.
type Statistics struct {
	TotalRules           int                           `json:"total_rules"`
	EnabledRules         int                           `json:"enabled_rules"`
	TotalExecutions      int64                         `json:"total_executions"`
	SuccessRate          float64                       `json:"success_rate"`
	AverageExecutionTime float64                       `json:"average_execution_time_ms"`
	ActiveExecutions     int64                         `json:"active_executions"`
	Rules                map[string]RuleStatistics     `json:"rules"`
	Triggers             map[Trigger]TriggerStatistics `json:"triggers"`
}

// Summary is a cheap operational snapshot.
type Summary struct {
	TotalRules       int       `json:"total_rules"`
	EnabledRules     int       `json:"enabled_rules"`
	Triggers         []Trigger `json:"triggers"`
	ActiveExecutions int64     `json:"active_executions"`
	LogSize          int       `json:"log_size"`
	LogCapacity      int       `json:"log_capacity"`
}

// aggregator folds execution outcomes into running statistics.
// Not safe for concurrent use; the Engine serializes access.
type aggregator struct {
	rules    map[string]*RuleStatistics
	triggers map[Trigger]*TriggerStatistics
}

func newAggregator() *aggregator {
	a := &aggregator{rules: make(map[string]*RuleStatistics)}
	a.seedTriggers()
	return a
}

func (a *aggregator) seedTriggers() {
	a.triggers = make(map[Trigger]*TriggerStatistics, len(KnownTriggers))
	for _, t := range KnownTriggers {
		a.triggers[t] = &TriggerStatistics{}
	}
}

func (a *aggregator) initRule(id string) {
	a.rules[id] = newRuleStatistics()
}

func (a *aggregator) removeRule(id string) {
	delete(a.rules, id)
}

// record folds one terminal outcome into the rule and trigger aggregates.
func (a *aggregator) record(ruleID string, trigger Trigger, status Status, durationMs float64, at time.Time) {
	// nil when the rule was unregistered mid-execution
	if rs := a.rules[ruleID]; rs != nil {
		rs.TotalExecutions++
		executedAt := at
		rs.LastExecutedAt = &executedAt
		switch status {
		case StatusSuccess:
			rs.SuccessCount++
			rs.LastSuccessAt = &executedAt
		case StatusFailure:
			rs.FailureCount++
			rs.LastFailureAt = &executedAt
		case StatusSkipped:
			rs.SkippedCount++
		}

		if status != StatusSkipped {
			n := float64(rs.timed())
			rs.AverageExecutionTime = (rs.AverageExecutionTime*(n-1) + durationMs) / n
			if durationMs < rs.MinExecutionTime {
				rs.MinExecutionTime = durationMs
			}
			if durationMs > rs.MaxExecutionTime {
				rs.MaxExecutionTime = durationMs
			}
		}
	}

	ts, ok := a.triggers[trigger]
	if !ok {
		ts = &TriggerStatistics{}
		a.triggers[trigger] = ts
	}
	ts.TotalExecutions++
	if status == StatusSuccess {
		ts.SuccessCount++
	}
	if status != StatusSkipped {
		ts.TotalTime += durationMs
	}
}

// reset zeroes every counter, keeping one entry per given rule id.
func (a *aggregator) reset(ruleIDs []string) {
	a.rules = make(map[string]*RuleStatistics, len(ruleIDs))
	for _, id := range ruleIDs {
		a.initRule(id)
	}
	a.seedTriggers()
}

// snapshot copies the aggregates and computes the overall figures.
func (a *aggregator) snapshot() Statistics {
	stats := Statistics{
		Rules:    make(map[string]RuleStatistics, len(a.rules)),
		Triggers: make(map[Trigger]TriggerStatistics, len(a.triggers)),
	}

	var success, timed int64
	var weighted float64
	for id, rs := range a.rules {
		stats.Rules[id] = *rs
		stats.TotalExecutions += rs.TotalExecutions
		success += rs.SuccessCount
		timed += rs.timed()
		weighted += rs.AverageExecutionTime * float64(rs.timed())
	}
	for t, ts := range a.triggers {
		stats.Triggers[t] = *ts
	}
	if stats.TotalExecutions > 0 {
		stats.SuccessRate = float64(success) / float64(stats.TotalExecutions)
	}
	if timed > 0 {
		stats.AverageExecutionTime = weighted / float64(timed)
	}
	return stats
}
