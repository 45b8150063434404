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
	"maps"
	"time"
)

// ConditionFunc decides whether a rule's action should run.
//
// The context carries the rule's timeout; long-running conditions should
// honour its cancellation.
type ConditionFunc func(ctx context.Context, rc *Context) (bool, error)

// ActionFunc performs a rule's side effect.
type ActionFunc func(ctx context.Context, rc *Context) error

// Rule is a condition/action pair bound to one or more triggers.
//
// # Description
//
// Enabled and ContinueOnFailure are pointers so that "unset" can be told
// apart from false; registration fills them (both default to true).
// A zero Priority means normal and a zero Timeout means the engine default.
type Rule struct {
	ID          string `validate:"required"`
	Name        string
	Description string
	Triggers    []Trigger `validate:"min=1,dive,required"`
	Priority    Priority  `validate:"omitempty,oneof=critical high normal low"`

	Enabled           *bool
	ContinueOnFailure *bool
	Timeout           time.Duration `validate:"gte=0"`

	// Condition is optional; nil means the action always runs.
	Condition ConditionFunc
	Action    ActionFunc `validate:"required"`
}

// IsEnabled reports whether the rule participates in trigger dispatch.
func (r *Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// ContinuesOnFailure reports whether a failure of this rule is swallowed.
func (r *Rule) ContinuesOnFailure() bool {
	return r.ContinueOnFailure == nil || *r.ContinueOnFailure
}

// HasTrigger reports whether the rule subscribes to t.
func (r *Rule) HasTrigger(t Trigger) bool {
	for _, rt := range r.Triggers {
		if rt == t {
			return true
		}
	}
	return false
}

// Bool returns a pointer to v, for Rule.Enabled and Rule.ContinueOnFailure.
func Bool(v bool) *bool {
	return &v
}

// Input is the caller-supplied part of a rule context.
type Input struct {
	FilePath   string
	AgentData  any
	Extensions map[string]any
}

// Context is what conditions and actions receive.
//
// Each execution gets its own copy; Extensions may be modified freely by
// one rule without affecting its siblings. AgentData is forwarded as-is.
type Context struct {
	Trigger    Trigger
	Timestamp  time.Time
	FilePath   string
	AgentData  any
	Engine     *Engine
	Extensions map[string]any
}

// Extension returns the extension value stored under key.
func (c *Context) Extension(key string) (any, bool) {
	v, ok := c.Extensions[key]
	return v, ok
}

func (c *Context) clone() *Context {
	cp := *c
	cp.Extensions = maps.Clone(c.Extensions)
	if cp.Extensions == nil {
		cp.Extensions = make(map[string]any)
	}
	return &cp
}

// ContextSnapshot holds the salient fields of the triggering context.
type ContextSnapshot struct {
	FilePath  string    `json:"file_path,omitempty"`
	Trigger   Trigger   `json:"trigger"`
	Timestamp time.Time `json:"timestamp"`
}

// LogEntry records one rule execution.
type LogEntry struct {
	ID                 string          `json:"id"`
	RuleID             string          `json:"rule_id"`
	RuleName           string          `json:"rule_name"`
	Status             Status          `json:"status"`
	Trigger            Trigger         `json:"trigger"`
	StartedAt          time.Time       `json:"started_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	DurationMs         float64         `json:"duration_ms"`
	ConditionEvaluated bool            `json:"condition_evaluated"`
	ConditionResult    *bool           `json:"condition_result,omitempty"`
	Error              string          `json:"error,omitempty"`
	Context            ContextSnapshot `json:"context"`
}
