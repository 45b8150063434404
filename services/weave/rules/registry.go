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
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ruleValidate validates rules at registration time.
var ruleValidate = validator.New()

// Registry holds rule definitions and the trigger-to-rule index.
//
// # Thread Safety
//
// Safe for concurrent use.
type Registry struct {
	mu             sync.RWMutex
	rules          map[string]*Rule
	order          []string             // rule ids in registration order
	byTrigger      map[Trigger][]string // trigger -> rule ids in registration order
	defaultTimeout time.Duration
	logger         *slog.Logger
}

// NewRegistry creates an empty registry.
//
// # Inputs
//
//   - defaultTimeout: Timeout given to rules registered without one.
//   - logger: Receives replacement warnings. Nil uses slog.Default().
func NewRegistry(defaultTimeout time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rules:          make(map[string]*Rule),
		byTrigger:      make(map[Trigger][]string),
		defaultTimeout: defaultTimeout,
		logger:         logger,
	}
}

// Register adds a rule, replacing any rule with the same id.
//
// # Description
//
// Fills defaults (priority normal, enabled, engine default timeout,
// continue on failure) and validates the rule. A replaced rule loses its
// place in registration order and the new definition is appended.
//
// # Outputs
//
//   - bool: True if an existing rule was replaced.
//   - error: ErrInvalidRule if the id is empty, there are no triggers,
//     the priority is unknown or the action is nil.
func (r *Registry) Register(rule Rule) (bool, error) {
	normalized, err := r.normalize(rule)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.rules[normalized.ID]
	if replaced {
		r.logger.Warn("replacing existing rule",
			slog.String("rule_id", normalized.ID),
			slog.String("rule_name", normalized.Name),
		)
		r.removeLocked(normalized.ID)
	}

	r.rules[normalized.ID] = normalized
	r.order = append(r.order, normalized.ID)
	for _, t := range normalized.Triggers {
		r.byTrigger[t] = append(r.byTrigger[t], normalized.ID)
	}
	return replaced, nil
}

func (r *Registry) normalize(rule Rule) (*Rule, error) {
	if rule.Priority == "" {
		rule.Priority = PriorityNormal
	}
	if rule.Enabled == nil {
		rule.Enabled = Bool(true)
	} else {
		rule.Enabled = Bool(*rule.Enabled)
	}
	if rule.ContinueOnFailure == nil {
		rule.ContinueOnFailure = Bool(true)
	} else {
		rule.ContinueOnFailure = Bool(*rule.ContinueOnFailure)
	}
	if rule.Timeout == 0 {
		rule.Timeout = r.defaultTimeout
	}
	if rule.Name == "" {
		rule.Name = rule.ID
	}

	// Dedupe triggers, keeping first occurrence order.
	triggers := make([]Trigger, 0, len(rule.Triggers))
	for _, t := range rule.Triggers {
		if !slices.Contains(triggers, t) {
			triggers = append(triggers, t)
		}
	}
	rule.Triggers = triggers

	if err := ruleValidate.Struct(&rule); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, rule.ID, err)
	}
	return &rule, nil
}

// Unregister removes a rule. Returns false if the id is unknown.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[id]; !ok {
		return false
	}
	r.removeLocked(id)
	return true
}

func (r *Registry) removeLocked(id string) {
	rule := r.rules[id]
	for _, t := range rule.Triggers {
		ids := slices.DeleteFunc(r.byTrigger[t], func(s string) bool { return s == id })
		if len(ids) == 0 {
			delete(r.byTrigger, t)
		} else {
			r.byTrigger[t] = ids
		}
	}
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	delete(r.rules, id)
}

// Get returns a copy of the rule with the given id.
func (r *Registry) Get(id string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[id]
	if !ok {
		return Rule{}, false
	}
	return copyRule(rule), true
}

// All returns copies of every rule in registration order.
func (r *Registry) All() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Rule, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, copyRule(r.rules[id]))
	}
	return out
}

// ByTrigger returns the enabled rules subscribed to t, in registration order.
func (r *Registry) ByTrigger(t Trigger) []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byTrigger[t]
	out := make([]Rule, 0, len(ids))
	for _, id := range ids {
		rule := r.rules[id]
		if rule.IsEnabled() {
			out = append(out, copyRule(rule))
		}
	}
	return out
}

// Triggers returns the trigger kinds that have at least one registered
// rule, in KnownTriggers order followed by custom kinds sorted by name.
func (r *Registry) Triggers() []Trigger {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Trigger, 0, len(r.byTrigger))
	for _, t := range KnownTriggers {
		if len(r.byTrigger[t]) > 0 {
			out = append(out, t)
		}
	}
	var custom []Trigger
	for t := range r.byTrigger {
		if !slices.Contains(KnownTriggers, t) {
			custom = append(custom, t)
		}
	}
	slices.Sort(custom)
	return append(out, custom...)
}

// SetEnabled enables or disables a rule. Returns false if the id is unknown.
func (r *Registry) SetEnabled(id string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule, ok := r.rules[id]
	if !ok {
		return false
	}
	rule.Enabled = Bool(enabled)
	return true
}

// Counts returns the number of registered and enabled rules.
func (r *Registry) Counts() (total, enabled int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rule := range r.rules {
		if rule.IsEnabled() {
			enabled++
		}
	}
	return len(r.rules), enabled
}

// IDs returns the registered rule ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

func copyRule(rule *Rule) Rule {
	cp := *rule
	cp.Triggers = slices.Clone(rule.Triggers)
	cp.Enabled = Bool(rule.IsEnabled())
	cp.ContinueOnFailure = Bool(rule.ContinuesOnFailure())
	return cp
}
