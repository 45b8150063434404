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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Declarative Rule Files
// =============================================================================

// RuleFile is the YAML document shape for declarative rules.
//
//	rules:
//	  - id: tag-changed-docs
//	    triggers: ["file:change"]
//	    priority: high
//	    timeout: 5s
//	    when: '.file_path | endswith(".md")'
//	    action: log
//	    params: {message: "doc changed"}
type RuleFile struct {
	Rules []RuleDefinition `yaml:"rules" validate:"dive"`
}

// RuleDefinition is one declarative rule.
type RuleDefinition struct {
	ID                string         `yaml:"id" validate:"required"`
	Name              string         `yaml:"name"`
	Description       string         `yaml:"description"`
	Triggers          []string       `yaml:"triggers" validate:"min=1,dive,required"`
	Priority          string         `yaml:"priority" validate:"omitempty,oneof=critical high normal low"`
	Enabled           *bool          `yaml:"enabled"`
	ContinueOnFailure *bool          `yaml:"continue_on_failure"`
	Timeout           time.Duration  `yaml:"timeout" validate:"gte=0"`
	When              *JQCondition   `yaml:"when"`
	Action            string         `yaml:"action" validate:"required"`
	Params            map[string]any `yaml:"params"`
}

// JQCondition is a jq expression used as a rule condition.
//
// The expression runs against an object with the keys trigger, timestamp
// (RFC 3339), file_path, agent_data and extensions. The condition holds
// when the first output is neither null nor false.
type JQCondition struct {
	Expr string
	code *gojq.Code
}

// NewJQCondition parses and compiles expr.
func NewJQCondition(expr string) (*JQCondition, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compile jq expression %q: %w", expr, err)
	}
	return &JQCondition{Expr: expr, code: code}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *JQCondition) UnmarshalYAML(node *yaml.Node) error {
	var expr string
	if err := node.Decode(&expr); err != nil {
		return err
	}
	compiled, err := NewJQCondition(expr)
	if err != nil {
		return err
	}
	*c = *compiled
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (c JQCondition) MarshalYAML() (any, error) {
	return c.Expr, nil
}

// Evaluate runs the expression against rc. It satisfies ConditionFunc.
func (c *JQCondition) Evaluate(ctx context.Context, rc *Context) (bool, error) {
	input, err := jqInput(rc)
	if err != nil {
		return false, err
	}

	iter := c.code.RunWithContext(ctx, input)
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, isErr := v.(error); isErr {
		return false, fmt.Errorf("jq error in %q: %w", c.Expr, err)
	}
	return v != nil && v != false, nil
}

// jqInput converts rc into the plain JSON values gojq operates on.
func jqInput(rc *Context) (map[string]any, error) {
	agentData, err := toJSONValue(rc.AgentData)
	if err != nil {
		return nil, fmt.Errorf("agent data: %w", err)
	}
	extensions, err := toJSONValue(rc.Extensions)
	if err != nil {
		return nil, fmt.Errorf("extensions: %w", err)
	}
	return map[string]any{
		"trigger":    string(rc.Trigger),
		"timestamp":  rc.Timestamp.Format(time.RFC3339Nano),
		"file_path":  rc.FilePath,
		"agent_data": agentData,
		"extensions": extensions,
	}, nil
}

func toJSONValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseRules decodes a YAML rule file into rules ready for registration.
//
// # Inputs
//
//   - data: YAML document of the RuleFile shape.
//   - actions: Resolves action names.
//
// # Outputs
//
//   - []Rule: Rules in file order.
//   - error: ErrInvalidRule for malformed or duplicate definitions,
//     ErrUnknownAction for unregistered action names.
func ParseRules(data []byte, actions *ActionRegistry) ([]Rule, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if err := ruleValidate.Struct(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	seen := make(map[string]bool, len(file.Rules))
	out := make([]Rule, 0, len(file.Rules))
	for _, def := range file.Rules {
		if seen[def.ID] {
			return nil, fmt.Errorf("%w: duplicate rule id %q", ErrInvalidRule, def.ID)
		}
		seen[def.ID] = true

		rule, err := def.toRule(actions)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

// LoadRulesFile reads and parses a YAML rule file.
func LoadRulesFile(path string, actions *ActionRegistry) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	rules, err := ParseRules(data, actions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

func (d RuleDefinition) toRule(actions *ActionRegistry) (Rule, error) {
	priority, err := ParsePriority(d.Priority)
	if err != nil {
		return Rule{}, err
	}
	action, err := actions.Build(d.Action, d.Params)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", d.ID, err)
	}

	triggers := make([]Trigger, 0, len(d.Triggers))
	for _, t := range d.Triggers {
		triggers = append(triggers, Trigger(t))
	}

	rule := Rule{
		ID:                d.ID,
		Name:              d.Name,
		Description:       d.Description,
		Triggers:          triggers,
		Priority:          priority,
		Enabled:           d.Enabled,
		ContinueOnFailure: d.ContinueOnFailure,
		Timeout:           d.Timeout,
		Action:            action,
	}
	if d.When != nil {
		rule.Condition = d.When.Evaluate
	}
	return rule, nil
}

// =============================================================================
// Action Registry
// =============================================================================

// ActionFactory builds an action from the params of a rule definition.
type ActionFactory func(params map[string]any) (ActionFunc, error)

// ActionRegistry maps action names used in rule files to factories.
//
// # Thread Safety
//
// Safe for concurrent use.
type ActionRegistry struct {
	mu        sync.RWMutex
	factories map[string]ActionFactory
}

// NewActionRegistry creates a registry with the built-in "log" action.
func NewActionRegistry(logger *slog.Logger) *ActionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &ActionRegistry{factories: make(map[string]ActionFactory)}
	r.Register("log", logActionFactory(logger))
	return r
}

// Register adds or replaces a named action factory.
func (r *ActionRegistry) Register(name string, factory ActionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names returns the registered action names, sorted.
func (r *ActionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build resolves name and builds the action with params.
func (r *ActionRegistry) Build(name string, params map[string]any) (ActionFunc, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	action, err := factory(params)
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", name, err)
	}
	return action, nil
}

// StringParam reads an optional string parameter.
func StringParam(params map[string]any, key, fallback string) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: param %q must be a string", ErrInvalidRule, key)
	}
	return s, nil
}

// StringSliceParam reads an optional list-of-strings parameter.
func StringSliceParam(params map[string]any, key string) ([]string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch items := v.(type) {
	case []string:
		return items, nil
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: param %q must contain strings", ErrInvalidRule, key)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return []string{items}, nil
	default:
		return nil, fmt.Errorf("%w: param %q must be a list of strings", ErrInvalidRule, key)
	}
}

func logActionFactory(logger *slog.Logger) ActionFactory {
	return func(params map[string]any) (ActionFunc, error) {
		message, err := StringParam(params, "message", "rule fired")
		if err != nil {
			return nil, err
		}
		levelName, err := StringParam(params, "level", "info")
		if err != nil {
			return nil, err
		}
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.ToUpper(levelName))); err != nil {
			return nil, fmt.Errorf("%w: unknown log level %q", ErrInvalidRule, levelName)
		}

		return func(ctx context.Context, rc *Context) error {
			logger.Log(ctx, level, message,
				slog.String("trigger", string(rc.Trigger)),
				slog.String("file_path", rc.FilePath),
				slog.Any("extensions", rc.Extensions),
			)
			return nil
		}, nil
	}
}
