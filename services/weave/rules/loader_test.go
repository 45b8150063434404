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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRules = `
rules:
  - id: md-changes
    name: Markdown changes
    triggers: ["file:change", "file:add"]
    priority: high
    timeout: 5s
    when: '.file_path | endswith(".md")'
    action: log
    params:
      message: doc changed
      level: debug
  - id: strict-agent
    triggers: ["agent:complete"]
    continue_on_failure: false
    enabled: false
    when: '.agent_data.status == "done"'
    action: log
`

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]byte(sampleRules), NewActionRegistry(discardLogger()))
	require.NoError(t, err)
	require.Len(t, rules, 2)

	md := rules[0]
	assert.Equal(t, "md-changes", md.ID)
	assert.Equal(t, "Markdown changes", md.Name)
	assert.Equal(t, []Trigger{TriggerFileChange, TriggerFileAdd}, md.Triggers)
	assert.Equal(t, PriorityHigh, md.Priority)
	assert.Equal(t, 5*time.Second, md.Timeout)
	assert.Nil(t, md.Enabled)
	require.NotNil(t, md.Condition)
	require.NotNil(t, md.Action)

	strict := rules[1]
	assert.Equal(t, PriorityNormal, strict.Priority)
	assert.False(t, strict.IsEnabled())
	assert.False(t, strict.ContinuesOnFailure())
}

func TestJQCondition_Evaluate(t *testing.T) {
	tests := []struct {
		name string
		expr string
		rc   Context
		want bool
	}{
		{"suffix match", `.file_path | endswith(".md")`, Context{FilePath: "/docs/a.md"}, true},
		{"suffix mismatch", `.file_path | endswith(".md")`, Context{FilePath: "/docs/a.go"}, false},
		{"trigger", `.trigger == "graph:update"`, Context{Trigger: TriggerGraphUpdate}, true},
		{"agent data struct", `.agent_data.Score > 3`, Context{AgentData: struct{ Score int }{5}}, true},
		{"missing field is null", `.agent_data.missing`, Context{}, false},
		{"extensions", `.extensions.operation == "add_node"`, Context{Extensions: map[string]any{"operation": "add_node"}}, true},
		{"no output", `empty`, Context{}, false},
		{"non-boolean truthy", `.file_path`, Context{FilePath: "x"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cond, err := NewJQCondition(tc.expr)
			require.NoError(t, err)
			rc := tc.rc
			rc.Timestamp = time.Now()
			got, err := cond.Evaluate(context.Background(), &rc)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestJQCondition_RuntimeError(t *testing.T) {
	cond, err := NewJQCondition(`.file_path | error("stop")`)
	require.NoError(t, err)
	_, err = cond.Evaluate(context.Background(), &Context{FilePath: "x"})
	assert.Error(t, err)
}

func TestParseRules_Invalid(t *testing.T) {
	actions := NewActionRegistry(discardLogger())
	tests := map[string]struct {
		yaml string
		want error
	}{
		"not yaml":        {"rules: [", ErrInvalidRule},
		"missing id":      {"rules:\n  - triggers: [manual]\n    action: log\n", ErrInvalidRule},
		"no triggers":     {"rules:\n  - id: a\n    action: log\n", ErrInvalidRule},
		"missing action":  {"rules:\n  - id: a\n    triggers: [manual]\n", ErrInvalidRule},
		"bad priority":    {"rules:\n  - id: a\n    triggers: [manual]\n    priority: urgent\n    action: log\n", ErrInvalidRule},
		"duplicate":       {"rules:\n  - id: a\n    triggers: [manual]\n    action: log\n  - id: a\n    triggers: [manual]\n    action: log\n", ErrInvalidRule},
		"unknown action":  {"rules:\n  - id: a\n    triggers: [manual]\n    action: explode\n", ErrUnknownAction},
		"bad log level":   {"rules:\n  - id: a\n    triggers: [manual]\n    action: log\n    params: {level: loud}\n", ErrInvalidRule},
		"bad jq":          {"rules:\n  - id: a\n    triggers: [manual]\n    when: '.a |||'\n    action: log\n", nil},
		"bad timeout":     {"rules:\n  - id: a\n    triggers: [manual]\n    timeout: soon\n    action: log\n", ErrInvalidRule},
		"message not str": {"rules:\n  - id: a\n    triggers: [manual]\n    action: log\n    params: {message: [1]}\n", ErrInvalidRule},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(tc.yaml), actions)
			require.Error(t, err)
			if tc.want != nil {
				assert.True(t, errors.Is(err, tc.want), "got %v", err)
			}
		})
	}
}

func TestActionRegistry_CustomAction(t *testing.T) {
	actions := NewActionRegistry(discardLogger())
	var tagged []string
	actions.Register("collect", func(params map[string]any) (ActionFunc, error) {
		tags, err := StringSliceParam(params, "tags")
		if err != nil {
			return nil, err
		}
		return func(_ context.Context, rc *Context) error {
			tagged = append(tagged, tags...)
			tagged = append(tagged, rc.FilePath)
			return nil
		}, nil
	})
	assert.Equal(t, []string{"collect", "log"}, actions.Names())

	rules, err := ParseRules([]byte(`
rules:
  - id: collect-md
    triggers: ["file:add"]
    when: '.file_path | test("\\.md$")'
    action: collect
    params: {tags: [docs, new]}
`), actions)
	require.NoError(t, err)

	e := newTestEngine(t, Config{})
	require.NoError(t, e.RegisterRules(rules))

	entries, err := e.Trigger(context.Background(), TriggerFileAdd, Input{FilePath: "notes/a.md"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusSuccess, entries[0].Status)

	entries, err = e.Trigger(context.Background(), TriggerFileAdd, Input{FilePath: "img.png"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusSkipped, entries[0].Status)

	assert.Equal(t, []string{"docs", "new", "notes/a.md"}, tagged)
}

func TestStringSliceParam(t *testing.T) {
	got, err := StringSliceParam(map[string]any{"k": []any{"a", "b"}}, "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = StringSliceParam(map[string]any{"k": "solo"}, "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"solo"}, got)

	got, err = StringSliceParam(nil, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = StringSliceParam(map[string]any{"k": []any{1}}, "k")
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestLoadRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o644))

	rules, err := LoadRulesFile(path, NewActionRegistry(discardLogger()))
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	_, err = LoadRulesFile(filepath.Join(t.TempDir(), "missing.yaml"), NewActionRegistry(nil))
	assert.Error(t, err)
}
