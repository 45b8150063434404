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
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	cfg.Logger = discardLogger()
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	return e
}

// recorder collects rule ids in the order their actions start.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) action(id string) ActionFunc {
	return func(context.Context, *Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.order = append(r.order, id)
		return nil
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func TestNewEngine_Defaults(t *testing.T) {
	e := newTestEngine(t, Config{})
	cfg := e.Config()
	assert.Equal(t, DefaultMaxConcurrency, cfg.MaxConcurrency)
	assert.Equal(t, DefaultRuleTimeout, cfg.DefaultTimeout)
	assert.Equal(t, 1000, cfg.LogCapacity)

	_, err := NewEngine(Config{MaxConcurrency: -1})
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestEngine_Trigger_NoRules(t *testing.T) {
	e := newTestEngine(t, Config{})
	require.NoError(t, e.RegisterRule(Rule{ID: "other", Triggers: []Trigger{TriggerManual}, Action: noop}))

	entries, err := e.Trigger(context.Background(), TriggerFileAdd, Input{})
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	assert.Empty(t, e.Logs())
}

func TestEngine_Trigger_NilContext(t *testing.T) {
	e := newTestEngine(t, Config{})
	//nolint:staticcheck // nil context is the case under test
	_, err := e.Trigger(nil, TriggerManual, Input{})
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestEngine_Trigger_PriorityOrder(t *testing.T) {
	e := newTestEngine(t, Config{MaxConcurrency: 1})
	rec := &recorder{}

	require.NoError(t, e.RegisterRules([]Rule{
		{ID: "r1", Priority: PriorityLow, Triggers: []Trigger{TriggerGraphUpdate}, Action: rec.action("r1")},
		{ID: "r2", Priority: PriorityCritical, Triggers: []Trigger{TriggerGraphUpdate}, Action: rec.action("r2")},
		{ID: "r3", Priority: PriorityHigh, Triggers: []Trigger{TriggerGraphUpdate}, Action: rec.action("r3")},
		{ID: "r4", Triggers: []Trigger{TriggerGraphUpdate}, Action: rec.action("r4")},
		{ID: "r5", Priority: PriorityHigh, Triggers: []Trigger{TriggerGraphUpdate}, Action: rec.action("r5")},
	}))

	entries, err := e.Trigger(context.Background(), TriggerGraphUpdate, Input{})
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, []string{"r2", "r3", "r5", "r4", "r1"}, rec.snapshot())
}

func TestEngine_Trigger_PriorityOrderConcurrent(t *testing.T) {
	for i := 0; i < 500; i++ {
		e := newTestEngine(t, Config{})
		rec := &recorder{}
		require.NoError(t, e.RegisterRules([]Rule{
			{ID: "r1", Priority: PriorityLow, Triggers: []Trigger{TriggerGraphUpdate}, Action: rec.action("r1")},
			{ID: "r2", Priority: PriorityCritical, Triggers: []Trigger{TriggerGraphUpdate}, Action: rec.action("r2")},
			{ID: "r3", Priority: PriorityHigh, Triggers: []Trigger{TriggerGraphUpdate}, Action: rec.action("r3")},
		}))

		entries, err := e.Trigger(context.Background(), TriggerGraphUpdate, Input{})
		require.NoError(t, err)
		require.Len(t, entries, 3)
		require.Equal(t, []string{"r2", "r3", "r1"}, rec.snapshot(), "iteration %d", i)
	}
}

func TestEngine_Trigger_StartOrderWithConditions(t *testing.T) {
	e := newTestEngine(t, Config{MaxConcurrency: 4})
	rec := &recorder{}
	skip := func(id string) ConditionFunc {
		return func(ctx context.Context, rc *Context) (bool, error) {
			_ = rec.action(id)(ctx, rc)
			return false, nil
		}
	}
	require.NoError(t, e.RegisterRules([]Rule{
		{ID: "low", Priority: PriorityLow, Triggers: []Trigger{TriggerManual}, Action: rec.action("low")},
		{ID: "skipped", Priority: PriorityHigh, Triggers: []Trigger{TriggerManual}, Condition: skip("skipped"), Action: noop},
		{ID: "critical", Priority: PriorityCritical, Triggers: []Trigger{TriggerManual}, Action: rec.action("critical")},
	}))

	for i := 0; i < 200; i++ {
		rec.mu.Lock()
		rec.order = nil
		rec.mu.Unlock()

		_, err := e.Trigger(context.Background(), TriggerManual, Input{})
		require.NoError(t, err)
		require.Equal(t, []string{"critical", "skipped", "low"}, rec.snapshot())
	}
}

func TestEngine_RegisterUnregister_Concurrent(t *testing.T) {
	e := newTestEngine(t, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = e.RegisterRule(Rule{ID: "flip", Triggers: []Trigger{TriggerManual}, Action: noop})
		}()
		go func() {
			defer wg.Done()
			e.UnregisterRule("flip")
		}()
	}
	wg.Wait()

	_, registered := e.GetRule("flip")
	_, hasStats := e.GetRuleStatistics("flip")
	assert.Equal(t, registered, hasStats)
	assert.Len(t, e.GetStatistics().Rules, len(e.GetAllRules()))
}

func TestEngine_Trigger_ConcurrencyCap(t *testing.T) {
	e := newTestEngine(t, Config{MaxConcurrency: 2})

	gate := make(chan struct{})
	var inFlight, maxSeen, started atomic.Int32
	blocking := func(context.Context, *Context) error {
		started.Add(1)
		n := inFlight.Add(1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		<-gate
		inFlight.Add(-1)
		return nil
	}

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, e.RegisterRule(Rule{ID: id, Triggers: []Trigger{TriggerFileChange}, Action: blocking}))
	}

	type result struct {
		entries []LogEntry
		err     error
	}
	done := make(chan result, 1)
	go func() {
		entries, err := e.Trigger(context.Background(), TriggerFileChange, Input{FilePath: "/docs/a.md"})
		done <- result{entries, err}
	}()

	require.Eventually(t, func() bool { return started.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), started.Load(), "no third rule may start while the pool is full")
	assert.Equal(t, int64(2), e.ActiveExecutions())

	close(gate)
	res := <-done
	require.NoError(t, res.err)
	assert.Len(t, res.entries, 5)
	assert.LessOrEqual(t, maxSeen.Load(), int32(2))
	assert.Equal(t, int64(0), e.ActiveExecutions())
	for _, entry := range res.entries {
		assert.Equal(t, StatusSuccess, entry.Status)
		assert.Equal(t, "/docs/a.md", entry.Context.FilePath)
	}
}

func TestEngine_Trigger_SkipSemantics(t *testing.T) {
	e := newTestEngine(t, Config{})
	var called atomic.Bool

	require.NoError(t, e.RegisterRule(Rule{
		ID:        "skip-me",
		Triggers:  []Trigger{TriggerFileAdd},
		Condition: func(context.Context, *Context) (bool, error) { return false, nil },
		Action: func(context.Context, *Context) error {
			called.Store(true)
			return nil
		},
	}))

	entries, err := e.Trigger(context.Background(), TriggerFileAdd, Input{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.False(t, called.Load())
	assert.Equal(t, StatusSkipped, entry.Status)
	assert.True(t, entry.ConditionEvaluated)
	require.NotNil(t, entry.ConditionResult)
	assert.False(t, *entry.ConditionResult)
	assert.NotNil(t, entry.CompletedAt)
	assert.Empty(t, entry.Error)

	stats, ok := e.GetRuleStatistics("skip-me")
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.TotalExecutions)
	assert.Equal(t, int64(1), stats.SkippedCount)
	assert.True(t, math.IsInf(stats.MinExecutionTime, 1))
	assert.Zero(t, stats.MaxExecutionTime)
	assert.Zero(t, stats.AverageExecutionTime)
}

func TestEngine_Trigger_ConditionTrue(t *testing.T) {
	e := newTestEngine(t, Config{})
	require.NoError(t, e.RegisterRule(Rule{
		ID:        "md-only",
		Triggers:  []Trigger{TriggerFileChange},
		Condition: func(_ context.Context, rc *Context) (bool, error) { return rc.FilePath != "", nil },
		Action:    noop,
	}))

	entries, err := e.Trigger(context.Background(), TriggerFileChange, Input{FilePath: "x.md"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusSuccess, entries[0].Status)
	require.NotNil(t, entries[0].ConditionResult)
	assert.True(t, *entries[0].ConditionResult)
}

func TestEngine_Trigger_FailureIsolation(t *testing.T) {
	e := newTestEngine(t, Config{})
	var siblings atomic.Int32

	require.NoError(t, e.RegisterRule(Rule{
		ID:       "broken",
		Triggers: []Trigger{TriggerAgentComplete},
		Priority: PriorityCritical,
		Action:   func(context.Context, *Context) error { return errors.New("boom") },
	}))
	for _, id := range []string{"ok1", "ok2"} {
		require.NoError(t, e.RegisterRule(Rule{
			ID:       id,
			Triggers: []Trigger{TriggerAgentComplete},
			Action: func(context.Context, *Context) error {
				siblings.Add(1)
				return nil
			},
		}))
	}

	entries, err := e.Trigger(context.Background(), TriggerAgentComplete, Input{AgentData: map[string]any{"ok": true}})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, int32(2), siblings.Load())

	failed := e.FailedLogs()
	require.Len(t, failed, 1)
	assert.Equal(t, "broken", failed[0].RuleID)
	assert.Contains(t, failed[0].Error, "boom")
}

func TestEngine_Trigger_PropagatesNonToleratedFailure(t *testing.T) {
	e := newTestEngine(t, Config{})
	var slowDone atomic.Bool
	cause := errors.New("fatal")

	require.NoError(t, e.RegisterRule(Rule{
		ID:                "strict",
		Name:              "Strict rule",
		Triggers:          []Trigger{TriggerManual},
		Priority:          PriorityCritical,
		ContinueOnFailure: Bool(false),
		Action:            func(context.Context, *Context) error { return cause },
	}))
	require.NoError(t, e.RegisterRule(Rule{
		ID:       "slow",
		Triggers: []Trigger{TriggerManual},
		Action: func(context.Context, *Context) error {
			time.Sleep(30 * time.Millisecond)
			slowDone.Store(true)
			return nil
		},
	}))

	entries, err := e.Trigger(context.Background(), TriggerManual, Input{})
	require.Error(t, err)

	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "strict", ruleErr.RuleID)
	assert.Equal(t, TriggerManual, ruleErr.Trigger)
	assert.ErrorIs(t, err, cause)

	assert.True(t, slowDone.Load(), "started siblings finish before Trigger returns")
	assert.Len(t, entries, 2)
	assert.Len(t, e.Logs(), 2)
}

func TestEngine_Trigger_Timeout(t *testing.T) {
	e := newTestEngine(t, Config{})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	require.NoError(t, e.RegisterRule(Rule{
		ID:       "hang",
		Name:     "hanging action",
		Triggers: []Trigger{TriggerManual},
		Timeout:  50 * time.Millisecond,
		Action: func(context.Context, *Context) error {
			<-release
			return nil
		},
	}))

	start := time.Now()
	entries, err := e.Trigger(context.Background(), TriggerManual, Input{})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusFailure, entries[0].Status)
	assert.Contains(t, entries[0].Error, "hanging action")
	assert.Contains(t, entries[0].Error, "timed out")
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.GreaterOrEqual(t, entries[0].DurationMs, 50.0)
}

func TestEngine_Trigger_ConditionFailures(t *testing.T) {
	e := newTestEngine(t, Config{MaxConcurrency: 1})
	var actions atomic.Int32
	countAction := func(context.Context, *Context) error {
		actions.Add(1)
		return nil
	}

	require.NoError(t, e.RegisterRules([]Rule{
		{
			ID:        "cond-error",
			Triggers:  []Trigger{TriggerManual},
			Condition: func(context.Context, *Context) (bool, error) { return false, errors.New("bad condition") },
			Action:    countAction,
		},
		{
			ID:        "cond-panic",
			Triggers:  []Trigger{TriggerManual},
			Condition: func(context.Context, *Context) (bool, error) { panic("kaboom") },
			Action:    countAction,
		},
		{
			ID:       "action-panic",
			Triggers: []Trigger{TriggerManual},
			Action:   func(context.Context, *Context) error { panic("action kaboom") },
		},
	}))

	entries, err := e.Trigger(context.Background(), TriggerManual, Input{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Zero(t, actions.Load())

	byID := make(map[string]LogEntry)
	for _, entry := range entries {
		byID[entry.RuleID] = entry
		assert.Equal(t, StatusFailure, entry.Status, entry.RuleID)
	}
	assert.True(t, byID["cond-error"].ConditionEvaluated)
	assert.Nil(t, byID["cond-error"].ConditionResult)
	assert.Contains(t, byID["cond-error"].Error, "bad condition")
	assert.Contains(t, byID["cond-panic"].Error, "kaboom")
	assert.Contains(t, byID["action-panic"].Error, ErrRulePanic.Error())
}

func TestEngine_Trigger_ContextPerExecution(t *testing.T) {
	e := newTestEngine(t, Config{MaxConcurrency: 1})
	var seen any
	var engineRef *Engine
	var trigger Trigger
	var stamp time.Time

	require.NoError(t, e.RegisterRules([]Rule{
		{
			ID: "writer", Priority: PriorityHigh, Triggers: []Trigger{TriggerGraphUpdate},
			Action: func(_ context.Context, rc *Context) error {
				rc.Extensions["node_id"] = "mutated"
				rc.Extensions["added"] = true
				return nil
			},
		},
		{
			ID: "reader", Triggers: []Trigger{TriggerGraphUpdate},
			Action: func(_ context.Context, rc *Context) error {
				seen, _ = rc.Extension("node_id")
				engineRef = rc.Engine
				trigger = rc.Trigger
				stamp = rc.Timestamp
				if _, ok := rc.Extension("added"); ok {
					return errors.New("extension leaked between rules")
				}
				return nil
			},
		},
	}))

	ext := map[string]any{"node_id": "n1"}
	entries, err := e.Trigger(context.Background(), TriggerGraphUpdate, Input{Extensions: ext})
	require.NoError(t, err)
	for _, entry := range entries {
		assert.Equal(t, StatusSuccess, entry.Status, entry.Error)
	}
	assert.Equal(t, "n1", seen)
	assert.Equal(t, "n1", ext["node_id"], "caller map untouched")
	assert.Same(t, e, engineRef)
	assert.Equal(t, TriggerGraphUpdate, trigger)
	assert.False(t, stamp.IsZero())
}

func TestEngine_ActionsCanCallBack(t *testing.T) {
	e := newTestEngine(t, Config{})
	var nested []LogEntry

	require.NoError(t, e.RegisterRule(Rule{
		ID: "spawner", Triggers: []Trigger{TriggerManual},
		Action: func(ctx context.Context, rc *Context) error {
			if err := rc.Engine.RegisterRule(Rule{ID: "child", Triggers: []Trigger{TriggerGraphUpdate}, Action: noop}); err != nil {
				return err
			}
			_ = rc.Engine.GetStatistics()
			var err error
			nested, err = rc.Engine.Trigger(ctx, TriggerGraphUpdate, Input{})
			return err
		},
	}))

	entries, err := e.Trigger(context.Background(), TriggerManual, Input{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusSuccess, entries[0].Status)
	require.Len(t, nested, 1)
	assert.Equal(t, "child", nested[0].RuleID)
	assert.Len(t, e.Logs(), 2)
}

func TestEngine_ExecuteRuleByID(t *testing.T) {
	e := newTestEngine(t, Config{})
	var got Trigger
	require.NoError(t, e.RegisterRule(Rule{
		ID:       "manual-only",
		Triggers: []Trigger{TriggerFileAdd},
		Enabled:  Bool(false),
		Action: func(_ context.Context, rc *Context) error {
			got = rc.Trigger
			return nil
		},
	}))
	require.NoError(t, e.RegisterRule(Rule{
		ID:                "strict",
		Triggers:          []Trigger{TriggerManual},
		ContinueOnFailure: Bool(false),
		Action:            func(context.Context, *Context) error { return errors.New("nope") },
	}))

	t.Run("unknown id", func(t *testing.T) {
		entry, err := e.ExecuteRuleByID(context.Background(), "missing", "", Input{})
		assert.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("disabled rule runs on demand", func(t *testing.T) {
		entry, err := e.ExecuteRuleByID(context.Background(), "manual-only", "", Input{})
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, StatusSuccess, entry.Status)
		assert.Equal(t, TriggerManual, entry.Trigger)
		assert.Equal(t, TriggerManual, got)
	})

	t.Run("explicit trigger", func(t *testing.T) {
		entry, err := e.ExecuteRuleByID(context.Background(), "manual-only", TriggerAgentComplete, Input{})
		require.NoError(t, err)
		assert.Equal(t, TriggerAgentComplete, entry.Trigger)
	})

	t.Run("non-tolerated failure", func(t *testing.T) {
		entry, err := e.ExecuteRuleByID(context.Background(), "strict", "", Input{})
		var ruleErr *RuleError
		require.ErrorAs(t, err, &ruleErr)
		require.NotNil(t, entry)
		assert.Equal(t, StatusFailure, entry.Status)
	})
}

func TestEngine_Statistics(t *testing.T) {
	e := newTestEngine(t, Config{})
	fail := atomic.Bool{}
	skip := atomic.Bool{}

	require.NoError(t, e.RegisterRule(Rule{
		ID:        "r",
		Triggers:  []Trigger{TriggerFileChange, TriggerManual},
		Condition: func(context.Context, *Context) (bool, error) { return !skip.Load(), nil },
		Action: func(context.Context, *Context) error {
			if fail.Load() {
				return errors.New("failed")
			}
			return nil
		},
	}))
	require.NoError(t, e.RegisterRule(Rule{ID: "off", Triggers: []Trigger{TriggerManual}, Enabled: Bool(false), Action: noop}))

	ctx := context.Background()
	skip.Store(true)
	_, _ = e.Trigger(ctx, TriggerFileChange, Input{})
	skip.Store(false)
	_, _ = e.Trigger(ctx, TriggerFileChange, Input{})
	fail.Store(true)
	_, _ = e.Trigger(ctx, TriggerManual, Input{})

	stats := e.GetStatistics()
	assert.Equal(t, 2, stats.TotalRules)
	assert.Equal(t, 1, stats.EnabledRules)
	assert.Equal(t, int64(3), stats.TotalExecutions)
	assert.InDelta(t, 1.0/3.0, stats.SuccessRate, 1e-9)
	assert.Equal(t, int64(0), stats.ActiveExecutions)

	rs := stats.Rules["r"]
	assert.Equal(t, int64(1), rs.SuccessCount)
	assert.Equal(t, int64(1), rs.FailureCount)
	assert.Equal(t, int64(1), rs.SkippedCount)
	assert.False(t, math.IsInf(rs.MinExecutionTime, 1))
	assert.LessOrEqual(t, rs.MinExecutionTime, rs.MaxExecutionTime)
	assert.NotNil(t, rs.LastSuccessAt)
	assert.NotNil(t, rs.LastFailureAt)

	assert.Equal(t, int64(2), stats.Triggers[TriggerFileChange].TotalExecutions)
	assert.Equal(t, int64(1), stats.Triggers[TriggerFileChange].SuccessCount)
	assert.Equal(t, int64(1), stats.Triggers[TriggerManual].TotalExecutions)
	for _, trig := range KnownTriggers {
		assert.Contains(t, stats.Triggers, trig)
	}

	e.ResetStatistics()
	stats = e.GetStatistics()
	assert.Zero(t, stats.TotalExecutions)
	assert.True(t, math.IsInf(stats.Rules["r"].MinExecutionTime, 1))
	assert.Zero(t, stats.Triggers[TriggerFileChange].TotalExecutions)
	assert.Equal(t, 2, stats.TotalRules)
	assert.Len(t, e.Logs(), 3, "reset keeps logs")

	require.True(t, e.UnregisterRule("off"))
	_, ok := e.GetRuleStatistics("off")
	assert.False(t, ok)
}

func TestEngine_LogsAndSummary(t *testing.T) {
	e := newTestEngine(t, Config{LogCapacity: 3, MaxConcurrency: 1})
	require.NoError(t, e.RegisterRule(Rule{ID: "r", Triggers: []Trigger{TriggerFileAdd, TriggerManual}, Action: noop}))

	for i := 0; i < 5; i++ {
		_, err := e.Trigger(context.Background(), TriggerFileAdd, Input{FilePath: string(rune('a' + i))})
		require.NoError(t, err)
	}

	logs := e.Logs()
	require.Len(t, logs, 3)
	assert.Equal(t, []string{"c", "d", "e"}, []string{logs[0].Context.FilePath, logs[1].Context.FilePath, logs[2].Context.FilePath})

	latest := e.LatestLogs(2)
	require.Len(t, latest, 2)
	assert.Equal(t, "d", latest[0].Context.FilePath)
	assert.Equal(t, "e", latest[1].Context.FilePath)

	summary := e.GetSummary()
	assert.Equal(t, 1, summary.TotalRules)
	assert.Equal(t, 1, summary.EnabledRules)
	assert.Equal(t, []Trigger{TriggerFileAdd, TriggerManual}, summary.Triggers)
	assert.Equal(t, 3, summary.LogSize)
	assert.Equal(t, 3, summary.LogCapacity)

	e.ClearLogs()
	assert.Empty(t, e.Logs())
	assert.Equal(t, 0, e.GetSummary().LogSize)
	assert.Equal(t, int64(5), e.GetStatistics().TotalExecutions, "clearing logs keeps statistics")
}

func TestEngine_IndependentInstances(t *testing.T) {
	a := newTestEngine(t, Config{})
	b := newTestEngine(t, Config{})
	require.NoError(t, a.RegisterRule(Rule{ID: "r", Triggers: []Trigger{TriggerManual}, Action: noop}))

	assert.Len(t, a.GetAllRules(), 1)
	assert.Empty(t, b.GetAllRules())
}
