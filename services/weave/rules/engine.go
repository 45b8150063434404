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
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/weave/services/weave/history"
)

// Engine defaults.
const (
	DefaultMaxConcurrency = 5
	DefaultRuleTimeout    = 30 * time.Second
)

// Config configures an Engine.
type Config struct {
	// MaxConcurrency caps in-flight rule executions per Trigger call.
	// Default: 5
	MaxConcurrency int `validate:"gte=0"`

	// DefaultTimeout applies to rules registered without a timeout.
	// Default: 30s
	DefaultTimeout time.Duration `validate:"gte=0"`

	// LogCapacity is the number of execution log entries retained.
	// Default: 1000
	LogCapacity int `validate:"gte=0"`

	// Logger for dispatch logs. Nil uses slog.Default().
	Logger *slog.Logger `validate:"-"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: DefaultMaxConcurrency,
		DefaultTimeout: DefaultRuleTimeout,
		LogCapacity:    history.DefaultCapacity,
	}
}

// Engine is the rule dispatcher.
//
// Description:
//
//	Engine owns a Registry, the execution log and the statistics
//	aggregator. Trigger runs the enabled rules subscribed to a trigger
//	kind, started in priority order with at most MaxConcurrency in
//	flight, each under its own timeout.
//
// Thread Safety:
//
//	Engine is safe for concurrent use. Multiple Trigger calls may run at
//	once; the concurrency cap applies per call. Rule actions may call back
//	into the Engine, including nested Trigger calls.
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	registry *Registry

	mu    sync.Mutex // guards log and stats, and rule (un)registration
	log   *history.RingLog[LogEntry]
	stats *aggregator

	active  atomic.Int64
	metrics engineMetrics
	now     func() time.Time
}

// NewEngine creates a dispatcher with its own registry.
//
// Inputs:
//
//	cfg - Engine configuration. Zero values take the defaults.
//
// Outputs:
//
//	*Engine - The configured engine, independent of any other Engine.
//	error - ErrInvalidRule wrapping the validation failure for negative values.
func NewEngine(cfg Config) (*Engine, error) {
	if err := ruleValidate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%w: engine config: %v", ErrInvalidRule, err)
	}
	defaults := DefaultConfig()
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = defaults.MaxConcurrency
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = defaults.DefaultTimeout
	}
	if cfg.LogCapacity == 0 {
		cfg.LogCapacity = defaults.LogCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With(slog.String("component", "rule_engine"))

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		registry: NewRegistry(cfg.DefaultTimeout, logger),
		log:      history.NewRingLog[LogEntry](cfg.LogCapacity),
		stats:    newAggregator(),
		now:      time.Now,
	}
	e.metrics.init(logger)
	return e, nil
}

// Config returns the effective engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// RegisterRule registers a rule and gives it fresh statistics.
//
// Replacing an existing id logs a warning and resets that rule's statistics.
func (e *Engine) RegisterRule(rule Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.registry.Register(rule); err != nil {
		return err
	}
	e.stats.initRule(rule.ID)
	return nil
}

// RegisterRules registers each rule in order, stopping at the first error.
func (e *Engine) RegisterRules(rules []Rule) error {
	for _, rule := range rules {
		if err := e.RegisterRule(rule); err != nil {
			return err
		}
	}
	return nil
}

// UnregisterRule removes a rule and its statistics.
func (e *Engine) UnregisterRule(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.registry.Unregister(id) {
		return false
	}
	e.stats.removeRule(id)
	return true
}

// GetRule returns the rule with the given id.
func (e *Engine) GetRule(id string) (Rule, bool) {
	return e.registry.Get(id)
}

// GetAllRules returns every rule in registration order.
func (e *Engine) GetAllRules() []Rule {
	return e.registry.All()
}

// GetRulesByTrigger returns the enabled rules subscribed to t.
func (e *Engine) GetRulesByTrigger(t Trigger) []Rule {
	return e.registry.ByTrigger(t)
}

// EnableRule enables a rule. Returns false if the id is unknown.
func (e *Engine) EnableRule(id string) bool {
	return e.registry.SetEnabled(id, true)
}

// DisableRule disables a rule. Returns false if the id is unknown.
func (e *Engine) DisableRule(id string) bool {
	return e.registry.SetEnabled(id, false)
}

// Trigger dispatches every enabled rule subscribed to trigger.
//
// Description:
//
//	Rules are started critical first and low last, keeping registration
//	order within a priority. A rule is not handed to the pool until the
//	previous one has entered its condition or action, so start order is
//	deterministic even though executions overlap. At most MaxConcurrency
//	executions are in flight; once the pool is full the next start waits
//	for a free slot. Trigger waits for every started execution before
//	returning.
//
// Inputs:
//
//	ctx - Cancellation. Cancelling it fails the executions still running.
//	trigger - The trigger kind.
//	input - Caller-supplied context fields, copied into every execution.
//
// Outputs:
//
//	[]LogEntry - One entry per executed rule, in completion order. Empty
//	when no rule is subscribed.
//	error - *RuleError for the first failure (in completion order) of a
//	rule with ContinueOnFailure=false; ErrNilContext for a nil ctx.
func (e *Engine) Trigger(ctx context.Context, trigger Trigger, input Input) ([]LogEntry, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	rules := e.registry.ByTrigger(trigger)
	if len(rules) == 0 {
		return []LogEntry{}, nil
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority.rank() < rules[j].Priority.rank()
	})

	base := e.newContext(trigger, input)

	var (
		mu       sync.Mutex
		entries  = make([]LogEntry, 0, len(rules))
		firstErr error
	)

	g := new(errgroup.Group)
	g.SetLimit(e.cfg.MaxConcurrency)
	for i := range rules {
		rule := &rules[i]
		started := make(chan struct{})
		g.Go(func() error {
			entry, err := e.execute(ctx, rule, base.clone(), func() { close(started) })

			mu.Lock()
			defer mu.Unlock()
			entries = append(entries, entry)
			if err != nil && !rule.ContinuesOnFailure() && firstErr == nil {
				firstErr = &RuleError{RuleID: rule.ID, RuleName: rule.Name, Trigger: trigger, Err: err}
			}
			return nil
		})
		<-started
	}
	_ = g.Wait()

	return entries, firstErr
}

// ExecuteRuleByID runs one rule regardless of its triggers or enabled state.
//
// Description:
//
//	The trigger kind defaults to manual. An unknown id is logged and
//	reported as (nil, nil).
//
// Outputs:
//
//	*LogEntry - The execution record, or nil for an unknown id.
//	error - *RuleError if the rule failed and does not continue on failure.
func (e *Engine) ExecuteRuleByID(ctx context.Context, id string, trigger Trigger, input Input) (*LogEntry, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	rule, ok := e.registry.Get(id)
	if !ok {
		e.logger.Warn("rule not found", slog.String("rule_id", id))
		return nil, nil
	}
	if trigger == "" {
		trigger = TriggerManual
	}

	entry, err := e.execute(ctx, &rule, e.newContext(trigger, input).clone(), nil)
	if err != nil && !rule.ContinuesOnFailure() {
		return &entry, &RuleError{RuleID: rule.ID, RuleName: rule.Name, Trigger: trigger, Err: err}
	}
	return &entry, nil
}

func (e *Engine) newContext(trigger Trigger, input Input) *Context {
	return &Context{
		Trigger:    trigger,
		Timestamp:  e.now(),
		FilePath:   input.FilePath,
		AgentData:  input.AgentData,
		Engine:     e,
		Extensions: input.Extensions,
	}
}

// execute runs one rule through running -> success|failure|skipped.
//
// The returned error is the condition or action failure, if any; whether
// it propagates is the caller's decision. onStart, when non-nil, is called
// exactly once: just before the first user callback runs, or on return if
// none ran.
func (e *Engine) execute(ctx context.Context, rule *Rule, rc *Context, onStart func()) (LogEntry, error) {
	var startOnce sync.Once
	begin := func() {
		if onStart != nil {
			startOnce.Do(onStart)
		}
	}
	defer begin()

	ctx, span := startExecutionSpan(ctx, rule, rc.Trigger)
	defer span.End()

	entry := LogEntry{
		ID:        uuid.NewString(),
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		Status:    StatusRunning,
		Trigger:   rc.Trigger,
		StartedAt: e.now(),
		Context: ContextSnapshot{
			FilePath:  rc.FilePath,
			Trigger:   rc.Trigger,
			Timestamp: rc.Timestamp,
		},
	}
	e.active.Add(1)
	e.metrics.addActive(ctx, 1)
	start := time.Now()

	var err error
	entry.Status = StatusSuccess

	if rule.Condition != nil {
		entry.ConditionEvaluated = true
		label := fmt.Sprintf("rule %q condition", rule.Name)
		matched, condErr := WithTimeout(ctx, rule.Timeout, label, func(ctx context.Context) (bool, error) {
			begin()
			return rule.Condition(ctx, rc)
		})
		if condErr != nil {
			entry.Status = StatusFailure
			err = condErr
		} else {
			entry.ConditionResult = &matched
			if !matched {
				entry.Status = StatusSkipped
			}
		}
	}

	if entry.Status == StatusSuccess {
		label := fmt.Sprintf("rule %q action", rule.Name)
		_, err = WithTimeout(ctx, rule.Timeout, label, func(ctx context.Context) (struct{}, error) {
			begin()
			return struct{}{}, rule.Action(ctx, rc)
		})
		if err != nil {
			entry.Status = StatusFailure
		}
	}

	elapsed := time.Since(start)
	completed := entry.StartedAt.Add(elapsed)
	entry.CompletedAt = &completed
	entry.DurationMs = float64(elapsed.Microseconds()) / 1000
	if err != nil {
		entry.Error = err.Error()
	}

	e.active.Add(-1)
	e.metrics.addActive(ctx, -1)

	e.mu.Lock()
	e.log.Push(entry)
	e.stats.record(rule.ID, rc.Trigger, entry.Status, entry.DurationMs, completed)
	e.mu.Unlock()

	e.metrics.recordOutcome(ctx, rc.Trigger, entry.Status, elapsed.Seconds())
	span.SetAttributes(attribute.String("rule.status", string(entry.Status)))

	switch entry.Status {
	case StatusFailure:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("rule failed",
			slog.String("rule_id", rule.ID),
			slog.String("trigger", string(rc.Trigger)),
			slog.Bool("timeout", errors.Is(err, ErrTimeout)),
			slog.Bool("tolerated", rule.ContinuesOnFailure()),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()),
		)
	case StatusSkipped:
		span.SetStatus(codes.Ok, "")
		e.logger.Debug("rule skipped",
			slog.String("rule_id", rule.ID),
			slog.String("trigger", string(rc.Trigger)),
		)
	default:
		span.SetStatus(codes.Ok, "")
		e.logger.Debug("rule completed",
			slog.String("rule_id", rule.ID),
			slog.String("trigger", string(rc.Trigger)),
			slog.Duration("duration", elapsed),
		)
	}

	return entry, err
}

// ActiveExecutions returns the number of rule executions in flight.
func (e *Engine) ActiveExecutions() int64 {
	return e.active.Load()
}

// Logs returns the retained execution log, oldest first.
func (e *Engine) Logs() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.Slice()
}

// FailedLogs returns the retained failure entries, oldest first.
func (e *Engine) FailedLogs() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.Filter(func(entry LogEntry) bool { return entry.Status == StatusFailure })
}

// LatestLogs returns the newest n entries, oldest first.
func (e *Engine) LatestLogs(n int) []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.Latest(n)
}

// ClearLogs empties the execution log.
func (e *Engine) ClearLogs() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log.Clear()
}

// GetStatistics returns a snapshot of all statistics.
func (e *Engine) GetStatistics() Statistics {
	total, enabled := e.registry.Counts()

	e.mu.Lock()
	stats := e.stats.snapshot()
	e.mu.Unlock()

	stats.TotalRules = total
	stats.EnabledRules = enabled
	stats.ActiveExecutions = e.active.Load()
	return stats
}

// GetRuleStatistics returns the statistics of one rule.
func (e *Engine) GetRuleStatistics(id string) (RuleStatistics, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rs, ok := e.stats.rules[id]
	if !ok {
		return RuleStatistics{}, false
	}
	return *rs, true
}

// ResetStatistics zeroes every counter. Rules and logs are untouched.
func (e *Engine) ResetStatistics() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.reset(e.registry.IDs())
}

// GetSummary returns a cheap operational snapshot.
func (e *Engine) GetSummary() Summary {
	total, enabled := e.registry.Counts()

	e.mu.Lock()
	size, capacity := e.log.Len(), e.log.Cap()
	e.mu.Unlock()

	return Summary{
		TotalRules:       total,
		EnabledRules:     enabled,
		Triggers:         e.registry.Triggers(),
		ActiveExecutions: e.active.Load(),
		LogSize:          size,
		LogCapacity:      capacity,
	}
}
