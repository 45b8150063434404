// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules provides the rule registry and the concurrency-bounded
// dispatcher that runs rules in response to triggers.
//
// A rule is a condition/action pair bound to one or more trigger kinds.
// When a trigger fires, the Engine selects the enabled rules subscribed
// to it, starts them in priority order with at most MaxConcurrency in
// flight, applies each rule's timeout to its condition and action, and
// records every outcome in a bounded execution log and running
// statistics.
//
// # Thread Safety
//
// Engine and Registry are safe for concurrent use. Rule actions may call
// back into the Engine (register rules, read statistics, fire nested
// triggers) while a trigger is being dispatched.
//
// # Failure Model
//
// Unknown rule ids are routine and reported as false or nil. A failing
// or timed-out rule is recorded and isolated from its siblings unless
// the rule opts out with ContinueOnFailure=false, in which case Trigger
// returns a *RuleError once every started execution has finished.
package rules

import (
	"errors"
	"fmt"
)

// Sentinel errors for rule registration and execution.
var (
	// ErrInvalidRule is returned when a rule fails validation at registration.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrTimeout is wrapped by errors from operations that exceeded their timeout.
	ErrTimeout = errors.New("timed out")

	// ErrRulePanic is wrapped by errors from conditions or actions that panicked.
	ErrRulePanic = errors.New("rule panicked")

	// ErrNilContext is returned when a nil context.Context is passed in.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnknownAction is returned when a rule file names an unregistered action.
	ErrUnknownAction = errors.New("unknown action")
)

// RuleError reports a rule execution failure that was not tolerated.
type RuleError struct {
	RuleID   string
	RuleName string
	Trigger  Trigger
	Err      error
}

// Error implements error.
func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %q (%s) failed on %s: %v", e.RuleName, e.RuleID, e.Trigger, e.Err)
}

// Unwrap returns the underlying failure.
func (e *RuleError) Unwrap() error {
	return e.Err
}
