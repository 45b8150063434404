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

import "fmt"

// Trigger names a category of event that can cause rule dispatch.
type Trigger string

const (
	TriggerFileAdd       Trigger = "file:add"
	TriggerFileChange    Trigger = "file:change"
	TriggerFileUnlink    Trigger = "file:unlink"
	TriggerGraphUpdate   Trigger = "graph:update"
	TriggerAgentComplete Trigger = "agent:complete"
	TriggerManual        Trigger = "manual"
)

// KnownTriggers lists the built-in trigger kinds. Trigger statistics are
// pre-seeded for each of them.
var KnownTriggers = []Trigger{
	TriggerFileAdd,
	TriggerFileChange,
	TriggerFileUnlink,
	TriggerGraphUpdate,
	TriggerAgentComplete,
	TriggerManual,
}

// Priority orders rule starts within one trigger dispatch.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// rank returns the start order of p; lower starts first.
func (p Priority) rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal, "":
		return 2
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// ParsePriority converts a string into a Priority. The empty string is normal.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return p, nil
	case "":
		return PriorityNormal, nil
	default:
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidRule, s)
	}
}

// Status is the state of one rule execution.
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)
