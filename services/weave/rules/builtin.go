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
)

// Ids of the built-in rules.
const (
	FileChangeLoggerID       = "builtin:file-change-logger"
	GraphUpdateNotifierID    = "builtin:graph-update-notifier"
	AgentCompletionHandlerID = "builtin:agent-completion-handler"
)

// FileChangeLoggerRule logs every file add, change and unlink at info level.
func FileChangeLoggerRule(logger *slog.Logger) Rule {
	if logger == nil {
		logger = slog.Default()
	}
	return Rule{
		ID:          FileChangeLoggerID,
		Name:        "File change logger",
		Description: "Logs file system changes reported by the watcher",
		Triggers:    []Trigger{TriggerFileAdd, TriggerFileChange, TriggerFileUnlink},
		Priority:    PriorityLow,
		Action: func(ctx context.Context, rc *Context) error {
			logger.InfoContext(ctx, "file changed",
				slog.String("trigger", string(rc.Trigger)),
				slog.String("path", rc.FilePath),
			)
			return nil
		},
	}
}

// GraphUpdateNotifierRule calls notify on every graph:update trigger.
func GraphUpdateNotifierRule(notify ActionFunc) Rule {
	return Rule{
		ID:          GraphUpdateNotifierID,
		Name:        "Graph update notifier",
		Description: "Forwards graph updates to a callback",
		Triggers:    []Trigger{TriggerGraphUpdate},
		Action:      notify,
	}
}

// AgentCompletionHandlerRule calls handle with the agent payload on every
// agent:complete trigger that carries one.
func AgentCompletionHandlerRule(handle func(ctx context.Context, rc *Context, agentData any) error) Rule {
	var action ActionFunc
	if handle != nil {
		action = func(ctx context.Context, rc *Context) error {
			return handle(ctx, rc, rc.AgentData)
		}
	}
	return Rule{
		ID:          AgentCompletionHandlerID,
		Name:        "Agent completion handler",
		Description: "Handles results reported by finished agent tasks",
		Triggers:    []Trigger{TriggerAgentComplete},
		Priority:    PriorityHigh,
		Condition: func(_ context.Context, rc *Context) (bool, error) {
			return rc.AgentData != nil, nil
		},
		Action: action,
	}
}
