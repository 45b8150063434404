// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package weave

import (
	"encoding/json"
	"time"

	"github.com/AleutianAI/weave/services/weave/graph"
	"github.com/AleutianAI/weave/services/weave/rules"
)

// =============================================================================
// Common
// =============================================================================

// ErrorResponse is returned for failed requests.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`
}

// HealthResponse is returned by GET /v1/weave/health.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Nodes         int     `json:"nodes"`
	Edges         int     `json:"edges"`
	Rules         int     `json:"rules"`
	Storage       string  `json:"storage"`
}

// =============================================================================
// Graph
// =============================================================================

// CreateNodeResponse is returned by POST /v1/weave/nodes.
type CreateNodeResponse struct {
	ID string `json:"id"`
}

// UpdateNodeRequest is the body of PATCH /v1/weave/nodes/:id. Absent
// fields are left unchanged.
type UpdateNodeRequest struct {
	Title         *string                    `json:"title"`
	Path          *string                    `json:"path"`
	Filename      *string                    `json:"filename"`
	Type          *graph.NodeType            `json:"type"`
	Status        *graph.NodeStatus          `json:"status"`
	Content       *string                    `json:"content"`
	Frontmatter   map[string]json.RawMessage `json:"frontmatter"`
	Tags          *[]string                  `json:"tags"`
	OutgoingLinks *[]graph.Link              `json:"outgoing_links"`
}

func (r UpdateNodeRequest) toUpdate() graph.NodeUpdate {
	return graph.NodeUpdate{
		Title:         r.Title,
		Path:          r.Path,
		Filename:      r.Filename,
		Type:          r.Type,
		Status:        r.Status,
		Content:       r.Content,
		Frontmatter:   r.Frontmatter,
		Tags:          r.Tags,
		OutgoingLinks: r.OutgoingLinks,
	}
}

// NodesResponse wraps a node list.
type NodesResponse struct {
	Nodes []graph.KnowledgeNode `json:"nodes"`
	Count int                   `json:"count"`
}

func nodesResponse(nodes []graph.KnowledgeNode) NodesResponse {
	if nodes == nil {
		nodes = []graph.KnowledgeNode{}
	}
	return NodesResponse{Nodes: nodes, Count: len(nodes)}
}

// EdgesResponse wraps an edge list.
type EdgesResponse struct {
	Edges []graph.GraphEdge `json:"edges"`
	Count int               `json:"count"`
}

func edgesResponse(edges []graph.GraphEdge) EdgesResponse {
	if edges == nil {
		edges = []graph.GraphEdge{}
	}
	return EdgesResponse{Edges: edges, Count: len(edges)}
}

// AddEdgeResponse is returned by POST /v1/weave/edges.
type AddEdgeResponse struct {
	Added bool `json:"added"`
}

// PathResponse is returned by GET /v1/weave/path.
type PathResponse struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Found bool     `json:"found"`
	Path  []string `json:"path"`
	Hops  int      `json:"hops"`
}

// HubsResponse is returned by GET /v1/weave/hubs.
type HubsResponse struct {
	Nodes []graph.ConnectedNode `json:"nodes"`
}

// ImportResponse is returned by POST /v1/weave/import.
type ImportResponse struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// =============================================================================
// Rules
// =============================================================================

// TriggerRequest is the body of POST /v1/weave/triggers/:trigger and
// POST /v1/weave/rules/:id/execute.
type TriggerRequest struct {
	FilePath   string         `json:"file_path"`
	AgentData  any            `json:"agent_data"`
	Extensions map[string]any `json:"extensions"`

	// Trigger overrides the trigger for rule execution (default manual).
	Trigger string `json:"trigger"`
}

func (r TriggerRequest) input() rules.Input {
	return rules.Input{FilePath: r.FilePath, AgentData: r.AgentData, Extensions: r.Extensions}
}

// TriggerResponse lists the executions a trigger produced.
type TriggerResponse struct {
	Trigger    rules.Trigger    `json:"trigger"`
	Executions []rules.LogEntry `json:"executions"`
	Error      string           `json:"error,omitempty"`
}

// RuleInfo is the JSON view of a registered rule.
type RuleInfo struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Triggers          []rules.Trigger `json:"triggers"`
	Priority          rules.Priority  `json:"priority"`
	Enabled           bool            `json:"enabled"`
	ContinueOnFailure bool            `json:"continue_on_failure"`
	TimeoutMs         int64           `json:"timeout_ms"`
	HasCondition      bool            `json:"has_condition"`
}

func ruleInfo(r rules.Rule) RuleInfo {
	return RuleInfo{
		ID:                r.ID,
		Name:              r.Name,
		Description:       r.Description,
		Triggers:          r.Triggers,
		Priority:          r.Priority,
		Enabled:           r.IsEnabled(),
		ContinueOnFailure: r.ContinuesOnFailure(),
		TimeoutMs:         r.Timeout.Milliseconds(),
		HasCondition:      r.Condition != nil,
	}
}

// RulesResponse wraps a rule list.
type RulesResponse struct {
	Rules []RuleInfo `json:"rules"`
	Count int        `json:"count"`
}

// LogsResponse wraps execution log entries.
type LogsResponse struct {
	Entries []rules.LogEntry `json:"entries"`
	Count   int              `json:"count"`
}

func logsResponse(entries []rules.LogEntry) LogsResponse {
	if entries == nil {
		entries = []rules.LogEntry{}
	}
	return LogsResponse{Entries: entries, Count: len(entries)}
}

// SnapshotSaveResponse is returned by POST /v1/weave/snapshots.
type SnapshotSaveResponse struct {
	Name    string    `json:"name"`
	SavedAt time.Time `json:"saved_at"`
}
