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
	"context"
	"log/slog"

	"github.com/AleutianAI/weave/services/weave/graph"
	"github.com/AleutianAI/weave/services/weave/rules"
)

// MaxNotifyDepth bounds graph:update cascades. A rule that mutates the graph
// from a graph:update action would otherwise re-trigger itself forever.
const MaxNotifyDepth = 8

// Graph operations reported in the graph:update "operation" extension.
const (
	OpAddNode    = "add_node"
	OpUpdateNode = "update_node"
	OpRemoveNode = "remove_node"
	OpTouchNode  = "touch_node"
	OpAddEdge    = "add_edge"
	OpRemoveEdge = "remove_edge"
)

type notifyDepthKey struct{}

func notifyDepth(ctx context.Context) int {
	d, _ := ctx.Value(notifyDepthKey{}).(int)
	return d
}

// Notifier applies graph mutations and fires graph:update after each one
// that changed the graph.
//
// Extensions passed to rules:
//
//	node ops: operation, node_id
//	edge ops: operation, source, target, type
//
// Rule failures during the notification are logged, not returned: the
// mutation has already been applied.
type Notifier struct {
	store  *graph.Store
	engine *rules.Engine
	logger *slog.Logger
}

// NewNotifier wires store mutations to engine triggers.
func NewNotifier(store *graph.Store, engine *rules.Engine, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{store: store, engine: engine, logger: logger}
}

// Store returns the wrapped graph store for read access.
func (n *Notifier) Store() *graph.Store {
	return n.store
}

// AddNode adds or merges a node and notifies.
func (n *Notifier) AddNode(ctx context.Context, node graph.KnowledgeNode) (string, error) {
	id, err := n.store.AddNode(node)
	if err != nil {
		return "", err
	}
	n.notify(ctx, map[string]any{"operation": OpAddNode, "node_id": id})
	return id, nil
}

// UpdateNode applies a partial update and notifies when the node changed.
func (n *Notifier) UpdateNode(ctx context.Context, id string, update graph.NodeUpdate) (bool, error) {
	found, changed, err := n.store.ApplyNodeUpdate(id, update)
	if err != nil || !found {
		return found, err
	}
	if changed {
		n.notify(ctx, map[string]any{"operation": OpUpdateNode, "node_id": id})
	}
	return true, nil
}

// TouchNode refreshes a node's LastModified and always notifies when the
// node exists.
func (n *Notifier) TouchNode(ctx context.Context, id string) bool {
	if !n.store.TouchNode(id) {
		return false
	}
	n.notify(ctx, map[string]any{"operation": OpTouchNode, "node_id": id})
	return true
}

// RemoveNode removes a node and notifies when it existed.
func (n *Notifier) RemoveNode(ctx context.Context, id string) bool {
	if !n.store.RemoveNode(id) {
		return false
	}
	n.notify(ctx, map[string]any{"operation": OpRemoveNode, "node_id": id})
	return true
}

// AddEdge adds an edge and notifies when it was new.
func (n *Notifier) AddEdge(ctx context.Context, edge graph.GraphEdge) (bool, error) {
	added, err := n.store.AddEdge(edge)
	if err != nil || !added {
		return added, err
	}
	n.notify(ctx, edgeExtensions(OpAddEdge, edge.Source, edge.Target, edge.Type))
	return true, nil
}

// RemoveEdge removes an edge and notifies when it existed.
func (n *Notifier) RemoveEdge(ctx context.Context, source, target string, edgeType graph.EdgeType) bool {
	if !n.store.RemoveEdge(source, target, edgeType) {
		return false
	}
	n.notify(ctx, edgeExtensions(OpRemoveEdge, source, target, edgeType))
	return true
}

func edgeExtensions(op, source, target string, edgeType graph.EdgeType) map[string]any {
	return map[string]any{
		"operation": op,
		"source":    source,
		"target":    target,
		"type":      string(edgeType),
	}
}

func (n *Notifier) notify(ctx context.Context, ext map[string]any) {
	graphMutations.WithLabelValues(ext["operation"].(string)).Inc()
	if n.engine == nil {
		return
	}

	depth := notifyDepth(ctx)
	if depth >= MaxNotifyDepth {
		n.logger.Warn("graph update cascade too deep, not notifying",
			slog.Int("depth", depth),
			slog.Any("operation", ext["operation"]),
		)
		return
	}
	ctx = context.WithValue(ctx, notifyDepthKey{}, depth+1)

	triggersDispatched.WithLabelValues(string(rules.TriggerGraphUpdate)).Inc()
	if _, err := n.engine.Trigger(ctx, rules.TriggerGraphUpdate, rules.Input{Extensions: ext}); err != nil {
		n.logger.Warn("graph update rule failed",
			slog.Any("operation", ext["operation"]),
			slog.String("error", err.Error()),
		)
	}
}
