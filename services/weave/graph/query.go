// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultRelatedHops is the radius adapters use when the caller gives none.
	DefaultRelatedHops = 2

	// MaxRelatedHops is the largest radius adapters accept from callers.
	MaxRelatedHops = 10
)

// FindPath finds the shortest directed path between two nodes.
//
// # Description
//
// Breadth-first search over outgoing edges only, exploring each node's
// edges in insertion order. The first-discovered shortest path (by edge
// count) is returned. Edges pointing at ids that are not nodes are not
// followed.
//
// # Inputs
//
//   - ctx: Context for cancellation. A cancelled search reports no path.
//   - fromID: Path start.
//   - toID: Path end.
//
// # Outputs
//
//   - []string: Node ids from fromID to toID inclusive. [fromID] when the
//     ids are equal.
//   - bool: False if either id is unknown or toID is unreachable.
//
// # Thread Safety
//
// Holds the read lock for the whole search.
func (s *Store) FindPath(ctx context.Context, fromID, toID string) ([]string, bool) {
	ctx, span := startQuerySpan(ctx, "FindPath", fromID)
	defer span.End()
	start := time.Now()

	path, ok := s.findPath(ctx, fromID, toID)

	span.SetAttributes(
		attribute.String("graph.target_id", toID),
		attribute.Bool("graph.path_found", ok),
		attribute.Int("graph.path_length", len(path)),
	)
	recordQueryMetrics(ctx, "find_path", time.Since(start), len(path))
	return path, ok
}

func (s *Store) findPath(ctx context.Context, fromID, toID string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[fromID]; !ok {
		return nil, false
	}
	if _, ok := s.nodes[toID]; !ok {
		return nil, false
	}
	if fromID == toID {
		return []string{fromID}, true
	}

	// BFS with parent tracking
	visited := map[string]bool{fromID: true}
	parent := make(map[string]string)
	queue := []string{fromID}

	for len(queue) > 0 {
		if ctx.Err() != nil {
			return nil, false
		}

		current := queue[0]
		queue = queue[1:]

		for _, edge := range s.outgoing[current] {
			next := edge.Target
			if visited[next] {
				continue
			}
			if _, exists := s.nodes[next]; !exists {
				continue
			}
			visited[next] = true
			parent[next] = current

			if next == toID {
				path := []string{toID}
				for p := current; ; p = parent[p] {
					path = append(path, p)
					if p == fromID {
						break
					}
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

// FindRelated returns the nodes within maxHops of id, ignoring edge direction.
//
// # Description
//
// Breadth-first search over both incoming and outgoing edges. Each node is
// returned at most once, at the hop distance it was first found, ordered
// by that distance. The origin is never included. Edge type is not
// considered.
//
// # Inputs
//
//   - ctx: Context for cancellation. A cancelled search returns what was
//     found so far.
//   - id: Origin node.
//   - maxHops: Radius, honoured as given. Zero or negative finds nothing.
//
// # Outputs
//
//   - []KnowledgeNode: Copies of the related nodes. Empty if id is unknown.
func (s *Store) FindRelated(ctx context.Context, id string, maxHops int) []KnowledgeNode {
	ctx, span := startQuerySpan(ctx, "FindRelated", id)
	defer span.End()
	start := time.Now()

	related := []KnowledgeNode{}
	if maxHops > 0 {
		related = s.findRelated(ctx, id, maxHops)
	}

	span.SetAttributes(
		attribute.Int("graph.max_hops", maxHops),
		attribute.Int("graph.result_count", len(related)),
	)
	recordQueryMetrics(ctx, "find_related", time.Since(start), len(related))
	return related
}

func (s *Store) findRelated(ctx context.Context, id string, maxHops int) []KnowledgeNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	related := []KnowledgeNode{}
	if _, ok := s.nodes[id]; !ok {
		return related
	}

	type hop struct {
		id    string
		depth int
	}

	visited := map[string]bool{id: true}
	queue := []hop{{id: id, depth: 0}}

	visit := func(next string, depth int) {
		if visited[next] {
			return
		}
		node, exists := s.nodes[next]
		if !exists {
			return
		}
		visited[next] = true
		related = append(related, *s.viewLocked(node))
		queue = append(queue, hop{id: next, depth: depth})
	}

	for len(queue) > 0 {
		if ctx.Err() != nil {
			break
		}

		current := queue[0]
		queue = queue[1:]
		if current.depth >= maxHops {
			continue
		}

		for _, edge := range s.outgoing[current.id] {
			visit(edge.Target, current.depth+1)
		}
		for _, edge := range s.incoming[current.id] {
			visit(edge.Source, current.depth+1)
		}
	}
	return related
}

// FindOrphanNodes returns nodes with no incoming and no outgoing edges.
func (s *Store) FindOrphanNodes() []KnowledgeNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orphans := []KnowledgeNode{}
	for _, id := range s.order {
		if len(s.outgoing[id]) == 0 && len(s.incoming[id]) == 0 {
			orphans = append(orphans, *s.viewLocked(s.nodes[id]))
		}
	}
	return orphans
}

// FindMostConnected ranks nodes by incoming plus outgoing edge count.
//
// # Description
//
// Ties keep node insertion order. Only nodes are ranked; edge endpoints
// that are not nodes do not appear.
//
// # Inputs
//
//   - limit: Maximum results. Values <= 0 return every node.
//
// # Outputs
//
//   - []ConnectedNode: Ranked summaries, highest degree first.
func (s *Store) FindMostConnected(limit int) []ConnectedNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mostConnectedLocked(limit)
}

func (s *Store) mostConnectedLocked(limit int) []ConnectedNode {
	ranked := make([]ConnectedNode, 0, len(s.order))
	for _, id := range s.order {
		in, out := len(s.incoming[id]), len(s.outgoing[id])
		ranked = append(ranked, ConnectedNode{
			ID:          id,
			Title:       s.nodes[id].Title,
			Incoming:    in,
			Outgoing:    out,
			Connections: in + out,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Connections > ranked[j].Connections
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
