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
	"encoding/json"
	"fmt"
)

// NodeEntry is one element of a snapshot's node list, encoded as the
// two-element array [id, node].
type NodeEntry struct {
	ID   string
	Node KnowledgeNode
}

// MarshalJSON encodes the entry as [id, node].
func (e NodeEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.ID, e.Node})
}

// UnmarshalJSON decodes an [id, node] pair.
func (e *NodeEntry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("node entry must have 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.ID); err != nil {
		return fmt.Errorf("node entry id: %w", err)
	}
	if err := json.Unmarshal(pair[1], &e.Node); err != nil {
		return fmt.Errorf("node entry %s: %w", e.ID, err)
	}
	return nil
}

// Snapshot is the persisted form of a Store.
//
// It carries nodes, edges and metadata only. Indices are rebuilt on load.
type Snapshot struct {
	Nodes    []NodeEntry   `json:"nodes"`
	Edges    []GraphEdge   `json:"edges"`
	Metadata GraphMetadata `json:"metadata"`
}

// ToJSON serializes the full store state.
//
// # Outputs
//
//   - []byte: JSON of the shape {"nodes": [[id, node], ...], "edges": [...], "metadata": {...}}.
//   - error: Non-nil only if a frontmatter value is not valid JSON.
func (s *Store) ToJSON() ([]byte, error) {
	s.mu.RLock()
	snap := Snapshot{
		Nodes:    make([]NodeEntry, 0, len(s.order)),
		Edges:    copyEdges(s.edges),
		Metadata: s.meta,
	}
	for _, id := range s.order {
		node := cloneNode(s.nodes[id])
		node.IncomingLinks = nil
		snap.Nodes = append(snap.Nodes, NodeEntry{ID: id, Node: *node})
	}
	s.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}
	recordSnapshotMetrics(context.Background(), "save", len(data))
	return data, nil
}

// FromJSON builds a new Store from data produced by ToJSON.
//
// # Description
//
// Nodes keep their serialized fields (including WordCount and
// LastModified). Edges are replayed in order through the duplicate check
// and both adjacency indices and the tag index are rebuilt. Embedded
// incoming links are ignored. Metadata is restored with counts recomputed.
//
// # Inputs
//
//   - data: Snapshot JSON.
//   - opts: Applied before the snapshot; the snapshot metadata wins.
//
// # Outputs
//
//   - *Store: The reconstructed store.
//   - error: ErrInvalidSnapshot if data cannot be decoded or a node is invalid.
func FromJSON(data []byte, opts ...StoreOption) (*Store, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	s := NewStore(opts...)
	for _, entry := range snap.Nodes {
		if entry.ID == "" {
			return nil, fmt.Errorf("%w: node entry without id", ErrInvalidSnapshot)
		}
		if _, dup := s.nodes[entry.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node %s", ErrInvalidSnapshot, entry.ID)
		}
		node := cloneNode(&entry.Node)
		node.ID = entry.ID
		node.IncomingLinks = nil
		node.Tags = normalizeTags(node.Tags)
		if err := validateNode(node); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
		s.nodes[node.ID] = node
		s.order = append(s.order, node.ID)
		s.indexTagsLocked(node.ID, node.Tags)
	}
	for _, edge := range snap.Edges {
		if err := graphValidate.Struct(&edge); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
		s.addEdgeLocked(edge)
	}

	s.meta = snap.Metadata
	s.meta.NodeCount = len(s.nodes)
	s.meta.EdgeCount = len(s.edges)

	recordSnapshotMetrics(context.Background(), "load", len(data))
	return s, nil
}

// LoadJSON replaces the contents of s with the snapshot in data.
//
// The snapshot is fully decoded before s is touched; on error s is unchanged.
func (s *Store) LoadJSON(data []byte) error {
	loaded, err := FromJSON(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = loaded.nodes
	s.order = loaded.order
	s.edges = loaded.edges
	s.edgeSet = loaded.edgeSet
	s.outgoing = loaded.outgoing
	s.incoming = loaded.incoming
	s.tags = loaded.tags
	s.meta = loaded.meta
	return nil
}
