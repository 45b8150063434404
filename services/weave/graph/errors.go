// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the in-memory knowledge graph store.
//
// The graph holds documentation nodes (architecture notes, dependency
// metadata, analysis findings) connected by directed, typed edges. The
// store keeps adjacency and tag indices in step with every mutation and
// offers traversal queries (shortest path, N-hop neighbourhoods, orphan
// and hub detection).
//
// # Thread Safety
//
// Store is safe for concurrent use. Reads run in parallel with other
// reads; mutations are serialized and apply their index updates under
// the same lock, so no reader observes a node without its index entries.
//
// # Failure Model
//
// Unknown ids are routine: lookups return false, nil or empty slices and
// never an error. Errors are reserved for malformed input.
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrInvalidNode is returned when a node fails validation
	// (unknown type or status, malformed frontmatter tags).
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidEdge is returned when an edge is missing its source or target.
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrInvalidSnapshot is returned when serialized graph data cannot be decoded.
	ErrInvalidSnapshot = errors.New("invalid graph snapshot")
)
