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

// StatsTopConnected is the number of hubs GetStats reports.
const StatsTopConnected = 10

// GetStats computes aggregate counts over the whole graph.
//
// Every known type and status is present in the breakdowns, zero or not.
// AverageLinksPerNode is EdgeCount/NodeCount, or 0 for an empty graph.
func (s *Store) GetStats() GraphStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := GraphStats{
		NodeCount:     len(s.nodes),
		EdgeCount:     len(s.edges),
		NodesByType:   make(map[NodeType]int, len(NodeTypes)),
		NodesByStatus: make(map[NodeStatus]int, len(NodeStatuses)),
	}
	for _, t := range NodeTypes {
		stats.NodesByType[t] = 0
	}
	for _, st := range NodeStatuses {
		stats.NodesByStatus[st] = 0
	}

	for _, id := range s.order {
		node := s.nodes[id]
		stats.NodesByType[node.Type]++
		stats.NodesByStatus[node.Status]++
		if len(s.outgoing[id]) == 0 && len(s.incoming[id]) == 0 {
			stats.OrphanCount++
		}
	}
	if stats.NodeCount > 0 {
		stats.AverageLinksPerNode = float64(stats.EdgeCount) / float64(stats.NodeCount)
	}
	stats.MostConnected = s.mostConnectedLocked(StatsTopConnected)
	return stats
}
