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
	"encoding/json"
	"time"
)

// NodeType classifies what a knowledge node documents.
type NodeType string

const (
	NodeTypeConcept     NodeType = "concept"
	NodeTypeTechnical   NodeType = "technical"
	NodeTypeFeature     NodeType = "feature"
	NodeTypePrimitive   NodeType = "primitive"
	NodeTypeService     NodeType = "service"
	NodeTypeGuide       NodeType = "guide"
	NodeTypeStandard    NodeType = "standard"
	NodeTypeIntegration NodeType = "integration"
)

// NodeTypes lists every known node type in declaration order.
var NodeTypes = []NodeType{
	NodeTypeConcept, NodeTypeTechnical, NodeTypeFeature, NodeTypePrimitive,
	NodeTypeService, NodeTypeGuide, NodeTypeStandard, NodeTypeIntegration,
}

// NodeStatus is the lifecycle state of a knowledge node.
type NodeStatus string

const (
	NodeStatusDraft      NodeStatus = "draft"
	NodeStatusActive     NodeStatus = "active"
	NodeStatusDeprecated NodeStatus = "deprecated"
	NodeStatusArchived   NodeStatus = "archived"
)

// NodeStatuses lists every known node status in declaration order.
var NodeStatuses = []NodeStatus{
	NodeStatusDraft, NodeStatusActive, NodeStatusDeprecated, NodeStatusArchived,
}

// EdgeType names the relation an edge expresses.
//
// The four constants are the types the store itself produces; callers may
// use any other non-empty string.
type EdgeType string

const (
	// EdgeTypeLink is produced for every entry of a node's OutgoingLinks.
	EdgeTypeLink      EdgeType = "link"
	EdgeTypeReference EdgeType = "reference"
	EdgeTypeParent    EdgeType = "parent"
	EdgeTypeRelated   EdgeType = "related"
)

// DefaultEdgeWeight is applied to edges added with a zero weight.
const DefaultEdgeWeight = 1.0

// Link describes one link from a node's point of view.
//
// For OutgoingLinks, Target is the linked node. For the derived
// IncomingLinks view, Target is the node the link comes from.
type Link struct {
	Target  string `json:"target" validate:"required"`
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Context string `json:"context,omitempty"`
}

// KnowledgeNode is a single documented entity in the graph.
//
// Frontmatter is carried opaquely as raw JSON values; the store only
// interprets the "tags" key.
type KnowledgeNode struct {
	ID            string                     `json:"id"`
	Title         string                     `json:"title"`
	Path          string                     `json:"path,omitempty"`
	Filename      string                     `json:"filename,omitempty"`
	Type          NodeType                   `json:"type" validate:"required,oneof=concept technical feature primitive service guide standard integration"`
	Status        NodeStatus                 `json:"status" validate:"required,oneof=draft active deprecated archived"`
	Content       string                     `json:"content,omitempty"`
	Frontmatter   map[string]json.RawMessage `json:"frontmatter,omitempty"`
	Tags          []string                   `json:"tags,omitempty"`
	OutgoingLinks []Link                     `json:"outgoing_links,omitempty" validate:"dive"`
	IncomingLinks []Link                     `json:"incoming_links,omitempty"`
	WordCount     int                        `json:"word_count"`
	LastModified  time.Time                  `json:"last_modified"`
}

// NodeUpdate carries the fields of a partial node update.
//
// Nil fields are left unchanged. A non-nil Tags or OutgoingLinks replaces
// the whole set and re-syncs the matching index.
type NodeUpdate struct {
	Title         *string
	Path          *string
	Filename      *string
	Type          *NodeType
	Status        *NodeStatus
	Content       *string
	Frontmatter   map[string]json.RawMessage
	Tags          *[]string
	OutgoingLinks *[]Link
}

// GraphEdge is a directed, typed relation between two node ids.
//
// Source and Target may name nodes that do not exist (yet); traversals
// simply do not pass through missing nodes.
type GraphEdge struct {
	Source  string   `json:"source" validate:"required"`
	Target  string   `json:"target" validate:"required"`
	Type    EdgeType `json:"type" validate:"required"`
	Weight  float64  `json:"weight"`
	Context string   `json:"context,omitempty"`
}

// edgeKey identifies an edge for duplicate detection.
type edgeKey struct {
	source string
	target string
	kind   EdgeType
}

func (e *GraphEdge) key() edgeKey {
	return edgeKey{source: e.Source, target: e.Target, kind: e.Type}
}

// GraphMetadata describes the graph as a whole.
type GraphMetadata struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	RootPath  string    `json:"root_path"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
	Created   time.Time `json:"created"`
	Updated   time.Time `json:"updated"`
}

// ConnectedNode summarises a node's degree for hub reporting.
type ConnectedNode struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Incoming    int    `json:"incoming"`
	Outgoing    int    `json:"outgoing"`
	Connections int    `json:"connections"`
}

// GraphStats aggregates counts over the whole graph.
type GraphStats struct {
	NodeCount           int                `json:"node_count"`
	EdgeCount           int                `json:"edge_count"`
	NodesByType         map[NodeType]int   `json:"nodes_by_type"`
	NodesByStatus       map[NodeStatus]int `json:"nodes_by_status"`
	OrphanCount         int                `json:"orphan_count"`
	AverageLinksPerNode float64            `json:"average_links_per_node"`
	MostConnected       []ConnectedNode    `json:"most_connected"`
}
