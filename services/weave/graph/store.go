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
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// graphValidate validates nodes and edges on their way into the store.
var graphValidate = validator.New()

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithName sets the graph name recorded in the metadata.
func WithName(name string) StoreOption {
	return func(s *Store) {
		s.meta.Name = name
	}
}

// WithVersion sets the graph version recorded in the metadata.
func WithVersion(version string) StoreOption {
	return func(s *Store) {
		s.meta.Version = version
	}
}

// WithRootPath sets the project root the graph documents.
func WithRootPath(root string) StoreOption {
	return func(s *Store) {
		s.meta.RootPath = root
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the knowledge graph repository.
//
// # Description
//
// Owns nodes, edges and the derived indices:
//   - outgoing: node id -> edges whose Source is the id, in insertion order
//   - incoming: node id -> edges whose Target is the id, in insertion order
//   - tags: tag -> set of node ids carrying the tag
//
// Indices are never authoritative; they are rebuilt from nodes and edges
// when a snapshot is loaded.
//
// # Thread Safety
//
// Safe for concurrent use. Every mutation holds the write lock for both
// the primary change and its index updates.
type Store struct {
	mu sync.RWMutex

	nodes map[string]*KnowledgeNode
	order []string // node ids in insertion order

	edges    []*GraphEdge
	edgeSet  map[edgeKey]*GraphEdge
	outgoing map[string][]*GraphEdge
	incoming map[string][]*GraphEdge
	tags     map[string]map[string]struct{}

	meta GraphMetadata
	now  func() time.Time
}

// NewStore creates an empty graph store.
//
// # Inputs
//
//   - opts: Optional metadata and clock settings.
//
// # Outputs
//
//   - *Store: Empty store. Independent of every other Store instance.
//
// # Example
//
//	store := graph.NewStore(graph.WithName("weave-nn"), graph.WithRootPath("/docs"))
//	id, err := store.AddNode(graph.KnowledgeNode{Title: "Auth", Type: graph.NodeTypeService})
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		nodes:    make(map[string]*KnowledgeNode),
		edgeSet:  make(map[edgeKey]*GraphEdge),
		outgoing: make(map[string][]*GraphEdge),
		incoming: make(map[string][]*GraphEdge),
		tags:     make(map[string]map[string]struct{}),
		now:      time.Now,
		meta:     GraphMetadata{Version: "1.0.0"},
	}
	for _, opt := range opts {
		opt(s)
	}
	created := s.now()
	s.meta.Created = created
	s.meta.Updated = created
	return s
}

// AddNode inserts a node, or merges it into the existing node with the same id.
//
// # Description
//
// A node with an empty ID is assigned a fresh UUID. New nodes default to
// status draft. Tags are normalised to a sorted set, including any string
// tags found under frontmatter["tags"]. Every outgoing link becomes a
// link-typed edge with weight 1 (duplicates are dropped as usual).
//
// When the id already exists, non-zero fields of node are merged in the
// same way UpdateNode would apply them; the id itself never changes.
//
// # Inputs
//
//   - node: The node to add. Type is required for new nodes.
//
// # Outputs
//
//   - string: The node id (assigned or given).
//   - error: ErrInvalidNode when validation fails. The store is unchanged.
func (s *Store) AddNode(node KnowledgeNode) (string, error) {
	fmTags, err := frontmatterTags(node.Frontmatter)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if node.ID != "" {
		if _, exists := s.nodes[node.ID]; exists {
			if _, err := s.updateLocked(node.ID, mergeUpdate(node, fmTags)); err != nil {
				return "", err
			}
			return node.ID, nil
		}
	} else {
		node.ID = uuid.NewString()
	}

	candidate := cloneNode(&node)
	candidate.IncomingLinks = nil
	if candidate.Status == "" {
		candidate.Status = NodeStatusDraft
	}
	candidate.Tags = normalizeTags(append(candidate.Tags, fmTags...))
	if err := validateNode(candidate); err != nil {
		return "", err
	}
	candidate.WordCount = countWords(candidate.Content)
	candidate.LastModified = s.now()

	s.nodes[candidate.ID] = candidate
	s.order = append(s.order, candidate.ID)
	s.indexTagsLocked(candidate.ID, candidate.Tags)
	for _, link := range candidate.OutgoingLinks {
		s.addEdgeLocked(linkEdge(candidate.ID, link))
	}
	s.touchLocked()

	return candidate.ID, nil
}

// GetNode returns a copy of the node with the given id.
//
// The returned node carries the derived IncomingLinks view.
func (s *Store) GetNode(id string) (*KnowledgeNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return s.viewLocked(node), true
}

// HasNode reports whether a node with the given id exists.
func (s *Store) HasNode(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}

// GetAllNodes returns copies of all nodes in insertion order.
func (s *Store) GetAllNodes() []KnowledgeNode {
	return s.filterNodes(func(*KnowledgeNode) bool { return true })
}

// GetNodesByType returns nodes of the given type in insertion order.
func (s *Store) GetNodesByType(t NodeType) []KnowledgeNode {
	return s.filterNodes(func(n *KnowledgeNode) bool { return n.Type == t })
}

// GetNodesByStatus returns nodes with the given status in insertion order.
func (s *Store) GetNodesByStatus(status NodeStatus) []KnowledgeNode {
	return s.filterNodes(func(n *KnowledgeNode) bool { return n.Status == status })
}

// GetNodesByTag returns nodes carrying the tag, in insertion order.
func (s *Store) GetNodesByTag(tag string) []KnowledgeNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, ok := s.tags[tag]
	if !ok {
		return []KnowledgeNode{}
	}
	out := make([]KnowledgeNode, 0, len(bucket))
	for _, id := range s.order {
		if _, tagged := bucket[id]; tagged {
			out = append(out, *s.viewLocked(s.nodes[id]))
		}
	}
	return out
}

func (s *Store) filterNodes(keep func(*KnowledgeNode) bool) []KnowledgeNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]KnowledgeNode, 0, len(s.order))
	for _, id := range s.order {
		node := s.nodes[id]
		if keep(node) {
			out = append(out, *s.viewLocked(node))
		}
	}
	return out
}

// UpdateNode merges a partial update into an existing node.
//
// # Description
//
// The update is applied to a copy and validated before anything is
// committed. When Tags is set, the node leaves its old tag buckets and
// joins the new ones. When OutgoingLinks is set, link edges are added for
// new targets and removed for targets no longer linked. Content changes
// recompute WordCount. LastModified is refreshed only when a field actually
// changes; an update that leaves the node as it was commits nothing.
//
// # Outputs
//
//   - bool: False if no node has the id.
//   - error: ErrInvalidNode when the merged node fails validation.
func (s *Store) UpdateNode(id string, update NodeUpdate) (bool, error) {
	found, _, err := s.ApplyNodeUpdate(id, update)
	return found, err
}

// ApplyNodeUpdate is UpdateNode that also reports whether the node changed.
func (s *Store) ApplyNodeUpdate(id string, update NodeUpdate) (found, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return false, false, nil
	}
	changed, err = s.updateLocked(id, update)
	if err != nil {
		return false, false, err
	}
	return true, changed, nil
}

// TouchNode refreshes a node's LastModified without changing its content.
// Returns false if no node has the id.
func (s *Store) TouchNode(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return false
	}
	next := cloneNode(node)
	next.LastModified = s.now()
	s.nodes[id] = next
	s.touchLocked()
	return true
}

// updateLocked applies update to an existing node and reports whether it
// changed anything. Caller holds the write lock.
func (s *Store) updateLocked(id string, update NodeUpdate) (bool, error) {
	current := s.nodes[id]
	next := cloneNode(current)

	if update.Title != nil {
		next.Title = *update.Title
	}
	if update.Path != nil {
		next.Path = *update.Path
	}
	if update.Filename != nil {
		next.Filename = *update.Filename
	}
	if update.Type != nil {
		next.Type = *update.Type
	}
	if update.Status != nil {
		next.Status = *update.Status
	}
	if update.Content != nil {
		next.Content = *update.Content
		next.WordCount = countWords(next.Content)
	}
	if len(update.Frontmatter) > 0 {
		if next.Frontmatter == nil {
			next.Frontmatter = make(map[string]json.RawMessage, len(update.Frontmatter))
		}
		for k, v := range update.Frontmatter {
			next.Frontmatter[k] = cloneRaw(v)
		}
	}
	if update.Tags != nil {
		next.Tags = normalizeTags(*update.Tags)
	}
	if update.OutgoingLinks != nil {
		next.OutgoingLinks = cloneLinks(*update.OutgoingLinks)
	}
	if err := validateNode(next); err != nil {
		return false, err
	}
	if sameNode(current, next) {
		return false, nil
	}

	if update.Tags != nil {
		s.unindexTagsLocked(id, current.Tags)
		s.indexTagsLocked(id, next.Tags)
	}
	if update.OutgoingLinks != nil {
		s.syncLinkEdgesLocked(id, next.OutgoingLinks)
	}

	next.LastModified = s.now()
	s.nodes[id] = next
	s.touchLocked()
	return true, nil
}

// sameNode compares the user-editable fields of two nodes. Nil and empty
// collections are equal.
func sameNode(a, b *KnowledgeNode) bool {
	return a.Title == b.Title &&
		a.Path == b.Path &&
		a.Filename == b.Filename &&
		a.Type == b.Type &&
		a.Status == b.Status &&
		a.Content == b.Content &&
		slices.Equal(a.Tags, b.Tags) &&
		slices.Equal(a.OutgoingLinks, b.OutgoingLinks) &&
		maps.EqualFunc(a.Frontmatter, b.Frontmatter, func(x, y json.RawMessage) bool {
			return bytes.Equal(x, y)
		})
}

// syncLinkEdgesLocked makes the node's link-typed outgoing edges match links.
func (s *Store) syncLinkEdgesLocked(id string, links []Link) {
	wanted := make(map[string]struct{}, len(links))
	for _, link := range links {
		wanted[link.Target] = struct{}{}
	}
	for _, edge := range append([]*GraphEdge(nil), s.outgoing[id]...) {
		if edge.Type != EdgeTypeLink {
			continue
		}
		if _, keep := wanted[edge.Target]; !keep {
			s.removeEdgeLocked(edge)
		}
	}
	for _, link := range links {
		s.addEdgeLocked(linkEdge(id, link))
	}
}

// RemoveNode deletes a node, its tag memberships and every edge touching it.
//
// # Outputs
//
//   - bool: False if no node has the id.
func (s *Store) RemoveNode(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return false
	}

	s.unindexTagsLocked(id, node.Tags)

	touching := make(map[*GraphEdge]struct{})
	for _, edge := range s.outgoing[id] {
		touching[edge] = struct{}{}
	}
	for _, edge := range s.incoming[id] {
		touching[edge] = struct{}{}
	}
	for edge := range touching {
		delete(s.edgeSet, edge.key())
		s.outgoing[edge.Source] = withoutEdge(s.outgoing[edge.Source], edge)
		s.incoming[edge.Target] = withoutEdge(s.incoming[edge.Target], edge)
	}
	if len(touching) > 0 {
		kept := s.edges[:0]
		for _, edge := range s.edges {
			if _, drop := touching[edge]; !drop {
				kept = append(kept, edge)
			}
		}
		clearTail(s.edges, len(kept))
		s.edges = kept
	}
	delete(s.outgoing, id)
	delete(s.incoming, id)

	delete(s.nodes, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.touchLocked()
	return true
}

// AddEdge adds a directed edge.
//
// # Description
//
// Silently drops the edge when one with the same (Source, Target, Type)
// already exists. A zero Weight becomes DefaultEdgeWeight. Neither
// endpoint has to exist.
//
// # Outputs
//
//   - bool: True if the edge was added, false if it was a duplicate.
//   - error: ErrInvalidEdge when Source, Target or Type is empty.
func (s *Store) AddEdge(edge GraphEdge) (bool, error) {
	if err := graphValidate.Struct(&edge); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidEdge, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := s.addEdgeLocked(edge)
	if added {
		s.touchLocked()
	}
	return added, nil
}

func (s *Store) addEdgeLocked(edge GraphEdge) bool {
	if edge.Weight == 0 {
		edge.Weight = DefaultEdgeWeight
	}
	if _, dup := s.edgeSet[edge.key()]; dup {
		return false
	}
	e := &edge
	s.edges = append(s.edges, e)
	s.edgeSet[e.key()] = e
	s.outgoing[e.Source] = append(s.outgoing[e.Source], e)
	s.incoming[e.Target] = append(s.incoming[e.Target], e)
	return true
}

// RemoveEdge deletes the edge identified by (source, target, edgeType).
//
// # Outputs
//
//   - bool: False if no such edge exists.
func (s *Store) RemoveEdge(source, target string, edgeType EdgeType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.edgeSet[edgeKey{source: source, target: target, kind: edgeType}]
	if !ok {
		return false
	}
	s.removeEdgeLocked(edge)
	s.touchLocked()
	return true
}

func (s *Store) removeEdgeLocked(edge *GraphEdge) {
	delete(s.edgeSet, edge.key())
	s.outgoing[edge.Source] = withoutEdge(s.outgoing[edge.Source], edge)
	s.incoming[edge.Target] = withoutEdge(s.incoming[edge.Target], edge)
	s.edges = withoutEdge(s.edges, edge)
}

// GetOutgoingEdges returns edges whose Source is id, in insertion order.
func (s *Store) GetOutgoingEdges(id string) []GraphEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyEdges(s.outgoing[id])
}

// GetIncomingEdges returns edges whose Target is id, in insertion order.
func (s *Store) GetIncomingEdges(id string) []GraphEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyEdges(s.incoming[id])
}

// GetAllEdges returns every edge in insertion order.
func (s *Store) GetAllEdges() []GraphEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyEdges(s.edges)
}

// NodeCount returns the number of nodes.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the number of edges.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// Metadata returns the graph metadata with current counts.
func (s *Store) Metadata() GraphMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// touchLocked refreshes counters and the updated timestamp after a mutation.
func (s *Store) touchLocked() {
	s.meta.NodeCount = len(s.nodes)
	s.meta.EdgeCount = len(s.edges)
	s.meta.Updated = s.now()
}

func (s *Store) indexTagsLocked(id string, tags []string) {
	for _, tag := range tags {
		bucket, ok := s.tags[tag]
		if !ok {
			bucket = make(map[string]struct{})
			s.tags[tag] = bucket
		}
		bucket[id] = struct{}{}
	}
}

func (s *Store) unindexTagsLocked(id string, tags []string) {
	for _, tag := range tags {
		bucket, ok := s.tags[tag]
		if !ok {
			continue
		}
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(s.tags, tag)
		}
	}
}

// viewLocked returns a caller-owned copy of node with IncomingLinks derived
// from the incoming edge index.
func (s *Store) viewLocked(node *KnowledgeNode) *KnowledgeNode {
	view := cloneNode(node)
	incoming := s.incoming[node.ID]
	if len(incoming) > 0 {
		view.IncomingLinks = make([]Link, 0, len(incoming))
		for _, edge := range incoming {
			view.IncomingLinks = append(view.IncomingLinks, Link{
				Target:  edge.Source,
				Type:    string(edge.Type),
				Context: edge.Context,
			})
		}
	}
	return view
}

// mergeUpdate converts the non-zero fields of node into a NodeUpdate.
func mergeUpdate(node KnowledgeNode, fmTags []string) NodeUpdate {
	var update NodeUpdate
	if node.Title != "" {
		update.Title = &node.Title
	}
	if node.Path != "" {
		update.Path = &node.Path
	}
	if node.Filename != "" {
		update.Filename = &node.Filename
	}
	if node.Type != "" {
		update.Type = &node.Type
	}
	if node.Status != "" {
		update.Status = &node.Status
	}
	if node.Content != "" {
		update.Content = &node.Content
	}
	if len(node.Frontmatter) > 0 {
		update.Frontmatter = node.Frontmatter
	}
	if node.Tags != nil || fmTags != nil {
		tags := append(append([]string(nil), node.Tags...), fmTags...)
		update.Tags = &tags
	}
	if node.OutgoingLinks != nil {
		update.OutgoingLinks = &node.OutgoingLinks
	}
	return update
}

func validateNode(node *KnowledgeNode) error {
	if err := graphValidate.Struct(node); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidNode, node.ID, err)
	}
	return nil
}

// frontmatterTags extracts tags from frontmatter["tags"], which may be a
// JSON string array or a single comma-separated string.
func frontmatterTags(fm map[string]json.RawMessage) ([]string, error) {
	raw, ok := fm["tags"]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("%w: frontmatter tags must be a string or string array", ErrInvalidNode)
	}
	return strings.Split(single, ","), nil
}

func linkEdge(source string, link Link) GraphEdge {
	return GraphEdge{
		Source:  source,
		Target:  link.Target,
		Type:    EdgeTypeLink,
		Weight:  DefaultEdgeWeight,
		Context: link.Context,
	}
}

// normalizeTags trims, drops empties, dedupes and sorts.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func countWords(content string) int {
	return len(strings.Fields(content))
}

func cloneNode(n *KnowledgeNode) *KnowledgeNode {
	c := *n
	c.Tags = append([]string(nil), n.Tags...)
	c.OutgoingLinks = cloneLinks(n.OutgoingLinks)
	c.IncomingLinks = cloneLinks(n.IncomingLinks)
	c.Frontmatter = nil
	if len(n.Frontmatter) > 0 {
		c.Frontmatter = make(map[string]json.RawMessage, len(n.Frontmatter))
		for k, v := range n.Frontmatter {
			c.Frontmatter[k] = cloneRaw(v)
		}
	}
	if len(c.Tags) == 0 {
		c.Tags = nil
	}
	return &c
}

func cloneLinks(links []Link) []Link {
	if len(links) == 0 {
		return nil
	}
	return append([]Link(nil), links...)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

func copyEdges(edges []*GraphEdge) []GraphEdge {
	out := make([]GraphEdge, len(edges))
	for i, e := range edges {
		out[i] = *e
	}
	return out
}

func withoutEdge(edges []*GraphEdge, target *GraphEdge) []*GraphEdge {
	for i, e := range edges {
		if e == target {
			copy(edges[i:], edges[i+1:])
			edges[len(edges)-1] = nil
			return edges[:len(edges)-1]
		}
	}
	return edges
}

// clearTail nils out pointers past n so dropped edges can be collected.
func clearTail(edges []*GraphEdge, n int) {
	for i := n; i < len(edges); i++ {
		edges[i] = nil
	}
}
