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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/weave/services/weave/graph"
	"github.com/AleutianAI/weave/services/weave/rules"
)

// Graph action names available to declarative rule files.
const (
	ActionTouchNode  = "touch_node"
	ActionTagNode    = "tag_node"
	ActionLinkNodes  = "link_nodes"
	ActionRemoveNode = "remove_node"
)

// RegisterGraphActions adds the graph-mutating actions to reg. Every
// mutation goes through n, so it fires graph:update in turn.
//
// Each action resolves its subject node in this order: the "node_id" param,
// the "node_id" extension, then the node whose path equals the trigger's
// file path.
//
//	touch_node  - refresh last_modified. With create: true, a missing node
//	              is created from the file path (param "type", default concept).
//	tag_node    - merge param "tags" into the node's tags.
//	link_nodes  - add an edge to param "target" (param "type", default related).
//	remove_node - remove the node.
func RegisterGraphActions(reg *rules.ActionRegistry, n *Notifier) {
	reg.Register(ActionTouchNode, touchNodeFactory(n))
	reg.Register(ActionTagNode, tagNodeFactory(n))
	reg.Register(ActionLinkNodes, linkNodesFactory(n))
	reg.Register(ActionRemoveNode, removeNodeFactory(n))
}

func touchNodeFactory(n *Notifier) rules.ActionFactory {
	return func(params map[string]any) (rules.ActionFunc, error) {
		create, err := boolParam(params, "create")
		if err != nil {
			return nil, err
		}
		nodeType, err := rules.StringParam(params, "type", string(graph.NodeTypeConcept))
		if err != nil {
			return nil, err
		}
		fixedID, err := rules.StringParam(params, "node_id", "")
		if err != nil {
			return nil, err
		}

		return func(ctx context.Context, rc *rules.Context) error {
			id, ok := resolveNode(n.Store(), fixedID, rc)
			if ok {
				n.TouchNode(ctx, id)
				return nil
			}
			if !create || rc.FilePath == "" {
				return ErrNodeUnresolved
			}
			_, err := n.AddNode(ctx, nodeFromPath(rc.FilePath, graph.NodeType(nodeType)))
			return err
		}, nil
	}
}

func tagNodeFactory(n *Notifier) rules.ActionFactory {
	return func(params map[string]any) (rules.ActionFunc, error) {
		tags, err := rules.StringSliceParam(params, "tags")
		if err != nil {
			return nil, err
		}
		if len(tags) == 0 {
			return nil, fmt.Errorf("%w: param \"tags\" is required", rules.ErrInvalidRule)
		}
		fixedID, err := rules.StringParam(params, "node_id", "")
		if err != nil {
			return nil, err
		}

		return func(ctx context.Context, rc *rules.Context) error {
			id, ok := resolveNode(n.Store(), fixedID, rc)
			if !ok {
				return ErrNodeUnresolved
			}
			node, ok := n.Store().GetNode(id)
			if !ok {
				return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
			}
			merged := append(node.Tags, tags...)
			_, err := n.UpdateNode(ctx, id, graph.NodeUpdate{Tags: &merged})
			return err
		}, nil
	}
}

func linkNodesFactory(n *Notifier) rules.ActionFactory {
	return func(params map[string]any) (rules.ActionFunc, error) {
		target, err := rules.StringParam(params, "target", "")
		if err != nil {
			return nil, err
		}
		if target == "" {
			return nil, fmt.Errorf("%w: param \"target\" is required", rules.ErrInvalidRule)
		}
		edgeType, err := rules.StringParam(params, "type", string(graph.EdgeTypeRelated))
		if err != nil {
			return nil, err
		}
		fixedID, err := rules.StringParam(params, "node_id", "")
		if err != nil {
			return nil, err
		}

		return func(ctx context.Context, rc *rules.Context) error {
			id, ok := resolveNode(n.Store(), fixedID, rc)
			if !ok {
				return ErrNodeUnresolved
			}
			_, err := n.AddEdge(ctx, graph.GraphEdge{
				Source: id,
				Target: target,
				Type:   graph.EdgeType(edgeType),
			})
			return err
		}, nil
	}
}

func removeNodeFactory(n *Notifier) rules.ActionFactory {
	return func(params map[string]any) (rules.ActionFunc, error) {
		fixedID, err := rules.StringParam(params, "node_id", "")
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, rc *rules.Context) error {
			id, ok := resolveNode(n.Store(), fixedID, rc)
			if !ok {
				return ErrNodeUnresolved
			}
			n.RemoveNode(ctx, id)
			return nil
		}, nil
	}
}

// resolveNode finds the node an action applies to.
func resolveNode(store *graph.Store, fixedID string, rc *rules.Context) (string, bool) {
	if fixedID != "" {
		return fixedID, store.HasNode(fixedID)
	}
	if v, ok := rc.Extension("node_id"); ok {
		if id, ok := v.(string); ok && store.HasNode(id) {
			return id, true
		}
	}
	if rc.FilePath == "" {
		return "", false
	}
	return findNodeByPath(store, rc.FilePath)
}

func findNodeByPath(store *graph.Store, path string) (string, bool) {
	clean := filepath.Clean(path)
	for _, node := range store.GetAllNodes() {
		if node.Path != "" && filepath.Clean(node.Path) == clean {
			return node.ID, true
		}
	}
	return "", false
}

// nodeFromPath builds a draft node for a file that has no node yet.
func nodeFromPath(path string, nodeType graph.NodeType) graph.KnowledgeNode {
	base := filepath.Base(path)
	return graph.KnowledgeNode{
		Title:    strings.TrimSuffix(base, filepath.Ext(base)),
		Path:     path,
		Filename: base,
		Type:     nodeType,
		Status:   graph.NodeStatusDraft,
	}
}

func boolParam(params map[string]any, key string) (bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: param %q must be a boolean", rules.ErrInvalidRule, key)
	}
	return b, nil
}
