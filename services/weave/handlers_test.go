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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/weave/services/weave/graph"
	"github.com/AleutianAI/weave/services/weave/rules"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	svc := newTestService(t, nil)
	return NewRouter(svc, promhttp.Handler()), svc
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHandlers_Health(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/v1/weave/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.Equal(t, 1, resp.Rules, "built-in file change logger")
	assert.Equal(t, "none", resp.Storage)
}

func TestHandlers_NodeCRUD(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/weave/nodes", map[string]any{
		"title": "Auth", "type": "service", "tags": []string{"security", "api"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[CreateNodeResponse](t, w).ID
	require.NotEmpty(t, id)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/nodes/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	node := decode[graph.KnowledgeNode](t, w)
	assert.Equal(t, "Auth", node.Title)
	assert.Equal(t, graph.NodeStatusDraft, node.Status)
	assert.Equal(t, []string{"api", "security"}, node.Tags)

	w = doJSON(t, router, http.MethodPatch, "/v1/weave/nodes/"+id, map[string]any{"status": "active"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, graph.NodeStatusActive, decode[graph.KnowledgeNode](t, w).Status)

	w = doJSON(t, router, http.MethodPatch, "/v1/weave/nodes/"+id, map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/nodes?tag=api", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[NodesResponse](t, w).Count)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/nodes?type=guide", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[NodesResponse](t, w)
	assert.Equal(t, 0, list.Count)
	assert.NotNil(t, list.Nodes)

	w = doJSON(t, router, http.MethodDelete, "/v1/weave/nodes/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/v1/weave/nodes/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NODE_NOT_FOUND", decode[ErrorResponse](t, w).Code)

	w = doJSON(t, router, http.MethodPatch, "/v1/weave/nodes/"+id, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_CreateNode_Invalid(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/weave/nodes", map[string]any{"title": "no type"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_NODE", decode[ErrorResponse](t, w).Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/weave/nodes", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func seedChain(t *testing.T, svc *Service) {
	t.Helper()
	for _, id := range []string{"a", "b", "c", "lonely"} {
		_, err := svc.Store().AddNode(graph.KnowledgeNode{ID: id, Title: id, Type: graph.NodeTypeConcept})
		require.NoError(t, err)
	}
	for _, e := range [][2]string{{"a", "b"}, {"b", "c"}} {
		_, err := svc.Store().AddEdge(graph.GraphEdge{Source: e[0], Target: e[1], Type: graph.EdgeTypeReference})
		require.NoError(t, err)
	}
}

func TestHandlers_EdgesAndQueries(t *testing.T) {
	router, svc := setupTestRouter(t)
	seedChain(t, svc)

	w := doJSON(t, router, http.MethodPost, "/v1/weave/edges", graph.GraphEdge{Source: "c", Target: "a", Type: graph.EdgeTypeRelated})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decode[AddEdgeResponse](t, w).Added)

	w = doJSON(t, router, http.MethodPost, "/v1/weave/edges", graph.GraphEdge{Source: "c", Target: "a", Type: graph.EdgeTypeRelated})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[AddEdgeResponse](t, w).Added)

	w = doJSON(t, router, http.MethodPost, "/v1/weave/edges", map[string]any{"source": "a"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/edges", nil)
	assert.Equal(t, 3, decode[EdgesResponse](t, w).Count)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/nodes/a/edges?direction=in", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[EdgesResponse](t, w).Count)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/nodes/a/edges?direction=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/path?from=a&to=c", nil)
	require.Equal(t, http.StatusOK, w.Code)
	path := decode[PathResponse](t, w)
	assert.True(t, path.Found)
	assert.Equal(t, []string{"a", "b", "c"}, path.Path)
	assert.Equal(t, 2, path.Hops)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/path?from=a&to=lonely", nil)
	path = decode[PathResponse](t, w)
	assert.False(t, path.Found)
	assert.Empty(t, path.Path)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/path?from=a", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/nodes/a/related?hops=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[NodesResponse](t, w).Count, "b via outgoing, c via incoming")

	w = doJSON(t, router, http.MethodGet, "/v1/weave/nodes/a/related?hops=11", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/nodes/zzz/related", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/orphans", nil)
	orphans := decode[NodesResponse](t, w)
	require.Equal(t, 1, orphans.Count)
	assert.Equal(t, "lonely", orphans.Nodes[0].ID)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/hubs?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[HubsResponse](t, w).Nodes, 1)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[graph.GraphStats](t, w)
	assert.Equal(t, 4, stats.NodeCount)
	assert.Equal(t, 3, stats.EdgeCount)

	w = doJSON(t, router, http.MethodDelete, "/v1/weave/edges?source=c&target=a&type=related", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, router, http.MethodDelete, "/v1/weave/edges?source=c&target=a&type=related", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(t, router, http.MethodDelete, "/v1/weave/edges?source=c", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_ExportImport(t *testing.T) {
	router, svc := setupTestRouter(t)
	seedChain(t, svc)

	w := doJSON(t, router, http.MethodGet, "/v1/weave/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	exported := w.Body.Bytes()

	require.True(t, svc.Store().RemoveNode("a"))

	req := httptest.NewRequest(http.MethodPost, "/v1/weave/import", bytes.NewReader(exported))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ImportResponse](t, rec)
	assert.Equal(t, 4, resp.Nodes)
	assert.Equal(t, 2, resp.Edges)
	assert.True(t, svc.Store().HasNode("a"))

	req = httptest.NewRequest(http.MethodPost, "/v1/weave/import", bytes.NewBufferString(`{"nodes": 7}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 4, svc.Store().NodeCount(), "failed import leaves the graph intact")
}

func TestHandlers_SnapshotsWithoutStorage(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/weave/snapshots", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = doJSON(t, router, http.MethodGet, "/v1/weave/snapshots", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandlers_TriggerAndRules(t *testing.T) {
	router, svc := setupTestRouter(t)

	require.NoError(t, svc.Engine().RegisterRule(rules.Rule{
		ID:       "echo",
		Name:     "Echo",
		Triggers: []rules.Trigger{rules.TriggerAgentComplete},
		Priority: rules.PriorityHigh,
		Action:   func(context.Context, *rules.Context) error { return nil },
	}))
	require.NoError(t, svc.Engine().RegisterRule(rules.Rule{
		ID:                "strict",
		Triggers:          []rules.Trigger{rules.TriggerManual},
		ContinueOnFailure: rules.Bool(false),
		Action:            func(context.Context, *rules.Context) error { return errors.New("nope") },
	}))

	w := doJSON(t, router, http.MethodPost, "/v1/weave/triggers/agent:complete", TriggerRequest{AgentData: map[string]any{"task": "t1"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[TriggerResponse](t, w)
	require.Len(t, resp.Executions, 1)
	assert.Equal(t, rules.StatusSuccess, resp.Executions[0].Status)

	w = doJSON(t, router, http.MethodPost, "/v1/weave/triggers/manual", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp = decode[TriggerResponse](t, w)
	assert.Contains(t, resp.Error, "nope")

	w = doJSON(t, router, http.MethodPost, "/v1/weave/triggers/custom:event", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[TriggerResponse](t, w).Executions)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/rules?trigger=agent:complete", nil)
	rulesResp := decode[RulesResponse](t, w)
	require.Equal(t, 1, rulesResp.Count)
	assert.Equal(t, "Echo", rulesResp.Rules[0].Name)
	assert.Equal(t, rules.PriorityHigh, rulesResp.Rules[0].Priority)

	w = doJSON(t, router, http.MethodPost, "/v1/weave/rules/echo/disable", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[RuleInfo](t, w).Enabled)

	w = doJSON(t, router, http.MethodPost, "/v1/weave/rules/echo/execute", nil)
	require.Equal(t, http.StatusOK, w.Code, "disabled rules still run by id")
	entry := decode[rules.LogEntry](t, w)
	assert.Equal(t, rules.TriggerManual, entry.Trigger)

	w = doJSON(t, router, http.MethodPost, "/v1/weave/rules/strict/execute", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/weave/rules/echo/enable", nil)
	assert.True(t, decode[RuleInfo](t, w).Enabled)

	for _, path := range []string{"/v1/weave/rules/ghost", "/v1/weave/statistics/ghost"} {
		w = doJSON(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	for _, path := range []string{"/v1/weave/rules/ghost/enable", "/v1/weave/rules/ghost/execute"} {
		w = doJSON(t, router, http.MethodPost, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}

	w = doJSON(t, router, http.MethodGet, "/v1/weave/statistics/echo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["total_executions"])

	w = doJSON(t, router, http.MethodGet, "/v1/weave/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 4, decode[map[string]any](t, w)["total_executions"])

	w = doJSON(t, router, http.MethodGet, "/v1/weave/summary", nil)
	summary := decode[rules.Summary](t, w)
	assert.Equal(t, 3, summary.TotalRules)
	assert.Equal(t, 4, summary.LogSize)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/logs?failed=true", nil)
	assert.Equal(t, 2, decode[LogsResponse](t, w).Count)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/logs?limit=1", nil)
	assert.Equal(t, 1, decode[LogsResponse](t, w).Count)

	w = doJSON(t, router, http.MethodGet, "/v1/weave/logs?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/v1/weave/logs", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, router, http.MethodGet, "/v1/weave/logs", nil)
	assert.Equal(t, 0, decode[LogsResponse](t, w).Count)

	w = doJSON(t, router, http.MethodDelete, "/v1/weave/statistics", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, router, http.MethodGet, "/v1/weave/statistics", nil)
	assert.EqualValues(t, 0, decode[map[string]any](t, w)["total_executions"])
}

func TestHandlers_MutationsNotify(t *testing.T) {
	router, svc := setupTestRouter(t)
	rec := &extensionRecorder{}
	require.NoError(t, svc.Engine().RegisterRule(rec.rule()))

	w := doJSON(t, router, http.MethodPost, "/v1/weave/nodes", map[string]any{"id": "n1", "title": "N", "type": "concept"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(t, router, http.MethodDelete, "/v1/weave/nodes/n1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, []any{OpAddNode, OpRemoveNode}, rec.operations())
}

func TestHandlers_Metrics(t *testing.T) {
	router, _ := setupTestRouter(t)
	doJSON(t, router, http.MethodPost, "/v1/weave/triggers/manual", nil)

	w := doJSON(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "weave_triggers_total")
}
