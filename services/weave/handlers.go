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
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/AleutianAI/weave/services/weave/graph"
	"github.com/AleutianAI/weave/services/weave/rules"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MaxImportBytes bounds the body of POST /v1/weave/import.
const MaxImportBytes = 64 * 1024 * 1024

// Handlers contains the HTTP handlers for the weave service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

func handlerLogger(c *gin.Context, handler string) *slog.Logger {
	return slog.With("request_id", getOrCreateRequestID(c), "handler", handler)
}

func badRequest(c *gin.Context, code, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: code})
}

func notFound(c *gin.Context, code, msg string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: msg, Code: code})
}

// =============================================================================
// Health
// =============================================================================

// HandleHealth handles GET /v1/weave/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	backend := h.svc.Config().Storage.Backend
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "healthy",
		Version:       ServiceVersion,
		UptimeSeconds: h.svc.Uptime().Seconds(),
		Nodes:         h.svc.Store().NodeCount(),
		Edges:         h.svc.Store().EdgeCount(),
		Rules:         len(h.svc.Engine().GetAllRules()),
		Storage:       backend,
	})
}

// =============================================================================
// Nodes
// =============================================================================

// HandleListNodes handles GET /v1/weave/nodes.
//
// Query Parameters:
//
//	type - Filter by node type
//	status - Filter by node status
//	tag - Filter by tag
//
// Only one filter is applied, in the order tag, type, status.
func (h *Handlers) HandleListNodes(c *gin.Context) {
	store := h.svc.Store()
	var nodes []graph.KnowledgeNode
	switch {
	case c.Query("tag") != "":
		nodes = store.GetNodesByTag(c.Query("tag"))
	case c.Query("type") != "":
		nodes = store.GetNodesByType(graph.NodeType(c.Query("type")))
	case c.Query("status") != "":
		nodes = store.GetNodesByStatus(graph.NodeStatus(c.Query("status")))
	default:
		nodes = store.GetAllNodes()
	}
	c.JSON(http.StatusOK, nodesResponse(nodes))
}

// HandleCreateNode handles POST /v1/weave/nodes.
//
// Response:
//
//	201 Created: CreateNodeResponse
//	400 Bad Request: Malformed body or invalid node
func (h *Handlers) HandleCreateNode(c *gin.Context) {
	logger := handlerLogger(c, "HandleCreateNode")

	var node graph.KnowledgeNode
	if err := c.ShouldBindJSON(&node); err != nil {
		logger.Warn("Invalid request body", "error", err)
		badRequest(c, "INVALID_REQUEST", "Invalid request body")
		return
	}

	id, err := h.svc.Notifier().AddNode(c.Request.Context(), node)
	if err != nil {
		logger.Warn("Node rejected", "error", err)
		badRequest(c, "INVALID_NODE", err.Error())
		return
	}
	c.JSON(http.StatusCreated, CreateNodeResponse{ID: id})
}

// HandleGetNode handles GET /v1/weave/nodes/:id.
func (h *Handlers) HandleGetNode(c *gin.Context) {
	node, ok := h.svc.Store().GetNode(c.Param("id"))
	if !ok {
		notFound(c, "NODE_NOT_FOUND", ErrNodeNotFound.Error())
		return
	}
	c.JSON(http.StatusOK, node)
}

// HandleUpdateNode handles PATCH /v1/weave/nodes/:id.
func (h *Handlers) HandleUpdateNode(c *gin.Context) {
	logger := handlerLogger(c, "HandleUpdateNode")

	var req UpdateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		badRequest(c, "INVALID_REQUEST", "Invalid request body")
		return
	}

	id := c.Param("id")
	ok, err := h.svc.Notifier().UpdateNode(c.Request.Context(), id, req.toUpdate())
	if err != nil {
		badRequest(c, "INVALID_NODE", err.Error())
		return
	}
	if !ok {
		notFound(c, "NODE_NOT_FOUND", ErrNodeNotFound.Error())
		return
	}
	node, _ := h.svc.Store().GetNode(id)
	c.JSON(http.StatusOK, node)
}

// HandleDeleteNode handles DELETE /v1/weave/nodes/:id.
func (h *Handlers) HandleDeleteNode(c *gin.Context) {
	if !h.svc.Notifier().RemoveNode(c.Request.Context(), c.Param("id")) {
		notFound(c, "NODE_NOT_FOUND", ErrNodeNotFound.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleRelated handles GET /v1/weave/nodes/:id/related.
//
// Query Parameters:
//
//	hops - Maximum hop distance (default 2, max 10)
func (h *Handlers) HandleRelated(c *gin.Context) {
	hops := graph.DefaultRelatedHops
	if raw := c.Query("hops"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > graph.MaxRelatedHops {
			badRequest(c, "INVALID_HOPS", "hops must be between 1 and "+strconv.Itoa(graph.MaxRelatedHops))
			return
		}
		hops = n
	}
	id := c.Param("id")
	if !h.svc.Store().HasNode(id) {
		notFound(c, "NODE_NOT_FOUND", ErrNodeNotFound.Error())
		return
	}
	c.JSON(http.StatusOK, nodesResponse(h.svc.Store().FindRelated(c.Request.Context(), id, hops)))
}

// HandleNodeEdges handles GET /v1/weave/nodes/:id/edges.
//
// Query Parameters:
//
//	direction - "out" (default) or "in"
func (h *Handlers) HandleNodeEdges(c *gin.Context) {
	id := c.Param("id")
	switch c.DefaultQuery("direction", "out") {
	case "out":
		c.JSON(http.StatusOK, edgesResponse(h.svc.Store().GetOutgoingEdges(id)))
	case "in":
		c.JSON(http.StatusOK, edgesResponse(h.svc.Store().GetIncomingEdges(id)))
	default:
		badRequest(c, "INVALID_DIRECTION", `direction must be "in" or "out"`)
	}
}

// =============================================================================
// Edges
// =============================================================================

// HandleListEdges handles GET /v1/weave/edges.
func (h *Handlers) HandleListEdges(c *gin.Context) {
	c.JSON(http.StatusOK, edgesResponse(h.svc.Store().GetAllEdges()))
}

// HandleAddEdge handles POST /v1/weave/edges.
//
// Response:
//
//	201 Created: {"added": true}
//	200 OK: {"added": false} for a duplicate edge
//	400 Bad Request: Invalid edge
func (h *Handlers) HandleAddEdge(c *gin.Context) {
	logger := handlerLogger(c, "HandleAddEdge")

	var edge graph.GraphEdge
	if err := c.ShouldBindJSON(&edge); err != nil {
		logger.Warn("Invalid request body", "error", err)
		badRequest(c, "INVALID_REQUEST", "Invalid request body")
		return
	}
	added, err := h.svc.Notifier().AddEdge(c.Request.Context(), edge)
	if err != nil {
		badRequest(c, "INVALID_EDGE", err.Error())
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	c.JSON(status, AddEdgeResponse{Added: added})
}

// HandleRemoveEdge handles DELETE /v1/weave/edges?source=&target=&type=.
func (h *Handlers) HandleRemoveEdge(c *gin.Context) {
	source, target, edgeType := c.Query("source"), c.Query("target"), c.Query("type")
	if source == "" || target == "" || edgeType == "" {
		badRequest(c, "INVALID_REQUEST", "source, target and type are required")
		return
	}
	if !h.svc.Notifier().RemoveEdge(c.Request.Context(), source, target, graph.EdgeType(edgeType)) {
		notFound(c, "EDGE_NOT_FOUND", "edge not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// =============================================================================
// Queries
// =============================================================================

// HandlePath handles GET /v1/weave/path?from=&to=.
func (h *Handlers) HandlePath(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		badRequest(c, "INVALID_REQUEST", "from and to are required")
		return
	}
	path, found := h.svc.Store().FindPath(c.Request.Context(), from, to)
	resp := PathResponse{From: from, To: to, Found: found, Path: path}
	if found {
		resp.Hops = len(path) - 1
	} else {
		resp.Path = []string{}
	}
	c.JSON(http.StatusOK, resp)
}

// HandleStats handles GET /v1/weave/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Store().GetStats())
}

// HandleOrphans handles GET /v1/weave/orphans.
func (h *Handlers) HandleOrphans(c *gin.Context) {
	c.JSON(http.StatusOK, nodesResponse(h.svc.Store().FindOrphanNodes()))
}

// HandleHubs handles GET /v1/weave/hubs?limit=.
func (h *Handlers) HandleHubs(c *gin.Context) {
	limit := graph.StatsTopConnected
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "INVALID_LIMIT", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	nodes := h.svc.Store().FindMostConnected(limit)
	if nodes == nil {
		nodes = []graph.ConnectedNode{}
	}
	c.JSON(http.StatusOK, HubsResponse{Nodes: nodes})
}

// =============================================================================
// Snapshots
// =============================================================================

// HandleExport handles GET /v1/weave/export.
func (h *Handlers) HandleExport(c *gin.Context) {
	data, err := h.svc.Store().ToJSON()
	if err != nil {
		handlerLogger(c, "HandleExport").Error("Export failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "EXPORT_FAILED"})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// HandleImport handles POST /v1/weave/import. The body replaces the graph.
func (h *Handlers) HandleImport(c *gin.Context) {
	logger := handlerLogger(c, "HandleImport")

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxImportBytes+1))
	if err != nil {
		badRequest(c, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if len(data) > MaxImportBytes {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "snapshot too large", Code: "TOO_LARGE"})
		return
	}
	if err := h.svc.Store().LoadJSON(data); err != nil {
		logger.Warn("Import rejected", "error", err)
		badRequest(c, "INVALID_SNAPSHOT", err.Error())
		return
	}
	store := h.svc.Store()
	logger.Info("Graph imported", "nodes", store.NodeCount(), "edges", store.EdgeCount())
	c.JSON(http.StatusOK, ImportResponse{Nodes: store.NodeCount(), Edges: store.EdgeCount()})
}

// HandleSaveSnapshot handles POST /v1/weave/snapshots.
func (h *Handlers) HandleSaveSnapshot(c *gin.Context) {
	if err := h.svc.SaveSnapshot(c.Request.Context()); err != nil {
		if errors.Is(err, ErrNoStorage) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "NO_STORAGE"})
			return
		}
		handlerLogger(c, "HandleSaveSnapshot").Error("Snapshot save failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "SAVE_FAILED"})
		return
	}
	c.JSON(http.StatusOK, SnapshotSaveResponse{
		Name:    h.svc.Config().Storage.SnapshotName,
		SavedAt: time.Now().UTC(),
	})
}

// HandleListSnapshots handles GET /v1/weave/snapshots.
func (h *Handlers) HandleListSnapshots(c *gin.Context) {
	infos, err := h.svc.Snapshots(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrNoStorage) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "NO_STORAGE"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "LIST_FAILED"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": infos})
}

// =============================================================================
// Triggers and Rules
// =============================================================================

// HandleTrigger handles POST /v1/weave/triggers/:trigger.
//
// Description:
//
//	Dispatches the trigger to every enabled subscribed rule. A rule failure
//	that is not tolerated yields 422 with the executions that completed.
//
// Response:
//
//	200 OK: TriggerResponse
//	422 Unprocessable Entity: TriggerResponse with error
func (h *Handlers) HandleTrigger(c *gin.Context) {
	logger := handlerLogger(c, "HandleTrigger")

	var req TriggerRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid request body", "error", err)
			badRequest(c, "INVALID_REQUEST", "Invalid request body")
			return
		}
	}

	trigger := rules.Trigger(c.Param("trigger"))
	entries, err := h.svc.Dispatch(c.Request.Context(), trigger, req.input())
	resp := TriggerResponse{Trigger: trigger, Executions: entries}
	if resp.Executions == nil {
		resp.Executions = []rules.LogEntry{}
	}
	if err != nil {
		logger.Warn("Trigger failed", "trigger", trigger, "error", err)
		resp.Error = err.Error()
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleListRules handles GET /v1/weave/rules?trigger=.
func (h *Handlers) HandleListRules(c *gin.Context) {
	var list []rules.Rule
	if t := c.Query("trigger"); t != "" {
		list = h.svc.Engine().GetRulesByTrigger(rules.Trigger(t))
	} else {
		list = h.svc.Engine().GetAllRules()
	}
	infos := make([]RuleInfo, 0, len(list))
	for _, r := range list {
		infos = append(infos, ruleInfo(r))
	}
	c.JSON(http.StatusOK, RulesResponse{Rules: infos, Count: len(infos)})
}

// HandleGetRule handles GET /v1/weave/rules/:id.
func (h *Handlers) HandleGetRule(c *gin.Context) {
	rule, ok := h.svc.Engine().GetRule(c.Param("id"))
	if !ok {
		notFound(c, "RULE_NOT_FOUND", ErrRuleNotFound.Error())
		return
	}
	c.JSON(http.StatusOK, ruleInfo(rule))
}

// HandleEnableRule handles POST /v1/weave/rules/:id/enable.
func (h *Handlers) HandleEnableRule(c *gin.Context) {
	h.setRuleEnabled(c, true)
}

// HandleDisableRule handles POST /v1/weave/rules/:id/disable.
func (h *Handlers) HandleDisableRule(c *gin.Context) {
	h.setRuleEnabled(c, false)
}

func (h *Handlers) setRuleEnabled(c *gin.Context, enabled bool) {
	id := c.Param("id")
	var ok bool
	if enabled {
		ok = h.svc.Engine().EnableRule(id)
	} else {
		ok = h.svc.Engine().DisableRule(id)
	}
	if !ok {
		notFound(c, "RULE_NOT_FOUND", ErrRuleNotFound.Error())
		return
	}
	rule, _ := h.svc.Engine().GetRule(id)
	c.JSON(http.StatusOK, ruleInfo(rule))
}

// HandleExecuteRule handles POST /v1/weave/rules/:id/execute.
//
// Runs the rule directly, even when disabled. The trigger defaults to manual.
// A failure the rule does not tolerate yields 422 with the log entry.
func (h *Handlers) HandleExecuteRule(c *gin.Context) {
	logger := handlerLogger(c, "HandleExecuteRule")

	var req TriggerRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid request body", "error", err)
			badRequest(c, "INVALID_REQUEST", "Invalid request body")
			return
		}
	}

	entry, err := h.svc.Engine().ExecuteRuleByID(c.Request.Context(), c.Param("id"), rules.Trigger(req.Trigger), req.input())
	if entry == nil && err == nil {
		notFound(c, "RULE_NOT_FOUND", ErrRuleNotFound.Error())
		return
	}
	if entry == nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "EXECUTE_FAILED"})
		return
	}
	if err != nil {
		logger.Warn("Rule failed", "rule_id", entry.RuleID, "error", err)
		c.JSON(http.StatusUnprocessableEntity, entry)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// HandleStatistics handles GET /v1/weave/statistics.
func (h *Handlers) HandleStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Engine().GetStatistics())
}

// HandleRuleStatistics handles GET /v1/weave/statistics/:id.
func (h *Handlers) HandleRuleStatistics(c *gin.Context) {
	stats, ok := h.svc.Engine().GetRuleStatistics(c.Param("id"))
	if !ok {
		notFound(c, "RULE_NOT_FOUND", ErrRuleNotFound.Error())
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleResetStatistics handles DELETE /v1/weave/statistics.
func (h *Handlers) HandleResetStatistics(c *gin.Context) {
	h.svc.Engine().ResetStatistics()
	c.Status(http.StatusNoContent)
}

// HandleSummary handles GET /v1/weave/summary.
func (h *Handlers) HandleSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Engine().GetSummary())
}

// HandleLogs handles GET /v1/weave/logs.
//
// Query Parameters:
//
//	failed - "true" returns failures only
//	limit - Return only the newest N entries
func (h *Handlers) HandleLogs(c *gin.Context) {
	engine := h.svc.Engine()
	if c.Query("failed") == "true" {
		c.JSON(http.StatusOK, logsResponse(engine.FailedLogs()))
		return
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "INVALID_LIMIT", "limit must be a non-negative integer")
			return
		}
		c.JSON(http.StatusOK, logsResponse(engine.LatestLogs(n)))
		return
	}
	c.JSON(http.StatusOK, logsResponse(engine.Logs()))
}

// HandleClearLogs handles DELETE /v1/weave/logs.
func (h *Handlers) HandleClearLogs(c *gin.Context) {
	h.svc.Engine().ClearLogs()
	c.Status(http.StatusNoContent)
}
