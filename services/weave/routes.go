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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes registers all weave routes with the router.
//
// Description:
//
//	Registers all /v1/weave/* endpoints with the given Gin router group.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Graph Endpoints:
//
//	GET    /v1/weave/nodes - List nodes (filters: tag, type, status)
//	POST   /v1/weave/nodes - Add or merge a node
//	GET    /v1/weave/nodes/:id - Get a node
//	PATCH  /v1/weave/nodes/:id - Partially update a node
//	DELETE /v1/weave/nodes/:id - Remove a node and its edges
//	GET    /v1/weave/nodes/:id/related - Nodes within N hops
//	GET    /v1/weave/nodes/:id/edges - Outgoing or incoming edges
//	GET    /v1/weave/edges - List edges
//	POST   /v1/weave/edges - Add an edge
//	DELETE /v1/weave/edges - Remove an edge
//	GET    /v1/weave/path - Shortest directed path
//	GET    /v1/weave/stats - Graph statistics
//	GET    /v1/weave/orphans - Nodes with no edges
//	GET    /v1/weave/hubs - Most connected nodes
//	GET    /v1/weave/export - Snapshot JSON
//	POST   /v1/weave/import - Replace the graph from snapshot JSON
//	GET    /v1/weave/snapshots - List stored snapshots
//	POST   /v1/weave/snapshots - Save the graph to storage
//
// Rule Endpoints:
//
//	POST   /v1/weave/triggers/:trigger - Dispatch a trigger
//	GET    /v1/weave/rules - List rules (filter: trigger)
//	GET    /v1/weave/rules/:id - Get a rule
//	POST   /v1/weave/rules/:id/enable - Enable a rule
//	POST   /v1/weave/rules/:id/disable - Disable a rule
//	POST   /v1/weave/rules/:id/execute - Run one rule directly
//	GET    /v1/weave/statistics - Dispatcher statistics
//	GET    /v1/weave/statistics/:id - Statistics for one rule
//	DELETE /v1/weave/statistics - Reset statistics
//	GET    /v1/weave/summary - Dispatcher summary
//	GET    /v1/weave/logs - Execution log (failed, limit)
//	DELETE /v1/weave/logs - Clear the execution log
//
// Health Endpoints:
//
//	GET    /v1/weave/health - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	weave := rg.Group("/weave")
	{
		weave.GET("/health", handlers.HandleHealth)

		weave.GET("/nodes", handlers.HandleListNodes)
		weave.POST("/nodes", handlers.HandleCreateNode)
		weave.GET("/nodes/:id", handlers.HandleGetNode)
		weave.PATCH("/nodes/:id", handlers.HandleUpdateNode)
		weave.DELETE("/nodes/:id", handlers.HandleDeleteNode)
		weave.GET("/nodes/:id/related", handlers.HandleRelated)
		weave.GET("/nodes/:id/edges", handlers.HandleNodeEdges)

		weave.GET("/edges", handlers.HandleListEdges)
		weave.POST("/edges", handlers.HandleAddEdge)
		weave.DELETE("/edges", handlers.HandleRemoveEdge)

		weave.GET("/path", handlers.HandlePath)
		weave.GET("/stats", handlers.HandleStats)
		weave.GET("/orphans", handlers.HandleOrphans)
		weave.GET("/hubs", handlers.HandleHubs)

		weave.GET("/export", handlers.HandleExport)
		weave.POST("/import", handlers.HandleImport)
		weave.GET("/snapshots", handlers.HandleListSnapshots)
		weave.POST("/snapshots", handlers.HandleSaveSnapshot)

		weave.POST("/triggers/:trigger", handlers.HandleTrigger)

		weave.GET("/rules", handlers.HandleListRules)
		weave.GET("/rules/:id", handlers.HandleGetRule)
		weave.POST("/rules/:id/enable", handlers.HandleEnableRule)
		weave.POST("/rules/:id/disable", handlers.HandleDisableRule)
		weave.POST("/rules/:id/execute", handlers.HandleExecuteRule)

		weave.GET("/statistics", handlers.HandleStatistics)
		weave.GET("/statistics/:id", handlers.HandleRuleStatistics)
		weave.DELETE("/statistics", handlers.HandleResetStatistics)
		weave.GET("/summary", handlers.HandleSummary)

		weave.GET("/logs", handlers.HandleLogs)
		weave.DELETE("/logs", handlers.HandleClearLogs)
	}
}

// RegisterMetrics serves handler at /metrics on the root router. A nil
// handler leaves the route unregistered.
func RegisterMetrics(router *gin.Engine, handler http.Handler) {
	if handler == nil {
		return
	}
	router.GET("/metrics", gin.WrapH(handler))
}

// NewRouter builds a gin engine with recovery and request tracing, the
// weave routes and, when metricsHandler is non-nil, /metrics.
func NewRouter(svc *Service, metricsHandler http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(svc.Config().Telemetry.ServiceName))
	RegisterRoutes(router.Group("/v1"), NewHandlers(svc))
	RegisterMetrics(router, metricsHandler)
	return router
}
