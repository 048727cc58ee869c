// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/muniminc/munim/services/assistant/tally"
)

// =============================================================================
// HTTP Handlers
// =============================================================================

// Handlers adapts the Service to Gin.
type Handlers struct {
	service *Service
}

// NewHandlers creates the handler set over a Service.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one, and
// echoes it on the response for correlation.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// HandleQuery handles POST /v1/assistant/query.
//
// Description:
//
//	Binds the query request, routes it through the assistant pipeline,
//	and returns the conversational response. Data-source problems are
//	already folded into user-facing guidance by the router; only session
//	store failures surface as 500s.
//
// Responses:
//
//	200 OK: QueryResponse
//	400 Bad Request: Missing session_id or text
//	500 Internal Server Error: Session store failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQuery")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "session_id and text are required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	response, err := h.service.Route(c.Request.Context(), req.SessionID, req.Text)
	if err != nil {
		logger.Error("query routing failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal error handling the query",
			Code:  "ROUTING_FAILED",
		})
		return
	}

	logger.Info("query handled",
		slog.String("session_id", req.SessionID),
		slog.String("kind", response.Kind),
	)
	c.JSON(http.StatusOK, response)
}

// HandleHealth handles GET /v1/assistant/health. Liveness only: the
// process is up and serving.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady handles GET /v1/assistant/ready.
//
// Description:
//
//	Readiness includes the Tally bridge: a cheap company query must
//	succeed. A query timeout still counts as ready (the bridge is slow,
//	not gone); a connection-level failure does not.
func (h *Handlers) HandleReady(c *gin.Context) {
	_, err := h.service.source.Query(c.Request.Context(), "SELECT $Name FROM Company")
	if err != nil && tally.IsUnavailable(err) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"reason": "tally bridge unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
