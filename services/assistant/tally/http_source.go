// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tally

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	sourceQueryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "munim",
		Subsystem: "tally",
		Name:      "query_total",
		Help:      "Data source queries by outcome: success, timeout, unavailable, error",
	}, []string{"outcome"})

	sourceQueryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "munim",
		Subsystem: "tally",
		Name:      "query_latency_seconds",
		Help:      "Latency of data source queries",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
	})
)

var sourceTracer = otel.Tracer("munim.assistant.tally")

// DefaultQueryTimeout caps a single gateway query. Whole-table scans on
// large installations have been observed around 15s; anything past 30s is
// the engine hanging, not working.
const DefaultQueryTimeout = 30 * time.Second

// =============================================================================
// HTTPSource
// =============================================================================

// HTTPSource implements LedgerDataSource against a Tally HTTP bridge.
//
// Description:
//
//	Posts the SQL text as JSON to the bridge's /query endpoint and decodes
//	the row array from the response. A per-query timeout is applied via
//	context; a timeout does NOT mark the source unavailable — only
//	connection-level failures (refused, reset, closed) do. This mirrors the
//	engine's real failure modes: a slow collection walk is routine, a dead
//	bridge is not.
//
// Thread Safety: Safe for concurrent use.
type HTTPSource struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	logger     *slog.Logger
}

// queryRequest is the bridge wire format for a query call.
type queryRequest struct {
	SQL string `json:"sql"`
}

// queryResponse is the bridge wire format for query results. Some bridge
// versions wrap rows in "data", others in "rows"; both are accepted.
type queryResponse struct {
	Rows  []Row  `json:"rows"`
	Data  []Row  `json:"data"`
	Error string `json:"error"`
}

// NewHTTPSource creates an HTTPSource for the given bridge base URL.
//
// Inputs:
//
//	baseURL - Bridge root, e.g. "http://localhost:9000". Must not be empty.
//	timeout - Per-query cap. Zero uses DefaultQueryTimeout.
//	logger  - Logger instance. Nil uses slog.Default().
func NewHTTPSource(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPSource {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &HTTPSource{
		// The http.Client itself has no timeout; deadlines come from the
		// per-query context so the caller's context still wins.
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		logger:     logger,
	}
}

// Query implements LedgerDataSource.
//
// Description:
//
//	Sends the SQL to the bridge and normalizes transport failures into the
//	package error taxonomy: context deadline → ErrQueryTimeout, dial/reset
//	failures → ErrSourceUnavailable, anything else → plain wrapped error.
//
// Thread Safety: Safe for concurrent use.
func (s *HTTPSource) Query(ctx context.Context, sql string) ([]Row, error) {
	ctx, span := sourceTracer.Start(ctx, "tally.HTTPSource.Query",
		trace.WithAttributes(
			attribute.Int("sql_len", len(sql)),
		),
	)
	defer span.End()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := json.Marshal(queryRequest{SQL: sql})
	if err != nil {
		return nil, fmt.Errorf("tally: marshaling query request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tally: creating query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	duration := time.Since(start)
	sourceQueryLatency.Observe(duration.Seconds())

	if err != nil {
		classified := s.classifyTransportError(err)
		span.RecordError(classified)
		span.SetStatus(codes.Error, "query transport failed")
		return nil, classified
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		sourceQueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("tally: reading query response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		sourceQueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("tally: bridge returned status %d: %s", resp.StatusCode, truncateBody(raw))
	}

	var decoded queryResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		sourceQueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("tally: parsing query response: %w", err)
	}
	if decoded.Error != "" {
		sourceQueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("tally: bridge error: %s", decoded.Error)
	}

	rows := decoded.Rows
	if rows == nil {
		rows = decoded.Data
	}

	sourceQueryTotal.WithLabelValues("success").Inc()
	span.SetAttributes(attribute.Int("rows", len(rows)))
	s.logger.Debug("tally query completed",
		slog.Int("rows", len(rows)),
		slog.Duration("duration", duration),
	)
	return rows, nil
}

// classifyTransportError maps a transport failure onto the error taxonomy.
// Deadline exceeded is a QUERY failure, not a connection failure: the
// bridge may simply be walking a large collection, and tearing down a live
// connection for one slow query loses the session for nothing.
func (s *HTTPSource) classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		sourceQueryTotal.WithLabelValues("timeout").Inc()
		s.logger.Warn("tally query timed out, connection presumed alive",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrQueryTimeout, err)
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) || isConnectionClosed(err) {
		sourceQueryTotal.WithLabelValues("unavailable").Inc()
		s.logger.Error("tally bridge unreachable",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	sourceQueryTotal.WithLabelValues("error").Inc()
	return fmt.Errorf("tally: query failed: %w", err)
}

// isConnectionClosed catches string-shaped closure errors the net package
// does not expose as typed values.
func isConnectionClosed(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "use of closed network connection")
}

func truncateBody(b []byte) string {
	const max = 200
	s := string(b)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
