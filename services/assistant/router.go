// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/muniminc/munim/services/assistant/intent"
	"github.com/muniminc/munim/services/assistant/resolve"
	"github.com/muniminc/munim/services/assistant/session"
	"github.com/muniminc/munim/services/assistant/tally"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	routerContinuationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "munim",
		Subsystem: "router",
		Name:      "continuation_total",
		Help:      "Continuation check outcomes: selected, ambiguous, fresh, none_pending",
	}, []string{"outcome"})

	routerCategoryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "munim",
		Subsystem: "router",
		Name:      "category_total",
		Help:      "Fresh-query dispatch by intent category",
	}, []string{"category"})
)

var routerTracer = otel.Tracer("munim.assistant.router")

// =============================================================================
// Query Routing
// =============================================================================

// Route handles one user message for one session end to end.
//
// Description:
//
//	The continuation check runs first: if the session has a pending
//	disambiguation and the message reads as a selection, the selected
//	name is re-resolved directly (pending state cleared). A selection
//	attempt that misses — an out-of-range number — keeps the pending
//	state and asks the user to try again. Anything else is a fresh
//	query: classified, dispatched by category, and for ledger-shaped
//	intents run through the resolution engine, with pending state
//	rewritten to match the new outcome.
//
// Outputs:
//
//	*QueryResponse - Always non-nil when error is nil; Message is set.
//	error          - Non-nil only for session-store failures; data-source
//	                 problems become user-facing guidance instead.
func (s *Service) Route(ctx context.Context, sessionID, text string) (*QueryResponse, error) {
	ctx, span := routerTracer.Start(ctx, "assistant.Service.Route",
		trace.WithAttributes(attribute.String("session_id", sessionID)),
	)
	defer span.End()

	logger := s.logger.With(slog.String("session_id", sessionID))

	pending, err := s.sessions.GetPending(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		if response, handled, err := s.tryContinuation(ctx, sessionID, text, pending, logger); handled {
			return response, err
		}
		routerContinuationTotal.WithLabelValues("fresh").Inc()
	} else {
		routerContinuationTotal.WithLabelValues("none_pending").Inc()
	}

	return s.freshQuery(ctx, sessionID, text, logger)
}

// tryContinuation interprets the message against the pending candidate
// list. handled=false means the message is not a selection and routing
// must continue as a fresh query.
func (s *Service) tryContinuation(ctx context.Context, sessionID, text string, pending *session.PendingDisambiguation, logger *slog.Logger) (*QueryResponse, bool, error) {
	candidate, attempted, err := pending.Select(text)
	if err != nil {
		// A selection attempt that missed. Pending state stays so the
		// user can try again; falling through to fresh-query resolution
		// here would silently discard their intent to pick from the list.
		if errors.Is(err, session.ErrAmbiguousContinuation) {
			routerContinuationTotal.WithLabelValues("ambiguous").Inc()
			logger.Debug("ambiguous continuation", slog.String("reply", text))
			return clarifyResponse(len(pending.Candidates)), true, nil
		}
		return nil, true, err
	}
	if !attempted {
		return nil, false, nil
	}

	routerContinuationTotal.WithLabelValues("selected").Inc()
	logger.Info("continuation selected", slog.String("name", candidate.DisplayName))

	// The selection consumed the pending state regardless of what the
	// re-resolution below returns.
	if err := s.sessions.Clear(ctx, sessionID); err != nil {
		logger.Warn("clearing pending state failed", slog.String("error", err.Error()))
	}

	// Re-resolve the canonical name: suggestion candidates carry no
	// balance, and even multi-match candidates may hold a stale one.
	result, err := s.engine.Resolve(ctx, candidate.DisplayName)
	if err != nil {
		if tally.IsUnavailable(err) {
			return &QueryResponse{Kind: string(resolve.KindNoMatch), Message: msgSourceUnavailable}, true, nil
		}
		return nil, true, err
	}
	return formatResult(result), true, nil
}

// freshQuery classifies and dispatches a non-continuation message.
func (s *Service) freshQuery(ctx context.Context, sessionID, text string, logger *slog.Logger) (*QueryResponse, error) {
	classification, err := s.classifier.Classify(ctx, text)
	if err != nil {
		logger.Warn("primary classifier failed, using keyword fallback", slog.String("error", err.Error()))
		classification, _ = s.fallback.Classify(ctx, text)
	}
	routerCategoryTotal.WithLabelValues(string(classification.Category)).Inc()
	logger.Debug("intent classified", slog.String("category", string(classification.Category)))

	query := classification.Query
	if query == "" {
		query = text
	}

	var response *QueryResponse
	switch classification.Category {
	case intent.CategorySales:
		response, err = s.handleSales(ctx)
	case intent.CategoryStock:
		response, err = s.handleStock(ctx, query)
	case intent.CategoryOutstanding:
		response, err = s.handleOutstanding(ctx)
	case intent.CategoryCompanyInfo:
		response, err = s.handleCompanyInfo(ctx)
	default:
		// Ledger and unknown both go to resolution: the engine has a
		// guaranteed terminal state either way.
		return s.resolveLedgerQuery(ctx, sessionID, query, logger)
	}
	if err != nil {
		return nil, err
	}

	// A direct answer supersedes any pending disambiguation.
	if clearErr := s.sessions.Clear(ctx, sessionID); clearErr != nil {
		logger.Warn("clearing pending state failed", slog.String("error", clearErr.Error()))
	}
	return response, nil
}

// resolveLedgerQuery runs the resolution engine and records or clears
// pending state to match the outcome.
func (s *Service) resolveLedgerQuery(ctx context.Context, sessionID, query string, logger *slog.Logger) (*QueryResponse, error) {
	result, err := s.engine.Resolve(ctx, query)
	if err != nil {
		if tally.IsUnavailable(err) {
			logger.Warn("data source unavailable")
			return &QueryResponse{Kind: string(resolve.KindNoMatch), Message: msgSourceUnavailable}, nil
		}
		return nil, err
	}

	switch result.Kind {
	case resolve.KindMultipleMatches:
		candidates := make([]session.Candidate, 0, len(result.Candidates))
		for _, candidate := range result.Candidates {
			candidates = append(candidates, session.Candidate{
				DisplayName: candidate.Ledger.Name,
				Ledger:      candidate.Ledger,
			})
		}
		err = s.sessions.SetPending(ctx, sessionID, &session.PendingDisambiguation{
			SearchTerm: result.SearchTerm,
			Kind:       session.PendingMultiMatch,
			Candidates: candidates,
		})
	case resolve.KindSuggestions:
		candidates := make([]session.Candidate, 0, len(result.Suggestions))
		for _, name := range result.Suggestions {
			candidates = append(candidates, session.Candidate{DisplayName: name})
		}
		err = s.sessions.SetPending(ctx, sessionID, &session.PendingDisambiguation{
			SearchTerm: result.SearchTerm,
			Kind:       session.PendingSuggestions,
			Candidates: candidates,
		})
	default:
		err = s.sessions.Clear(ctx, sessionID)
	}
	if err != nil {
		logger.Warn("updating pending state failed", slog.String("error", err.Error()))
	}

	return formatResult(result), nil
}
