// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/muniminc/munim/services/assistant/config"
	"github.com/muniminc/munim/services/assistant/intent"
	"github.com/muniminc/munim/services/assistant/match"
	"github.com/muniminc/munim/services/assistant/normalize"
	"github.com/muniminc/munim/services/assistant/resolve"
	"github.com/muniminc/munim/services/assistant/session"
	"github.com/muniminc/munim/services/assistant/tally"
)

// =============================================================================
// Service
// =============================================================================

// Service wires the assistant pipeline: classifier, resolution engine,
// session store, and the direct-lookup category handlers.
//
// Thread Safety: Safe for concurrent use; all state is either immutable
// after construction or guarded by its owner.
type Service struct {
	source     tally.LedgerDataSource
	engine     *resolve.Engine
	classifier intent.Classifier
	fallback   intent.Classifier
	sessions   session.Store
	normalizer *normalize.Normalizer
	logger     *slog.Logger
}

// ServiceConfig carries the collaborators for NewService. Zero-valued
// fields get working defaults; only Source is mandatory.
type ServiceConfig struct {
	// Source is the Tally data gateway. Required.
	Source tally.LedgerDataSource

	// Classifier is the primary intent classifier. Nil uses the keyword
	// classifier alone.
	Classifier intent.Classifier

	// Sessions stores pending disambiguations. Nil uses an in-memory
	// store with the default TTL.
	Sessions session.Store

	// Logger for the whole pipeline. Nil uses slog.Default().
	Logger *slog.Logger
}

// NewService builds a Service and its full internal pipeline from the
// embedded configuration files.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = session.NewMemoryStore(session.DefaultTTL)
	}
	fallback := intent.NewKeywordClassifier(logger)
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = fallback
	}

	weights := config.MustLoadScoringWeights()
	normalizer := normalize.New(config.MustLoadVocabulary())
	engine := resolve.NewEngine(cfg.Source, normalizer, match.NewScorer(weights), weights, logger)

	return &Service{
		source:     cfg.Source,
		engine:     engine,
		classifier: classifier,
		fallback:   fallback,
		sessions:   sessions,
		normalizer: normalizer,
		logger:     logger,
	}
}

// =============================================================================
// Direct-Lookup Category Handlers
// =============================================================================
//
// These categories lack resolution complexity: each is a fixed query over
// the data source plus light aggregation. They exist so category dispatch
// is real end-to-end, and they share the source error taxonomy with the
// resolution engine.

// handleSales totals the Sales Accounts group. Sales ledgers carry credit
// balances, so the total is the negated sum.
func (s *Service) handleSales(ctx context.Context) (*QueryResponse, error) {
	rows, err := s.source.Query(ctx, "SELECT $Name, $Parent, $ClosingBalance FROM Ledger WHERE $Parent = 'Sales Accounts'")
	if err != nil {
		return s.sourceFailure(err)
	}
	ledgers := tally.LedgersFromRows(rows)
	if len(ledgers) == 0 {
		return &QueryResponse{Kind: KindAnswer, Message: "No sales ledgers found in the current company."}, nil
	}

	var total float64
	for _, ledger := range ledgers {
		total -= ledger.ClosingBalance
	}
	return &QueryResponse{
		Kind:    KindAnswer,
		Message: fmt.Sprintf("Total sales: ₹%s across %d sales ledgers.", indianGroup(total), len(ledgers)),
	}, nil
}

// handleOutstanding reports receivables (Sundry Debtors) and payables
// (Sundry Creditors) side by side.
func (s *Service) handleOutstanding(ctx context.Context) (*QueryResponse, error) {
	debtorRows, err := s.source.Query(ctx, "SELECT $Name, $Parent, $ClosingBalance FROM Ledger WHERE $Parent = 'Sundry Debtors'")
	if err != nil {
		return s.sourceFailure(err)
	}
	creditorRows, err := s.source.Query(ctx, "SELECT $Name, $Parent, $ClosingBalance FROM Ledger WHERE $Parent = 'Sundry Creditors'")
	if err != nil {
		return s.sourceFailure(err)
	}

	var receivable, payable float64
	for _, ledger := range tally.LedgersFromRows(debtorRows) {
		receivable += ledger.ClosingBalance
	}
	for _, ledger := range tally.LedgersFromRows(creditorRows) {
		payable -= ledger.ClosingBalance
	}
	return &QueryResponse{
		Kind: KindAnswer,
		Message: fmt.Sprintf("Receivable from customers: ₹%s. Payable to suppliers: ₹%s.",
			indianGroup(receivable), indianGroup(payable)),
	}, nil
}

// stockNoise is the category vocabulary itself: useless as an item-name
// filter once the message has been classified as a stock query.
var stockNoise = map[string]bool{
	"stock": true, "saman": true, "inventory": true, "item": true,
	"items": true, "maal": true, "godown": true,
}

// handleStock searches stock items by name. The search term goes through
// vernacular translation first so "saman" style queries work, then drops
// the category words so only the item name remains.
func (s *Service) handleStock(ctx context.Context, query string) (*QueryResponse, error) {
	var terms []string
	for _, word := range strings.Fields(s.normalizer.TranslateVernacular(query)) {
		if !stockNoise[strings.ToLower(word)] {
			terms = append(terms, strings.ToUpper(word))
		}
	}

	rows, err := s.source.Query(ctx, "SELECT $Name, $ClosingBalance FROM StockItem")
	if err != nil {
		return s.sourceFailure(err)
	}
	items := tally.LedgersFromRows(rows)
	if len(items) == 0 {
		return &QueryResponse{Kind: KindAnswer, Message: "The current company has no stock items."}, nil
	}

	// An item matches when any remaining term word starts a word of its
	// name. Leftover filler like "hai" simply matches nothing.
	var lines []string
	for _, item := range items {
		if len(terms) == 0 || anyWordStarts(item.Name, terms) {
			lines = append(lines, fmt.Sprintf("%s: %.0f in stock", item.Name, item.ClosingBalance))
		}
		if len(lines) == 5 {
			break
		}
	}
	if len(lines) == 0 {
		return &QueryResponse{
			Kind:    KindAnswer,
			Message: fmt.Sprintf("No stock items match %q.", query),
		}, nil
	}
	return &QueryResponse{
		Kind:    KindAnswer,
		Message: "Stock:\n" + strings.Join(lines, "\n"),
	}, nil
}

func anyWordStarts(name string, terms []string) bool {
	for _, word := range strings.Fields(strings.ToUpper(name)) {
		for _, term := range terms {
			if strings.HasPrefix(word, term) {
				return true
			}
		}
	}
	return false
}

// handleCompanyInfo reports the active company name.
func (s *Service) handleCompanyInfo(ctx context.Context) (*QueryResponse, error) {
	rows, err := s.source.Query(ctx, "SELECT $Name FROM Company")
	if err != nil {
		return s.sourceFailure(err)
	}
	if len(rows) == 0 {
		return &QueryResponse{Kind: KindAnswer, Message: "No company is currently open in Tally."}, nil
	}
	name, _ := tally.LedgerFromRow(rows[0])
	return &QueryResponse{
		Kind:    KindAnswer,
		Message: fmt.Sprintf("The open company is %s.", name.Name),
	}, nil
}

// sourceFailure maps a data-source error to user-facing guidance. Only an
// unavailable source is surfaced as such; other failures get a soft retry
// message instead of internals.
func (s *Service) sourceFailure(err error) (*QueryResponse, error) {
	if tally.IsUnavailable(err) {
		return &QueryResponse{Kind: KindAnswer, Message: msgSourceUnavailable}, nil
	}
	s.logger.Warn("category lookup failed", slog.String("error", err.Error()))
	return &QueryResponse{Kind: KindAnswer, Message: "I couldn't fetch that from Tally just now. Please try again."}, nil
}
