// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/muniminc/munim/services/assistant/config"
	"github.com/muniminc/munim/services/assistant/match"
	"github.com/muniminc/munim/services/assistant/normalize"
	"github.com/muniminc/munim/services/assistant/tally"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	resolveTierTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "munim",
		Subsystem: "resolve",
		Name:      "tier_total",
		Help:      "Resolutions by terminal tier: exact, subterm, fuzzy, full_scan, suggestion, no_match",
	}, []string{"tier"})

	resolveStrategyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "munim",
		Subsystem: "resolve",
		Name:      "strategy_failures_total",
		Help:      "Individual fuzzy strategy query failures, by strategy and class (timeout, error)",
	}, []string{"strategy", "class"})

	resolveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "munim",
		Subsystem: "resolve",
		Name:      "latency_seconds",
		Help:      "End-to-end resolution latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
	})
)

var resolveTracer = otel.Tracer("munim.assistant.resolve")

// =============================================================================
// Engine
// =============================================================================

// Engine resolves noisy user-supplied account names to concrete ledgers
// through a strictly ordered, short-circuiting tier pipeline:
//
//  1. Normalize the input.
//  2. Exact tier: client-side case-insensitive equality scan over the full
//     ledger snapshot (the engine's SQL equality is not trusted), then
//     exact/starts-with on meaningful sub-terms of multi-word inputs.
//  3. Fuzzy tier: the strategy table from strategies.go, fanned out
//     concurrently, merged deterministically, scored and ranked.
//  4. Full-scan fallback: every ledger scored in-memory with the simpler
//     three-level scheme. The backstop for installations where the engine's
//     pattern queries silently return nothing.
//  5. Suggestion tier: category patterns, similarity-ranked scan, static
//     fallbacks — the guaranteed terminal state.
//
// Failures inside tiers are logged and recovered; only a dead data source
// propagates as an error. The engine performs read-only queries and never
// touches conversation state — that is the query router's job.
//
// Thread Safety: Safe for concurrent use.
type Engine struct {
	source     tally.LedgerDataSource
	normalizer *normalize.Normalizer
	scorer     *match.Scorer
	weights    *config.ScoringWeights
	logger     *slog.Logger
}

// NewEngine creates an Engine with constructor-injected collaborators.
//
// Inputs:
//
//	source     - The external ledger data source. Must not be nil.
//	normalizer - Term normalizer. Nil builds one from the embedded vocabulary.
//	scorer     - Match scorer. Nil builds one from the embedded weights.
//	weights    - Scoring weights. Nil loads the embedded default.
//	logger     - Logger instance. Nil uses slog.Default().
func NewEngine(source tally.LedgerDataSource, normalizer *normalize.Normalizer, scorer *match.Scorer, weights *config.ScoringWeights, logger *slog.Logger) *Engine {
	if weights == nil {
		weights = config.MustLoadScoringWeights()
	}
	if normalizer == nil {
		normalizer = normalize.New(nil)
	}
	if scorer == nil {
		scorer = match.NewScorer(weights)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		source:     source,
		normalizer: normalizer,
		scorer:     scorer,
		weights:    weights,
		logger:     logger,
	}
}

// Resolve runs the full tier pipeline for one user input.
//
// Outputs:
//
//	*Result - The tagged outcome. Never nil when error is nil.
//	error   - Non-nil ONLY when the data source is unavailable
//	          (tally.ErrSourceUnavailable); every other failure is recovered
//	          inside the pipeline.
func (e *Engine) Resolve(ctx context.Context, userInput string) (*Result, error) {
	ctx, span := resolveTracer.Start(ctx, "resolve.Engine.Resolve",
		trace.WithAttributes(
			attribute.String("input_preview", preview(userInput, 60)),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		resolveLatency.Observe(time.Since(start).Seconds())
	}()

	term := e.normalizer.Clean(userInput)
	span.SetAttributes(attribute.String("term", preview(term, 60)))
	if term == "" {
		resolveTierTotal.WithLabelValues("no_match").Inc()
		return &Result{
			Kind:    KindNoMatch,
			Tier:    "no_match",
			Message: "Please tell me which ledger you want, e.g. \"balance of ACME TRADERS\".",
		}, nil
	}

	logger := e.logger.With(slog.String("term", term))

	// Tier 2: exact scan over the full snapshot. The snapshot also feeds
	// tiers 4 and 5, so a successful load here is reused; a failed load is
	// retried there.
	snapshot, snapErr := e.loadSnapshot(ctx)
	if snapErr != nil {
		if tally.IsUnavailable(snapErr) {
			span.SetStatus(codes.Error, "data source unavailable")
			return nil, snapErr
		}
		logger.Warn("snapshot load failed, exact tier degraded",
			slog.String("error", snapErr.Error()),
		)
	}

	// A reachable source with zero ledgers is not the same condition as an
	// unreachable one; the user needs different guidance for each.
	if snapErr == nil && len(snapshot) == 0 {
		resolveTierTotal.WithLabelValues("no_match").Inc()
		return &Result{
			Kind:       KindNoMatch,
			SearchTerm: term,
			Tier:       "no_match",
			Message:    "I'm connected to Tally but the current company has no ledgers yet.",
		}, nil
	}

	if snapshot != nil {
		if result := e.exactTier(term, snapshot, logger); result != nil {
			span.SetAttributes(attribute.String("tier", result.Tier))
			return result, nil
		}
	}

	// Tier 3: fuzzy strategy fan-out.
	result := e.fuzzyTier(ctx, term, logger)
	if result != nil {
		span.SetAttributes(attribute.String("tier", result.Tier))
		return result, nil
	}

	// Tier 4: client-side full scan. Reload the snapshot if tier 2's load
	// failed — a tier-3 timeout must not prevent this backstop from running.
	if snapshot == nil {
		snapshot, snapErr = e.loadSnapshot(ctx)
		if snapErr != nil {
			if tally.IsUnavailable(snapErr) {
				span.SetStatus(codes.Error, "data source unavailable")
				return nil, snapErr
			}
			logger.Warn("fallback snapshot load failed",
				slog.String("error", snapErr.Error()),
			)
		}
	}
	if snapshot != nil {
		if result := e.fullScanTier(term, snapshot, logger); result != nil {
			span.SetAttributes(attribute.String("tier", result.Tier))
			return result, nil
		}
	}

	// Tier 5: suggestions — the guaranteed terminal state.
	final := e.suggestionTier(ctx, term, snapshot, logger)
	span.SetAttributes(attribute.String("tier", final.Tier))
	return final, nil
}

// loadSnapshot fetches the entire ledger set in one query.
func (e *Engine) loadSnapshot(ctx context.Context) ([]tally.Ledger, error) {
	rows, err := e.source.Query(ctx, fullScanSQL)
	if err != nil {
		return nil, err
	}
	return tally.LedgersFromRows(rows), nil
}

// =============================================================================
// Tier 2: Exact Match
// =============================================================================

// exactTier scans the snapshot for case-insensitive equality on the full
// term, then tries meaningful sub-terms of multi-word inputs. Returns nil
// when the tier produced nothing usable and the pipeline should continue.
func (e *Engine) exactTier(term string, snapshot []tally.Ledger, logger *slog.Logger) *Result {
	exact := make([]tally.Ledger, 0, 1)
	for _, ledger := range snapshot {
		if strings.EqualFold(ledger.Name, term) {
			exact = append(exact, ledger)
		}
	}
	if len(exact) > 0 {
		if distinctNames(exact) == 1 {
			resolveTierTotal.WithLabelValues("exact").Inc()
			logger.Info("resolved by exact match", slog.String("ledger", exact[0].Name))
			return &Result{
				Kind:       KindExactMatch,
				SearchTerm: term,
				Ledger:     exact[0],
				Tier:       "exact",
				Message:    fmt.Sprintf("Found ledger %q.", exact[0].Name),
			}
		}
		// Several distinct names compare equal-fold to the term (casing
		// variants). Surface them for selection.
		candidates := make([]MatchCandidate, 0, len(exact))
		for _, ledger := range exact {
			candidates = append(candidates, MatchCandidate{Ledger: ledger, Score: 100})
		}
		resolveTierTotal.WithLabelValues("exact").Inc()
		return e.multipleMatches(term, candidates, "exact")
	}

	// Sub-term pass: only multi-word terms, only meaningful words.
	words := MeaningfulWords(term)
	if len(strings.Fields(term)) < 2 || len(words) == 0 {
		return nil
	}

	var pooled []MatchCandidate
	for _, word := range words {
		hits := make([]tally.Ledger, 0, 2)
		for _, ledger := range snapshot {
			if strings.EqualFold(ledger.Name, word) ||
				strings.HasPrefix(strings.ToUpper(ledger.Name), strings.ToUpper(word)) {
				hits = append(hits, ledger)
			}
		}
		if len(hits) == 1 {
			// A single hit on any sub-term short-circuits.
			resolveTierTotal.WithLabelValues("subterm").Inc()
			logger.Info("resolved by sub-term match",
				slog.String("word", word),
				slog.String("ledger", hits[0].Name),
			)
			return &Result{
				Kind:       KindExactMatch,
				SearchTerm: term,
				Ledger:     hits[0],
				Tier:       "subterm",
				Message:    fmt.Sprintf("Found ledger %q.", hits[0].Name),
			}
		}
		for _, hit := range hits {
			pooled = append(pooled, MatchCandidate{
				Ledger: hit,
				Score:  e.scorer.Score(hit.Name, term, e.weights.StrategyBaseScores["starts_with"]),
			})
		}
	}
	if len(pooled) == 0 {
		return nil
	}
	// Multiple sub-term hits fall through to ranking rather than returning
	// the first.
	pooled = dedupeByName(pooled)
	sortCandidates(pooled)
	if len(pooled) > e.weights.Limits.KeepTop {
		pooled = pooled[:e.weights.Limits.KeepTop]
	}
	if distinctCandidateNames(pooled) == 1 {
		resolveTierTotal.WithLabelValues("subterm").Inc()
		return &Result{
			Kind:       KindExactMatch,
			SearchTerm: term,
			Ledger:     pooled[0].Ledger,
			Tier:       "subterm",
			Message:    fmt.Sprintf("Found ledger %q.", pooled[0].Ledger.Name),
		}
	}
	resolveTierTotal.WithLabelValues("subterm").Inc()
	return e.multipleMatches(term, pooled, "subterm")
}

// =============================================================================
// Tier 3: Fuzzy Strategy Fan-Out
// =============================================================================

// strategyResult pairs a strategy with the ledgers its queries returned.
type strategyResult struct {
	strategy Strategy
	ledgers  []tally.Ledger
}

// fuzzyTier runs the strategy table concurrently and merges results
// deterministically. Returns nil if no strategy produced anything.
func (e *Engine) fuzzyTier(ctx context.Context, term string, logger *slog.Logger) *Result {
	ctx, span := resolveTracer.Start(ctx, "resolve.Engine.fuzzyTier")
	defer span.End()

	strategies := Strategies(e.weights)
	results := make([]strategyResult, len(strategies))

	// Fan out. Each strategy failure is recorded and skipped; the group
	// never aborts, so g.Wait's error is always nil.
	g, gctx := errgroup.WithContext(ctx)
	for i, strategy := range strategies {
		g.Go(func() error {
			queries := strategy.Queries(term)
			var ledgers []tally.Ledger
			for _, sql := range queries {
				rows, err := e.source.Query(gctx, sql)
				if err != nil {
					class := "error"
					if tally.IsTimeout(err) {
						class = "timeout"
					}
					resolveStrategyFailures.WithLabelValues(strategy.Name, class).Inc()
					logger.Warn("fuzzy strategy query failed, skipping",
						slog.String("strategy", strategy.Name),
						slog.String("class", class),
						slog.String("error", err.Error()),
					)
					continue
				}
				ledgers = append(ledgers, tally.LedgersFromRows(rows)...)
			}
			results[i] = strategyResult{strategy: strategy, ledgers: ledgers}
			return nil
		})
	}
	_ = g.Wait()

	// Merge in table order: first strategy to discover a name owns it, so
	// the candidate carries the highest applicable base score and ordering
	// does not depend on query arrival order.
	seen := make(map[string]bool)
	var candidates []MatchCandidate
	for _, sr := range results {
		for _, ledger := range sr.ledgers {
			key := strings.ToUpper(ledger.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			candidates = append(candidates, MatchCandidate{
				Ledger: ledger,
				Score:  e.scorer.Score(ledger.Name, term, sr.strategy.BaseScore),
			})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sortCandidates(candidates)
	if len(candidates) > e.weights.Limits.KeepTop {
		candidates = candidates[:e.weights.Limits.KeepTop]
	}
	span.SetAttributes(attribute.Int("candidates", len(candidates)))

	if distinctCandidateNames(candidates) == 1 {
		resolveTierTotal.WithLabelValues("fuzzy").Inc()
		logger.Info("resolved by fuzzy match",
			slog.String("ledger", candidates[0].Ledger.Name),
			slog.Int("score", candidates[0].Score),
		)
		return &Result{
			Kind:       KindExactMatch,
			SearchTerm: term,
			Ledger:     candidates[0].Ledger,
			Tier:       "fuzzy",
			Message:    fmt.Sprintf("Found ledger %q.", candidates[0].Ledger.Name),
		}
	}
	resolveTierTotal.WithLabelValues("fuzzy").Inc()
	return e.multipleMatches(term, candidates, "fuzzy")
}

// =============================================================================
// Tier 4: Client-Side Full Scan
// =============================================================================

// fullScanTier scores every snapshot entry in-memory with the simpler
// three-level scheme: exact (100), contains (90), proportional word overlap
// (up to 80). This tier exists because the external engine's pattern
// matching fails unpredictably — it is the correctness backstop.
func (e *Engine) fullScanTier(term string, snapshot []tally.Ledger, logger *slog.Logger) *Result {
	scores := e.weights.FullScan
	termUpper := strings.ToUpper(term)

	var candidates []MatchCandidate
	for _, ledger := range snapshot {
		nameUpper := strings.ToUpper(ledger.Name)
		var score int
		switch {
		case nameUpper == termUpper:
			score = scores.Exact
		case strings.Contains(nameUpper, termUpper):
			score = scores.Contains
		default:
			if overlap := match.WordOverlapRatio(ledger.Name, term); overlap > 0 {
				score = int(overlap * float64(scores.WordOverlapMax))
			}
		}
		if score > 0 {
			candidates = append(candidates, MatchCandidate{Ledger: ledger, Score: score})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	candidates = dedupeByName(candidates)
	sortCandidates(candidates)
	if len(candidates) > e.weights.Limits.KeepTop {
		candidates = candidates[:e.weights.Limits.KeepTop]
	}

	logger.Info("pattern queries returned nothing, full scan recovered candidates",
		slog.Int("candidates", len(candidates)),
	)
	resolveTierTotal.WithLabelValues("full_scan").Inc()

	if distinctCandidateNames(candidates) == 1 {
		return &Result{
			Kind:       KindExactMatch,
			SearchTerm: term,
			Ledger:     candidates[0].Ledger,
			Tier:       "full_scan",
			Message:    fmt.Sprintf("Found ledger %q.", candidates[0].Ledger.Name),
		}
	}
	return e.multipleMatches(term, candidates, "full_scan")
}

// =============================================================================
// Shared Helpers
// =============================================================================

// multipleMatches builds a KindMultipleMatches result: the display slice is
// capped, the full ranked set is retained for the disambiguation protocol.
func (e *Engine) multipleMatches(term string, candidates []MatchCandidate, tier string) *Result {
	display := candidates
	if len(display) > e.weights.Limits.DisplayTop {
		display = display[:e.weights.Limits.DisplayTop]
	}
	return &Result{
		Kind:       KindMultipleMatches,
		SearchTerm: term,
		Candidates: display,
		Retained:   candidates,
		Tier:       tier,
		Message:    fmt.Sprintf("Found %d ledgers matching %q. Reply with a number to pick one.", len(display), term),
	}
}

// sortCandidates orders by score descending, preserving prior order on
// ties (stable). Prior order encodes strategy priority then discovery
// order, so ties never shuffle between runs.
func sortCandidates(candidates []MatchCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}

// dedupeByName keeps the first (highest-priority) candidate per distinct
// name, case-insensitively.
func dedupeByName(candidates []MatchCandidate) []MatchCandidate {
	seen := make(map[string]bool, len(candidates))
	kept := candidates[:0:0]
	for _, c := range candidates {
		key := strings.ToUpper(c.Ledger.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, c)
	}
	return kept
}

func distinctNames(ledgers []tally.Ledger) int {
	seen := make(map[string]bool, len(ledgers))
	for _, l := range ledgers {
		seen[strings.ToUpper(l.Name)] = true
	}
	return len(seen)
}

func distinctCandidateNames(candidates []MatchCandidate) int {
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		seen[strings.ToUpper(c.Ledger.Name)] = true
	}
	return len(seen)
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
