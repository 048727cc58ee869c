// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tally

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// LedgerDataSource Interface
// =============================================================================

// LedgerDataSource executes SQL-style queries against the external Tally
// engine.
//
// Description:
//
//	The engine supports case-insensitive equality, case-insensitive
//	contains/starts-with pattern queries, and unfiltered full-table scans —
//	but pattern-query correctness is NOT guaranteed (LIKE/wildcard handling
//	fails unpredictably on some installations). Callers must treat a
//	pattern-query miss as inconclusive and keep a client-side full-scan
//	fallback, which is exactly what the resolution engine's tier 4 does.
//
// Thread Safety: Implementations must be safe for concurrent use.
type LedgerDataSource interface {
	// Query runs one SQL statement and returns raw rows.
	//
	// Error contract:
	//   - ErrSourceUnavailable (wrapped): no live connection. The caller
	//     surfaces reconnect guidance and stops.
	//   - ErrQueryTimeout (wrapped): this query timed out. The connection is
	//     presumed still alive; the caller skips this result and continues.
	//   - Any other error: the individual query failed; recoverable.
	Query(ctx context.Context, sql string) ([]Row, error)
}

// =============================================================================
// Error Taxonomy
// =============================================================================

// Sentinel errors for the data-source boundary. The resolution pipeline
// branches on these with errors.Is, so implementations must wrap them
// rather than invent parallel types.
var (
	// ErrSourceUnavailable means there is no live connection to Tally.
	// Surfaced to the user as reconnect guidance; never retried internally.
	ErrSourceUnavailable = errors.New("tally data source unavailable")

	// ErrQueryTimeout means one query exceeded its deadline. The connection
	// is NOT invalidated; only connection-level errors tear down state.
	ErrQueryTimeout = errors.New("tally query timed out")
)

// SourceError carries an error code alongside the underlying cause, for
// logging and for distinguishing retryable conditions at call sites that
// need more than the sentinel check.
type SourceError struct {
	// Code is a stable machine-readable identifier, e.g. "CONNECTION_CLOSED".
	Code string

	// Retryable reports whether the same query may succeed if reissued.
	Retryable bool

	// Err is the underlying cause. Never nil.
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("tally source [%s]: %v", e.Code, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError wraps err with a code and retryability flag.
func NewSourceError(code string, retryable bool, err error) *SourceError {
	return &SourceError{Code: code, Retryable: retryable, Err: err}
}

// IsUnavailable reports whether err indicates a dead connection.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// IsTimeout reports whether err indicates a per-query timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrQueryTimeout)
}
