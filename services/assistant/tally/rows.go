// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tally defines the boundary to the external Tally query engine:
// the LedgerDataSource interface, the row-alias normalization that maps
// the engine's unpredictable column casings onto the canonical Ledger
// shape, and the error taxonomy the resolution pipeline depends on.
package tally

import (
	"strconv"
	"strings"
)

// =============================================================================
// Canonical Ledger Shape
// =============================================================================

// Ledger is a read-only snapshot of one financial account record.
//
// Description:
//
//	Fetched wholesale from the external query engine per search. Names are
//	NOT unique; duplicate rows must be tolerated by callers, never
//	deduplicated by identity. The core never creates or mutates ledgers.
type Ledger struct {
	// Name is the canonical display name, e.g. "A.A.MALLA & CO.".
	Name string `json:"name"`

	// Parent is the account group name, e.g. "Sundry Debtors".
	Parent string `json:"parent"`

	// ClosingBalance is the net signed amount. Positive = debit,
	// negative = credit.
	ClosingBalance float64 `json:"closing_balance"`
}

// Row is one raw result row from the query engine. Column keys vary by
// engine version and query shape ("name", "$Name", "NAME", ...), so rows
// are kept dynamic until LedgerFromRow normalizes them.
type Row map[string]any

// Field alias sets, checked in order. The engine has been observed to emit
// all of these casings depending on whether the column was selected
// explicitly, via $-prefix TDL syntax, or via SELECT *.
var (
	nameAliases    = []string{"name", "$Name", "Name", "NAME", "ledgername", "LedgerName"}
	parentAliases  = []string{"parent", "$Parent", "Parent", "PARENT", "group", "Group"}
	balanceAliases = []string{"closingBalance", "$ClosingBalance", "ClosingBalance", "closing_balance", "CLOSINGBALANCE", "balance", "Balance"}
)

// LedgerFromRow maps a raw engine row onto the canonical Ledger shape.
//
// Description:
//
//	Resolves each canonical field through its known alias set. This is the
//	ONLY place alias handling happens; call sites work with Ledger and never
//	inspect raw rows. A row with no resolvable name yields ok=false and must
//	be skipped by the caller.
//
// Inputs:
//
//	row - One raw result row. May contain any subset of known aliases.
//
// Outputs:
//
//	Ledger - The normalized record. Zero-valued fields where aliases missed.
//	bool   - False if no name alias resolved to a non-empty string.
func LedgerFromRow(row Row) (Ledger, bool) {
	name := stringField(row, nameAliases)
	if name == "" {
		return Ledger{}, false
	}
	return Ledger{
		Name:           name,
		Parent:         stringField(row, parentAliases),
		ClosingBalance: numberField(row, balanceAliases),
	}, true
}

// LedgersFromRows normalizes a result set, dropping unmappable rows.
func LedgersFromRows(rows []Row) []Ledger {
	ledgers := make([]Ledger, 0, len(rows))
	for _, row := range rows {
		if ledger, ok := LedgerFromRow(row); ok {
			ledgers = append(ledgers, ledger)
		}
	}
	return ledgers
}

// stringField returns the first alias present with a non-empty string value.
func stringField(row Row, aliases []string) string {
	for _, key := range aliases {
		if v, ok := row[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// numberField returns the first alias present that parses as a number.
// The engine emits balances as float64, json.Number-style strings, or
// strings with trailing "Dr"/"Cr" markers depending on the report source.
func numberField(row Row, aliases []string) float64 {
	for _, key := range aliases {
		v, ok := row[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		case string:
			if parsed, ok := parseBalanceString(n); ok {
				return parsed
			}
		}
	}
	return 0
}

// parseBalanceString parses "12345.67", "12345.67 Dr" and "12345.67 Cr".
// The Cr marker flips the sign (credit = negative by convention).
func parseBalanceString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	sign := 1.0
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "DR"):
		s = strings.TrimSpace(s[:len(s)-2])
	case strings.HasSuffix(upper, "CR"):
		sign = -1.0
		s = strings.TrimSpace(s[:len(s)-2])
	}
	s = strings.ReplaceAll(s, ",", "")
	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return sign * parsed, true
}
