// Copyright (C) 2025 Munim Labs (oss@muniminc.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"fmt"
	"math"
	"strings"

	"github.com/muniminc/munim/services/assistant/resolve"
	"github.com/muniminc/munim/services/assistant/tally"
)

// =============================================================================
// Balance Formatting
// =============================================================================

// FormatBalance renders a signed balance with Tally's sign convention:
// positive is a debit ("Dr"), negative a credit ("Cr"), zero is neither.
// Amounts use Indian digit grouping (₹1,23,456.78).
func FormatBalance(amount float64) string {
	if amount == 0 {
		return "₹0.00"
	}
	side := "Dr"
	if amount < 0 {
		side = "Cr"
	}
	return fmt.Sprintf("₹%s %s", indianGroup(math.Abs(amount)), side)
}

// indianGroup formats a non-negative amount with two decimals and Indian
// grouping: the last three integer digits form one group, everything
// before that groups in twos.
func indianGroup(amount float64) string {
	whole := fmt.Sprintf("%.2f", amount)
	dot := strings.Index(whole, ".")
	integer, fraction := whole[:dot], whole[dot:]

	if len(integer) <= 3 {
		return integer + fraction
	}

	head, tail := integer[:len(integer)-3], integer[len(integer)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(groups, ",") + "," + tail + fraction
}

// =============================================================================
// Response Building
// =============================================================================

// msgSourceUnavailable is the guidance for an unreachable bridge. It must
// read as a plumbing problem, never as "ledger not found".
const msgSourceUnavailable = "I can't reach Tally right now. Please check that Tally is running and the bridge is connected, then try again."

// ledgerView converts a resolved ledger into its wire shape.
func ledgerView(ledger tally.Ledger) *LedgerView {
	return &LedgerView{
		Name:    ledger.Name,
		Parent:  ledger.Parent,
		Balance: FormatBalance(ledger.ClosingBalance),
	}
}

// formatResult converts an engine outcome into the response the user sees.
func formatResult(result *resolve.Result) *QueryResponse {
	switch result.Kind {
	case resolve.KindExactMatch:
		return &QueryResponse{
			Kind:   string(result.Kind),
			Ledger: ledgerView(result.Ledger),
			Message: fmt.Sprintf("%s has a closing balance of %s.",
				result.Ledger.Name, FormatBalance(result.Ledger.ClosingBalance)),
		}

	case resolve.KindMultipleMatches:
		views := make([]CandidateView, 0, len(result.Candidates))
		var list strings.Builder
		for i, candidate := range result.Candidates {
			views = append(views, CandidateView{
				Index:  i + 1,
				Name:   candidate.Ledger.Name,
				Parent: candidate.Ledger.Parent,
			})
			fmt.Fprintf(&list, "\n%d. %s", i+1, candidate.Ledger.Name)
		}
		return &QueryResponse{
			Kind:       string(result.Kind),
			Candidates: views,
			Message: fmt.Sprintf("I found %d ledgers matching %q. Reply with a number or the exact name:%s",
				len(views), result.SearchTerm, list.String()),
		}

	case resolve.KindSuggestions:
		return &QueryResponse{
			Kind:        string(result.Kind),
			Suggestions: result.Suggestions,
			Message: fmt.Sprintf("I couldn't find a ledger matching %q. Did you mean:\n%s",
				result.SearchTerm, strings.Join(result.Suggestions, "\n")),
		}

	default:
		message := result.Message
		if message == "" {
			message = fmt.Sprintf("I couldn't find any ledger matching %q. Try the exact name as it appears in Tally.", result.SearchTerm)
		}
		return &QueryResponse{Kind: string(resolve.KindNoMatch), Message: message}
	}
}

// clarifyResponse re-presents a pending candidate list after a selection
// attempt that did not land. The pending state is untouched.
func clarifyResponse(candidateCount int) *QueryResponse {
	return &QueryResponse{
		Kind:    KindClarify,
		Message: fmt.Sprintf("That didn't match the list. Please reply with a number from 1 to %d, or the exact ledger name.", candidateCount),
	}
}
