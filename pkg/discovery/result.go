// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/composit/composit/pkg/model"
	"github.com/composit/composit/pkg/network"
)

const (
	// SeverityInfo marks a diagnostic that only describes the outcome.
	SeverityInfo Severity = "info"
	// SeverityWarning marks a diagnostic the caller probably wants to act on.
	SeverityWarning Severity = "warning"

	// CodeEmptyInputs is reported when the request has no available inputs.
	CodeEmptyInputs = "empty_inputs"
	// CodeGoalUnreachable is reported for each requested output left unmatched.
	CodeGoalUnreachable = "goal_unreachable"
	// CodePartiallyMatched is reported for each operation admitted in relaxed
	// mode while some of its inputs were still unmatched.
	CodePartiallyMatched = "partially_matched"
	// CodeOperationBlocked is reported for each candidate never invoked.
	CodeOperationBlocked = "operation_blocked"
)

type (
	// Severity represents diagnostic severity.
	Severity string

	// Diagnostic is a structured, non-fatal observation about a search that is
	// returned to the caller rather than logged.
	Diagnostic struct {
		// Severity is the diagnostic level.
		Severity Severity
		// Code is a machine-readable identifier (e.g., "goal_unreachable").
		Code string
		// Message is the human-readable description.
		Message string
		// Operation names the operation concerned (optional).
		Operation string
	}

	// Result is the outcome of one Search.
	Result[E comparable, T cmp.Ordered] struct {
		// Network is the service match network.
		Network *network.Network[E, T]
		// UnmatchedInputs maps every operation ever returned as a candidate to
		// the inputs no discovered concept matched by the end of the search.
		// Invoked operations map to an empty set in strict mode; relaxed
		// admissions keep shrinking after placement as later rounds supply
		// their missing inputs. Callers must treat it as read-only.
		UnmatchedInputs map[*model.Operation[E]]model.Set[E]
		// UnmatchedOutputs holds the requested outputs nothing matched.
		UnmatchedOutputs model.Set[E]
		// Rounds is the number of discovery rounds executed.
		Rounds int
		// Diagnostics lists non-fatal observations about the search.
		Diagnostics []Diagnostic

		seen []*model.Operation[E]
	}
)

// Satisfied reports whether every requested output was matched.
func (r *Result[E, T]) Satisfied() bool { return r.UnmatchedOutputs.IsEmpty() }

// Candidates returns every operation considered during the search, in the
// order it was first returned by the index.
func (r *Result[E, T]) Candidates() []*model.Operation[E] {
	return append([]*model.Operation[E](nil), r.seen...)
}

// Blocked returns the candidates that were never placed in the network,
// in first-seen order. UnmatchedInputs tells which inputs blocked each one.
func (r *Result[E, T]) Blocked() []*model.Operation[E] {
	var out []*model.Operation[E]
	for _, op := range r.seen {
		if !r.Network.Contains(op) {
			out = append(out, op)
		}
	}
	return out
}

func (s *session[E, T]) result(net *network.Network[E, T]) *Result[E, T] {
	r := &Result[E, T]{
		Network:          net,
		UnmatchedInputs:  s.unmatchedInputs,
		UnmatchedOutputs: s.unmatchedOutputs,
		Rounds:           s.round,
		seen:             s.seen,
	}

	if net.Source().Outputs().IsEmpty() {
		r.Diagnostics = append(r.Diagnostics, Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeEmptyInputs,
			Message:  "the request has no available inputs; nothing can be invoked",
		})
	}
	for _, c := range formatConcepts(s.unmatchedOutputs) {
		r.Diagnostics = append(r.Diagnostics, Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeGoalUnreachable,
			Message:  fmt.Sprintf("requested output %s is not matched by any discovered operation", c),
		})
	}
	for _, a := range s.partial {
		r.Diagnostics = append(r.Diagnostics, Diagnostic{
			Severity:  SeverityInfo,
			Code:      CodePartiallyMatched,
			Message:   fmt.Sprintf("admitted with unmatched inputs %v", formatConcepts(a.missing)),
			Operation: a.op.Name(),
		})
	}
	for _, op := range r.Blocked() {
		r.Diagnostics = append(r.Diagnostics, Diagnostic{
			Severity:  SeverityInfo,
			Code:      CodeOperationBlocked,
			Message:   fmt.Sprintf("never invokable; unmatched inputs %v", formatConcepts(s.unmatchedInputs[op])),
			Operation: op.Name(),
		})
	}
	return r
}

// formatConcepts renders the concepts of s in sorted order so diagnostics do
// not depend on map iteration.
func formatConcepts[E comparable](s model.Set[E]) []string {
	out := make([]string, 0, s.Len())
	for _, c := range s.Items() {
		out = append(out, fmt.Sprint(c))
	}
	slices.Sort(out)
	return out
}
