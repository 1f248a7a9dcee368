// SPDX-License-Identifier: MPL-2.0

package matcher

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/composit/composit/pkg/model"
)

// ErrContractViolation is the sentinel error wrapped by ContractViolationError.
var ErrContractViolation = errors.New("match function contract violation")

type (
	// SetMatchFunction computes a partial match between a source and a target set.
	// The matched target elements of the result must be a subset of target.
	SetMatchFunction[E comparable, T cmp.Ordered] interface {
		PartialMatch(source, target model.Set[E]) *Result[E, T]
	}

	// MatchFunction decides whether a single source element covers a single
	// target element and with what score.
	MatchFunction[E comparable, T cmp.Ordered] interface {
		Match(source, target E) (T, bool)
	}

	// Func adapts a plain function to MatchFunction.
	Func[E comparable, T cmp.Ordered] func(source, target E) (T, bool)

	// SetFunc adapts a plain function to SetMatchFunction.
	SetFunc[E comparable, T cmp.Ordered] func(source, target model.Set[E]) *Result[E, T]

	// Match is one covered (source, target) pair.
	Match[E comparable, T cmp.Ordered] struct {
		Source E
		Target E
		Score  T
	}

	// Result holds the pairs found by one PartialMatch call, grouped by target.
	// A nil *Result is a valid empty result.
	Result[E comparable, T cmp.Ordered] struct {
		byTarget map[E][]Match[E, T]
	}

	// ContractViolationError is returned when a match function reports matched
	// targets that were not part of the queried target set.
	ContractViolationError[E comparable] struct {
		Unexpected []E
	}

	setMatcher[E comparable, T cmp.Ordered] struct {
		fn MatchFunction[E, T]
	}

	rescored[E comparable, T, U cmp.Ordered] struct {
		fn   SetMatchFunction[E, T]
		conv func(T) U
	}
)

// Match calls f.
func (f Func[E, T]) Match(source, target E) (T, bool) { return f(source, target) }

// PartialMatch calls f.
func (f SetFunc[E, T]) PartialMatch(source, target model.Set[E]) *Result[E, T] {
	return f(source, target)
}

// NewResult returns an empty result.
func NewResult[E comparable, T cmp.Ordered]() *Result[E, T] {
	return &Result[E, T]{byTarget: make(map[E][]Match[E, T])}
}

// Add records that source covers target with score.
func (r *Result[E, T]) Add(source, target E, score T) {
	r.byTarget[target] = append(r.byTarget[target], Match[E, T]{Source: source, Target: target, Score: score})
}

// IsEmpty reports whether no target was matched.
func (r *Result[E, T]) IsEmpty() bool { return r == nil || len(r.byTarget) == 0 }

// TargetElements returns the matched subset of the target set.
func (r *Result[E, T]) TargetElements() model.Set[E] {
	out := make(model.Set[E])
	if r == nil {
		return out
	}
	for target := range r.byTarget {
		out.Add(target)
	}
	return out
}

// SourceElements returns the source elements that covered at least one target.
func (r *Result[E, T]) SourceElements() model.Set[E] {
	out := make(model.Set[E])
	if r == nil {
		return out
	}
	for _, matches := range r.byTarget {
		for _, m := range matches {
			out.Add(m.Source)
		}
	}
	return out
}

// MatchesFor returns the pairs covering target.
func (r *Result[E, T]) MatchesFor(target E) []Match[E, T] {
	if r == nil {
		return nil
	}
	return slices.Clone(r.byTarget[target])
}

// Matches returns every recorded pair in unspecified order.
func (r *Result[E, T]) Matches() []Match[E, T] {
	if r == nil {
		return nil
	}
	var out []Match[E, T]
	for _, matches := range r.byTarget {
		out = append(out, matches...)
	}
	return out
}

// Best returns the highest scored pair covering target.
func (r *Result[E, T]) Best(target E) (Match[E, T], bool) {
	var best Match[E, T]
	if r == nil {
		return best, false
	}
	matches := r.byTarget[target]
	if len(matches) == 0 {
		return best, false
	}
	best = matches[0]
	for _, m := range matches[1:] {
		if m.Score > best.Score {
			best = m
		}
	}
	return best, true
}

// SetMatcher lifts an element-level match function into a set match function.
// Every target element is checked against every source element.
func SetMatcher[E comparable, T cmp.Ordered](fn MatchFunction[E, T]) SetMatchFunction[E, T] {
	return setMatcher[E, T]{fn: fn}
}

func (m setMatcher[E, T]) PartialMatch(source, target model.Set[E]) *Result[E, T] {
	result := NewResult[E, T]()
	for t := range target {
		for s := range source {
			if score, ok := m.fn.Match(s, t); ok {
				result.Add(s, t, score)
			}
		}
	}
	return result
}

// Rescore converts the scores produced by fn with conv.
func Rescore[E comparable, T, U cmp.Ordered](fn SetMatchFunction[E, T], conv func(T) U) SetMatchFunction[E, U] {
	return rescored[E, T, U]{fn: fn, conv: conv}
}

func (r rescored[E, T, U]) PartialMatch(source, target model.Set[E]) *Result[E, U] {
	out := NewResult[E, U]()
	for _, m := range r.fn.PartialMatch(source, target).Matches() {
		out.Add(m.Source, m.Target, r.conv(m.Score))
	}
	return out
}

// Validate checks that every matched target of result belongs to target.
func Validate[E comparable, T cmp.Ordered](result *Result[E, T], target model.Set[E]) error {
	if result == nil {
		return nil
	}
	var unexpected []E
	for t := range result.byTarget {
		if !target.Contains(t) {
			unexpected = append(unexpected, t)
		}
	}
	if len(unexpected) > 0 {
		return &ContractViolationError[E]{Unexpected: unexpected}
	}
	return nil
}

// Error implements the error interface.
func (e *ContractViolationError[E]) Error() string {
	return fmt.Sprintf("match function contract violation: matched targets %v are not in the queried target set", e.Unexpected)
}

// Unwrap returns ErrContractViolation for errors.Is() compatibility.
func (e *ContractViolationError[E]) Unwrap() error { return ErrContractViolation }
