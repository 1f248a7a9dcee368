// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"cmp"
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/composit/composit/pkg/matcher"
	"github.com/composit/composit/pkg/model"
)

type (
	// session is the mutable state of one Search call. Only the goroutine
	// running Search writes to it; candidate evaluation reads it while no
	// writer is active.
	session[E comparable, T cmp.Ordered] struct {
		d *ForwardDiscoverer[E, T]

		available        model.Set[E]
		newOutputs       model.Set[E]
		unmatchedOutputs model.Set[E]
		checkGoals       bool

		used            map[*model.Operation[E]]bool
		unmatchedInputs map[*model.Operation[E]]model.Set[E]
		seen            []*model.Operation[E]
		partial         []admission[E]

		levels [][]*model.Operation[E]
		round  int
	}

	// decision is the outcome of evaluating one candidate in one round.
	decision[E comparable] struct {
		op        *model.Operation[E]
		skip      bool
		remaining model.Set[E]
		matched   bool
	}

	// admission records a relaxed placement made while inputs were missing.
	admission[E comparable] struct {
		op      *model.Operation[E]
		missing model.Set[E]
	}
)

func newSession[E comparable, T cmp.Ordered](d *ForwardDiscoverer[E, T], req model.Request[E]) *session[E, T] {
	return &session[E, T]{
		d:                d,
		available:        req.Inputs.Clone(),
		newOutputs:       req.Inputs.Clone(),
		unmatchedOutputs: req.Outputs.Clone(),
		checkGoals:       !req.Outputs.IsEmpty(),
		used:             make(map[*model.Operation[E]]bool),
		unmatchedInputs:  make(map[*model.Operation[E]]model.Set[E]),
	}
}

// step runs one round and reports whether the search has converged.
func (s *session[E, T]) step(ctx context.Context) (bool, error) {
	start := time.Now()
	logger := s.d.opts.logger

	fetched, err := s.d.index.FindOperationsConsumingSome(ctx, s.newOutputs)
	if err != nil {
		return false, &IndexError{Round: s.round, Err: err}
	}
	candidates := dedupe(fetched)
	logger.Debug("potential candidates selected", "level", s.round, "candidates", len(candidates), "elapsed", time.Since(start))

	decisions, err := s.evaluate(candidates)
	if err != nil {
		return false, err
	}
	kept := s.commit(decisions)
	logger.Debug("operations selected for level", "level", s.round, "selected", len(kept), "elapsed", time.Since(start))

	nextOutputs := model.Outputs(kept)
	if s.checkGoals && !s.unmatchedOutputs.IsEmpty() {
		reached := s.newOutputs.Union(nextOutputs)
		result := s.d.matcher.PartialMatch(reached, s.unmatchedOutputs)
		if err := matcher.Validate(result, s.unmatchedOutputs); err != nil {
			return false, fmt.Errorf("round %d: matching requested outputs: %w", s.round, err)
		}
		s.unmatchedOutputs = s.unmatchedOutputs.Difference(result.TargetElements())
	}

	s.available.AddAll(s.newOutputs)
	s.newOutputs = nextOutputs

	if len(kept) > 0 {
		s.levels = append(s.levels, kept)
	}
	logger.Debug("frontier advanced",
		"level", s.round,
		"available", s.available.Len(),
		"newOutputs", s.newOutputs.Len(),
		"unmatchedOutputs", s.unmatchedOutputs.Len(),
	)
	s.round++

	if s.checkGoals {
		return len(kept) == 0 || s.unmatchedOutputs.IsEmpty(), nil
	}
	return len(kept) == 0, nil
}

// evaluate matches every candidate against its current record. Candidates are
// independent and each appears once per round, so they are evaluated
// concurrently; the session is only read here. Operations already placed are
// skipped once their record is empty; relaxed admissions keep being matched so
// their record reflects the inputs that arrived later. Mid-round cancellation
// is not supported: Search checks the context between rounds.
func (s *session[E, T]) evaluate(candidates []*model.Operation[E]) ([]decision[E], error) {
	decisions := make([]decision[E], len(candidates))

	var g errgroup.Group
	g.SetLimit(s.d.opts.parallelism)
	for i, op := range candidates {
		g.Go(func() error {
			record, ok := s.unmatchedInputs[op]
			if !ok {
				record = op.Inputs()
			}
			if s.used[op] && record.IsEmpty() {
				decisions[i] = decision[E]{op: op, skip: true}
				return nil
			}
			result := s.d.matcher.PartialMatch(s.newOutputs, record)
			if err := matcher.Validate(result, record); err != nil {
				return fmt.Errorf("round %d: candidate %s: %w", s.round, op.Name(), err)
			}
			matched := result.TargetElements()
			decisions[i] = decision[E]{
				op:        op,
				remaining: record.Difference(matched),
				matched:   !matched.IsEmpty(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}

// commit is the round barrier: it applies the decisions in candidate order
// and returns the operations placed in this round's level. An operation is
// placed at most once; later decisions for it only shrink its record.
func (s *session[E, T]) commit(decisions []decision[E]) []*model.Operation[E] {
	var kept []*model.Operation[E]
	for _, dec := range decisions {
		if dec.skip {
			continue
		}
		if _, ok := s.unmatchedInputs[dec.op]; !ok {
			s.seen = append(s.seen, dec.op)
		}
		s.unmatchedInputs[dec.op] = dec.remaining
		if s.used[dec.op] {
			continue
		}

		invokable := dec.remaining.IsEmpty()
		if s.d.opts.relaxed {
			invokable = dec.matched
		}
		if !invokable {
			continue
		}
		s.used[dec.op] = true
		kept = append(kept, dec.op)
		if !dec.remaining.IsEmpty() {
			s.partial = append(s.partial, admission[E]{op: dec.op, missing: dec.remaining})
		}
	}
	return kept
}

// dedupe collapses repeated pointers, keeping first-seen order.
func dedupe[E comparable](ops []*model.Operation[E]) []*model.Operation[E] {
	seen := make(map[*model.Operation[E]]bool, len(ops))
	out := make([]*model.Operation[E], 0, len(ops))
	for _, op := range ops {
		if seen[op] {
			continue
		}
		seen[op] = true
		out = append(out, op)
	}
	return out
}
