// SPDX-License-Identifier: MPL-2.0

// Package index defines the operation index consumed by forward discovery and
// provides in-memory reference implementations.
//
// Discovery asks the index, once per round, for every operation consuming at
// least one of the concepts that became available in the previous round. The
// index decides what "consuming" means: Memory uses plain equality between
// concepts and declared inputs, MatchBased widens the query through a match
// function so that taxonomic or similarity-based inputs are found too.
package index

import (
	"cmp"
	"context"
	"errors"
	"fmt"

	"github.com/composit/composit/pkg/matcher"
	"github.com/composit/composit/pkg/model"
)

// ErrDuplicateOperation is returned when the same *Operation is added twice.
var ErrDuplicateOperation = errors.New("operation already indexed")

type (
	// OperationIndex finds the operations consuming at least one of the given
	// concepts. It is called repeatedly with growing, overlapping concept sets
	// and gives no ordering guarantee on its result.
	OperationIndex[E comparable] interface {
		FindOperationsConsumingSome(ctx context.Context, concepts model.Set[E]) ([]*model.Operation[E], error)
	}

	// Func adapts a plain function to OperationIndex.
	Func[E comparable] func(ctx context.Context, concepts model.Set[E]) ([]*model.Operation[E], error)

	// Memory is an inverted index from input concept to the operations that
	// declare it. It is not safe for concurrent Add; lookups may run concurrently
	// once population is done.
	Memory[E comparable] struct {
		operations []*model.Operation[E]
		known      map[*model.Operation[E]]int
		consumers  map[E][]*model.Operation[E]
	}

	// MatchBased resolves queries through a match function: a concept c selects
	// every operation with a declared input that c covers.
	MatchBased[E comparable, T cmp.Ordered] struct {
		memory  *Memory[E]
		matcher matcher.SetMatchFunction[E, T]
		inputs  model.Set[E]
	}
)

// FindOperationsConsumingSome calls f.
func (f Func[E]) FindOperationsConsumingSome(ctx context.Context, concepts model.Set[E]) ([]*model.Operation[E], error) {
	return f(ctx, concepts)
}

// NewMemory returns an index holding ops.
func NewMemory[E comparable](ops ...*model.Operation[E]) (*Memory[E], error) {
	m := &Memory[E]{
		known:     make(map[*model.Operation[E]]int),
		consumers: make(map[E][]*model.Operation[E]),
	}
	for _, op := range ops {
		if err := m.Add(op); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add indexes op under each of its declared inputs.
func (m *Memory[E]) Add(op *model.Operation[E]) error {
	if _, ok := m.known[op]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOperation, op.Name())
	}
	m.known[op] = len(m.operations)
	m.operations = append(m.operations, op)
	for in := range op.Inputs() {
		m.consumers[in] = append(m.consumers[in], op)
	}
	return nil
}

// Operations returns every indexed operation in insertion order.
func (m *Memory[E]) Operations() []*model.Operation[E] {
	return append([]*model.Operation[E](nil), m.operations...)
}

// Len returns the number of indexed operations.
func (m *Memory[E]) Len() int { return len(m.operations) }

// Inputs returns the union of every declared input in the index.
func (m *Memory[E]) Inputs() model.Set[E] { return model.Inputs(m.operations) }

// FindOperationsConsumingSome returns, in insertion order and without
// duplicates, the operations declaring one of concepts as input.
func (m *Memory[E]) FindOperationsConsumingSome(ctx context.Context, concepts model.Set[E]) ([]*model.Operation[E], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.lookup(concepts), nil
}

func (m *Memory[E]) lookup(concepts model.Set[E]) []*model.Operation[E] {
	hit := make([]bool, len(m.operations))
	found := 0
	for c := range concepts {
		for _, op := range m.consumers[c] {
			if idx := m.known[op]; !hit[idx] {
				hit[idx] = true
				found++
			}
		}
	}
	if found == 0 {
		return nil
	}
	out := make([]*model.Operation[E], 0, found)
	for i, op := range m.operations {
		if hit[i] {
			out = append(out, op)
		}
	}
	return out
}

// NewMatchBased wraps memory so that queries are expanded through fn.
// The set of declared inputs is captured at construction; operations added to
// memory afterwards are only found through inputs that were already known.
func NewMatchBased[E comparable, T cmp.Ordered](memory *Memory[E], fn matcher.SetMatchFunction[E, T]) *MatchBased[E, T] {
	return &MatchBased[E, T]{memory: memory, matcher: fn, inputs: memory.Inputs()}
}

// FindOperationsConsumingSome returns the operations with at least one input
// covered by concepts according to the match function.
func (m *MatchBased[E, T]) FindOperationsConsumingSome(ctx context.Context, concepts model.Set[E]) ([]*model.Operation[E], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if concepts.IsEmpty() {
		return nil, nil
	}
	result := m.matcher.PartialMatch(concepts, m.inputs)
	if err := matcher.Validate(result, m.inputs); err != nil {
		return nil, err
	}
	return m.memory.lookup(result.TargetElements()), nil
}
