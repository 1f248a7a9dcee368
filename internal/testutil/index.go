// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"sync"

	"github.com/composit/composit/pkg/index"
	"github.com/composit/composit/pkg/model"
)

// RecordingIndex wraps an operation index, records every query and can be
// told to fail on a given call.
type RecordingIndex[E comparable] struct {
	Inner index.OperationIndex[E]
	// FailOnCall makes the n-th call (1-based) return FailWith. Zero disables it.
	FailOnCall int
	FailWith   error
	// Duplicate makes every result contain each operation twice.
	Duplicate bool

	mu      sync.Mutex
	queries []model.Set[E]
}

// FindOperationsConsumingSome records concepts and delegates to Inner.
func (r *RecordingIndex[E]) FindOperationsConsumingSome(ctx context.Context, concepts model.Set[E]) ([]*model.Operation[E], error) {
	r.mu.Lock()
	r.queries = append(r.queries, concepts.Clone())
	call := len(r.queries)
	r.mu.Unlock()

	if r.FailOnCall > 0 && call == r.FailOnCall {
		return nil, r.FailWith
	}
	ops, err := r.Inner.FindOperationsConsumingSome(ctx, concepts)
	if err != nil || !r.Duplicate {
		return ops, err
	}
	return append(ops, ops...), nil
}

// Queries returns copies of the concept sets queried so far.
func (r *RecordingIndex[E]) Queries() []model.Set[E] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Set[E](nil), r.queries...)
}
