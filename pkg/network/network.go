// SPDX-License-Identifier: MPL-2.0

package network

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/composit/composit/internal/dag"
	"github.com/composit/composit/pkg/matcher"
	"github.com/composit/composit/pkg/model"
)

var (
	// ErrTooFewLevels is returned when fewer than two levels are supplied.
	ErrTooFewLevels = errors.New("a service match network needs at least two levels")
	// ErrDuplicateOperation is the sentinel error wrapped by DuplicateOperationError.
	ErrDuplicateOperation = errors.New("operation appears in more than one level")
)

type (
	// OpID identifies an operation inside one network. IDs are dense and
	// assigned in level order, so a lower level never has a higher ID.
	OpID int

	// Option configures New.
	Option func(*options)

	// Edge connects an operation to an operation in a later level. Matches lists
	// every (output, input) pair that links them.
	Edge[E comparable, T cmp.Ordered] struct {
		From    *model.Operation[E]
		To      *model.Operation[E]
		Matches []matcher.Match[E, T]
	}

	// DuplicateOperationError is returned when one operation is placed in two levels.
	DuplicateOperationError struct {
		Operation   string
		FirstLevel  int
		SecondLevel int
	}

	// Network is an immutable service match network. It is safe for concurrent reads.
	Network[E comparable, T cmp.Ordered] struct {
		ops     []*model.Operation[E]
		ids     map[*model.Operation[E]]OpID
		levels  [][]OpID
		levelOf []int
		graph   *dag.Graph[OpID]
		edges   map[edgeKey][]matcher.Match[E, T]
		covered []model.Set[E]
	}

	options struct {
		parallelism int
	}

	edgeKey struct {
		from OpID
		to   OpID
	}

	// incoming collects the edges computed for one target operation.
	incoming[E comparable, T cmp.Ordered] struct {
		from    []OpID
		matches [][]matcher.Match[E, T]
	}
)

// WithParallelism bounds the number of target operations whose incoming
// edges are computed concurrently. Values below one select GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// New builds a network from ordered levels, computing the match edges with fn.
// For every operation b in level j and every operation a in a level i < j,
// fn.PartialMatch(a.Outputs(), b.Inputs()) is evaluated and each covered
// input becomes part of the edge a -> b.
func New[E comparable, T cmp.Ordered](
	ctx context.Context,
	levels [][]*model.Operation[E],
	fn matcher.SetMatchFunction[E, T],
	opts ...Option,
) (*Network[E, T], error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.parallelism < 1 {
		o.parallelism = runtime.GOMAXPROCS(0)
	}

	if len(levels) < 2 {
		return nil, ErrTooFewLevels
	}

	n := &Network[E, T]{
		ids:    make(map[*model.Operation[E]]OpID),
		levels: make([][]OpID, len(levels)),
		graph:  dag.New[OpID](),
		edges:  make(map[edgeKey][]matcher.Match[E, T]),
	}
	for level, ops := range levels {
		n.levels[level] = make([]OpID, 0, len(ops))
		for _, op := range ops {
			if prev, ok := n.ids[op]; ok {
				return nil, &DuplicateOperationError{
					Operation:   op.Name(),
					FirstLevel:  n.levelOf[prev],
					SecondLevel: level,
				}
			}
			id := OpID(len(n.ops))
			n.ids[op] = id
			n.ops = append(n.ops, op)
			n.levelOf = append(n.levelOf, level)
			n.levels[level] = append(n.levels[level], id)
			n.graph.AddNode(id)
		}
	}

	found, err := n.computeIncoming(ctx, fn, o.parallelism)
	if err != nil {
		return nil, err
	}

	n.covered = make([]model.Set[E], len(n.ops))
	for to := range n.ops {
		covered := make(model.Set[E])
		in := found[to]
		for i, from := range in.from {
			key := edgeKey{from: from, to: OpID(to)}
			n.graph.AddEdge(from, OpID(to))
			n.edges[key] = in.matches[i]
			for _, m := range in.matches[i] {
				covered.Add(m.Target)
			}
		}
		n.covered[to] = covered
	}

	return n, nil
}

// computeIncoming evaluates the match function for every (earlier, target)
// pair. Targets are independent, so they run concurrently; each goroutine
// writes only its own slot of the returned slice.
func (n *Network[E, T]) computeIncoming(ctx context.Context, fn matcher.SetMatchFunction[E, T], parallelism int) ([]incoming[E, T], error) {
	found := make([]incoming[E, T], len(n.ops))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for to := range n.ops {
		if n.levelOf[to] == 0 {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			target := n.ops[to]
			inputs := target.Inputs()
			if inputs.IsEmpty() {
				return nil
			}
			var in incoming[E, T]
			// IDs below the first ID of the target's level belong to earlier levels.
			limit := n.levels[n.levelOf[to]][0]
			for from := OpID(0); from < limit; from++ {
				result := fn.PartialMatch(n.ops[from].Outputs(), inputs)
				if err := matcher.Validate(result, inputs); err != nil {
					return fmt.Errorf("matching %s -> %s: %w", n.ops[from].Name(), target.Name(), err)
				}
				if result.IsEmpty() {
					continue
				}
				in.from = append(in.from, from)
				in.matches = append(in.matches, result.Matches())
			}
			found[to] = in
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return found, nil
}

// NumberOfLevels returns the number of levels, Source and Sink included.
func (n *Network[E, T]) NumberOfLevels() int { return len(n.levels) }

// OperationsAtLevel returns the operations of level i in the order they were
// supplied, or nil when i is out of range.
func (n *Network[E, T]) OperationsAtLevel(i int) []*model.Operation[E] {
	if i < 0 || i >= len(n.levels) {
		return nil
	}
	return n.resolve(n.levels[i])
}

// LevelOf returns the level holding op.
func (n *Network[E, T]) LevelOf(op *model.Operation[E]) (int, bool) {
	id, ok := n.ids[op]
	if !ok {
		return 0, false
	}
	return n.levelOf[id], true
}

// ID returns the identifier of op.
func (n *Network[E, T]) ID(op *model.Operation[E]) (OpID, bool) {
	id, ok := n.ids[op]
	return id, ok
}

// Operation returns the operation with the given identifier, or nil.
func (n *Network[E, T]) Operation(id OpID) *model.Operation[E] {
	if id < 0 || int(id) >= len(n.ops) {
		return nil
	}
	return n.ops[id]
}

// Contains reports whether op is part of the network.
func (n *Network[E, T]) Contains(op *model.Operation[E]) bool {
	_, ok := n.ids[op]
	return ok
}

// Len returns the number of operations, Source and Sink included.
func (n *Network[E, T]) Len() int { return len(n.ops) }

// Operations returns every operation in level order.
func (n *Network[E, T]) Operations() []*model.Operation[E] {
	return append([]*model.Operation[E](nil), n.ops...)
}

// Source returns the single operation of the first level when it is a
// Source operation, or nil.
func (n *Network[E, T]) Source() *model.Operation[E] {
	return n.bracket(0, model.KindSource)
}

// Sink returns the single operation of the last level when it is a Sink
// operation, or nil.
func (n *Network[E, T]) Sink() *model.Operation[E] {
	return n.bracket(len(n.levels)-1, model.KindSink)
}

func (n *Network[E, T]) bracket(level int, kind model.Kind) *model.Operation[E] {
	ids := n.levels[level]
	if len(ids) != 1 || n.ops[ids[0]].Kind() != kind {
		return nil
	}
	return n.ops[ids[0]]
}

// OutgoingEdges returns the edges leaving op, ordered by target ID.
func (n *Network[E, T]) OutgoingEdges(op *model.Operation[E]) []Edge[E, T] {
	id, ok := n.ids[op]
	if !ok {
		return nil
	}
	var out []Edge[E, T]
	for _, to := range n.graph.Successors(id) {
		out = append(out, n.edge(id, to))
	}
	return out
}

// IncomingEdges returns the edges entering op, ordered by source ID.
func (n *Network[E, T]) IncomingEdges(op *model.Operation[E]) []Edge[E, T] {
	id, ok := n.ids[op]
	if !ok {
		return nil
	}
	var out []Edge[E, T]
	for _, from := range n.graph.Predecessors(id) {
		out = append(out, n.edge(from, id))
	}
	return out
}

// Edge returns the edge from -> to, if any.
func (n *Network[E, T]) Edge(from, to *model.Operation[E]) (Edge[E, T], bool) {
	fromID, ok1 := n.ids[from]
	toID, ok2 := n.ids[to]
	if !ok1 || !ok2 {
		return Edge[E, T]{}, false
	}
	if _, ok := n.edges[edgeKey{from: fromID, to: toID}]; !ok {
		return Edge[E, T]{}, false
	}
	return n.edge(fromID, toID), true
}

// Edges returns every edge, grouped by target in level order.
func (n *Network[E, T]) Edges() []Edge[E, T] {
	out := make([]Edge[E, T], 0, len(n.edges))
	for to := range n.ops {
		for _, from := range n.graph.Predecessors(OpID(to)) {
			out = append(out, n.edge(from, OpID(to)))
		}
	}
	return out
}

// NumberOfEdges returns the number of edges.
func (n *Network[E, T]) NumberOfEdges() int { return len(n.edges) }

// CoveredInputs returns the declared inputs of op matched by at least one
// incoming edge.
func (n *Network[E, T]) CoveredInputs(op *model.Operation[E]) model.Set[E] {
	id, ok := n.ids[op]
	if !ok {
		return nil
	}
	return n.covered[id].Clone()
}

// UnsatisfiedInputs returns the declared inputs of op that no incoming edge
// matches. For the Sink these are the requested outputs nothing produces.
func (n *Network[E, T]) UnsatisfiedInputs(op *model.Operation[E]) model.Set[E] {
	id, ok := n.ids[op]
	if !ok {
		return nil
	}
	return op.Inputs().Difference(n.covered[id])
}

// TopologicalOrder returns every operation in an order where each edge points
// forward. Operations with no ordering constraint keep level order.
func (n *Network[E, T]) TopologicalOrder() []*model.Operation[E] {
	ids, err := n.graph.TopologicalSort()
	if err != nil {
		// Edges only point to later levels, so the edge store cannot be cyclic.
		panic(fmt.Sprintf("network: %v", err))
	}
	return n.resolve(ids)
}

func (n *Network[E, T]) edge(from, to OpID) Edge[E, T] {
	matches := n.edges[edgeKey{from: from, to: to}]
	return Edge[E, T]{
		From:    n.ops[from],
		To:      n.ops[to],
		Matches: append([]matcher.Match[E, T](nil), matches...),
	}
}

func (n *Network[E, T]) resolve(ids []OpID) []*model.Operation[E] {
	out := make([]*model.Operation[E], len(ids))
	for i, id := range ids {
		out[i] = n.ops[id]
	}
	return out
}

// Error implements the error interface.
func (e *DuplicateOperationError) Error() string {
	return fmt.Sprintf("operation %q appears in level %d and level %d", e.Operation, e.FirstLevel, e.SecondLevel)
}

// Unwrap returns ErrDuplicateOperation for errors.Is() compatibility.
func (e *DuplicateOperationError) Unwrap() error { return ErrDuplicateOperation }
