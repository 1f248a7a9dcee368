// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/composit/composit/pkg/index"
	"github.com/composit/composit/pkg/matcher"
	"github.com/composit/composit/pkg/model"
	"github.com/composit/composit/pkg/network"
)

// ErrIndex is the sentinel error wrapped by IndexError.
var ErrIndex = errors.New("operation index failure")

type (
	// ForwardDiscoverer builds service match networks by forward search.
	// It holds no per-search state, so concurrent Search calls are independent.
	ForwardDiscoverer[E comparable, T cmp.Ordered] struct {
		index   index.OperationIndex[E]
		matcher matcher.SetMatchFunction[E, T]
		opts    options
	}

	// Option configures a ForwardDiscoverer.
	Option func(*options)

	// IndexError reports a failure of the operation index. The search is
	// aborted and no network is returned.
	IndexError struct {
		Round int
		Err   error
	}

	options struct {
		relaxed     bool
		parallelism int
		logger      *slog.Logger
	}
)

// WithRelaxedMatch admits an operation as soon as any of its inputs is
// matched instead of requiring all of them.
func WithRelaxedMatch(relaxed bool) Option {
	return func(o *options) {
		o.relaxed = relaxed
	}
}

// WithParallelism bounds the number of candidates evaluated concurrently in a
// round and of network edges computed concurrently. Values below one select
// GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithLogger sets the logger used for round and summary messages.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a forward discoverer querying idx and matching with fn.
func New[E comparable, T cmp.Ordered](idx index.OperationIndex[E], fn matcher.SetMatchFunction[E, T], opts ...Option) *ForwardDiscoverer[E, T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.parallelism < 1 {
		o.parallelism = runtime.GOMAXPROCS(0)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &ForwardDiscoverer[E, T]{index: idx, matcher: fn, opts: o}
}

// RelaxedMatch reports whether relaxed invokability is enabled.
func (d *ForwardDiscoverer[E, T]) RelaxedMatch() bool { return d.opts.relaxed }

// Search runs forward discovery for req and returns the resulting network
// together with the unmatched-input record. Cancellation is checked between
// rounds. Index failures and match function contract violations abort the
// search.
func (d *ForwardDiscoverer[E, T]) Search(ctx context.Context, req model.Request[E]) (*Result[E, T], error) {
	start := time.Now()
	s := newSession(d, req)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("discovery canceled before round %d: %w", s.round, err)
		}
		stop, err := s.step(ctx)
		if err != nil {
			return nil, err
		}
		if stop {
			break
		}
	}

	levels := make([][]*model.Operation[E], 0, len(s.levels)+2)
	levels = append(levels, []*model.Operation[E]{model.NewSource(req.Inputs)})
	levels = append(levels, s.levels...)
	levels = append(levels, []*model.Operation[E]{model.NewSink(req.Outputs)})

	networkStart := time.Now()
	net, err := network.New(ctx, levels, d.matcher, network.WithParallelism(d.opts.parallelism))
	if err != nil {
		return nil, fmt.Errorf("building service match network: %w", err)
	}
	d.opts.logger.Debug("service match network computed", "elapsed", time.Since(networkStart))

	result := s.result(net)
	d.opts.logger.Info("forward discovery done",
		"levels", net.NumberOfLevels(),
		"operations", net.Len(),
		"edges", net.NumberOfEdges(),
		"rounds", result.Rounds,
		"unmatchedOutputs", result.UnmatchedOutputs.Len(),
		"elapsed", time.Since(start),
	)
	return result, nil
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	return fmt.Sprintf("operation index failed in round %d: %v", e.Round, e.Err)
}

// Unwrap returns both ErrIndex and the index's own error so that errors.Is
// matches either.
func (e *IndexError) Unwrap() []error { return []error{ErrIndex, e.Err} }
