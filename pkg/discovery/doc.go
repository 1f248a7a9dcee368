// SPDX-License-Identifier: MPL-2.0

// Package discovery implements forward service discovery: a level-synchronous
// fixpoint search that starts from the inputs of a request and repeatedly
// asks an operation index for the operations consuming the concepts that
// became available in the previous round.
//
// Each round runs in three phases:
//   - candidate fetch: the only call to the operation index
//   - evaluation: every candidate is matched against its still-unmatched
//     inputs, concurrently and without touching shared state
//   - barrier: records, the used set, the goal outputs and the frontier are
//     updated by the search goroutine alone
//
// A candidate becomes invokable once all of its inputs have been matched
// (strict mode) or as soon as any of them has (relaxed mode). Every operation
// is placed in at most one level, the one of the first round in which it
// became invokable. The search stops when a round selects nothing or, for
// goal-directed requests, when every requested output is covered. The levels
// are then bracketed with Source and Sink operations and handed to
// network.New, which computes the match edges.
//
// File organization:
//   - discovery.go: ForwardDiscoverer, options and Search
//   - session.go: per-search state and the round algorithm
//   - result.go: Result and Diagnostic
package discovery
