// SPDX-License-Identifier: MPL-2.0

// Package network builds and queries service match networks.
//
// A service match network is the leveled directed acyclic graph produced by
// forward discovery: level 0 holds the Source operation, the last level holds
// the Sink operation, and every level in between holds the operations that
// became invokable in the same discovery round. Edges record which outputs of
// an operation cover which inputs of an operation in a strictly later level,
// together with the match score. Because edges are only ever drawn forward,
// the graph is acyclic by construction.
//
// Operations are addressed by stable integer identifiers (OpID) assigned in
// level order; the edge store is an internal/dag graph over those IDs.
package network
