// SPDX-License-Identifier: MPL-2.0

// Package matcher implements the set matching capability used by forward
// discovery and by service match network construction.
//
// A SetMatchFunction decides, for a source and a target concept set, which
// target elements are covered by which source elements and with what score.
// Implementations must be pure functions of their arguments: discovery calls
// them concurrently and in any order.
//
// Three strategies are provided:
//
//   - Exact: a target is covered by an equal source element.
//   - Taxonomic: a target is covered by an equal element or by a subclass of it
//     (optionally also by a superclass), scored with a Degree.
//   - Threshold: a target is covered by any source whose similarity reaches a
//     minimum, scored with the similarity itself.
//
// Element-level strategies are lifted into set functions with SetMatcher.
package matcher
