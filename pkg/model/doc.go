// SPDX-License-Identifier: MPL-2.0

// Package model defines the value types shared by every composition package:
// concept sets, operation signatures, operations and composition requests.
//
// Concepts are opaque comparable values. An operation consumes a set of input
// concepts and produces a set of output concepts; operations are compared by
// identity (the *Operation pointer), never by signature content. Two synthetic
// operation kinds, Source and Sink, bracket every service match network and
// are modelled as ordinary operations with a Kind tag so that network code can
// treat all three uniformly.
//
// This package is a leaf dependency: it imports only the standard library and
// golang.org/x/exp.
package model
