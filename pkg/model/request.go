// SPDX-License-Identifier: MPL-2.0

package model

// Request describes a composition problem: the concepts available to start
// with and the concepts that must be produced. An empty Outputs set requests
// exploratory discovery of everything reachable from Inputs.
type Request[E comparable] struct {
	Inputs  Set[E]
	Outputs Set[E]
}

// NewRequest builds a request from input and output slices.
func NewRequest[E comparable](inputs, outputs []E) Request[E] {
	return Request[E]{Inputs: NewSet(inputs...), Outputs: NewSet(outputs...)}
}

// IsExploratory reports whether the request has no goal outputs.
func (r Request[E]) IsExploratory() bool { return r.Outputs.IsEmpty() }
