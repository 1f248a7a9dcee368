// SPDX-License-Identifier: MPL-2.0

package model

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// KindRegular is an operation provided by the catalog.
	KindRegular Kind = iota
	// KindSource is the synthetic operation that produces the request inputs.
	KindSource
	// KindSink is the synthetic operation that consumes the request outputs.
	KindSink
)

const (
	// SourceName is the name given to every Source operation.
	SourceName = "source"
	// SinkName is the name given to every Sink operation.
	SinkName = "sink"
)

// ErrInvalidOperationName is the sentinel error wrapped by InvalidOperationNameError.
var ErrInvalidOperationName = errors.New("invalid operation name")

type (
	// Kind tags an operation as regular, Source or Sink.
	Kind int

	// Signature is the immutable (inputs, outputs) pair of an operation.
	Signature[E comparable] struct {
		inputs  Set[E]
		outputs Set[E]
	}

	// Operation is a composable unit with a signature. Operations are compared
	// by pointer identity: two distinct *Operation values are different
	// operations even when their names and signatures are equal.
	Operation[E comparable] struct {
		name string
		kind Kind
		sig  Signature[E]
	}

	// InvalidOperationNameError is returned when a regular operation is created
	// with an empty or whitespace-only name.
	InvalidOperationNameError struct {
		Value string
	}
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindSource:
		return "source"
	case KindSink:
		return "sink"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// NewSignature copies inputs and outputs into an immutable signature.
func NewSignature[E comparable](inputs, outputs Set[E]) Signature[E] {
	return Signature[E]{inputs: inputs.Clone(), outputs: outputs.Clone()}
}

// Inputs returns the declared inputs. The set is shared and must not be modified.
func (s Signature[E]) Inputs() Set[E] { return s.inputs }

// Outputs returns the declared outputs. The set is shared and must not be modified.
func (s Signature[E]) Outputs() Set[E] { return s.outputs }

// NewOperation creates a regular operation.
func NewOperation[E comparable](name string, inputs, outputs []E) (*Operation[E], error) {
	return NewOperationWithSignature(name, NewSignature(NewSet(inputs...), NewSet(outputs...)))
}

// NewOperationWithSignature creates a regular operation from an existing signature.
func NewOperationWithSignature[E comparable](name string, sig Signature[E]) (*Operation[E], error) {
	if strings.TrimSpace(name) == "" {
		return nil, &InvalidOperationNameError{Value: name}
	}
	return &Operation[E]{name: name, kind: KindRegular, sig: sig}, nil
}

// MustOperation is like NewOperation but panics on an invalid name.
// It is intended for fixtures and tests.
func MustOperation[E comparable](name string, inputs, outputs []E) *Operation[E] {
	op, err := NewOperation(name, inputs, outputs)
	if err != nil {
		panic(err)
	}
	return op
}

// NewSource creates the Source operation of a request: no inputs, the
// request's available inputs as outputs.
func NewSource[E comparable](inputs Set[E]) *Operation[E] {
	return &Operation[E]{name: SourceName, kind: KindSource, sig: NewSignature[E](nil, inputs)}
}

// NewSink creates the Sink operation of a request: the request's desired
// outputs as inputs, no outputs.
func NewSink[E comparable](outputs Set[E]) *Operation[E] {
	return &Operation[E]{name: SinkName, kind: KindSink, sig: NewSignature[E](outputs, nil)}
}

// Name returns the operation name.
func (o *Operation[E]) Name() string { return o.name }

// Kind returns the operation kind.
func (o *Operation[E]) Kind() Kind { return o.kind }

// Signature returns the operation signature.
func (o *Operation[E]) Signature() Signature[E] { return o.sig }

// Inputs is shorthand for Signature().Inputs().
func (o *Operation[E]) Inputs() Set[E] { return o.sig.inputs }

// Outputs is shorthand for Signature().Outputs().
func (o *Operation[E]) Outputs() Set[E] { return o.sig.outputs }

// String returns the operation name.
func (o *Operation[E]) String() string { return o.name }

// Outputs returns the union of the outputs of ops.
func Outputs[E comparable](ops []*Operation[E]) Set[E] {
	out := make(Set[E])
	for _, op := range ops {
		out.AddAll(op.Outputs())
	}
	return out
}

// Inputs returns the union of the declared inputs of ops.
func Inputs[E comparable](ops []*Operation[E]) Set[E] {
	in := make(Set[E])
	for _, op := range ops {
		in.AddAll(op.Inputs())
	}
	return in
}

// Error implements the error interface for InvalidOperationNameError.
func (e *InvalidOperationNameError) Error() string {
	return fmt.Sprintf("invalid operation name: must not be empty or whitespace-only (got %q)", e.Value)
}

// Unwrap returns ErrInvalidOperationName for errors.Is() compatibility.
func (e *InvalidOperationNameError) Unwrap() error { return ErrInvalidOperationName }
