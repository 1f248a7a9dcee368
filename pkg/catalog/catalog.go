// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/composit/composit/pkg/matcher"
	"github.com/composit/composit/pkg/model"
)

var (
	// ErrInvalidCatalog is the sentinel error wrapped by InvalidCatalogError.
	ErrInvalidCatalog = errors.New("invalid catalog")
	// ErrDuplicateOperationName is the sentinel error wrapped by DuplicateNameError
	// for operations.
	ErrDuplicateOperationName = errors.New("duplicate operation name")
	// ErrDuplicateConcept is the sentinel error wrapped by DuplicateNameError
	// for concepts.
	ErrDuplicateConcept = errors.New("duplicate concept")
	// ErrUndeclaredParent is the sentinel error wrapped by UndeclaredParentError.
	ErrUndeclaredParent = errors.New("undeclared parent concept")
)

type (
	// Catalog is the content of a catalog file.
	Catalog struct {
		Concepts   []Concept       `json:"concepts,omitempty" yaml:"concepts,omitempty" toml:"concepts,omitempty"`
		Operations []OperationSpec `json:"operations,omitempty" yaml:"operations,omitempty" toml:"operations,omitempty"`
		Request    RequestSpec     `json:"request" yaml:"request" toml:"request"`
	}

	// Concept declares a taxonomy node. Parent, when set, must be declared too.
	Concept struct {
		Name   string `json:"name" yaml:"name" toml:"name"`
		Parent string `json:"parent,omitempty" yaml:"parent,omitempty" toml:"parent,omitempty"`
	}

	// OperationSpec declares one service operation.
	OperationSpec struct {
		Name    string   `json:"name" yaml:"name" toml:"name"`
		Inputs  []string `json:"inputs,omitempty" yaml:"inputs,omitempty" toml:"inputs,omitempty"`
		Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty" toml:"outputs,omitempty"`
	}

	// RequestSpec declares the concepts available to and wanted by the client.
	RequestSpec struct {
		Inputs  []string `json:"inputs,omitempty" yaml:"inputs,omitempty" toml:"inputs,omitempty"`
		Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty" toml:"outputs,omitempty"`
	}

	// DuplicateNameError reports a name declared twice. Kind is "operation"
	// or "concept".
	DuplicateNameError struct {
		Kind  string
		Name  string
		First int
		Index int
	}

	// UndeclaredParentError reports a concept whose parent is not declared.
	UndeclaredParentError struct {
		Concept string
		Parent  string
	}

	// InvalidCatalogError collects every semantic error of a catalog.
	InvalidCatalogError struct {
		FieldErrors []error
	}
)

// Validate checks the rules the schema cannot express and returns an
// *InvalidCatalogError listing every violation, or nil.
func (c *Catalog) Validate() error {
	var errs []error

	opNames := make(map[string]int, len(c.Operations))
	for i, op := range c.Operations {
		if strings.TrimSpace(op.Name) == "" {
			errs = append(errs, fmt.Errorf("operations[%d]: %w", i, model.ErrInvalidOperationName))
			continue
		}
		if first, ok := opNames[op.Name]; ok {
			errs = append(errs, &DuplicateNameError{Kind: "operation", Name: op.Name, First: first, Index: i})
			continue
		}
		opNames[op.Name] = i
	}

	declared := make(map[string]int, len(c.Concepts))
	for i, concept := range c.Concepts {
		if first, ok := declared[concept.Name]; ok {
			errs = append(errs, &DuplicateNameError{Kind: "concept", Name: concept.Name, First: first, Index: i})
			continue
		}
		declared[concept.Name] = i
	}
	for _, concept := range c.Concepts {
		if concept.Parent == "" {
			continue
		}
		if _, ok := declared[concept.Parent]; !ok {
			errs = append(errs, &UndeclaredParentError{Concept: concept.Name, Parent: concept.Parent})
		}
	}
	if len(errs) == 0 {
		if _, err := c.Taxonomy(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return &InvalidCatalogError{FieldErrors: errs}
	}
	return nil
}

// ModelOperations converts the operation specs, in declaration order. Every
// call returns new operations, which are distinct for the discoverer. It
// panics on a blank operation name, which Validate rejects.
func (c *Catalog) ModelOperations() []*model.Operation[string] {
	ops := make([]*model.Operation[string], len(c.Operations))
	for i, spec := range c.Operations {
		ops[i] = model.MustOperation(spec.Name, spec.Inputs, spec.Outputs)
	}
	return ops
}

// ModelRequest converts the request spec.
func (c *Catalog) ModelRequest() model.Request[string] {
	return model.NewRequest(c.Request.Inputs, c.Request.Outputs)
}

// Taxonomy builds the concept taxonomy. A catalog without concepts yields an
// empty taxonomy where only equal concepts are related.
func (c *Catalog) Taxonomy() (*matcher.Taxonomy[string], error) {
	parentOf := make(map[string][]string, len(c.Concepts))
	for _, concept := range c.Concepts {
		if _, ok := parentOf[concept.Name]; !ok {
			parentOf[concept.Name] = nil
		}
		if concept.Parent != "" {
			parentOf[concept.Name] = append(parentOf[concept.Name], concept.Parent)
		}
	}
	return matcher.NewTaxonomy(parentOf)
}

// ConceptNames returns every concept mentioned anywhere in the catalog, sorted.
func (c *Catalog) ConceptNames() []string {
	all := model.NewSet[string]()
	for _, concept := range c.Concepts {
		all.Add(concept.Name)
		if concept.Parent != "" {
			all.Add(concept.Parent)
		}
	}
	for _, op := range c.Operations {
		all.AddAll(model.NewSet(op.Inputs...))
		all.AddAll(model.NewSet(op.Outputs...))
	}
	all.AddAll(model.NewSet(c.Request.Inputs...))
	all.AddAll(model.NewSet(c.Request.Outputs...))
	return all.Sorted(cmp.Compare[string])
}

// normalized returns a copy whose lists are never nil, so that CUE sees empty
// lists instead of null.
func (c *Catalog) normalized() *Catalog {
	orEmpty := func(s []string) []string {
		if s == nil {
			return []string{}
		}
		return s
	}
	out := &Catalog{
		Concepts:   c.Concepts,
		Operations: make([]OperationSpec, len(c.Operations)),
		Request:    RequestSpec{Inputs: orEmpty(c.Request.Inputs), Outputs: orEmpty(c.Request.Outputs)},
	}
	if out.Concepts == nil {
		out.Concepts = []Concept{}
	}
	for i, op := range c.Operations {
		out.Operations[i] = OperationSpec{Name: op.Name, Inputs: orEmpty(op.Inputs), Outputs: orEmpty(op.Outputs)}
	}
	return out
}

// Error implements the error interface for DuplicateNameError.
func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s %q declared at index %d and again at index %d", e.Kind, e.Name, e.First, e.Index)
}

// Unwrap returns the sentinel matching Kind for errors.Is() compatibility.
func (e *DuplicateNameError) Unwrap() error {
	if e.Kind == "concept" {
		return ErrDuplicateConcept
	}
	return ErrDuplicateOperationName
}

// Error implements the error interface for UndeclaredParentError.
func (e *UndeclaredParentError) Error() string {
	return fmt.Sprintf("concept %q has undeclared parent %q", e.Concept, e.Parent)
}

// Unwrap returns ErrUndeclaredParent for errors.Is() compatibility.
func (e *UndeclaredParentError) Unwrap() error { return ErrUndeclaredParent }

// Error implements the error interface for InvalidCatalogError.
func (e *InvalidCatalogError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	slices.Sort(msgs)
	return "invalid catalog: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidCatalog and the field errors, so that errors.Is
// matches the sentinel of any violation.
func (e *InvalidCatalogError) Unwrap() []error {
	return append([]error{ErrInvalidCatalog}, e.FieldErrors...)
}
