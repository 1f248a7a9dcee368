// SPDX-License-Identifier: MPL-2.0

package matcher

import (
	"errors"
	"fmt"

	"github.com/composit/composit/internal/dag"
	"github.com/composit/composit/pkg/model"
)

// ErrTaxonomyCycle is returned when the subclass relation contains a cycle.
var ErrTaxonomyCycle = errors.New("taxonomy contains a cycle")

// Taxonomy is an immutable subclass hierarchy. A concept may have several
// parents. The transitive closure is computed once at construction, so
// lookups are safe for concurrent use.
type Taxonomy[E comparable] struct {
	graph     *dag.Graph[E]
	ancestors map[E]model.Set[E]
}

// NewTaxonomy builds a taxonomy from a child -> parents relation.
// Concepts absent from parentOf are roots (or unknown, which behaves the same).
func NewTaxonomy[E comparable](parentOf map[E][]E) (*Taxonomy[E], error) {
	g := dag.New[E]()
	for child, parents := range parentOf {
		g.AddNode(child)
		for _, parent := range parents {
			g.AddEdge(child, parent)
		}
	}
	if _, err := g.TopologicalSort(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTaxonomyCycle, err)
	}

	ancestors := make(map[E]model.Set[E], len(g.Nodes()))
	for _, node := range g.Nodes() {
		ancestors[node] = model.NewSet(g.Reachable(node)...)
	}
	return &Taxonomy[E]{graph: g, ancestors: ancestors}, nil
}

// Contains reports whether concept appears in the hierarchy.
func (t *Taxonomy[E]) Contains(concept E) bool { return t.graph.HasNode(concept) }

// Ancestors returns a copy of every strict superclass of concept.
func (t *Taxonomy[E]) Ancestors(concept E) model.Set[E] {
	return t.ancestors[concept].Clone()
}

// IsSubclassOf reports whether sub is a strict descendant of super.
func (t *Taxonomy[E]) IsSubclassOf(sub, super E) bool {
	return t.ancestors[sub].Contains(super)
}

// Relation returns the degree with which source covers target.
func (t *Taxonomy[E]) Relation(source, target E) Degree {
	switch {
	case source == target:
		return DegreeExact
	case t.IsSubclassOf(source, target):
		return DegreePlugin
	case t.IsSubclassOf(target, source):
		return DegreeSubsumes
	default:
		return DegreeFail
	}
}
