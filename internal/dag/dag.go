// SPDX-License-Identifier: MPL-2.0

// Package dag provides directed graph operations for topological sorting,
// cycle detection and reachability. It backs the concept taxonomy (where a
// cycle is a configuration error) and the edge store of the service match
// network (where edges only ever point to later levels).
package dag

import (
	"fmt"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError[K comparable] struct {
		// Cycle contains the nodes left with incoming edges after Kahn's algorithm
		// drained every acyclic prefix. They include at least one full cycle.
		Cycle []K
	}

	// Graph is a directed graph keyed by comparable node identifiers.
	// An edge from A to B means A comes before B.
	Graph[K comparable] struct {
		// adjacency maps each node to its outgoing neighbors.
		adjacency map[K][]K
		// reverse maps each node to its incoming neighbors.
		reverse map[K][]K
		// nodes tracks all nodes in insertion order for deterministic output.
		nodes []K
		// nodeSet provides O(1) lookup for node existence.
		nodeSet map[K]bool
	}
)

func (e *CycleError[K]) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, n := range e.Cycle {
		parts[i] = fmt.Sprint(n)
	}
	return fmt.Sprintf("cycle detected: %s", strings.Join(parts, " -> "))
}

// New creates an empty Graph.
func New[K comparable]() *Graph[K] {
	return &Graph[K]{
		adjacency: make(map[K][]K),
		reverse:   make(map[K][]K),
		nodeSet:   make(map[K]bool),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph[K]) AddNode(node K) {
	if g.nodeSet[node] {
		return
	}
	g.nodeSet[node] = true
	g.nodes = append(g.nodes, node)
}

// AddEdge adds a directed edge from -> to.
// Both nodes are implicitly added if they don't exist.
func (g *Graph[K]) AddEdge(from, to K) {
	g.AddNode(from)
	g.AddNode(to)
	g.adjacency[from] = append(g.adjacency[from], to)
	g.reverse[to] = append(g.reverse[to], from)
}

// HasNode reports whether node was added to the graph.
func (g *Graph[K]) HasNode(node K) bool { return g.nodeSet[node] }

// Nodes returns every node in insertion order.
func (g *Graph[K]) Nodes() []K {
	out := make([]K, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Successors returns the targets of the edges leaving node, in insertion order.
func (g *Graph[K]) Successors(node K) []K {
	return append([]K(nil), g.adjacency[node]...)
}

// Predecessors returns the sources of the edges entering node, in insertion order.
func (g *Graph[K]) Predecessors(node K) []K {
	return append([]K(nil), g.reverse[node]...)
}

// EdgeCount returns the number of edges, duplicates included.
func (g *Graph[K]) EdgeCount() int {
	n := 0
	for _, neighbors := range g.adjacency {
		n += len(neighbors)
	}
	return n
}

// Reachable returns every node reachable from start through one or more
// edges, in breadth-first order. start itself is only included when it lies
// on a cycle.
func (g *Graph[K]) Reachable(start K) []K {
	seen := make(map[K]bool)
	var out []K
	queue := append([]K(nil), g.adjacency[start]...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if seen[node] {
			continue
		}
		seen[node] = true
		out = append(out, node)
		queue = append(queue, g.adjacency[node]...)
	}
	return out
}

// TopologicalSort returns a valid order using Kahn's algorithm.
// Returns CycleError if the graph contains a cycle.
// The returned order is deterministic: nodes at the same topological level
// appear in the order they were first added to the graph.
func (g *Graph[K]) TopologicalSort() ([]K, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	// Compute in-degrees.
	inDegree := make(map[K]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = len(g.reverse[node])
	}

	// Seed the queue with nodes that have no incoming edges, in insertion order.
	queue := make([]K, 0)
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]K, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var cycleNodes []K
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				cycleNodes = append(cycleNodes, node)
			}
		}
		return nil, &CycleError[K]{Cycle: cycleNodes}
	}

	return result, nil
}
