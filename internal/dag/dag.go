// SPDX-License-Identifier: MPL-2.0

// Package dag models release task graphs: topological ordering with cycle
// detection, ancestor closures for selecting a target, and a bounded
// concurrent executor that runs each task once all of its predecessors have
// finished.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle lists the nodes left with unresolved predecessors, in
		// insertion order.
		Cycle []string
	}

	// UnknownNodeError is returned when an operation names a node that was
	// never added.
	UnknownNodeError struct {
		Node string
	}

	// Graph is a directed graph of named tasks. An edge from A to B means A
	// must finish before B starts.
	Graph struct {
		succ    map[string][]string
		pred    map[string][]string
		nodes   []string
		nodeSet map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown task %q", e.Node)
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		succ:    make(map[string][]string),
		pred:    make(map[string][]string),
		nodeSet: make(map[string]bool),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge adds from -> to, adding either node if missing. Duplicate edges
// are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if slices.Contains(g.succ[from], to) {
		return
	}
	g.succ[from] = append(g.succ[from], to)
	g.pred[to] = append(g.pred[to], from)
}

// HasNode reports whether name was added.
func (g *Graph) HasNode(name string) bool { return g.nodeSet[name] }

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []string { return slices.Clone(g.nodes) }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Predecessors returns the direct predecessors of name in edge order.
func (g *Graph) Predecessors(name string) []string { return slices.Clone(g.pred[name]) }

// Successors returns the direct successors of name in edge order.
func (g *Graph) Successors(name string) []string { return slices.Clone(g.succ[name]) }

// Ancestors returns targets plus every node they transitively depend on, in
// insertion order.
func (g *Graph) Ancestors(targets ...string) ([]string, error) {
	seen := make(map[string]bool, len(g.nodes))
	stack := make([]string, 0, len(targets))
	for _, t := range targets {
		if !g.nodeSet[t] {
			return nil, &UnknownNodeError{Node: t}
		}
		stack = append(stack, t)
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.pred[n]...)
	}

	out := make([]string, 0, len(seen))
	for _, n := range g.nodes {
		if seen[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

// Subgraph returns a new graph holding only keep and the edges between them.
// Node insertion order is preserved from g.
func (g *Graph) Subgraph(keep []string) *Graph {
	want := make(map[string]bool, len(keep))
	for _, n := range keep {
		want[n] = true
	}
	sub := New()
	for _, n := range g.nodes {
		if want[n] {
			sub.AddNode(n)
		}
	}
	for _, from := range g.nodes {
		if !want[from] {
			continue
		}
		for _, to := range g.succ[from] {
			if want[to] {
				sub.AddEdge(from, to)
			}
		}
	}
	return sub
}

// TopologicalSort returns an execution order using Kahn's algorithm, or a
// *CycleError. Nodes at the same level keep their insertion order, so the
// result is deterministic.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = len(g.pred[node])
	}

	queue := make([]string, 0, len(g.nodes))
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, next := range g.succ[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var cycleNodes []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				cycleNodes = append(cycleNodes, node)
			}
		}
		return nil, &CycleError{Cycle: cycleNodes}
	}

	return result, nil
}
