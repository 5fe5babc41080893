// Package graph provides a small state-graph workflow engine. Nodes share a
// typed state value; edges and conditional edges decide which node runs next.
package graph

import (
	"context"
	"fmt"
)

// Sentinel node names.
const (
	// Start is the virtual first node of a graph.
	Start = "__start__"
	// End is the virtual last node of a graph.
	End = "__end__"
)

// NodeFunc transforms the state and returns the updated state.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// EdgeFunc inspects the state and returns the label of the next node.
type EdgeFunc[S any] func(ctx context.Context, state S) (string, error)

// Node is a named unit of work in the graph.
type Node[S any] struct {
	Name        string
	Function    NodeFunc[S]
	RetryPolicy *RetryPolicy
}

// Edge is an unconditional transition between two nodes.
type Edge struct {
	From string
	To   string
}

// ConditionalEdge routes from a node to one of several targets based on the
// result of its condition function.
type ConditionalEdge[S any] struct {
	From      string
	Condition EdgeFunc[S]
	Mapping   map[string]string
}

// StateGraph is a builder for a graph whose nodes communicate through a
// shared state of type S.
type StateGraph[S any] struct {
	nodes            map[string]*Node[S]
	edges            []Edge
	conditionalEdges []ConditionalEdge[S]
	entryPoint       string
}

// NewStateGraph creates an empty graph builder.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes: make(map[string]*Node[S]),
	}
}

// AddNode adds a node to the graph.
func (g *StateGraph[S]) AddNode(name string, fn NodeFunc[S]) *Node[S] {
	node := &Node[S]{Name: name, Function: fn}
	g.nodes[name] = node
	return node
}

// WithRetry attaches a retry policy to the node and returns it.
func (n *Node[S]) WithRetry(policy RetryPolicy) *Node[S] {
	n.RetryPolicy = &policy
	return n
}

// AddEdge adds an unconditional edge between two nodes. An edge from Start
// sets the entry point.
func (g *StateGraph[S]) AddEdge(from, to string) error {
	if _, ok := g.nodes[from]; !ok && from != Start {
		return &NodeNotFoundError{Name: from}
	}
	if _, ok := g.nodes[to]; !ok && to != End {
		return &NodeNotFoundError{Name: to}
	}

	g.edges = append(g.edges, Edge{From: from, To: to})

	if from == Start {
		g.entryPoint = to
	}
	return nil
}

// AddConditionalEdges adds a conditional transition from a node. The
// condition's result is looked up in mapping to find the next node.
func (g *StateGraph[S]) AddConditionalEdges(from string, condition EdgeFunc[S], mapping map[string]string) error {
	if _, ok := g.nodes[from]; !ok {
		return &NodeNotFoundError{Name: from}
	}
	for _, target := range mapping {
		if _, ok := g.nodes[target]; !ok && target != End {
			return &NodeNotFoundError{Name: target}
		}
	}

	g.conditionalEdges = append(g.conditionalEdges, ConditionalEdge[S]{
		From:      from,
		Condition: condition,
		Mapping:   mapping,
	})
	return nil
}

// SetEntryPoint sets the first node to execute.
func (g *StateGraph[S]) SetEntryPoint(node string) error {
	if _, ok := g.nodes[node]; !ok {
		return &NodeNotFoundError{Name: node}
	}
	g.entryPoint = node
	return nil
}

// GetNode returns a node by name.
func (g *StateGraph[S]) GetNode(name string) (*Node[S], bool) {
	node, ok := g.nodes[name]
	return node, ok
}

// Validate checks the graph structure: an entry point must be set and every
// node must be reachable from it.
func (g *StateGraph[S]) Validate() error {
	if g.entryPoint == "" {
		return fmt.Errorf("no entry point set")
	}

	reachable := g.computeReachable()
	for name := range g.nodes {
		if !reachable[name] {
			return fmt.Errorf("node %s is not reachable from entry point", name)
		}
	}
	return nil
}

// computeReachable walks edges and conditional edges from the entry point.
func (g *StateGraph[S]) computeReachable() map[string]bool {
	reachable := map[string]bool{g.entryPoint: true}
	queue := []string{g.entryPoint}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, edge := range g.edges {
			if edge.From == current && edge.To != End && !reachable[edge.To] {
				reachable[edge.To] = true
				queue = append(queue, edge.To)
			}
		}
		for _, ce := range g.conditionalEdges {
			if ce.From != current {
				continue
			}
			for _, target := range ce.Mapping {
				if target != End && !reachable[target] {
					reachable[target] = true
					queue = append(queue, target)
				}
			}
		}
	}
	return reachable
}

// Compile validates the graph and returns an executable form.
func (g *StateGraph[S]) Compile(opts ...CompileOption[S]) (*Compiled[S], error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("graph validation failed: %w", err)
	}

	cg := &Compiled[S]{
		graph:          g,
		recursionLimit: 25,
	}
	for _, opt := range opts {
		opt(cg)
	}
	return cg, nil
}

// CompileOption configures a compiled graph.
type CompileOption[S any] func(*Compiled[S])

// WithRecursionLimit caps the number of steps a single invocation may take.
func WithRecursionLimit[S any](limit int) CompileOption[S] {
	return func(cg *Compiled[S]) {
		cg.recursionLimit = limit
	}
}
