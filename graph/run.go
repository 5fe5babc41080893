package graph

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vinoflow/concierge/telemetry"
)

// Compiled is an executable graph.
type Compiled[S any] struct {
	graph          *StateGraph[S]
	recursionLimit int
}

// Invoke runs the graph from its entry point until it reaches End and
// returns the final state.
func (cg *Compiled[S]) Invoke(ctx context.Context, state S) (S, error) {
	current := cg.graph.entryPoint
	step := 0

	for current != End {
		if step >= cg.recursionLimit {
			return state, &RecursionError{Limit: cg.recursionLimit}
		}

		node, ok := cg.graph.GetNode(current)
		if !ok {
			return state, &NodeNotFoundError{Name: current}
		}

		next, err := cg.executeStep(ctx, node, &state)
		if err != nil {
			return state, err
		}

		current = next
		step++
	}

	return state, nil
}

// executeStep runs one node and resolves the following node name.
func (cg *Compiled[S]) executeStep(ctx context.Context, node *Node[S], state *S) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "graph.node."+node.Name)
	span.SetAttributes(attribute.String("graph.node_name", node.Name))
	defer span.End()

	out, err := cg.executeWithRetry(ctx, node, *state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("node %s execution failed: %w", node.Name, err)
	}
	*state = out

	next, err := cg.nextNode(ctx, node.Name, out)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.String("graph.next_node", next))
	return next, nil
}

// nextNode resolves the transition out of a node. Conditional edges take
// precedence over plain edges.
func (cg *Compiled[S]) nextNode(ctx context.Context, from string, state S) (string, error) {
	for _, ce := range cg.graph.conditionalEdges {
		if ce.From != from {
			continue
		}
		result, err := ce.Condition(ctx, state)
		if err != nil {
			return "", fmt.Errorf("condition evaluation failed for node %s: %w", from, err)
		}
		target, ok := ce.Mapping[result]
		if !ok {
			return "", fmt.Errorf("no mapping for condition result %q from node %s", result, from)
		}
		return target, nil
	}

	for _, edge := range cg.graph.edges {
		if edge.From == from {
			return edge.To, nil
		}
	}

	// A node with no outgoing edge terminates the graph.
	return End, nil
}

// executeWithRetry runs a node under its retry policy, if any.
func (cg *Compiled[S]) executeWithRetry(ctx context.Context, node *Node[S], state S) (S, error) {
	if node.RetryPolicy == nil {
		return node.Function(ctx, state)
	}

	policy := *node.RetryPolicy
	var lastErr error
	wait := policy.InitialInterval

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		out, err := node.Function(ctx, state)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if policy.RetryOn != nil && !policy.RetryOn(err) {
			return state, err
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}

		delay := wait
		if policy.Jitter {
			delay = time.Duration(float64(delay) * (0.5 + 0.5*rand.Float64()))
		}

		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-time.After(delay):
		}

		wait = time.Duration(float64(wait) * policy.BackoffFactor)
		if policy.MaxInterval > 0 && wait > policy.MaxInterval {
			wait = policy.MaxInterval
		}
	}

	return state, fmt.Errorf("max retries exceeded (%d): %w", policy.MaxAttempts, lastErr)
}
