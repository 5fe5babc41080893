package graph

import (
	"context"
	"errors"
	"testing"
	"time"
)

// State type for testing
type testState struct {
	Steps   []string
	Counter int
}

func TestStateGraphCreation(t *testing.T) {
	builder := NewStateGraph[testState]()

	if builder == nil {
		t.Fatal("Expected non-nil builder")
	}
	if len(builder.nodes) != 0 {
		t.Error("Expected empty nodes initially")
	}
}

func TestAddNode(t *testing.T) {
	builder := NewStateGraph[testState]()

	builder.AddNode("test_node", func(ctx context.Context, s testState) (testState, error) {
		s.Counter++
		return s, nil
	})

	node, ok := builder.GetNode("test_node")
	if !ok {
		t.Fatal("Expected to find added node")
	}
	if node.Name != "test_node" {
		t.Errorf("Expected node name 'test_node', got '%s'", node.Name)
	}
	if node.Function == nil {
		t.Error("Expected non-nil function")
	}
}

func TestAddEdge(t *testing.T) {
	builder := NewStateGraph[testState]()

	builder.AddNode("node_a", passthrough)
	builder.AddNode("node_b", passthrough)

	if err := builder.AddEdge("node_a", "node_b"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	if err := builder.AddEdge("node_a", "nonexistent"); err == nil {
		t.Error("Expected error for non-existent target")
	}
	if err := builder.AddEdge("nonexistent", "node_b"); err == nil {
		t.Error("Expected error for non-existent source")
	}
}

func TestStartEdgeSetsEntryPoint(t *testing.T) {
	builder := NewStateGraph[testState]()
	builder.AddNode("first", passthrough)

	if err := builder.AddEdge(Start, "first"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if builder.entryPoint != "first" {
		t.Errorf("Expected entry point 'first', got '%s'", builder.entryPoint)
	}
}

func TestCompileRequiresEntryPoint(t *testing.T) {
	builder := NewStateGraph[testState]()
	builder.AddNode("a", passthrough)

	if _, err := builder.Compile(); err == nil {
		t.Error("Expected compile error without entry point")
	}
}

func TestCompileRejectsUnreachableNode(t *testing.T) {
	builder := NewStateGraph[testState]()
	builder.AddNode("a", passthrough)
	builder.AddNode("orphan", passthrough)
	builder.SetEntryPoint("a")
	builder.AddEdge("a", End)

	if _, err := builder.Compile(); err == nil {
		t.Error("Expected compile error for unreachable node")
	}
}

func TestInvokeLinearGraph(t *testing.T) {
	builder := NewStateGraph[testState]()
	builder.AddNode("a", record("a"))
	builder.AddNode("b", record("b"))
	builder.SetEntryPoint("a")
	builder.AddEdge("a", "b")
	builder.AddEdge("b", End)

	cg, err := builder.Compile()
	if err != nil {
		t.Fatalf("Unexpected compile error: %v", err)
	}

	out, err := cg.Invoke(context.Background(), testState{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(out.Steps) != 2 || out.Steps[0] != "a" || out.Steps[1] != "b" {
		t.Errorf("Unexpected execution order %v", out.Steps)
	}
}

func TestInvokeConditionalEdges(t *testing.T) {
	builder := NewStateGraph[testState]()
	builder.AddNode("route", passthrough)
	builder.AddNode("left", record("left"))
	builder.AddNode("right", record("right"))
	builder.SetEntryPoint("route")
	builder.AddConditionalEdges("route", func(ctx context.Context, s testState) (string, error) {
		if s.Counter > 0 {
			return "go_right", nil
		}
		return "go_left", nil
	}, map[string]string{
		"go_left":  "left",
		"go_right": "right",
	})
	builder.AddEdge("left", End)
	builder.AddEdge("right", End)

	cg, err := builder.Compile()
	if err != nil {
		t.Fatalf("Unexpected compile error: %v", err)
	}

	out, err := cg.Invoke(context.Background(), testState{Counter: 1})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(out.Steps) != 1 || out.Steps[0] != "right" {
		t.Errorf("Expected right branch, got %v", out.Steps)
	}

	out, err = cg.Invoke(context.Background(), testState{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(out.Steps) != 1 || out.Steps[0] != "left" {
		t.Errorf("Expected left branch, got %v", out.Steps)
	}
}

func TestInvokeUnmappedConditionResult(t *testing.T) {
	builder := NewStateGraph[testState]()
	builder.AddNode("route", passthrough)
	builder.AddNode("left", passthrough)
	builder.SetEntryPoint("route")
	builder.AddConditionalEdges("route", func(ctx context.Context, s testState) (string, error) {
		return "unknown", nil
	}, map[string]string{"go_left": "left"})
	builder.AddEdge("left", End)

	cg, err := builder.Compile()
	if err != nil {
		t.Fatalf("Unexpected compile error: %v", err)
	}

	if _, err := cg.Invoke(context.Background(), testState{}); err == nil {
		t.Error("Expected error for unmapped condition result")
	}
}

func TestRecursionLimit(t *testing.T) {
	builder := NewStateGraph[testState]()
	builder.AddNode("loop", passthrough)
	builder.SetEntryPoint("loop")
	builder.AddEdge("loop", "loop")

	cg, err := builder.Compile(WithRecursionLimit[testState](5))
	if err != nil {
		t.Fatalf("Unexpected compile error: %v", err)
	}

	_, err = cg.Invoke(context.Background(), testState{})
	if err == nil {
		t.Fatal("Expected recursion limit error")
	}
	if !IsRecursionError(err) {
		t.Errorf("Expected RecursionError, got %v", err)
	}
}

func TestNodeErrorPropagates(t *testing.T) {
	wantErr := errors.New("boom")

	builder := NewStateGraph[testState]()
	builder.AddNode("fail", func(ctx context.Context, s testState) (testState, error) {
		return s, wantErr
	})
	builder.SetEntryPoint("fail")
	builder.AddEdge("fail", End)

	cg, err := builder.Compile()
	if err != nil {
		t.Fatalf("Unexpected compile error: %v", err)
	}

	_, err = cg.Invoke(context.Background(), testState{})
	if !errors.Is(err, wantErr) {
		t.Errorf("Expected wrapped node error, got %v", err)
	}
}

func TestRetryPolicyRecovers(t *testing.T) {
	attempts := 0

	builder := NewStateGraph[testState]()
	builder.AddNode("flaky", func(ctx context.Context, s testState) (testState, error) {
		attempts++
		if attempts < 3 {
			return s, errors.New("transient")
		}
		s.Counter = attempts
		return s, nil
	}).WithRetry(RetryPolicy{
		InitialInterval: time.Millisecond,
		BackoffFactor:   2.0,
		MaxAttempts:     3,
	})
	builder.SetEntryPoint("flaky")
	builder.AddEdge("flaky", End)

	cg, err := builder.Compile()
	if err != nil {
		t.Fatalf("Unexpected compile error: %v", err)
	}

	out, err := cg.Invoke(context.Background(), testState{})
	if err != nil {
		t.Fatalf("Unexpected error after retries: %v", err)
	}
	if out.Counter != 3 {
		t.Errorf("Expected success on third attempt, got %d", out.Counter)
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	builder := NewStateGraph[testState]()
	builder.AddNode("flaky", func(ctx context.Context, s testState) (testState, error) {
		return s, errors.New("transient")
	}).WithRetry(RetryPolicy{
		InitialInterval: time.Millisecond,
		BackoffFactor:   2.0,
		MaxAttempts:     2,
	})
	builder.SetEntryPoint("flaky")
	builder.AddEdge("flaky", End)

	cg, _ := builder.Compile()

	if _, err := cg.Invoke(context.Background(), testState{}); err == nil {
		t.Error("Expected error after retries exhausted")
	}
}

func TestRetryOnPredicateStopsRetry(t *testing.T) {
	attempts := 0
	permanent := errors.New("permanent")

	builder := NewStateGraph[testState]()
	builder.AddNode("fail", func(ctx context.Context, s testState) (testState, error) {
		attempts++
		return s, permanent
	}).WithRetry(RetryPolicy{
		InitialInterval: time.Millisecond,
		BackoffFactor:   2.0,
		MaxAttempts:     5,
		RetryOn:         func(err error) bool { return !errors.Is(err, permanent) },
	})
	builder.SetEntryPoint("fail")
	builder.AddEdge("fail", End)

	cg, _ := builder.Compile()

	if _, err := cg.Invoke(context.Background(), testState{}); err == nil {
		t.Fatal("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Expected single attempt for non-retriable error, got %d", attempts)
	}
}

func passthrough(ctx context.Context, s testState) (testState, error) {
	return s, nil
}

func record(name string) NodeFunc[testState] {
	return func(ctx context.Context, s testState) (testState, error) {
		s.Steps = append(s.Steps, name)
		return s, nil
	}
}
