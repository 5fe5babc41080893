package graph

import (
	"errors"
	"fmt"
)

// NodeNotFoundError is returned when a referenced node does not exist.
type NodeNotFoundError struct {
	Name string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %q not found in graph", e.Name)
}

// RecursionError is returned when an invocation exceeds the step limit.
type RecursionError struct {
	Limit int
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("graph exceeded recursion limit of %d steps", e.Limit)
}

// IsRecursionError reports whether err is a RecursionError.
func IsRecursionError(err error) bool {
	var re *RecursionError
	return errors.As(err, &re)
}
