package graph

import "time"

// RetryPolicy configures retrying of node executions.
type RetryPolicy struct {
	// InitialInterval is the wait before the first retry.
	InitialInterval time.Duration
	// BackoffFactor multiplies the interval after each retry.
	BackoffFactor float64
	// MaxInterval caps the wait between retries.
	MaxInterval time.Duration
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Jitter randomizes the wait between retries.
	Jitter bool
	// RetryOn reports whether an error should trigger a retry. Nil retries
	// every error.
	RetryOn func(error) bool
}

// DefaultRetryPolicy returns a retry policy suited to transient upstream
// failures.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 500 * time.Millisecond,
		BackoffFactor:   2.0,
		MaxInterval:     30 * time.Second,
		MaxAttempts:     3,
		Jitter:          true,
	}
}
