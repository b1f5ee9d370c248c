package looplib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCategory
	}{
		// Fatal errors
		{
			name:     "nil error",
			err:      nil,
			expected: ErrCategoryFatal,
		},
		{
			name:     "context.Canceled",
			err:      context.Canceled,
			expected: ErrCategoryFatal,
		},
		{
			name:     "broken payload",
			err:      fmt.Errorf("%w: unexpected end of JSON input", ErrPayload),
			expected: ErrCategoryFatal,
		},
		{
			name:     "no valid assets",
			err:      ErrNoValidAssets,
			expected: ErrCategoryFatal,
		},
		{
			name:     "unsupported type",
			err:      ErrUnsupportedType,
			expected: ErrCategoryFatal,
		},
		{
			name:     "unsupported scheme",
			err:      ErrUnsupportedScheme,
			expected: ErrCategoryFatal,
		},
		{
			name:     "insufficient disk space",
			err:      ErrInsufficientDiskSpace,
			expected: ErrCategoryFatal,
		},
		{
			name:     "unknown error",
			err:      errors.New("some random error"),
			expected: ErrCategoryFatal,
		},
		{
			name:     "permanent fetch error",
			err:      NewPermanentFetchError("http", "get", errors.New("bad request")),
			expected: ErrCategoryFatal,
		},

		// Retryable errors
		{
			name:     "unreachable endpoint",
			err:      fmt.Errorf("%w: dial tcp: connection refused", ErrNetwork),
			expected: ErrCategoryRetryable,
		},
		{
			name:     "transient fetch error",
			err:      NewTransientFetchError("http", "get", errors.New("connection reset")),
			expected: ErrCategoryRetryable,
		},
		{
			name:     "http 500 fetch error",
			err:      httpStatusError("get", 500),
			expected: ErrCategoryRetryable,
		},
		{
			name:     "io.EOF",
			err:      io.EOF,
			expected: ErrCategoryRetryable,
		},
		{
			name:     "wrapped ErrUnexpectedEOF",
			err:      fmt.Errorf("outer: %w", io.ErrUnexpectedEOF),
			expected: ErrCategoryRetryable,
		},
		{
			name:     "syscall.ECONNRESET",
			err:      syscall.ECONNRESET,
			expected: ErrCategoryRetryable,
		},
		{
			name:     "syscall.ETIMEDOUT",
			err:      syscall.ETIMEDOUT,
			expected: ErrCategoryRetryable,
		},
		{
			name:     "string pattern connection refused",
			err:      errors.New("dial tcp 10.0.0.1:443: connection refused"),
			expected: ErrCategoryRetryable,
		},

		// Throttled errors
		{
			name:     "http 429",
			err:      httpStatusError("get", 429),
			expected: ErrCategoryThrottled,
		},
		{
			name:     "http 503",
			err:      httpStatusError("get", 503),
			expected: ErrCategoryThrottled,
		},
		{
			name:     "rate limit message",
			err:      errors.New("rate limit exceeded, slow down"),
			expected: ErrCategoryThrottled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got != tt.expected {
				t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

// TestClassifyErrorFTPStatusNotThrottled verifies FTP status codes are not
// mistaken for HTTP throttling; an FTP 503 is a permanent protocol error.
func TestClassifyErrorFTPStatusNotThrottled(t *testing.T) {
	ftpErr := &FetchError{Scheme: "ftp", Op: "retr", Status: 503}
	if got := ClassifyError(ftpErr); got != ErrCategoryFatal {
		t.Errorf("expected ftp 503 to classify fatal, got %v", got)
	}

	transient := &FetchError{Scheme: "ftp", Op: "retr", Status: 450, transient: true}
	if got := ClassifyError(transient); got != ErrCategoryRetryable {
		t.Errorf("expected ftp 450 to classify retryable, got %v", got)
	}
}

func TestCalculateBackoff(t *testing.T) {
	config := RetryConfig{
		MaxRetries:    5,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		JitterFactor:  0, // deterministic for testing
		BackoffFactor: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1600 * time.Millisecond},
		{6, 2 * time.Second}, // capped at MaxDelay
		{10, 2 * time.Second},
	}

	for _, tt := range tests {
		got := config.CalculateBackoff(tt.attempt)
		if got != tt.expected {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

// TestCalculateBackoffJitterBounds verifies jittered delays stay within
// the configured envelope.
func TestCalculateBackoffJitterBounds(t *testing.T) {
	config := RetryConfig{
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		JitterFactor:  0.5,
		BackoffFactor: 2.0,
	}

	for i := 0; i < 100; i++ {
		delay := config.CalculateBackoff(2)
		// attempt 2 nominal delay is 200ms; jitter 0.5 allows 100-300ms
		if delay < 100*time.Millisecond || delay > 300*time.Millisecond {
			t.Fatalf("jittered delay %v outside [100ms, 300ms]", delay)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	config := DefaultRetryConfig()

	t.Run("retryable error under limit", func(t *testing.T) {
		state := &RetryState{Attempts: 1}
		if !config.ShouldRetry(state, io.EOF) {
			t.Error("expected retry for EOF with attempts remaining")
		}
	})

	t.Run("fatal error never retried", func(t *testing.T) {
		state := &RetryState{Attempts: 0}
		if config.ShouldRetry(state, ErrPayload) {
			t.Error("expected no retry for fatal error")
		}
	})

	t.Run("exhausted attempts", func(t *testing.T) {
		state := &RetryState{Attempts: config.MaxRetries}
		if config.ShouldRetry(state, io.EOF) {
			t.Error("expected no retry after attempts exhausted")
		}
	})

	t.Run("unlimited retries when MaxRetries is zero", func(t *testing.T) {
		unlimited := RetryConfig{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}
		state := &RetryState{Attempts: 1000}
		if !unlimited.ShouldRetry(state, io.EOF) {
			t.Error("expected retry with unlimited budget")
		}
	})
}

func TestWaitForRetry(t *testing.T) {
	config := RetryConfig{
		BaseDelay:     10 * time.Millisecond,
		MaxDelay:      100 * time.Millisecond,
		JitterFactor:  0,
		BackoffFactor: 2.0,
	}

	t.Run("waits and accumulates delay", func(t *testing.T) {
		state := &RetryState{Attempts: 1}
		err := config.WaitForRetry(context.Background(), state, ErrCategoryRetryable)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if state.TotalDelayed < 10*time.Millisecond {
			t.Errorf("expected at least 10ms accumulated, got %v", state.TotalDelayed)
		}
	})

	t.Run("throttled waits longer", func(t *testing.T) {
		state := &RetryState{Attempts: 1}
		start := time.Now()
		err := config.WaitForRetry(context.Background(), state, ErrCategoryThrottled)
		elapsed := time.Since(start)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed < 20*time.Millisecond {
			t.Errorf("expected throttled wait of at least 20ms, got %v", elapsed)
		}
	})

	t.Run("cancelled context aborts the wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		state := &RetryState{Attempts: 5}
		err := config.WaitForRetry(ctx, state, ErrCategoryRetryable)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
