package looplib

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"
)

// Defaults for the download retry policy.
const (
	DEF_MAX_RETRIES    = 5
	DEF_BASE_DELAY     = 500 * time.Millisecond
	DEF_MAX_DELAY      = 30 * time.Second
	DEF_JITTER_FACTOR  = 0.5
	DEF_BACKOFF_FACTOR = 2.0
)

// RetryConfig is the policy a retry ladder runs under: how many
// attempts, and how the delay between them grows.
type RetryConfig struct {
	MaxRetries    int           // attempt ceiling, 0 = unlimited
	BaseDelay     time.Duration // delay before the first retry
	MaxDelay      time.Duration // ceiling for any single delay
	JitterFactor  float64       // random spread in [0, 1] applied to each delay
	BackoffFactor float64       // growth factor between attempts
}

// DefaultRetryConfig returns the policy the player ships with.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    DEF_MAX_RETRIES,
		BaseDelay:     DEF_BASE_DELAY,
		MaxDelay:      DEF_MAX_DELAY,
		JitterFactor:  DEF_JITTER_FACTOR,
		BackoffFactor: DEF_BACKOFF_FACTOR,
	}
}

// RetryState accumulates across the attempts of one ladder.
type RetryState struct {
	Attempts     int           // attempts made so far
	LastError    error         // error from the most recent attempt
	LastAttempt  time.Time     // when the most recent attempt ran
	TotalDelayed time.Duration // total time spent waiting between attempts
}

// ErrorCategory is the retry decision for a classified error.
type ErrorCategory int

const (
	// ErrCategoryFatal errors will not heal on retry: broken payloads,
	// unsupported content, cancellation.
	ErrCategoryFatal ErrorCategory = iota
	// ErrCategoryRetryable errors are transient transport problems.
	ErrCategoryRetryable
	// ErrCategoryThrottled errors mean the remote is pushing back and
	// retries should wait extra.
	ErrCategoryThrottled
)

// ClassifyError sorts an error into a retry category.
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryFatal
	}

	// Cancellation means the player is shutting down, not that the
	// transfer is unhealthy. Deadline errors fall through to the
	// net.Error timeout check below and retry.
	if errors.Is(err, context.Canceled) {
		return ErrCategoryFatal
	}

	// The payload itself being broken will not heal on retry; neither will
	// an asset the player fundamentally cannot show.
	if errors.Is(err, ErrPayload) || errors.Is(err, ErrNoValidAssets) ||
		errors.Is(err, ErrUnsupportedType) || errors.Is(err, ErrUnsupportedScheme) ||
		errors.Is(err, ErrInsufficientDiskSpace) {
		return ErrCategoryFatal
	}

	// Fetchers pre-classify their own failures.
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		// FTP reuses the 4xx/5xx number space with different meanings,
		// so only HTTP statuses signal throttling.
		if fetchErr.Scheme == "http" && (fetchErr.Status == 429 || fetchErr.Status == 503) {
			return ErrCategoryThrottled
		}
		if fetchErr.IsTransient() {
			return ErrCategoryRetryable
		}
		return ErrCategoryFatal
	}

	// An unreachable endpoint is the normal transient condition for a
	// device on venue wifi.
	if errors.Is(err, ErrNetwork) {
		return ErrCategoryRetryable
	}

	// A connection dropped mid-transfer surfaces as an EOF.
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrCategoryRetryable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrCategoryRetryable
	}

	var sysErr syscall.Errno
	if errors.As(err, &sysErr) && isRetryableErrno(sysErr) {
		return ErrCategoryRetryable
	}

	// Last resort for errors that arrive flattened into strings by
	// layers that did not wrap them.
	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return ErrCategoryRetryable
		}
	}
	for _, pattern := range throttlePatterns {
		if strings.Contains(errStr, pattern) {
			return ErrCategoryThrottled
		}
	}

	// Unknown errors stop the ladder rather than loop on something
	// that was never going to succeed.
	return ErrCategoryFatal
}

var retryablePatterns = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"timeout",
	"eof",
	"temporary failure",
	"no such host",
	"network is unreachable",
}

var throttlePatterns = []string{
	"429",
	"503",
	"too many requests",
	"service unavailable",
	"rate limit",
	"throttl",
}

// CalculateBackoff returns the delay before the given retry attempt:
// BaseDelay grown by BackoffFactor per attempt, spread by the jitter
// factor, capped at MaxDelay.
func (c *RetryConfig) CalculateBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))

	if c.JitterFactor > 0 {
		jitter := c.JitterFactor * (2*rand.Float64() - 1)
		delay *= (1 + jitter)
	}

	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if delay < 0 {
		delay = float64(c.BaseDelay)
	}

	return time.Duration(delay)
}

// ShouldRetry reports whether the ladder should make another attempt
// after err: never for fatal errors, and only while the attempt budget
// lasts.
func (c *RetryConfig) ShouldRetry(state *RetryState, err error) bool {
	if ClassifyError(err) == ErrCategoryFatal {
		return false
	}
	if c.MaxRetries > 0 && state.Attempts >= c.MaxRetries {
		return false
	}
	return true
}

// WaitForRetry sleeps out the backoff for the next attempt, doubling it
// for throttled errors, and records the wait in the state. A canceled
// context aborts the wait and returns its error.
func (c *RetryConfig) WaitForRetry(ctx context.Context, state *RetryState, category ErrorCategory) error {
	delay := c.CalculateBackoff(state.Attempts)
	if category == ErrCategoryThrottled {
		delay *= 2
		if delay > c.MaxDelay {
			delay = c.MaxDelay
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		state.TotalDelayed += delay
		return nil
	}
}
