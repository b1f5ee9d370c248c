package looplib

import (
	"errors"
	"fmt"
)

var (
	ErrNetwork = errors.New("content endpoint is unreachable")
	ErrPayload = errors.New("content payload is invalid")

	ErrNoValidAssets      = errors.New("no playable assets in the active playlist")
	ErrUnsupportedType    = errors.New("asset content type is not supported")
	ErrNoAssetsDownloaded = errors.New("no assets could be downloaded")
	ErrOfflineNoCache     = errors.New("device is offline and the cache is empty")

	ErrRenderFailed   = errors.New("display failed to render asset")
	ErrNothingPlaying = errors.New("no asset is currently playing")

	ErrCacheClosed           = errors.New("asset cache is closed")
	ErrInsufficientDiskSpace = errors.New("insufficient disk space")
	ErrUnsupportedScheme     = errors.New("unsupported source scheme")
)

// FetchError is a structured error from a source fetcher.
// Use errors.As to extract and inspect fetch errors.
type FetchError struct {
	// Scheme identifies the fetcher that produced the error (e.g., "http", "ftp").
	Scheme string
	// Op is the operation that failed (e.g., "connect", "open", "copy").
	Op string
	// Status is the protocol status code, when one was received (0 otherwise).
	Status int
	// Cause is the underlying error.
	Cause error
	// transient indicates whether the error may be retried.
	transient bool
}

// Error implements the error interface.
// Format: "scheme op: cause"
func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s", e.Scheme, e.Op, e.Cause.Error())
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d", e.Scheme, e.Op, e.Status)
	}
	return fmt.Sprintf("%s %s", e.Scheme, e.Op)
}

// Unwrap returns the underlying cause, enabling errors.Is/As chaining.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// IsTransient returns true if this error is transient and may be retried.
func (e *FetchError) IsTransient() bool {
	return e.transient
}

// NewTransientFetchError creates a FetchError that may be retried.
func NewTransientFetchError(scheme, op string, cause error) *FetchError {
	return &FetchError{Scheme: scheme, Op: op, Cause: cause, transient: true}
}

// NewPermanentFetchError creates a FetchError that should not be retried.
func NewPermanentFetchError(scheme, op string, cause error) *FetchError {
	return &FetchError{Scheme: scheme, Op: op, Cause: cause, transient: false}
}
