// Package logger is the logging seam for the player. The daemon
// composes a stderr console backend with a rotating JSON file backend;
// library code only ever sees the Logger interface.
package logger

import (
	"fmt"
	"log"
	"sync"
)

// Logger is implemented by every logging backend.
type Logger interface {
	// Info logs normal operation, cycle results and playback changes.
	Info(format string, args ...interface{})

	// Warning logs degraded but recoverable conditions, like a skipped
	// asset or a failed download attempt.
	Warning(format string, args ...interface{})

	// Error logs failures that surface to the operator.
	Error(format string, args ...interface{})

	// Close releases backend resources, like an open log file.
	// Safe to call multiple times; backends without resources return nil.
	Close() error
}

// StandardLogger writes level-prefixed lines through a stdlib
// *log.Logger, normally log.Default() on stderr.
type StandardLogger struct {
	logger *log.Logger
}

// NewStandardLogger wraps the given *log.Logger.
func NewStandardLogger(l *log.Logger) *StandardLogger {
	return &StandardLogger{logger: l}
}

func (s *StandardLogger) print(level, format string, args []interface{}) {
	s.logger.Printf(level+" "+format, args...)
}

// Info logs with an [INFO] prefix.
func (s *StandardLogger) Info(format string, args ...interface{}) {
	s.print("[INFO]", format, args)
}

// Warning logs with a [WARNING] prefix.
func (s *StandardLogger) Warning(format string, args ...interface{}) {
	s.print("[WARNING]", format, args)
}

// Error logs with an [ERROR] prefix.
func (s *StandardLogger) Error(format string, args ...interface{}) {
	s.print("[ERROR]", format, args)
}

// Close is a no-op; the underlying writer is not owned.
func (s *StandardLogger) Close() error {
	return nil
}

// NopLogger discards everything. Tests that do not assert on logs
// use it to keep fixtures quiet.
type NopLogger struct{}

// NewNopLogger returns a logger that discards all messages.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

func (n *NopLogger) Info(format string, args ...interface{})    {}
func (n *NopLogger) Warning(format string, args ...interface{}) {}
func (n *NopLogger) Error(format string, args ...interface{})   {}
func (n *NopLogger) Close() error                               { return nil }

// MockLogger records log calls for verification in tests. The rotation
// loop, sync coordinator and display hub all log from their own
// goroutines, so appends are serialized; read the recorded calls only
// after the component under test has stopped.
type MockLogger struct {
	mu           sync.Mutex
	InfoCalls    []string
	WarningCalls []string
	ErrorCalls   []string
	CloseCalled  bool
}

// NewMockLogger returns an empty recorder.
func NewMockLogger() *MockLogger {
	return &MockLogger{
		InfoCalls:    make([]string, 0),
		WarningCalls: make([]string, 0),
		ErrorCalls:   make([]string, 0),
	}
}

func (m *MockLogger) Info(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InfoCalls = append(m.InfoCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Warning(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WarningCalls = append(m.WarningCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Error(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorCalls = append(m.ErrorCalls, fmt.Sprintf(format, args...))
}

// Close records that Close was called.
func (m *MockLogger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	return nil
}

var (
	_ Logger = (*StandardLogger)(nil)
	_ Logger = (*NopLogger)(nil)
	_ Logger = (*MockLogger)(nil)
)
