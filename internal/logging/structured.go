// Package logging provides structured logging for simulated AWS API calls
// and audit logging for the calls that change state. API call records are
// appended as JSON Lines to ~/.config/efsim/logs/calls.jsonl. Audit entries
// are appended as JSON Lines to audit.log in the same directory.
package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/smithy-go"
)

// CallLogFile is the file NewStructuredLogger appends to inside its dir.
const CallLogFile = "calls.jsonl"

// Logger defines the interface for structured API call logging.
// Implementations record service, operation, duration, and result for
// each call the simulator answers.
type Logger interface {
	Log(service, operation string, duration time.Duration, err error)
	SetStderr(w io.Writer)
	// Close releases the log file. Calls logged after Close are dropped.
	Close() error
}

// StructuredLogEntry represents a single API call log entry.
type StructuredLogEntry struct {
	Timestamp  string `json:"timestamp"`
	Service    string `json:"service"`
	Operation  string `json:"operation"`
	DurationMs int64  `json:"duration_ms"`
	Result     string `json:"result"`
	ErrorCode  string `json:"error_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// structuredLogger appends JSON Lines entries to a writer and optionally
// mirrors them to stderr when debug mode is enabled.
type structuredLogger struct {
	mu     sync.Mutex
	out    io.Writer
	file   io.Closer // nil unless the logger opened out itself
	debug  bool
	stderr io.Writer
}

// NewLogger creates a Logger that appends JSON Lines entries to w. Close
// leaves w open.
func NewLogger(w io.Writer, debug bool) Logger {
	return &structuredLogger{
		out:    w,
		debug:  debug,
		stderr: os.Stderr,
	}
}

// NewStructuredLogger creates a Logger that appends to CallLogFile in dir.
// The directory is created automatically if it does not exist.
// When debug is true, each log entry is also written to stderr.
func NewStructuredLogger(dir string, debug bool) (Logger, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, CallLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open call log: %w", err)
	}
	return &structuredLogger{
		out:    f,
		file:   f,
		debug:  debug,
		stderr: os.Stderr,
	}, nil
}

// SetStderr overrides the writer used for debug output.
// This is primarily useful for testing.
func (l *structuredLogger) SetStderr(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stderr = w
}

// Close closes the call log opened by NewStructuredLogger.
func (l *structuredLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = nil
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Log records a single API call. If debug mode is enabled, the entry is
// also written to stderr.
func (l *structuredLogger) Log(service, operation string, duration time.Duration, err error) {
	entry := StructuredLogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Service:    service,
		Operation:  operation,
		DurationMs: duration.Milliseconds(),
		Result:     "success",
	}
	if err != nil {
		entry.Result = "error"
		entry.Error = err.Error()
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			entry.ErrorCode = apiErr.ErrorCode()
			entry.Error = apiErr.ErrorMessage()
		}
	}

	data, jsonErr := json.Marshal(entry)
	if jsonErr != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	// Best-effort write; a full disk must not fail the API call.
	if l.out != nil {
		_, _ = l.out.Write(data)
	}
	if l.debug && l.stderr != nil {
		_, _ = l.stderr.Write(data)
	}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return NewLogger(io.Discard, false)
}
