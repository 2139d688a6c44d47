package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditLogFile is the audit log's file name inside the log directory.
const AuditLogFile = "audit.log"

// Auditor defines the interface for audit logging of state-changing calls.
// Each mutating call is recorded with the resource it touched and the
// caller that asked for it.
type Auditor interface {
	LogCall(service, operation, resourceID, callerARN string) error
	Close() error
}

// AuditLogEntry represents a single audit record.
type AuditLogEntry struct {
	Timestamp  string `json:"timestamp"`
	Service    string `json:"service"`
	Operation  string `json:"operation"`
	ResourceID string `json:"resource_id"`
	CallerARN  string `json:"caller_arn"`
}

// auditLogger appends JSON Lines entries to a single audit log file.
type auditLogger struct {
	mu   sync.Mutex
	file io.WriteCloser
}

// NewAuditLogger creates an Auditor that appends entries to the file at path.
// The parent directory and file are created automatically if they do not exist.
func NewAuditLogger(path string) (Auditor, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create audit log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	return &auditLogger{file: f}, nil
}

// LogCall records a single mutating call as a JSON Lines entry.
func (a *auditLogger) LogCall(service, operation, resourceID, callerARN string) error {
	entry := AuditLogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Service:    service,
		Operation:  operation,
		ResourceID: resourceID,
		CallerARN:  callerARN,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	data = append(data, '\n')
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.file.Write(data); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}

	return nil
}

// Close closes the underlying audit log file.
func (a *auditLogger) Close() error {
	return a.file.Close()
}

type nopAuditor struct{}

func (nopAuditor) LogCall(string, string, string, string) error { return nil }
func (nopAuditor) Close() error                                 { return nil }

// NopAuditor returns an Auditor that records nothing.
func NopAuditor() Auditor { return nopAuditor{} }
