// Package output provides JSONL output for session results.
//
// Output is structured as typed record envelopes containing readiness
// reports, job results, errors and the final session summary. Each line is
// a self-contained JSON object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: checkrun.<type>.v<version>
const (
	// TypeReadiness identifies job readiness records.
	TypeReadiness = "checkrun.readiness.v1"

	// TypeResult identifies job result records.
	TypeResult = "checkrun.result.v1"

	// TypeError identifies error records.
	TypeError = "checkrun.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "checkrun.summary.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line of JSONL output contains a Record with a type-specific payload
// in the Data field. The type field determines how to interpret the Data
// payload.
type Record struct {
	// Type identifies the record type (e.g., "checkrun.result.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// SessionID is the correlation id for this session.
	SessionID string `json:"session_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// ReadinessRecord is the data payload for one job's readiness report.
type ReadinessRecord struct {
	// JobID is the job being reported on.
	JobID string `json:"job_id"`

	// CategoryID is the job's effective category in this session.
	CategoryID string `json:"category_id"`

	// Selected reports whether the job was selected to run.
	Selected bool `json:"selected"`

	// CanStart reports whether the job may run right now.
	CanStart bool `json:"can_start"`

	// Inhibitors lists the explanation of every current inhibitor, in
	// evaluation order. Empty when the job can start.
	Inhibitors []string `json:"inhibitors,omitempty"`
}

// ResultRecord is the data payload for one completed job execution.
type ResultRecord struct {
	// JobID is the job that ran.
	JobID string `json:"job_id"`

	// Outcome is the result kind ("pass", "fail", "skip", ...).
	Outcome string `json:"outcome"`

	// ExitCode is the command's exit status, for pass and fail.
	ExitCode int `json:"exit_code"`

	// IOLogPath references the captured command output, if any.
	IOLogPath string `json:"io_log_path,omitempty"`

	// Duration is how long the command ran.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`

	// Records is the number of resource records parsed from stdout, for
	// resource jobs.
	Records int `json:"records,omitempty"`
}

// ErrorRecord is the data payload for errors.
//
// Errors are emitted as records rather than aborting the whole run, so a
// session with one broken job still reports everything else.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// JobID is the job related to this error, if applicable.
	JobID string `json:"job_id,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeExpression indicates a resource expression failed to evaluate.
	ErrCodeExpression = "EXPRESSION_ERROR"

	// ErrCodeExec indicates a command could not be started.
	ErrCodeExec = "EXEC_ERROR"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "INTERNAL"
)

// SummaryRecord is the data payload for the final session summary.
type SummaryRecord struct {
	// Title is the plan title, if any.
	Title string `json:"title,omitempty"`

	// Enrolled is the number of jobs enrolled in the session.
	Enrolled int `json:"enrolled"`

	// Selected is the number of jobs selected to run.
	Selected int `json:"selected"`

	// Passed, Failed and Skipped count terminal outcomes.
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`

	// Blocked lists the selected jobs that never became ready, so readers
	// can see which jobs were starved and why the counts do not add up.
	Blocked []string `json:"blocked,omitempty"`

	// Duration is the total session duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
