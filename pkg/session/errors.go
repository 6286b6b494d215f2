package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for session state operations.
var (
	// ErrRelatedJobRequired indicates an inhibitor cause that demands a
	// related job was constructed without one.
	ErrRelatedJobRequired = errors.New("related job is required for this cause")

	// ErrRelatedJobForbidden indicates an undesired inhibitor was given a
	// related job.
	ErrRelatedJobForbidden = errors.New("related job is not allowed for this cause")

	// ErrRelatedExpressionRequired indicates a resource-cause inhibitor was
	// constructed without its expression.
	ErrRelatedExpressionRequired = errors.New("related expression is required for this cause")

	// ErrRelatedExpressionForbidden indicates a non-resource cause was given
	// an expression.
	ErrRelatedExpressionForbidden = errors.New("related expression is not allowed for this cause")

	// ErrUnknownCause indicates a cause value outside the defined set.
	ErrUnknownCause = errors.New("unknown inhibitor cause")

	// ErrNotAJob indicates a value that is not a concrete job definition was
	// assigned where one is required.
	ErrNotAJob = errors.New("value is not a concrete job definition")

	// ErrUnknownJob indicates a job id with no state in this session.
	ErrUnknownJob = errors.New("job is not enrolled in this session")

	// ErrDuplicateJob indicates a second enrollment of an already-tracked id.
	ErrDuplicateJob = errors.New("job is already enrolled in this session")
)

// ConfigurationError reports an inhibitor constructed with an invalid
// cause/field pairing. It is always a programmer or integration error,
// never an expected runtime condition.
type ConfigurationError struct {
	// Cause is the inhibitor cause being constructed.
	Cause Cause

	// Err is the violated pairing rule.
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("inhibitor %s: %v", e.Cause, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// InvalidAssignmentError reports an illegal assignment to a guarded job
// state field, such as storing something other than a concrete job
// definition into via_job.
type InvalidAssignmentError struct {
	// Field is the guarded field name.
	Field string

	// Err is the violated rule.
	Err error
}

func (e *InvalidAssignmentError) Error() string {
	return fmt.Sprintf("assign %s: %v", e.Field, e.Err)
}

func (e *InvalidAssignmentError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsInvalidAssignment reports whether err is an InvalidAssignmentError.
func IsInvalidAssignment(err error) bool {
	var asgErr *InvalidAssignmentError
	return errors.As(err, &asgErr)
}
