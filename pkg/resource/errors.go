package resource

import (
	"errors"
	"fmt"
)

// Sentinel errors for expression parsing.
var (
	// ErrEmptyExpression is returned when an expression text is blank.
	ErrEmptyExpression = errors.New("expression is empty")

	// ErrNoResourceReference is returned when an expression reads no resource.
	ErrNoResourceReference = errors.New("expression references no resource")

	// ErrMultipleResources is returned when an expression reads more than one
	// resource. Each requirement expression must read exactly one.
	ErrMultipleResources = errors.New("expression references multiple resources")
)

// ExpressionError wraps parse and evaluation failures with the offending
// expression text.
//
// Evaluation failures are never folded into an ordinary "evaluates to false"
// outcome; callers computing readiness must surface them.
type ExpressionError struct {
	// Op is the failing operation: "parse" or "evaluate".
	Op string

	// Text is the original expression source text.
	Text string

	// Err is the underlying error.
	Err error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("%s expression %q: %v", e.Op, e.Text, e.Err)
}

func (e *ExpressionError) Unwrap() error {
	return e.Err
}

// IsExpressionError reports whether err is an ExpressionError.
func IsExpressionError(err error) bool {
	var exprErr *ExpressionError
	return errors.As(err, &exprErr)
}
