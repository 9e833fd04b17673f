package executor

import (
	"errors"
	"fmt"
)

// ErrorClass categorizes query execution failures. Only connection-class
// failures are sensible to retry with backoff; syntax, timeout, and
// row-limit failures are deterministic for a given plan and data source.
type ErrorClass string

const (
	ClassConnection ErrorClass = "connection"
	ClassSyntax     ErrorClass = "syntax"
	ClassTimeout    ErrorClass = "timeout"
	ClassRowLimit   ErrorClass = "row_limit"
)

// QueryExecutionError wraps every data-source failure behind one type.
// Callers branch on Class, never on the underlying driver error.
type QueryExecutionError struct {
	Message   string
	QueryName string
	Class     ErrorClass
	// OriginalError preserves the low-level cause for logging. It is
	// deliberately not exposed via Unwrap: callers must not couple to
	// driver error types.
	OriginalError error
}

func (e *QueryExecutionError) Error() string {
	if e.QueryName != "" {
		return fmt.Sprintf("query %q failed (%s): %s", e.QueryName, e.Class, e.Message)
	}
	return fmt.Sprintf("query failed (%s): %s", e.Class, e.Message)
}

// Retryable reports whether the caller may retry with backoff.
func (e *QueryExecutionError) Retryable() bool {
	return e.Class == ClassConnection
}

// IsExecution reports whether err is a QueryExecutionError.
func IsExecution(err error) bool {
	var qe *QueryExecutionError
	return errors.As(err, &qe)
}

// ClassOf returns the error class, or "" when err is not a
// QueryExecutionError.
func ClassOf(err error) ErrorClass {
	var qe *QueryExecutionError
	if errors.As(err, &qe) {
		return qe.Class
	}
	return ""
}
