package schema

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a malformed business view. Fatal at build
// time; never retried.
type ConfigurationError struct {
	Element string // the measure/dimension/join that failed
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("business view configuration: %s: %s", e.Element, e.Message)
	}
	return fmt.Sprintf("business view configuration: %s", e.Message)
}

// NotFoundError reports a reference to an entity the view does not declare.
type NotFoundError struct {
	Kind string // "measure", "dimension", "table"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found in business view", e.Kind, e.Name)
}

// UnreachableJoinError reports that the join graph does not connect a
// required table to the root table.
type UnreachableJoinError struct {
	Root  string
	Table string
}

func (e *UnreachableJoinError) Error() string {
	return fmt.Sprintf("no join path from %q to %q", e.Root, e.Table)
}

// IsNotFound reports whether err is a NotFoundError, unwrapping as needed.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
