package model

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ConfigurationError reports malformed input, named by the offending field.
// Rejected at the boundary before any planning year is processed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// NewConfigurationError builds a ConfigurationError for the given field.
func NewConfigurationError(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StructuralInfeasibilityError reports a year in which positive demand exists
// but no facility configuration can serve any of it. Fatal to the run, unlike
// unserved demand, which is degraded-but-valid data.
type StructuralInfeasibilityError struct {
	Year   int
	Reason string
}

func (e *StructuralInfeasibilityError) Error() string {
	return fmt.Sprintf("structurally infeasible in year %d: %s", e.Year, e.Reason)
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return eris.As(err, &ce)
}

// IsStructuralInfeasibility reports whether err is (or wraps) a
// StructuralInfeasibilityError.
func IsStructuralInfeasibility(err error) bool {
	var se *StructuralInfeasibilityError
	return eris.As(err, &se)
}
