package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every ConfigurationError.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrInterrupted is returned by a run that was cancelled before its input was
// exhausted. Output produced up to that point has been flushed.
var ErrInterrupted = errors.New("interrupted")

// ConfigurationError reports an option that was rejected before any work started.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrInvalidConfig }

func NewConfigError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
