package analysis

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when an analysis is cancelled or superseded
// before it finishes.
var ErrCancelled = errors.New("analysis cancelled")

// ValidationError indicates unusable analysis input
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// ConfigError indicates a controller built without a required dependency
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("analysis config error: %s", e.Message)
}
