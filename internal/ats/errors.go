package ats

import "fmt"

// ConfigError indicates an invalid scoring configuration
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid scoring config %s: %s", e.Field, e.Message)
}
