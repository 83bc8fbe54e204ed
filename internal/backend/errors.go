package backend

import "fmt"

// TransportError represents a failed request to the analysis backend: a
// network failure, a timeout or a non-success status.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *TransportError) Error() string {
	status := ""
	if e.StatusCode != 0 {
		status = fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("backend %s%s: %s: %v", e.Endpoint, status, e.Message, e.Cause)
	}
	return fmt.Sprintf("backend %s%s: %s", e.Endpoint, status, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ParseError represents a backend response that could not be decoded
type ParseError struct {
	Endpoint string
	Message  string
	Cause    error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("backend %s: %s: %v", e.Endpoint, e.Message, e.Cause)
	}
	return fmt.Sprintf("backend %s: %s", e.Endpoint, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
