package comparison

import "fmt"

// ParseError indicates a comparison payload that could not be turned into a
// canonical result
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("comparison parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("comparison parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
