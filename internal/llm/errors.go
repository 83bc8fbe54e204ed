package llm

import "fmt"

// GenerationError represents a failed LLM call
type GenerationError struct {
	Model   string
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	prefix := "llm error"
	if e.Model != "" {
		prefix = fmt.Sprintf("llm error (%s)", e.Model)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}
