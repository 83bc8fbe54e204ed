package cache

import "fmt"

// StoreError wraps a failure of the underlying store
type StoreError struct {
	Backend string
	Op      string
	Cause   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s cache %s failed: %v", e.Backend, e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}
