package polling

import (
	"fmt"
	"time"
)

// TimeoutError indicates the job did not finish within the attempt budget
type TimeoutError struct {
	JobID    string
	Attempts int
	Elapsed  time.Duration
	// LastErr is the status error of the final attempt, if any.
	LastErr error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s not finished after %d attempts (%s)", e.JobID, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() error {
	return e.LastErr
}

// JobFailedError indicates the backend reported the job as failed
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("job %s failed", e.JobID)
	}
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}
