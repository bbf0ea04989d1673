package jobs

import "fmt"

// MissingJobError reports a job id with no backing record.
type MissingJobError struct {
	JobID int
}

func (e *MissingJobError) Error() string {
	return fmt.Sprintf("job %d not found", e.JobID)
}
