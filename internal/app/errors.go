package app

import "fmt"

// FaultedJobError reports a job the Horde could not complete. Request is the
// redacted request description to hand to the Horde administrators.
type FaultedJobError struct {
	JobID   string
	Request string
}

func (e *FaultedJobError) Error() string {
	return fmt.Sprintf("job %s faulted; request details: %s", e.JobID, e.Request)
}

// PartialDownloadError records one generation that could not be saved. The
// other generations of the job are still processed.
type PartialDownloadError struct {
	Index        int
	GenerationID string
	Path         string
	Err          error
}

func (e PartialDownloadError) Error() string {
	return fmt.Sprintf("generation %d (%s) not saved to %s: %v", e.Index, e.GenerationID, e.Path, e.Err)
}

func (e PartialDownloadError) Unwrap() error { return e.Err }
