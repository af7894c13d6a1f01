package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/hordedream/internal/horde"
)

// Phase is the step of the generation flow a job is in.
type Phase int

const (
	PhaseSubmitting Phase = iota
	PhasePolling
	PhaseCancelling
	PhaseRetrieving
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseSubmitting:
		return "submitting"
	case PhasePolling:
		return "polling"
	case PhaseCancelling:
		return "cancelling"
	case PhaseRetrieving:
		return "retrieving"
	case PhaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Snapshot represents the latest job progress available to the UI.
type Snapshot struct {
	JobID               string
	Requested           int
	Phase               Phase
	Check               horde.CheckResponse
	HasCheck            bool
	Polls               int
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive check failures
}

// IsOffline returns true when the Horde has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot. A nil *Store is valid
// and ignores every call.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Begin resets the store for a newly accepted job.
func (s *Store) Begin(jobID string, requested int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = Snapshot{
		JobID:       jobID,
		Requested:   requested,
		Phase:       PhasePolling,
		LastUpdated: time.Now(),
	}
}

// SetPhase records a phase transition.
func (s *Store) SetPhase(p Phase) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Phase = p
	s.snapshot.LastUpdated = time.Now()
}

// Update records one check observation. When err is non-nil the previous data
// is kept but the error is recorded for visibility.
func (s *Store) Update(check *horde.CheckResponse, err error) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Polls++
	s.snapshot.LastUpdated = time.Now()
	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
		return
	}

	if check != nil {
		s.snapshot.Check = *check
		s.snapshot.HasCheck = true
	}
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}
