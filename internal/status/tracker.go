// Package status exposes the scheduler's last decision over HTTP.
package status

import (
	"sync"
	"time"

	"github.com/tensorplex-labs/burner/internal/scheduler"
)

// IterationStatus is the JSON view of one scheduler report.
type IterationStatus struct {
	Iteration  int       `json:"iteration"`
	Endpoint   string    `json:"endpoint"`
	Outcome    string    `json:"outcome"`
	WaitBlocks int       `json:"wait_blocks"`
	SelfUID    int       `json:"self_uid"`
	BurnUID    int       `json:"burn_uid"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	NextRunAt  time.Time `json:"next_run_at"`
}

// Snapshot is the full status document.
type Snapshot struct {
	Netuid        int              `json:"netuid"`
	StartedAt     time.Time        `json:"started_at"`
	Iterations    int              `json:"iterations"`
	LastSubmitted *time.Time       `json:"last_submitted,omitempty"`
	Last          *IterationStatus `json:"last,omitempty"`
}

// Tracker keeps the latest snapshot. It implements scheduler.Reporter.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

var _ scheduler.Reporter = (*Tracker)(nil)

func NewTracker(netuid int, startedAt time.Time) *Tracker {
	return &Tracker{snap: Snapshot{Netuid: netuid, StartedAt: startedAt}}
}

// Record stores the report as the latest iteration.
func (t *Tracker) Record(r scheduler.Report) {
	last := &IterationStatus{
		Iteration:  r.Iteration,
		Endpoint:   r.Endpoint,
		Outcome:    string(r.Outcome),
		WaitBlocks: r.WaitBlocks,
		SelfUID:    r.SelfUID,
		BurnUID:    r.BurnUID,
		Error:      r.Err,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		NextRunAt:  r.NextRunAt,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Iterations++
	t.snap.Last = last
	if r.Outcome == scheduler.OutcomeSubmitted {
		at := r.FinishedAt
		t.snap.LastSubmitted = &at
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.snap
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	if s.LastSubmitted != nil {
		at := *s.LastSubmitted
		s.LastSubmitted = &at
	}
	return s
}
