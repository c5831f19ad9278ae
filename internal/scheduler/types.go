package scheduler

import (
	"context"
	"time"
)

// Outcome names how an iteration ended.
type Outcome string

const (
	OutcomeSubmitted     Outcome = "submitted"
	OutcomeSubmitFailed  Outcome = "submit_failed"
	OutcomeNotRegistered Outcome = "not_registered"
	OutcomeNoPermit      Outcome = "no_permit"
	OutcomeNoNeurons     Outcome = "no_neurons"
	OutcomeTransient     Outcome = "transient_error"
	OutcomePanic         Outcome = "panic"
)

// Decision is the result of one iteration: how many blocks to wait before the
// next one, plus what was learned on the way for reporting.
type Decision struct {
	WaitBlocks int
	Outcome    Outcome
	// SelfUID and BurnUID are -1 when the iteration did not get that far.
	SelfUID int
	BurnUID int
	Err     string
}

// Report is published after every iteration.
type Report struct {
	Decision
	Iteration  int
	Endpoint   string
	StartedAt  time.Time
	FinishedAt time.Time
	NextRunAt  time.Time
}

// Reporter receives iteration reports. Implementations must be safe for use
// from the loop goroutine while being read elsewhere.
type Reporter interface {
	Record(Report)
}

// Sleeper blocks for d or until ctx is done, returning ctx.Err() in the
// latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the production Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options are the per-process scheduler settings.
type Options struct {
	Netuid int
	// TargetUID pins the burn uid when non-nil.
	TargetUID *int
	// ExpectedHotkey, when set, must match the hotkey loaded by Kami.
	ExpectedHotkey string
	BlockTime      time.Duration
	Delta          int
	RetryBlocks    int
	SubmitAttempts int
}
