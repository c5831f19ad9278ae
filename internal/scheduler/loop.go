// Package scheduler drives the burn weight-setting loop: each iteration runs
// on a fresh chain client inside an isolated worker and yields the number of
// blocks to wait before the next one.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/burner/internal/chain"
	"github.com/tensorplex-labs/burner/internal/endpoint"
)

// sleepPadding is added to every wait so the next iteration lands after the
// block boundary rather than on it.
const sleepPadding = 100 * time.Millisecond

// Loop is the perpetual scheduler. The endpoint cursor is only touched by
// the goroutine calling Run.
type Loop struct {
	opts     Options
	dial     chain.Dialer
	rotator  *endpoint.Rotator
	reporter Reporter
	sleep    Sleeper
	now      func() time.Time
}

// NewLoop builds a loop. reporter may be nil.
func NewLoop(opts Options, dial chain.Dialer, rotator *endpoint.Rotator, reporter Reporter) *Loop {
	return &Loop{
		opts:     opts,
		dial:     dial,
		rotator:  rotator,
		reporter: reporter,
		sleep:    Sleep,
		now:      time.Now,
	}
}

// WithSleeper replaces the sleeper used between and within iterations.
func (l *Loop) WithSleeper(s Sleeper) *Loop {
	l.sleep = s
	return l
}

// Run loops until ctx is cancelled. It returns nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	log.Info().Int("netuid", l.opts.Netuid).Str("endpoint_mode", l.rotator.Mode()).Msg("running burn validator")

	cursor := l.rotator.RandomCursor()
	for iteration := 1; ; iteration++ {
		if ctx.Err() != nil {
			log.Info().Msg("scheduler stopped")
			return nil
		}

		var url string
		url, cursor = l.rotator.Next(cursor)
		log.Info().Int("iteration", iteration).Str("endpoint", url).Msg("running validator loop")

		started := l.now()
		decision := l.iterate(ctx, url)
		wait := time.Duration(decision.WaitBlocks)*l.opts.BlockTime + sleepPadding
		finished := l.now()

		if l.reporter != nil {
			l.reporter.Record(Report{
				Decision:   decision,
				Iteration:  iteration,
				Endpoint:   url,
				StartedAt:  started,
				FinishedAt: finished,
				NextRunAt:  finished.Add(wait),
			})
		}

		log.Info().
			Int("wait_blocks", decision.WaitBlocks).
			Str("outcome", string(decision.Outcome)).
			Msg("waiting before next weight set")
		if err := l.sleep(ctx, wait); err != nil {
			log.Info().Msg("scheduler stopped")
			return nil
		}
	}
}

// iterate hands one cycle to a size-1 worker and blocks for its decision, so
// iterations never overlap and each gets its own client.
func (l *Loop) iterate(ctx context.Context, url string) Decision {
	results := make(chan Decision, 1)
	go func() {
		results <- l.isolated(ctx, url)
	}()
	return <-results
}

func (l *Loop) isolated(ctx context.Context, url string) (d Decision) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().
				Str("panic", fmt.Sprint(p)).
				Bytes("stack", debug.Stack()).
				Msg("iteration panicked, retrying shortly")
			d = Decision{
				WaitBlocks: l.opts.RetryBlocks,
				Outcome:    OutcomePanic,
				SelfUID:    -1,
				BurnUID:    -1,
				Err:        fmt.Sprint(p),
			}
		}
	}()

	client, err := l.dial(ctx, url)
	if err != nil {
		log.Error().Err(err).Str("endpoint", url).Msg("failed to open chain client")
		return Decision{
			WaitBlocks: l.opts.RetryBlocks,
			Outcome:    OutcomeTransient,
			SelfUID:    -1,
			BurnUID:    -1,
			Err:        err.Error(),
		}
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close chain client")
		}
	}()

	return NewCycle(client, l.opts, l.sleep).Run(ctx)
}
