package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/burner/internal/burn"
	"github.com/tensorplex-labs/burner/internal/chain"
	"github.com/tensorplex-labs/burner/internal/epoch"
	"github.com/tensorplex-labs/burner/internal/submission"
	chainutils "github.com/tensorplex-labs/burner/internal/utils/chain_utils"
	"github.com/tensorplex-labs/burner/internal/weights"
)

var errHotkeyMismatch = errors.New("keyring hotkey does not match WALLET_HOTKEY")

// Cycle runs one weight-setting iteration against a single client.
type Cycle struct {
	client chain.Client
	opts   Options
	sleep  Sleeper
	clock  *epoch.Clock
}

func NewCycle(client chain.Client, opts Options, sleep Sleeper) *Cycle {
	if sleep == nil {
		sleep = Sleep
	}
	return &Cycle{
		client: client,
		opts:   opts,
		sleep:  sleep,
		clock:  epoch.NewClock(client, opts.Netuid, opts.Delta),
	}
}

// Run walks registration, permit, payload and submission, and returns how
// long to wait before the next iteration.
func (c *Cycle) Run(ctx context.Context) Decision {
	d := Decision{SelfUID: -1, BurnUID: -1}

	self, err := c.identity(ctx)
	if err != nil {
		return c.transient(d, "load identity", err)
	}
	log.Info().Str("hotkey", self.Hotkey).Msg("validator identity")

	registered, err := c.client.IsRegistered(ctx, self.Hotkey, c.opts.Netuid)
	if err != nil {
		return c.transient(d, "check registration", err)
	}
	log.Info().Bool("registered", registered).Msg("registration status")
	if !registered {
		log.Info().Msg("not registered, wait until next epoch")
		return c.untilEpoch(ctx, d, OutcomeNotRegistered)
	}

	selfUID, permitted, err := c.validatorPermit(ctx, self.Hotkey)
	if err != nil {
		return c.transient(d, "check validator permit", err)
	}
	d.SelfUID = selfUID
	if !permitted {
		log.Info().Msg("no validator permit, wait until next epoch")
		return c.untilEpoch(ctx, d, OutcomeNoPermit)
	}

	versionKey, err := c.versionKey(ctx)
	if err != nil {
		return c.transient(d, "read weights version key", err)
	}

	neurons := c.client.ListNeurons(ctx, c.opts.Netuid)
	if len(neurons) == 0 {
		log.Warn().Msg("unable to retrieve neurons, retrying shortly")
		d.Outcome = OutcomeNoNeurons
		d.WaitBlocks = c.opts.RetryBlocks
		return d
	}

	burnUID, err := burn.NewResolver(c.client, c.opts.Netuid, c.opts.TargetUID).Resolve(ctx, neurons)
	if err != nil {
		return c.transient(d, "resolve burn uid", err)
	}
	d.BurnUID = burnUID
	log.Info().Int("burn_uid", burnUID).Msg("burn uid")

	payload := weights.NewBuilder(c.client, c.opts.Netuid).Build(ctx, neurons, burnUID, selfUID)

	controller := submission.NewController(c.client, c.opts.Netuid, c.opts.SubmitAttempts, c.opts.BlockTime)
	if !controller.Submit(ctx, self, payload, versionKey) {
		return c.untilEpoch(ctx, d, OutcomeSubmitFailed)
	}

	settle := c.opts.BlockTime * time.Duration(c.opts.Delta)
	log.Info().Str("pause", settle.String()).Msg("sleeping after setting weights")
	if err := c.sleep(ctx, settle); err != nil {
		return c.transient(d, "settle after submission", err)
	}

	wait, err := c.clock.NextOpportunity(ctx)
	if err != nil {
		return c.transient(d, "compute next opportunity", err)
	}
	d.Outcome = OutcomeSubmitted
	d.WaitBlocks = wait
	return d
}

func (c *Cycle) identity(ctx context.Context) (chain.Identity, error) {
	self, err := c.client.Identity(ctx)
	if err != nil {
		return chain.Identity{}, err
	}
	if err := chainutils.ValidateSS58(self.Hotkey); err != nil {
		return chain.Identity{}, fmt.Errorf("keyring hotkey %q: %w", self.Hotkey, err)
	}
	if c.opts.ExpectedHotkey != "" && self.Hotkey != c.opts.ExpectedHotkey {
		return chain.Identity{}, fmt.Errorf("%w: got %s, want %s", errHotkeyMismatch, self.Hotkey, c.opts.ExpectedHotkey)
	}
	return self, nil
}

// validatorPermit returns this hotkey's uid and whether the permit bitmap
// grants it a permit. A uid outside the bitmap counts as no permit.
func (c *Cycle) validatorPermit(ctx context.Context, hotkey string) (int, bool, error) {
	raw, err := c.client.QueryState(ctx, chain.KeyValidatorPermit, []any{c.opts.Netuid}, nil)
	if err != nil {
		return -1, false, err
	}
	permits, err := raw.Bools()
	if err != nil {
		return -1, false, chain.NewQueryError("decode validator permit", err)
	}

	uid, err := c.client.UIDForHotkey(ctx, hotkey, c.opts.Netuid)
	if err != nil {
		return -1, false, err
	}
	log.Info().Int("uid", uid).Msg("validator uid")

	if uid < 0 || uid >= len(permits) {
		log.Error().Int("uid", uid).Int("permits", len(permits)).Msg("uid outside validator permit list")
		return uid, false, nil
	}
	log.Info().Bool("permit", permits[uid]).Msg("validator permit")
	return uid, permits[uid], nil
}

func (c *Cycle) versionKey(ctx context.Context) (int, error) {
	raw, err := c.client.QueryState(ctx, chain.KeyWeightsVersionKey, []any{c.opts.Netuid}, nil)
	if err != nil {
		return 0, err
	}
	key, err := raw.Int()
	if err != nil {
		return 0, chain.NewQueryError("decode weights version key", err)
	}
	log.Info().Int("version_key", key).Msg("weights version key")
	return key, nil
}

func (c *Cycle) untilEpoch(ctx context.Context, d Decision, outcome Outcome) Decision {
	wait, err := c.clock.BlocksUntilNextEpoch(ctx)
	if err != nil {
		return c.transient(d, "compute blocks until epoch", err)
	}
	d.Outcome = outcome
	d.WaitBlocks = wait
	return d
}

func (c *Cycle) transient(d Decision, step string, err error) Decision {
	log.Error().Err(err).Str("step", step).Int("retry_blocks", c.opts.RetryBlocks).Msg("iteration failed, retrying shortly")
	d.Outcome = OutcomeTransient
	d.WaitBlocks = c.opts.RetryBlocks
	d.Err = fmt.Sprintf("%s: %v", step, err)
	return d
}
