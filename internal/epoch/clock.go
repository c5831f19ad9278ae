// Package epoch tracks where a subnet sits inside its tempo and when the next
// weight-setting window opens.
package epoch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/burner/internal/chain"
)

var (
	errEmptyValue = errors.New("storage value is empty")
	errBadTempo   = errors.New("tempo must be positive")
)

// BlocksUntilEpoch is the number of blocks left in the current tempo.
func BlocksUntilEpoch(state chain.NetworkState) int {
	return state.Tempo - state.BlocksSinceLastStep
}

// NextPerfectOpportunity returns 0 when the submission window (the last delta
// blocks of the tempo) is open, otherwise the blocks to wait until it opens.
func NextPerfectOpportunity(state chain.NetworkState, delta int) int {
	wait := BlocksUntilEpoch(state) - delta
	if wait < 1 {
		// too late for this tempo, aim for the next one
		return wait + state.Tempo
	}
	if wait <= delta {
		return 0
	}
	return wait
}

// Clock reads tempo state from the chain. Nothing is cached; every call
// reads fresh state.
type Clock struct {
	client chain.Client
	netuid int
	delta  int
}

func NewClock(client chain.Client, netuid, delta int) *Clock {
	return &Clock{client: client, netuid: netuid, delta: delta}
}

// State reads the current block, tempo and blocks since the last step.
func (c *Clock) State(ctx context.Context) (chain.NetworkState, error) {
	block, err := c.client.CurrentBlock(ctx)
	if err != nil {
		return chain.NetworkState{}, fmt.Errorf("read current block: %w", err)
	}

	tempoVal, err := c.client.QueryState(ctx, chain.KeyTempo, []any{c.netuid}, nil)
	if err != nil {
		return chain.NetworkState{}, fmt.Errorf("read tempo: %w", err)
	}
	if tempoVal.IsNull() {
		return chain.NetworkState{}, chain.NewQueryError("decode tempo", errEmptyValue)
	}
	tempo, err := tempoVal.Int()
	if err != nil {
		return chain.NetworkState{}, chain.NewQueryError("decode tempo", err)
	}
	if tempo <= 0 {
		return chain.NetworkState{}, chain.NewQueryError("decode tempo", fmt.Errorf("%w: %d", errBadTempo, tempo))
	}

	sinceVal, err := c.client.QueryState(ctx, chain.KeyBlocksSinceLastStep, []any{c.netuid}, &block)
	if err != nil {
		return chain.NetworkState{}, fmt.Errorf("read blocks since last step: %w", err)
	}
	if sinceVal.IsNull() {
		return chain.NetworkState{}, chain.NewQueryError("decode blocks since last step", errEmptyValue)
	}
	since, err := sinceVal.Int()
	if err != nil {
		return chain.NetworkState{}, chain.NewQueryError("decode blocks since last step", err)
	}

	log.Info().
		Int("netuid", c.netuid).
		Int("block", block).
		Int("tempo", tempo).
		Int("blocks_since_last_step", since).
		Msg("read tempo state")

	return chain.NetworkState{CurrentBlock: block, Tempo: tempo, BlocksSinceLastStep: since}, nil
}

// BlocksUntilNextEpoch reads fresh state and returns the blocks left in the tempo.
func (c *Clock) BlocksUntilNextEpoch(ctx context.Context) (int, error) {
	state, err := c.State(ctx)
	if err != nil {
		return 0, err
	}
	blocks := BlocksUntilEpoch(state)
	log.Info().Int("blocks", blocks).Msg("blocks until next epoch")
	return blocks, nil
}

// NextOpportunity reads fresh state and returns NextPerfectOpportunity.
func (c *Clock) NextOpportunity(ctx context.Context) (int, error) {
	state, err := c.State(ctx)
	if err != nil {
		return 0, err
	}
	wait := NextPerfectOpportunity(state, c.delta)
	log.Info().Int("blocks", wait).Msg("next perfect weight setting opportunity")
	return wait, nil
}
