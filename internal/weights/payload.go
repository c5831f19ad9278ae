// Package weights builds the weight vector submitted by the burn validator.
package weights

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/burner/internal/chain"
)

var errEmptyValue = errors.New("storage value is empty")

const (
	defaultMinAllowedWeights = 1
	defaultMaxWeightsLimit   = 65535
)

// Entry is one (uid, weight) pair.
type Entry struct {
	UID    int
	Weight float64
}

// Vector is an ordered weight vector; the first entry is the burn uid.
type Vector []Entry

// UIDs returns the uids in order.
func (v Vector) UIDs() []int {
	out := make([]int, len(v))
	for i, e := range v {
		out[i] = e.UID
	}
	return out
}

// Weights returns the weights in order.
func (v Vector) Weights() []float64 {
	out := make([]float64, len(v))
	for i, e := range v {
		out[i] = e.Weight
	}
	return out
}

// Limits are the subnet hyperparameters that shape the vector.
type Limits struct {
	SubnetN           int
	MinAllowedWeights int
	MaxWeightsLimit   int
}

// Builder reads subnet limits and composes weight vectors.
type Builder struct {
	client chain.Client
	netuid int
}

func NewBuilder(client chain.Client, netuid int) *Builder {
	return &Builder{client: client, netuid: netuid}
}

// Build reads the current limits and composes the vector for burnUID.
func (b *Builder) Build(ctx context.Context, neurons []chain.NeuronRecord, burnUID, selfUID int) Vector {
	limits := b.Limits(ctx)
	v := Compose(neurons, burnUID, selfUID, limits)
	log.Info().
		Ints("uids", v.UIDs()).
		Floats64("weights", v.Weights()).
		Msg("prepared weight payload")
	return v
}

// Limits reads SubnetworkN, MinAllowedWeights and MaxWeightsLimit. Failed or
// malformed reads fall back to 1 and 65535 respectively.
func (b *Builder) Limits(ctx context.Context) Limits {
	var l Limits

	if n, err := b.readInt(ctx, chain.KeySubnetworkN); err != nil {
		log.Warn().Err(err).Msg("error fetching SubnetworkN")
	} else {
		l.SubnetN = n
		log.Info().Int("subnet_n", n).Msg("subnet size")
	}

	l.MinAllowedWeights = b.readLimit(ctx, chain.KeyMinAllowedWeights, defaultMinAllowedWeights)
	l.MaxWeightsLimit = b.readLimit(ctx, chain.KeyMaxWeightsLimit, defaultMaxWeightsLimit)
	log.Info().
		Int("min_allowed_weights", l.MinAllowedWeights).
		Int("max_weights_limit", l.MaxWeightsLimit).
		Msg("weight limits")
	return l
}

func (b *Builder) readLimit(ctx context.Context, key string, fallback int) int {
	v, err := b.readInt(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Int("fallback", fallback).Msg("error fetching weight limit")
		return fallback
	}
	return max(v, 1)
}

func (b *Builder) readInt(ctx context.Context, key string) (int, error) {
	raw, err := b.client.QueryState(ctx, key, []any{b.netuid}, nil)
	if err != nil {
		return 0, err
	}
	if raw.IsNull() {
		return 0, chain.NewQueryError("query "+key, errEmptyValue)
	}
	return raw.Int()
}

// Compose builds the vector. With a minimum of one weight the whole weight
// goes to burnUID; otherwise burnUID gets MaxWeightsLimit and each epsilon
// uid gets 1.
func Compose(neurons []chain.NeuronRecord, burnUID, selfUID int, limits Limits) Vector {
	if limits.MinAllowedWeights <= 1 {
		return Vector{{UID: burnUID, Weight: 1.0}}
	}

	epsilon := SelectEpsilon(neurons, selfUID, burnUID, limits.MinAllowedWeights)
	log.Info().Ints("epsilon_uids", epsilon).Msg("selected epsilon uids")

	v := make(Vector, 0, len(epsilon)+1)
	v = append(v, Entry{UID: burnUID, Weight: float64(limits.MaxWeightsLimit)})
	for _, uid := range epsilon {
		v = append(v, Entry{UID: uid, Weight: 1})
	}
	return v
}
