// Package burn resolves the uid that receives the dominant weight, which is
// conventionally the subnet owner.
package burn

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/burner/internal/chain"
	chainutils "github.com/tensorplex-labs/burner/internal/utils/chain_utils"
)

var errNoOwnerHotkey = errors.New("subnet owner hotkey is empty")

// Resolver picks the burn uid through an ordered fallback chain.
type Resolver struct {
	client   chain.Client
	netuid   int
	override *int
}

// NewResolver builds a resolver. A non-nil override wins unconditionally.
func NewResolver(client chain.Client, netuid int, override *int) *Resolver {
	return &Resolver{client: client, netuid: netuid, override: override}
}

// Resolve returns the burn uid. Query failures fall back to the uid of the
// subnet owner hotkey; only a failure of that last step is returned, wrapped
// as chain.ErrTransientQuery.
func (r *Resolver) Resolve(ctx context.Context, neurons []chain.NeuronRecord) (int, error) {
	if r.override != nil {
		log.Info().Int("uid", *r.override).Msg("using manually specified target uid")
		return *r.override, nil
	}

	ownerColdkey, ok, err := r.client.SubnetOwnerColdkey(ctx, r.netuid)
	if err != nil {
		log.Error().Err(err).Int("netuid", r.netuid).Msg("error retrieving subnet owner coldkey")
		ok = false
	}

	if !ok {
		log.Warn().Msg("owner coldkey missing, attempting recovery via owner hotkey")
		ownerColdkey, ok = r.coldkeyFromOwnerHotkey(ctx, neurons)
		if !ok {
			return r.ownerUID(ctx)
		}
	}

	owned := chainutils.NeuronsByColdkey(neurons, ownerColdkey)
	if len(owned) == 0 {
		log.Warn().Str("coldkey", ownerColdkey).Msg("no neurons found with owner coldkey, falling back to owner uid")
		return r.ownerUID(ctx)
	}
	log.Info().Int("count", len(owned)).Msg("found owner neurons")

	candidate := EarliestRegistered(owned)
	if !candidate.HasUID() {
		log.Warn().Str("hotkey", candidate.Hotkey).Msg("burn candidate missing uid, falling back to owner uid")
		return r.ownerUID(ctx)
	}

	log.Info().Int("uid", candidate.UID).Str("coldkey", ownerColdkey).Msg("selected burn uid from owner coldkey")
	return candidate.UID, nil
}

// EarliestRegistered returns the neuron with the smallest registration block.
// Unknown registration blocks sort last; ties keep the first neuron seen.
// neurons must not be empty.
func EarliestRegistered(neurons []chain.NeuronRecord) chain.NeuronRecord {
	best := neurons[0]
	for _, n := range neurons[1:] {
		if n.RegistrationBlock == nil {
			continue
		}
		if best.RegistrationBlock == nil || *n.RegistrationBlock < *best.RegistrationBlock {
			best = n
		}
	}
	return best
}

func (r *Resolver) coldkeyFromOwnerHotkey(ctx context.Context, neurons []chain.NeuronRecord) (string, bool) {
	hotkey, err := r.ownerHotkey(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("unable to read subnet owner hotkey")
		return "", false
	}
	owner, found := chainutils.FindNeuronByHotkey(neurons, hotkey)
	if !found {
		log.Warn().Str("hotkey", hotkey).Msg("owner neuron not found in neuron list")
		return "", false
	}
	if owner.Coldkey == "" {
		log.Warn().Str("hotkey", hotkey).Msg("owner coldkey missing on neuron")
		return "", false
	}
	return owner.Coldkey, true
}

func (r *Resolver) ownerHotkey(ctx context.Context) (string, error) {
	v, err := r.client.QueryState(ctx, chain.KeySubnetOwnerHotkey, []any{r.netuid}, nil)
	if err != nil {
		return "", err
	}
	hotkey, err := v.String()
	if err != nil {
		return "", chain.NewQueryError("decode subnet owner hotkey", err)
	}
	if hotkey == "" {
		return "", chain.NewQueryError("subnet owner hotkey", errNoOwnerHotkey)
	}
	log.Info().Str("hotkey", hotkey).Msg("subnet owner hotkey")
	return hotkey, nil
}

// ownerUID is the last fallback: the uid registered under the owner hotkey.
func (r *Resolver) ownerUID(ctx context.Context) (int, error) {
	hotkey, err := r.ownerHotkey(ctx)
	if err != nil {
		return -1, fmt.Errorf("resolve owner uid: %w", err)
	}
	uid, err := r.client.UIDForHotkey(ctx, hotkey, r.netuid)
	if err != nil {
		return -1, fmt.Errorf("resolve owner uid: %w", err)
	}
	log.Info().Int("uid", uid).Msg("subnet owner uid")
	return uid, nil
}
