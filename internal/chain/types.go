// Package chain defines the subtensor collaborator contract consumed by the
// weight-setting scheduler, together with the records it returns.
package chain

import (
	"context"
)

// Storage keys read through Client.QueryState.
const (
	KeyTempo               = "Tempo"
	KeyBlocksSinceLastStep = "BlocksSinceLastStep"
	KeyValidatorPermit     = "ValidatorPermit"
	KeyWeightsVersionKey   = "WeightsVersionKey"
	KeySubnetworkN         = "SubnetworkN"
	KeyMinAllowedWeights   = "MinAllowedWeights"
	KeyMaxWeightsLimit     = "MaxWeightsLimit"
	KeySubnetOwnerHotkey   = "SubnetOwnerHotkey"
)

// Client is everything the scheduler needs from the chain. A Client is opened
// for a single iteration and closed afterwards.
type Client interface {
	CurrentBlock(ctx context.Context) (int, error)
	QueryState(ctx context.Context, key string, params []any, atBlock *int) (StateValue, error)
	IsRegistered(ctx context.Context, hotkey string, netuid int) (bool, error)
	UIDForHotkey(ctx context.Context, hotkey string, netuid int) (int, error)
	// ListNeurons fails soft: any error yields an empty slice.
	ListNeurons(ctx context.Context, netuid int) []NeuronRecord
	// SubnetOwnerColdkey reports ok=false when the subnet has no owner coldkey recorded.
	SubnetOwnerColdkey(ctx context.Context, netuid int) (coldkey string, ok bool, err error)
	MechanismCount(ctx context.Context, netuid int) (int, error)
	MechanismEmissionSplit(ctx context.Context, netuid int) ([]float64, error)
	// SubmitWeights blocks until inclusion and finalization when requested.
	SubmitWeights(ctx context.Context, params SubmitWeightsParams) (ok bool, message string, err error)
	Identity(ctx context.Context) (Identity, error)
	Close() error
}

// NetworkState is a snapshot of the subnet's position inside its tempo.
type NetworkState struct {
	CurrentBlock        int
	Tempo               int
	BlocksSinceLastStep int
}

// Identity is a hotkey/coldkey pair in SS58 form.
type Identity struct {
	Hotkey  string
	Coldkey string
}

// NeuronRecord is one registered participant of a subnet.
type NeuronRecord struct {
	UID             int
	Hotkey          string
	Coldkey         string
	Stake           float64
	ValidatorPermit bool
	IsValidator     bool
	// RegistrationBlock is nil when the chain did not report it.
	RegistrationBlock *int
}

// HasUID reports whether the record carries a usable uid.
func (n NeuronRecord) HasUID() bool {
	return n.UID >= 0
}

// SubmitWeightsParams is one set-weights extrinsic for one mechanism.
type SubmitWeightsParams struct {
	Identity            Identity
	Netuid              int
	UIDs                []int
	Weights             []float64
	MechanismID         int
	VersionKey          int
	WaitForInclusion    bool
	WaitForFinalization bool
}

// Dialer opens a fresh Client against endpoint.
type Dialer func(ctx context.Context, endpoint string) (Client, error)
