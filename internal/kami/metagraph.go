package kami

import "github.com/tensorplex-labs/burner/internal/chain"

func at[T any](s []T, i int) (T, bool) {
	var zero T
	if i < 0 || i >= len(s) {
		return zero, false
	}
	return s[i], true
}

// NeuronsFromMetagraph zips the per-uid metagraph columns into neuron records.
// Columns shorter than the hotkey list leave the matching fields at their zero
// value; a missing registration block stays nil.
func NeuronsFromMetagraph(mg *SubnetMetagraph) []chain.NeuronRecord {
	neurons := make([]chain.NeuronRecord, 0, len(mg.Hotkeys))
	for uid, hotkey := range mg.Hotkeys {
		n := chain.NeuronRecord{UID: uid, Hotkey: hotkey}
		n.Coldkey, _ = at(mg.Coldkeys, uid)
		n.Stake, _ = at(mg.TotalStake, uid)
		n.ValidatorPermit, _ = at(mg.ValidatorPermit, uid)
		if div, ok := at(mg.Dividends, uid); ok {
			n.IsValidator = div > 0
		}
		if reg, ok := at(mg.BlockAtRegistration, uid); ok {
			n.RegistrationBlock = &reg
		}
		neurons = append(neurons, n)
	}
	return neurons
}
