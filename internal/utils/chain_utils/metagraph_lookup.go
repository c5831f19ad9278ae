package chainutils

import "github.com/tensorplex-labs/burner/internal/chain"

// FindNeuronByHotkey returns the first neuron registered under hotkey.
func FindNeuronByHotkey(neurons []chain.NeuronRecord, hotkey string) (chain.NeuronRecord, bool) {
	for _, n := range neurons {
		if n.Hotkey == hotkey {
			return n, true
		}
	}
	return chain.NeuronRecord{}, false
}

// NeuronsByColdkey returns the neurons controlled by coldkey in metagraph order.
func NeuronsByColdkey(neurons []chain.NeuronRecord, coldkey string) []chain.NeuronRecord {
	var out []chain.NeuronRecord
	for _, n := range neurons {
		if n.Coldkey == coldkey {
			out = append(out, n)
		}
	}
	return out
}
