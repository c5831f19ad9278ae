package weights

import (
	"sort"

	"github.com/tensorplex-labs/burner/internal/chain"
)

// SelectEpsilon picks the uids that receive the minimal epsilon weight so the
// vector reaches minAllowed entries. The result is deterministic for a given
// neuron list so every validator of the owner derives a compatible set while
// spreading load across different validators. selfUID < 0 means unknown.
func SelectEpsilon(neurons []chain.NeuronRecord, selfUID, burnUID, minAllowed int) []int {
	target := max(minAllowed-1, 0)
	if target == 0 {
		return []int{}
	}

	selected := make([]int, 0, target)
	excluded := map[int]struct{}{burnUID: {}}

	if selfUID >= 0 && selfUID != burnUID {
		selected = append(selected, selfUID)
		excluded[selfUID] = struct{}{}
	}

	remaining := target - len(selected)
	if remaining <= 0 {
		return selected
	}

	pool, myIndex := CandidatePool(neurons, selfUID, burnUID)
	if len(pool) == 0 {
		return selected
	}

	start := RotationStart(myIndex, remaining, len(pool))
	selected = append(selected, Walk(pool, start, target-len(selected), excluded)...)

	if len(selected) < target {
		for _, n := range neurons {
			if !n.HasUID() {
				continue
			}
			if _, skip := excluded[n.UID]; skip {
				continue
			}
			selected = append(selected, n.UID)
			excluded[n.UID] = struct{}{}
			if len(selected) >= target {
				break
			}
		}
	}

	if len(selected) > target {
		selected = selected[:target]
	}
	return selected
}

// CandidatePool returns validator uids ordered by descending stake, without
// the burn uid and without duplicates, plus the position of selfUID in that
// order (0 when absent).
func CandidatePool(neurons []chain.NeuronRecord, selfUID, burnUID int) ([]int, int) {
	validators := make([]chain.NeuronRecord, 0, len(neurons))
	for _, n := range neurons {
		if n.IsValidator || n.ValidatorPermit {
			validators = append(validators, n)
		}
	}
	sort.SliceStable(validators, func(i, j int) bool {
		return validators[i].Stake > validators[j].Stake
	})

	pool := make([]int, 0, len(validators))
	seen := make(map[int]struct{}, len(validators))
	myIndex := -1
	for _, n := range validators {
		if !n.HasUID() || n.UID == burnUID {
			continue
		}
		if _, dup := seen[n.UID]; !dup {
			seen[n.UID] = struct{}{}
			pool = append(pool, n.UID)
		}
		if n.UID == selfUID && myIndex < 0 {
			myIndex = len(pool) - 1
		}
	}
	if myIndex < 0 {
		myIndex = 0
	}
	return pool, myIndex
}

// RotationStart is the offset into the candidate pool where this validator
// starts picking. The formula is shared by every validator running the burn
// scheduler and must not change.
func RotationStart(myIndex, remaining, count int) int {
	if count <= 0 {
		return 0
	}
	return (myIndex * remaining) % count
}

// Walk visits pool circularly from start for at most two passes and returns up
// to want uids not in excluded. Picked uids are added to excluded.
func Walk(pool []int, start, want int, excluded map[int]struct{}) []int {
	out := make([]int, 0, want)
	count := len(pool)
	for offset := 0; len(out) < want && offset < count*2; offset++ {
		uid := pool[(start+offset)%count]
		if _, skip := excluded[uid]; skip {
			continue
		}
		out = append(out, uid)
		excluded[uid] = struct{}{}
	}
	return out
}
