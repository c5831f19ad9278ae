package chainutils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	U16MAX = 65535
)

// ConvertWeightsAndUidsForEmit normalises float weights so the largest becomes
// U16MAX and drops entries that round to zero, as the chain expects u16 weights.
func ConvertWeightsAndUidsForEmit(uids []int, weights []float64) ([]int, []int, error) {
	if len(uids) != len(weights) {
		return nil, nil, fmt.Errorf("uids and weights must have the same length, got %d and %d", len(uids), len(weights))
	}
	if len(uids) == 0 {
		return []int{}, []int{}, nil
	}

	if floats.Min(weights) < 0 {
		return nil, nil, fmt.Errorf("weights cannot be negative: %v", weights)
	}
	for _, uid := range uids {
		if uid < 0 {
			return nil, nil, fmt.Errorf("uids cannot be negative: %v", uids)
		}
	}

	maxWeight := floats.Max(weights)
	if maxWeight == 0 {
		return []int{}, []int{}, nil
	}

	weightUids := make([]int, 0, len(uids))
	weightVals := make([]int, 0, len(weights))

	for i, w := range weights {
		uint16Val := int(math.Round((w / maxWeight) * float64(U16MAX)))

		if uint16Val > 0 {
			weightUids = append(weightUids, uids[i])
			weightVals = append(weightVals, uint16Val)
		}
	}

	return weightUids, weightVals, nil
}

// EmissionShares converts a raw emission split into fractions of the total.
// An all-zero split yields all-zero shares.
func EmissionShares(split []float64) []float64 {
	shares := make([]float64, len(split))
	if len(split) == 0 {
		return shares
	}
	total := floats.Sum(split)
	if total == 0 {
		return shares
	}
	copy(shares, split)
	floats.Scale(1/total, shares)
	return shares
}
