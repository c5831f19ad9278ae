package weights

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tensorplex-labs/burner/internal/chain"
	"github.com/tensorplex-labs/burner/internal/chain/chaintest"
)

func TestComposeSingleWeight(t *testing.T) {
	v := Compose(validatorSubnet(), uidBurn, uidA, Limits{MinAllowedWeights: 1, MaxWeightsLimit: 65535})
	assert.Equal(t, Vector{{UID: uidBurn, Weight: 1.0}}, v)
}

func TestComposeEpsilonVector(t *testing.T) {
	v := Compose(validatorSubnet(), uidBurn, uidB, Limits{MinAllowedWeights: 3, MaxWeightsLimit: 1000})
	assert.Equal(t, []int{uidBurn, uidB, uidC}, v.UIDs())
	assert.Equal(t, []float64{1000, 1, 1}, v.Weights())
}

func TestComposeLengthMatchesEligible(t *testing.T) {
	neurons := validatorSubnet()
	eligible := len(neurons) - 1

	for minAllowed := 2; minAllowed <= 10; minAllowed++ {
		v := Compose(neurons, uidBurn, uidA, Limits{MinAllowedWeights: minAllowed, MaxWeightsLimit: 65535})
		assert.Equal(t, min(minAllowed, 1+eligible), len(v), "min allowed %d", minAllowed)
		assert.Equal(t, uidBurn, v[0].UID)
	}
}

func TestBuilderLimits(t *testing.T) {
	t.Run("reads chain values", func(t *testing.T) {
		fake := &chaintest.Client{State: map[string]any{
			chain.KeySubnetworkN:       256,
			chain.KeyMinAllowedWeights: "0x8",
			chain.KeyMaxWeightsLimit:   455,
		}}

		l := NewBuilder(fake, 1).Limits(context.Background())
		assert.Equal(t, Limits{SubnetN: 256, MinAllowedWeights: 8, MaxWeightsLimit: 455}, l)
	})

	t.Run("defaults on failure", func(t *testing.T) {
		fake := &chaintest.Client{StateErr: map[string]error{
			chain.KeyMinAllowedWeights: errors.New("boom"),
		}}

		l := NewBuilder(fake, 1).Limits(context.Background())
		assert.Equal(t, 1, l.MinAllowedWeights)
		assert.Equal(t, 65535, l.MaxWeightsLimit)
	})

	t.Run("clamps to one", func(t *testing.T) {
		fake := &chaintest.Client{State: map[string]any{
			chain.KeyMinAllowedWeights: 0,
			chain.KeyMaxWeightsLimit:   0,
		}}

		l := NewBuilder(fake, 1).Limits(context.Background())
		assert.Equal(t, 1, l.MinAllowedWeights)
		assert.Equal(t, 1, l.MaxWeightsLimit)
	})
}

func TestBuilderBuild(t *testing.T) {
	fake := &chaintest.Client{State: map[string]any{
		chain.KeyMinAllowedWeights: 2,
		chain.KeyMaxWeightsLimit:   65535,
	}}

	v := NewBuilder(fake, 1).Build(context.Background(), validatorSubnet(), uidBurn, uidC)
	assert.Equal(t, []int{uidBurn, uidC}, v.UIDs())
	assert.Equal(t, []float64{65535, 1}, v.Weights())
}
