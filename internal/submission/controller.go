// Package submission sends a weight vector to every incentive mechanism of a
// subnet.
package submission

import (
	"context"
	"sort"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/burner/internal/chain"
	chainutils "github.com/tensorplex-labs/burner/internal/utils/chain_utils"
	"github.com/tensorplex-labs/burner/internal/weights"
)

// Controller submits weights per mechanism and reports the OR of the results.
type Controller struct {
	client   chain.Client
	netuid   int
	attempts uint
	delay    time.Duration
}

// NewController builds a controller. attempts bounds how often a transport
// failure is retried for one mechanism; a value below 1 is treated as 1.
func NewController(client chain.Client, netuid, attempts int, delay time.Duration) *Controller {
	return &Controller{
		client:   client,
		netuid:   netuid,
		attempts: uint(max(attempts, 1)),
		delay:    delay,
	}
}

// Mechanisms returns the mechanism ids in submission order.
func (c *Controller) Mechanisms(ctx context.Context) []int {
	count, err := c.client.MechanismCount(ctx, c.netuid)
	if err != nil {
		log.Error().Err(err).Int("netuid", c.netuid).Msg("error fetching mechanism count, assuming one")
		count = 1
	}
	if count <= 1 {
		return []int{0}
	}

	split, err := c.client.MechanismEmissionSplit(ctx, c.netuid)
	if err != nil {
		log.Error().Err(err).Int("netuid", c.netuid).Msg("error fetching emission split, using index order")
		split = nil
	}
	return OrderMechanisms(count, split)
}

// OrderMechanisms sorts mechanism ids by descending emission share, ties by
// id. A split that does not cover every mechanism yields index order.
func OrderMechanisms(count int, split []float64) []int {
	ids := make([]int, count)
	for i := range ids {
		ids[i] = i
	}
	if len(split) < count {
		return ids
	}

	shares := chainutils.EmissionShares(split[:count])
	sort.SliceStable(ids, func(i, j int) bool {
		return shares[ids[i]] > shares[ids[j]]
	})
	return ids
}

// Submit sends v to every mechanism. Chain rejections are logged and not
// retried; a later mechanism is attempted even when an earlier one failed.
func (c *Controller) Submit(ctx context.Context, self chain.Identity, v weights.Vector, versionKey int) bool {
	anySuccess := false
	for _, mechID := range c.Mechanisms(ctx) {
		ok, msg := c.submitOne(ctx, self, v, versionKey, mechID)
		if ok {
			log.Info().Int("mechid", mechID).Msg("weights set on mechanism")
		} else {
			log.Error().Int("mechid", mechID).Str("message", msg).Msg("error setting weights on mechanism")
		}
		anySuccess = anySuccess || ok
	}
	return anySuccess
}

func (c *Controller) submitOne(ctx context.Context, self chain.Identity, v weights.Vector, versionKey, mechID int) (bool, string) {
	params := chain.SubmitWeightsParams{
		Identity:            self,
		Netuid:              c.netuid,
		UIDs:                v.UIDs(),
		Weights:             v.Weights(),
		MechanismID:         mechID,
		VersionKey:          versionKey,
		WaitForInclusion:    true,
		WaitForFinalization: true,
	}

	var (
		ok  bool
		msg string
	)
	err := retry.Do(func() error {
		var err error
		ok, msg, err = c.client.SubmitWeights(ctx, params)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Uint("attempt", n+1).Int("mechid", mechID).Err(err).Msg("set weights retry")
		}),
	)
	if err != nil {
		return false, err.Error()
	}
	return ok, msg
}
