// Package chaintest provides an in-memory chain.Client for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/tensorplex-labs/burner/internal/chain"
)

var errNotFound = errors.New("not found")

// SubmitCall records one SubmitWeights invocation.
type SubmitCall struct {
	Params chain.SubmitWeightsParams
}

// Client is a scriptable fake. Zero values mean "succeed with empty data".
type Client struct {
	mu sync.Mutex

	Block    int
	BlockErr error

	// State holds storage values keyed by storage key; values are marshalled to JSON.
	State    map[string]any
	StateErr map[string]error

	Registered    bool
	RegisteredErr error

	// UIDs maps hotkey to uid.
	UIDs   map[string]int
	UIDErr error

	Neurons []chain.NeuronRecord

	OwnerColdkey    string
	OwnerColdkeyErr error

	Mechanisms    int
	MechanismsErr error
	Split         []float64
	SplitErr      error

	// SubmitResult returns the outcome for a mechanism; nil means success.
	SubmitResult func(mechanismID, attempt int) (bool, string, error)
	Submits      []SubmitCall

	Self    chain.Identity
	SelfErr error

	Closed  bool
	queries []string
}

var _ chain.Client = (*Client)(nil)

func (c *Client) CurrentBlock(ctx context.Context) (int, error) {
	if c.BlockErr != nil {
		return 0, chain.NewQueryError("current block", c.BlockErr)
	}
	return c.Block, nil
}

func (c *Client) QueryState(ctx context.Context, key string, params []any, atBlock *int) (chain.StateValue, error) {
	c.mu.Lock()
	c.queries = append(c.queries, key)
	c.mu.Unlock()

	if err, ok := c.StateErr[key]; ok {
		return nil, chain.NewQueryError("query "+key, err)
	}
	v, ok := c.State[key]
	if !ok {
		return chain.StateValue("null"), nil
	}
	raw, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal fake state %s: %w", key, err)
	}
	return chain.StateValue(raw), nil
}

func (c *Client) IsRegistered(ctx context.Context, hotkey string, netuid int) (bool, error) {
	if c.RegisteredErr != nil {
		return false, chain.NewQueryError("is registered", c.RegisteredErr)
	}
	return c.Registered, nil
}

func (c *Client) UIDForHotkey(ctx context.Context, hotkey string, netuid int) (int, error) {
	if c.UIDErr != nil {
		return -1, chain.NewQueryError("uid for hotkey", c.UIDErr)
	}
	uid, ok := c.UIDs[hotkey]
	if !ok {
		return -1, chain.NewQueryError("uid for hotkey", errNotFound)
	}
	return uid, nil
}

func (c *Client) ListNeurons(ctx context.Context, netuid int) []chain.NeuronRecord {
	return c.Neurons
}

func (c *Client) SubnetOwnerColdkey(ctx context.Context, netuid int) (string, bool, error) {
	if c.OwnerColdkeyErr != nil {
		return "", false, chain.NewQueryError("owner coldkey", c.OwnerColdkeyErr)
	}
	return c.OwnerColdkey, c.OwnerColdkey != "", nil
}

func (c *Client) MechanismCount(ctx context.Context, netuid int) (int, error) {
	if c.MechanismsErr != nil {
		return 0, chain.NewQueryError("mechanism count", c.MechanismsErr)
	}
	return c.Mechanisms, nil
}

func (c *Client) MechanismEmissionSplit(ctx context.Context, netuid int) ([]float64, error) {
	if c.SplitErr != nil {
		return nil, chain.NewQueryError("emission split", c.SplitErr)
	}
	return c.Split, nil
}

func (c *Client) SubmitWeights(ctx context.Context, params chain.SubmitWeightsParams) (bool, string, error) {
	c.mu.Lock()
	attempt := 0
	for _, s := range c.Submits {
		if s.Params.MechanismID == params.MechanismID {
			attempt++
		}
	}
	c.Submits = append(c.Submits, SubmitCall{Params: params})
	c.mu.Unlock()

	if c.SubmitResult == nil {
		return true, "", nil
	}
	return c.SubmitResult(params.MechanismID, attempt)
}

func (c *Client) Identity(ctx context.Context) (chain.Identity, error) {
	if c.SelfErr != nil {
		return chain.Identity{}, chain.NewQueryError("identity", c.SelfErr)
	}
	return c.Self, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

// Queries returns the storage keys read so far, in order.
func (c *Client) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queries...)
}

// MechanismOrder returns the mechanism ids of recorded submissions.
func (c *Client) MechanismOrder() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, 0, len(c.Submits))
	for _, s := range c.Submits {
		out = append(out, s.Params.MechanismID)
	}
	return out
}

// IntPtr is a helper for optional ints in neuron records.
func IntPtr(v int) *int { return &v }
