// Package kami provides a Bittensor subtensor client which relies on Kami as the RPC endpoint.
package kami

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/burner/internal/chain"
	"github.com/tensorplex-labs/burner/internal/config"
	chainutils "github.com/tensorplex-labs/burner/internal/utils/chain_utils"
)

var errHotkeyNotFound = errors.New("hotkey not registered on subnet")

// Kami is a client wrapper for the Kami HTTP API. Reads go through a retrying
// transport; set-weights is sent once so an extrinsic is never duplicated.
// A Kami lives for one scheduler iteration, so the metagraph is fetched once
// per netuid and every metagraph-backed query in that iteration shares it.
type Kami struct {
	client       *resty.Client
	submitClient *resty.Client
	retrying     *retryablehttp.Client
	BaseURL      string

	mu         sync.Mutex
	metagraphs map[int]SubnetMetagraphResponse
}

var _ chain.Client = (*Kami)(nil)

// NewKami creates a new Kami client against baseURL.
func NewKami(cfg *config.KamiEnvConfig, baseURL string) (*Kami, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if baseURL == "" {
		baseURL = cfg.BaseURL()
	}

	retrying := retryablehttp.NewClient()
	retrying.RetryMax = cfg.RetryMax
	retrying.RetryWaitMin = cfg.RetryWaitMin
	retrying.RetryWaitMax = cfg.RetryWaitMax
	retrying.HTTPClient.Timeout = cfg.Timeout
	retrying.Logger = nil

	client := resty.NewWithClient(retrying.StandardClient()).
		SetBaseURL(baseURL).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	submitClient := resty.New().
		SetBaseURL(baseURL).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetTimeout(cfg.SubmitTimeout)

	log.Debug().
		Str("base_url", baseURL).
		Int("retry_max", retrying.RetryMax).
		Str("timeout", cfg.Timeout.String()).
		Msg("kami client initialized")

	return &Kami{
		client:       client,
		submitClient: submitClient,
		retrying:     retrying,
		BaseURL:      baseURL,
		metagraphs:   make(map[int]SubnetMetagraphResponse),
	}, nil
}

// NewDialer returns a chain.Dialer opening a fresh Kami client per call.
func NewDialer(cfg *config.KamiEnvConfig) chain.Dialer {
	return func(ctx context.Context, endpoint string) (chain.Client, error) {
		k, err := NewKami(cfg, endpoint)
		if err != nil {
			return nil, err
		}
		return k, nil
	}
}

func postJSON[T any](ctx context.Context, client *resty.Client, path string, body any) (KamiResponse[T], error) {
	var result KamiResponse[T]
	resp, err := client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("post request failed")
		return KamiResponse[T]{}, fmt.Errorf("post %s: %w", path, err)
	}
	if resp.IsError() {
		log.Error().Int("status", resp.StatusCode()).Str("body", resp.String()).Str("path", path).Msg("post non-2xx")
		return KamiResponse[T]{}, fmt.Errorf("request returned status %d: %s", resp.StatusCode(), resp.String())
	}
	if result.Error != nil {
		log.Error().Interface("error", result.Error).Str("path", path).Msg("response contains error")
		return KamiResponse[T]{}, fmt.Errorf("response error: %v", result.Error)
	}
	return result, nil
}

func getJSON[T any](ctx context.Context, client *resty.Client, path string, query map[string]string) (KamiResponse[T], error) {
	var result KamiResponse[T]
	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(&result).
		Get(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("get request failed")
		return KamiResponse[T]{}, fmt.Errorf("get %s: %w", path, err)
	}
	if resp.IsError() {
		log.Error().Int("status", resp.StatusCode()).Str("body", resp.String()).Str("path", path).Msg("get non-2xx")
		return KamiResponse[T]{}, fmt.Errorf("request returned status %d: %s", resp.StatusCode(), resp.String())
	}
	if result.Error != nil {
		log.Error().Interface("error", result.Error).Str("path", path).Msg("response contains error")
		return KamiResponse[T]{}, fmt.Errorf("response error: %v", result.Error)
	}
	return result, nil
}

// GetMetagraph returns the subnet metagraph for netuid, fetching it on first
// use. Failed fetches are not remembered.
func (k *Kami) GetMetagraph(ctx context.Context, netuid int) (SubnetMetagraphResponse, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if res, ok := k.metagraphs[netuid]; ok {
		return res, nil
	}

	path := fmt.Sprintf("/chain/subnet-metagraph/%d", netuid)
	res, err := getJSON[SubnetMetagraph](ctx, k.client, path, nil)
	if err != nil {
		return res, chain.NewQueryError("subnet metagraph", err)
	}
	k.metagraphs[netuid] = res
	return res, nil
}

// CurrentBlock retrieves the latest block number from the chain.
func (k *Kami) CurrentBlock(ctx context.Context) (int, error) {
	res, err := getJSON[LatestBlock](ctx, k.client, "/chain/latest-block", nil)
	if err != nil {
		return 0, chain.NewQueryError("latest block", err)
	}
	return res.Data.BlockNumber, nil
}

// QueryState reads a SubtensorModule storage entry, optionally at a given block.
func (k *Kami) QueryState(ctx context.Context, key string, params []any, atBlock *int) (chain.StateValue, error) {
	res, err := postJSON[chain.StateValue](ctx, k.client, "/chain/query-subtensor", QuerySubtensorParams{
		Name:   key,
		Params: params,
		Block:  atBlock,
	})
	if err != nil {
		return nil, chain.NewQueryError("query "+key, err)
	}
	return res.Data, nil
}

// IsRegistered reports whether hotkey holds a uid on netuid.
func (k *Kami) IsRegistered(ctx context.Context, hotkey string, netuid int) (bool, error) {
	res, err := getJSON[CheckHotkey](ctx, k.client, "/chain/check-hotkey", map[string]string{
		"netuid": strconv.Itoa(netuid),
		"hotkey": hotkey,
	})
	if err != nil {
		return false, chain.NewQueryError("check hotkey", err)
	}
	return res.Data.IsHotkeyValid, nil
}

// UIDForHotkey resolves hotkey to its uid using the metagraph hotkey list.
func (k *Kami) UIDForHotkey(ctx context.Context, hotkey string, netuid int) (int, error) {
	mg, err := k.GetMetagraph(ctx, netuid)
	if err != nil {
		return -1, err
	}
	for uid, h := range mg.Data.Hotkeys {
		if h == hotkey {
			return uid, nil
		}
	}
	return -1, chain.NewQueryError("uid for hotkey "+hotkey, errHotkeyNotFound)
}

// ListNeurons builds neuron records from the metagraph. Errors yield an empty slice.
func (k *Kami) ListNeurons(ctx context.Context, netuid int) []chain.NeuronRecord {
	mg, err := k.GetMetagraph(ctx, netuid)
	if err != nil {
		log.Error().Err(err).Int("netuid", netuid).Msg("failed to fetch neurons")
		return []chain.NeuronRecord{}
	}
	return NeuronsFromMetagraph(&mg.Data)
}

// SubnetOwnerColdkey returns the subnet owner's coldkey from the metagraph.
func (k *Kami) SubnetOwnerColdkey(ctx context.Context, netuid int) (string, bool, error) {
	mg, err := k.GetMetagraph(ctx, netuid)
	if err != nil {
		return "", false, err
	}
	return mg.Data.OwnerColdkey, mg.Data.OwnerColdkey != "", nil
}

// MechanismCount returns the number of incentive mechanisms on netuid.
func (k *Kami) MechanismCount(ctx context.Context, netuid int) (int, error) {
	path := fmt.Sprintf("/chain/mechanism-count/%d", netuid)
	res, err := getJSON[int](ctx, k.client, path, nil)
	if err != nil {
		return 0, chain.NewQueryError("mechanism count", err)
	}
	return res.Data, nil
}

// MechanismEmissionSplit returns the per-mechanism emission split on netuid.
func (k *Kami) MechanismEmissionSplit(ctx context.Context, netuid int) ([]float64, error) {
	path := fmt.Sprintf("/chain/mechanism-emission-split/%d", netuid)
	res, err := getJSON[[]float64](ctx, k.client, path, nil)
	if err != nil {
		return nil, chain.NewQueryError("mechanism emission split", err)
	}
	return res.Data, nil
}

// SubmitWeights converts the weights to u16 and sends a set-weights extrinsic.
// A rejection by the chain is reported as ok=false with a message; transport
// failures and 5xx responses are returned as errors.
func (k *Kami) SubmitWeights(ctx context.Context, params chain.SubmitWeightsParams) (bool, string, error) {
	dests, weights, err := chainutils.ConvertWeightsAndUidsForEmit(params.UIDs, params.Weights)
	if err != nil {
		return false, err.Error(), nil
	}

	body := SetWeightsParams{
		Netuid:              params.Netuid,
		Dests:               dests,
		Weights:             weights,
		VersionKey:          params.VersionKey,
		MechID:              params.MechanismID,
		WaitForInclusion:    params.WaitForInclusion,
		WaitForFinalization: params.WaitForFinalization,
	}

	var result ExtrinsicHashResponse
	resp, err := k.submitClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&result).
		Post("/chain/set-weights")
	if err != nil {
		log.Error().Err(err).Int("mechid", params.MechanismID).Msg("set weights request failed")
		return false, "", fmt.Errorf("post /chain/set-weights: %w", err)
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		return false, "", fmt.Errorf("set weights returned status %d: %s", resp.StatusCode(), resp.String())
	}
	if resp.IsError() || result.Error != nil || !result.Success {
		msg := resp.String()
		if result.Error != nil {
			msg = fmt.Sprintf("%v", result.Error)
		}
		return false, msg, nil
	}

	log.Debug().
		Int("mechid", params.MechanismID).
		Str("extrinsic_hash", result.Data).
		Ints("dests", dests).
		Ints("weights", weights).
		Msg("set weights extrinsic finalized")
	return true, result.Data, nil
}

// Identity returns the hotkey and coldkey of the keyring loaded by Kami.
func (k *Kami) Identity(ctx context.Context) (chain.Identity, error) {
	res, err := getJSON[KeyringPairInfo](ctx, k.client, "/substrate/keyring-pair-info", nil)
	if err != nil {
		return chain.Identity{}, chain.NewQueryError("keyring pair info", err)
	}
	return chain.Identity{
		Hotkey:  res.Data.KeyringPair.Address,
		Coldkey: res.Data.WalletColdkey,
	}, nil
}

// Close releases idle connections and the metagraph snapshot so the next
// iteration starts fresh.
func (k *Kami) Close() error {
	k.mu.Lock()
	clear(k.metagraphs)
	k.mu.Unlock()

	k.retrying.HTTPClient.CloseIdleConnections()
	k.submitClient.GetClient().CloseIdleConnections()
	return nil
}
