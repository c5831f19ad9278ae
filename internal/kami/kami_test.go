package kami

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/burner/internal/chain"
	"github.com/tensorplex-labs/burner/internal/config"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Kami) {
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	kc := &config.KamiEnvConfig{
		Timeout:       5 * time.Second,
		SubmitTimeout: 5 * time.Second,
		RetryMax:      0,
		RetryWaitMin:  time.Millisecond,
		RetryWaitMax:  time.Millisecond,
	}
	k, err := NewKami(kc, ts.URL)
	if err != nil {
		t.Fatalf("new kami: %v", err)
	}
	t.Cleanup(func() { _ = k.Close() })
	return ts, k
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

const metagraphPayload = `{"statusCode":200,"success":true,"data":{
	"netuid":81,"name":"n","ownerHotkey":"hk-owner","ownerColdkey":"ck-owner","block":1000,
	"tempo":360,"blocksSinceLastStep":12,
	"hotkeys":["hk-owner","hk-val","hk-miner"],
	"coldkeys":["ck-owner","ck-val"],
	"validatorPermit":[false,true,false],
	"dividends":[0,0.5,0],
	"blockAtRegistration":[10,20,30],
	"totalStake":[1.5,900,0]
},"error":null}`

func TestNewKami_NilConfig(t *testing.T) {
	_, err := NewKami(nil, "")
	if err == nil {
		t.Fatalf("expected error when cfg is nil")
	}
}

func TestNewKami_DefaultsToConfiguredHost(t *testing.T) {
	k, err := NewKami(&config.KamiEnvConfig{KamiHost: "10.0.0.1", KamiPort: "3000"}, "")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.1:3000", k.BaseURL)
}

func TestCurrentBlock_Success(t *testing.T) {
	_, k := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chain/latest-block" || r.Method != http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, `{"statusCode":200,"success":true,"data":{"parentHash":"0x1","blockNumber":4242,"stateRoot":"0x2","extrinsicsRoot":"0x3"},"error":null}`)
	})

	block, err := k.CurrentBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4242, block)
}

func TestCurrentBlock_HTTPErrorIsTransient(t *testing.T) {
	_, k := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad"))
	})

	_, err := k.CurrentBlock(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, chain.ErrTransientQuery)
}

func TestQueryState_SendsKeyParamsAndBlock(t *testing.T) {
	var got QuerySubtensorParams
	_, k := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chain/query-subtensor" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, `{"statusCode":200,"success":true,"data":"0x154","error":null}`)
	})

	block := 1000
	v, err := k.QueryState(context.Background(), chain.KeyBlocksSinceLastStep, []any{81}, &block)
	require.NoError(t, err)

	n, err := v.Int()
	require.NoError(t, err)
	assert.Equal(t, 340, n)
	assert.Equal(t, chain.KeyBlocksSinceLastStep, got.Name)
	require.NotNil(t, got.Block)
	assert.Equal(t, 1000, *got.Block)
	assert.Equal(t, []any{float64(81)}, got.Params)
}

func TestQueryState_ResponseErrorField(t *testing.T) {
	_, k := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"statusCode":200,"success":false,"data":null,"error":{"msg":"boom"}}`)
	})

	_, err := k.QueryState(context.Background(), chain.KeyTempo, []any{1}, nil)
	assert.ErrorIs(t, err, chain.ErrTransientQuery)
}

func TestIsRegistered(t *testing.T) {
	_, k := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chain/check-hotkey" || r.URL.Query().Get("hotkey") != "hk" || r.URL.Query().Get("netuid") != "81" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, `{"statusCode":200,"success":true,"data":{"isHotkeyValid":true},"error":null}`)
	})

	ok, err := k.IsRegistered(context.Background(), "hk", 81)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMetagraphBackedQueries(t *testing.T) {
	_, k := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chain/subnet-metagraph/81" || r.Method != http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, metagraphPayload)
	})
	ctx := context.Background()

	uid, err := k.UIDForHotkey(ctx, "hk-val", 81)
	require.NoError(t, err)
	assert.Equal(t, 1, uid)

	_, err = k.UIDForHotkey(ctx, "hk-unknown", 81)
	assert.ErrorIs(t, err, chain.ErrTransientQuery)

	coldkey, ok, err := k.SubnetOwnerColdkey(ctx, 81)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ck-owner", coldkey)

	neurons := k.ListNeurons(ctx, 81)
	require.Len(t, neurons, 3)
	assert.Equal(t, "ck-val", neurons[1].Coldkey)
	assert.True(t, neurons[1].ValidatorPermit)
	assert.True(t, neurons[1].IsValidator)
	assert.Equal(t, 900.0, neurons[1].Stake)
	require.NotNil(t, neurons[2].RegistrationBlock)
	assert.Equal(t, 30, *neurons[2].RegistrationBlock)
	assert.Empty(t, neurons[2].Coldkey)
}

func TestListNeurons_FailsSoft(t *testing.T) {
	_, k := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	neurons := k.ListNeurons(context.Background(), 81)
	assert.NotNil(t, neurons)
	assert.Empty(t, neurons)
}

func TestMechanismQueries(t *testing.T) {
	_, k := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chain/mechanism-count/81":
			writeJSON(w, http.StatusOK, `{"statusCode":200,"success":true,"data":3,"error":null}`)
		case "/chain/mechanism-emission-split/81":
			writeJSON(w, http.StatusOK, `{"statusCode":200,"success":true,"data":[10,70,20],"error":null}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	count, err := k.MechanismCount(ctx, 81)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	split, err := k.MechanismEmissionSplit(ctx, 81)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 70, 20}, split)
}

func TestSubmitWeights_Success(t *testing.T) {
	var got SetWeightsParams
	_, k := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chain/set-weights" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		writeJSON(w, http.StatusOK, `{"statusCode":200,"success":true,"data":"0xdead","error":null}`)
	})

	ok, msg, err := k.SubmitWeights(context.Background(), chain.SubmitWeightsParams{
		Netuid:              81,
		UIDs:                []int{0, 5},
		Weights:             []float64{65535, 1},
		MechanismID:         1,
		VersionKey:          7,
		WaitForInclusion:    true,
		WaitForFinalization: true,
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0xdead", msg)
	assert.Equal(t, []int{0, 5}, got.Dests)
	assert.Equal(t, []int{65535, 1}, got.Weights)
	assert.Equal(t, 1, got.MechID)
	assert.Equal(t, 7, got.VersionKey)
	assert.True(t, got.WaitForFinalization)
}

func TestSubmitWeights_ChainRejection(t *testing.T) {
	_, k := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"statusCode":400,"success":false,"data":"","error":{"msg":"SettingWeightsTooFast"}}`)
	})

	ok, msg, err := k.SubmitWeights(context.Background(), chain.SubmitWeightsParams{UIDs: []int{1}, Weights: []float64{1}})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, msg, "SettingWeightsTooFast")
}

func TestSubmitWeights_ServerErrorIsReturned(t *testing.T) {
	_, k := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	ok, _, err := k.SubmitWeights(context.Background(), chain.SubmitWeightsParams{UIDs: []int{1}, Weights: []float64{1}})
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestIdentity(t *testing.T) {
	_, k := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/substrate/keyring-pair-info" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, `{"statusCode":200,"success":true,"data":{"keyringPair":{"address":"addr","addressRaw":{},"isLocked":false,"meta":{},"publicKey":{},"type":"sr25519"},"walletColdkey":"cold"},"error":null}`)
	})

	id, err := k.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, chain.Identity{Hotkey: "addr", Coldkey: "cold"}, id)
}

func TestNeuronsFromMetagraph_ShortColumns(t *testing.T) {
	neurons := NeuronsFromMetagraph(&SubnetMetagraph{Hotkeys: []string{"a", "b"}})

	require.Len(t, neurons, 2)
	assert.Nil(t, neurons[0].RegistrationBlock)
	assert.False(t, neurons[1].ValidatorPermit)
	assert.Equal(t, 1, neurons[1].UID)
}

func TestNewDialer(t *testing.T) {
	dial := NewDialer(&config.KamiEnvConfig{Timeout: time.Second})

	client, err := dial(context.Background(), "http://kami-la:3000")
	require.NoError(t, err)
	k, ok := client.(*Kami)
	require.True(t, ok)
	assert.Equal(t, "http://kami-la:3000", k.BaseURL)
	assert.NoError(t, client.Close())

	_, err = NewDialer(nil)(context.Background(), "http://kami-la:3000")
	assert.Error(t, err)
}

func TestMetagraphFetchedOncePerClient(t *testing.T) {
	var hits atomic.Int32
	_, k := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, metagraphPayload)
	})
	ctx := context.Background()

	uid, err := k.UIDForHotkey(ctx, "hk-val", 81)
	require.NoError(t, err)
	neurons := k.ListNeurons(ctx, 81)
	_, _, err = k.SubnetOwnerColdkey(ctx, 81)
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "hk-val", neurons[uid].Hotkey)

	require.NoError(t, k.Close())
	_ = k.ListNeurons(ctx, 81)
	assert.Equal(t, int32(2), hits.Load(), "close drops the snapshot")
}

func TestMetagraphFailureNotRemembered(t *testing.T) {
	var hits atomic.Int32
	_, k := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, metagraphPayload)
	})
	ctx := context.Background()

	assert.Empty(t, k.ListNeurons(ctx, 81))
	assert.Len(t, k.ListNeurons(ctx, 81), 3)
	assert.Equal(t, int32(2), hits.Load())
}
