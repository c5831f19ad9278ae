package kami

import (
	"github.com/tensorplex-labs/burner/internal/chain"
)

type KamiResponse[T any] struct {
	StatusCode int            `json:"statusCode"`
	Success    bool           `json:"success"`
	Data       T              `json:"data"`
	Error      map[string]any `json:"error"`
}

type (
	SubnetMetagraphResponse = KamiResponse[SubnetMetagraph]
	LatestBlockResponse     = KamiResponse[LatestBlock]
	KeyringPairInfoResponse = KamiResponse[KeyringPairInfo]
	CheckHotkeyResponse     = KamiResponse[CheckHotkey]
	QuerySubtensorResponse  = KamiResponse[chain.StateValue]
	MechanismCountResponse  = KamiResponse[int]
	EmissionSplitResponse   = KamiResponse[[]float64]
	ExtrinsicHashResponse   = KamiResponse[string]
)

// SubnetMetagraph is the subset of the subnet metagraph the scheduler reads.
type SubnetMetagraph struct {
	Netuid              int       `json:"netuid"`
	Name                string    `json:"name"`
	OwnerHotkey         string    `json:"ownerHotkey"`
	OwnerColdkey        string    `json:"ownerColdkey"`
	Block               int       `json:"block"`
	Tempo               int       `json:"tempo"`
	LastStep            int       `json:"lastStep"`
	BlocksSinceLastStep int       `json:"blocksSinceLastStep"`
	MinAllowedWeights   int       `json:"minAllowedWeights"`
	MaxAllowedWeights   int       `json:"maxAllowedWeights"`
	WeightsVersion      int       `json:"weightsVersion"`
	NumUids             int       `json:"numUids"`
	MaxUids             int       `json:"maxUids"`
	Hotkeys             []string  `json:"hotkeys"`
	Coldkeys            []string  `json:"coldkeys"`
	Active              []bool    `json:"active"`
	ValidatorPermit     []bool    `json:"validatorPermit"`
	Dividends           []float64 `json:"dividends"`
	BlockAtRegistration []int     `json:"blockAtRegistration"`
	AlphaStake          []float64 `json:"alphaStake"`
	TaoStake            []float64 `json:"taoStake"`
	TotalStake          []float64 `json:"totalStake"`
}

type LatestBlock struct {
	ParentHash     string `json:"parentHash"`
	BlockNumber    int    `json:"blockNumber"`
	StateRoot      string `json:"stateRoot"`
	ExtrinsicsRoot string `json:"extrinsicsRoot"`
}

type KeyringPair struct {
	Address    string                 `json:"address"`
	AddressRaw map[string]interface{} `json:"addressRaw"`
	IsLocked   bool                   `json:"isLocked"`
	Meta       map[string]interface{} `json:"meta"`
	PublicKey  map[string]interface{} `json:"publicKey"`
	Type       string                 `json:"type"`
}

type KeyringPairInfo struct {
	KeyringPair   KeyringPair `json:"keyringPair"`
	WalletColdkey string      `json:"walletColdkey"`
}

type CheckHotkey struct {
	IsHotkeyValid bool `json:"isHotkeyValid"`
}

// QuerySubtensorParams reads one SubtensorModule storage entry.
type QuerySubtensorParams struct {
	Name   string `json:"name"`
	Params []any  `json:"params"`
	Block  *int   `json:"block,omitempty"`
}

type SetWeightsParams struct {
	Netuid              int   `json:"netuid"`
	Dests               []int `json:"dests"`
	Weights             []int `json:"weights"`
	VersionKey          int   `json:"versionKey"`
	MechID              int   `json:"mechid"`
	WaitForInclusion    bool  `json:"waitForInclusion"`
	WaitForFinalization bool  `json:"waitForFinalization"`
}
