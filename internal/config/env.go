// Package config defines environment configuration structs and loaders.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Endpoint rotation modes.
const (
	EndpointModeOff    = "off"
	EndpointModeFixed  = "fixed"
	EndpointModeRotate = "rotate"
)

// AppConfig is the full runtime configuration of the burner.
type AppConfig struct {
	ChainEnvConfig
	KamiEnvConfig
	EndpointEnvConfig
	SchedulerEnvConfig
	StatusEnvConfig
	Environment string `env:"ENVIRONMENT, default=prod"`
}

// ChainEnvConfig holds chain-specific environment values.
type ChainEnvConfig struct {
	Netuid int `env:"NETUID, default=-1"`
	// TargetUID overrides burn target resolution when non-negative.
	TargetUID int `env:"TARGET_UID, default=-1"`
	// WalletHotkey, when set, must match the hotkey loaded by Kami.
	WalletHotkey string `env:"WALLET_HOTKEY"`
}

// KamiEnvConfig configures the Kami HTTP client.
type KamiEnvConfig struct {
	KamiHost      string        `env:"KAMI_HOST, default=127.0.0.1"`
	KamiPort      string        `env:"KAMI_PORT, default=3000"`
	Timeout       time.Duration `env:"KAMI_TIMEOUT, default=30s"`
	SubmitTimeout time.Duration `env:"KAMI_SUBMIT_TIMEOUT, default=2m"`
	RetryMax      int           `env:"KAMI_RETRY_MAX, default=5"`
	RetryWaitMin  time.Duration `env:"KAMI_RETRY_WAIT_MIN, default=500ms"`
	RetryWaitMax  time.Duration `env:"KAMI_RETRY_WAIT_MAX, default=20s"`
}

// BaseURL is the default Kami endpoint used when rotation is off.
func (k KamiEnvConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%s", k.KamiHost, k.KamiPort)
}

// EndpointEnvConfig selects which Kami endpoint each iteration talks to.
type EndpointEnvConfig struct {
	EndpointMode     string   `env:"ENDPOINT_MODE, default=off"`
	LocalSubtensor   string   `env:"LOCAL_SUBTENSOR"`
	LocalSubtensors  []string `env:"LOCAL_SUBTENSORS, default=cali,candyland,datacenter01,la,moonbase,titan"`
	EndpointTemplate string   `env:"KAMI_ENDPOINT_TEMPLATE, default=http://kami-%s.rizzo.network:3000"`
}

// SchedulerEnvConfig configures the weight-setting loop timings.
type SchedulerEnvConfig struct {
	BlockTime time.Duration `env:"BLOCK_TIME, default=12s"`
	// Delta is the number of blocks before the end of the tempo in which weights are set.
	Delta          int `env:"DELTA, default=9"`
	RetryBlocks    int `env:"RETRY_BLOCKS, default=5"`
	SubmitAttempts int `env:"SUBMIT_ATTEMPTS, default=1"`
}

// StatusEnvConfig configures the optional status server. Empty disables it.
type StatusEnvConfig struct {
	StatusAddr string `env:"STATUS_ADDR"`
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig(ctx context.Context) (*AppConfig, error) {
	return LoadConfigWith(ctx, envconfig.OsLookuper())
}

// LoadConfigWith reads the configuration from an arbitrary lookuper.
func LoadConfigWith(ctx context.Context, lookuper envconfig.Lookuper) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, &ConfigError{Field: "environment", Reason: err.Error()}
	}
	cfg.EndpointMode = strings.ToLower(cfg.EndpointMode)
	if cfg.LocalSubtensor != "" && cfg.EndpointMode == EndpointModeOff {
		cfg.EndpointMode = EndpointModeFixed
	}
	return cfg, nil
}

// HasTargetUID reports whether the burn target was pinned manually.
func (c *AppConfig) HasTargetUID() bool {
	return c.TargetUID >= 0
}

// Validate returns a *ConfigError describing the first invalid setting.
func (c *AppConfig) Validate() error {
	switch {
	case c.Netuid < 0:
		return &ConfigError{Field: "netuid", Reason: "is required and must be non-negative"}
	case c.BlockTime <= 0:
		return &ConfigError{Field: "BLOCK_TIME", Reason: "must be positive"}
	case c.Delta < 1:
		return &ConfigError{Field: "DELTA", Reason: "must be at least 1"}
	case c.RetryBlocks < 1:
		return &ConfigError{Field: "RETRY_BLOCKS", Reason: "must be at least 1"}
	case c.SubmitAttempts < 1:
		return &ConfigError{Field: "SUBMIT_ATTEMPTS", Reason: "must be at least 1"}
	}

	switch c.EndpointMode {
	case EndpointModeOff:
		return nil
	case EndpointModeFixed:
		if c.LocalSubtensor == "" {
			return &ConfigError{Field: "LOCAL_SUBTENSOR", Reason: "must name an endpoint in fixed mode"}
		}
	case EndpointModeRotate:
		if len(c.LocalSubtensors) == 0 {
			return &ConfigError{Field: "LOCAL_SUBTENSORS", Reason: "must list at least one endpoint to rotate"}
		}
	default:
		return &ConfigError{Field: "ENDPOINT_MODE", Reason: fmt.Sprintf("unknown mode %q", c.EndpointMode)}
	}

	if !strings.Contains(c.EndpointTemplate, "%s") {
		return &ConfigError{Field: "KAMI_ENDPOINT_TEMPLATE", Reason: "must contain a %s placeholder"}
	}
	return nil
}

// ConfigError is a fatal startup configuration problem.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}
