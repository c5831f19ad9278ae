package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/burner/internal/config"
)

func parse(t *testing.T, args ...string) (*pflag.FlagSet, *runFlags) {
	t.Helper()
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	f := &runFlags{}
	registerRunFlags(fs, f)
	require.NoError(t, fs.Parse(args))
	return fs, f
}

func baseConfig() *config.AppConfig {
	cfg := &config.AppConfig{}
	cfg.Netuid = 3
	cfg.TargetUID = -1
	cfg.EndpointMode = config.EndpointModeOff
	return cfg
}

func TestApplyFlagsLeavesEnvWhenUnset(t *testing.T) {
	fs, f := parse(t)
	cfg := baseConfig()

	applyFlags(fs, f, cfg)
	assert.Equal(t, 3, cfg.Netuid)
	assert.Equal(t, -1, cfg.TargetUID)
	assert.Equal(t, config.EndpointModeOff, cfg.EndpointMode)
}

func TestApplyFlagsOverrides(t *testing.T) {
	fs, f := parse(t, "--netuid", "81", "--target_uid", "4")
	cfg := baseConfig()

	applyFlags(fs, f, cfg)
	assert.Equal(t, 81, cfg.Netuid)
	assert.Equal(t, 4, cfg.TargetUID)
	assert.Equal(t, 4, *schedulerOptions(cfg).TargetUID)
}

func TestLocalSubtensorFlag(t *testing.T) {
	fs, f := parse(t, "--local-subtensor")
	cfg := baseConfig()
	applyFlags(fs, f, cfg)
	assert.Equal(t, config.EndpointModeRotate, cfg.EndpointMode)

	fs, f = parse(t, "--local-subtensor=titan")
	cfg = baseConfig()
	applyFlags(fs, f, cfg)
	assert.Equal(t, config.EndpointModeFixed, cfg.EndpointMode)
	assert.Equal(t, "titan", cfg.LocalSubtensor)
}

func TestDeprecatedFlagsAccepted(t *testing.T) {
	fs, _ := parse(t, "--subprocess", "--set_weights_interval", "100", "--debug")
	assert.True(t, fs.Changed("subprocess"))
	assert.True(t, fs.Changed("debug"))
}

func TestSchedulerOptionsWithoutTarget(t *testing.T) {
	cfg := baseConfig()
	cfg.WalletHotkey = "5Grw"
	opts := schedulerOptions(cfg)
	assert.Nil(t, opts.TargetUID)
	assert.Equal(t, "5Grw", opts.ExpectedHotkey)
}

func parseRun(t *testing.T, args ...string) (*runFlags, *config.AppConfig, error) {
	t.Helper()
	f := &runFlags{}
	cmd := newRunCmdWith(f)
	require.NoError(t, cmd.ParseFlags(args))
	if err := cmd.ValidateArgs(cmd.Flags().Args()); err != nil {
		return f, nil, err
	}
	cfg := baseConfig()
	applyFlags(cmd.Flags(), f, cfg)
	return f, cfg, nil
}

func TestLocalSubtensorSpacedValuePins(t *testing.T) {
	_, cfg, err := parseRun(t, "--netuid", "81", "--local-subtensor", "la")
	require.NoError(t, err)
	assert.Equal(t, config.EndpointModeFixed, cfg.EndpointMode)
	assert.Equal(t, "la", cfg.LocalSubtensor)
	assert.Equal(t, 81, cfg.Netuid)
}

func TestLocalSubtensorBareStillRotates(t *testing.T) {
	_, cfg, err := parseRun(t, "--local-subtensor", "--netuid", "81")
	require.NoError(t, err)
	assert.Equal(t, config.EndpointModeRotate, cfg.EndpointMode)
	assert.Empty(t, cfg.LocalSubtensor)
}

func TestRunRejectsStrayArguments(t *testing.T) {
	_, _, err := parseRun(t, "--netuid", "81", "la")
	assert.Error(t, err)

	_, _, err = parseRun(t, "--local-subtensor", "la", "titan")
	assert.Error(t, err)

	_, _, err = parseRun(t, "--local-subtensor=la", "titan")
	assert.Error(t, err)
}
