package main

import (
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/tensorplex-labs/burner/internal/config"
	"github.com/tensorplex-labs/burner/internal/endpoint"
	"github.com/tensorplex-labs/burner/internal/kami"
	"github.com/tensorplex-labs/burner/internal/scheduler"
	"github.com/tensorplex-labs/burner/internal/status"
	"github.com/tensorplex-labs/burner/internal/utils/logger"
)

// rotateAll is the value of a bare --local-subtensor flag.
const rotateAll = "*"

type runFlags struct {
	netuid         int
	targetUID      int
	localSubtensor string
	log            logger.Flags

	// deprecated, accepted and ignored
	setWeightsInterval int
	subprocess         bool
}

func newRunCmd() *cobra.Command {
	return newRunCmdWith(&runFlags{})
}

func newRunCmdWith(f *runFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the burn weight-setting loop",
		Args: func(cmd *cobra.Command, args []string) error {
			return bindLocalSubtensorArg(cmd.Flags(), f, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}
	registerRunFlags(cmd.Flags(), f)
	return cmd
}

// bindLocalSubtensorArg accepts `--local-subtensor NAME`. pflag only binds an
// optional value written as `--local-subtensor=NAME`, so a bare flag leaves
// NAME as a positional argument. Any other positional argument is an error.
func bindLocalSubtensorArg(fs *pflag.FlagSet, f *runFlags, args []string) error {
	if len(args) == 0 {
		return nil
	}
	if len(args) == 1 && fs.Changed("local-subtensor") && f.localSubtensor == rotateAll {
		f.localSubtensor = args[0]
		return nil
	}
	return fmt.Errorf("unexpected arguments %q", args)
}

func registerRunFlags(fs *pflag.FlagSet, f *runFlags) {
	fs.IntVar(&f.netuid, "netuid", -1, "Subnet netuid (overrides NETUID)")
	fs.IntVar(&f.targetUID, "target_uid", -1, "Burn target uid; skips owner auto-detection (overrides TARGET_UID)")
	fs.StringVar(&f.localSubtensor, "local-subtensor", "", "Use a named Kami endpoint; without a value, rotate over LOCAL_SUBTENSORS")
	fs.Lookup("local-subtensor").NoOptDefVal = rotateAll

	fs.BoolVar(&f.log.Debug, "debug", false, "sets log level to debug")
	fs.BoolVar(&f.log.Trace, "trace", false, "sets log level to trace")
	fs.BoolVar(&f.log.Info, "info", false, "sets log level to info (default)")

	fs.IntVar(&f.setWeightsInterval, "set_weights_interval", 0, "deprecated")
	fs.BoolVar(&f.subprocess, "subprocess", false, "deprecated")
	_ = fs.MarkDeprecated("set_weights_interval", "weights are set once per tempo")
	_ = fs.MarkDeprecated("subprocess", "every iteration already runs in an isolated worker")
}

// applyFlags overlays explicitly set flags on the environment configuration.
func applyFlags(fs *pflag.FlagSet, f *runFlags, cfg *config.AppConfig) {
	if fs.Changed("netuid") {
		cfg.Netuid = f.netuid
	}
	if fs.Changed("target_uid") {
		cfg.TargetUID = f.targetUID
	}
	if fs.Changed("local-subtensor") {
		if f.localSubtensor == rotateAll || f.localSubtensor == "" {
			cfg.EndpointMode = config.EndpointModeRotate
			cfg.LocalSubtensor = ""
		} else {
			cfg.EndpointMode = config.EndpointModeFixed
			cfg.LocalSubtensor = f.localSubtensor
		}
	}
}

func schedulerOptions(cfg *config.AppConfig) scheduler.Options {
	opts := scheduler.Options{
		Netuid:         cfg.Netuid,
		ExpectedHotkey: cfg.WalletHotkey,
		BlockTime:      cfg.BlockTime,
		Delta:          cfg.Delta,
		RetryBlocks:    cfg.RetryBlocks,
		SubmitAttempts: cfg.SubmitAttempts,
	}
	if cfg.HasTargetUID() {
		target := cfg.TargetUID
		opts.TargetUID = &target
	}
	return opts
}

func run(cmd *cobra.Command, f *runFlags) error {
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig(cmd.Context())
	if err != nil {
		return err
	}
	applyFlags(cmd.Flags(), f, cfg)

	logger.Init(cfg.Environment, f.log)
	if envErr != nil {
		log.Debug().Msg(".env not loaded; continuing with existing environment")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker := status.NewTracker(cfg.Netuid, time.Now())
	rotator := endpoint.NewRotator(cfg.EndpointEnvConfig, cfg.KamiEnvConfig.BaseURL())
	loop := scheduler.NewLoop(schedulerOptions(cfg), kami.NewDialer(&cfg.KamiEnvConfig), rotator, tracker)

	log.Info().
		Int("netuid", cfg.Netuid).
		Int("target_uid", cfg.TargetUID).
		Str("endpoint_mode", cfg.EndpointMode).
		Msg("starting burn validator")

	var statusLn net.Listener
	if cfg.StatusAddr != "" {
		if statusLn, err = status.Bind(cfg.StatusAddr); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	if statusLn != nil {
		srv := status.NewServer(tracker)
		g.Go(func() error {
			// status is optional; its failure must not stop weight setting
			if err := srv.Serve(gctx, statusLn); err != nil {
				log.Error().Err(err).Msg("status server stopped")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("burn validator stopped: %w", err)
	}
	log.Info().Msg("burn validator stopped")
	return nil
}
