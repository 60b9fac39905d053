package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/autopilot-bridge/autopilot"
	"github.com/wippyai/autopilot-bridge/config"
)

type globalFlags struct {
	configPath string
	runtime    string
	bundle     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "autopilot",
		Short: "Drive the AutoPilot class through the embedded runtime",
		Long: `autopilot starts the runtime image, loads the AutoPilotC class from the
bundle and calls its focus measures and solvers.

Paths come from --runtime/--bundle, a YAML file (--config or
AUTOPILOT_CONFIG) or AUTOPILOT_RUNTIME/AUTOPILOT_BUNDLE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&g.runtime, "runtime", "", "runtime image path")
	pf.StringVar(&g.bundle, "bundle", "", "class bundle directory")
	pf.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newProbeCmd(g),
		newFocusCmd(g),
		newSolveCmd(g),
		newStubCmd(),
		newInteractiveCmd(g),
	)
	return root
}

// load resolves the configuration: file (or environment), then flags.
func (g *globalFlags) load() (*config.Config, *zap.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.Load(g.configPath)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, nil, err
	}

	if g.runtime != "" {
		cfg.Runtime.Library = g.runtime
	}
	if g.bundle != "" {
		cfg.Runtime.Bundle = g.bundle
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}
	if cfg.Runtime.Library == "" {
		return nil, nil, fmt.Errorf("runtime image path required (--runtime or %s)", config.EnvRuntime)
	}

	log, err := cfg.Logger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// open starts a session from the resolved configuration.
func (g *globalFlags) open(ctx context.Context) (*autopilot.Session, error) {
	cfg, log, err := g.load()
	if err != nil {
		return nil, err
	}
	s, err := autopilot.Open(ctx, cfg.Runtime.Library, cfg.Runtime.Bundle, cfg.Options(log)...)
	if err != nil {
		return nil, fmt.Errorf("start failed with code %d: %w", autopilot.StartCode(err), err)
	}
	return s, nil
}
