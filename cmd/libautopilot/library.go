package main

import (
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/autopilot-bridge/autopilot"
	"github.com/wippyai/autopilot-bridge/bridge"
	"github.com/wippyai/autopilot-bridge/config"
)

// library is the process-wide bridge behind the C exports.
type library struct {
	bridge *bridge.Bridge
	cfg    *config.Config
	log    *zap.Logger
}

var (
	libOnce sync.Once
	lib     *library
)

func instance() *library {
	libOnce.Do(func() {
		lib = newLibrary()
	})
	return lib
}

// newLibrary configures the bridge from AUTOPILOT_CONFIG and the path
// variables. A broken configuration falls back to defaults so begin can
// still report a start code.
func newLibrary() *library {
	cfg, err := config.FromEnv()
	if err != nil {
		cfg = config.Default()
		cfg.ApplyEnv()
	}
	log, lerr := cfg.Logger()
	if lerr != nil {
		log = zap.NewNop()
	}
	if err != nil {
		log.Warn("configuration ignored", zap.String("path", os.Getenv(config.EnvConfig)), zap.Error(err))
	}
	return &library{
		bridge: bridge.New(log, cfg.Options(log)...),
		cfg:    cfg,
		log:    log,
	}
}

// begin starts the bridge. Empty paths fall back to the configured ones.
func (l *library) begin(runtimePath, bundlePath string) int {
	if runtimePath == "" {
		runtimePath = l.cfg.Runtime.Library
	}
	if bundlePath == "" {
		bundlePath = l.cfg.Runtime.Bundle
	}
	return l.bridge.Begin(runtimePath, bundlePath)
}

type lengths struct {
	state, observations, sync int
}

// lengthsOf derives the solver buffer lengths. Non-positive dimensions give
// empty buffers and leave the rejection to the class.
func lengthsOf(wavelengths, planes int32) lengths {
	w, p := int(wavelengths), int(planes)
	if w <= 0 || p <= 0 {
		return lengths{}
	}
	return lengths{
		state:        autopilot.StateVectorLength(w, p),
		observations: autopilot.ObservationVectorLength(w, p),
		sync:         autopilot.SyncPlaneLength(w, p),
	}
}

func imageLength(width, height int32) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	return int(width) * int(height)
}
