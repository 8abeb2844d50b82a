package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/nexmon/internal/archive"
	"codeberg.org/mutker/nexmon/internal/collector"
	"codeberg.org/mutker/nexmon/internal/config"
	"codeberg.org/mutker/nexmon/internal/encoder"
	"codeberg.org/mutker/nexmon/internal/errors"
	"codeberg.org/mutker/nexmon/internal/logger"
	"codeberg.org/mutker/nexmon/internal/pid"
	"codeberg.org/mutker/nexmon/internal/source"
	"codeberg.org/mutker/nexmon/internal/source/clicmd"
	"codeberg.org/mutker/nexmon/internal/source/nxapi"
	"codeberg.org/mutker/nexmon/internal/state"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 2
	}

	logger.Init(logLevel(cfg.Verbosity), cfg.LogFile)
	logger.Debug().Msg("Config loaded")

	store, err := state.NewFileStore(cfg.StateDir)
	if err != nil {
		logger.Error().Err(err).Str("dir", cfg.StateDir).Msg("Failed to open state directory")
		return 1
	}

	// One poll at a time per state directory, or the rate windows would
	// trample each other.
	if err := pid.Write(cfg.StateDir); err != nil {
		if errors.HasCode(err, errors.ErrAlreadyRunning) {
			logger.Error().Msg("Another poll is already running against this state directory")
		} else {
			logger.Error().Err(err).Msg("Failed to write PID file")
		}
		return 1
	}
	defer func() {
		if err := pid.Remove(cfg.StateDir); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	inv, err := config.LoadInventory(cfg.InventoryFile)
	if err != nil {
		logger.Error().Err(err).Str("file", cfg.InventoryFile).Msg("Failed to read inventory")
		return 1
	}

	enc, err := encoder.New(encoder.Format(cfg.OutputFormat), os.Stdout)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create encoder")
		return 2
	}

	var arch collector.Archiver
	if cfg.ArchiveDB != "" {
		a, err := archive.Open(cfg.ArchiveDB)
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.ArchiveDB).Msg("Failed to open record archive")
			return 1
		}
		defer func() {
			if err := a.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close record archive")
			}
		}()
		arch = a
	}

	var commands source.Source
	if cfg.CLIEnabled() {
		commands = clicmd.New(*cfg)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := collector.New(cfg, store, nxapi.New(), commands, enc, arch)
	summary := c.Run(ctx, inv)
	summary.Log()

	if summary.Failed() {
		return 1
	}

	return 0
}

func logLevel(verbosity int) logger.LogLevel {
	switch {
	case verbosity >= 3:
		return logger.DebugLevel
	case verbosity == 2:
		return logger.InfoLevel
	case verbosity == 1:
		return logger.WarnLevel
	default:
		return logger.ErrorLevel
	}
}
