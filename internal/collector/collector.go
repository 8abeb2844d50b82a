// Package collector orchestrates one poll: fetch from both sources per
// switch, derive rates against stored state, correlate into unified records
// and hand them to the encoder.
package collector

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"codeberg.org/mutker/nexmon/internal/config"
	"codeberg.org/mutker/nexmon/internal/encoder"
	"codeberg.org/mutker/nexmon/internal/logger"
	"codeberg.org/mutker/nexmon/internal/source"
	"codeberg.org/mutker/nexmon/internal/state"
	"codeberg.org/mutker/nexmon/internal/telemetry"
)

const (
	// Switches are independent; poll a few at a time.
	maxParallelSwitches = 4

	// Per-source deadline as a multiple of the per-request timeout from the
	// inventory. Covers login, a dozen class queries and logout.
	fetchBudgetRequests = 16
)

// Archiver is the optional local record sink.
type Archiver interface {
	Store(switchID string, records []telemetry.UnifiedRecord) error
}

type Collector struct {
	cfg        *config.Config
	store      state.Store
	engine     *telemetry.Engine
	structured source.Source
	commands   source.Source // nil when no command pull is enabled
	enc        encoder.Encoder
	arch       Archiver // nil when archiving is off

	emitMu sync.Mutex // switches are polled concurrently but share one output stream
}

func New(cfg *config.Config, store state.Store, structured, commands source.Source,
	enc encoder.Encoder, arch Archiver,
) *Collector {
	return &Collector{
		cfg:        cfg,
		store:      store,
		engine:     telemetry.NewEngine(cfg.MaxRateHeadroom),
		structured: structured,
		commands:   commands,
		enc:        enc,
		arch:       arch,
	}
}

// Run polls every switch in the inventory and returns the aggregated
// outcomes. A failed switch never blocks the others.
func (c *Collector) Run(ctx context.Context, inv *config.Inventory) *Summary {
	summary := NewSummary(inv.Malformed)

	if len(inv.Switches) == 0 {
		logger.Error().Msg("Nothing to monitor, check the inventory file")
		return summary
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelSwitches)

	for _, sw := range inv.Switches {
		sw := sw
		g.Go(func() error {
			outcomes := c.pollSwitch(gctx, sw)
			mu.Lock()
			summary.Add(outcomes...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return summary
}

func (c *Collector) pollSwitch(ctx context.Context, sw config.Switch) []Outcome {
	start := time.Now()

	var (
		structuredRes, commandRes *source.Result
		structuredErr, commandErr error
	)

	var fetchers errgroup.Group
	fetchers.Go(func() error {
		structuredRes, structuredErr = c.fetch(ctx, c.structured, sw)
		return nil
	})
	if c.commands != nil {
		fetchers.Go(func() error {
			commandRes, commandErr = c.fetch(ctx, c.commands, sw)
			return nil
		})
	}
	_ = fetchers.Wait()

	outcomes := []Outcome{outcomeFor(sw, c.structured.Name(), structuredRes, structuredErr)}
	if c.commands != nil {
		outcomes = append(outcomes, outcomeFor(sw, c.commands.Name(), commandRes, commandErr))
	}

	merged := &source.Result{}
	merged.Merge(structuredRes)
	merged.Merge(commandRes)

	prior := c.store.Load(sw.Addr)
	metrics := c.engine.Derive(prior, merged.Samples, merged.Inventory)

	records := telemetry.Correlate(telemetry.Input{
		Switch:       sw.Addr,
		Location:     sw.Location,
		Facts:        merged.Facts,
		ResponseTime: math.Round(time.Since(start).Seconds()*1000) / 1000,
		Inventory:    merged.Inventory,
		Metrics:      metrics,
		Gauges:       merged.Gauges,
		Bursts:       merged.Bursts,
		Buffers:      merged.Buffers,
		Time:         time.Now(),
	})

	c.emit(sw, records)

	// A cancelled poll may hold a half-filled sample set; its baselines
	// must not survive into the next run.
	fetched := structuredErr == nil || (c.commands != nil && commandErr == nil)
	if fetched && ctx.Err() == nil {
		if err := c.store.Save(sw.Addr, prior); err != nil {
			logger.Error().Err(err).Str("switch", sw.Addr).Msg("Failed to persist counter state")
		}
	}

	return outcomes
}

func (c *Collector) fetch(ctx context.Context, src source.Source, sw config.Switch) (*source.Result, error) {
	budget := sw.Timeout * fetchBudgetRequests
	fetchCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	res, err := src.Fetch(fetchCtx, sw)
	if err != nil {
		logger.Error().Err(err).
			Str("switch", sw.Addr).
			Str("source", src.Name()).
			Msg("Source fetch failed")
	}

	return res, err
}

func (c *Collector) emit(sw config.Switch, records []telemetry.UnifiedRecord) {
	if c.cfg.VerifyOnly {
		logger.Info().Str("switch", sw.Addr).Int("records", len(records)).
			Msg("Verify-only, skipping output")
		return
	}

	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	if err := c.enc.Encode(records); err != nil {
		logger.Error().Err(err).Str("switch", sw.Addr).Msg("Failed to encode records")
	}

	if c.arch != nil {
		if err := c.arch.Store(sw.Addr, records); err != nil {
			logger.Error().Err(err).Str("switch", sw.Addr).Msg("Failed to archive records")
		}
	}
}
