// Package clicmd is the command-output sample source. A few queue-level
// diagnostics never made it into the structured API, so they are pulled by
// running show commands over SSH and parsing the JSON output.
package clicmd

import (
	"context"
	"time"

	"codeberg.org/mutker/nexmon/internal/config"
	"codeberg.org/mutker/nexmon/internal/logger"
	"codeberg.org/mutker/nexmon/internal/source"
)

const (
	cmdBurstDetect  = "show queuing burst-detect detail | json"
	cmdPFCWatchdog  = "show queuing pfc-queue detail | json"
	cmdBufferStats  = "show hardware internal buffer info pkt-stats | json"
	cmdClearBuffers = "clear counters buffers"
)

// Source runs the command-output pulls enabled by feature flags. With no
// flags set it contributes nothing and is not scheduled at all.
type Source struct {
	burst       bool
	pfcwd       bool
	bufferStats bool

	dial func(ctx context.Context, sw config.Switch) (runner, error)
}

func New(cfg config.Config) *Source {
	return &Source{
		burst:       cfg.Burst,
		pfcwd:       cfg.PFCWD,
		bufferStats: cfg.BufferStats,
		dial:        dial,
	}
}

func (*Source) Name() string {
	return "clicmd"
}

// Enabled reports whether any command pull is switched on.
func (s *Source) Enabled() bool {
	return s.burst || s.pfcwd || s.bufferStats
}

func (s *Source) Fetch(ctx context.Context, sw config.Switch) (*source.Result, error) {
	r, err := s.dial(ctx, sw)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	res := &source.Result{}

	if s.burst {
		out, err := r.Run(ctx, cmdBurstDetect)
		if err != nil {
			return nil, err
		}
		events, err := parseBurstDetect(out)
		if err != nil {
			return nil, err
		}
		res.Bursts = events
	}

	if s.pfcwd {
		out, err := r.Run(ctx, cmdPFCWatchdog)
		if err != nil {
			return nil, err
		}
		samples, err := parsePFCWatchdog(out, time.Now())
		if err != nil {
			return nil, err
		}
		res.Samples = append(res.Samples, samples...)
	}

	if s.bufferStats {
		out, err := r.Run(ctx, cmdBufferStats)
		if err != nil {
			return nil, err
		}
		buffers, err := parseBufferStats(out)
		if err != nil {
			return nil, err
		}
		res.Buffers = buffers

		// Peak usage is measured since the last clear, so reset it for the
		// next poll window.
		if _, err := r.Run(ctx, cmdClearBuffers); err != nil {
			logger.Warn().Err(err).Str("switch", sw.Addr).Msg("Failed to clear buffer counters")
		}
	}

	return res, nil
}
