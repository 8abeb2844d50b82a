// Package source defines the contract shared by the two sample producers:
// the structured-query source (NX-API over HTTPS) and the command-output
// source (parsed CLI output over an interactive session).
package source

import (
	"context"

	"codeberg.org/mutker/nexmon/internal/config"
	"codeberg.org/mutker/nexmon/internal/telemetry"
)

// Result is everything one source gathered from one switch in one poll.
// Samples go through the rate engine; gauges, inventory, facts, bursts and
// buffers flow to the correlator as-is.
type Result struct {
	Samples   []telemetry.RawSample
	Gauges    []telemetry.Gauge
	Inventory map[string]telemetry.InterfaceInventory
	Facts     *telemetry.SwitchFacts
	Bursts    []telemetry.BurstEvent
	Buffers   map[string]map[string]uint64

	// Partial marks a result where some of the source's queries failed.
	Partial bool
}

// Merge folds another result into this one. Used by sources that issue
// several independent requests per poll.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Samples = append(r.Samples, other.Samples...)
	r.Partial = r.Partial || other.Partial
	r.Gauges = append(r.Gauges, other.Gauges...)
	r.Bursts = append(r.Bursts, other.Bursts...)
	if other.Facts != nil {
		if r.Facts == nil {
			r.Facts = other.Facts
		} else {
			mergeFacts(r.Facts, other.Facts)
		}
	}
	for intf, inv := range other.Inventory {
		if r.Inventory == nil {
			r.Inventory = make(map[string]telemetry.InterfaceInventory)
		}
		r.Inventory[intf] = mergeInventory(r.Inventory[intf], inv)
	}
	for instance, fields := range other.Buffers {
		if r.Buffers == nil {
			r.Buffers = make(map[string]map[string]uint64)
		}
		r.Buffers[instance] = fields
	}
}

// Source fetches raw samples for one switch. Implementations fail
// independently: an error from one source never prevents the other from
// contributing to the same poll.
type Source interface {
	Name() string
	Fetch(ctx context.Context, sw config.Switch) (*Result, error)
}

func mergeFacts(dst, src *telemetry.SwitchFacts) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.Version != "" {
		dst.Version = src.Version
	}
	if src.CPUUser != 0 {
		dst.CPUUser = src.CPUUser
	}
	if src.CPUKernel != 0 {
		dst.CPUKernel = src.CPUKernel
	}
	if src.MemTotal != 0 {
		dst.MemTotal = src.MemTotal
	}
	if src.MemUsed != 0 {
		dst.MemUsed = src.MemUsed
	}
	if src.UptimeSec != 0 {
		dst.UptimeSec = src.UptimeSec
	}
}

// mergeInventory overlays non-empty fields from src, since inventory arrives
// spread over several object classes.
func mergeInventory(dst, src telemetry.InterfaceInventory) telemetry.InterfaceInventory {
	if dst.Interface == "" {
		return src
	}
	if src.SpeedBps != 0 {
		dst.SpeedBps = src.SpeedBps
	}
	if src.AdminState != "" {
		dst.AdminState = src.AdminState
	}
	if src.OperState != "" {
		dst.OperState = src.OperState
	}
	if src.OperMode != "" {
		dst.OperMode = src.OperMode
	}
	if src.Description != "" {
		dst.Description = src.Description
	}
	if src.DownReason != "" {
		dst.DownReason = src.DownReason
	}
	if src.Peer.Type != "" {
		dst.Peer = src.Peer
	}

	return dst
}
