// Package telemetry holds the counter data model and the rate and
// correlation logic that turns raw switch counter readings into unified
// per-interface records.
package telemetry

import "time"

// RawSample is a single counter reading taken from a switch. Interface is
// empty for switch-global counters. Time is the wall-clock instant the value
// was observed, not the start of the poll.
type RawSample struct {
	Interface string
	Counter   string
	Value     uint64
	Time      time.Time
}

// StoredSample is the persisted prior observation for one counter key.
type StoredSample struct {
	Value uint64    `json:"value"`
	Time  time.Time `json:"time"`
}

// Key identifies one counter on one interface within a switch's state store.
type Key struct {
	Interface string `json:"interface"`
	Counter   string `json:"counter"`
}

// Gauge is a point-in-time value that needs no rate conversion, such as a
// queue depth or a buffer cell count.
type Gauge struct {
	Interface string
	Name      string
	Value     float64
}

// DerivedMetric is a rate or percentage computed from a RawSample and its
// stored prior. When FirstSample or ResetDetected is set, Value is undefined
// and must not be emitted.
type DerivedMetric struct {
	Interface     string
	Name          string
	Value         float64
	FirstSample   bool
	ResetDetected bool
}

// PeerInfo describes the LLDP neighbor seen on an interface.
type PeerInfo struct {
	Type      string
	Addr      string
	Name      string
	Interface string
}

// InterfaceInventory is the static per-interface description supplied by the
// structured-query source.
type InterfaceInventory struct {
	Interface   string
	SpeedBps    uint64
	AdminState  string
	OperState   string
	OperMode    string
	Description string
	DownReason  string
	Peer        PeerInfo
}

// SwitchFacts are switch-global facts reported alongside interface data.
type SwitchFacts struct {
	Name      string
	Model     string
	Version   string
	CPUUser   float64
	CPUKernel float64
	MemTotal  uint64
	MemUsed   uint64
	UptimeSec uint64
}

// BurstEvent is one microburst detection reported by the command-output
// source. Peak carries the event's own timestamp from the switch.
type BurstEvent struct {
	Interface  string
	Queue      string
	StartDepth uint64
	EndDepth   uint64
	PeakDepth  uint64
	DurationUS uint64
	Peak       time.Time
}

// UnifiedRecord is the output unit consumed by the encoder: one measurement
// line with its tags, typed fields and timestamp.
type UnifiedRecord struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Time        time.Time
}
