package telemetry

import "strings"

// CounterKind selects the plausibility ceiling used for wraparound detection.
type CounterKind int

const (
	KindOctets CounterKind = iota
	KindPackets
	KindEvents
)

// CounterSpec describes the fixed semantics of one hardware counter: its bit
// width, its unit class, and the names of the metrics derived from it. A
// counter without a catalog entry produces no derived metric.
type CounterSpec struct {
	Width    uint8
	Kind     CounterKind
	RateName string
	UtilName string
}

// Interface counters from the structured-query source. The high-capacity
// octet and packet counters are 64-bit; the classic RMON error counters on
// this platform are 32-bit.
var catalog = map[string]CounterSpec{
	"rx_bytes":          {Width: 64, Kind: KindOctets, RateName: "rx_bps", UtilName: "rx_util"},
	"tx_bytes":          {Width: 64, Kind: KindOctets, RateName: "tx_bps", UtilName: "tx_util"},
	"rx_ucast_pkts":     {Width: 64, Kind: KindPackets, RateName: "rx_ucast_pps"},
	"rx_multicast_pkts": {Width: 64, Kind: KindPackets, RateName: "rx_multicast_pps"},
	"rx_broadcast_pkts": {Width: 64, Kind: KindPackets, RateName: "rx_broadcast_pps"},
	"tx_ucast_pkts":     {Width: 64, Kind: KindPackets, RateName: "tx_ucast_pps"},
	"tx_multicast_pkts": {Width: 64, Kind: KindPackets, RateName: "tx_multicast_pps"},
	"tx_broadcast_pkts": {Width: 64, Kind: KindPackets, RateName: "tx_broadcast_pps"},
	"rx_crc":            {Width: 32, Kind: KindEvents, RateName: "rx_crc_rate"},
	"rx_crc_stomped":    {Width: 32, Kind: KindEvents, RateName: "rx_crc_stomped_rate"},
	"rx_jumbo":          {Width: 64, Kind: KindPackets, RateName: "rx_jumbo_pps"},
	"tx_jumbo":          {Width: 64, Kind: KindPackets, RateName: "tx_jumbo_pps"},

	// Per-queue counters, keyed under queue/<name>/<counter>
	"drop_bytes":      {Width: 64, Kind: KindOctets, RateName: "drop_bps"},
	"drop_pkts":       {Width: 64, Kind: KindPackets, RateName: "drop_pps"},
	"tx_pkts":         {Width: 64, Kind: KindPackets, RateName: "tx_pps"},
	"rx_pause":        {Width: 64, Kind: KindEvents, RateName: "rx_pause_rate"},
	"tx_pause":        {Width: 64, Kind: KindEvents, RateName: "tx_pause_rate"},
	"ecn_marked_pkts": {Width: 64, Kind: KindPackets, RateName: "ecn_marked_pps"},
	"rand_drop_bytes": {Width: 64, Kind: KindOctets, RateName: "rand_drop_bps"},
	"rand_drop_pkts":  {Width: 64, Kind: KindPackets, RateName: "rand_drop_pps"},

	// PFC watchdog counters, keyed under pfcwd/<qosgrp>/<counter>
	"shutdown":     {Width: 32, Kind: KindEvents, RateName: "shutdown_rate"},
	"restored":     {Width: 32, Kind: KindEvents, RateName: "restored_rate"},
	"pkts_drained": {Width: 64, Kind: KindPackets, RateName: "pkts_drained_pps"},
	"pkts_dropped": {Width: 64, Kind: KindPackets, RateName: "pkts_dropped_pps"},
}

// Lookup resolves a counter name to its catalog entry. Scoped counter names
// ("queue/q1/tx_pkts") resolve through their last path segment.
func Lookup(counter string) (CounterSpec, bool) {
	if i := strings.LastIndexByte(counter, '/'); i >= 0 {
		counter = counter[i+1:]
	}
	spec, ok := catalog[counter]

	return spec, ok
}

// ScopedName rebuilds the derived metric name with the same scope prefix as
// the source counter, so queue/q1/tx_pkts derives queue/q1/tx_pps.
func ScopedName(counter, derived string) string {
	if i := strings.LastIndexByte(counter, '/'); i >= 0 {
		return counter[:i+1] + derived
	}

	return derived
}
