package telemetry_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/nexmon/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInput(now time.Time) telemetry.Input {
	return telemetry.Input{
		Switch:   "10.0.0.1",
		Location: "lab1",
		Facts: &telemetry.SwitchFacts{
			Name:      "n9k-leaf-1",
			Model:     "N9K-C93180YC-FX",
			Version:   "10.4(2)",
			CPUUser:   3.5,
			CPUKernel: 1.2,
			MemTotal:  16384,
			MemUsed:   8192,
			UptimeSec: 3600,
		},
		ResponseTime: 0.42,
		Inventory: map[string]telemetry.InterfaceInventory{
			"eth1/1": {
				Interface:   "eth1/1",
				SpeedBps:    100e9,
				AdminState:  "up",
				OperState:   "up",
				Description: "to-host-42",
				Peer:        telemetry.PeerInfo{Type: "host", Addr: "10.0.1.42", Name: "host42", Interface: "enp1s0"},
			},
			"eth1/2": {
				Interface:  "eth1/2",
				AdminState: "up",
				OperState:  "down",
				DownReason: "linkFailure",
			},
		},
		Time: now,
	}
}

func findRecords(records []telemetry.UnifiedRecord, measurement string) []telemetry.UnifiedRecord {
	var out []telemetry.UnifiedRecord
	for _, r := range records {
		if r.Measurement == measurement {
			out = append(out, r)
		}
	}

	return out
}

func TestCorrelateSwitchRecord(t *testing.T) {
	now := time.Now()
	records := telemetry.Correlate(testInput(now))

	sw := findRecords(records, telemetry.MeasurementSwitch)
	require.Len(t, sw, 1)
	assert.Equal(t, "10.0.0.1", sw[0].Tags["switch"])
	assert.Equal(t, "lab1", sw[0].Tags["location"])
	assert.Equal(t, "n9k-leaf-1", sw[0].Tags["switchname"])
	assert.Equal(t, "nexus", sw[0].Tags["type"])
	assert.Equal(t, "N9K-C93180YC-FX", sw[0].Fields["model"])
	assert.Equal(t, int64(3600), sw[0].Fields["kernel_uptime"])
	assert.Equal(t, 0.42, sw[0].Fields["response_time"])
}

func TestCorrelateInventoryOnlyInterfaceStillEmitted(t *testing.T) {
	now := time.Now()
	in := testInput(now)
	in.Metrics = []telemetry.DerivedMetric{
		{Interface: "eth1/1", Name: "rx_bps", Value: 1e9},
	}

	records := telemetry.Correlate(in)
	intf := findRecords(records, telemetry.MeasurementIntf)
	require.Len(t, intf, 2, "Interface with no metrics must still be emitted")

	byIntf := map[string]telemetry.UnifiedRecord{}
	for _, r := range intf {
		byIntf[r.Tags["intf"]] = r
	}

	withMetrics := byIntf["eth1/1"]
	assert.Equal(t, 1e9, withMetrics.Fields["rx_bps"])
	assert.Equal(t, "to-host-42", withMetrics.Fields["description"])
	assert.Equal(t, "host", withMetrics.Tags["peer_type"])
	assert.Equal(t, "host42", withMetrics.Tags["peer_name"])

	inventoryOnly := byIntf["eth1/2"]
	assert.Equal(t, "down", inventoryOnly.Tags["oper_state"])
	assert.Equal(t, "linkFailure", inventoryOnly.Fields["down_reason"])
	assert.NotContains(t, inventoryOnly.Fields, "rx_bps")
	assert.NotContains(t, inventoryOnly.Tags, "peer_type", "No null tags")
}

func TestCorrelateFlaggedMetricsSuppressed(t *testing.T) {
	now := time.Now()
	in := testInput(now)
	in.Metrics = []telemetry.DerivedMetric{
		{Interface: "eth1/1", Name: "rx_bps", FirstSample: true},
		{Interface: "eth1/1", Name: "tx_bps", ResetDetected: true},
	}

	records := telemetry.Correlate(in)
	intf := findRecords(records, telemetry.MeasurementIntf)
	for _, r := range intf {
		if r.Tags["intf"] != "eth1/1" {
			continue
		}
		assert.NotContains(t, r.Fields, "rx_bps")
		assert.NotContains(t, r.Fields, "tx_bps")
		assert.Equal(t, int64(1), r.Fields["counter_resets"])
	}
}

func TestCorrelateQueueAndWatchdogScopes(t *testing.T) {
	now := time.Now()
	in := testInput(now)
	in.Metrics = []telemetry.DerivedMetric{
		{Interface: "eth1/1", Name: "queue/q3/tx_pps", Value: 1000},
		{Interface: "eth1/1", Name: "pfcwd/1/shutdown_rate", Value: 0.5},
	}
	in.Gauges = []telemetry.Gauge{
		{Interface: "eth1/1", Name: "queue/q3/q_depth", Value: 77},
	}

	records := telemetry.Correlate(in)

	queues := findRecords(records, telemetry.MeasurementQueue)
	require.Len(t, queues, 1)
	assert.Equal(t, "q3", queues[0].Tags["q"])
	assert.Equal(t, 1000.0, queues[0].Fields["tx_pps"])
	assert.Equal(t, 77.0, queues[0].Fields["q_depth"])

	wd := findRecords(records, telemetry.MeasurementPFCWD)
	require.Len(t, wd, 1)
	assert.Equal(t, "1", wd[0].Tags["qosgrp"])
	assert.Equal(t, 0.5, wd[0].Fields["shutdown_rate"])
}

func TestCorrelateBurstsAndBuffers(t *testing.T) {
	now := time.Now()
	peak := now.Add(-2 * time.Second)
	in := testInput(now)
	in.Bursts = []telemetry.BurstEvent{
		{Interface: "eth1/1", Queue: "7", StartDepth: 100, EndDepth: 50, PeakDepth: 4000, DurationUS: 206, Peak: peak},
	}
	in.Buffers = map[string]map[string]uint64{
		"0": {"peak_cell_drop_pg": 1200, "cell_count_drop_pg": 30},
	}

	records := telemetry.Correlate(in)

	bursts := findRecords(records, telemetry.MeasurementBurst)
	require.Len(t, bursts, 1)
	assert.Equal(t, "7", bursts[0].Tags["q"])
	assert.Equal(t, int64(4000), bursts[0].Fields["peak"])
	assert.Equal(t, peak, bursts[0].Time, "Burst records carry the event timestamp")

	buffers := findRecords(records, telemetry.MeasurementBuffers)
	require.Len(t, buffers, 1)
	assert.Equal(t, "0", buffers[0].Tags["instance"])
	assert.Equal(t, int64(1200), buffers[0].Fields["peak_cell_drop_pg"])
}
