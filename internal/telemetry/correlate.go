package telemetry

import (
	"sort"
	"strings"
	"time"
)

// Measurement names in the emitted output.
const (
	MeasurementSwitch  = "Switches"
	MeasurementIntf    = "SwitchIntfStats"
	MeasurementQueue   = "SwitchQStats"
	MeasurementPFCWD   = "SwitchPFCWD"
	MeasurementBurst   = "SwitchBurst"
	MeasurementBuffers = "SwitchBufferStats"
)

// Input carries one switch's poll results into the correlator. Any subset of
// the sources may be missing; absent parts degrade the record set instead of
// dropping it.
type Input struct {
	Switch       string
	Location     string
	Facts        *SwitchFacts
	ResponseTime float64
	Inventory    map[string]InterfaceInventory
	Metrics      []DerivedMetric
	Gauges       []Gauge
	Bursts       []BurstEvent
	Buffers      map[string]map[string]uint64
	Time         time.Time
}

// Correlate merges inventory, derived metrics and gauges into one unified
// record set keyed by interface. Interfaces present only in inventory are
// still emitted with their state and description so dashboards show a
// reachable switch with no fresh counters rather than a gap.
func Correlate(in Input) []UnifiedRecord {
	records := []UnifiedRecord{switchRecord(in)}

	type scoped struct {
		fields map[string]any
		resets int
	}
	intfFields := map[string]*scoped{}
	queueFields := map[[2]string]map[string]any{} // keyed by (intf, queue)
	wdFields := map[[2]string]map[string]any{}    // keyed by (intf, qosgrp)

	ensure := func(intf string) *scoped {
		s := intfFields[intf]
		if s == nil {
			s = &scoped{fields: map[string]any{}}
			intfFields[intf] = s
		}
		return s
	}

	place := func(intf, name string, value any, reset bool) {
		scope, rest, found := strings.Cut(name, "/")
		if !found {
			s := ensure(intf)
			if reset {
				s.resets++
				return
			}
			s.fields[name] = value
			return
		}
		group, metric, _ := strings.Cut(rest, "/")
		key := [2]string{intf, group}
		var dst map[[2]string]map[string]any
		switch scope {
		case "queue":
			dst = queueFields
		case "pfcwd":
			dst = wdFields
		default:
			return
		}
		if reset {
			ensure(intf).resets++
			return
		}
		if dst[key] == nil {
			dst[key] = map[string]any{}
		}
		dst[key][metric] = value
	}

	for _, m := range in.Metrics {
		if m.Interface == "" {
			// Switch-global rates belong on the switch record.
			if !m.FirstSample && !m.ResetDetected {
				records[0].Fields[m.Name] = m.Value
			}
			continue
		}
		if m.FirstSample {
			ensure(m.Interface) // baseline-only interfaces still get a record
			continue
		}
		place(m.Interface, m.Name, m.Value, m.ResetDetected)
	}

	for _, g := range in.Gauges {
		place(g.Interface, g.Name, g.Value, false)
	}

	for intf := range in.Inventory {
		ensure(intf)
	}

	for _, intf := range sortedKeys(intfFields) {
		s := intfFields[intf]
		rec := UnifiedRecord{
			Measurement: MeasurementIntf,
			Tags:        intfTags(in, intf),
			Fields:      s.fields,
			Time:        in.Time,
		}
		if inv, ok := in.Inventory[intf]; ok {
			if inv.Description != "" {
				rec.Fields["description"] = inv.Description
			}
			if inv.DownReason != "" {
				rec.Fields["down_reason"] = inv.DownReason
			}
			if inv.SpeedBps > 0 {
				// Reported in Gbps to match the dashboard convention.
				rec.Fields["oper_speed"] = int64(inv.SpeedBps / 1_000_000_000)
			}
		}
		if s.resets > 0 {
			rec.Fields["counter_resets"] = int64(s.resets)
		}
		records = append(records, rec)
	}

	for _, key := range sortedPairs(queueFields) {
		tags := intfTags(in, key[0])
		tags["q"] = key[1]
		records = append(records, UnifiedRecord{
			Measurement: MeasurementQueue,
			Tags:        tags,
			Fields:      queueFields[key],
			Time:        in.Time,
		})
	}

	for _, key := range sortedPairs(wdFields) {
		tags := intfTags(in, key[0])
		tags["qosgrp"] = key[1]
		records = append(records, UnifiedRecord{
			Measurement: MeasurementPFCWD,
			Tags:        tags,
			Fields:      wdFields[key],
			Time:        in.Time,
		})
	}

	for _, b := range in.Bursts {
		tags := intfTags(in, b.Interface)
		tags["q"] = b.Queue
		records = append(records, UnifiedRecord{
			Measurement: MeasurementBurst,
			Tags:        tags,
			Fields: map[string]any{
				"start-depth": int64(b.StartDepth),
				"end-depth":   int64(b.EndDepth),
				"peak":        int64(b.PeakDepth),
				"duration":    int64(b.DurationUS),
			},
			Time: b.Peak,
		})
	}

	for _, instance := range sortedKeys(in.Buffers) {
		tags := baseTags(in)
		tags["instance"] = instance
		fields := map[string]any{}
		for name, v := range in.Buffers[instance] {
			fields[name] = int64(v)
		}
		records = append(records, UnifiedRecord{
			Measurement: MeasurementBuffers,
			Tags:        tags,
			Fields:      fields,
			Time:        in.Time,
		})
	}

	return records
}

func switchRecord(in Input) UnifiedRecord {
	fields := map[string]any{
		"response_time": in.ResponseTime,
	}
	if f := in.Facts; f != nil {
		fields["model"] = f.Model
		fields["sys_ver"] = f.Version
		fields["cpu_user"] = f.CPUUser
		fields["cpu_kernel"] = f.CPUKernel
		fields["mem_total"] = int64(f.MemTotal)
		fields["mem_used"] = int64(f.MemUsed)
		fields["kernel_uptime"] = int64(f.UptimeSec)
	}

	return UnifiedRecord{
		Measurement: MeasurementSwitch,
		Tags:        baseTags(in),
		Fields:      fields,
		Time:        in.Time,
	}
}

func baseTags(in Input) map[string]string {
	tags := map[string]string{
		"switch": in.Switch,
		"type":   "nexus",
	}
	if in.Location != "" {
		tags["location"] = in.Location
	}
	if in.Facts != nil && in.Facts.Name != "" {
		tags["switchname"] = in.Facts.Name
	}

	return tags
}

func intfTags(in Input, intf string) map[string]string {
	tags := baseTags(in)
	tags["intf"] = intf
	if inv, ok := in.Inventory[intf]; ok {
		setTag(tags, "admin_state", inv.AdminState)
		setTag(tags, "oper_state", inv.OperState)
		setTag(tags, "oper_mode", inv.OperMode)
		setTag(tags, "peer_type", inv.Peer.Type)
		setTag(tags, "peer", inv.Peer.Addr)
		setTag(tags, "peer_name", inv.Peer.Name)
		setTag(tags, "peer_intf", inv.Peer.Interface)
	}

	return tags
}

// setTag skips empty values so no null tags reach the encoder.
func setTag(tags map[string]string, key, value string) {
	if value != "" {
		tags[key] = value
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

func sortedPairs[V any](m map[[2]string]V) [][2]string {
	keys := make([][2]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	return keys
}
