package clicmd

import (
	"regexp"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"

	"codeberg.org/mutker/nexmon/internal/errors"
	"codeberg.org/mutker/nexmon/internal/logger"
	"codeberg.org/mutker/nexmon/internal/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// The switch wraps JSON command output in TABLE_/ROW_ pairs. A table with a
// single row comes back as a bare object instead of a one-element array, so
// everything goes through rows().
func rows(v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, e := range t {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		return []map[string]any{t}
	default:
		return nil
	}
}

func objAt(m map[string]any, keys ...string) (map[string]any, bool) {
	for _, k := range keys {
		next, ok := m[k].(map[string]any)
		if !ok {
			return nil, false
		}
		m = next
	}

	return m, true
}

func moduleRows(data []byte) ([]map[string]any, error) {
	var top map[string]any
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, errors.New().Wrap(ErrBadOutput, err)
	}
	table, ok := objAt(top, "TABLE_module")
	if !ok {
		return nil, errors.New().WithMessage(ErrBadOutput, "TABLE_module not found")
	}

	return rows(table["ROW_module"]), nil
}

func instanceRows(data []byte) ([]map[string]any, error) {
	modules, err := moduleRows(data)
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for _, mod := range modules {
		table, ok := objAt(mod, "TABLE_instance")
		if !ok {
			continue
		}
		out = append(out, rows(table["ROW_instance"])...)
	}

	return out, nil
}

const peakTimeLayout = "2006/01/02 15:04:05.000000"

// parsePeakTime handles the switch's "2024/04/30 09:05:33:777848" stamps,
// where a colon separates seconds from microseconds.
func parsePeakTime(s string) (time.Time, bool) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return time.Time{}, false
	}
	ts, err := time.Parse(peakTimeLayout, s[:i]+"."+s[i+1:])
	if err != nil {
		return time.Time{}, false
	}

	return ts, true
}

// parseDuration converts "206.46 us", "1.47 ms" or "2.1 s" to microseconds.
// Unit checks are ordered; "s" matches everything.
func parseDuration(s string) (uint64, bool) {
	switch {
	case strings.Contains(s, "us"):
		v := cast.ToFloat64(strings.TrimSpace(strings.Replace(s, "us", "", 1)))
		return uint64(v), true
	case strings.Contains(s, "ms"):
		v := cast.ToFloat64(strings.TrimSpace(strings.Replace(s, "ms", "", 1)))
		return uint64(v * 1000), true
	case strings.Contains(s, "s"):
		v := cast.ToFloat64(strings.TrimSpace(strings.Replace(s, "s", "", 1)))
		return uint64(v * 1000000), true
	default:
		return 0, false
	}
}

// parseBurstDetect extracts microburst events from
// "show queuing burst-detect detail | json".
func parseBurstDetect(data []byte) ([]telemetry.BurstEvent, error) {
	instances, err := instanceRows(data)
	if err != nil {
		return nil, err
	}

	var events []telemetry.BurstEvent
	for _, row := range instances {
		intf := strings.ToLower(cast.ToString(row["if-str"]))
		if intf == "" {
			logger.Warn().Msg("Burst row without if-str, skipping")
			continue
		}
		ev := telemetry.BurstEvent{
			Interface:  intf,
			Queue:      cast.ToString(row["queue"]),
			StartDepth: cast.ToUint64(row["threshold"]),
			EndDepth:   cast.ToUint64(row["end-depth"]),
			PeakDepth:  cast.ToUint64(row["peak"]),
		}
		if ts, ok := parsePeakTime(cast.ToString(row["peak-time"])); ok {
			ev.Peak = ts
		}
		dur, ok := parseDuration(cast.ToString(row["duration"]))
		if !ok {
			logger.Warn().Str("intf", intf).Msg("Unknown burst duration unit, skipping")
			continue
		}
		ev.DurationUS = dur
		events = append(events, ev)
	}

	return events, nil
}

var pfcIntfRe = regexp.MustCompile(`(?i)(Eth\S*?)\s`)

// parsePFCWatchdog extracts per-qos-group watchdog counters from
// "show queuing pfc-queue detail | json". Counters are keyed
// pfcwd/<qosgrp>/<name> so the rate engine treats them like any other
// interface counter.
func parsePFCWatchdog(data []byte, sampledAt time.Time) ([]telemetry.RawSample, error) {
	modules, err := moduleRows(data)
	if err != nil {
		return nil, err
	}

	var samples []telemetry.RawSample
	for _, mod := range modules {
		table, ok := objAt(mod, "TABLE_queuing_interface")
		if !ok {
			continue
		}
		for _, row := range rows(table["ROW_queuing_interface"]) {
			name := cast.ToString(row["if_name_str"])
			m := pfcIntfRe.FindStringSubmatch(name + " ")
			if m == nil {
				continue
			}
			intf := strings.ToLower(strings.Replace(m[1], "Ethernet", "eth", 1))

			qosTable, ok := objAt(row, "TABLE_qosgrp_stats")
			if !ok {
				continue
			}
			for _, qos := range rows(qosTable["ROW_qosgrp_stats"]) {
				group := cast.ToString(qos["eq-qosgrp"])
				if group == "" {
					logger.Warn().Str("intf", intf).Msg("Watchdog group without eq-qosgrp, skipping")
					continue
				}
				entryTable, ok := objAt(qos, "TABLE_qosgrp_stats_entry")
				if !ok {
					continue
				}
				prefix := "pfcwd/" + group + "/"
				for _, entry := range rows(entryTable["ROW_qosgrp_stats_entry"]) {
					for key, val := range entry {
						if strings.Contains(key, "q-stat-type") {
							continue
						}
						counter := strings.ReplaceAll(strings.TrimPrefix(key, "q-"), "-", "_")
						value, err := cast.ToUint64E(val)
						if err != nil {
							continue
						}
						samples = append(samples, telemetry.RawSample{
							Interface: intf,
							Counter:   prefix + counter,
							Value:     value,
							Time:      sampledAt,
						})
					}
				}
			}
		}
	}

	return samples, nil
}

// Peak and current cell usage fields from the buffer block. The switch
// reports N/A for unsupported columns; those are dropped.
var bufferFields = map[string]string{
	"max_cell_usage_drop_pg":       "peak_cell_drop_pg",
	"max_cell_usage_no_drop_pg":    "peak_cell_no_drop",
	"switch_cell_count_drop_pg":    "cell_count_drop_pg",
	"switch_cell_count_no_drop_pg": "cell_count_no_drop_pg",
}

// parseBufferStats extracts per-instance shared-buffer usage from
// "show hardware internal buffer info pkt-stats | json".
func parseBufferStats(data []byte) (map[string]map[string]uint64, error) {
	instances, err := instanceRows(data)
	if err != nil {
		return nil, err
	}

	buffers := make(map[string]map[string]uint64)
	for _, row := range instances {
		instance := cast.ToString(row["instance"])
		if instance == "" {
			logger.Warn().Msg("Buffer row without instance, skipping")
			continue
		}
		fields := make(map[string]uint64)
		for src, dst := range bufferFields {
			raw, ok := row[src]
			if !ok || strings.Contains(cast.ToString(raw), "N") {
				continue
			}
			if v, err := cast.ToUint64E(raw); err == nil {
				fields[dst] = v
			}
		}
		buffers[instance] = fields
	}

	return buffers, nil
}
