package clicmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/nexmon/internal/config"
)

const burstFixture = `{
  "TABLE_module": {
    "ROW_module": {
      "TABLE_instance": {
        "ROW_instance": [
          {
            "if-str": "Eth1/7",
            "queue": "7",
            "threshold": "18720",
            "end-depth": "12480",
            "peak": "656640",
            "peak-time": "2024/04/30 09:05:33:777848",
            "duration": "206.46 us"
          },
          {
            "if-str": "Eth1/7",
            "queue": "7",
            "threshold": "18720",
            "end-depth": "0",
            "peak": "99840",
            "peak-time": "2024/04/30 09:05:34:001200",
            "duration": "1.47 ms"
          }
        ]
      }
    }
  }
}`

const pfcwdFixture = `{
  "TABLE_module": {
    "ROW_module": {
      "TABLE_queuing_interface": {
        "ROW_queuing_interface": {
          "if_name_str": "Ethernet1/7 Interface PFC watchdog",
          "TABLE_qosgrp_stats": {
            "ROW_qosgrp_stats": {
              "eq-qosgrp": "3",
              "TABLE_qosgrp_stats_entry": {
                "ROW_qosgrp_stats_entry": [
                  {
                    "q-stat-type": "watchdog",
                    "q-shutdown": "2",
                    "q-restored": "1",
                    "q-pkts-drained": "1500",
                    "q-pkts-dropped": "380"
                  }
                ]
              }
            }
          }
        }
      }
    }
  }
}`

const bufferFixture = `{
  "TABLE_module": {
    "ROW_module": {
      "TABLE_instance": {
        "ROW_instance": [
          {
            "instance": "0",
            "max_cell_usage_drop_pg": "1200",
            "max_cell_usage_no_drop_pg": "300",
            "switch_cell_count_drop_pg": "80",
            "switch_cell_count_no_drop_pg": "N/A"
          },
          {
            "instance": "1",
            "max_cell_usage_drop_pg": "55"
          }
        ]
      }
    }
  }
}`

func TestParseBurstDetect(t *testing.T) {
	events, err := parseBurstDetect([]byte(burstFixture))
	require.NoError(t, err)
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, "eth1/7", first.Interface)
	assert.Equal(t, "7", first.Queue)
	assert.Equal(t, uint64(18720), first.StartDepth)
	assert.Equal(t, uint64(12480), first.EndDepth)
	assert.Equal(t, uint64(656640), first.PeakDepth)
	assert.Equal(t, uint64(206), first.DurationUS)

	want := time.Date(2024, 4, 30, 9, 5, 33, 777848000, time.UTC)
	assert.True(t, first.Peak.Equal(want))

	assert.Equal(t, uint64(1470), events[1].DurationUS)
}

func TestParseBurstDetectBadJSON(t *testing.T) {
	_, err := parseBurstDetect([]byte("not json"))
	assert.Error(t, err)
}

func TestParsePFCWatchdog(t *testing.T) {
	now := time.Now()
	samples, err := parsePFCWatchdog([]byte(pfcwdFixture), now)
	require.NoError(t, err)

	values := map[string]uint64{}
	for _, s := range samples {
		require.Equal(t, "eth1/7", s.Interface)
		require.True(t, s.Time.Equal(now))
		values[s.Counter] = s.Value
	}

	assert.Equal(t, map[string]uint64{
		"pfcwd/3/shutdown":     2,
		"pfcwd/3/restored":     1,
		"pfcwd/3/pkts_drained": 1500,
		"pfcwd/3/pkts_dropped": 380,
	}, values)
}

func TestParseBufferStats(t *testing.T) {
	buffers, err := parseBufferStats([]byte(bufferFixture))
	require.NoError(t, err)

	require.Contains(t, buffers, "0")
	assert.Equal(t, map[string]uint64{
		"peak_cell_drop_pg":  1200,
		"peak_cell_no_drop":  300,
		"cell_count_drop_pg": 80,
	}, buffers["0"])

	require.Contains(t, buffers, "1")
	assert.Equal(t, map[string]uint64{"peak_cell_drop_pg": 55}, buffers["1"])
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"206.46 us", 206, true},
		{"1.47 ms", 1470, true},
		{"2.5 s", 2500000, true},
		{"42", 0, false},
	}
	for _, c := range cases {
		got, ok := parseDuration(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

type fakeRunner struct {
	outputs map[string]string
	ran     []string
}

func (f *fakeRunner) Run(_ context.Context, cmd string) ([]byte, error) {
	f.ran = append(f.ran, cmd)
	return []byte(f.outputs[cmd]), nil
}

func (f *fakeRunner) Close() error { return nil }

func TestFetchRunsEnabledCommands(t *testing.T) {
	fake := &fakeRunner{outputs: map[string]string{
		cmdBurstDetect:  burstFixture,
		cmdPFCWatchdog:  pfcwdFixture,
		cmdBufferStats:  bufferFixture,
		cmdClearBuffers: "",
	}}

	src := New(config.Config{Burst: true, PFCWD: true, BufferStats: true})
	src.dial = func(context.Context, config.Switch) (runner, error) { return fake, nil }

	res, err := src.Fetch(context.Background(), config.Switch{Addr: "10.0.0.1"})
	require.NoError(t, err)

	assert.Len(t, res.Bursts, 2)
	assert.Len(t, res.Samples, 4)
	assert.Len(t, res.Buffers, 2)

	// Buffer peaks are measured since last clear, so the clear must follow
	// the read.
	require.Len(t, fake.ran, 4)
	assert.Equal(t, cmdBufferStats, fake.ran[2])
	assert.Equal(t, cmdClearBuffers, fake.ran[3])
}

func TestFetchDisabledSourceIsEmpty(t *testing.T) {
	src := New(config.Config{})
	assert.False(t, src.Enabled())

	src.dial = func(context.Context, config.Switch) (runner, error) {
		return &fakeRunner{}, nil
	}

	res, err := src.Fetch(context.Background(), config.Switch{})
	require.NoError(t, err)
	assert.Empty(t, res.Samples)
	assert.Empty(t, res.Bursts)
	assert.Empty(t, res.Buffers)
}
