package collector_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/nexmon/internal/collector"
	"codeberg.org/mutker/nexmon/internal/config"
	"codeberg.org/mutker/nexmon/internal/errors"
	"codeberg.org/mutker/nexmon/internal/source"
	"codeberg.org/mutker/nexmon/internal/telemetry"
)

type fakeSource struct {
	name string
	res  *source.Result
	err  error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(context.Context, config.Switch) (*source.Result, error) {
	return f.res, f.err
}

type memStore struct {
	saved map[string]map[telemetry.Key]telemetry.StoredSample
}

func newMemStore() *memStore {
	return &memStore{saved: map[string]map[telemetry.Key]telemetry.StoredSample{}}
}

func (m *memStore) Load(switchID string) map[telemetry.Key]telemetry.StoredSample {
	out := map[telemetry.Key]telemetry.StoredSample{}
	for k, v := range m.saved[switchID] {
		out[k] = v
	}
	return out
}

func (m *memStore) Save(switchID string, s map[telemetry.Key]telemetry.StoredSample) error {
	m.saved[switchID] = s
	return nil
}

type captureEncoder struct {
	batches [][]telemetry.UnifiedRecord
}

func (c *captureEncoder) Encode(records []telemetry.UnifiedRecord) error {
	c.batches = append(c.batches, records)
	return nil
}

func inventoryWith(switches ...config.Switch) *config.Inventory {
	return &config.Inventory{Switches: switches}
}

func testSwitch() config.Switch {
	return config.Switch{
		Addr:     "10.0.0.1",
		Username: "admin",
		Password: "pw",
		Protocol: "https",
		Port:     443,
		Timeout:  time.Second,
		Location: "lab1",
	}
}

func structuredResult(at time.Time, rxBytes uint64) *source.Result {
	return &source.Result{
		Samples: []telemetry.RawSample{
			{Interface: "eth1/1", Counter: "rx_bytes", Value: rxBytes, Time: at},
		},
		Inventory: map[string]telemetry.InterfaceInventory{
			"eth1/1": {Interface: "eth1/1", SpeedBps: 100e9, OperState: "up"},
		},
	}
}

func TestRunEmitsAndPersists(t *testing.T) {
	store := newMemStore()
	enc := &captureEncoder{}
	now := time.Now()

	structured := &fakeSource{name: "nxapi", res: structuredResult(now, 1000)}
	c := collector.New(&config.Config{MaxRateHeadroom: 2.0}, store, structured, nil, enc, nil)

	summary := c.Run(context.Background(), inventoryWith(testSwitch()))
	require.False(t, summary.Failed())
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, collector.StatusOK, summary.Outcomes[0].Status)

	require.Len(t, enc.batches, 1)
	var measurements []string
	for _, rec := range enc.batches[0] {
		measurements = append(measurements, rec.Measurement)
	}
	assert.Contains(t, measurements, telemetry.MeasurementSwitch)
	assert.Contains(t, measurements, telemetry.MeasurementIntf)

	key := telemetry.Key{Interface: "eth1/1", Counter: "rx_bytes"}
	saved, ok := store.saved["10.0.0.1"][key]
	require.True(t, ok)
	assert.Equal(t, uint64(1000), saved.Value)

	// Second poll against the saved baseline yields a rate.
	structured.res = structuredResult(now.Add(10*time.Second), 2000)
	summary = c.Run(context.Background(), inventoryWith(testSwitch()))
	require.False(t, summary.Failed())

	require.Len(t, enc.batches, 2)
	var rxBps float64
	for _, rec := range enc.batches[1] {
		if rec.Measurement == telemetry.MeasurementIntf {
			if v, ok := rec.Fields["rx_bps"].(float64); ok {
				rxBps = v
			}
		}
	}
	assert.InDelta(t, 800.0, rxBps, 0.001) // 1000 bytes over 10s
}

func TestRunStructuredFailure(t *testing.T) {
	store := newMemStore()
	enc := &captureEncoder{}
	structured := &fakeSource{name: "nxapi", err: errors.New().New(errors.ErrTransportFailure)}

	c := collector.New(&config.Config{}, store, structured, nil, enc, nil)
	summary := c.Run(context.Background(), inventoryWith(testSwitch()))

	assert.True(t, summary.Failed())
	_, saved := store.saved["10.0.0.1"]
	assert.False(t, saved)
}

func TestRunCommandFailureDegrades(t *testing.T) {
	store := newMemStore()
	enc := &captureEncoder{}
	now := time.Now()
	structured := &fakeSource{name: "nxapi", res: structuredResult(now, 1000)}
	commands := &fakeSource{name: "clicmd", err: errors.New().New(errors.ErrTransportFailure)}

	c := collector.New(&config.Config{}, store, structured, commands, enc, nil)
	summary := c.Run(context.Background(), inventoryWith(testSwitch()))

	// A failed command-output source degrades the data but not the run.
	assert.False(t, summary.Failed())
	require.Len(t, summary.Outcomes, 2)

	statuses := map[string]collector.Status{}
	for _, o := range summary.Outcomes {
		statuses[o.Source] = o.Status
	}
	assert.Equal(t, collector.StatusOK, statuses["nxapi"])
	assert.Equal(t, collector.StatusFailed, statuses["clicmd"])

	// The structured fetch succeeded, so its baselines persist.
	_, saved := store.saved["10.0.0.1"]
	assert.True(t, saved)
}

func TestRunMalformedInventoryFails(t *testing.T) {
	enc := &captureEncoder{}
	structured := &fakeSource{name: "nxapi", res: &source.Result{}}
	c := collector.New(&config.Config{}, newMemStore(), structured, nil, enc, nil)

	inv := inventoryWith(testSwitch())
	inv.Malformed = []error{errors.New().WithMessage(errors.ErrInvalidConfig, "bad line")}

	summary := c.Run(context.Background(), inv)
	assert.True(t, summary.Failed())
}

func TestVerifyOnlySkipsOutput(t *testing.T) {
	enc := &captureEncoder{}
	structured := &fakeSource{name: "nxapi", res: structuredResult(time.Now(), 1000)}
	c := collector.New(&config.Config{VerifyOnly: true}, newMemStore(), structured, nil, enc, nil)

	summary := c.Run(context.Background(), inventoryWith(testSwitch()))
	assert.False(t, summary.Failed())
	assert.Empty(t, enc.batches)
}

func TestRunPartialOutcome(t *testing.T) {
	res := structuredResult(time.Now(), 1000)
	res.Partial = true
	structured := &fakeSource{name: "nxapi", res: res}
	c := collector.New(&config.Config{}, newMemStore(), structured, nil, &captureEncoder{}, nil)

	summary := c.Run(context.Background(), inventoryWith(testSwitch()))
	assert.False(t, summary.Failed())
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, collector.StatusPartial, summary.Outcomes[0].Status)
}
