package state_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/nexmon/internal/state"
	"codeberg.org/mutker/nexmon/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	store, err := state.NewFileStore(t.TempDir())
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	samples := map[telemetry.Key]telemetry.StoredSample{
		{Interface: "eth1/1", Counter: "rx_bytes"}:           {Value: 12345, Time: now},
		{Interface: "eth1/1", Counter: "queue/q3/tx_pkts"}:   {Value: 99, Time: now},
		{Interface: "", Counter: "buffer_cells"}:             {Value: 7, Time: now},
		{Interface: "eth1/49", Counter: "rx_multicast_pkts"}: {Value: 1 << 40, Time: now},
	}

	require.NoError(t, store.Save("10.0.0.1", samples))

	loaded := store.Load("10.0.0.1")
	assert.Equal(t, samples, loaded)
}

func TestLoadMissingStateIsEmpty(t *testing.T) {
	store, err := state.NewFileStore(t.TempDir())
	require.NoError(t, err)

	loaded := store.Load("10.0.0.9")
	assert.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestLoadCorruptStateIsEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := state.NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "10.0.0.1.json"), []byte("{not json"), 0o644))

	loaded := store.Load("10.0.0.1")
	assert.Empty(t, loaded, "Corrupt state must be treated as absent, not fatal")
}

func TestSaveIsScopedPerSwitch(t *testing.T) {
	dir := t.TempDir()
	store, err := state.NewFileStore(dir)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, store.Save("10.0.0.1", map[telemetry.Key]telemetry.StoredSample{
		{Interface: "eth1/1", Counter: "rx_bytes"}: {Value: 1, Time: now},
	}))
	require.NoError(t, store.Save("10.0.0.2", map[telemetry.Key]telemetry.StoredSample{
		{Interface: "eth1/1", Counter: "rx_bytes"}: {Value: 2, Time: now},
	}))

	one := store.Load("10.0.0.1")
	two := store.Load("10.0.0.2")
	assert.Equal(t, uint64(1), one[telemetry.Key{Interface: "eth1/1", Counter: "rx_bytes"}].Value)
	assert.Equal(t, uint64(2), two[telemetry.Key{Interface: "eth1/1", Counter: "rx_bytes"}].Value)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := state.NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save("10.0.0.1", map[telemetry.Key]telemetry.StoredSample{
		{Interface: "eth1/1", Counter: "rx_bytes"}: {Value: 1, Time: time.Now()},
	}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "10.0.0.1.json", entries[0].Name())
}

func TestSaveOverwritesPriorState(t *testing.T) {
	store, err := state.NewFileStore(t.TempDir())
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	key := telemetry.Key{Interface: "eth1/1", Counter: "rx_bytes"}

	require.NoError(t, store.Save("sw", map[telemetry.Key]telemetry.StoredSample{key: {Value: 1, Time: now}}))
	require.NoError(t, store.Save("sw", map[telemetry.Key]telemetry.StoredSample{key: {Value: 2, Time: now.Add(time.Second)}}))

	loaded := store.Load("sw")
	require.Len(t, loaded, 1)
	assert.Equal(t, uint64(2), loaded[key].Value)
}
