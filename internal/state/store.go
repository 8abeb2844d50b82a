// Package state persists counter baselines between collector invocations.
// The collector is a fresh process on every polling interval, so the prior
// raw counter values live in one durable file per switch.
package state

import (
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"codeberg.org/mutker/nexmon/internal/errors"
	"codeberg.org/mutker/nexmon/internal/logger"
	"codeberg.org/mutker/nexmon/internal/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

// Store loads and saves per-switch counter state. Each switch gets its own
// file so corruption or contention on one switch never affects another.
type Store interface {
	Load(switchID string) map[telemetry.Key]telemetry.StoredSample
	Save(switchID string, samples map[telemetry.Key]telemetry.StoredSample) error
}

type fileStore struct {
	dir string
}

// entry is the on-disk record shape: the key is flattened next to the sample
// so the file stays a plain JSON array.
type entry struct {
	Interface string `json:"interface,omitempty"`
	Counter   string `json:"counter"`
	telemetry.StoredSample
}

func NewFileStore(dir string) (Store, error) {
	errFactory := errors.New()

	if dir == "" {
		return nil, errFactory.New(ErrInvalidDir)
	}
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrInvalidDir, err)
	}

	return &fileStore{dir: dir}, nil
}

// Load reads the stored samples for one switch. Missing or corrupt state is
// treated as no prior state: the poll then records fresh baselines instead of
// failing.
func (s *fileStore) Load(switchID string) map[telemetry.Key]telemetry.StoredSample {
	samples := make(map[telemetry.Key]telemetry.StoredSample)

	data, err := os.ReadFile(s.path(switchID))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("switch", switchID).Msg("Unreadable counter state, starting fresh")
		}
		return samples
	}

	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Warn().Err(err).Str("switch", switchID).Msg("Corrupt counter state, starting fresh")
		return samples
	}

	for _, e := range entries {
		samples[telemetry.Key{Interface: e.Interface, Counter: e.Counter}] = e.StoredSample
	}

	return samples
}

// Save commits the new counter state for one switch. The file is written to a
// temporary name in the same directory and renamed over the destination, so
// an interrupted write can never be read back as valid state.
func (s *fileStore) Save(switchID string, samples map[telemetry.Key]telemetry.StoredSample) error {
	errFactory := errors.New()

	entries := make([]entry, 0, len(samples))
	for k, v := range samples {
		entries = append(entries, entry{Interface: k.Interface, Counter: k.Counter, StoredSample: v})
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+s.fileName(switchID)+".*")
	if err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errFactory.Wrap(ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errFactory.Wrap(ErrWriteFailed, err)
	}
	if err := os.Chmod(tmpName, defaultFilePerm); err != nil {
		os.Remove(tmpName)
		return errFactory.Wrap(ErrWriteFailed, err)
	}
	if err := os.Rename(tmpName, s.path(switchID)); err != nil {
		os.Remove(tmpName)
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	return nil
}

func (s *fileStore) path(switchID string) string {
	return filepath.Join(s.dir, s.fileName(switchID))
}

// fileName keeps the switch identifier filesystem-safe.
func (s *fileStore) fileName(switchID string) string {
	safe := strings.NewReplacer("/", "_", ":", "_").Replace(switchID)

	return safe + ".json"
}
