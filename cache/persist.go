package cache

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cachedns/logger"
)

var (
	ErrSnapshotRead  = errors.New("snapshot read failed")
	ErrSnapshotWrite = errors.New("snapshot write failed")
)

// Load restores the store from the snapshot file at path. A missing file is
// a clean empty start. A file that cannot be read or parsed leaves the store
// untouched; the warning is logged here and the wrapped error returned for
// callers that care.
func (store *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		logger.Warning("Load Cache Snapshot", path, err)
		return fmt.Errorf("%w: %v", ErrSnapshotRead, err)
	}
	snapshot := &Snapshot{}
	if err := yaml.Unmarshal(data, snapshot); err != nil {
		logger.Warning("Load Cache Snapshot", path, err)
		return fmt.Errorf("%w: %v", ErrSnapshotRead, err)
	}
	store.Restore(snapshot, store.now())
	return nil
}

// Save sweeps the store, then writes its snapshot to path. An I/O failure is
// logged and returned; the previous on-disk file is only replaced on a
// successful write of the new one.
func (store *Store) Save(path string) error {
	store.Sweep(store.now())
	data, err := yaml.Marshal(store.SnapshotData())
	if err != nil {
		logger.Warning("Save Cache Snapshot", path, err)
		return fmt.Errorf("%w: %v", ErrSnapshotWrite, err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		logger.Warning("Save Cache Snapshot", path, err)
		return fmt.Errorf("%w: %v", ErrSnapshotWrite, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		logger.Warning("Save Cache Snapshot", path, err)
		return fmt.Errorf("%w: %v", ErrSnapshotWrite, err)
	}
	return nil
}
