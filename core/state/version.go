package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"farmmarket/storage"
)

// SchemaVersion identifies the on-disk key layout and record encoding.
// Increment it whenever stored structures change incompatibly.
const SchemaVersion uint32 = 1

var (
	schemaVersionKey = []byte("meta/version")
	// ErrStateVersionMismatch indicates the stored schema version does not
	// match the version supported by the current binary.
	ErrStateVersionMismatch = errors.New("state: schema version mismatch")
)

// StateVersion returns the stored schema version and whether one was present.
func (m *Manager) StateVersion() (uint32, bool, error) {
	if m == nil {
		return 0, false, fmt.Errorf("state: manager unavailable")
	}
	raw, present, err := m.load(schemaVersionKey)
	if err != nil || !present {
		return 0, present, err
	}
	if len(raw) != 4 {
		return 0, true, fmt.Errorf("state: malformed schema version (%d bytes)", len(raw))
	}
	return binary.BigEndian.Uint32(raw), true, nil
}

// EnsureStateVersion stamps an empty store with SchemaVersion and rejects a
// store written by an incompatible binary.
func (m *Manager) EnsureStateVersion() error {
	stored, present, err := m.StateVersion()
	if err != nil {
		return err
	}
	if present {
		if stored != SchemaVersion {
			return fmt.Errorf("%w: stored %d, expected %d", ErrStateVersionMismatch, stored, SchemaVersion)
		}
		return nil
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], SchemaVersion)
	batch := storage.NewBatch()
	batch.Put(schemaVersionKey, buf[:])
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Write(batch)
}
