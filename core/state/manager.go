package state

import (
	"fmt"

	"openreserve/storage"
)

// Manager mediates all reserve reads and writes against the key-value
// store. Writes made inside a transaction are staged in an overlay and only
// reach the database on Commit; Discard drops them. This gives every public
// reserve operation all-or-nothing semantics without cooperation from the
// backend.
type Manager struct {
	db      storage.Database
	pending map[string]pendingEntry
	staged  bool
}

type pendingEntry struct {
	value   []byte
	deleted bool
}

// NewManager wraps the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a staged transaction. Nested transactions are not supported;
// callers serialise operations.
func (m *Manager) Begin() {
	m.pending = make(map[string]pendingEntry)
	m.staged = true
}

// Commit flushes staged writes to the database. A failed flush leaves the
// database partially written only if the backend itself fails mid-batch;
// LevelDB applies each Put atomically and the daemon treats a commit error
// as fatal.
func (m *Manager) Commit() error {
	if !m.staged {
		return nil
	}
	for key, entry := range m.pending {
		if entry.deleted {
			if err := m.db.Delete([]byte(key)); err != nil {
				return fmt.Errorf("state commit: %w", err)
			}
			continue
		}
		if err := m.db.Put([]byte(key), entry.value); err != nil {
			return fmt.Errorf("state commit: %w", err)
		}
	}
	m.pending = nil
	m.staged = false
	return nil
}

// Discard drops all staged writes.
func (m *Manager) Discard() {
	m.pending = nil
	m.staged = false
}

// WithTransaction runs fn inside a staged transaction, committing on
// success and discarding every staged write on failure.
func (m *Manager) WithTransaction(fn func() error) error {
	if m == nil {
		return fmt.Errorf("state manager unavailable")
	}
	m.Begin()
	if err := fn(); err != nil {
		m.Discard()
		return err
	}
	return m.Commit()
}

func (m *Manager) getRaw(key []byte) ([]byte, bool, error) {
	if m == nil || m.db == nil {
		return nil, false, fmt.Errorf("state manager unavailable")
	}
	if m.staged {
		if entry, ok := m.pending[string(key)]; ok {
			if entry.deleted {
				return nil, false, nil
			}
			return entry.value, true, nil
		}
	}
	ok, err := m.db.Has(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	value, err := m.db.Get(key)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *Manager) putRaw(key, value []byte) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state manager unavailable")
	}
	if m.staged {
		m.pending[string(key)] = pendingEntry{value: value}
		return nil
	}
	return m.db.Put(key, value)
}
