package binding

import (
	"errors"
	"sync"

	"github.com/pion/logging"
)

// Table errors.
var (
	// ErrTableFull is returned when the binding table is at capacity.
	ErrTableFull = errors.New("binding: table full")
	// ErrIndexOutOfRange is returned for an index past the current size.
	ErrIndexOutOfRange = errors.New("binding: index out of range")
	// ErrDuplicateEntry is returned when adding an entry that already exists.
	ErrDuplicateEntry = errors.New("binding: entry already exists")
)

// DefaultCapacity is the number of bindings a switch can hold.
const DefaultCapacity = 10

// TableConfig configures the binding table.
type TableConfig struct {
	// Capacity is the maximum number of entries. Default: DefaultCapacity.
	Capacity int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Table is an ordered, capacity-bounded binding table.
//
// Indices are positions in insertion order starting at 0. Removing an entry
// shifts every later entry down by one.
//
// Thread Safety: All methods are safe for concurrent use.
type Table struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	log      logging.LeveledLogger
}

// NewTable creates an empty binding table.
func NewTable(config TableConfig) *Table {
	if config.Capacity <= 0 {
		config.Capacity = DefaultCapacity
	}

	t := &Table{
		entries:  make([]Entry, 0, config.Capacity),
		capacity: config.Capacity,
	}
	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("binding")
	}
	return t
}

// Add appends an entry and returns its index.
//
// Returns the entry's validation error, ErrTableFull if the table is at
// capacity, or ErrDuplicateEntry if an identical entry exists.
func (t *Table) Add(e Entry) (int, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	e = e.normalized()

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) >= t.capacity {
		return 0, ErrTableFull
	}
	for _, existing := range t.entries {
		if existing == e {
			return 0, ErrDuplicateEntry
		}
	}

	t.entries = append(t.entries, e)
	index := len(t.entries) - 1
	if t.log != nil {
		t.log.Infof("added binding %d: %s", index, e)
	}
	return index, nil
}

// GetAt returns the entry at index.
func (t *Table) GetAt(index int) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if index < 0 || index >= len(t.entries) {
		return Entry{}, false
	}
	return t.entries[index], true
}

// Remove deletes the entry at index.
//
// Returns ErrIndexOutOfRange if no entry exists at index.
func (t *Table) Remove(index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.entries) {
		return ErrIndexOutOfRange
	}
	removed := t.entries[index]
	t.entries = append(t.entries[:index], t.entries[index+1:]...)
	if t.log != nil {
		t.log.Infof("removed binding %d: %s", index, removed)
	}
	return nil
}

// Clear removes all entries.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = t.entries[:0]
	if t.log != nil {
		t.log.Info("binding table cleared")
	}
}

// Size returns the number of entries.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Capacity returns the maximum number of entries.
func (t *Table) Capacity() int {
	return t.capacity
}

// Entries returns a copy of all entries in table order.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// PeerIndex is the 1-based number of a binding as shown to the user:
// PeerIndex n addresses the entry at table index n-1.
type PeerIndex int

// Position returns the 0-based table index.
func (p PeerIndex) Position() int {
	return int(p) - 1
}

// IndexAt returns the PeerIndex of the entry at table index i.
func IndexAt(i int) PeerIndex {
	return PeerIndex(i + 1)
}
