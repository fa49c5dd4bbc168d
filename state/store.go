// Package state holds the hub's authoritative pin and output values.
package state

import (
	"maps"
	"sync"

	"github.com/c360/alusync/pins"
)

// SyncState is a point-in-time copy of the input pins. Only pins toggled
// since the store was created are present; absent means false.
type SyncState struct {
	Pins map[string]bool `json:"pins"`
}

// Store is safe for concurrent use. Readers always receive copies.
type Store struct {
	mu      sync.RWMutex
	pins    map[string]bool
	outputs *pins.OutputsSnapshot
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{pins: make(map[string]bool)}
}

// SetPin stores an input pin value under its canonical name. Names outside
// the input whitelist are not stored and ok is false.
func (s *Store) SetPin(name string, value bool) (canonical string, ok bool) {
	canonical, ok = pins.Normalize(name)
	if !ok {
		return "", false
	}
	s.mu.Lock()
	s.pins[canonical] = value
	s.mu.Unlock()
	return canonical, true
}

// Pin returns one input pin value. Unknown or never-set pins read as false.
func (s *Store) Pin(name string) bool {
	canonical, ok := pins.Normalize(name)
	if !ok {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pins[canonical]
}

// Pins returns a copy of the input pin map.
func (s *Store) Pins() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.pins)
}

// State returns a copy of the input pins as a SyncState.
func (s *Store) State() SyncState {
	return SyncState{Pins: s.Pins()}
}

// SetOutputs replaces the cached output snapshot.
func (s *Store) SetOutputs(o pins.OutputsSnapshot) {
	s.mu.Lock()
	s.outputs = &o
	s.mu.Unlock()
}

// Outputs returns the last output snapshot. ok is false before the first
// report.
func (s *Store) Outputs() (pins.OutputsSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.outputs == nil {
		return pins.OutputsSnapshot{}, false
	}
	return *s.outputs, true
}

// OutputsRaw returns the last output byte, or nil before the first report.
func (s *Store) OutputsRaw() *uint8 {
	o, ok := s.Outputs()
	if !ok {
		return nil
	}
	raw := o.Raw
	return &raw
}
