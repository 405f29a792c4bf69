// Package telemetry owns the snapshot shared between the acquisition and
// display goroutines and the derived values computed from it.
package telemetry

import (
	"sync"

	"github.com/tomsel/datadash/obd"
)

// Snapshot is the single record handed from the acquisition side to the
// display side. It is only ever passed by value.
type Snapshot struct {
	obd.Readings
	Running bool
}

// FromReadings builds a snapshot from the latest decoded values.
func FromReadings(r obd.Readings) Snapshot {
	return Snapshot{
		Readings: r,
		Running:  r.Ignition != obd.IgnitionOff,
	}
}

// Store holds the shared snapshot. The lock is held only for the duration
// of the struct copy so a reader can never observe a half-written update.
type Store struct {
	mu  sync.Mutex
	cur Snapshot
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Publish(snap Snapshot) {
	s.mu.Lock()
	s.cur = snap
	s.mu.Unlock()
}

func (s *Store) Load() Snapshot {
	s.mu.Lock()
	snap := s.cur
	s.mu.Unlock()
	return snap
}

// ForceStopped clears the running flag ahead of a power-down so the
// display side stops sending frames even if the last snapshot said
// otherwise.
func (s *Store) ForceStopped() {
	s.mu.Lock()
	s.cur.Running = false
	s.mu.Unlock()
}
