package state

import "sync/atomic"

// #region live
// Live publishes the current WeightState to the scoring hot path.
// Load never observes a partially written version: Publish swaps a pointer
// to a fresh immutable copy.
type Live struct {
	current atomic.Pointer[WeightState]
}

// NewLive creates a Live holder seeded with initial.
func NewLive(initial WeightState) *Live {
	l := &Live{}
	l.Publish(initial)
	return l
}

// Load returns a copy of the current version.
func (l *Live) Load() WeightState {
	return *l.current.Load()
}

// Publish makes ws the current version for all subsequent Load calls.
func (l *Live) Publish(ws WeightState) {
	cp := ws
	l.current.Store(&cp)
}

// #endregion live
