// Package lifecycle implements the forward-only connection lifecycle shared by
// server sessions and client connections.
//
// States are totally ordered: NotStarted < Starting < Active < Dispose < Disposed.
// A Machine only ever moves forward. Operations that require a state band call
// Require, which panics with a *StateError when the current state is outside it;
// being in the wrong band is a programming error, not a runtime condition.
package lifecycle

import (
	"fmt"
	"sync/atomic"
)

// State is a lifecycle state
type State int32

const (
	// NotStarted is the state of a freshly created connection
	NotStarted State = iota
	// Starting covers the transport handshake and login
	Starting
	// Active means the peer is authenticated
	Active
	// Dispose means teardown has begun
	Dispose
	// Disposed means teardown is complete
	Disposed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Dispose:
		return "dispose"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// StateError reports an operation attempted outside its allowed state band
type StateError struct {
	Op      string
	Current State
	Min     State
	Max     State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: state %s outside [%s, %s]", e.Op, e.Current, e.Min, e.Max)
}

// Machine holds a lifecycle state. The zero value is NotStarted and ready to use.
type Machine struct {
	state atomic.Int32
}

// State returns the current state
func (m *Machine) State() State {
	return State(m.state.Load())
}

// In reports whether the current state is within [min, max]
func (m *Machine) In(min, max State) bool {
	s := m.State()
	return s >= min && s <= max
}

// Require panics with a *StateError unless the current state is within [min, max]
func (m *Machine) Require(op string, min, max State) {
	if s := m.State(); s < min || s > max {
		panic(&StateError{Op: op, Current: s, Min: min, Max: max})
	}
}

// Advance moves from exactly `from` to `to`. It returns false when the current
// state is not `from`. Panics if `to` would not move forward.
func (m *Machine) Advance(from, to State) bool {
	if to <= from {
		panic(&StateError{Op: "advance", Current: from, Min: from + 1, Max: Disposed})
	}
	return m.state.CompareAndSwap(int32(from), int32(to))
}

// AdvanceTo moves forward to `to` from any earlier state. It returns the state
// observed before the move and whether the move happened; it never moves back.
func (m *Machine) AdvanceTo(to State) (State, bool) {
	for {
		cur := m.state.Load()
		if State(cur) >= to {
			return State(cur), false
		}
		if m.state.CompareAndSwap(cur, int32(to)) {
			return State(cur), true
		}
	}
}
