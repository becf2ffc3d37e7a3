// Package subscription tracks, per bound peer, whether the one-time
// attribute subscription has been set up, and the outcome of the most recent
// operation launched against that peer.
//
// A Tracker is owned by the controller worker. It is not safe for concurrent
// use; every call must come from the goroutine that runs the worker queue.
package subscription

import (
	"errors"
	"fmt"
	"time"

	"github.com/backkem/matter-hmi/pkg/binding"
)

// ErrInvalidIndex is returned for a peer index outside 1..Capacity().
var ErrInvalidIndex = errors.New("subscription: invalid peer index")

// State is the subscription state of one peer slot.
type State uint8

const (
	NotSubscribed State = iota
	Subscribed
)

// String returns the name of the state.
func (s State) String() string {
	if s == Subscribed {
		return "Subscribed"
	}
	return "NotSubscribed"
}

// Op is an operation launched against a peer.
type Op uint8

const (
	OpNone Op = iota
	OpConnect
	OpRead
	OpSubscribe
	OpInvoke

	// OpResolve and OpGroupSend only appear in failure reports. Binding
	// resolution and group sends never touch a peer slot.
	OpResolve
	OpGroupSend
)

// String returns the name of the operation.
func (o Op) String() string {
	switch o {
	case OpConnect:
		return "connect"
	case OpRead:
		return "read"
	case OpSubscribe:
		return "subscribe"
	case OpInvoke:
		return "invoke"
	case OpResolve:
		return "resolve"
	case OpGroupSend:
		return "group-send"
	default:
		return "none"
	}
}

// Status is the progress of an attempt.
type Status uint8

const (
	StatusIdle Status = iota
	StatusPending
	StatusSucceeded
	StatusFailed
)

// String returns the name of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "ok"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Attempt is the outcome slot of the most recent operation on a peer.
// Each new attempt overwrites the previous one.
type Attempt struct {
	Op     Op
	Status Status
	Err    error
	At     time.Time
}

func (a Attempt) String() string {
	if a.Op == OpNone {
		return "-"
	}
	if a.Err != nil {
		return fmt.Sprintf("%s %s: %v", a.Op, a.Status, a.Err)
	}
	return fmt.Sprintf("%s %s", a.Op, a.Status)
}

// Slot is a snapshot of one peer's tracker state.
type Slot struct {
	Index   binding.PeerIndex
	State   State
	Attempt Attempt
}

// Tracker holds the per-peer subscription flags and attempt slots, sized to
// the binding table capacity.
type Tracker struct {
	states   []State
	attempts []Attempt
	now      func() time.Time
}

// NewTracker creates a tracker for peer indices 1..capacity.
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = binding.DefaultCapacity
	}
	return &Tracker{
		states:   make([]State, capacity),
		attempts: make([]Attempt, capacity),
		now:      time.Now,
	}
}

// Capacity returns the number of peer slots.
func (t *Tracker) Capacity() int {
	return len(t.states)
}

func (t *Tracker) slot(p binding.PeerIndex) (int, error) {
	i := p.Position()
	if i < 0 || i >= len(t.states) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidIndex, p)
	}
	return i, nil
}

// State returns the subscription state of peer p.
func (t *Tracker) State(p binding.PeerIndex) (State, error) {
	i, err := t.slot(p)
	if err != nil {
		return NotSubscribed, err
	}
	return t.states[i], nil
}

// MarkSubscribed moves peer p to Subscribed. It returns true only on the
// NotSubscribed to Subscribed transition, so the caller that gets true is the
// one that sets the subscription up.
func (t *Tracker) MarkSubscribed(p binding.PeerIndex) (bool, error) {
	i, err := t.slot(p)
	if err != nil {
		return false, err
	}
	if t.states[i] == Subscribed {
		return false, nil
	}
	t.states[i] = Subscribed
	return true, nil
}

// Clear resets peer p to NotSubscribed and empties its attempt slot.
// Only binding removal and factory reset clear a slot.
func (t *Tracker) Clear(p binding.PeerIndex) error {
	i, err := t.slot(p)
	if err != nil {
		return err
	}
	t.states[i] = NotSubscribed
	t.attempts[i] = Attempt{}
	return nil
}

// ClearFrom resets every slot from peer p to the end of the tracker.
// Used when a binding is removed and later entries shift down.
func (t *Tracker) ClearFrom(p binding.PeerIndex) error {
	start, err := t.slot(p)
	if err != nil {
		return err
	}
	for i := start; i < len(t.states); i++ {
		t.states[i] = NotSubscribed
		t.attempts[i] = Attempt{}
	}
	return nil
}

// ClearAll resets every slot.
func (t *Tracker) ClearAll() {
	for i := range t.states {
		t.states[i] = NotSubscribed
		t.attempts[i] = Attempt{}
	}
}

// Begin records op as the pending attempt on peer p.
func (t *Tracker) Begin(p binding.PeerIndex, op Op) error {
	i, err := t.slot(p)
	if err != nil {
		return err
	}
	t.attempts[i] = Attempt{Op: op, Status: StatusPending, At: t.now()}
	return nil
}

// Finish records the outcome of op on peer p. A nil err is a success.
func (t *Tracker) Finish(p binding.PeerIndex, op Op, opErr error) error {
	i, err := t.slot(p)
	if err != nil {
		return err
	}
	a := Attempt{Op: op, Status: StatusSucceeded, At: t.now()}
	if opErr != nil {
		a.Status = StatusFailed
		a.Err = opErr
	}
	t.attempts[i] = a
	return nil
}

// Attempt returns the most recent attempt on peer p.
func (t *Tracker) Attempt(p binding.PeerIndex) (Attempt, error) {
	i, err := t.slot(p)
	if err != nil {
		return Attempt{}, err
	}
	return t.attempts[i], nil
}

// Snapshot copies the first n slots, n clamped to the capacity.
func (t *Tracker) Snapshot(n int) []Slot {
	if n < 0 || n > len(t.states) {
		n = len(t.states)
	}
	out := make([]Slot, n)
	for i := 0; i < n; i++ {
		out[i] = Slot{Index: binding.IndexAt(i), State: t.states[i], Attempt: t.attempts[i]}
	}
	return out
}
