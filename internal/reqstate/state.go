// Package reqstate tracks the lifecycle of one asynchronous action.
package reqstate

import (
	"sync"

	"tileexport/internal/notify"
	"tileexport/internal/registry"
)

// State is the lifecycle of an action.
type State string

const (
	Idle    State = "IDLE"
	Pending State = "PENDING"
	Done    State = "DONE"
	Error   State = "ERROR"
)

// Transition is delivered to subscribers on every state change.
// Err is set when To is Error.
type Transition struct {
	From State
	To   State
	Err  *registry.InternalError
}

// Tracker is the state machine for a single logical action.
// There is no terminal state: Begin always restarts the cycle.
type Tracker struct {
	mu        sync.Mutex
	state     State
	errors    *registry.Registry
	listeners notify.List[Transition]
}

// New creates a tracker in the Idle state that reports failures into errs.
func New(errs *registry.Registry) *Tracker {
	return &Tracker{
		state:  Idle,
		errors: errs,
	}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Begin moves to Pending regardless of the current state.
func (t *Tracker) Begin() {
	t.set(Pending, nil)
}

// Succeed moves to Done.
func (t *Tracker) Succeed() {
	t.set(Done, nil)
}

// Fail moves to Error and registers err.
func (t *Tracker) Fail(err registry.InternalError) {
	if t.errors != nil {
		t.errors.Add(err)
	}
	t.set(Error, &err)
}

// Subscribe registers fn for every transition. The returned func removes it.
// Listeners run synchronously, in subscription order, on the goroutine
// that caused the transition.
func (t *Tracker) Subscribe(fn func(Transition)) func() {
	return t.listeners.Add(fn)
}

func (t *Tracker) set(to State, err *registry.InternalError) {
	t.mu.Lock()
	tr := Transition{From: t.state, To: to, Err: err}
	t.state = to
	t.mu.Unlock()

	t.listeners.Notify(tr)
}
