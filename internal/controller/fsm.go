package controller

// State represents the current phase of a booking attempt.
type State string

const (
	StateIdle       State = "idle"
	StateSelecting  State = "selecting"
	StateSubmitting State = "submitting"
	StateConfirmed  State = "confirmed"
	StateFailed     State = "failed"
)

// FSM manages the booking-attempt state transitions. Submitting may re-enter
// itself: nothing locally prevents two in-flight requests, the backend is the
// arbiter of the second one.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates the FSM with the attempt lifecycle
// Idle -> Selecting -> Submitting -> Confirmed | Failed.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateIdle:       {StateSelecting, StateSubmitting},
			StateSelecting:  {StateSubmitting, StateIdle},
			StateSubmitting: {StateConfirmed, StateFailed, StateSubmitting},
			StateConfirmed:  {StateIdle, StateSelecting},
			StateFailed:     {StateIdle, StateSelecting, StateSubmitting},
		},
	}
}

// CanTransition checks if the transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
