// Package robot implements the single-robot state machine: movement
// interpolation, item-collection dwell, and the assigner that hands it one
// order at a time.
package robot

import "fmt"

// State is the robot's finite state machine variant.
type State int

const (
	Idle State = iota
	MovingToItem
	CollectingItem
	Returning
)

func (s State) String() string {
	switch s {
	case MovingToItem:
		return "moving_to_item"
	case CollectingItem:
		return "collecting_item"
	case Returning:
		return "returning"
	default:
		return "idle"
	}
}

// ErrInvalidTransition signals an attempted state change outside the
// permitted transition table.
type ErrInvalidTransition struct {
	From, To State
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("robot: invalid transition %s -> %s", e.From, e.To)
}

// allowedTransitions enumerates every permitted state change. Setting the
// same state is always a no-op and is checked separately.
var allowedTransitions = map[State]map[State]bool{
	Idle:           {MovingToItem: true},
	MovingToItem:   {CollectingItem: true, Returning: true},
	CollectingItem: {MovingToItem: true, Returning: true},
	Returning:      {Idle: true},
}

// CanTransition reports whether from -> to is a permitted change.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	return allowedTransitions[from][to]
}
