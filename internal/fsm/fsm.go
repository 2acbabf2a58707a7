// Package fsm holds the activation cycle transition table.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateActivating State = "activating"
	StateCapturing  State = "capturing"
)

const (
	EventWake     Event = "wake"
	EventListen   Event = "listen"
	EventCapture  Event = "capture"
	EventComplete Event = "complete"
	EventFail     Event = "fail"
)

// Transition returns the state reached from current on event. Fail always
// returns to idle so one broken cycle never wedges the engine.
func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		return StateIdle, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventWake, EventListen:
			return StateActivating, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateActivating:
		switch event {
		case EventCapture:
			return StateCapturing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCapturing:
		switch event {
		case EventComplete:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
