package recognition

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateStarting   State = "starting"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateStopping   State = "stopping"
	StateError      State = "error"
)

const (
	EventStart     Event = "start"
	EventStarted   Event = "started"
	EventFinal     Event = "final"
	EventProcessed Event = "processed"
	EventStop      Event = "stop"
	EventEnd       Event = "end"
	EventFail      Event = "fail"
	EventReset     Event = "reset"
)

// Transition returns the state reached by applying event to current.
func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		return StateError, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateStarting, nil
		}
	case StateStarting:
		switch event {
		case EventStarted:
			return StateListening, nil
		case EventStop:
			return StateStopping, nil
		case EventEnd:
			return StateIdle, nil
		}
	case StateListening:
		switch event {
		case EventFinal:
			return StateProcessing, nil
		case EventStop:
			return StateStopping, nil
		case EventEnd:
			return StateIdle, nil
		}
	case StateProcessing:
		switch event {
		case EventProcessed:
			return StateListening, nil
		case EventStop:
			return StateStopping, nil
		case EventEnd:
			return StateIdle, nil
		}
	case StateStopping:
		switch event {
		case EventEnd:
			return StateIdle, nil
		}
	case StateError:
		switch event {
		case EventStart:
			return StateStarting, nil
		case EventReset:
			return StateIdle, nil
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
	return current, invalidTransition(current, event)
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}

// Active reports whether the state holds a recognition session.
func (s State) Active() bool {
	switch s {
	case StateStarting, StateListening, StateProcessing, StateStopping:
		return true
	}
	return false
}
