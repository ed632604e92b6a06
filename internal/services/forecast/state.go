package forecast

import "fmt"

// State is a stage of the forecast pipeline.
type State int

const (
	StateCreated State = iota
	StateDataLoaded
	StateWindowsReady
	StateModelLoaded
	StateEvaluated
	StateForecasted
	StateFailed
)

var stateNames = map[State]string{
	StateCreated:      "created",
	StateDataLoaded:   "data_loaded",
	StateWindowsReady: "windows_ready",
	StateModelLoaded:  "model_loaded",
	StateEvaluated:    "evaluated",
	StateForecasted:   "forecasted",
	StateFailed:       "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StateError is returned when an operation is called out of order.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("forecast: %s not allowed in state %s", e.Op, e.State)
}

// Observer is notified after every state change. err is set when to is StateFailed.
type Observer func(from, to State, err error)
