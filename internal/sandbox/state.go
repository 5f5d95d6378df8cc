package sandbox

import (
	"fmt"
	"log/slog"
)

// state is one phase of the bootstrap sequence. Each process walks a
// fixed path through these states:
//
//	host:         Host → AwaitingMapping → Resumed
//	initializer:  Initializing → AwaitingMapping → Pivoting → Reaping → Exited
//	bootstrapper: Bootstrapping → Execed
type state int

const (
	stateHost state = iota
	stateInitializing
	stateAwaitingMapping
	statePivoting
	stateReaping
	stateBootstrapping
	stateExeced
	stateExited
	stateResumed
)

var stateNames = [...]string{
	stateHost:            "host",
	stateInitializing:    "initializing",
	stateAwaitingMapping: "awaiting-mapping",
	statePivoting:        "pivoting",
	stateReaping:         "reaping",
	stateBootstrapping:   "bootstrapping",
	stateExeced:          "execed",
	stateExited:          "exited",
	stateResumed:         "resumed",
}

func (s state) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// terminal states end a process by exec or exit, or end the host's part
// once the sandbox has resumed.
func (s state) terminal() bool {
	return s == stateExeced || s == stateExited || s == stateResumed
}

// step performs the work of one state and names the next.
type step func() (state, error)

type machine struct {
	steps  map[state]step
	logger *slog.Logger

	// visited records every state entered, in order.
	visited []state
}

// run drives the machine from start until a terminal state or the first
// error. Nothing is rolled back on error: the caller terminates.
func (m *machine) run(start state) (state, error) {
	s := start
	for {
		m.visited = append(m.visited, s)
		if s.terminal() {
			return s, nil
		}
		fn, ok := m.steps[s]
		if !ok {
			return s, fmt.Errorf("no step for state %s", s)
		}
		next, err := fn()
		if err != nil {
			return s, fmt.Errorf("%s: %w", s, err)
		}
		m.logger.Debug("sandbox state transition", "from", s.String(), "to", next.String())
		s = next
	}
}
