// Package reveal implements the bounded step counter that progressively
// reveals the transaction chart.
package reveal

import "fmt"

// Status is the animator lifecycle position.
type Status int

const (
	Idle Status = iota
	Running
	Done
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Done:
		return "done"
	}
	return "unknown"
}

// State is an immutable animator value. Transitions return a new State.
type State struct {
	Status  Status
	Step    int
	MaxStep int
}

// New returns an idle animator that completes after maxStep ticks.
// A negative maxStep is treated as 0.
func New(maxStep int) State {
	if maxStep < 0 {
		maxStep = 0
	}
	return State{Status: Idle, MaxStep: maxStep}
}

// Start moves Idle to Running at step 0. It is a no-op in any other state.
func (s State) Start() State {
	if s.Status != Idle {
		return s
	}
	s.Status = Running
	s.Step = 0
	if s.MaxStep == 0 {
		s.Status = Done
	}
	return s
}

// Tick advances a running animator by one step, finishing at MaxStep.
func (s State) Tick() State {
	if s.Status != Running {
		return s
	}
	s.Step++
	if s.Step >= s.MaxStep {
		s.Step = s.MaxStep
		s.Status = Done
	}
	return s
}

// Active reports whether ticks still change the state.
func (s State) Active() bool { return s.Status == Running }

func (s State) String() string {
	return fmt.Sprintf("%s(%d)", s.Status, s.Step)
}
