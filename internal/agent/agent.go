// Package agent holds the contract shared by the router, the workers and
// the turn loop.
package agent

import (
	"context"

	"github.com/ISL270/multi-agent-ai-realtor/internal/state"
)

// WorkerID names a capability worker. The set is closed.
type WorkerID string

const (
	PropertyFinder       WorkerID = "property_finder"
	AppointmentScheduler WorkerID = "appointment_scheduler"
)

// Workers lists every worker.
var Workers = []WorkerID{PropertyFinder, AppointmentScheduler}

func (w WorkerID) Valid() bool {
	switch w {
	case PropertyFinder, AppointmentScheduler:
		return true
	}
	return false
}

// Input is what a worker or the router sees: a read-only snapshot of the
// state and the turn so far.
type Input struct {
	State   state.ConversationState
	Message string
	Turn    TurnProgress
}

// Delegation records one completed worker invocation within a turn.
type Delegation struct {
	Worker   WorkerID
	Terminal bool
	Reply    string
	Notes    []string
	Err      error
}

// TurnProgress is what has happened so far in the current turn.
type TurnProgress struct {
	TurnID      uint64
	Step        int
	Delegations []Delegation
	// Remembered is true once the router's profile commands were applied.
	Remembered bool
}

// Last returns the most recent delegation, if any.
func (p TurnProgress) Last() (Delegation, bool) {
	if len(p.Delegations) == 0 {
		return Delegation{}, false
	}
	return p.Delegations[len(p.Delegations)-1], true
}

// Delegated reports whether w already ran this turn.
func (p TurnProgress) Delegated(w WorkerID) bool {
	for _, d := range p.Delegations {
		if d.Worker == w {
			return true
		}
	}
	return false
}

// Outcome is the result of a worker invocation: the commands to apply, in
// order, and whether the turn ends with Reply.
type Outcome struct {
	Commands []state.Command
	Terminal bool
	Reply    string
	// Notes are facts the router may add to its reply, e.g. filter
	// warnings.
	Notes []string
	// Err classifies a failure the worker already turned into Reply.
	Err error
}

// Worker is one capability.
type Worker interface {
	ID() WorkerID
	Run(ctx context.Context, in Input) (Outcome, error)
}
