package agent

import (
	"fmt"

	"github.com/ISL270/multi-agent-ai-realtor/internal/state"
)

// DecisionKind tags a routing decision.
type DecisionKind string

const (
	DecideDelegate DecisionKind = "delegate"
	DecideRespond  DecisionKind = "respond"
	DecideRemember DecisionKind = "remember"
	DecideEnd      DecisionKind = "end"
)

// Decision is the router's answer for one step. Only the fields of its
// Kind are meaningful:
//
//	delegate  Worker
//	respond   Reply, optional Commands (e.g. re-showing results)
//	remember  Commands (SetUserProfileField only); the loop routes again
//	end       optional Reply
type Decision struct {
	Kind     DecisionKind
	Worker   WorkerID
	Reply    string
	Commands []state.Command
	Reason   string
	// Err classifies the decision, e.g. ErrRoutingAmbiguity for a
	// clarification reply.
	Err error
}

func DelegateTo(w WorkerID, reason string) Decision {
	return Decision{Kind: DecideDelegate, Worker: w, Reason: reason}
}

func RespondDirectly(reply string, commands ...state.Command) Decision {
	return Decision{Kind: DecideRespond, Reply: reply, Commands: commands}
}

func Remember(commands ...state.Command) Decision {
	return Decision{Kind: DecideRemember, Commands: commands, Reason: "profile facts"}
}

func End(reply string) Decision {
	return Decision{Kind: DecideEnd, Reply: reply}
}

// Terminal reports whether the decision ends the turn.
func (d Decision) Terminal() bool {
	return d.Kind == DecideRespond || d.Kind == DecideEnd
}

func (d Decision) String() string {
	switch d.Kind {
	case DecideDelegate:
		return fmt.Sprintf("delegate(%s)", d.Worker)
	case DecideRemember:
		return fmt.Sprintf("remember(%d)", len(d.Commands))
	default:
		return string(d.Kind)
	}
}
