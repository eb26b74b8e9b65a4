// Package supervisor decides, for each step of a turn, whether to answer
// directly, remember something about the client, delegate to a worker, or
// end the conversation.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ISL270/multi-agent-ai-realtor/internal/agent"
	"github.com/ISL270/multi-agent-ai-realtor/internal/listing"
	"github.com/ISL270/multi-agent-ai-realtor/internal/state"
	"github.com/ISL270/multi-agent-ai-realtor/internal/ui"
)

const (
	replyClarify  = "I can help you search for properties or book a viewing. Could you tell me what you're looking for, for example \"a 3-bedroom villa in Giza under 10 million\"?"
	replyFarewell = "Goodbye! Come back any time you want to pick up the search."
	replyWelcome  = "You're welcome! Let me know if you'd like to refine the search or book a viewing."
	replyNothing  = "I don't have any results to show yet. What kind of property are you looking for?"
)

// Router is the rule-based supervisor. Route is a pure function of its
// input: the same state, message and turn progress give the same decision.
type Router struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger.With("component", "supervisor")}
}

// Route applies the rules in priority order:
//
//  1. a worker already ran this turn: summarise and respond
//  2. new profile facts in the message: remember them, then route again
//  3. scheduling language: Appointment Scheduler
//  4. a booking draft is waiting and the message is not a new search:
//     Appointment Scheduler
//  5. "show them again": respond and re-attach the carousel
//  6. property attributes: Property Finder
//  7. greeting, thanks, farewell
//  8. facts were remembered and nothing else asked: acknowledge
//  9. otherwise ask for clarification
func (r *Router) Route(_ context.Context, in agent.Input) (agent.Decision, error) {
	d := r.route(in)
	r.logger.Debug("routed",
		"turn_id", in.Turn.TurnID,
		"step", in.Turn.Step,
		"decision", d.String(),
		"reason", d.Reason,
	)
	return d, nil
}

func (r *Router) route(in agent.Input) agent.Decision {
	st := in.State
	msg := strings.TrimSpace(in.Message)

	if last, ok := in.Turn.Last(); ok {
		if last.Terminal {
			return agent.RespondDirectly(last.Reply)
		}
		return r.afterDelegation(st, last)
	}

	if !in.Turn.Remembered {
		if cmds := profileFacts(msg, st.UserProfile); len(cmds) > 0 {
			return agent.Remember(cmds...)
		}
	}

	scheduling := hasSchedulingIntent(msg)
	property := hasPropertyIntent(msg)

	switch {
	case scheduling:
		return agent.DelegateTo(agent.AppointmentScheduler, "scheduling intent")

	case st.BookingDraft != nil && !property:
		return agent.DelegateTo(agent.AppointmentScheduler, "booking draft pending")

	case wantsShowAgain(msg):
		if len(st.LastResults) == 0 {
			return agent.RespondDirectly(replyNothing)
		}
		return agent.RespondDirectly(
			listing.Summary(len(st.LastResults), st.ActiveFilters),
			state.SetUIArtifact{Artifact: ui.PropertyCarousel(st.LastResults)},
		)

	case property:
		return agent.DelegateTo(agent.PropertyFinder, "property attributes")

	case isGreeting(msg):
		return agent.RespondDirectly(greeting(st.UserProfile))

	case isThanks(msg):
		return agent.RespondDirectly(replyWelcome)

	case isFarewell(msg):
		return agent.End(replyFarewell)

	case in.Turn.Remembered:
		return agent.RespondDirectly(acknowledge(st.UserProfile))
	}

	d := agent.RespondDirectly(replyClarify)
	d.Err = agent.ErrRoutingAmbiguity
	d.Reason = "no rule matched"
	return d
}

// afterDelegation builds the reply once a non-terminal worker has run.
func (r *Router) afterDelegation(st state.ConversationState, last agent.Delegation) agent.Decision {
	var parts []string
	switch last.Worker {
	case agent.PropertyFinder:
		parts = append(parts, listing.Summary(len(st.LastResults), st.ActiveFilters))
		parts = append(parts, last.Notes...)
		if len(st.LastResults) > 0 {
			parts = append(parts, "Would you like to book a viewing for any of these?")
		}
	default:
		if last.Reply != "" {
			parts = append(parts, last.Reply)
		}
		parts = append(parts, last.Notes...)
	}
	if len(parts) == 0 {
		parts = append(parts, "Done.")
	}
	return agent.RespondDirectly(strings.Join(parts, " "))
}

func greeting(p state.UserProfile) string {
	if p.Name != "" {
		return fmt.Sprintf("Hello again, %s! Are you looking for a property or would you like to book a viewing?", p.Name)
	}
	return "Hello! I'm your real estate assistant. I can search listings for you and book viewings. What are you looking for?"
}

func acknowledge(p state.UserProfile) string {
	if p.Name != "" {
		return fmt.Sprintf("Nice to meet you, %s! I'll remember that. How can I help with your property search?", p.Name)
	}
	return "Thanks, I'll remember that. How can I help with your property search?"
}
