// Package turn drives one user turn: route, delegate, apply, repeat, until
// the router answers or the delegation cap is hit.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ISL270/multi-agent-ai-realtor/internal/agent"
	"github.com/ISL270/multi-agent-ai-realtor/internal/state"
	"github.com/ISL270/multi-agent-ai-realtor/internal/ui"
)

// DefaultMaxDelegations caps worker invocations per turn.
const DefaultMaxDelegations = 3

const (
	replyUnableToComplete = "I'm sorry, I wasn't able to complete that request. Could you rephrase it or try again?"
	replyInternal         = "I'm sorry, something went wrong on my side. Please try again."
)

// Router picks the next step of a turn.
type Router interface {
	Route(ctx context.Context, in agent.Input) (agent.Decision, error)
}

// Result is what a turn produced.
type Result struct {
	SessionID string
	TurnID    uint64
	Reply     string
	Status    state.TurnStatus
	Artifact  *ui.Artifact
	Workers   []agent.WorkerID
	// Err classifies how the turn went when it did not go plainly:
	// ErrRoutingAmbiguity, ErrLoopBoundExceeded, *ValidationError or
	// *CollaboratorError. The reply already explains it to the user.
	Err error
}

// Loop runs turns. It is safe for concurrent use across sessions; callers
// serialise turns of the same session.
type Loop struct {
	router         Router
	finder         agent.Worker
	scheduler      agent.Worker
	publisher      Publisher
	maxDelegations int
	now            func() time.Time
	logger         *slog.Logger
}

// New builds a loop. publisher may be nil; maxDelegations <= 0 means
// DefaultMaxDelegations.
func New(router Router, finder, scheduler agent.Worker, publisher Publisher, maxDelegations int, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if maxDelegations <= 0 {
		maxDelegations = DefaultMaxDelegations
	}
	return &Loop{
		router:         router,
		finder:         finder,
		scheduler:      scheduler,
		publisher:      publisher,
		maxDelegations: maxDelegations,
		now:            time.Now,
		logger:         logger.With("component", "turn"),
	}
}

// SetClock replaces the clock used for turn timestamps.
func (l *Loop) SetClock(now func() time.Time) {
	l.now = now
}

func (l *Loop) worker(id agent.WorkerID) (agent.Worker, error) {
	switch id {
	case agent.PropertyFinder:
		return l.finder, nil
	case agent.AppointmentScheduler:
		return l.scheduler, nil
	}
	return nil, fmt.Errorf("unknown worker %q", id)
}

// run is the mutable bookkeeping of one turn.
type run struct {
	sess     *state.Session
	text     string
	progress agent.TurnProgress
	started  time.Time
	bookings []state.RecordBooking
}

// Run processes text as the next turn of sess. The returned error is only
// set when the turn could not be opened or closed; every other failure is
// reported through Result.
func (l *Loop) Run(ctx context.Context, sess *state.Session, text string) (*Result, error) {
	turnID, err := sess.BeginTurn()
	if err != nil {
		return nil, fmt.Errorf("begin turn: %w", err)
	}
	r := &run{
		sess:     sess,
		text:     text,
		progress: agent.TurnProgress{TurnID: turnID},
		started:  l.now(),
	}
	log := l.logger.With("session_id", sess.ID(), "turn_id", turnID)
	log.Info("turn started")

	res := l.drive(ctx, r, log)
	res.SessionID = sess.ID()
	res.TurnID = turnID

	if err := l.finish(r, res, log); err != nil {
		return res, err
	}
	return res, nil
}

func (l *Loop) drive(ctx context.Context, r *run, log *slog.Logger) *Result {
	// Every delegation is followed by a routing step, and remembering
	// happens at most once, so this bounds routing even if the router
	// misbehaves.
	maxSteps := 2*l.maxDelegations + 2
	delegations := 0

	for step := 0; ; step++ {
		r.progress.Step = step
		if step >= maxSteps {
			return l.unableToComplete(r, log, "step limit")
		}

		d, err := l.router.Route(ctx, agent.Input{State: r.sess.Snapshot(), Message: r.text, Turn: r.progress})
		if err != nil {
			log.Error("routing failed", "step", step, "error", err)
			return &Result{Reply: replyInternal, Status: state.TurnAborted, Err: fmt.Errorf("route: %w", err)}
		}

		switch d.Kind {
		case agent.DecideRemember:
			if err := l.apply(r, "supervisor", d.Commands, log); err != nil {
				log.Warn("profile facts dropped", "error", err)
			}
			r.progress.Remembered = true

		case agent.DecideRespond, agent.DecideEnd:
			if len(d.Commands) > 0 {
				if err := l.apply(r, "supervisor", d.Commands, log); err != nil {
					log.Warn("supervisor commands dropped", "error", err)
				}
			}
			status := state.TurnResponded
			if d.Kind == agent.DecideEnd {
				status = state.TurnEnded
			}
			res := &Result{Reply: d.Reply, Status: status, Err: d.Err}
			if last, ok := r.progress.Last(); ok && res.Err == nil {
				res.Err = last.Err
			}
			return res

		case agent.DecideDelegate:
			if delegations >= l.maxDelegations {
				return l.unableToComplete(r, log, "delegation limit")
			}
			delegations++
			l.delegate(ctx, r, d.Worker, log)

		default:
			log.Error("unknown decision", "kind", d.Kind)
			return &Result{Reply: replyInternal, Status: state.TurnAborted, Err: fmt.Errorf("unknown decision kind %q", d.Kind)}
		}
	}
}

// delegate runs one worker and applies its batch. Failures become a
// terminal delegation so the router answers with the worker's reply.
func (l *Loop) delegate(ctx context.Context, r *run, id agent.WorkerID, log *slog.Logger) {
	log = log.With("worker", id)

	w, err := l.worker(id)
	if err != nil {
		log.Error("delegation failed", "error", err)
		r.progress.Delegations = append(r.progress.Delegations, agent.Delegation{Worker: id, Terminal: true, Reply: replyInternal, Err: err})
		return
	}

	start := time.Now()
	out, err := w.Run(ctx, agent.Input{State: r.sess.Snapshot(), Message: r.text, Turn: r.progress})
	if err != nil {
		log.Error("worker failed", "error", err)
		r.progress.Delegations = append(r.progress.Delegations, agent.Delegation{
			Worker: id, Terminal: true, Reply: replyInternal, Err: fmt.Errorf("run %s: %w", id, err),
		})
		return
	}
	log.Info("worker finished",
		"terminal", out.Terminal,
		"commands", len(out.Commands),
		"duration_ms", time.Since(start).Milliseconds(),
		"outcome_error", out.Err,
	)

	del := agent.Delegation{Worker: id, Terminal: out.Terminal, Reply: out.Reply, Notes: out.Notes, Err: out.Err}
	if err := l.apply(r, string(id), out.Commands, log); err != nil {
		del.Terminal = true
		del.Reply = replyInternal
		del.Err = fmt.Errorf("apply %s batch: %w", id, err)
	}
	r.progress.Delegations = append(r.progress.Delegations, del)
}

// apply submits commands as one batch. A replayed batch is a no-op.
func (l *Loop) apply(r *run, actor string, cmds []state.Command, log *slog.Logger) error {
	if len(cmds) == 0 {
		return nil
	}
	err := r.sess.Apply(state.Batch{TurnID: r.progress.TurnID, Actor: actor, Commands: cmds})
	switch {
	case errors.Is(err, state.ErrDuplicateBatch):
		log.Debug("replayed batch skipped", "actor", actor)
		return nil
	case err != nil:
		return err
	}
	for _, c := range cmds {
		if rb, ok := c.(state.RecordBooking); ok {
			r.bookings = append(r.bookings, rb)
		}
	}
	return nil
}

func (l *Loop) unableToComplete(r *run, log *slog.Logger, why string) *Result {
	log.Warn("turn aborted", "reason", why, "delegations", len(r.progress.Delegations))
	return &Result{Reply: replyUnableToComplete, Status: state.TurnAborted, Err: agent.ErrLoopBoundExceeded}
}

// finish records the turn in history and publishes its events.
func (l *Loop) finish(r *run, res *Result, log *slog.Logger) error {
	snap := r.sess.Snapshot()
	res.Artifact = snap.PendingUIArtifact
	for _, d := range r.progress.Delegations {
		res.Workers = append(res.Workers, d.Worker)
	}

	rec := state.TurnRecord{
		TurnID:      res.TurnID,
		UserText:    r.text,
		Reply:       res.Reply,
		Status:      res.Status,
		StartedAt:   r.started,
		CompletedAt: l.now(),
	}
	for _, w := range res.Workers {
		rec.Workers = append(rec.Workers, string(w))
	}
	if res.Artifact != nil {
		rec.Artifact = res.Artifact.Kind
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	if err := r.sess.EndTurn(rec); err != nil {
		return fmt.Errorf("end turn: %w", err)
	}
	log.Info("turn completed",
		"status", res.Status,
		"workers", rec.Workers,
		"artifact", rec.Artifact,
		"duration_ms", rec.CompletedAt.Sub(rec.StartedAt).Milliseconds(),
	)

	l.publish(rec, res.SessionID, r.bookings, log)
	return nil
}
