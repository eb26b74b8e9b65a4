package state

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrDuplicateBatch means an identical batch was already applied in
	// this turn. The second application is a no-op.
	ErrDuplicateBatch = errors.New("batch already applied in this turn")
	// ErrStaleBatch means the batch belongs to a turn that is not the
	// current one.
	ErrStaleBatch = errors.New("batch is not for the current turn")
	// ErrNoTurn means Apply was called outside BeginTurn/EndTurn.
	ErrNoTurn = errors.New("no turn in progress")
)

// Session is the single writer of a ConversationState. Readers get
// snapshots; writers submit batches.
type Session struct {
	mu      sync.Mutex
	state   ConversationState
	open    bool
	applied map[string]bool
	logger  *slog.Logger
}

func NewSession(id string, now time.Time, logger *slog.Logger) *Session {
	return Restore(ConversationState{SessionID: id, CreatedAt: now, UpdatedAt: now}, logger)
}

// Restore wraps a previously persisted state.
func Restore(s ConversationState, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		state:  s.Clone(),
		logger: logger.With("session_id", s.SessionID),
	}
}

func (s *Session) ID() string {
	return s.state.SessionID
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// BeginTurn opens the next turn and returns its id. Turn ids are strictly
// increasing for the life of the session.
func (s *Session) BeginTurn() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return 0, fmt.Errorf("turn %d still in progress", s.state.TurnID)
	}
	s.state.TurnID++
	s.state.PendingUIArtifact = nil
	s.open = true
	s.applied = make(map[string]bool)
	return s.state.TurnID, nil
}

// Apply applies every command in b or none of them. A batch for another
// turn is rejected with ErrStaleBatch; a replay of a batch already applied
// this turn returns ErrDuplicateBatch and changes nothing.
func (s *Session) Apply(b Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return ErrNoTurn
	}
	if b.TurnID != s.state.TurnID {
		return fmt.Errorf("%w: batch turn %d, current turn %d", ErrStaleBatch, b.TurnID, s.state.TurnID)
	}

	fp, err := b.Fingerprint()
	if err != nil {
		return err
	}
	if s.applied[fp] {
		s.logger.Debug("duplicate batch ignored", "turn_id", b.TurnID, "actor", b.Actor)
		return ErrDuplicateBatch
	}

	next := s.state.Clone()
	for i, c := range b.Commands {
		if err := c.apply(&next); err != nil {
			s.logger.Warn("batch rejected",
				"turn_id", b.TurnID,
				"actor", b.Actor,
				"command", c.Kind(),
				"index", i,
				"error", err,
			)
			return fmt.Errorf("apply %s: %w", c.Kind(), err)
		}
	}

	s.state = next
	s.applied[fp] = true
	s.logger.Debug("batch applied", "turn_id", b.TurnID, "actor", b.Actor, "commands", b.Kinds())
	return nil
}

// EndTurn appends the turn record to history and closes the turn.
func (s *Session) EndTurn(rec TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return ErrNoTurn
	}
	if rec.TurnID != s.state.TurnID {
		return fmt.Errorf("%w: record turn %d, current turn %d", ErrStaleBatch, rec.TurnID, s.state.TurnID)
	}
	s.state.History = append(s.state.History, rec)
	s.state.UpdatedAt = rec.CompletedAt
	s.open = false
	s.applied = nil
	return nil
}
