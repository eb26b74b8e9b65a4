// Package app is the conversation service behind the HTTP API, the NATS
// subscription and the chat REPL.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ISL270/multi-agent-ai-realtor/internal/state"
	"github.com/ISL270/multi-agent-ai-realtor/internal/turn"
	"github.com/ISL270/multi-agent-ai-realtor/internal/ui"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrMessageTooLong  = errors.New("message is too long")
)

// maxMessageLen bounds a single user message.
const maxMessageLen = 4000

// Reply is the outcome of one message.
type Reply struct {
	SessionID string           `json:"session_id"`
	TurnID    uint64           `json:"turn_id"`
	Text      string           `json:"reply"`
	Status    state.TurnStatus `json:"status"`
	Artifact  *ui.Artifact     `json:"-"`
	View      json.RawMessage  `json:"view,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type Service struct {
	loop     *turn.Loop
	sessions SessionStore
	renderer ui.Renderer
	now      func() time.Time
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is dropped from the map once no turn holds or waits on it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func New(loop *turn.Loop, sessions SessionStore, renderer ui.Renderer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if renderer == nil {
		renderer = ui.JSONRenderer{}
	}
	return &Service{
		loop:     loop,
		sessions: sessions,
		renderer: renderer,
		now:      time.Now,
		logger:   logger.With("component", "app"),
		locks:    make(map[string]*sessionLock),
	}
}

// lock serialises turns of one session.
func (s *Service) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// CreateSession starts and persists an empty session.
func (s *Service) CreateSession(ctx context.Context) (state.ConversationState, error) {
	sess := state.NewSession(uuid.NewString(), s.now().UTC(), s.logger)
	st := sess.Snapshot()
	if err := s.sessions.SaveSession(ctx, st); err != nil {
		return st, fmt.Errorf("save session: %w", err)
	}
	s.logger.Info("session created", "session_id", st.SessionID)
	return st, nil
}

// Session returns the current snapshot of a session.
func (s *Service) Session(ctx context.Context, id string) (state.ConversationState, error) {
	st, found, err := s.sessions.LoadSession(ctx, id)
	if err != nil {
		return st, fmt.Errorf("load session: %w", err)
	}
	if !found {
		return st, ErrSessionNotFound
	}
	return st, nil
}

// Send runs one turn for text and saves the result.
func (s *Service) Send(ctx context.Context, sessionID, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if len(text) > maxMessageLen {
		return nil, fmt.Errorf("%w: more than %d characters", ErrMessageTooLong, maxMessageLen)
	}

	unlock := s.lock(sessionID)
	defer unlock()

	st, err := s.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess := state.Restore(st, s.logger)

	res, err := s.loop.Run(ctx, sess, text)
	if err != nil {
		return nil, fmt.Errorf("run turn: %w", err)
	}

	if err := s.sessions.SaveSession(ctx, sess.Snapshot()); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	reply := &Reply{
		SessionID: sessionID,
		TurnID:    res.TurnID,
		Text:      res.Reply,
		Status:    res.Status,
		Artifact:  res.Artifact,
	}
	if res.Err != nil {
		reply.Error = res.Err.Error()
	}
	if res.Artifact != nil {
		view, err := s.renderer.Render(*res.Artifact)
		if err != nil {
			s.logger.Error("render failed", "session_id", sessionID, "artifact", res.Artifact.Kind, "error", err)
		} else {
			reply.View = view
		}
	}
	return reply, nil
}
