package app

import (
	"context"
	"sync"

	"github.com/ISL270/multi-agent-ai-realtor/internal/state"
)

// SessionStore persists session snapshots. *store.Store and
// *localstore.Store implement it.
type SessionStore interface {
	LoadSession(ctx context.Context, id string) (state.ConversationState, bool, error)
	SaveSession(ctx context.Context, st state.ConversationState) error
}

// MemorySessions keeps snapshots in process. Used by the chat REPL and
// tests.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]state.ConversationState
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]state.ConversationState)}
}

func (m *MemorySessions) LoadSession(_ context.Context, id string) (state.ConversationState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[id]
	if !ok {
		return state.ConversationState{}, false, nil
	}
	return st.Clone(), true, nil
}

func (m *MemorySessions) SaveSession(_ context.Context, st state.ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.sessions[st.SessionID]; ok && prev.TurnID > st.TurnID {
		return nil
	}
	m.sessions[st.SessionID] = st.Clone()
	return nil
}
