package calendar

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process EventStore.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) ListEvents(_ context.Context, from, to time.Time) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	for _, ev := range m.events {
		if ev.Start.Before(to) && from.Before(ev.End) {
			out = append(out, ev)
		}
	}
	slices.SortFunc(out, func(a, b Event) int { return a.Start.Compare(b.Start) })
	return out, nil
}

func (m *MemoryStore) InsertEvent(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.events {
		if existing.Start.Before(ev.End) && ev.Start.Before(existing.End) {
			return ErrConflict
		}
	}
	m.events = append(m.events, ev)
	return nil
}
