package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ISL270/multi-agent-ai-realtor/internal/state"
)

// LoadSession returns the saved state of a session. found is false when
// the session was never saved.
func (s *Store) LoadSession(ctx context.Context, id string) (st state.ConversationState, found bool, err error) {
	var raw []byte
	err = s.pool.QueryRow(ctx, `SELECT state FROM sessions WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, false, nil
	}
	if err != nil {
		return st, false, fmt.Errorf("load session: %w", err)
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return st, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return st, true, nil
}

// SaveSession upserts a session snapshot. An older snapshot never
// replaces a newer one.
func (s *Store) SaveSession(ctx context.Context, st state.ConversationState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (id, turn_id, state, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			turn_id = EXCLUDED.turn_id,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
		WHERE sessions.turn_id <= EXCLUDED.turn_id`,
		st.SessionID, int64(st.TurnID), raw, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
