package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ISL270/multi-agent-ai-realtor/internal/state"
)

func (s *Store) LoadSession(ctx context.Context, id string) (st state.ConversationState, found bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx, `SELECT state FROM sessions WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return st, false, nil
	}
	if err != nil {
		return st, false, fmt.Errorf("load session: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, turn_id, state, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			turn_id = excluded.turn_id,
			state = excluded.state,
			updated_at = excluded.updated_at
		WHERE sessions.turn_id <= excluded.turn_id`,
		st.SessionID, int64(st.TurnID), string(raw), formatTime(st.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
