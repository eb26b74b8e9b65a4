package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ISL270/multi-agent-ai-realtor/internal/calendar"
)

// calendarLockKey serialises bookings across processes.
const calendarLockKey = 7316225

// ListEvents returns events overlapping [from, to), earliest first.
func (s *Store) ListEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, summary, description, property_id, attendee_name, attendee_phone,
		       starts_at, ends_at, created_at
		FROM calendar_events
		WHERE starts_at < $2 AND ends_at > $1
		ORDER BY starts_at`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []calendar.Event
	for rows.Next() {
		var ev calendar.Event
		if err := rows.Scan(
			&ev.ID, &ev.Summary, &ev.Description, &ev.PropertyID, &ev.AttendeeName, &ev.AttendeePhone,
			&ev.Start, &ev.End, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// InsertEvent stores ev unless it overlaps an existing event, in which case
// it returns calendar.ErrConflict.
func (s *Store) InsertEvent(ctx context.Context, ev calendar.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, calendarLockKey); err != nil {
		return fmt.Errorf("lock calendar: %w", err)
	}

	var busy bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM calendar_events WHERE starts_at < $2 AND ends_at > $1
		)`,
		ev.Start, ev.End,
	).Scan(&busy)
	if err != nil {
		return fmt.Errorf("check overlap: %w", err)
	}
	if busy {
		return calendar.ErrConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO calendar_events (id, summary, description, property_id, attendee_name, attendee_phone,
		                             starts_at, ends_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.ID, ev.Summary, ev.Description, ev.PropertyID, ev.AttendeeName, ev.AttendeePhone,
		ev.Start, ev.End, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
