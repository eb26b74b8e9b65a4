package localstore

import (
	"context"
	"fmt"
	"time"

	"github.com/ISL270/multi-agent-ai-realtor/internal/calendar"
)

func (s *Store) ListEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, summary, description, property_id, attendee_name, attendee_phone,
		       starts_at, ends_at, created_at
		FROM calendar_events
		WHERE starts_at < ? AND ends_at > ?
		ORDER BY starts_at`,
		formatTime(to), formatTime(from),
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []calendar.Event
	for rows.Next() {
		var (
			ev                      calendar.Event
			starts, ends, createdAt string
		)
		if err := rows.Scan(
			&ev.ID, &ev.Summary, &ev.Description, &ev.PropertyID, &ev.AttendeeName, &ev.AttendeePhone,
			&starts, &ends, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.Start, err = parseTime(starts); err != nil {
			return nil, err
		}
		if ev.End, err = parseTime(ends); err != nil {
			return nil, err
		}
		if ev.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var busy bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM calendar_events WHERE starts_at < ? AND ends_at > ?
		)`,
		formatTime(ev.End), formatTime(ev.Start),
	).Scan(&busy)
	if err != nil {
		return fmt.Errorf("check overlap: %w", err)
	}
	if busy {
		return calendar.ErrConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO calendar_events (id, summary, description, property_id, attendee_name, attendee_phone,
		                             starts_at, ends_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Summary, ev.Description, ev.PropertyID, ev.AttendeeName, ev.AttendeePhone,
		formatTime(ev.Start), formatTime(ev.End), formatTime(ev.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
