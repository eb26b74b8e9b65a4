package turn

import (
	"log/slog"
	"time"

	"github.com/ISL270/multi-agent-ai-realtor/internal/calendar"
	"github.com/ISL270/multi-agent-ai-realtor/internal/state"
)

// NATS subjects for turn events.
const (
	SubjectTurnCompleted = "realtor.turn.completed"
	SubjectViewingBooked = "realtor.viewing.booked"
)

// Publisher sends an event as JSON. *hermes.Client implements it.
type Publisher interface {
	Publish(subject string, data any) error
}

// TurnCompletedEvent is published after every turn.
type TurnCompletedEvent struct {
	SessionID   string           `json:"session_id"`
	TurnID      uint64           `json:"turn_id"`
	Status      state.TurnStatus `json:"status"`
	Workers     []string         `json:"workers,omitempty"`
	Artifact    string           `json:"artifact,omitempty"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// ViewingBookedEvent is published for every booking made in a turn.
type ViewingBookedEvent struct {
	SessionID string           `json:"session_id"`
	TurnID    uint64           `json:"turn_id"`
	Booking   calendar.Booking `json:"booking"`
}

// publish is best effort: a broker failure never fails the turn.
func (l *Loop) publish(rec state.TurnRecord, sessionID string, bookings []state.RecordBooking, log *slog.Logger) {
	if l.publisher == nil {
		return
	}

	evt := TurnCompletedEvent{
		SessionID:   sessionID,
		TurnID:      rec.TurnID,
		Status:      rec.Status,
		Workers:     rec.Workers,
		Artifact:    string(rec.Artifact),
		Error:       rec.Error,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
	}
	if err := l.publisher.Publish(SubjectTurnCompleted, evt); err != nil {
		log.Warn("publish failed", "subject", SubjectTurnCompleted, "error", err)
	}

	for _, b := range bookings {
		booked := ViewingBookedEvent{SessionID: sessionID, TurnID: rec.TurnID, Booking: b.Booking}
		if err := l.publisher.Publish(SubjectViewingBooked, booked); err != nil {
			log.Warn("publish failed", "subject", SubjectViewingBooked, "booking_id", b.Booking.ID, "error", err)
		}
	}
}
