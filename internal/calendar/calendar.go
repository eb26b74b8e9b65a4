package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrConflict is returned when a slot overlaps an existing event.
	ErrConflict = errors.New("slot conflicts with an existing event")
	// ErrOutsideHours is returned for a slot that is not one of the
	// generated business-hours slots.
	ErrOutsideHours = errors.New("slot is outside business hours")
	// ErrMissingPhone is returned when a booking has no contact number.
	ErrMissingPhone = errors.New("phone number is required to book a viewing")
)

// Slot is a bookable time window.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the slot intersects [start, end).
func (s Slot) Overlaps(start, end time.Time) bool {
	return s.Start.Before(end) && start.Before(s.End)
}

// Equal compares instants, ignoring location.
func (s Slot) Equal(o Slot) bool {
	return s.Start.Equal(o.Start) && s.End.Equal(o.End)
}

func (s Slot) String() string {
	return s.Start.Format("Mon 2 Jan 15:04") + "-" + s.End.Format("15:04")
}

// Event is a busy period on the calendar.
type Event struct {
	ID            string
	Summary       string
	Description   string
	PropertyID    string
	AttendeeName  string
	AttendeePhone string
	Start         time.Time
	End           time.Time
	CreatedAt     time.Time
}

// Booking is a confirmed viewing.
type Booking struct {
	ID            string    `json:"id"`
	PropertyID    string    `json:"property_id,omitempty"`
	PropertyTitle string    `json:"property_title,omitempty"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Slot          Slot      `json:"slot"`
	Timezone      string    `json:"timezone"`
	CreatedAt     time.Time `json:"created_at"`
}

// EventStore persists calendar events. InsertEvent must check for overlap
// and insert in one atomic step, returning ErrConflict on overlap.
type EventStore interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]Event, error)
	InsertEvent(ctx context.Context, ev Event) error
}

// Config holds business hours and slot length.
type Config struct {
	Timezone    string `koanf:"timezone" yaml:"timezone"`
	OpenHour    int    `koanf:"open_hour" yaml:"open_hour"`
	CloseHour   int    `koanf:"close_hour" yaml:"close_hour"`
	SlotMinutes int    `koanf:"slot_minutes" yaml:"slot_minutes"`
}

func DefaultConfig() Config {
	return Config{
		Timezone:    "Africa/Cairo",
		OpenHour:    9,
		CloseHour:   17,
		SlotMinutes: 60,
	}
}

// Range is a half-open time interval.
type Range struct {
	From time.Time
	To   time.Time
}

// Service generates availability and books viewings.
type Service struct {
	events    EventStore
	loc       *time.Location
	openHour  int
	closeHour int
	slot      time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func New(events EventStore, cfg Config, logger *slog.Logger) (*Service, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.OpenHour < 0 || cfg.CloseHour > 24 || cfg.OpenHour >= cfg.CloseHour {
		return nil, fmt.Errorf("invalid business hours %d-%d", cfg.OpenHour, cfg.CloseHour)
	}
	if cfg.SlotMinutes <= 0 {
		return nil, fmt.Errorf("invalid slot length %d minutes", cfg.SlotMinutes)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		events:    events,
		loc:       loc,
		openHour:  cfg.OpenHour,
		closeHour: cfg.CloseHour,
		slot:      time.Duration(cfg.SlotMinutes) * time.Minute,
		now:       time.Now,
		logger:    logger,
	}, nil
}

// SetClock replaces the time source. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// Now returns the current time in the calendar's timezone.
func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

// Day returns the range covering a YYYY-MM-DD date in the calendar's
// timezone.
func (s *Service) Day(date string) (Range, error) {
	d, err := time.ParseInLocation(time.DateOnly, date, s.loc)
	if err != nil {
		return Range{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	return Range{From: d, To: d.AddDate(0, 0, 1)}, nil
}

// ListAvailability returns the free business-hours slots inside r, in
// chronological order. Slots in the past are never offered.
func (s *Service) ListAvailability(ctx context.Context, r Range) ([]Slot, error) {
	events, err := s.events.ListEvents(ctx, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	now := s.now()

	var slots []Slot
	from := r.From.In(s.loc)
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, s.loc)
	for day.Before(r.To) {
		for _, sl := range s.daySlots(day) {
			if sl.Start.Before(r.From) || sl.End.After(r.To) || sl.Start.Before(now) {
				continue
			}
			if busy(sl, events) {
				continue
			}
			slots = append(slots, sl)
		}
		day = day.AddDate(0, 0, 1)
	}

	s.logger.Debug("availability listed",
		"from", r.From,
		"to", r.To,
		"busy", len(events),
		"free", len(slots),
	)
	return slots, nil
}

// BookingRequest asks for one slot.
type BookingRequest struct {
	Slot          Slot
	PropertyID    string
	PropertyTitle string
	Name          string
	Phone         string
}

// Book creates the viewing event. The store re-checks overlap, so a slot
// taken since it was offered fails with ErrConflict.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Booking, error) {
	if req.Phone == "" {
		return nil, ErrMissingPhone
	}
	if !s.isSlot(req.Slot) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideHours, req.Slot)
	}

	title := req.PropertyTitle
	if title == "" {
		title = req.PropertyID
	}
	ev := Event{
		ID:            uuid.NewString(),
		Summary:       fmt.Sprintf("Property Viewing: %s for %s", title, req.Name),
		Description:   "Contact: " + req.Phone,
		PropertyID:    req.PropertyID,
		AttendeeName:  req.Name,
		AttendeePhone: req.Phone,
		Start:         req.Slot.Start,
		End:           req.Slot.End,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.events.InsertEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	s.logger.Info("viewing booked",
		"event_id", ev.ID,
		"property_id", req.PropertyID,
		"start", req.Slot.Start,
	)

	return &Booking{
		ID:            ev.ID,
		PropertyID:    req.PropertyID,
		PropertyTitle: req.PropertyTitle,
		Name:          req.Name,
		Phone:         req.Phone,
		Slot:          Slot{Start: req.Slot.Start.In(s.loc), End: req.Slot.End.In(s.loc)},
		Timezone:      s.loc.String(),
		CreatedAt:     ev.CreatedAt,
	}, nil
}

func (s *Service) daySlots(day time.Time) []Slot {
	open := time.Date(day.Year(), day.Month(), day.Day(), s.openHour, 0, 0, 0, s.loc)
	closing := time.Date(day.Year(), day.Month(), day.Day(), s.closeHour, 0, 0, 0, s.loc)

	var out []Slot
	for start := open; !start.Add(s.slot).After(closing); start = start.Add(s.slot) {
		out = append(out, Slot{Start: start, End: start.Add(s.slot)})
	}
	return out
}

func (s *Service) isSlot(sl Slot) bool {
	start := sl.Start.In(s.loc)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, s.loc)
	for _, candidate := range s.daySlots(day) {
		if candidate.Equal(sl) {
			return true
		}
	}
	return false
}

func busy(sl Slot, events []Event) bool {
	for _, ev := range events {
		if sl.Overlaps(ev.Start, ev.End) {
			return true
		}
	}
	return false
}
