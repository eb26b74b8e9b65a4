// Package booking is the Appointment Scheduler worker. Booking is a
// two-step protocol: availability first, then a booking that must name one
// of the slots that availability offered.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ISL270/multi-agent-ai-realtor/internal/agent"
	"github.com/ISL270/multi-agent-ai-realtor/internal/calendar"
	"github.com/ISL270/multi-agent-ai-realtor/internal/extractor"
	"github.com/ISL270/multi-agent-ai-realtor/internal/listing"
	"github.com/ISL270/multi-agent-ai-realtor/internal/llm"
	"github.com/ISL270/multi-agent-ai-realtor/internal/state"
	"github.com/ISL270/multi-agent-ai-realtor/internal/ui"
)

// Calendar is the calendar collaborator.
type Calendar interface {
	Now() time.Time
	Location() *time.Location
	Day(date string) (calendar.Range, error)
	ListAvailability(ctx context.Context, r calendar.Range) ([]calendar.Slot, error)
	Book(ctx context.Context, req calendar.BookingRequest) (*calendar.Booking, error)
}

const (
	ActionAvailability = "availability"
	ActionBook         = "book"
)

// Request is the extraction target for a scheduling message.
type Request struct {
	Action     string `json:"action,omitempty"`
	Date       string `json:"date,omitempty"`
	SlotStart  string `json:"slot_start,omitempty"`
	PropertyID string `json:"property_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

const (
	fieldAction     = "action"
	fieldDate       = "date"
	fieldSlotStart  = "slot_start"
	fieldPropertyID = "property_id"
	fieldName       = "name"
	fieldPhone      = "phone"
)

// PhonePattern accepts international and local numbers with optional
// spaces or dashes.
var PhonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,18}[0-9]$`)

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	slotPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}`)
)

// Schema is the extraction schema for scheduling messages.
func Schema() extractor.Schema {
	return extractor.Schema{
		Name:        "viewing_request",
		Description: "A request to see viewing availability or to book a property viewing.",
		Fields: []extractor.Field{
			{Name: fieldAction, Kind: extractor.KindEnum, Enum: []string{ActionAvailability, ActionBook}, Description: "availability to list free times, book to reserve a specific offered time"},
			{Name: fieldDate, Kind: extractor.KindString, Pattern: datePattern, Description: "Requested day as YYYY-MM-DD, resolved against today's date"},
			{Name: fieldSlotStart, Kind: extractor.KindString, Pattern: slotPattern, Description: "Start of the chosen slot, copied exactly from the offered slots list"},
			{Name: fieldPropertyID, Kind: extractor.KindString, MaxLen: 64, Description: "id of the property to view, taken from the properties list"},
			{Name: fieldName, Kind: extractor.KindString, MaxLen: 200, Description: "Client's name"},
			{Name: fieldPhone, Kind: extractor.KindString, Pattern: PhonePattern, Description: "Client's phone number"},
		},
	}
}

func mergeRequest(existing, candidate Request, cleared []string) Request {
	out := existing
	for _, p := range []struct {
		name string
		dst  *string
		src  string
	}{
		{fieldAction, &out.Action, candidate.Action},
		{fieldDate, &out.Date, candidate.Date},
		{fieldSlotStart, &out.SlotStart, candidate.SlotStart},
		{fieldPropertyID, &out.PropertyID, candidate.PropertyID},
		{fieldName, &out.Name, candidate.Name},
		{fieldPhone, &out.Phone, candidate.Phone},
	} {
		if p.src != "" {
			*p.dst = p.src
		}
		for _, c := range cleared {
			if c == p.name {
				*p.dst = ""
			}
		}
	}
	return out
}

// Scheduler is the Appointment Scheduler worker.
type Scheduler struct {
	extract  *extractor.Extractor[Request]
	calendar Calendar
	logger   *slog.Logger
}

func New(provider llm.Provider, cal Calendar, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("worker", agent.AppointmentScheduler)
	return &Scheduler{
		extract:  extractor.New(provider, Schema(), mergeRequest, logger),
		calendar: cal,
		logger:   logger,
	}
}

func (s *Scheduler) ID() agent.WorkerID {
	return agent.AppointmentScheduler
}

// Run handles one scheduling message. Every path is terminal: the reply
// either lists times, asks for a missing detail, confirms, or explains a
// failure.
func (s *Scheduler) Run(ctx context.Context, in agent.Input) (agent.Outcome, error) {
	st := in.State
	existing := fromDraft(st.BookingDraft)

	parsed, err := s.extract.Extract(ctx, extractor.Request[Request]{
		Text:     in.Message,
		Existing: &existing,
		Context:  s.background(st),
	})
	if err != nil {
		s.logger.Warn("viewing request extraction failed", "turn_id", in.Turn.TurnID, "error", err)
		return agent.Outcome{
			Terminal: true,
			Reply:    "Sorry, I didn't catch that. Which day would you like to view the property?",
			Err:      &agent.CollaboratorError{System: "llm", Operation: "extract viewing request", Err: err},
		}, nil
	}

	req := parsed.Value
	if req.Name == "" {
		req.Name = st.UserProfile.Name
	}
	if req.Phone == "" {
		req.Phone = st.UserProfile.Phone
	}
	if req.PropertyID == "" && len(st.LastResults) == 1 {
		req.PropertyID = st.LastResults[0].ID
	}

	action := req.Action
	if action == "" {
		action = ActionAvailability
		if req.SlotStart != "" {
			action = ActionBook
		}
	}

	s.logger.Info("scheduling",
		"turn_id", in.Turn.TurnID,
		"action", action,
		"status", parsed.Status,
		"draft", st.BookingDraft != nil,
	)

	if action == ActionBook {
		return s.book(ctx, st, req, parsed.Violations), nil
	}
	return s.availability(ctx, st, req, parsed.Violations), nil
}

func (s *Scheduler) availability(ctx context.Context, st state.ConversationState, req Request, violations []extractor.Violation) agent.Outcome {
	if v, ok := violationFor(violations, fieldDate); ok {
		return invalid("date", v, "I couldn't read that date. Which day would you like to come, for example tomorrow or 2025-06-02?")
	}
	if req.Date == "" {
		return agent.Outcome{
			Terminal: true,
			Reply:    "Which day would you like to view the property?",
			Commands: []state.Command{state.SetBookingDraft{Draft: draftFrom(st, req, nil)}},
		}
	}

	r, err := s.calendar.Day(req.Date)
	if err != nil {
		return invalid("date", extractor.Violation{Field: fieldDate, Code: extractor.CodePattern, Reason: err.Error(), Value: req.Date},
			"I couldn't read that date. Which day would you like to come?")
	}
	slots, err := s.calendar.ListAvailability(ctx, r)
	if err != nil {
		s.logger.Error("availability lookup failed", "date", req.Date, "error", err)
		return collaboratorFailure("list availability", err, "Sorry, I couldn't check the calendar right now. Please try again in a moment.")
	}

	day := r.From.Format("Monday 2 January")
	commands := []state.Command{
		state.SetOfferedSlots{Slots: slots},
		state.SetBookingDraft{Draft: draftFrom(st, req, nil)},
	}
	if len(slots) == 0 {
		return agent.Outcome{
			Terminal: true,
			Commands: commands,
			Reply:    fmt.Sprintf("There are no free viewing times on %s. Would you like to try another day?", day),
		}
	}

	times := make([]string, len(slots))
	for i, sl := range slots {
		times[i] = sl.Start.In(s.calendar.Location()).Format("15:04")
	}
	commands = append(commands, state.SetUIArtifact{Artifact: ui.SlotPicker(req.Date, s.calendar.Location().String(), slots)})
	return agent.Outcome{
		Terminal: true,
		Commands: commands,
		Reply:    fmt.Sprintf("These viewing times are free on %s: %s. Which one suits you?", day, strings.Join(times, ", ")),
	}
}

func (s *Scheduler) book(ctx context.Context, st state.ConversationState, req Request, violations []extractor.Violation) agent.Outcome {
	if v, ok := violationFor(violations, fieldSlotStart); ok {
		return invalid("slot", v, "I couldn't tell which time you picked. Please choose one of the times I listed.")
	}
	if req.SlotStart == "" {
		return s.availability(ctx, st, req, violations)
	}

	slot, ok := s.offered(st, req.SlotStart)
	if !ok {
		s.logger.Warn("booking rejected: slot was not offered", "slot_start", req.SlotStart)
		return invalid("slot", extractor.Violation{Field: fieldSlotStart, Code: extractor.CodeEnum, Reason: "not one of the offered slots", Value: req.SlotStart},
			"That time isn't one of the slots I offered. Would you like me to check availability for that day?")
	}

	var property listing.Property
	if req.PropertyID != "" {
		p, found := st.Property(req.PropertyID)
		if !found && (st.BookingDraft == nil || st.BookingDraft.PropertyID != req.PropertyID) {
			return invalid("property", extractor.Violation{Field: fieldPropertyID, Code: extractor.CodeEnum, Reason: "not in the current results", Value: req.PropertyID},
				"I can't find that property in your current results. Which of the listed properties would you like to view?")
		}
		property = p
		if !found {
			property = listing.Property{ID: req.PropertyID, Title: st.BookingDraft.PropertyTitle}
		}
	}

	var missing []string
	if req.PropertyID == "" {
		missing = append(missing, "which property you'd like to view")
	}
	if req.Name == "" {
		missing = append(missing, "your name")
	}
	if req.Phone == "" {
		missing = append(missing, "your phone number")
	}
	if len(missing) > 0 {
		return agent.Outcome{
			Terminal: true,
			Reply:    fmt.Sprintf("To book %s I just need %s.", s.describe(slot), joinAnd(missing)),
			Commands: []state.Command{state.SetBookingDraft{Draft: draftFrom(st, req, &slot)}},
		}
	}

	booked, err := s.calendar.Book(ctx, calendar.BookingRequest{
		Slot:          slot,
		PropertyID:    property.ID,
		PropertyTitle: property.Title,
		Name:          req.Name,
		Phone:         req.Phone,
	})
	if err != nil {
		s.logger.Error("booking failed", "slot_start", req.SlotStart, "error", err)
		reply := "Sorry, I couldn't book that viewing right now. Please try again in a moment."
		if errors.Is(err, calendar.ErrConflict) {
			reply = "Sorry, that time was just taken. Would you like me to check the other available times?"
		}
		return collaboratorFailure("book", err, reply)
	}

	commands := []state.Command{
		state.RecordBooking{Booking: *booked},
		state.SetUIArtifact{Artifact: ui.BookingConfirmation(*booked)},
	}
	if st.UserProfile.Phone == "" {
		commands = append(commands, state.SetUserProfileField{Key: state.ProfilePhone, Value: req.Phone})
	}
	if st.UserProfile.Name == "" {
		commands = append(commands, state.SetUserProfileField{Key: state.ProfileName, Value: req.Name})
	}

	title := property.Title
	if title == "" {
		title = "the property"
	}
	return agent.Outcome{
		Terminal: true,
		Commands: commands,
		Reply:    fmt.Sprintf("Your viewing of %s is booked for %s (%s). We'll contact you on %s.", title, s.describe(slot), booked.Timezone, req.Phone),
	}
}

// offered finds the offered slot starting at start. Starts without a zone
// are read in the calendar's timezone.
func (s *Scheduler) offered(st state.ConversationState, start string) (calendar.Slot, bool) {
	t, err := time.Parse(time.RFC3339, start)
	if err != nil {
		t, err = time.ParseInLocation("2006-01-02T15:04", start[:min(len(start), 16)], s.calendar.Location())
		if err != nil {
			return calendar.Slot{}, false
		}
	}
	for _, sl := range st.OfferedSlots {
		if sl.Start.Equal(t) {
			return sl, true
		}
	}
	return calendar.Slot{}, false
}

func (s *Scheduler) describe(sl calendar.Slot) string {
	return sl.Start.In(s.calendar.Location()).Format("Monday 2 January at 15:04")
}

// background gives the model what it needs to resolve relative dates and
// references like "the first one".
func (s *Scheduler) background(st state.ConversationState) string {
	loc := s.calendar.Location()
	now := s.calendar.Now()

	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s (%s), timezone %s.\n", now.Format(time.DateOnly), now.Weekday(), loc)
	if len(st.OfferedSlots) > 0 {
		b.WriteString("Offered slots:\n")
		for _, sl := range st.OfferedSlots {
			fmt.Fprintf(&b, "- %s\n", sl.Start.In(loc).Format(time.RFC3339))
		}
	}
	if len(st.LastResults) > 0 {
		b.WriteString("Properties the client has seen:\n")
		for i, p := range st.LastResults {
			fmt.Fprintf(&b, "%d. id=%s %s", i+1, p.ID, p.Title)
			if p.City != "" {
				fmt.Fprintf(&b, " (%s)", p.City)
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func fromDraft(d *state.BookingDraft) Request {
	if d == nil {
		return Request{}
	}
	r := Request{PropertyID: d.PropertyID, Name: d.Name, Phone: d.Phone}
	if d.Slot != nil {
		r.Action = ActionBook
		r.SlotStart = d.Slot.Start.Format(time.RFC3339)
	}
	return r
}

func draftFrom(st state.ConversationState, req Request, slot *calendar.Slot) *state.BookingDraft {
	d := &state.BookingDraft{
		PropertyID: req.PropertyID,
		Name:       req.Name,
		Phone:      req.Phone,
		Slot:       slot,
	}
	if p, ok := st.Property(req.PropertyID); ok {
		d.PropertyTitle = p.Title
	} else if st.BookingDraft != nil && st.BookingDraft.PropertyID == req.PropertyID {
		d.PropertyTitle = st.BookingDraft.PropertyTitle
	}
	return d
}

func violationFor(violations []extractor.Violation, field string) (extractor.Violation, bool) {
	for _, v := range violations {
		if v.Field == field {
			return v, true
		}
	}
	return extractor.Violation{}, false
}

func invalid(object string, v extractor.Violation, reply string) agent.Outcome {
	return agent.Outcome{
		Terminal: true,
		Reply:    reply,
		Err:      &agent.ValidationError{Object: object, Violations: []extractor.Violation{v}},
	}
}

func collaboratorFailure(op string, err error, reply string) agent.Outcome {
	return agent.Outcome{
		Terminal: true,
		Reply:    reply,
		Err:      &agent.CollaboratorError{System: "calendar", Operation: op, Err: err},
	}
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
