package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ISL270/multi-agent-ai-realtor/internal/agent"
	"github.com/ISL270/multi-agent-ai-realtor/internal/calendar"
	"github.com/ISL270/multi-agent-ai-realtor/internal/listing"
	"github.com/ISL270/multi-agent-ai-realtor/internal/llm"
	"github.com/ISL270/multi-agent-ai-realtor/internal/state"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type scriptedLLM struct {
	replies  []string
	requests []llm.CompletionRequest
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.requests = append(s.requests, req)
	if len(s.requests) > len(s.replies) {
		return nil, errors.New("no scripted reply")
	}
	return &llm.CompletionResponse{Content: s.replies[len(s.requests)-1]}, nil
}

var (
	today   = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	tenAM   = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	tenSlot = calendar.Slot{Start: tenAM, End: tenAM.Add(time.Hour)}
)

func newTestCalendar(t *testing.T, store calendar.EventStore) *calendar.Service {
	t.Helper()
	cfg := calendar.DefaultConfig()
	cfg.Timezone = "UTC"
	svc, err := calendar.New(store, cfg, discardLogger())
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	svc.SetClock(func() time.Time { return today })
	return svc
}

func nileView() listing.Property {
	return listing.Property{ID: "p1", Title: "Nile View", Price: 4500000, ImageURL: "https://img/p1.jpg"}
}

func run(t *testing.T, s *Scheduler, st state.ConversationState, text string) agent.Outcome {
	t.Helper()
	out, err := s.Run(context.Background(), agent.Input{State: st, Message: text})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !out.Terminal {
		t.Error("scheduler outcomes are always terminal")
	}
	return out
}

func commandOf[C state.Command](cmds []state.Command) (C, bool) {
	for _, c := range cmds {
		if typed, ok := c.(C); ok {
			return typed, true
		}
	}
	var zero C
	return zero, false
}

func TestRun_Availability(t *testing.T) {
	provider := &scriptedLLM{replies: []string{`{"action": "availability", "date": "2025-06-02"}`}}
	s := New(provider, newTestCalendar(t, calendar.NewMemoryStore()), discardLogger())

	out := run(t, s, state.ConversationState{LastResults: []listing.Property{nileView()}}, "can I see it tomorrow?")

	offered, ok := commandOf[state.SetOfferedSlots](out.Commands)
	if !ok || len(offered.Slots) != 8 {
		t.Fatalf("expected 8 offered slots, got %+v", out.Commands)
	}
	if _, ok := commandOf[state.SetUIArtifact](out.Commands); !ok {
		t.Error("expected a slot picker artifact")
	}
	draft, ok := commandOf[state.SetBookingDraft](out.Commands)
	if !ok || draft.Draft.PropertyID != "p1" {
		t.Errorf("expected a draft for the only listed property, got %+v", draft)
	}
	if !strings.Contains(out.Reply, "10:00") || !strings.Contains(out.Reply, "Monday 2 June") {
		t.Errorf("unexpected reply %q", out.Reply)
	}

	prompt := provider.requests[0].Messages[0].Content
	if !strings.Contains(prompt, "Today is 2025-06-01 (Sunday)") || !strings.Contains(prompt, "id=p1 Nile View") {
		t.Errorf("prompt is missing background:\n%s", prompt)
	}
}

func TestRun_AvailabilityNeedsDate(t *testing.T) {
	provider := &scriptedLLM{replies: []string{`{"action": "availability"}`}}
	s := New(provider, newTestCalendar(t, calendar.NewMemoryStore()), discardLogger())

	out := run(t, s, state.ConversationState{}, "I'd like to book a viewing")

	if _, ok := commandOf[state.SetOfferedSlots](out.Commands); ok {
		t.Error("no availability lookup without a date")
	}
	if _, ok := commandOf[state.SetBookingDraft](out.Commands); !ok {
		t.Error("expected a draft so the next message continues the booking")
	}
}

func TestRun_UnofferedSlotIsValidationError(t *testing.T) {
	provider := &scriptedLLM{replies: []string{`{"action": "book", "slot_start": "2025-06-02T15:00:00Z", "property_id": "p1", "name": "Sara", "phone": "+201001234567"}`}}
	store := calendar.NewMemoryStore()
	s := New(provider, newTestCalendar(t, store), discardLogger())

	sess := state.NewSession("s1", today, discardLogger())
	turn, _ := sess.BeginTurn()
	seed := state.Batch{TurnID: turn, Commands: []state.Command{
		state.SetFilters{Patch: listing.Patch{Set: listing.Filters{City: listing.Ptr("New Cairo")}}},
		state.AppendResults{Items: []listing.Property{nileView()}},
		state.SetOfferedSlots{Slots: []calendar.Slot{tenSlot}},
	}}
	if err := sess.Apply(seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before := sess.Snapshot()

	out := run(t, s, before, "book 3pm please")

	var verr *agent.ValidationError
	if !errors.As(out.Err, &verr) {
		t.Fatalf("expected ValidationError, got %v", out.Err)
	}
	if len(out.Commands) != 0 {
		t.Fatalf("expected no commands, got %d", len(out.Commands))
	}
	events, _ := store.ListEvents(context.Background(), today, today.AddDate(0, 0, 7))
	if len(events) != 0 {
		t.Error("calendar must not be touched")
	}
	after := sess.Snapshot()
	if len(after.LastResults) != 1 || *after.ActiveFilters.City != "New Cairo" {
		t.Error("results and filters must be unchanged")
	}
}

func TestRun_BookOfferedSlot(t *testing.T) {
	provider := &scriptedLLM{replies: []string{`{"action": "book", "slot_start": "2025-06-02T10:00:00Z"}`}}
	store := calendar.NewMemoryStore()
	s := New(provider, newTestCalendar(t, store), discardLogger())

	st := state.ConversationState{
		UserProfile:  state.UserProfile{Name: "Sara", Phone: "+201001234567"},
		LastResults:  []listing.Property{nileView()},
		OfferedSlots: []calendar.Slot{tenSlot},
	}
	out := run(t, s, st, "10am works")

	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	rec, ok := commandOf[state.RecordBooking](out.Commands)
	if !ok || rec.Booking.PropertyID != "p1" || !rec.Booking.Slot.Equal(tenSlot) {
		t.Fatalf("expected booking for p1 at 10:00, got %+v", out.Commands)
	}
	if _, ok := commandOf[state.SetUserProfileField](out.Commands); ok {
		t.Error("profile already holds name and phone")
	}
	if !strings.Contains(out.Reply, "Nile View") {
		t.Errorf("unexpected reply %q", out.Reply)
	}
	events, _ := store.ListEvents(context.Background(), today, today.AddDate(0, 0, 7))
	if len(events) != 1 {
		t.Errorf("expected 1 calendar event, got %d", len(events))
	}
}

func TestRun_MissingPhoneKeepsDraft(t *testing.T) {
	provider := &scriptedLLM{replies: []string{
		`{"action": "book", "slot_start": "2025-06-02T10:00:00Z", "name": "Sara"}`,
		`{"phone": "+20 100 123 4567"}`,
	}}
	s := New(provider, newTestCalendar(t, calendar.NewMemoryStore()), discardLogger())

	st := state.ConversationState{LastResults: []listing.Property{nileView()}, OfferedSlots: []calendar.Slot{tenSlot}}
	out := run(t, s, st, "10am, I'm Sara")

	if !strings.Contains(out.Reply, "phone number") {
		t.Errorf("expected a request for the phone number, got %q", out.Reply)
	}
	draftCmd, ok := commandOf[state.SetBookingDraft](out.Commands)
	if !ok || draftCmd.Draft.Slot == nil || draftCmd.Draft.Name != "Sara" {
		t.Fatalf("expected a draft holding the slot and name, got %+v", out.Commands)
	}

	st.BookingDraft = draftCmd.Draft
	out = run(t, s, st, "+20 100 123 4567")

	rec, ok := commandOf[state.RecordBooking](out.Commands)
	if !ok || rec.Booking.Name != "Sara" || rec.Booking.Phone != "+20 100 123 4567" {
		t.Fatalf("expected booking from the draft, got %+v (%v)", out.Commands, out.Err)
	}
	if _, ok := commandOf[state.SetUserProfileField](out.Commands); !ok {
		t.Error("expected the new contact details to be remembered")
	}
}

func TestRun_ConflictIsCollaboratorError(t *testing.T) {
	provider := &scriptedLLM{replies: []string{`{"action": "book", "slot_start": "2025-06-02T10:00:00Z", "property_id": "p1", "name": "Sara", "phone": "01001234567"}`}}
	store := calendar.NewMemoryStore()
	store.InsertEvent(context.Background(), calendar.Event{ID: "taken", Start: tenAM, End: tenAM.Add(time.Hour)})
	s := New(provider, newTestCalendar(t, store), discardLogger())

	st := state.ConversationState{LastResults: []listing.Property{nileView()}, OfferedSlots: []calendar.Slot{tenSlot}}
	out := run(t, s, st, "10am")

	var collab *agent.CollaboratorError
	if !errors.As(out.Err, &collab) || !errors.Is(out.Err, calendar.ErrConflict) {
		t.Fatalf("expected CollaboratorError wrapping ErrConflict, got %v", out.Err)
	}
	if len(out.Commands) != 0 {
		t.Errorf("expected no commands, got %d", len(out.Commands))
	}
}

func TestMergeRequest(t *testing.T) {
	existing := Request{Action: ActionBook, SlotStart: "2025-06-02T10:00:00Z", Name: "Sara"}
	got := mergeRequest(existing, Request{Phone: "0100 123 4567", Name: "Sara A."}, []string{fieldSlotStart})

	want := Request{Action: ActionBook, Name: "Sara A.", Phone: "0100 123 4567"}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}
