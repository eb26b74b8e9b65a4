package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ISL270/multi-agent-ai-realtor/internal/agent"
	"github.com/ISL270/multi-agent-ai-realtor/internal/calendar"
	"github.com/ISL270/multi-agent-ai-realtor/internal/listing"
	"github.com/ISL270/multi-agent-ai-realtor/internal/state"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func route(t *testing.T, st state.ConversationState, msg string, progress agent.TurnProgress) agent.Decision {
	t.Helper()
	d, err := New(discardLogger()).Route(context.Background(), agent.Input{State: st, Message: msg, Turn: progress})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	return d
}

func staleFilters() state.ConversationState {
	return state.ConversationState{
		ActiveFilters: listing.Filters{City: listing.Ptr("New Cairo"), Bedrooms: listing.Ptr(2)},
		LastResults:   []listing.Property{{ID: "p1", Title: "Nile View", ImageURL: "https://img/p1.jpg"}},
	}
}

func TestRoute_Table(t *testing.T) {
	remembered := agent.TurnProgress{Remembered: true}
	withDraft := state.ConversationState{BookingDraft: &state.BookingDraft{PropertyID: "p1"}}

	tests := []struct {
		name     string
		st       state.ConversationState
		msg      string
		progress agent.TurnProgress
		kind     agent.DecisionKind
		worker   agent.WorkerID
	}{
		{name: "property search", msg: "2-bedroom apartments in New Cairo under 5,000,000", kind: agent.DecideDelegate, worker: agent.PropertyFinder},
		{name: "refinement", st: staleFilters(), msg: "under 3 million", kind: agent.DecideDelegate, worker: agent.PropertyFinder},
		{name: "scheduling beats stale filters", st: staleFilters(), msg: "can I book a viewing for the villa tomorrow?", kind: agent.DecideDelegate, worker: agent.AppointmentScheduler},
		{name: "availability", msg: "what times are available on Monday?", kind: agent.DecideDelegate, worker: agent.AppointmentScheduler},
		{name: "available listings are a search", msg: "show me available apartments in New Cairo", kind: agent.DecideDelegate, worker: agent.PropertyFinder},
		{name: "parking slots are a search", msg: "villas in Giza with 2 parking slots", kind: agent.DecideDelegate, worker: agent.PropertyFinder},
		{name: "availability of a listing", msg: "is the villa available on Thursday?", kind: agent.DecideDelegate, worker: agent.AppointmentScheduler},
		{name: "tour", msg: "can I take a tour of the apartment?", kind: agent.DecideDelegate, worker: agent.AppointmentScheduler},
		{name: "draft continues", st: withDraft, msg: "10am works", kind: agent.DecideDelegate, worker: agent.AppointmentScheduler},
		{name: "draft yields to new search", st: withDraft, msg: "actually show me villas in Giza", kind: agent.DecideDelegate, worker: agent.PropertyFinder},
		{name: "greeting", msg: "Hello!", kind: agent.DecideRespond},
		{name: "thanks", msg: "thanks", kind: agent.DecideRespond},
		{name: "farewell", msg: "bye", kind: agent.DecideEnd},
		{name: "remember", msg: "my name is sara", kind: agent.DecideRemember},
		{name: "after remember", msg: "my name is sara", progress: remembered, kind: agent.DecideRespond},
		{name: "ambiguous", msg: "what do you think about the weather", kind: agent.DecideRespond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := route(t, tt.st, tt.msg, tt.progress)
			if d.Kind != tt.kind {
				t.Fatalf("expected %s, got %s (%s)", tt.kind, d.Kind, d.Reason)
			}
			if tt.worker != "" && d.Worker != tt.worker {
				t.Errorf("expected worker %s, got %s", tt.worker, d.Worker)
			}
		})
	}
}

func TestRoute_Deterministic(t *testing.T) {
	st := staleFilters()
	first := route(t, st, "show me something bigger", agent.TurnProgress{})
	for range 5 {
		again := route(t, st, "show me something bigger", agent.TurnProgress{})
		if diff := cmp.Diff(first, again, cmp.Comparer(func(a, b error) bool { return errors.Is(a, b) })); diff != "" {
			t.Fatalf("routing changed between calls (-first +again):\n%s", diff)
		}
	}
}

func TestRoute_AmbiguityIsTagged(t *testing.T) {
	d := route(t, state.ConversationState{}, "hmm", agent.TurnProgress{})
	if !errors.Is(d.Err, agent.ErrRoutingAmbiguity) {
		t.Errorf("expected ErrRoutingAmbiguity, got %v", d.Err)
	}
	if d.Reply == "" {
		t.Error("expected a clarification reply")
	}
}

func TestRoute_SummaryAfterSearch(t *testing.T) {
	st := staleFilters()
	progress := agent.TurnProgress{Delegations: []agent.Delegation{{Worker: agent.PropertyFinder, Notes: []string{"Note: check this."}}}}

	d := route(t, st, "2 bedrooms in New Cairo", progress)

	if d.Kind != agent.DecideRespond {
		t.Fatalf("expected respond, got %s", d.Kind)
	}
	if !strings.HasPrefix(d.Reply, "I found 1 property that matches your criteria: (in New Cairo, 2+ bedrooms)") {
		t.Errorf("unexpected summary %q", d.Reply)
	}
	if !strings.Contains(d.Reply, "Note: check this.") {
		t.Errorf("expected worker notes in reply, got %q", d.Reply)
	}
}

func TestRoute_ShowAgain(t *testing.T) {
	d := route(t, staleFilters(), "show them again", agent.TurnProgress{})
	if d.Kind != agent.DecideRespond || len(d.Commands) != 1 {
		t.Fatalf("expected respond with one command, got %+v", d)
	}
	if _, ok := d.Commands[0].(state.SetUIArtifact); !ok {
		t.Errorf("expected SetUIArtifact, got %T", d.Commands[0])
	}

	d = route(t, state.ConversationState{}, "show them again", agent.TurnProgress{})
	if len(d.Commands) != 0 {
		t.Error("nothing to re-show without results")
	}
}

func TestProfileFacts(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		profile state.UserProfile
		want    []state.Command
	}{
		{
			name: "name and children",
			msg:  "My name is sara ahmed and I have two kids",
			want: []state.Command{
				state.SetUserProfileField{Key: state.ProfileName, Value: "Sara Ahmed"},
				state.SetUserProfileField{Key: state.ProfileNumOfChildren, Value: 2},
			},
		},
		{
			name: "job and city",
			msg:  "I work as a software engineer, I live in Maadi and need more space",
			want: []state.Command{
				state.SetUserProfileField{Key: state.ProfileJob, Value: "software engineer"},
				state.SetUserProfileField{Key: state.ProfileCityOfResidence, Value: "Maadi"},
			},
		},
		{
			name: "phone",
			msg:  "my phone number is +20 100 123 4567",
			want: []state.Command{state.SetUserProfileField{Key: state.ProfilePhone, Value: "+20 100 123 4567"}},
		},
		{
			name: "bare phone",
			msg:  "01001234567",
			want: []state.Command{state.SetUserProfileField{Key: state.ProfilePhone, Value: "01001234567"}},
		},
		{
			name:    "already stored",
			msg:     "my name is Sara",
			profile: state.UserProfile{Name: "Sara"},
		},
		{
			name: "preference",
			msg:  "I prefer ground floor units with a garden",
			want: []state.Command{state.SetUserProfileField{Key: state.ProfilePropertyPreferences, Value: "ground floor units with a garden"}},
		},
		{
			name: "nothing",
			msg:  "villas in Giza under 10 million",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := profileFacts(tt.msg, tt.profile)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("facts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRoute_DraftAndPhone(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	st := state.ConversationState{BookingDraft: &state.BookingDraft{PropertyID: "p1", Slot: &calendar.Slot{Start: start, End: start.Add(time.Hour)}}}

	d := route(t, st, "0100 123 4567", agent.TurnProgress{})
	if d.Kind != agent.DecideRemember {
		t.Fatalf("expected remember first, got %s", d.Kind)
	}

	st.UserProfile.Phone = "0100 123 4567"
	d = route(t, st, "0100 123 4567", agent.TurnProgress{Remembered: true})
	if d.Kind != agent.DecideDelegate || d.Worker != agent.AppointmentScheduler {
		t.Errorf("expected delegation to the scheduler, got %s", d)
	}
}
