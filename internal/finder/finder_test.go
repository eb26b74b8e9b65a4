package finder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ISL270/multi-agent-ai-realtor/internal/agent"
	"github.com/ISL270/multi-agent-ai-realtor/internal/listing"
	"github.com/ISL270/multi-agent-ai-realtor/internal/llm"
	"github.com/ISL270/multi-agent-ai-realtor/internal/state"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type scriptedLLM struct {
	replies []string
	err     error
	calls   int
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.calls > len(s.replies) {
		return nil, errors.New("no scripted reply")
	}
	return &llm.CompletionResponse{Content: s.replies[s.calls-1]}, nil
}

type stubQuerier struct {
	results []listing.Property
	err     error
	got     []listing.Filters
}

func (q *stubQuerier) QueryProperties(_ context.Context, f listing.Filters) ([]listing.Property, error) {
	q.got = append(q.got, f)
	return q.results, q.err
}

func nileView() listing.Property {
	return listing.Property{ID: "p1", Title: "Nile View", Price: 4500000, City: "New Cairo", Bedrooms: listing.Ptr(2), ImageURL: "https://img/p1.jpg"}
}

// runAndApply runs the finder against a fresh turn of sess and applies its
// commands the way the turn loop does.
func runAndApply(t *testing.T, f *Finder, sess *state.Session, text string) agent.Outcome {
	t.Helper()
	turn, err := sess.BeginTurn()
	if err != nil {
		t.Fatalf("begin turn: %v", err)
	}
	out, err := f.Run(context.Background(), agent.Input{State: sess.Snapshot(), Message: text, Turn: agent.TurnProgress{TurnID: turn}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out.Commands) > 0 {
		if err := sess.Apply(state.Batch{TurnID: turn, Actor: string(f.ID()), Commands: out.Commands}); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	if err := sess.EndTurn(state.TurnRecord{TurnID: turn}); err != nil {
		t.Fatalf("end turn: %v", err)
	}
	return out
}

func TestRun_NewSearch(t *testing.T) {
	provider := &scriptedLLM{replies: []string{`{"bedrooms": 2, "city": "New Cairo", "max_price": 5000000}`}}
	query := &stubQuerier{results: []listing.Property{nileView()}}
	f := New(provider, query, discardLogger())
	sess := state.NewSession("s1", time.Unix(0, 0), discardLogger())

	out := runAndApply(t, f, sess, "2-bedroom apartments in New Cairo under 5,000,000")

	if out.Terminal {
		t.Error("a successful search hands control back to the router")
	}
	want := listing.Filters{Bedrooms: listing.Ptr(2), City: listing.Ptr("New Cairo"), MaxPrice: listing.Ptr(5000000.0)}
	snap := sess.Snapshot()
	if diff := cmp.Diff(want, snap.ActiveFilters); diff != "" {
		t.Errorf("active filters mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, query.got[0]); diff != "" {
		t.Errorf("queried filters mismatch (-want +got):\n%s", diff)
	}
	if len(snap.LastResults) != 1 {
		t.Errorf("expected 1 result, got %d", len(snap.LastResults))
	}
	if snap.PendingUIArtifact == nil || snap.PendingUIArtifact.Kind != "property_carousel" {
		t.Errorf("expected a property carousel, got %+v", snap.PendingUIArtifact)
	}
	if provider.calls != 1 {
		t.Errorf("expected 1 model call, got %d", provider.calls)
	}
}

func TestRun_RefinementPreservesFilters(t *testing.T) {
	provider := &scriptedLLM{replies: []string{
		`{"bedrooms": 2, "city": "New Cairo"}`,
		`{"max_price": 3000000}`,
	}}
	query := &stubQuerier{results: []listing.Property{nileView()}}
	f := New(provider, query, discardLogger())
	sess := state.NewSession("s1", time.Unix(0, 0), discardLogger())

	runAndApply(t, f, sess, "2 bedrooms in New Cairo")
	runAndApply(t, f, sess, "under 3 million")

	want := listing.Filters{Bedrooms: listing.Ptr(2), City: listing.Ptr("New Cairo"), MaxPrice: listing.Ptr(3000000.0)}
	if diff := cmp.Diff(want, sess.Snapshot().ActiveFilters); diff != "" {
		t.Errorf("active filters mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_EmptyResults(t *testing.T) {
	provider := &scriptedLLM{replies: []string{`{"city": "Siwa"}`}}
	f := New(provider, &stubQuerier{}, discardLogger())
	sess := state.NewSession("s1", time.Unix(0, 0), discardLogger())

	out := runAndApply(t, f, sess, "anything in Siwa")

	for _, c := range out.Commands {
		if _, ok := c.(state.SetUIArtifact); ok {
			t.Error("no artifact expected for an empty result")
		}
	}
	if sess.Snapshot().PendingUIArtifact != nil {
		t.Error("expected no pending artifact")
	}
}

func TestRun_ExtractionFailureAsksForClarification(t *testing.T) {
	provider := &scriptedLLM{err: errors.New("model unavailable")}
	query := &stubQuerier{}
	f := New(provider, query, discardLogger())

	out, err := f.Run(context.Background(), agent.Input{Message: "something nice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Terminal || out.Reply == "" {
		t.Errorf("expected terminal clarification, got %+v", out)
	}
	if len(out.Commands) != 0 {
		t.Errorf("expected no commands, got %d", len(out.Commands))
	}
	if len(query.got) != 0 {
		t.Error("query must not run when parsing failed")
	}
}

func TestRun_QueryFailureLeavesResults(t *testing.T) {
	provider := &scriptedLLM{replies: []string{`{"city": "Giza"}`}}
	query := &stubQuerier{err: errors.New("connection refused")}
	f := New(provider, query, discardLogger())

	prior := state.ConversationState{LastResults: []listing.Property{nileView()}}
	out, err := f.Run(context.Background(), agent.Input{State: prior, Message: "Giza"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Terminal || len(out.Commands) != 0 {
		t.Errorf("expected terminal outcome with no commands, got %+v", out)
	}
	var collab *agent.CollaboratorError
	if !errors.As(out.Err, &collab) || collab.System != "property database" {
		t.Errorf("expected property database CollaboratorError, got %v", out.Err)
	}
}

func TestRun_SkipsUnusableRows(t *testing.T) {
	provider := &scriptedLLM{replies: []string{`{}`}}
	broken := listing.Property{ID: "p2", Title: "No photo"}
	f := New(provider, &stubQuerier{results: []listing.Property{nileView(), broken}}, discardLogger())
	sess := state.NewSession("s1", time.Unix(0, 0), discardLogger())

	runAndApply(t, f, sess, "show me everything")

	if got := sess.Snapshot().LastResults; len(got) != 1 || got[0].ID != "p1" {
		t.Errorf("expected only p1, got %+v", got)
	}
}

func TestRun_NotesForDroppedAndVagueFields(t *testing.T) {
	provider := &scriptedLLM{replies: []string{
		`{"city": "Giza", "sort_by": "rating", "_low_confidence": ["max_price"]}`,
		`{"sort_by": "popularity"}`,
	}}
	f := New(provider, &stubQuerier{results: []listing.Property{nileView()}}, discardLogger())

	out, err := f.Run(context.Background(), agent.Input{Message: "cheap and popular in Giza"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Notes) != 2 {
		t.Fatalf("expected 2 notes, got %v", out.Notes)
	}
}
