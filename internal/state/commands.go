package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/ISL270/multi-agent-ai-realtor/internal/calendar"
	"github.com/ISL270/multi-agent-ai-realtor/internal/listing"
	"github.com/ISL270/multi-agent-ai-realtor/internal/ui"
)

// ErrArtifactAlreadySet is returned when a second UI artifact is set in the
// same turn.
var ErrArtifactAlreadySet = errors.New("ui artifact already set this turn")

// Command is a typed state mutation. The set is closed: only the types in
// this file implement it.
type Command interface {
	Kind() string
	apply(s *ConversationState) error
}

// SetFilters patches the active filters field by field.
type SetFilters struct {
	Patch listing.Patch `json:"patch"`
}

// AppendResults replaces the last results with Items.
type AppendResults struct {
	Items []listing.Property `json:"items"`
}

// SetUserProfileField remembers one profile fact.
type SetUserProfileField struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// SetUIArtifact sets the artifact shown with this turn's reply.
type SetUIArtifact struct {
	Artifact ui.Artifact `json:"artifact"`
}

// SetOfferedSlots records the most recent availability result.
type SetOfferedSlots struct {
	Slots []calendar.Slot `json:"slots"`
}

// SetBookingDraft stores or, with a nil Draft, clears the booking draft.
type SetBookingDraft struct {
	Draft *BookingDraft `json:"draft"`
}

// RecordBooking appends a confirmed booking and clears the draft.
type RecordBooking struct {
	Booking calendar.Booking `json:"booking"`
}

type NoOp struct {
	Reason string `json:"reason,omitempty"`
}

func (SetFilters) Kind() string          { return "set_filters" }
func (AppendResults) Kind() string       { return "append_results" }
func (SetUserProfileField) Kind() string { return "set_user_profile_field" }
func (SetUIArtifact) Kind() string       { return "set_ui_artifact" }
func (SetOfferedSlots) Kind() string     { return "set_offered_slots" }
func (SetBookingDraft) Kind() string     { return "set_booking_draft" }
func (RecordBooking) Kind() string       { return "record_booking" }
func (NoOp) Kind() string                { return "noop" }

func (c SetFilters) apply(s *ConversationState) error {
	for _, name := range c.Patch.Clear {
		if !listing.KnownField(name) {
			return fmt.Errorf("unknown filter field %q", name)
		}
	}
	s.ActiveFilters = listing.Merge(s.ActiveFilters, c.Patch)
	return nil
}

func (c AppendResults) apply(s *ConversationState) error {
	for _, p := range c.Items {
		if !p.Usable() {
			return fmt.Errorf("property %q is missing id or image url", p.ID)
		}
	}
	s.LastResults = slices.Clone(c.Items)
	return nil
}

func (c SetUserProfileField) apply(s *ConversationState) error {
	return s.UserProfile.set(c.Key, c.Value)
}

func (c SetUIArtifact) apply(s *ConversationState) error {
	if s.PendingUIArtifact != nil {
		return ErrArtifactAlreadySet
	}
	if err := c.Artifact.Validate(); err != nil {
		return err
	}
	a := c.Artifact
	s.PendingUIArtifact = &a
	return nil
}

func (c SetOfferedSlots) apply(s *ConversationState) error {
	for _, sl := range c.Slots {
		if !sl.Start.Before(sl.End) {
			return fmt.Errorf("slot %s ends before it starts", sl)
		}
	}
	s.OfferedSlots = slices.Clone(c.Slots)
	return nil
}

func (c SetBookingDraft) apply(s *ConversationState) error {
	if c.Draft == nil {
		s.BookingDraft = nil
		return nil
	}
	d := *c.Draft
	s.BookingDraft = &d
	return nil
}

func (c RecordBooking) apply(s *ConversationState) error {
	if c.Booking.ID == "" {
		return errors.New("booking has no id")
	}
	s.Bookings = append(s.Bookings, c.Booking)
	s.BookingDraft = nil
	s.OfferedSlots = slices.DeleteFunc(slices.Clone(s.OfferedSlots), c.Booking.Slot.Equal)
	return nil
}

func (NoOp) apply(*ConversationState) error { return nil }

// Batch is the unit of atomic application: every command applies, or none.
type Batch struct {
	TurnID   uint64
	Actor    string
	Commands []Command
}

type taggedCommand struct {
	Kind    string  `json:"kind"`
	Command Command `json:"command"`
}

// Fingerprint identifies the batch content for replay detection.
func (b Batch) Fingerprint() (string, error) {
	tagged := make([]taggedCommand, len(b.Commands))
	for i, c := range b.Commands {
		tagged[i] = taggedCommand{Kind: c.Kind(), Command: c}
	}
	data, err := json.Marshal(struct {
		Actor    string          `json:"actor"`
		Commands []taggedCommand `json:"commands"`
	}{b.Actor, tagged})
	if err != nil {
		return "", fmt.Errorf("marshal batch: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Kinds lists the command kinds in order, for logging.
func (b Batch) Kinds() []string {
	out := make([]string, len(b.Commands))
	for i, c := range b.Commands {
		out[i] = c.Kind()
	}
	return out
}
