package state

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ISL270/multi-agent-ai-realtor/internal/calendar"
	"github.com/ISL270/multi-agent-ai-realtor/internal/listing"
	"github.com/ISL270/multi-agent-ai-realtor/internal/ui"
)

// Profile keys accepted by SetUserProfileField.
const (
	ProfileName                = "name"
	ProfileJob                 = "job"
	ProfilePhone               = "phone"
	ProfileNumOfChildren       = "num_of_children"
	ProfileCityOfResidence     = "city_of_residence"
	ProfilePropertyPreferences = "property_preferences"
)

// ProfileKeys lists every profile key in display order.
var ProfileKeys = []string{
	ProfileName,
	ProfileJob,
	ProfilePhone,
	ProfileNumOfChildren,
	ProfileCityOfResidence,
	ProfilePropertyPreferences,
}

const maxProfileValueLen = 200

// UserProfile is what the assistant remembers about the client.
type UserProfile struct {
	Name                string `json:"name,omitempty"`
	Job                 string `json:"job,omitempty"`
	Phone               string `json:"phone,omitempty"`
	NumOfChildren       *int   `json:"num_of_children,omitempty"`
	CityOfResidence     string `json:"city_of_residence,omitempty"`
	PropertyPreferences string `json:"property_preferences,omitempty"`
}

// Get returns the stored value for key and whether it is set.
func (p UserProfile) Get(key string) (string, bool) {
	switch key {
	case ProfileName:
		return p.Name, p.Name != ""
	case ProfileJob:
		return p.Job, p.Job != ""
	case ProfilePhone:
		return p.Phone, p.Phone != ""
	case ProfileNumOfChildren:
		if p.NumOfChildren == nil {
			return "", false
		}
		return strconv.Itoa(*p.NumOfChildren), true
	case ProfileCityOfResidence:
		return p.CityOfResidence, p.CityOfResidence != ""
	case ProfilePropertyPreferences:
		return p.PropertyPreferences, p.PropertyPreferences != ""
	}
	return "", false
}

func (p *UserProfile) set(key string, value any) error {
	if key == ProfileNumOfChildren {
		n, err := asInt(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if n < 0 || n > 30 {
			return fmt.Errorf("%s: %d out of range", key, n)
		}
		p.NumOfChildren = &n
		return nil
	}

	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("%s: expected a string, got %T", key, value)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s: empty value", key)
	}
	if len(s) > maxProfileValueLen {
		return fmt.Errorf("%s: longer than %d characters", key, maxProfileValueLen)
	}

	switch key {
	case ProfileName:
		p.Name = s
	case ProfileJob:
		p.Job = s
	case ProfilePhone:
		p.Phone = s
	case ProfileCityOfResidence:
		p.CityOfResidence = s
	case ProfilePropertyPreferences:
		p.PropertyPreferences = s
	default:
		return fmt.Errorf("unknown profile key %q", key)
	}
	return nil
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%g is not a whole number", n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%q is not a whole number", n)
		}
		return i, nil
	}
	return 0, fmt.Errorf("expected an integer, got %T", v)
}

// BookingDraft is a booking waiting on missing details, usually the phone
// number. The next scheduling message patches it.
type BookingDraft struct {
	PropertyID    string         `json:"property_id,omitempty"`
	PropertyTitle string         `json:"property_title,omitempty"`
	Name          string         `json:"name,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	Slot          *calendar.Slot `json:"slot,omitempty"`
}

// TurnStatus is how a turn ended.
type TurnStatus string

const (
	TurnResponded TurnStatus = "responded"
	TurnEnded     TurnStatus = "ended"
	TurnAborted   TurnStatus = "aborted"
)

// TurnRecord is one entry in the conversation history.
type TurnRecord struct {
	TurnID      uint64     `json:"turn_id"`
	UserText    string     `json:"user_text"`
	Reply       string     `json:"reply"`
	Status      TurnStatus `json:"status"`
	Workers     []string   `json:"workers,omitempty"`
	Artifact    ui.Kind    `json:"artifact,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `json:"completed_at"`
}

// ConversationState is the single long-lived record of a session. It is
// only changed by applying command batches through a Session.
type ConversationState struct {
	SessionID         string             `json:"session_id"`
	TurnID            uint64             `json:"turn_id"`
	UserProfile       UserProfile        `json:"user_profile"`
	ActiveFilters     listing.Filters    `json:"active_filters"`
	LastResults       []listing.Property `json:"last_results,omitempty"`
	PendingUIArtifact *ui.Artifact       `json:"pending_ui_artifact,omitempty"`
	OfferedSlots      []calendar.Slot    `json:"offered_slots,omitempty"`
	BookingDraft      *BookingDraft      `json:"booking_draft,omitempty"`
	Bookings          []calendar.Booking `json:"bookings,omitempty"`
	History           []TurnRecord       `json:"history,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Clone returns a copy that shares no mutable containers with s.
func (s ConversationState) Clone() ConversationState {
	out := s
	out.ActiveFilters = s.ActiveFilters.Clone()
	out.LastResults = slices.Clone(s.LastResults)
	out.OfferedSlots = slices.Clone(s.OfferedSlots)
	out.Bookings = slices.Clone(s.Bookings)
	out.History = slices.Clone(s.History)
	if s.UserProfile.NumOfChildren != nil {
		n := *s.UserProfile.NumOfChildren
		out.UserProfile.NumOfChildren = &n
	}
	if s.PendingUIArtifact != nil {
		a := *s.PendingUIArtifact
		out.PendingUIArtifact = &a
	}
	if s.BookingDraft != nil {
		d := *s.BookingDraft
		out.BookingDraft = &d
	}
	return out
}

// Property returns the listing with the given id from the last results.
func (s ConversationState) Property(id string) (listing.Property, bool) {
	for _, p := range s.LastResults {
		if p.ID == id {
			return p, true
		}
	}
	return listing.Property{}, false
}

// SlotOffered reports whether sl is in the most recent availability result.
func (s ConversationState) SlotOffered(sl calendar.Slot) bool {
	return slices.ContainsFunc(s.OfferedSlots, sl.Equal)
}
