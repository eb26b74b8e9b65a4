package ui

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ISL270/multi-agent-ai-realtor/internal/calendar"
	"github.com/ISL270/multi-agent-ai-realtor/internal/listing"
)

// Kind names a UI component.
type Kind string

const (
	KindPropertyCarousel    Kind = "property_carousel"
	KindSlotPicker          Kind = "slot_picker"
	KindBookingConfirmation Kind = "booking_confirmation"
	KindText                Kind = "text"
)

// Artifact is a renderable payload attached to an assistant reply. Only the
// fields for its Kind are set.
type Artifact struct {
	ID         string             `json:"id"`
	Kind       Kind               `json:"kind"`
	Properties []listing.Property `json:"properties,omitempty"`
	Date       string             `json:"date,omitempty"`
	Timezone   string             `json:"timezone,omitempty"`
	Slots      []calendar.Slot    `json:"slots,omitempty"`
	Booking    *calendar.Booking  `json:"booking,omitempty"`
	Content    string             `json:"content,omitempty"`
}

func PropertyCarousel(properties []listing.Property) Artifact {
	return Artifact{ID: uuid.NewString(), Kind: KindPropertyCarousel, Properties: properties}
}

func SlotPicker(date, timezone string, slots []calendar.Slot) Artifact {
	return Artifact{ID: uuid.NewString(), Kind: KindSlotPicker, Date: date, Timezone: timezone, Slots: slots}
}

func BookingConfirmation(b calendar.Booking) Artifact {
	return Artifact{ID: uuid.NewString(), Kind: KindBookingConfirmation, Booking: &b}
}

func Text(content string) Artifact {
	return Artifact{ID: uuid.NewString(), Kind: KindText, Content: content}
}

// Validate checks that the payload fields required by Kind are present.
func (a Artifact) Validate() error {
	switch a.Kind {
	case KindPropertyCarousel:
		if len(a.Properties) == 0 {
			return fmt.Errorf("%s: no properties", a.Kind)
		}
	case KindSlotPicker:
		if len(a.Slots) == 0 {
			return fmt.Errorf("%s: no slots", a.Kind)
		}
	case KindBookingConfirmation:
		if a.Booking == nil {
			return fmt.Errorf("%s: no booking", a.Kind)
		}
	case KindText:
		if a.Content == "" {
			return fmt.Errorf("%s: empty content", a.Kind)
		}
	default:
		return fmt.Errorf("unknown artifact kind %q", a.Kind)
	}
	return nil
}
