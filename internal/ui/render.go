package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ISL270/multi-agent-ai-realtor/internal/listing"
)

// Renderer turns an artifact into a view descriptor. Callers treat the
// result as opaque.
type Renderer interface {
	Render(a Artifact) (json.RawMessage, error)
}

// view is the descriptor shape the web client consumes.
type view struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Name  Kind   `json:"name"`
	Props any    `json:"props"`
}

// JSONRenderer produces {"type":"ui","id":...,"name":<kind>,"props":{...}}.
type JSONRenderer struct{}

func (JSONRenderer) Render(a Artifact) (json.RawMessage, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("render artifact: %w", err)
	}

	var props any
	switch a.Kind {
	case KindPropertyCarousel:
		props = map[string]any{"properties": a.Properties}
	case KindSlotPicker:
		props = map[string]any{"date": a.Date, "timezone": a.Timezone, "slots": a.Slots}
	case KindBookingConfirmation:
		props = map[string]any{"booking": a.Booking}
	case KindText:
		props = map[string]any{"content": a.Content}
	}

	data, err := json.Marshal(view{Type: "ui", ID: a.ID, Name: a.Kind, Props: props})
	if err != nil {
		return nil, fmt.Errorf("marshal view: %w", err)
	}
	return data, nil
}

// WriteText renders an artifact for a terminal.
func WriteText(w io.Writer, a Artifact) error {
	var b strings.Builder
	switch a.Kind {
	case KindPropertyCarousel:
		for i, p := range a.Properties {
			fmt.Fprintf(&b, "  %d. %s  %s", i+1, p.Title, listing.FormatPrice(p.Price))
			var details []string
			if p.City != "" {
				details = append(details, p.City)
			}
			if p.Bedrooms != nil {
				details = append(details, fmt.Sprintf("%d bd", *p.Bedrooms))
			}
			if p.AreaSqm != nil {
				details = append(details, fmt.Sprintf("%.0f m²", *p.AreaSqm))
			}
			if len(details) > 0 {
				b.WriteString("  (" + strings.Join(details, ", ") + ")")
			}
			fmt.Fprintf(&b, "  [%s]\n", p.ID)
		}
	case KindSlotPicker:
		fmt.Fprintf(&b, "  Available on %s (%s):\n", a.Date, a.Timezone)
		for _, s := range a.Slots {
			fmt.Fprintf(&b, "  - %s-%s\n", s.Start.Format("15:04"), s.End.Format("15:04"))
		}
	case KindBookingConfirmation:
		if a.Booking != nil {
			fmt.Fprintf(&b, "  Booked: %s, %s (%s), ref %s\n", a.Booking.PropertyTitle, a.Booking.Slot, a.Booking.Timezone, a.Booking.ID)
		}
	case KindText:
		b.WriteString("  " + a.Content + "\n")
	default:
		return fmt.Errorf("unknown artifact kind %q", a.Kind)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
