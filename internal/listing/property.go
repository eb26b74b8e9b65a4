package listing

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Property is a single listing returned by the query collaborator.
type Property struct {
	ID           string   `json:"id" yaml:"id"`
	Title        string   `json:"title" yaml:"title"`
	Description  string   `json:"description,omitempty" yaml:"description"`
	Price        float64  `json:"price" yaml:"price"`
	PropertyType string   `json:"property_type,omitempty" yaml:"property_type"`
	Bedrooms     *int     `json:"bedrooms,omitempty" yaml:"bedrooms"`
	Bathrooms    *int     `json:"bathrooms,omitempty" yaml:"bathrooms"`
	City         string   `json:"city,omitempty" yaml:"city"`
	AreaSqm      *float64 `json:"area_sqm,omitempty" yaml:"area_sqm"`
	ImageURL     string   `json:"image_url" yaml:"image_url"`
	Amenities    []string `json:"amenities" yaml:"amenities"`
}

// Usable reports whether the row carries the fields the UI cannot do
// without. Rows failing this are skipped by the query collaborators.
func (p Property) Usable() bool {
	return p.ID != "" && p.ImageURL != ""
}

var printer = message.NewPrinter(language.English)

// FormatPrice renders a price with thousands separators, e.g. "$4,500,000".
func FormatPrice(v float64) string {
	return printer.Sprintf("$%.0f", v)
}

// Summary renders the one-line description shown above search results,
// e.g. "I found 2 properties that match your criteria: (in New Cairo, 2+ bedrooms)".
func Summary(count int, f Filters) string {
	if count == 0 {
		return "I couldn't find any properties matching your criteria. Would you like to try a different search?"
	}

	var b strings.Builder
	if count == 1 {
		b.WriteString("I found 1 property that matches your criteria:")
	} else {
		fmt.Fprintf(&b, "I found %d properties that match your criteria:", count)
	}

	if parts := describe(f); len(parts) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	return b.String()
}

func describe(f Filters) []string {
	var parts []string
	if f.City != nil {
		parts = append(parts, "in "+*f.City)
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		var r []string
		if f.MinPrice != nil {
			r = append(r, "min "+FormatPrice(*f.MinPrice))
		}
		if f.MaxPrice != nil {
			r = append(r, "max "+FormatPrice(*f.MaxPrice))
		}
		parts = append(parts, "price range: "+strings.Join(r, " - "))
	}
	if f.Bedrooms != nil {
		parts = append(parts, fmt.Sprintf("%d+ bedrooms", *f.Bedrooms))
	}
	if f.PropertyType != nil {
		parts = append(parts, "type: "+*f.PropertyType)
	}
	if len(f.Amenities) > 0 {
		parts = append(parts, "with "+strings.Join(f.Amenities, ", "))
	}
	return parts
}
