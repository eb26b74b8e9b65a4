package listing

import (
	"fmt"
	"sort"
	"strings"
)

// Sort fields and orders accepted by the query collaborators.
const (
	SortByPrice = "price"
	SortByArea  = "area"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// Field names, shared by the extraction schema, Patch.Clear and the merge table.
const (
	FieldCity         = "city"
	FieldPropertyType = "property_type"
	FieldMinPrice     = "min_price"
	FieldMaxPrice     = "max_price"
	FieldBedrooms     = "bedrooms"
	FieldBathrooms    = "bathrooms"
	FieldMinArea      = "min_area"
	FieldMaxArea      = "max_area"
	FieldAmenities    = "amenities"
	FieldSortBy       = "sort_by"
	FieldSortOrder    = "sort_order"
)

// Filters is the typed search-criteria object. A nil pointer (or empty
// amenities list) means the criterion is unset.
type Filters struct {
	City         *string  `json:"city,omitempty"`
	PropertyType *string  `json:"property_type,omitempty"`
	MinPrice     *float64 `json:"min_price,omitempty"`
	MaxPrice     *float64 `json:"max_price,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Bathrooms    *int     `json:"bathrooms,omitempty"`
	MinArea      *float64 `json:"min_area,omitempty"`
	MaxArea      *float64 `json:"max_area,omitempty"`
	Amenities    []string `json:"amenities,omitempty"`
	SortBy       *string  `json:"sort_by,omitempty"`
	SortOrder    *string  `json:"sort_order,omitempty"`
}

// Patch is an incremental change to a Filters object: fields set in Set
// overwrite, fields named in Clear are removed, everything else is kept.
type Patch struct {
	Set   Filters  `json:"set"`
	Clear []string `json:"clear,omitempty"`
}

// IsEmpty reports whether applying the patch would change nothing.
func (p Patch) IsEmpty() bool {
	return p.Set.IsZero() && len(p.Clear) == 0
}

// IsZero reports whether no criterion is set.
func (f Filters) IsZero() bool {
	return f.City == nil && f.PropertyType == nil &&
		f.MinPrice == nil && f.MaxPrice == nil &&
		f.Bedrooms == nil && f.Bathrooms == nil &&
		f.MinArea == nil && f.MaxArea == nil &&
		len(f.Amenities) == 0 &&
		f.SortBy == nil && f.SortOrder == nil
}

// Clone returns a deep copy.
func (f Filters) Clone() Filters {
	out := Filters{
		City:         cloneString(f.City),
		PropertyType: cloneString(f.PropertyType),
		MinPrice:     cloneFloat(f.MinPrice),
		MaxPrice:     cloneFloat(f.MaxPrice),
		Bedrooms:     cloneInt(f.Bedrooms),
		Bathrooms:    cloneInt(f.Bathrooms),
		MinArea:      cloneFloat(f.MinArea),
		MaxArea:      cloneFloat(f.MaxArea),
		SortBy:       cloneString(f.SortBy),
		SortOrder:    cloneString(f.SortOrder),
	}
	if len(f.Amenities) > 0 {
		out.Amenities = append([]string(nil), f.Amenities...)
	}
	return out
}

// Warnings lists inconsistencies that are legal but will likely return
// nothing, such as a minimum price above the maximum.
func (f Filters) Warnings() []string {
	var w []string
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		w = append(w, fmt.Sprintf("min_price (%g) is greater than max_price (%g)", *f.MinPrice, *f.MaxPrice))
	}
	if f.MinArea != nil && f.MaxArea != nil && *f.MinArea > *f.MaxArea {
		w = append(w, fmt.Sprintf("min_area (%g) is greater than max_area (%g)", *f.MinArea, *f.MaxArea))
	}
	return w
}

// NormalizeAmenities trims, lower-cases and de-duplicates amenity names.
// An empty result is returned as nil so that "no amenities" stays unset.
func NormalizeAmenities(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, a := range in {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Sorting returns the effective sort field and order, defaulting to
// price descending.
func (f Filters) Sorting() (by, order string) {
	by, order = SortByPrice, SortDesc
	if f.SortBy != nil && (*f.SortBy == SortByPrice || *f.SortBy == SortByArea) {
		by = *f.SortBy
	}
	if f.SortOrder != nil && (*f.SortOrder == SortAsc || *f.SortOrder == SortDesc) {
		order = *f.SortOrder
	}
	return by, order
}

// Ptr returns a pointer to v. Handy for building filters in code and tests.
func Ptr[T any](v T) *T {
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
