package listing

import "slices"

// Merge applies a patch to existing filters and returns the result. The
// existing value is never mutated.
//
// Precedence per field:
//
//	city, property_type, sort_by, sort_order      patch value wins when set
//	min_price, max_price, min_area, max_area      patch value wins when set
//	bedrooms, bathrooms                           patch value wins when set
//	amenities                                     patch list replaces when non-empty
//	any field named in Clear                      unset, applied after Set
//
// Merge(f, Patch{}) is always equal to f.
func Merge(existing Filters, p Patch) Filters {
	out := existing.Clone()
	set := p.Set.Clone()

	if set.City != nil {
		out.City = set.City
	}
	if set.PropertyType != nil {
		out.PropertyType = set.PropertyType
	}
	if set.MinPrice != nil {
		out.MinPrice = set.MinPrice
	}
	if set.MaxPrice != nil {
		out.MaxPrice = set.MaxPrice
	}
	if set.Bedrooms != nil {
		out.Bedrooms = set.Bedrooms
	}
	if set.Bathrooms != nil {
		out.Bathrooms = set.Bathrooms
	}
	if set.MinArea != nil {
		out.MinArea = set.MinArea
	}
	if set.MaxArea != nil {
		out.MaxArea = set.MaxArea
	}
	if amenities := NormalizeAmenities(set.Amenities); len(amenities) > 0 {
		out.Amenities = amenities
	}
	if set.SortBy != nil {
		out.SortBy = set.SortBy
	}
	if set.SortOrder != nil {
		out.SortOrder = set.SortOrder
	}

	for _, name := range p.Clear {
		out.clear(name)
	}
	return out
}

// Diff returns the smallest patch that turns before into after.
func Diff(before, after Filters) Patch {
	var p Patch

	if !eqPtr(before.City, after.City) {
		p.setOrClear(FieldCity, after.City == nil, func() { p.Set.City = cloneString(after.City) })
	}
	if !eqPtr(before.PropertyType, after.PropertyType) {
		p.setOrClear(FieldPropertyType, after.PropertyType == nil, func() { p.Set.PropertyType = cloneString(after.PropertyType) })
	}
	if !eqPtr(before.MinPrice, after.MinPrice) {
		p.setOrClear(FieldMinPrice, after.MinPrice == nil, func() { p.Set.MinPrice = cloneFloat(after.MinPrice) })
	}
	if !eqPtr(before.MaxPrice, after.MaxPrice) {
		p.setOrClear(FieldMaxPrice, after.MaxPrice == nil, func() { p.Set.MaxPrice = cloneFloat(after.MaxPrice) })
	}
	if !eqPtr(before.Bedrooms, after.Bedrooms) {
		p.setOrClear(FieldBedrooms, after.Bedrooms == nil, func() { p.Set.Bedrooms = cloneInt(after.Bedrooms) })
	}
	if !eqPtr(before.Bathrooms, after.Bathrooms) {
		p.setOrClear(FieldBathrooms, after.Bathrooms == nil, func() { p.Set.Bathrooms = cloneInt(after.Bathrooms) })
	}
	if !eqPtr(before.MinArea, after.MinArea) {
		p.setOrClear(FieldMinArea, after.MinArea == nil, func() { p.Set.MinArea = cloneFloat(after.MinArea) })
	}
	if !eqPtr(before.MaxArea, after.MaxArea) {
		p.setOrClear(FieldMaxArea, after.MaxArea == nil, func() { p.Set.MaxArea = cloneFloat(after.MaxArea) })
	}
	if !slices.Equal(before.Amenities, after.Amenities) {
		p.setOrClear(FieldAmenities, len(after.Amenities) == 0, func() { p.Set.Amenities = append([]string(nil), after.Amenities...) })
	}
	if !eqPtr(before.SortBy, after.SortBy) {
		p.setOrClear(FieldSortBy, after.SortBy == nil, func() { p.Set.SortBy = cloneString(after.SortBy) })
	}
	if !eqPtr(before.SortOrder, after.SortOrder) {
		p.setOrClear(FieldSortOrder, after.SortOrder == nil, func() { p.Set.SortOrder = cloneString(after.SortOrder) })
	}
	return p
}

// KnownField reports whether name is a Filters field.
func KnownField(name string) bool {
	switch name {
	case FieldCity, FieldPropertyType, FieldMinPrice, FieldMaxPrice, FieldBedrooms, FieldBathrooms,
		FieldMinArea, FieldMaxArea, FieldAmenities, FieldSortBy, FieldSortOrder:
		return true
	}
	return false
}

func (p *Patch) setOrClear(name string, cleared bool, set func()) {
	if cleared {
		p.Clear = append(p.Clear, name)
		return
	}
	set()
}

func (f *Filters) clear(name string) {
	switch name {
	case FieldCity:
		f.City = nil
	case FieldPropertyType:
		f.PropertyType = nil
	case FieldMinPrice:
		f.MinPrice = nil
	case FieldMaxPrice:
		f.MaxPrice = nil
	case FieldBedrooms:
		f.Bedrooms = nil
	case FieldBathrooms:
		f.Bathrooms = nil
	case FieldMinArea:
		f.MinArea = nil
	case FieldMaxArea:
		f.MaxArea = nil
	case FieldAmenities:
		f.Amenities = nil
	case FieldSortBy:
		f.SortBy = nil
	case FieldSortOrder:
		f.SortOrder = nil
	}
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
