package listing

import (
	"fmt"
	"strings"
)

// Dialect adapts the filter query to a SQL backend.
type Dialect struct {
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// HasAmenity renders a predicate that is true when the row's amenity
	// list contains the (already lower-cased) amenity bound at ph.
	HasAmenity func(ph string) string
}

// Query is a rendered WHERE/ORDER BY fragment plus its bind arguments.
type Query struct {
	Where   string
	OrderBy string
	Args    []any
}

// Build renders filters into SQL. Column names follow the properties table
// shared by both backends.
func Build(f Filters, d Dialect) Query {
	var (
		conds []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}

	if f.City != nil {
		conds = append(conds, "lower(city) = lower("+bind(*f.City)+")")
	}
	if f.PropertyType != nil {
		conds = append(conds, "lower(property_type) = lower("+bind(*f.PropertyType)+")")
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= "+bind(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= "+bind(*f.MaxPrice))
	}
	if f.Bedrooms != nil {
		conds = append(conds, "bedrooms = "+bind(*f.Bedrooms))
	}
	if f.Bathrooms != nil {
		conds = append(conds, "bathrooms = "+bind(*f.Bathrooms))
	}
	if f.MinArea != nil {
		conds = append(conds, "area_sqm >= "+bind(*f.MinArea))
	}
	if f.MaxArea != nil {
		conds = append(conds, "area_sqm <= "+bind(*f.MaxArea))
	}
	for _, a := range NormalizeAmenities(f.Amenities) {
		conds = append(conds, d.HasAmenity(bind(a)))
	}

	where := "1 = 1"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}

	by, order := f.Sorting()
	column := "price"
	if by == SortByArea {
		column = "area_sqm"
	}

	return Query{
		Where:   where,
		OrderBy: fmt.Sprintf("%s %s, id ASC", column, strings.ToUpper(order)),
		Args:    args,
	}
}
