package condition

import "github.com/roach88/statq/internal/diag"

// Visitor receives every comparison of a condition tree together with the
// path it was parsed from. Nil hooks are skipped.
type Visitor struct {
	Filters          func(path diag.Path, c Comparison[string])
	Locations        func(path diag.Path, c Comparison[string])
	ParentLocations  func(path diag.Path, c Comparison[string])
	GeographicLevels func(path diag.Path, c Comparison[GeographicLevel])
	TimePeriods      func(path diag.Path, c Comparison[TimePeriod])
}

// Walk visits the comparisons of clause depth-first, in document order.
// The path of each comparison is root extended with the same members and
// indexes the JSON request used, e.g. facets.or[1].filters.in.
func Walk(clause Clause, root diag.Path, v Visitor) {
	switch c := clause.(type) {
	case nil:
		return
	case And:
		for i, sub := range c.Clauses {
			Walk(sub, root.Field("and").Index(i), v)
		}
	case Or:
		for i, sub := range c.Clauses {
			Walk(sub, root.Field("or").Index(i), v)
		}
	case Not:
		Walk(c.Clause, root.Field("not"), v)
	case Criteria:
		visitFacet(c.Filters, root.Field(string(FacetFilters)), v.Filters)
		visitFacet(c.Locations, root.Field(string(FacetLocations)), v.Locations)
		visitFacet(c.ParentLocations, root.Field(string(FacetParentLocations)), v.ParentLocations)
		visitFacet(c.GeographicLevels, root.Field(string(FacetGeographicLevels)), v.GeographicLevels)
		visitFacet(c.TimePeriods, root.Field(string(FacetTimePeriods)), v.TimePeriods)
	}
}

func visitFacet[T any](f Facet[T], path diag.Path, hook func(diag.Path, Comparison[T])) {
	if hook == nil {
		return
	}
	for _, cmp := range f {
		hook(path.Field(string(cmp.Comparator)), cmp)
	}
}
