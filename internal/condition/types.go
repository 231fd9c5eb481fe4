package condition

// Clause is a node of the condition tree.
//
// This is a sealed interface - only And, Or, Not and Criteria implement it.
type Clause interface {
	clauseNode() // Marker method - seals interface to this package
}

// And matches rows matched by every sub-clause.
// An empty And imposes no constraint.
type And struct {
	Clauses []Clause
}

func (And) clauseNode() {}

// Or matches rows matched by at least one sub-clause.
// An empty Or imposes no constraint.
type Or struct {
	Clauses []Clause
}

func (Or) clauseNode() {}

// Not matches rows not matched by its sub-clause.
// A Not over an unconstrained sub-clause stays unconstrained.
type Not struct {
	Clause Clause
}

func (Not) clauseNode() {}

// Criteria is the leaf clause. Facets are AND-ed together; a nil facet
// imposes no constraint.
type Criteria struct {
	Filters          Facet[string]
	Locations        Facet[string]
	ParentLocations  Facet[string]
	GeographicLevels Facet[GeographicLevel]
	TimePeriods      Facet[TimePeriod]
}

func (Criteria) clauseNode() {}

// IsEmpty reports whether the criteria name no facet at all.
func (c Criteria) IsEmpty() bool {
	return c.Filters == nil &&
		c.Locations == nil &&
		c.ParentLocations == nil &&
		c.GeographicLevels == nil &&
		c.TimePeriods == nil
}

// FacetKind names a criteria facet. The value is the JSON member name.
type FacetKind string

const (
	FacetFilters          FacetKind = "filters"
	FacetLocations        FacetKind = "locations"
	FacetParentLocations  FacetKind = "parentLocations"
	FacetGeographicLevels FacetKind = "geographicLevels"
	FacetTimePeriods      FacetKind = "timePeriods"
)

// Comparator is a comparison operator inside a facet.
type Comparator string

const (
	Eq    Comparator = "eq"
	NotEq Comparator = "notEq"
	In    Comparator = "in"
	NotIn Comparator = "notIn"
	Gte   Comparator = "gte"
	Gt    Comparator = "gt"
	Lte   Comparator = "lte"
	Lt    Comparator = "lt"
)

// comparatorOrder is the canonical order comparisons are kept in, so a
// facet compiles identically regardless of JSON member order.
var comparatorOrder = []Comparator{Eq, NotEq, In, NotIn, Gte, Gt, Lte, Lt}

// IsList reports whether the comparator takes a list of values.
func (c Comparator) IsList() bool {
	return c == In || c == NotIn
}

// IsNegative reports whether the comparator excludes the values it names.
func (c Comparator) IsNegative() bool {
	return c == NotEq || c == NotIn
}

// Inverse returns the comparator whose match set is the complement of c's,
// when compared against a single non-null column.
func (c Comparator) Inverse() Comparator {
	switch c {
	case Eq:
		return NotEq
	case NotEq:
		return Eq
	case In:
		return NotIn
	case NotIn:
		return In
	case Gte:
		return Lt
	case Gt:
		return Lte
	case Lte:
		return Gt
	case Lt:
		return Gte
	default:
		return c
	}
}

// Comparison is one comparator block of a facet. Single-valued comparators
// (eq, notEq, gte, ...) carry exactly one value.
type Comparison[T any] struct {
	Comparator Comparator
	Values     []T
}

// Facet is the ordered list of comparisons for one facet kind.
type Facet[T any] []Comparison[T]

// SortOrder is the direction of a sort key.
type SortOrder string

const (
	Asc  SortOrder = "Asc"
	Desc SortOrder = "Desc"
)

// Sort names a field to order results by.
type Sort struct {
	Name  string
	Order SortOrder
}

// SortTimePeriod is the sort name for time period ordering.
const SortTimePeriod = "TimePeriod"

// Query is a parsed dataset query.
type Query struct {
	Facets     Clause
	Indicators []string
	Sort       []Sort
}
