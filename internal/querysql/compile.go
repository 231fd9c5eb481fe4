package querysql

import (
	"sort"
	"strings"

	"github.com/roach88/statq/internal/condition"
	"github.com/roach88/statq/internal/diag"
	"github.com/roach88/statq/internal/store"
)

// Schema is the dataset metadata the compiler needs. *store.Meta
// implements it.
type Schema interface {
	HasLevel(level condition.GeographicLevel) bool
	FilterGroup(name string) (store.FilterGroup, bool)
}

// Dimensions maps request tokens to dimension rows. *resolve.Resolved
// implements it.
type Dimensions interface {
	Filter(token string) (store.FilterRow, bool)
	Location(token string) ([]store.LocationRow, bool)
}

// Fragment is a parameterized SQL predicate. The zero Fragment imposes no
// constraint.
type Fragment struct {
	SQL    string
	Params []any
}

// IsEmpty reports whether the fragment imposes no constraint.
func (f Fragment) IsEmpty() bool {
	return f.SQL == ""
}

var (
	alwaysTrue  = Fragment{SQL: "true"}
	alwaysFalse = Fragment{SQL: "false"}
)

// FacetsRoot is the path condition trees are compiled under.
const FacetsRoot diag.Path = "facets"

// Compiler compiles a condition tree into a predicate over the fact table.
//
// CRITICAL: All values are parameterized (never interpolated). Identifiers
// come only from Schema and the fixed per-level column table.
type Compiler struct {
	schema Schema
	dims   Dimensions
	ledger *diag.Ledger
}

// NewCompiler creates a compiler for one request.
func NewCompiler(schema Schema, dims Dimensions, ledger *diag.Ledger) *Compiler {
	return &Compiler{schema: schema, dims: dims, ledger: ledger}
}

// Compile walks clause depth-first and returns its predicate. Problems are
// recorded in the ledger at the path of the offending comparison; the
// caller must not execute the fragment if the ledger has errors.
func (c *Compiler) Compile(clause condition.Clause) Fragment {
	c.warnEmpty(clause)
	return c.clause(clause, FacetsRoot, false)
}

// clause compiles clause, or its complement when negate is set. Negation is
// pushed down to the leaves with De Morgan's laws.
func (c *Compiler) clause(clause condition.Clause, path diag.Path, negate bool) Fragment {
	switch cl := clause.(type) {
	case nil:
		return Fragment{}
	case condition.And:
		parts := make([]Fragment, 0, len(cl.Clauses))
		for i, sub := range cl.Clauses {
			parts = append(parts, c.clause(sub, path.Field("and").Index(i), negate))
		}
		return join(conjunction(negate), parts)
	case condition.Or:
		parts := make([]Fragment, 0, len(cl.Clauses))
		for i, sub := range cl.Clauses {
			parts = append(parts, c.clause(sub, path.Field("or").Index(i), negate))
		}
		return join(disjunction(negate), parts)
	case condition.Not:
		return c.clause(cl.Clause, path.Field("not"), !negate)
	case condition.Criteria:
		return c.criteria(cl, path, negate)
	default:
		// Unreachable: Clause is sealed.
		return Fragment{}
	}
}

func (c *Compiler) criteria(cr condition.Criteria, path diag.Path, negate bool) Fragment {
	op := conjunction(negate)
	parts := []Fragment{
		apply(cr.Filters, path.Field(string(condition.FacetFilters)), op, negate, c.filters),
		apply(cr.Locations, path.Field(string(condition.FacetLocations)), op, negate, c.locations),
		apply(cr.ParentLocations, path.Field(string(condition.FacetParentLocations)), op, negate, c.parentLocations),
		apply(cr.GeographicLevels, path.Field(string(condition.FacetGeographicLevels)), op, negate, c.geographicLevels),
		apply(cr.TimePeriods, path.Field(string(condition.FacetTimePeriods)), op, negate, c.timePeriods),
	}
	return join(op, parts)
}

// comparisonFunc compiles one comparator block of a facet.
type comparisonFunc[T any] func(path diag.Path, cmp condition.Comparator, values []T, negate bool) Fragment

// apply is the generic applier: it compiles every comparator block of a
// facet and folds the results with op.
func apply[T any](facet condition.Facet[T], path diag.Path, op string, negate bool, compile comparisonFunc[T]) Fragment {
	parts := make([]Fragment, 0, len(facet))
	for _, cmp := range facet {
		cmpPath := path.Field(string(cmp.Comparator))
		if cmp.Comparator.IsList() && len(cmp.Values) == 0 {
			continue
		}
		parts = append(parts, compile(cmpPath, cmp.Comparator, cmp.Values, negate))
	}
	return join(op, parts)
}

// warnEmpty records a warning for every list comparator with no values.
func (c *Compiler) warnEmpty(clause condition.Clause) {
	warn := func(path diag.Path, cmp condition.Comparator, n int) {
		if cmp.IsList() && n == 0 {
			c.ledger.Warn(path, diag.EmptyCriteria())
		}
	}
	condition.Walk(clause, FacetsRoot, condition.Visitor{
		Filters: func(p diag.Path, cmp condition.Comparison[string]) { warn(p, cmp.Comparator, len(cmp.Values)) },
		Locations: func(p diag.Path, cmp condition.Comparison[string]) {
			warn(p, cmp.Comparator, len(cmp.Values))
		},
		ParentLocations: func(p diag.Path, cmp condition.Comparison[string]) {
			warn(p, cmp.Comparator, len(cmp.Values))
		},
		GeographicLevels: func(p diag.Path, cmp condition.Comparison[condition.GeographicLevel]) {
			warn(p, cmp.Comparator, len(cmp.Values))
		},
		TimePeriods: func(p diag.Path, cmp condition.Comparison[condition.TimePeriod]) {
			warn(p, cmp.Comparator, len(cmp.Values))
		},
	})
}

// filters compiles a filter comparison. Matched items are grouped by filter
// group, and one comparison per group is AND-ed together, because each group
// is its own fact table column.
func (c *Compiler) filters(path diag.Path, cmp condition.Comparator, tokens []string, negate bool) Fragment {
	labels := map[string][]string{}
	seen := map[string]bool{}
	var missing []string

	for _, tok := range tokens {
		row, ok := c.dims.Filter(tok)
		if ok {
			_, ok = c.schema.FilterGroup(row.GroupName)
		}
		if !ok {
			missing = append(missing, tok)
			continue
		}
		key := row.GroupName + "\x00" + row.Label
		if !seen[key] {
			seen[key] = true
			labels[row.GroupName] = append(labels[row.GroupName], row.Label)
		}
	}
	if len(missing) > 0 {
		c.ledger.Error(path, diag.NotFound("filters", missing))
	}

	if len(labels) == 0 {
		return negateIf(noMatches(cmp), negate)
	}

	effective := cmp
	if negate && len(labels) == 1 {
		// A single column comparison has an exact inverse.
		effective, negate = cmp.Inverse(), false
	}

	groups := make([]string, 0, len(labels))
	for g := range labels {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	parts := make([]Fragment, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, compare(column(g), effective, stringParams(labels[g])))
	}
	return negateIf(join("AND", parts), negate)
}

// locations compiles a location comparison. Matches are grouped by level;
// each level matches its (code, name) column pair for rows at that level.
// Levels are OR-ed for eq/in and their negations AND-ed for notEq/notIn.
func (c *Compiler) locations(path diag.Path, cmp condition.Comparator, tokens []string, negate bool) Fragment {
	return c.locationPredicate(path, cmp, tokens, negate, levelMatch)
}

// parentLocations compiles an ancestor comparison: rows below a referenced
// location, i.e. at another level but carrying its (code, name) pair.
func (c *Compiler) parentLocations(path diag.Path, cmp condition.Comparator, tokens []string, negate bool) Fragment {
	return c.locationPredicate(path, cmp, tokens, negate, descendantMatch)
}

type levelMatcher func(level condition.GeographicLevel, rows []store.LocationRow) Fragment

func (c *Compiler) locationPredicate(path diag.Path, cmp condition.Comparator, tokens []string, negate bool, match levelMatcher) Fragment {
	byLevel := map[condition.GeographicLevel][]store.LocationRow{}
	seen := map[int64]bool{}
	var missing []string

	for _, tok := range tokens {
		rows, ok := c.dims.Location(tok)
		if !ok {
			missing = append(missing, tok)
			continue
		}
		for _, row := range rows {
			if !seen[row.ID] {
				seen[row.ID] = true
				byLevel[row.Level] = append(byLevel[row.Level], row)
			}
		}
	}
	if len(missing) > 0 {
		c.ledger.Error(path, diag.NotFound("locations", missing))
	}

	if len(byLevel) == 0 {
		return negateIf(noMatches(cmp), negate)
	}

	// Every level predicate is null-safe, so each comparator's inverse is
	// its exact complement.
	if negate {
		cmp = cmp.Inverse()
	}

	levels := make([]condition.GeographicLevel, 0, len(byLevel))
	for level := range byLevel {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Rank() < levels[j].Rank() })

	parts := make([]Fragment, 0, len(levels))
	for _, level := range levels {
		m := match(level, byLevel[level])
		if cmp.IsNegative() {
			m = not(m)
		}
		parts = append(parts, m)
	}

	if cmp.IsNegative() {
		return join("AND", parts)
	}
	return join("OR", parts)
}

func levelMatch(level condition.GeographicLevel, rows []store.LocationRow) Fragment {
	pairs := codeNamePairs(level, rows)
	return Fragment{
		SQL:    "coalesce(" + column("geographic_level") + " = ? AND " + pairs.SQL + ", false)",
		Params: append([]any{level.Label()}, pairs.Params...),
	}
}

func descendantMatch(level condition.GeographicLevel, rows []store.LocationRow) Fragment {
	pairs := codeNamePairs(level, rows)
	return Fragment{
		SQL:    "coalesce(" + pairs.SQL + ", false) AND " + column("geographic_level") + " != ?",
		Params: append(pairs.Params, level.Label()),
	}
}

// codeNamePairs matches the level's code and name columns against rows.
func codeNamePairs(level condition.GeographicLevel, rows []store.LocationRow) Fragment {
	cols := level.Columns()
	one := "(" + column(cols.Code) + " = ? AND " + column(cols.Name) + " = ?)"

	sqls := make([]string, len(rows))
	params := make([]any, 0, 2*len(rows))
	for i, row := range rows {
		sqls[i] = one
		params = append(params, row.Code, row.Name)
	}
	if len(sqls) == 1 {
		return Fragment{SQL: sqls[0], Params: params}
	}
	return Fragment{SQL: "(" + strings.Join(sqls, " OR ") + ")", Params: params}
}

// geographicLevels compiles a level comparison against the on-disk label.
func (c *Compiler) geographicLevels(path diag.Path, cmp condition.Comparator, values []condition.GeographicLevel, negate bool) Fragment {
	var labels []string
	var missing []string
	seen := map[condition.GeographicLevel]bool{}

	for _, level := range values {
		if !c.schema.HasLevel(level) {
			missing = append(missing, string(level))
			continue
		}
		if !seen[level] {
			seen[level] = true
			labels = append(labels, level.Label())
		}
	}
	if len(missing) > 0 {
		c.ledger.Error(path, diag.NotFound("geographic levels", missing))
	}

	if len(labels) == 0 {
		return negateIf(noMatches(cmp), negate)
	}
	if negate {
		cmp = cmp.Inverse()
	}
	return compare(column("geographic_level"), cmp, stringParams(labels))
}

// timePeriods compiles a time period comparison over (time_period,
// time_identifier). Range comparators compare years within the same
// identifier.
func (c *Compiler) timePeriods(_ diag.Path, cmp condition.Comparator, values []condition.TimePeriod, negate bool) Fragment {
	switch cmp {
	case condition.Eq, condition.NotEq, condition.In, condition.NotIn:
		if negate {
			cmp, negate = cmp.Inverse(), false
		}
	}

	var f Fragment
	switch cmp {
	case condition.Eq, condition.In:
		f = timePeriodTuples(values)
	case condition.NotEq, condition.NotIn:
		f = not(timePeriodTuples(values))
	default:
		tp := values[0]
		identifier, _ := condition.TimePeriodIdentifier(tp.Code)
		f = Fragment{
			SQL:    "(" + column("time_identifier") + " = ? AND " + column("time_period") + " " + rangeOperators[cmp] + " ?)",
			Params: []any{identifier, tp.Year},
		}
	}
	return negateIf(f, negate)
}

var rangeOperators = map[condition.Comparator]string{
	condition.Gte: ">=",
	condition.Gt:  ">",
	condition.Lte: "<=",
	condition.Lt:  "<",
}

func timePeriodTuples(values []condition.TimePeriod) Fragment {
	one := "(" + column("time_period") + " = ? AND " + column("time_identifier") + " = ?)"

	sqls := make([]string, len(values))
	params := make([]any, 0, 2*len(values))
	for i, tp := range values {
		identifier, _ := condition.TimePeriodIdentifier(tp.Code)
		sqls[i] = one
		params = append(params, tp.Year, identifier)
	}
	if len(sqls) == 1 {
		return Fragment{SQL: sqls[0], Params: params}
	}
	return Fragment{SQL: "(" + strings.Join(sqls, " OR ") + ")", Params: params}
}

// compare emits a single-column comparison.
func compare(col string, cmp condition.Comparator, params []any) Fragment {
	switch cmp {
	case condition.Eq:
		return Fragment{SQL: col + " = ?", Params: params[:1]}
	case condition.NotEq:
		return Fragment{SQL: col + " != ?", Params: params[:1]}
	case condition.NotIn:
		return Fragment{SQL: col + " NOT IN (" + store.Placeholders(len(params)) + ")", Params: params}
	default:
		return Fragment{SQL: col + " IN (" + store.Placeholders(len(params)) + ")", Params: params}
	}
}

// noMatches is the predicate for a comparison none of whose values
// resolved: eq can match nothing, notEq excludes nothing, and lists impose
// no constraint.
func noMatches(cmp condition.Comparator) Fragment {
	switch cmp {
	case condition.Eq:
		return alwaysFalse
	case condition.NotEq:
		return alwaysTrue
	default:
		return Fragment{}
	}
}

func conjunction(negate bool) string {
	if negate {
		return "OR"
	}
	return "AND"
}

func disjunction(negate bool) string {
	if negate {
		return "AND"
	}
	return "OR"
}

// join combines non-empty fragments with op, parenthesizing each when
// there is more than one.
func join(op string, parts []Fragment) Fragment {
	var kept []Fragment
	for _, p := range parts {
		if !p.IsEmpty() {
			kept = append(kept, p)
		}
	}

	switch len(kept) {
	case 0:
		return Fragment{}
	case 1:
		return kept[0]
	}

	sqls := make([]string, len(kept))
	var params []any
	for i, p := range kept {
		sqls[i] = "(" + p.SQL + ")"
		params = append(params, p.Params...)
	}
	return Fragment{SQL: strings.Join(sqls, " "+op+" "), Params: params}
}

func not(f Fragment) Fragment {
	switch f.SQL {
	case "":
		return f
	case alwaysTrue.SQL:
		return alwaysFalse
	case alwaysFalse.SQL:
		return alwaysTrue
	}
	return Fragment{SQL: "NOT (" + f.SQL + ")", Params: f.Params}
}

func negateIf(f Fragment, negate bool) Fragment {
	if negate {
		return not(f)
	}
	return f
}

// column qualifies a fact table column.
func column(name string) string {
	return "data." + store.QuoteIdent(name)
}

func stringParams(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
