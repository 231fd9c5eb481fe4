package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/statq/internal/condition"
	"github.com/roach88/statq/internal/store"
)

// OrderKey is one sort key of a fetch. Exactly one of TimePeriod, Level and
// FilterGroup is set.
type OrderKey struct {
	TimePeriod  bool
	Level       condition.GeographicLevel
	FilterGroup string
	Desc        bool
}

func (k OrderKey) expr() string {
	switch {
	case k.TimePeriod:
		return "time_periods.ordering"
	case k.Level != "":
		return column(k.Level.Columns().Name)
	default:
		return column(k.FilterGroup)
	}
}

// Fetch describes one page of results.
type Fetch struct {
	Where Fragment
	Order []OrderKey

	// Levels and FilterGroups are joined to their dimension tables so each
	// result row carries dimension ids.
	Levels       []condition.GeographicLevel
	FilterGroups []string
	Indicators   []string

	Limit  int
	Offset int
}

// CountSQL returns the statement counting the rows matching where.
func CountSQL(where Fragment) (string, []any) {
	return "SELECT count(*) FROM data" + whereClause(where), where.Params
}

// FetchSQL returns the statement for one page of f.
//
// The page is chosen in a CTE over the fact table alone, then joined back
// for dimension ids. Result columns, in order:
//
//	row_id, time_period, time_identifier, geographic_level,
//	one location id per Levels entry, one filter id per FilterGroups entry,
//	one value per Indicators entry.
//
// MANDATORY: the ORDER BY always ends with the fact row id, so pages are
// deterministic and concatenate to the unpaged result.
func FetchSQL(f Fetch) (string, []any) {
	var b strings.Builder
	params := make([]any, 0, len(f.Where.Params)+2+len(f.Levels)+len(f.FilterGroups))

	needsTimePeriods := false
	b.WriteString("WITH page AS (\n\tSELECT data.\"id\" AS row_id")
	for i, k := range f.Order {
		fmt.Fprintf(&b, ", %s AS sort_%d", k.expr(), i)
		if k.TimePeriod {
			needsTimePeriods = true
		}
	}
	b.WriteString("\n\tFROM data")
	if needsTimePeriods {
		b.WriteString("\n\tLEFT JOIN time_periods ON time_periods.year = data.\"time_period\" AND time_periods.identifier = data.\"time_identifier\"")
	}
	if !f.Where.IsEmpty() {
		b.WriteString("\n\tWHERE ")
		b.WriteString(f.Where.SQL)
		params = append(params, f.Where.Params...)
	}
	b.WriteString("\n\tORDER BY ")
	b.WriteString(orderBy(f.Order, ""))
	b.WriteString("\n\tLIMIT ? OFFSET ?\n)\n")
	params = append(params, f.Limit, f.Offset)

	b.WriteString(`SELECT page.row_id, data."time_period", data."time_identifier", data."geographic_level"`)
	for i := range f.Levels {
		fmt.Fprintf(&b, ", loc_%d.id", i)
	}
	for i := range f.FilterGroups {
		fmt.Fprintf(&b, ", filter_%d.id", i)
	}
	for _, ind := range f.Indicators {
		b.WriteString(", ")
		b.WriteString(column(ind))
	}
	b.WriteString("\nFROM page\nJOIN data ON data.\"id\" = page.row_id")

	for i, level := range f.Levels {
		cols := level.Columns()
		fmt.Fprintf(&b, "\nLEFT JOIN locations AS loc_%d ON loc_%d.level = ? AND loc_%d.code = %s AND loc_%d.name = %s",
			i, i, i, column(cols.Code), i, column(cols.Name))
		params = append(params, string(level))
	}
	for i, group := range f.FilterGroups {
		fmt.Fprintf(&b, "\nLEFT JOIN filters AS filter_%d ON filter_%d.group_name = ? AND filter_%d.label = %s",
			i, i, i, column(group))
		params = append(params, group)
	}

	b.WriteString("\nORDER BY ")
	b.WriteString(orderBy(f.Order, "page."))
	return b.String(), params
}

func orderBy(keys []OrderKey, prefix string) string {
	parts := make([]string, 0, len(keys)+1)
	for i, k := range keys {
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%ssort_%d %s NULLS LAST", prefix, i, dir))
	}
	// Tiebreaker: fact row id, always ascending.
	parts = append(parts, prefix+"row_id ASC")
	return strings.Join(parts, ", ")
}

// Render inlines params into sql for display. The output is for humans
// (explain, debug logs) and is never executed.
func Render(sql string, params []any) string {
	var b strings.Builder
	next := 0
	for _, r := range sql {
		if r == '?' && next < len(params) {
			b.WriteString(literal(params[next]))
			next++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func literal(v any) string {
	switch x := v.(type) {
	case string:
		return store.QuoteLiteral(x)
	default:
		return fmt.Sprint(x)
	}
}

func whereClause(f Fragment) string {
	if f.IsEmpty() {
		return ""
	}
	return " WHERE " + f.SQL
}
