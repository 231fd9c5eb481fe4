package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/roach88/statq/internal/condition"
)

// FilterGroup is a filter category. Name is also the fact table column
// holding the item label.
type FilterGroup struct {
	Name  string
	Label string
}

// FilterRow is one row of the filters dimension.
type FilterRow struct {
	ID          int64
	Label       string
	GroupName   string
	GroupLabel  string
	IsAggregate bool
}

// LocationRow is one row of the locations dimension.
type LocationRow struct {
	ID    int64
	Level condition.GeographicLevel
	Code  string
	Name  string
}

// IndicatorRow is one row of the indicators dimension. Name is also the
// fact table column holding the value.
type IndicatorRow struct {
	ID            int64
	Name          string
	Label         string
	Unit          string
	DecimalPlaces *int
}

// TimePeriodRow is one row of the time_periods dimension.
type TimePeriodRow struct {
	ID         int64
	Year       int
	Identifier string
	Ordering   int
}

// Meta describes what a dataset contains. It is immutable after Open.
type Meta struct {
	// Columns of the fact table, in table order.
	Columns []string
	// GeographicLevels present in both locations and the fact table,
	// coarsest first.
	GeographicLevels []condition.GeographicLevel
	// FilterGroups present in both filters and the fact table, by name.
	FilterGroups []FilterGroup
	// Indicators present in both indicators and the fact table, by id.
	Indicators []IndicatorRow
	// TimePeriods by ordering.
	TimePeriods []TimePeriodRow

	columns      map[string]bool
	levels       map[condition.GeographicLevel]bool
	groups       map[string]FilterGroup
	indicatorIDs map[int64]IndicatorRow
	indicatorsBy map[string]IndicatorRow
}

// HasColumn reports whether the fact table has the named column.
func (m *Meta) HasColumn(name string) bool {
	return m.columns[name]
}

// HasLevel reports whether the dataset has rows at level.
func (m *Meta) HasLevel(level condition.GeographicLevel) bool {
	return m.levels[level]
}

// FilterGroup looks up a filter group by name.
func (m *Meta) FilterGroup(name string) (FilterGroup, bool) {
	g, ok := m.groups[name]
	return g, ok
}

// IndicatorByID looks up an indicator by surrogate id.
func (m *Meta) IndicatorByID(id int64) (IndicatorRow, bool) {
	ind, ok := m.indicatorIDs[id]
	return ind, ok
}

// IndicatorByName looks up an indicator by column name.
func (m *Meta) IndicatorByName(name string) (IndicatorRow, bool) {
	ind, ok := m.indicatorsBy[name]
	return ind, ok
}

// GeographicLevelNames returns the public names of the dataset's levels.
func (m *Meta) GeographicLevelNames() []string {
	out := make([]string, len(m.GeographicLevels))
	for i, level := range m.GeographicLevels {
		out[i] = string(level)
	}
	return out
}

// FilterGroupNames returns the names of the dataset's filter groups.
func (m *Meta) FilterGroupNames() []string {
	out := make([]string, len(m.FilterGroups))
	for i, g := range m.FilterGroups {
		out[i] = g.Name
	}
	return out
}

func (s *Store) introspect(ctx context.Context) (*Meta, error) {
	m := &Meta{
		columns:      make(map[string]bool),
		levels:       make(map[condition.GeographicLevel]bool),
		groups:       make(map[string]FilterGroup),
		indicatorIDs: make(map[int64]IndicatorRow),
		indicatorsBy: make(map[string]IndicatorRow),
	}

	columns, err := s.describe(ctx, TableData)
	if err != nil {
		return nil, err
	}
	m.Columns = columns
	for _, c := range columns {
		m.columns[c] = true
	}

	if err := s.introspectLevels(ctx, m); err != nil {
		return nil, err
	}
	if err := s.introspectFilterGroups(ctx, m); err != nil {
		return nil, err
	}
	if err := s.introspectIndicators(ctx, m); err != nil {
		return nil, err
	}
	if err := s.introspectTimePeriods(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

// describe returns the column names of table. DESCRIBE yields several
// columns; the first is the column name.
func (s *Store) describe(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "DESCRIBE "+QuoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("describe %s columns: %w", table, err)
	}

	var names []string
	for rows.Next() {
		dest := make([]any, len(cols))
		var name string
		dest[0] = &name
		for i := 1; i < len(dest); i++ {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan describe %s: %w", table, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate describe %s: %w", table, err)
	}
	return names, nil
}

func (s *Store) introspectLevels(ctx context.Context, m *Meta) error {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT level FROM locations WHERE level IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("query levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan level: %w", err)
		}
		level, ok := condition.ParseGeographicLevel(name)
		if !ok {
			continue
		}
		cols := level.Columns()
		if m.columns[cols.Code] && m.columns[cols.Name] {
			m.levels[level] = true
			m.GeographicLevels = append(m.GeographicLevels, level)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate levels: %w", err)
	}

	sort.Slice(m.GeographicLevels, func(i, j int) bool {
		return m.GeographicLevels[i].Rank() < m.GeographicLevels[j].Rank()
	})
	return nil
}

func (s *Store) introspectFilterGroups(ctx context.Context, m *Meta) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_name, min(group_label)
		FROM filters
		GROUP BY group_name
		ORDER BY group_name ASC
	`)
	if err != nil {
		return fmt.Errorf("query filter groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var g FilterGroup
		var label sql.NullString
		if err := rows.Scan(&g.Name, &label); err != nil {
			return fmt.Errorf("scan filter group: %w", err)
		}
		g.Label = label.String
		if g.Label == "" {
			g.Label = g.Name
		}
		if m.columns[g.Name] {
			m.groups[g.Name] = g
			m.FilterGroups = append(m.FilterGroups, g)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate filter groups: %w", err)
	}
	return nil
}

func (s *Store) introspectIndicators(ctx context.Context, m *Meta) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, label, unit, decimal_places
		FROM indicators
		ORDER BY id ASC
	`)
	if err != nil {
		return fmt.Errorf("query indicators: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ind IndicatorRow
		var label, unit sql.NullString
		var dp sql.NullInt64
		if err := rows.Scan(&ind.ID, &ind.Name, &label, &unit, &dp); err != nil {
			return fmt.Errorf("scan indicator: %w", err)
		}
		ind.Label = label.String
		ind.Unit = unit.String
		if dp.Valid {
			n := int(dp.Int64)
			ind.DecimalPlaces = &n
		}
		if m.columns[ind.Name] {
			m.indicatorIDs[ind.ID] = ind
			m.indicatorsBy[ind.Name] = ind
			m.Indicators = append(m.Indicators, ind)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate indicators: %w", err)
	}
	return nil
}

func (s *Store) introspectTimePeriods(ctx context.Context, m *Meta) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, year, identifier, ordering
		FROM time_periods
		ORDER BY ordering ASC, id ASC
	`)
	if err != nil {
		return fmt.Errorf("query time periods: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tp TimePeriodRow
		if err := rows.Scan(&tp.ID, &tp.Year, &tp.Identifier, &tp.Ordering); err != nil {
			return fmt.Errorf("scan time period: %w", err)
		}
		m.TimePeriods = append(m.TimePeriods, tp)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate time periods: %w", err)
	}
	return nil
}
