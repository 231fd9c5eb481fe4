package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statq/internal/condition"
)

// Location is a locations dimension row. Parents lists ancestor location
// ids whose columns are also filled on fact rows at this location.
type Location struct {
	ID      int64
	Level   condition.GeographicLevel
	Code    string
	Name    string
	Parents []int64
}

// Filter is a filters dimension row.
type Filter struct {
	ID          int64
	Label       string
	GroupName   string
	GroupLabel  string
	IsAggregate bool
}

// Indicator is an indicators dimension row.
type Indicator struct {
	ID            int64
	Name          string
	Label         string
	Unit          string
	DecimalPlaces int
}

// TimePeriod is a time_periods dimension row.
type TimePeriod struct {
	ID       int64
	Year     int
	Code     string
	Ordering int
}

// Row is one fact row. Filters maps group name to item label; Values maps
// indicator name to value.
type Row struct {
	ID         int64
	TimePeriod condition.TimePeriod
	Location   int64
	Filters    map[string]string
	Values     map[string]string
}

// Dataset is an in-memory description of the five dataset tables.
type Dataset struct {
	Locations   []Location
	Filters     []Filter
	Indicators  []Indicator
	TimePeriods []TimePeriod
	Rows        []Row
}

// WriteDataset writes ds as parquet files into dir using DuckDB.
func WriteDataset(t testing.TB, dir string, ds Dataset) {
	t.Helper()
	require.NoError(t, writeDataset(context.Background(), dir, ds))
}

func writeDataset(ctx context.Context, dir string, ds Dataset) error {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	defer db.Close()

	// A single connection keeps the tables visible to every statement.
	db.SetMaxOpenConns(1)

	steps := []func(context.Context, *sql.DB, Dataset) error{
		writeLocations,
		writeFilters,
		writeIndicators,
		writeTimePeriods,
		writeFacts,
	}
	for _, step := range steps {
		if err := step(ctx, db, ds); err != nil {
			return err
		}
	}

	for _, table := range []string{"data", "locations", "filters", "indicators", "time_periods"} {
		path := filepath.Join(dir, table+".parquet")
		stmt := fmt.Sprintf("COPY %s TO '%s' (FORMAT PARQUET)", table, strings.ReplaceAll(path, "'", "''"))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("copy %s: %w", table, err)
		}
	}
	return nil
}

func writeLocations(ctx context.Context, db *sql.DB, ds Dataset) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE locations (id BIGINT, level VARCHAR, code VARCHAR, name VARCHAR)`); err != nil {
		return fmt.Errorf("create locations: %w", err)
	}
	for _, l := range ds.Locations {
		if _, err := db.ExecContext(ctx, `INSERT INTO locations VALUES (?, ?, ?, ?)`,
			l.ID, string(l.Level), l.Code, l.Name); err != nil {
			return fmt.Errorf("insert location %d: %w", l.ID, err)
		}
	}
	return nil
}

func writeFilters(ctx context.Context, db *sql.DB, ds Dataset) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE filters (
		id BIGINT, label VARCHAR, group_name VARCHAR, group_label VARCHAR, is_aggregate BOOLEAN)`); err != nil {
		return fmt.Errorf("create filters: %w", err)
	}
	for _, f := range ds.Filters {
		if _, err := db.ExecContext(ctx, `INSERT INTO filters VALUES (?, ?, ?, ?, ?)`,
			f.ID, f.Label, f.GroupName, f.GroupLabel, f.IsAggregate); err != nil {
			return fmt.Errorf("insert filter %d: %w", f.ID, err)
		}
	}
	return nil
}

func writeIndicators(ctx context.Context, db *sql.DB, ds Dataset) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE indicators (
		id BIGINT, name VARCHAR, label VARCHAR, unit VARCHAR, decimal_places INTEGER)`); err != nil {
		return fmt.Errorf("create indicators: %w", err)
	}
	for _, ind := range ds.Indicators {
		if _, err := db.ExecContext(ctx, `INSERT INTO indicators VALUES (?, ?, ?, ?, ?)`,
			ind.ID, ind.Name, ind.Label, ind.Unit, int32(ind.DecimalPlaces)); err != nil {
			return fmt.Errorf("insert indicator %d: %w", ind.ID, err)
		}
	}
	return nil
}

func writeTimePeriods(ctx context.Context, db *sql.DB, ds Dataset) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE time_periods (
		id BIGINT, year INTEGER, identifier VARCHAR, ordering INTEGER)`); err != nil {
		return fmt.Errorf("create time_periods: %w", err)
	}
	for _, tp := range ds.TimePeriods {
		identifier, ok := condition.TimePeriodIdentifier(tp.Code)
		if !ok {
			return fmt.Errorf("time period %d: unknown code %q", tp.ID, tp.Code)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO time_periods VALUES (?, ?, ?, ?)`,
			tp.ID, int32(tp.Year), identifier, int32(tp.Ordering)); err != nil {
			return fmt.Errorf("insert time period %d: %w", tp.ID, err)
		}
	}
	return nil
}

func writeFacts(ctx context.Context, db *sql.DB, ds Dataset) error {
	levels := datasetLevels(ds)
	groups := datasetGroups(ds)

	cols := []string{"id BIGINT", "time_period INTEGER", "time_identifier VARCHAR", "geographic_level VARCHAR"}
	for _, level := range levels {
		lc := level.Columns()
		cols = append(cols, lc.Code+" VARCHAR", lc.Name+" VARCHAR")
	}
	for _, g := range groups {
		cols = append(cols, quote(g)+" VARCHAR")
	}
	for _, ind := range ds.Indicators {
		cols = append(cols, quote(ind.Name)+" VARCHAR")
	}

	if _, err := db.ExecContext(ctx, "CREATE TABLE data ("+strings.Join(cols, ", ")+")"); err != nil {
		return fmt.Errorf("create data: %w", err)
	}

	locations := make(map[int64]Location, len(ds.Locations))
	for _, l := range ds.Locations {
		locations[l.ID] = l
	}

	insert := "INSERT INTO data VALUES (" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	for _, row := range ds.Rows {
		loc, ok := locations[row.Location]
		if !ok {
			return fmt.Errorf("row %d: unknown location %d", row.ID, row.Location)
		}
		identifier, ok := condition.TimePeriodIdentifier(row.TimePeriod.Code)
		if !ok {
			return fmt.Errorf("row %d: unknown time period code %q", row.ID, row.TimePeriod.Code)
		}

		filled := map[condition.GeographicLevel]Location{loc.Level: loc}
		for _, parentID := range loc.Parents {
			parent := locations[parentID]
			filled[parent.Level] = parent
		}

		args := []any{row.ID, int32(row.TimePeriod.Year), identifier, loc.Level.Label()}
		for _, level := range levels {
			if l, ok := filled[level]; ok {
				args = append(args, l.Code, l.Name)
			} else {
				args = append(args, nil, nil)
			}
		}
		for _, g := range groups {
			args = append(args, nullable(row.Filters[g]))
		}
		for _, ind := range ds.Indicators {
			args = append(args, nullable(row.Values[ind.Name]))
		}

		if _, err := db.ExecContext(ctx, insert, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", row.ID, err)
		}
	}
	return nil
}

func datasetLevels(ds Dataset) []condition.GeographicLevel {
	seen := map[condition.GeographicLevel]bool{}
	var levels []condition.GeographicLevel
	for _, l := range ds.Locations {
		if !seen[l.Level] {
			seen[l.Level] = true
			levels = append(levels, l.Level)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Rank() < levels[j].Rank() })
	return levels
}

func datasetGroups(ds Dataset) []string {
	seen := map[string]bool{}
	var groups []string
	for _, f := range ds.Filters {
		if !seen[f.GroupName] {
			seen[f.GroupName] = true
			groups = append(groups, f.GroupName)
		}
	}
	sort.Strings(groups)
	return groups
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
