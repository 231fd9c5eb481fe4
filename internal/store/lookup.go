package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/statq/internal/condition"
)

// FiltersByID returns the filter rows for ids, keyed by id. Unknown ids are
// absent from the map.
func (s *Store) FiltersByID(ctx context.Context, ids []int64) (map[int64]FilterRow, error) {
	out := make(map[int64]FilterRow, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `
		SELECT id, label, group_name, group_label, is_aggregate
		FROM filters
		WHERE id IN (` + Placeholders(len(ids)) + `)
		ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query filters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, err
		}
		out[f.ID] = f
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filters: %w", err)
	}
	return out, nil
}

// AllFilters returns every filter row ordered by group then id.
func (s *Store) AllFilters(ctx context.Context) ([]FilterRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, group_name, group_label, is_aggregate
		FROM filters
		ORDER BY group_name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query filters: %w", err)
	}
	defer rows.Close()

	var out []FilterRow
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filters: %w", err)
	}
	return out, nil
}

// LocationsByIDOrCode returns every location whose id is in ids or whose
// code is in codes, ordered by id. One code may match several rows, one per
// level it appears at.
func (s *Store) LocationsByIDOrCode(ctx context.Context, ids []int64, codes []string) ([]LocationRow, error) {
	if len(ids) == 0 && len(codes) == 0 {
		return nil, nil
	}

	var where []string
	var args []any
	if len(ids) > 0 {
		where = append(where, "id IN ("+Placeholders(len(ids))+")")
		args = append(args, int64Args(ids)...)
	}
	if len(codes) > 0 {
		where = append(where, "code IN ("+Placeholders(len(codes))+")")
		for _, c := range codes {
			args = append(args, c)
		}
	}

	query := `
		SELECT id, level, code, name
		FROM locations
		WHERE ` + strings.Join(where, " OR ") + `
		ORDER BY id ASC`

	return s.queryLocations(ctx, query, args...)
}

// AllLocations returns every location at a level the dataset has, ordered
// by id.
func (s *Store) AllLocations(ctx context.Context) ([]LocationRow, error) {
	return s.queryLocations(ctx, `
		SELECT id, level, code, name
		FROM locations
		ORDER BY id ASC`)
}

func (s *Store) queryLocations(ctx context.Context, query string, args ...any) ([]LocationRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var out []LocationRow
	for rows.Next() {
		var loc LocationRow
		var level string
		var code, name sql.NullString
		if err := rows.Scan(&loc.ID, &level, &code, &name); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		parsed, ok := condition.ParseGeographicLevel(level)
		if !ok || !s.meta.HasLevel(parsed) {
			continue
		}
		loc.Level = parsed
		loc.Code = code.String
		loc.Name = name.String
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return out, nil
}

// CountRows returns the number of fact rows.
func (s *Store) CountRows(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM data`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count data: %w", err)
	}
	return n, nil
}

func scanFilter(rows *sql.Rows) (FilterRow, error) {
	var f FilterRow
	var groupLabel sql.NullString
	var aggregate sql.NullBool
	if err := rows.Scan(&f.ID, &f.Label, &f.GroupName, &groupLabel, &aggregate); err != nil {
		return FilterRow{}, fmt.Errorf("scan filter: %w", err)
	}
	f.GroupLabel = groupLabel.String
	if f.GroupLabel == "" {
		f.GroupLabel = f.GroupName
	}
	f.IsAggregate = aggregate.Bool
	return f, nil
}

// Placeholders returns n comma-separated bind markers.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
