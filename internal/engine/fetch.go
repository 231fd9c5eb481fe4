package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/statq/internal/condition"
	"github.com/roach88/statq/internal/querysql"
	"github.com/roach88/statq/internal/results"
	"github.com/roach88/statq/internal/store"
)

// fetchRows runs the page query and scans rows in the column order
// documented on querysql.FetchSQL.
func fetchRows(ctx context.Context, st *store.Store, f querysql.Fetch) ([]results.Raw, error) {
	query, args := querysql.FetchSQL(f)
	rows, err := st.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer rows.Close()

	var (
		rowID      int64
		year       int
		identifier string
		levelLabel string
		locIDs     = make([]sql.NullInt64, len(f.Levels))
		filterIDs  = make([]sql.NullInt64, len(f.FilterGroups))
		values     = make([]sql.NullString, len(f.Indicators))
	)
	dest := []any{&rowID, &year, &identifier, &levelLabel}
	for i := range locIDs {
		dest = append(dest, &locIDs[i])
	}
	for i := range filterIDs {
		dest = append(dest, &filterIDs[i])
	}
	for i := range values {
		dest = append(dest, &values[i])
	}

	var out []results.Raw
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan fetch row: %w", err)
		}

		code, ok := condition.TimePeriodCode(identifier)
		if !ok {
			return nil, fmt.Errorf("row %d: unknown time identifier %q", rowID, identifier)
		}
		level, ok := condition.GeographicLevelFromLabel(levelLabel)
		if !ok {
			return nil, fmt.Errorf("row %d: unknown geographic level %q", rowID, levelLabel)
		}

		raw := results.Raw{
			RowID:      rowID,
			TimePeriod: condition.TimePeriod{Year: year, Code: code},
			Level:      level,
			Locations:  make(map[condition.GeographicLevel]int64),
			Filters:    make(map[string]int64),
			Values:     make(map[string]string),
		}
		for i, id := range locIDs {
			if id.Valid {
				raw.Locations[f.Levels[i]] = id.Int64
			}
		}
		for i, id := range filterIDs {
			if id.Valid {
				raw.Filters[f.FilterGroups[i]] = id.Int64
			}
		}
		for i, v := range values {
			if v.Valid {
				raw.Values[f.Indicators[i]] = v.String
			}
		}
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fetch: %w", err)
	}
	return out, nil
}
