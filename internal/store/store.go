package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// Table names, which are also the parquet file stems.
const (
	TableData        = "data"
	TableLocations   = "locations"
	TableFilters     = "filters"
	TableIndicators  = "indicators"
	TableTimePeriods = "time_periods"
)

// Tables lists every table a dataset directory must contain.
var Tables = []string{TableData, TableLocations, TableFilters, TableIndicators, TableTimePeriods}

// ErrMissingTable is returned by Open when a parquet file is absent.
var ErrMissingTable = errors.New("dataset table missing")

// Options tune the DuckDB instance behind a store.
type Options struct {
	// Threads caps DuckDB worker threads. Zero keeps DuckDB's default.
	Threads int
	// MemoryLimit is a DuckDB size string such as "1GB". Empty keeps the default.
	MemoryLimit string
}

// Store provides read-only SQL access to one dataset directory.
type Store struct {
	db   *sql.DB
	dir  string
	meta *Meta
}

// Open creates a DuckDB view for each table of the dataset in dir and
// introspects its metadata.
//
// The database is configured with:
//   - one view per parquet file, created once
//   - optional thread and memory caps
//
// dir comes from configuration or the catalog, never from a request.
func Open(ctx context.Context, dir string, opts Options) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve dataset dir: %w", err)
	}

	for _, table := range Tables {
		if _, err := os.Stat(parquetPath(abs, table)); err != nil {
			return nil, fmt.Errorf("%w: %s in %s", ErrMissingTable, table, abs)
		}
	}

	// Empty DSN opens an in-memory database shared by every pool connection.
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to duckdb: %w", err)
	}

	if err := applySettings(ctx, db, opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply settings: %w", err)
	}

	if err := createViews(ctx, db, abs); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create views: %w", err)
	}

	s := &Store{db: db, dir: abs}

	meta, err := s.introspect(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to introspect dataset: %w", err)
	}
	s.meta = meta

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Dir returns the absolute dataset directory.
func (s *Store) Dir() string {
	return s.dir
}

// Meta returns the dataset metadata discovered at Open.
func (s *Store) Meta() *Meta {
	return s.meta
}

// Query executes a query and returns the resulting rows.
// Callers are responsible for closing the returned rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query expected to return at most one row.
func (s *Store) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func applySettings(ctx context.Context, db *sql.DB, opts Options) error {
	settings := []string{
		"SET preserve_insertion_order = true",
	}
	if opts.Threads > 0 {
		settings = append(settings, fmt.Sprintf("SET threads = %d", opts.Threads))
	}
	if opts.MemoryLimit != "" {
		settings = append(settings, "SET memory_limit = "+QuoteLiteral(opts.MemoryLimit))
	}

	for _, setting := range settings {
		if _, err := db.ExecContext(ctx, setting); err != nil {
			return fmt.Errorf("failed to execute %q: %w", setting, err)
		}
	}
	return nil
}

func createViews(ctx context.Context, db *sql.DB, dir string) error {
	for _, table := range Tables {
		stmt := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM read_parquet(%s)",
			QuoteIdent(table), QuoteLiteral(parquetPath(dir, table)))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("view %s: %w", table, err)
		}
	}
	return nil
}

func parquetPath(dir, table string) string {
	return filepath.Join(dir, table+".parquet")
}

// QuoteIdent quotes a SQL identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral quotes a SQL string literal, doubling embedded quotes.
// Used for DDL, where DuckDB does not accept bound parameters, and for
// rendering statements for display.
func QuoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}
