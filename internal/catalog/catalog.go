// Package catalog maps dataset ids and versions to dataset directories.
//
// The catalog is a small SQLite database. Versions are ordered by a logical
// sequence number assigned at registration; "latest" means highest seq,
// never a timestamp.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on data_set_versions(data_set_id, seq) for latest lookups
const currentSchemaVersion = 1

// ErrNotFound is returned when a dataset or version is not registered.
var ErrNotFound = errors.New("dataset not found")

// Version is one registered version of a dataset.
type Version struct {
	DataSetID string
	Version   string
	Dir       string
	Seq       int64
}

// DataSet is a registered dataset with its versions, latest first.
type DataSet struct {
	ID       string
	Title    string
	Versions []Version
}

// Catalog is the dataset registry.
type Catalog struct {
	db *sql.DB
}

// Open creates or opens a catalog database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Register upserts a dataset and its versions. Existing versions keep
// their seq and have their directory updated.
func (c *Catalog) Register(ctx context.Context, ds DataSet) error {
	if ds.ID == "" {
		return errors.New("register dataset: empty id")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin register: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO data_sets (id, title) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title
	`, ds.ID, ds.Title); err != nil {
		return fmt.Errorf("upsert dataset %s: %w", ds.ID, err)
	}

	for _, v := range ds.Versions {
		if v.Version == "" || v.Dir == "" {
			return fmt.Errorf("register dataset %s: version and dir are required", ds.ID)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO data_set_versions (data_set_id, version, dir) VALUES (?, ?, ?)
			ON CONFLICT(data_set_id, version) DO UPDATE SET dir = excluded.dir
		`, ds.ID, v.Version, v.Dir); err != nil {
			return fmt.Errorf("upsert version %s/%s: %w", ds.ID, v.Version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit register: %w", err)
	}
	return nil
}

// Resolve returns the requested version of a dataset, or its latest version
// when version is empty. Unknown ids and versions wrap ErrNotFound.
func (c *Catalog) Resolve(ctx context.Context, dataSetID, version string) (Version, error) {
	var row *sql.Row
	if version == "" {
		row = c.db.QueryRowContext(ctx, `
			SELECT data_set_id, version, dir, seq
			FROM data_set_versions
			WHERE data_set_id = ?
			ORDER BY seq DESC
			LIMIT 1
		`, dataSetID)
	} else {
		row = c.db.QueryRowContext(ctx, `
			SELECT data_set_id, version, dir, seq
			FROM data_set_versions
			WHERE data_set_id = ? AND version = ?
		`, dataSetID, version)
	}

	var v Version
	err := row.Scan(&v.DataSetID, &v.Version, &v.Dir, &v.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		if version == "" {
			return Version{}, fmt.Errorf("%w: %s", ErrNotFound, dataSetID)
		}
		return Version{}, fmt.Errorf("%w: %s version %s", ErrNotFound, dataSetID, version)
	}
	if err != nil {
		return Version{}, fmt.Errorf("resolve %s: %w", dataSetID, err)
	}
	return v, nil
}

// List returns every dataset ordered by id, each with versions latest first.
func (c *Catalog) List(ctx context.Context) ([]DataSet, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT d.id, d.title, v.version, v.dir, v.seq
		FROM data_sets d
		LEFT JOIN data_set_versions v ON v.data_set_id = d.id
		ORDER BY d.id ASC, v.seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	var out []DataSet
	for rows.Next() {
		var id, title string
		var version, dir sql.NullString
		var seq sql.NullInt64
		if err := rows.Scan(&id, &title, &version, &dir, &seq); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, DataSet{ID: id, Title: title})
		}
		if version.Valid {
			last := &out[len(out)-1]
			last.Versions = append(last.Versions, Version{
				DataSetID: id,
				Version:   version.String,
				Dir:       dir.String,
				Seq:       seq.Int64,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}

	// Return empty slice instead of nil
	if out == nil {
		out = []DataSet{}
	}
	return out, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the latest-version lookup index.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_data_set_versions_latest
		ON data_set_versions(data_set_id, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}
