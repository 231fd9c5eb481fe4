// Package store provides read-only DuckDB access to one dataset directory.
//
// A dataset directory holds five parquet files:
//   - data.parquet: the denormalized fact table
//   - locations.parquet: {id, level, code, name}
//   - filters.parquet: {id, label, group_name, group_label, is_aggregate}
//   - indicators.parquet: {id, name, label, unit, decimal_places}
//   - time_periods.parquet: {id, year, identifier, ordering}
//
// Open creates an in-memory DuckDB database with one view per file, so SQL
// can refer to the tables by name (data, locations, ...). The database is
// never written to after Open.
//
// # Introspection
//
// Open also discovers the dataset's Meta once: the fact table columns, the
// geographic levels that have both locations and fact columns, the filter
// groups, the indicators and the time periods. Column names used in SQL are
// only ever taken from Meta or from the fixed per-level column table in
// package condition.
//
// # Concurrency
//
// A Store is safe for concurrent use. All pool connections share one DuckDB
// instance, and nothing is created per request.
//
// Stores are cached by directory in a Cache, which closes evicted stores
// once their last user releases them.
package store
