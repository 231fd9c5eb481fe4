// Package engine runs faceted queries against dataset versions.
//
// A request flows through:
//
//  1. Catalog lookup: dataset id and version to a directory. Unknown ids
//     are a *NotFoundError, raised before anything is compiled.
//  2. Parse (condition), resolve tokens (resolve), and compile the
//     condition tree (querysql). Every client fault accumulates in one
//     diag.Ledger.
//  3. Gate: any recorded error aborts with a *ValidationError holding all
//     of them. No SQL is issued.
//  4. Count and fetch, concurrently. The fetch pages over the fact table
//     before joining dimensions, so joins touch at most one page of rows.
//  5. Assemble records (results), re-encoding every surrogate id.
//
// CRITICAL PATTERNS:
//
// Deterministic ordering: every fetch ends its ORDER BY with the fact row
// id, so identical requests return identical pages and pages concatenate
// to the unpaged result.
//
// No shared mutable server-side state: compiled predicates bind every
// value as a parameter and never create relations, so concurrent requests
// on one store cannot collide.
//
// Storage faults are logged with the request id and returned as a
// *InternalError whose message reveals nothing.
package engine
