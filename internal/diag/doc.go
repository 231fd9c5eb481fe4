// Package diag provides the per-request diagnostics ledger.
//
// A Ledger accumulates path-scoped errors and warnings while a query is
// parsed, resolved and compiled. Errors gate execution: the engine never
// issues a count or fetch query while the ledger holds an error. Warnings
// are non-fatal and travel with an otherwise successful response.
//
// # Paths
//
// Paths are JSONPath-like strings identifying the offending part of the
// request, built with the Path helpers:
//
//	diag.Root("facets").Field("and").Index(0).Field("locations").Field("in")
//	// facets.and[0].locations.in
//
// # Ownership
//
// A Ledger is created per request and owned by the single goroutine that
// compiles that request. It is not safe for concurrent use and must never be
// shared across requests.
//
// Dictionaries serialise with their keys sorted (encoding/json sorts map
// keys), and Paths() returns keys in the same order, so a client always sees
// every problem at once in a stable order.
package diag
