// Package condition defines the condition tree of a dataset query.
//
// A query's facets are a recursive boolean clause:
//
//	Clause = And{Clauses} | Or{Clauses} | Not{Clause} | Criteria{...}
//
// Criteria is the leaf. Each of its facets (filters, locations,
// parentLocations, geographicLevels, timePeriods) holds an ordered list of
// comparisons, one per comparator, e.g. {in: [a, b], notEq: c}.
//
// SEALED INTERFACE:
//
// Clause is sealed with a marker method, so only the four types in this
// package implement it. Compilers switch exhaustively over them:
//
//	switch c := clause.(type) {
//	case And:
//	case Or:
//	case Not:
//	case Criteria:
//	}
//
// Adding a facet kind means adding a field to Criteria and a hook to
// Visitor; every walker that ignores it then stands out in review.
//
// PARSING:
//
// ParseQuery decodes the JSON request document into a Query and records
// every shape problem (wrong types, unknown comparators, unknown geographic
// levels or time period codes, empty indicators) into a diag.Ledger at the
// JSONPath of the offending member. Parsing never stops at the first error.
//
// Tokens inside filters and locations are left opaque here; they are
// resolved against dimension tables by the resolve package.
package condition
