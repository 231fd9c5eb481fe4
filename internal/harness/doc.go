// Package harness runs YAML query scenarios end-to-end against the schools
// fixture.
//
// # Scenario Format
//
//	name: female_primary_by_region
//	description: "Filters in two groups combine with AND"
//	request:
//	  page: 1
//	  pageSize: 10
//	  body: |
//	    {
//	      "facets": {"filters": {"in": [
//	        "{{filter "characteristic" "Gender female"}}",
//	        "{{filter "school_type" "State-funded primary"}}"
//	      ]}},
//	      "indicators": ["sess_authorised"]
//	    }
//	expect:
//	  outcome: ok
//	  totalResults: 15
//	  warnings: {}
//	assertions:
//	  - type: all_rows
//	    field: characteristic
//	    equals: Gender female
//	golden: true
//
// Bodies are text/templates; filter, location and indicator expand to the
// dataset's tokens so scenarios never hard-code hashids output.
//
// # Assertion Types
//
//   - all_rows: every row holds a value in a column
//   - sorted: a column is monotone, asc or desc
//   - distinct: a column has exactly N distinct values
//   - contains_row: some row matches a subset of columns
//
// Assertions and golden files work on the page rendered as CSV, where
// dimensions appear as labels and codes.
//
// # Deterministic Testing
//
// Every query runs under a fixed request id, and every fetch is ordered
// with a row id tie-break, so golden files are stable across runs.
package harness
