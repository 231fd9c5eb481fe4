package harness

import (
	"fmt"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Rows     []map[string]string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nRows (%d):\n", len(e.Rows))
	for i, row := range e.Rows {
		if i == 10 {
			fmt.Fprintf(&buf, "  ... %d more\n", len(e.Rows)-i)
			break
		}
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, formatRow(row))
	}
	return buf.String()
}

func formatRow(row map[string]string) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + row[k]
	}
	return strings.Join(parts, " ")
}

// evaluateAssertion dispatches on the assertion type.
func evaluateAssertion(rows []map[string]string, a Assertion) error {
	switch a.Type {
	case AssertAllRows:
		return assertAllRows(rows, a)
	case AssertSorted:
		return assertSorted(rows, a)
	case AssertDistinct:
		return assertDistinct(rows, a)
	case AssertContainsRow:
		return assertContainsRow(rows, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertAllRows checks that every row holds the same value in a column.
// An empty page passes.
func assertAllRows(rows []map[string]string, a Assertion) error {
	for i, row := range rows {
		got, ok := row[a.Field]
		if !ok {
			return unknownField(a, rows)
		}
		if got != a.Equals {
			return &AssertionError{
				Type:     AssertAllRows,
				Expected: fmt.Sprintf("every %s = %q", a.Field, a.Equals),
				Actual:   fmt.Sprintf("row %d has %s = %q", i+1, a.Field, got),
				Rows:     rows,
			}
		}
	}
	return nil
}

// assertSorted checks that a column is monotone in the given order.
// Values compare as strings, which orders time period labels and names.
func assertSorted(rows []map[string]string, a Assertion) error {
	for i := 1; i < len(rows); i++ {
		prev, ok := rows[i-1][a.Field]
		if !ok {
			return unknownField(a, rows)
		}
		cur := rows[i][a.Field]

		outOfOrder := prev > cur
		if a.Order == "desc" {
			outOfOrder = prev < cur
		}
		if outOfOrder {
			return &AssertionError{
				Type:     AssertSorted,
				Expected: fmt.Sprintf("%s sorted %s", a.Field, a.Order),
				Actual:   fmt.Sprintf("row %d %q then row %d %q", i, prev, i+1, cur),
				Rows:     rows,
			}
		}
	}
	return nil
}

// assertDistinct checks the number of distinct values in a column.
func assertDistinct(rows []map[string]string, a Assertion) error {
	values := make(map[string]bool)
	for _, row := range rows {
		v, ok := row[a.Field]
		if !ok {
			return unknownField(a, rows)
		}
		values[v] = true
	}

	if len(values) != a.Count {
		return &AssertionError{
			Type:     AssertDistinct,
			Expected: fmt.Sprintf("%d distinct %s values", a.Count, a.Field),
			Actual:   fmt.Sprintf("%d distinct values", len(values)),
			Rows:     rows,
		}
	}
	return nil
}

// assertContainsRow checks that some row matches every given column.
func assertContainsRow(rows []map[string]string, a Assertion) error {
	for _, row := range rows {
		if matchRow(row, a.Values) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertContainsRow,
		Expected: fmt.Sprintf("a row with %s", formatRow(a.Values)),
		Actual:   "not found",
		Rows:     rows,
	}
}

func matchRow(row, want map[string]string) bool {
	for k, v := range want {
		if got, ok := row[k]; !ok || got != v {
			return false
		}
	}
	return true
}

func unknownField(a Assertion, rows []map[string]string) error {
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("column %s", a.Field),
		Actual:   "no such column",
		Rows:     rows,
	}
}
