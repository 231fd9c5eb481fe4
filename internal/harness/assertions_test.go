package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleRows = []map[string]string{
	{"time_period": "2022/23", "region_name": "North East", "characteristic": "Total"},
	{"time_period": "2021/22", "region_name": "North West", "characteristic": "Total"},
	{"time_period": "2021/22", "region_name": "North East", "characteristic": "Total"},
}

func TestAssertAllRows(t *testing.T) {
	assert.NoError(t, evaluateAssertion(sampleRows, Assertion{Type: AssertAllRows, Field: "characteristic", Equals: "Total"}))
	assert.NoError(t, evaluateAssertion(nil, Assertion{Type: AssertAllRows, Field: "characteristic", Equals: "Total"}))

	err := evaluateAssertion(sampleRows, Assertion{Type: AssertAllRows, Field: "region_name", Equals: "North East"})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, `row 2 has region_name = "North West"`, ae.Actual)
}

func TestAssertSorted(t *testing.T) {
	assert.NoError(t, evaluateAssertion(sampleRows, Assertion{Type: AssertSorted, Field: "time_period", Order: "desc"}))
	assert.Error(t, evaluateAssertion(sampleRows, Assertion{Type: AssertSorted, Field: "time_period", Order: "asc"}))
	assert.Error(t, evaluateAssertion(sampleRows, Assertion{Type: AssertSorted, Field: "region_name", Order: "asc"}))
}

func TestAssertDistinct(t *testing.T) {
	assert.NoError(t, evaluateAssertion(sampleRows, Assertion{Type: AssertDistinct, Field: "region_name", Count: 2}))
	assert.Error(t, evaluateAssertion(sampleRows, Assertion{Type: AssertDistinct, Field: "region_name", Count: 3}))
}

func TestAssertContainsRow(t *testing.T) {
	assert.NoError(t, evaluateAssertion(sampleRows, Assertion{
		Type:   AssertContainsRow,
		Values: map[string]string{"time_period": "2021/22", "region_name": "North West"},
	}))
	assert.Error(t, evaluateAssertion(sampleRows, Assertion{
		Type:   AssertContainsRow,
		Values: map[string]string{"time_period": "2022/23", "region_name": "North West"},
	}))
}

func TestAssertUnknownColumn(t *testing.T) {
	err := evaluateAssertion(sampleRows, Assertion{Type: AssertDistinct, Field: "ward_name", Count: 1})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "no such column", ae.Actual)
}

func TestAssertionError_Message(t *testing.T) {
	err := &AssertionError{
		Type:     AssertDistinct,
		Expected: "2 distinct region_name values",
		Actual:   "1 distinct values",
		Rows:     sampleRows[:1],
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: distinct")
	assert.Contains(t, msg, "Expected: 2 distinct region_name values")
	assert.Contains(t, msg, "[1] characteristic=Total region_name=North East time_period=2022/23")
}
