package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "test.yaml", `
name: country_rows
description: "Country rows only"
request:
  pageSize: 5
  body: |
    {"facets": {"geographicLevels": {"eq": "Country"}}, "indicators": ["sess_authorised"]}
expect:
  totalResults: 18
  rows: 5
assertions:
  - type: all_rows
    field: geographic_level
    equals: National
golden: true
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "country_rows", scenario.Name)
	assert.Equal(t, 5, scenario.Request.PageSize)
	assert.Contains(t, scenario.Request.Body, `"Country"`)
	assert.Equal(t, OutcomeOK, scenario.Expect.Outcome, "outcome defaults to ok")
	require.NotNil(t, scenario.Expect.TotalResults)
	assert.Equal(t, int64(18), *scenario.Expect.TotalResults)
	assert.Nil(t, scenario.Expect.TotalPages)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertAllRows, scenario.Assertions[0].Type)
	assert.True(t, scenario.Golden)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "typo.yaml", `
name: typo
description: "Typo in a key"
request:
  body: "{}"
assertion:
  - type: all_rows
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing name",
			content: "description: d\nrequest: {body: '{}'}\n",
			want:    "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nrequest: {body: '{}'}\n",
			want:    "description is required",
		},
		{
			name:    "missing body",
			content: "name: n\ndescription: d\n",
			want:    "request.body is required",
		},
		{
			name:    "unknown outcome",
			content: "name: n\ndescription: d\nrequest: {body: '{}'}\nexpect: {outcome: maybe}\n",
			want:    `unknown outcome "maybe"`,
		},
		{
			name:    "errors without validation outcome",
			content: "name: n\ndescription: d\nrequest: {body: '{}'}\nexpect: {errors: {indicators: [notFound]}}\n",
			want:    "expect.errors requires outcome",
		},
		{
			name:    "assertions on a failing outcome",
			content: "name: n\ndescription: d\nrequest: {body: '{}'}\nexpect: {outcome: not_found}\nassertions: [{type: distinct, field: a}]\n",
			want:    "assertions require outcome",
		},
		{
			name:    "unknown assertion type",
			content: "name: n\ndescription: d\nrequest: {body: '{}'}\nassertions: [{type: nope}]\n",
			want:    `unknown assertion type "nope"`,
		},
		{
			name:    "sorted without order",
			content: "name: n\ndescription: d\nrequest: {body: '{}'}\nassertions: [{type: sorted, field: a}]\n",
			want:    "order must be asc or desc",
		},
		{
			name:    "contains_row without values",
			content: "name: n\ndescription: d\nrequest: {body: '{}'}\nassertions: [{type: contains_row}]\n",
			want:    "values are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), "s.yaml", tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenarios_RejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", "name: same\ndescription: d\nrequest: {body: '{}'}\n")
	writeScenario(t, dir, "b.yaml", "name: same\ndescription: d\nrequest: {body: '{}'}\n")

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario name "same" already used by a.yaml`)
}

func TestLoadScenarios_SortedByFileName(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b.yaml", "name: second\ndescription: d\nrequest: {body: '{}'}\n")
	writeScenario(t, dir, "a.yaml", "name: first\ndescription: d\nrequest: {body: '{}'}\n")
	writeScenario(t, dir, "notes.txt", "ignored")

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "first", scenarios[0].Name)
	assert.Equal(t, "second", scenarios[1].Name)
}
