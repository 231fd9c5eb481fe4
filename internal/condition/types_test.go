package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/statq/internal/diag"
)

func TestComparator_Inverse(t *testing.T) {
	for _, c := range comparatorOrder {
		assert.Equal(t, c, c.Inverse().Inverse(), "double inverse of %s", c)
		assert.NotEqual(t, c, c.Inverse(), "inverse of %s", c)
	}
	assert.Equal(t, Lt, Gte.Inverse())
	assert.Equal(t, Lte, Gt.Inverse())
}

func TestComparator_IsList(t *testing.T) {
	assert.True(t, In.IsList())
	assert.True(t, NotIn.IsList())
	assert.False(t, Eq.IsList())
	assert.False(t, Gte.IsList())
}

func TestCriteria_IsEmpty(t *testing.T) {
	assert.True(t, Criteria{}.IsEmpty())
	assert.False(t, Criteria{Filters: Facet[string]{}}.IsEmpty())
}

func TestGeographicLevel_Lookup(t *testing.T) {
	level, ok := ParseGeographicLevel("LocalAuthority")
	assert.True(t, ok)
	assert.Equal(t, LocalAuthority, level)
	assert.Equal(t, "Local authority", level.Label())
	assert.Equal(t, LevelColumns{Code: "new_la_code", Name: "la_name"}, level.Columns())

	back, ok := GeographicLevelFromLabel("National")
	assert.True(t, ok)
	assert.Equal(t, Country, back)

	_, ok = ParseGeographicLevel("Galaxy")
	assert.False(t, ok)
	assert.False(t, GeographicLevel("Galaxy").Valid())
}

func TestGeographicLevel_LabelsAndColumnsAreUnique(t *testing.T) {
	labels := map[string]bool{}
	columns := map[string]bool{}
	for _, level := range GeographicLevels() {
		assert.False(t, labels[level.Label()], "duplicate label %q", level.Label())
		labels[level.Label()] = true

		cols := level.Columns()
		assert.False(t, columns[cols.Code], "duplicate column %q", cols.Code)
		assert.False(t, columns[cols.Name], "duplicate column %q", cols.Name)
		columns[cols.Code] = true
		columns[cols.Name] = true
	}
	assert.Less(t, Country.Rank(), Region.Rank())
	assert.Less(t, Region.Rank(), LocalAuthority.Rank())
}

func TestTimePeriodCodes_RoundTrip(t *testing.T) {
	for _, code := range TimePeriodCodes() {
		identifier, ok := TimePeriodIdentifier(code)
		assert.True(t, ok, code)

		back, ok := TimePeriodCode(identifier)
		assert.True(t, ok, identifier)
		assert.Equal(t, code, back)
	}

	code, ok := TimePeriodCode("academic YEAR")
	assert.True(t, ok)
	assert.Equal(t, "AY", code)
}

func TestFormatTimePeriodLabel(t *testing.T) {
	tests := []struct {
		code string
		year int
		want string
	}{
		{"AY", 2021, "2021/22"},
		{"AY", 1999, "1999/00"},
		{"CY", 2021, "2021"},
		{"FYQ2", 2020, "2020/21 Q2"},
		{"CYQ1", 2020, "2020 Q1"},
		{"M3", 2022, "2022 March"},
		{"W10", 2022, "2022 Week 10"},
		{"T1", 2019, "2019/20 Autumn term"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimePeriodLabel(tt.code, tt.year))
		})
	}
}

func TestWalk_VisitsEveryComparisonWithPath(t *testing.T) {
	clause := And{Clauses: []Clause{
		Criteria{
			Filters:   Facet[string]{{Comparator: In, Values: []string{"a"}}},
			Locations: Facet[string]{{Comparator: Eq, Values: []string{"l"}}},
		},
		Or{Clauses: []Clause{
			Not{Clause: Criteria{Filters: Facet[string]{{Comparator: NotEq, Values: []string{"b"}}}}},
			Criteria{ParentLocations: Facet[string]{{Comparator: In, Values: []string{"p"}}}},
		}},
	}}

	var seen []string
	Walk(clause, diag.Root("facets"), Visitor{
		Filters: func(path diag.Path, c Comparison[string]) {
			seen = append(seen, path.String()+"="+c.Values[0])
		},
		ParentLocations: func(path diag.Path, c Comparison[string]) {
			seen = append(seen, path.String()+"="+c.Values[0])
		},
	})

	assert.Equal(t, []string{
		"facets.and[0].filters.in=a",
		"facets.and[1].or[0].not.filters.notEq=b",
		"facets.and[1].or[1].parentLocations.in=p",
	}, seen)
}
