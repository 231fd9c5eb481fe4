package resolve

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statq/internal/condition"
	"github.com/roach88/statq/internal/idcodec"
	"github.com/roach88/statq/internal/store"
	"github.com/roach88/statq/internal/testutil"
)

type fakeLookup struct {
	mu            sync.Mutex
	filterCalls   int
	locationCalls int
	filterIDs     []int64
	locationIDs   []int64
	codes         []string
	err           error

	filters   map[int64]store.FilterRow
	locations []store.LocationRow
}

func (f *fakeLookup) FiltersByID(_ context.Context, ids []int64) (map[int64]store.FilterRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filterCalls++
	f.filterIDs = append(f.filterIDs, ids...)
	if f.err != nil {
		return nil, f.err
	}
	out := map[int64]store.FilterRow{}
	for _, id := range ids {
		if row, ok := f.filters[id]; ok {
			out[id] = row
		}
	}
	return out, nil
}

func (f *fakeLookup) LocationsByIDOrCode(_ context.Context, ids []int64, codes []string) ([]store.LocationRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locationCalls++
	f.locationIDs = append(f.locationIDs, ids...)
	f.codes = append(f.codes, codes...)
	var out []store.LocationRow
	for _, row := range f.locations {
		for _, id := range ids {
			if row.ID == id {
				out = append(out, row)
			}
		}
		for _, c := range codes {
			if row.Code == c {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func codecs(t *testing.T) idcodec.Set {
	t.Helper()
	set, err := idcodec.NewRegistry(idcodec.Options{}).ForDataSet("ds")
	require.NoError(t, err)
	return set
}

func newFake() *fakeLookup {
	return &fakeLookup{
		filters: map[int64]store.FilterRow{
			1: {ID: 1, Label: "Total", GroupName: "characteristic"},
			2: {ID: 2, Label: "Gender female", GroupName: "characteristic"},
		},
		locations: []store.LocationRow{
			{ID: 1, Level: condition.Country, Code: "E92000001", Name: "England"},
			{ID: 2, Level: condition.Region, Code: "E12000001", Name: "North East"},
			{ID: 7, Level: condition.LocalAuthority, Code: "DUP", Name: "Dup LA"},
			{ID: 8, Level: condition.LocalAuthorityDistrict, Code: "DUP", Name: "Dup LAD"},
		},
	}
}

func TestCollect_DedupesAcrossClauses(t *testing.T) {
	clause := condition.And{Clauses: []condition.Clause{
		condition.Criteria{
			Filters:   condition.Facet[string]{{Comparator: condition.In, Values: []string{"a", "b"}}},
			Locations: condition.Facet[string]{{Comparator: condition.Eq, Values: []string{"x"}}},
		},
		condition.Or{Clauses: []condition.Clause{
			condition.Criteria{Filters: condition.Facet[string]{{Comparator: condition.NotIn, Values: []string{"b", "c"}}}},
			condition.Not{Clause: condition.Criteria{
				ParentLocations: condition.Facet[string]{{Comparator: condition.In, Values: []string{"x", "y"}}},
			}},
		}},
	}}

	tokens := Collect(clause)
	assert.Equal(t, []string{"a", "b", "c"}, tokens.Filters)
	assert.Equal(t, []string{"x", "y"}, tokens.Locations)
}

func TestResolve_SingleBulkLookupPerDimension(t *testing.T) {
	set := codecs(t)
	tokA := set.Filters.MustEncode(1)
	tokB := set.Filters.MustEncode(2)
	tokMissing := set.Filters.MustEncode(99)
	locTok := set.Locations.MustEncode(2)

	clause := condition.And{Clauses: []condition.Clause{
		condition.Criteria{Filters: condition.Facet[string]{{Comparator: condition.In, Values: []string{tokA, tokB, "garbage"}}}},
		condition.Criteria{Filters: condition.Facet[string]{{Comparator: condition.Eq, Values: []string{tokA}}}},
		condition.Criteria{Filters: condition.Facet[string]{{Comparator: condition.NotEq, Values: []string{tokMissing}}}},
		condition.Criteria{Locations: condition.Facet[string]{{Comparator: condition.In, Values: []string{locTok, "E92000001", "DUP", "NOPE"}}}},
	}}

	fake := newFake()
	r, err := Resolve(context.Background(), clause, fake, set)
	require.NoError(t, err)

	assert.Equal(t, 1, fake.filterCalls)
	assert.Equal(t, 1, fake.locationCalls)
	sort.Slice(fake.filterIDs, func(i, j int) bool { return fake.filterIDs[i] < fake.filterIDs[j] })
	assert.Equal(t, []int64{1, 2, 99}, fake.filterIDs)
	assert.Equal(t, []int64{2}, fake.locationIDs)
	assert.Equal(t, []string{"E92000001", "DUP", "NOPE"}, fake.codes)

	row, ok := r.Filter(tokA)
	require.True(t, ok)
	assert.Equal(t, "Total", row.Label)

	_, ok = r.Filter(tokMissing)
	assert.False(t, ok)
	_, ok = r.Filter("garbage")
	assert.False(t, ok)

	rows, ok := r.Location(locTok)
	require.True(t, ok)
	assert.Equal(t, "North East", rows[0].Name)

	rows, ok = r.Location("DUP")
	require.True(t, ok)
	assert.Len(t, rows, 2)

	_, ok = r.Location("NOPE")
	assert.False(t, ok)
}

func TestResolve_NormalizesLocationCodesOnly(t *testing.T) {
	set := codecs(t)
	fake := newFake()
	fake.locations = append(fake.locations, store.LocationRow{ID: 9, Level: condition.LocalAuthority, Code: "Caf\u00e9", Name: "Cafe"})

	paddedFilter := " " + set.Filters.MustEncode(1)
	clause := condition.Criteria{
		Filters:   condition.Facet[string]{{Comparator: condition.Eq, Values: []string{paddedFilter}}},
		Locations: condition.Facet[string]{{Comparator: condition.In, Values: []string{" E92000001 ", "Cafe\u0301", "  "}}},
	}

	r, err := Resolve(context.Background(), clause, fake, set)
	require.NoError(t, err)

	assert.Zero(t, fake.filterCalls)
	_, ok := r.Filter(paddedFilter)
	assert.False(t, ok)

	assert.Equal(t, []string{"E92000001", "Caf\u00e9"}, fake.codes)

	rows, ok := r.Location(" E92000001 ")
	require.True(t, ok)
	assert.Equal(t, "England", rows[0].Name)

	rows, ok = r.Location("Cafe\u0301")
	require.True(t, ok)
	assert.Equal(t, int64(9), rows[0].ID)

	_, ok = r.Location("E92000001")
	assert.False(t, ok)
}

func TestResolve_NoTokensNoLookups(t *testing.T) {
	fake := newFake()
	_, err := Resolve(context.Background(), condition.Criteria{}, fake, codecs(t))
	require.NoError(t, err)

	assert.Zero(t, fake.filterCalls)
	assert.Zero(t, fake.locationCalls)
}

func TestResolve_LookupError(t *testing.T) {
	set := codecs(t)
	fake := newFake()
	fake.err = errors.New("disk on fire")

	clause := condition.Criteria{Filters: condition.Facet[string]{{Comparator: condition.Eq, Values: []string{set.Filters.MustEncode(1)}}}}
	_, err := Resolve(context.Background(), clause, fake, set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestResolve_TokenFromAnotherDataSetDoesNotResolve(t *testing.T) {
	other, err := idcodec.NewRegistry(idcodec.Options{}).ForDataSet("other")
	require.NoError(t, err)
	foreign := other.Filters.MustEncode(1)

	fake := newFake()
	clause := condition.Criteria{Filters: condition.Facet[string]{{Comparator: condition.Eq, Values: []string{foreign}}}}
	r, err := Resolve(context.Background(), clause, fake, codecs(t))
	require.NoError(t, err)

	_, ok := r.Filter(foreign)
	assert.False(t, ok)
	assert.Zero(t, fake.filterCalls)
}

func TestIndicators_TokensAndNames(t *testing.T) {
	s, err := store.Open(context.Background(), testutil.WriteSchoolsDataset(t), store.Options{})
	require.NoError(t, err)
	defer s.Close()

	set := codecs(t)
	possibleTok := set.Indicators.MustEncode(testutil.IndicatorPossible)

	rows, missing := Indicators([]string{"sess_authorised", possibleTok, "sess_authorised", "nope"}, s.Meta(), set.Indicators)

	require.Len(t, rows, 2)
	assert.Equal(t, "sess_authorised", rows[0].Name)
	assert.Equal(t, "sess_possible", rows[1].Name)
	assert.Equal(t, []string{"nope"}, missing)
}
