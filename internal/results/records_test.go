package results

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statq/internal/condition"
	"github.com/roach88/statq/internal/diag"
	"github.com/roach88/statq/internal/idcodec"
	"github.com/roach88/statq/internal/store"
)

func codecs(t *testing.T) idcodec.Set {
	t.Helper()
	set, err := idcodec.NewRegistry(idcodec.Options{}).ForDataSet("ds")
	require.NoError(t, err)
	return set
}

func twoRowPage() Page {
	return Page{
		Levels:       []condition.GeographicLevel{condition.Country, condition.Region},
		FilterGroups: []store.FilterGroup{{Name: "characteristic", Label: "Characteristic"}},
		Indicators:   []store.IndicatorRow{{ID: 1, Name: "sess_authorised"}},
		Rows: []Raw{
			{
				RowID:      7,
				TimePeriod: condition.TimePeriod{Year: 2021, Code: "AY"},
				Level:      condition.Region,
				Locations:  map[condition.GeographicLevel]int64{condition.Country: 1, condition.Region: 2},
				Filters:    map[string]int64{"characteristic": 2},
				Values:     map[string]string{"sess_authorised": "10"},
			},
			{
				RowID:      3,
				TimePeriod: condition.TimePeriod{Year: 2020, Code: "AY"},
				Level:      condition.Country,
				Locations:  map[condition.GeographicLevel]int64{condition.Country: 1},
				Filters:    map[string]int64{"characteristic": 1},
				Values:     map[string]string{},
			},
		},
		Labels: Labels{
			Filters: map[int64]store.FilterRow{
				1: {ID: 1, Label: "Total", GroupName: "characteristic"},
				2: {ID: 2, Label: "Gender female", GroupName: "characteristic"},
			},
			Locations: map[int64]store.LocationRow{
				1: {ID: 1, Level: condition.Country, Code: "E92000001", Name: "England"},
				2: {ID: 2, Level: condition.Region, Code: "E12000001", Name: "North East"},
			},
		},
	}
}

func TestRecords_EncodesEveryID(t *testing.T) {
	set := codecs(t)
	recs, err := NewAssembler(set, false).Records(twoRowPage())
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, condition.TimePeriod{Year: 2021, Code: "AY"}, first.TimePeriod)
	assert.Equal(t, condition.Region, first.GeographicLevel)

	id, ok := set.Locations.Decode(first.Locations["Region"])
	require.True(t, ok)
	assert.Equal(t, int64(2), id)

	id, ok = set.Filters.Decode(first.Filters["characteristic"])
	require.True(t, ok)
	assert.Equal(t, int64(2), id)

	indTok := set.Indicators.MustEncode(1)
	assert.Equal(t, map[string]string{indTok: "10"}, first.Values)

	// Null values are omitted; levels the row has no value for are absent.
	assert.Empty(t, recs[1].Values)
	assert.NotContains(t, recs[1].Locations, "Region")
}

func TestRecords_DebugLabels(t *testing.T) {
	set := codecs(t)
	recs, err := NewAssembler(set, true).Records(twoRowPage())
	require.NoError(t, err)

	assert.Equal(t, set.Locations.MustEncode(2)+"::North East", recs[0].Locations["Region"])
	assert.Equal(t, set.Filters.MustEncode(2)+"::Gender female", recs[0].Filters["characteristic"])
	assert.Contains(t, recs[0].Values, set.Indicators.MustEncode(1)+"::sess_authorised")
}

func TestRecords_NoRawIntegersByDefault(t *testing.T) {
	recs, err := NewAssembler(codecs(t), false).Records(twoRowPage())
	require.NoError(t, err)

	for _, tok := range recs[0].Filters {
		assert.False(t, strings.Contains(tok, "::"))
		assert.NotEqual(t, "2", tok)
	}
}

func TestWriteCSV_Golden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, twoRowPage()))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "two_rows.csv", buf.Bytes())
}

func TestWriteCSV_EmptyPageWritesHeader(t *testing.T) {
	p := twoRowPage()
	p.Rows = nil

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, p))
	assert.Equal(t, strings.Join(Header(p), ",")+"\n", buf.String())
}

func TestIDs_Distinct(t *testing.T) {
	rows := twoRowPage().Rows
	assert.ElementsMatch(t, []int64{1, 2}, FilterIDs(rows))
	assert.ElementsMatch(t, []int64{1, 2}, LocationIDs(rows))
}

func TestNewPaging(t *testing.T) {
	assert.Equal(t, Paging{Page: 3, PageSize: 10, TotalResults: 25, TotalPages: 3}, NewPaging(3, 10, 25))
	assert.Equal(t, int64(0), NewPaging(1, 10, 0).TotalPages)
	assert.Equal(t, int64(1), NewPaging(1, 10, 10).TotalPages)
}

func TestWarnIfEmpty(t *testing.T) {
	ledger := diag.NewLedger()
	WarnIfEmpty(ledger, 3)
	assert.Empty(t, ledger.Warnings())

	WarnIfEmpty(ledger, 0)
	assert.Equal(t, []string{diag.CodeResultsNotFound}, ledger.Warnings().Codes("results"))
	assert.False(t, ledger.HasErrors())
}
