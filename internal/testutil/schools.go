package testutil

import (
	"strconv"
	"testing"

	"github.com/roach88/statq/internal/condition"
)

// SchoolsDataSetID is the dataset id tests register the schools fixture under.
const SchoolsDataSetID = "pupil-absence"

// Filter ids in the schools fixture.
const (
	FilterCharacteristicTotal int64 = 1
	FilterGenderFemale        int64 = 2
	FilterGenderMale          int64 = 3
	FilterSchoolTypeTotal     int64 = 4
	FilterPrimary             int64 = 5
	FilterSecondary           int64 = 6
)

// Location ids in the schools fixture.
const (
	LocationEngland    int64 = 1
	LocationNorthEast  int64 = 2
	LocationNorthWest  int64 = 3
	LocationHartlepool int64 = 4
	LocationBolton     int64 = 5
)

// Indicator ids in the schools fixture.
const (
	IndicatorAuthorised int64 = 1
	IndicatorPossible   int64 = 2
)

// SchoolsRowCount is the number of fact rows in the schools fixture.
const SchoolsRowCount = 90

// SchoolsDataset is a small absence dataset:
//   - 3 academic years (2020, 2021, 2022)
//   - 5 locations over Country, Region and LocalAuthority
//   - 2 filter groups: characteristic (Total, Gender female, Gender male)
//     and school_type (Total, State-funded primary, State-funded secondary)
//   - 2 indicators: sess_authorised, sess_possible
//
// Fact rows are generated for every time period, location, characteristic
// and non-total school type, giving 90 rows with ids 1..90 in that nesting
// order. sess_authorised is id*10 and sess_possible is id*100.
func SchoolsDataset() Dataset {
	ds := Dataset{
		Locations: []Location{
			{ID: LocationEngland, Level: condition.Country, Code: "E92000001", Name: "England"},
			{ID: LocationNorthEast, Level: condition.Region, Code: "E12000001", Name: "North East", Parents: []int64{LocationEngland}},
			{ID: LocationNorthWest, Level: condition.Region, Code: "E12000002", Name: "North West", Parents: []int64{LocationEngland}},
			{ID: LocationHartlepool, Level: condition.LocalAuthority, Code: "E06000001", Name: "Hartlepool", Parents: []int64{LocationNorthEast, LocationEngland}},
			{ID: LocationBolton, Level: condition.LocalAuthority, Code: "E08000001", Name: "Bolton", Parents: []int64{LocationNorthWest, LocationEngland}},
		},
		Filters: []Filter{
			{ID: FilterCharacteristicTotal, Label: "Total", GroupName: "characteristic", GroupLabel: "Characteristic", IsAggregate: true},
			{ID: FilterGenderFemale, Label: "Gender female", GroupName: "characteristic", GroupLabel: "Characteristic"},
			{ID: FilterGenderMale, Label: "Gender male", GroupName: "characteristic", GroupLabel: "Characteristic"},
			{ID: FilterSchoolTypeTotal, Label: "Total", GroupName: "school_type", GroupLabel: "School type", IsAggregate: true},
			{ID: FilterPrimary, Label: "State-funded primary", GroupName: "school_type", GroupLabel: "School type"},
			{ID: FilterSecondary, Label: "State-funded secondary", GroupName: "school_type", GroupLabel: "School type"},
		},
		Indicators: []Indicator{
			{ID: IndicatorAuthorised, Name: "sess_authorised", Label: "Number of authorised sessions", DecimalPlaces: 0},
			{ID: IndicatorPossible, Name: "sess_possible", Label: "Number of possible sessions", DecimalPlaces: 0},
		},
		TimePeriods: []TimePeriod{
			{ID: 1, Year: 2020, Code: "AY", Ordering: 1},
			{ID: 2, Year: 2021, Code: "AY", Ordering: 2},
			{ID: 3, Year: 2022, Code: "AY", Ordering: 3},
		},
	}

	characteristics := []string{"Total", "Gender female", "Gender male"}
	schoolTypes := []string{"State-funded primary", "State-funded secondary"}

	id := int64(0)
	for _, tp := range ds.TimePeriods {
		for _, loc := range ds.Locations {
			for _, ch := range characteristics {
				for _, st := range schoolTypes {
					id++
					ds.Rows = append(ds.Rows, Row{
						ID:         id,
						TimePeriod: condition.TimePeriod{Year: tp.Year, Code: tp.Code},
						Location:   loc.ID,
						Filters:    map[string]string{"characteristic": ch, "school_type": st},
						Values: map[string]string{
							"sess_authorised": strconv.FormatInt(id*10, 10),
							"sess_possible":   strconv.FormatInt(id*100, 10),
						},
					})
				}
			}
		}
	}
	return ds
}

// WriteSchoolsDataset writes the schools fixture into a fresh temp dir and
// returns the dir.
func WriteSchoolsDataset(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	WriteDataset(t, dir, SchoolsDataset())
	return dir
}
