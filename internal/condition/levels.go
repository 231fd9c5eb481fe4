package condition

// GeographicLevel is the public name of a location granularity.
type GeographicLevel string

const (
	Country                    GeographicLevel = "Country"
	EnglishDevolvedArea        GeographicLevel = "EnglishDevolvedArea"
	Institution                GeographicLevel = "Institution"
	LocalAuthority             GeographicLevel = "LocalAuthority"
	LocalAuthorityDistrict     GeographicLevel = "LocalAuthorityDistrict"
	LocalEnterprisePartnership GeographicLevel = "LocalEnterprisePartnership"
	MayoralCombinedAuthority   GeographicLevel = "MayoralCombinedAuthority"
	MultiAcademyTrust          GeographicLevel = "MultiAcademyTrust"
	OpportunityArea            GeographicLevel = "OpportunityArea"
	ParliamentaryConstituency  GeographicLevel = "ParliamentaryConstituency"
	PlanningArea               GeographicLevel = "PlanningArea"
	Provider                   GeographicLevel = "Provider"
	Region                     GeographicLevel = "Region"
	School                     GeographicLevel = "School"
	Sponsor                    GeographicLevel = "Sponsor"
	Ward                       GeographicLevel = "Ward"
)

// LevelColumns are the fact table columns holding a level's location.
type LevelColumns struct {
	Code string
	Name string
}

type levelInfo struct {
	level   GeographicLevel
	label   string
	columns LevelColumns
}

// levels is ordered from coarsest to finest. Column names here are the only
// location identifiers ever written into SQL.
var levels = []levelInfo{
	{Country, "National", LevelColumns{"country_code", "country_name"}},
	{Region, "Regional", LevelColumns{"region_code", "region_name"}},
	{EnglishDevolvedArea, "English devolved area", LevelColumns{"english_devolved_area_code", "english_devolved_area_name"}},
	{MayoralCombinedAuthority, "Mayoral combined authority", LevelColumns{"cauth_code", "cauth_name"}},
	{LocalEnterprisePartnership, "Local enterprise partnership", LevelColumns{"local_enterprise_partnership_code", "local_enterprise_partnership_name"}},
	{OpportunityArea, "Opportunity area", LevelColumns{"opportunity_area_code", "opportunity_area_name"}},
	{LocalAuthority, "Local authority", LevelColumns{"new_la_code", "la_name"}},
	{LocalAuthorityDistrict, "Local authority district", LevelColumns{"lad_code", "lad_name"}},
	{ParliamentaryConstituency, "Parliamentary constituency", LevelColumns{"pcon_code", "pcon_name"}},
	{PlanningArea, "Planning area", LevelColumns{"planning_area_code", "planning_area_name"}},
	{Ward, "Ward", LevelColumns{"ward_code", "ward_name"}},
	{MultiAcademyTrust, "MAT", LevelColumns{"trust_id", "trust_name"}},
	{Sponsor, "Sponsor", LevelColumns{"sponsor_id", "sponsor_name"}},
	{Provider, "Provider", LevelColumns{"provider_ukprn", "provider_name"}},
	{Institution, "Institution", LevelColumns{"institution_id", "institution_name"}},
	{School, "School", LevelColumns{"school_urn", "school_name"}},
}

var (
	levelsByName  = make(map[GeographicLevel]levelInfo, len(levels))
	levelsByLabel = make(map[string]GeographicLevel, len(levels))
)

func init() {
	for _, info := range levels {
		levelsByName[info.level] = info
		levelsByLabel[info.label] = info.level
	}
}

// GeographicLevels returns every known level, coarsest first.
func GeographicLevels() []GeographicLevel {
	out := make([]GeographicLevel, len(levels))
	for i, info := range levels {
		out[i] = info.level
	}
	return out
}

// GeographicLevelNames returns every known level name, coarsest first.
func GeographicLevelNames() []string {
	out := make([]string, len(levels))
	for i, info := range levels {
		out[i] = string(info.level)
	}
	return out
}

// ParseGeographicLevel looks up a level by its public name.
func ParseGeographicLevel(name string) (GeographicLevel, bool) {
	info, ok := levelsByName[GeographicLevel(name)]
	return info.level, ok
}

// GeographicLevelFromLabel maps an on-disk geographic_level label back to
// the public level.
func GeographicLevelFromLabel(label string) (GeographicLevel, bool) {
	level, ok := levelsByLabel[label]
	return level, ok
}

// Valid reports whether l is a known level.
func (l GeographicLevel) Valid() bool {
	_, ok := levelsByName[l]
	return ok
}

// Label returns the on-disk geographic_level label, e.g. "National".
func (l GeographicLevel) Label() string {
	return levelsByName[l].label
}

// Columns returns the fact table code/name columns for the level.
func (l GeographicLevel) Columns() LevelColumns {
	return levelsByName[l].columns
}

// Rank orders levels coarsest first; unknown levels sort last.
func (l GeographicLevel) Rank() int {
	for i, info := range levels {
		if info.level == l {
			return i
		}
	}
	return len(levels)
}
