// Package results assembles fetched fact rows into the public result shape:
// JSON records keyed by opaque tokens, or a flattened CSV table keyed by
// labels.
//
// Raw surrogate ids never leave this package unencoded.
package results

import (
	"fmt"

	"github.com/roach88/statq/internal/condition"
	"github.com/roach88/statq/internal/diag"
	"github.com/roach88/statq/internal/idcodec"
	"github.com/roach88/statq/internal/store"
)

// DebugDelimiter separates a token from its label in debug output.
const DebugDelimiter = "::"

// Raw is one fetched fact row. Dimension ids are those re-derived by the
// fetch joins; levels and groups the row has no value for are absent.
type Raw struct {
	RowID      int64
	TimePeriod condition.TimePeriod
	Level      condition.GeographicLevel
	Locations  map[condition.GeographicLevel]int64
	Filters    map[string]int64
	// Values by indicator name. Null values are absent.
	Values map[string]string
}

// Labels are the dimension rows referenced by a page, looked up after the
// page was fetched.
type Labels struct {
	Filters   map[int64]store.FilterRow
	Locations map[int64]store.LocationRow
}

// Page is one fetched page together with the dataset shape needed to
// render it.
type Page struct {
	Levels       []condition.GeographicLevel
	FilterGroups []store.FilterGroup
	Indicators   []store.IndicatorRow
	Rows         []Raw
	Labels       Labels
}

// FilterIDs returns the distinct filter ids referenced by rows.
func FilterIDs(rows []Raw) []int64 {
	seen := map[int64]bool{}
	var ids []int64
	for _, r := range rows {
		for _, id := range r.Filters {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// LocationIDs returns the distinct location ids referenced by rows.
func LocationIDs(rows []Raw) []int64 {
	seen := map[int64]bool{}
	var ids []int64
	for _, r := range rows {
		for _, id := range r.Locations {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Record is one result in the JSON output.
type Record struct {
	TimePeriod      condition.TimePeriod      `json:"timePeriod"`
	GeographicLevel condition.GeographicLevel `json:"geographicLevel"`
	// Locations by geographic level.
	Locations map[string]string `json:"locations"`
	// Filters by filter group name.
	Filters map[string]string `json:"filters"`
	// Values by indicator token.
	Values map[string]string `json:"values"`
}

// Assembler turns raw rows into records for one dataset.
type Assembler struct {
	codecs idcodec.Set
	debug  bool
}

// NewAssembler creates an assembler. With debug set, every token is
// followed by DebugDelimiter and the item's label.
func NewAssembler(codecs idcodec.Set, debug bool) *Assembler {
	return &Assembler{codecs: codecs, debug: debug}
}

// Records assembles the rows of p in order.
func (a *Assembler) Records(p Page) ([]Record, error) {
	indicatorTokens := make(map[string]string, len(p.Indicators))
	for _, ind := range p.Indicators {
		tok, err := a.codecs.Indicators.Encode(ind.ID)
		if err != nil {
			return nil, fmt.Errorf("encode indicator %s: %w", ind.Name, err)
		}
		indicatorTokens[ind.Name] = a.label(tok, ind.Name)
	}

	out := make([]Record, 0, len(p.Rows))
	for _, raw := range p.Rows {
		rec := Record{
			TimePeriod:      raw.TimePeriod,
			GeographicLevel: raw.Level,
			Locations:       make(map[string]string, len(raw.Locations)),
			Filters:         make(map[string]string, len(raw.Filters)),
			Values:          make(map[string]string, len(p.Indicators)),
		}

		for level, id := range raw.Locations {
			tok, err := a.codecs.Locations.Encode(id)
			if err != nil {
				return nil, fmt.Errorf("encode location: %w", err)
			}
			rec.Locations[string(level)] = a.label(tok, p.Labels.Locations[id].Name)
		}
		for group, id := range raw.Filters {
			tok, err := a.codecs.Filters.Encode(id)
			if err != nil {
				return nil, fmt.Errorf("encode filter: %w", err)
			}
			rec.Filters[group] = a.label(tok, p.Labels.Filters[id].Label)
		}
		for _, ind := range p.Indicators {
			if v, ok := raw.Values[ind.Name]; ok {
				rec.Values[indicatorTokens[ind.Name]] = v
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (a *Assembler) label(token, label string) string {
	if !a.debug {
		return token
	}
	return token + DebugDelimiter + label
}

// Paging is the pagination block of a response.
type Paging struct {
	Page         int   `json:"page"`
	PageSize     int   `json:"pageSize"`
	TotalResults int64 `json:"totalResults"`
	TotalPages   int64 `json:"totalPages"`
}

// NewPaging computes the page count for total results.
func NewPaging(page, pageSize int, total int64) Paging {
	p := Paging{Page: page, PageSize: pageSize, TotalResults: total}
	if size := int64(pageSize); size > 0 {
		p.TotalPages = (total + size - 1) / size
	}
	return p
}

// Document is the JSON response body.
type Document struct {
	Results   []Record        `json:"results"`
	Paging    Paging          `json:"paging"`
	Warnings  diag.Dictionary `json:"warnings,omitempty"`
	Footnotes []string        `json:"footnotes"`
}

// NoResultsPath is where the empty-result warning is recorded.
const NoResultsPath diag.Path = "results"

// WarnIfEmpty records the no-results warning when n is zero.
func WarnIfEmpty(ledger *diag.Ledger, n int) {
	if n == 0 {
		ledger.Warn(NoResultsPath, diag.NoResults())
	}
}
