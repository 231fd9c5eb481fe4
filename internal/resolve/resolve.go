// Package resolve maps the opaque filter and location tokens of a condition
// tree to dimension rows.
//
// Resolution is two passes over the tree. The collector pass gathers every
// token referenced anywhere, then one bulk lookup per dimension runs (the
// two concurrently). The compiler pass in querysql reads the result, so a
// token repeated across clauses is looked up once.
package resolve

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/statq/internal/condition"
	"github.com/roach88/statq/internal/diag"
	"github.com/roach88/statq/internal/idcodec"
	"github.com/roach88/statq/internal/store"
)

// Lookup is the dimension access resolution needs. *store.Store
// implements it.
type Lookup interface {
	FiltersByID(ctx context.Context, ids []int64) (map[int64]store.FilterRow, error)
	LocationsByIDOrCode(ctx context.Context, ids []int64, codes []string) ([]store.LocationRow, error)
}

// Tokens are the distinct raw tokens referenced by a condition tree, in
// first-seen order.
type Tokens struct {
	Filters   []string
	Locations []string
}

// Collect is the collector pass. Location tokens include those under
// parentLocations.
func Collect(clause condition.Clause) Tokens {
	var t Tokens
	seenFilters := map[string]bool{}
	seenLocations := map[string]bool{}

	addLocations := func(_ diag.Path, c condition.Comparison[string]) {
		for _, tok := range c.Values {
			if !seenLocations[tok] {
				seenLocations[tok] = true
				t.Locations = append(t.Locations, tok)
			}
		}
	}

	condition.Walk(clause, "", condition.Visitor{
		Filters: func(_ diag.Path, c condition.Comparison[string]) {
			for _, tok := range c.Values {
				if !seenFilters[tok] {
					seenFilters[tok] = true
					t.Filters = append(t.Filters, tok)
				}
			}
		},
		Locations:       addLocations,
		ParentLocations: addLocations,
	})
	return t
}

// Resolved holds the token to row maps. Tokens absent from a map did not
// resolve.
type Resolved struct {
	filters   map[string]store.FilterRow
	locations map[string][]store.LocationRow
}

// Filter returns the filter row a token resolved to.
func (r *Resolved) Filter(token string) (store.FilterRow, bool) {
	row, ok := r.filters[token]
	return row, ok
}

// Location returns the location rows a token resolved to. An id token
// resolves to one row; a code may resolve to one row per level it
// appears at.
func (r *Resolved) Location(token string) ([]store.LocationRow, bool) {
	rows, ok := r.locations[token]
	return rows, ok
}

// Resolve runs both passes' lookups for clause.
//
// Filter tokens are decoded with the filters codec. Location tokens that
// decode with the locations codec are ids; any other location token is
// treated as a geographic code.
func Resolve(ctx context.Context, clause condition.Clause, lookup Lookup, codecs idcodec.Set) (*Resolved, error) {
	tokens := Collect(clause)
	r := &Resolved{
		filters:   make(map[string]store.FilterRow, len(tokens.Filters)),
		locations: make(map[string][]store.LocationRow, len(tokens.Locations)),
	}

	filterIDs := map[string]int64{}
	var ids []int64
	for _, tok := range tokens.Filters {
		if id, ok := codecs.Filters.Decode(tok); ok {
			filterIDs[tok] = id
			ids = append(ids, id)
		}
	}

	locationIDs := map[string]int64{}
	locationCodes := map[string]string{}
	var locIDs []int64
	var codes []string
	for _, tok := range tokens.Locations {
		if id, ok := codecs.Locations.Decode(tok); ok {
			locationIDs[tok] = id
			locIDs = append(locIDs, id)
			continue
		}
		code := condition.Normalize(tok)
		if code == "" {
			continue
		}
		locationCodes[tok] = code
		codes = append(codes, code)
	}

	var filterRows map[int64]store.FilterRow
	var locationRows []store.LocationRow

	g, gctx := errgroup.WithContext(ctx)
	if len(ids) > 0 {
		g.Go(func() error {
			rows, err := lookup.FiltersByID(gctx, ids)
			if err != nil {
				return fmt.Errorf("lookup filters: %w", err)
			}
			filterRows = rows
			return nil
		})
	}
	if len(locIDs) > 0 || len(codes) > 0 {
		g.Go(func() error {
			rows, err := lookup.LocationsByIDOrCode(gctx, locIDs, codes)
			if err != nil {
				return fmt.Errorf("lookup locations: %w", err)
			}
			locationRows = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for tok, id := range filterIDs {
		if row, ok := filterRows[id]; ok {
			r.filters[tok] = row
		}
	}

	byID := make(map[int64]store.LocationRow, len(locationRows))
	byCode := make(map[string][]store.LocationRow)
	for _, row := range locationRows {
		byID[row.ID] = row
		byCode[row.Code] = append(byCode[row.Code], row)
	}
	for tok, id := range locationIDs {
		if row, ok := byID[id]; ok {
			r.locations[tok] = []store.LocationRow{row}
		}
	}
	for tok, code := range locationCodes {
		if rows := byCode[code]; len(rows) > 0 {
			r.locations[tok] = rows
		}
	}

	return r, nil
}

// Indicators resolves indicator entries, which are tokens or column names.
// It returns the distinct rows in request order and the entries that
// matched nothing.
func Indicators(entries []string, meta *store.Meta, codec *idcodec.Codec) ([]store.IndicatorRow, []string) {
	var rows []store.IndicatorRow
	var missing []string
	seen := map[int64]bool{}

	for _, entry := range entries {
		row, ok := indicator(entry, meta, codec)
		if !ok {
			missing = append(missing, entry)
			continue
		}
		if !seen[row.ID] {
			seen[row.ID] = true
			rows = append(rows, row)
		}
	}
	return rows, missing
}

func indicator(entry string, meta *store.Meta, codec *idcodec.Codec) (store.IndicatorRow, bool) {
	if id, ok := codec.Decode(entry); ok {
		if row, ok := meta.IndicatorByID(id); ok {
			return row, true
		}
	}
	return meta.IndicatorByName(entry)
}
