package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/statq/internal/condition"
	"github.com/roach88/statq/internal/store"
)

// DataSetMeta describes the contents of a dataset version. Every id is an
// opaque token.
type DataSetMeta struct {
	DataSetID    string              `json:"dataSetId"`
	Version      string              `json:"version"`
	TotalResults int64               `json:"totalResults"`
	TimePeriods  []TimePeriodMeta    `json:"timePeriods"`
	FilterGroups []FilterGroupMeta   `json:"filters"`
	Indicators   []IndicatorMeta     `json:"indicators"`
	Locations    []LocationLevelMeta `json:"locations"`
}

// TimePeriodMeta is one time period, e.g. {AY, 2021, "2021/22"}.
type TimePeriodMeta struct {
	Code  string `json:"code"`
	Year  int    `json:"year"`
	Label string `json:"label"`
}

// FilterGroupMeta is a filter group, named by its fact table column.
type FilterGroupMeta struct {
	Name    string             `json:"id"`
	Label   string             `json:"label"`
	Options []FilterOptionMeta `json:"options"`
}

// FilterOptionMeta is a filter option. ID is the token queries use in
// filters.
type FilterOptionMeta struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	IsAggregate bool   `json:"isAggregate,omitempty"`
}

// IndicatorMeta is an indicator. Queries may name it by ID or by Name.
type IndicatorMeta struct {
	ID            string `json:"id"`
	Name          string `json:"column"`
	Label         string `json:"label"`
	Unit          string `json:"unit,omitempty"`
	DecimalPlaces *int   `json:"decimalPlaces,omitempty"`
}

// LocationLevelMeta groups the locations at one geographic level.
type LocationLevelMeta struct {
	Level   condition.GeographicLevel `json:"level"`
	Label   string                    `json:"label"`
	Options []LocationOptionMeta      `json:"options"`
}

// LocationOptionMeta is a location. Queries may address it by ID or by
// Code.
type LocationOptionMeta struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"label"`
}

// Meta returns the metadata of a dataset version; version is empty for
// the latest.
func (s *Service) Meta(ctx context.Context, dataSetID, version string) (*DataSetMeta, error) {
	ss, err := s.open(ctx, dataSetID, version)
	if err != nil {
		return nil, err
	}
	defer ss.close()

	var (
		total     int64
		filters   []store.FilterRow
		locations []store.LocationRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := ss.store.CountRows(gctx)
		total = n
		return err
	})
	g.Go(func() error {
		rows, err := ss.store.AllFilters(gctx)
		filters = rows
		return err
	})
	g.Go(func() error {
		rows, err := ss.store.AllLocations(gctx)
		locations = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.internal(ss.logger, ss.requestID, err)
	}

	out, err := buildMeta(ss, total, filters, locations)
	if err != nil {
		return nil, s.internal(ss.logger, ss.requestID, err)
	}
	ss.logger.Info("meta", "total", total)
	return out, nil
}

func buildMeta(ss *session, total int64, filters []store.FilterRow, locations []store.LocationRow) (*DataSetMeta, error) {
	meta := ss.store.Meta()
	out := &DataSetMeta{
		DataSetID:    ss.version.DataSetID,
		Version:      ss.version.Version,
		TotalResults: total,
	}

	for _, tp := range meta.TimePeriods {
		code, ok := condition.TimePeriodCode(tp.Identifier)
		if !ok {
			return nil, fmt.Errorf("time period %d: unknown identifier %q", tp.ID, tp.Identifier)
		}
		out.TimePeriods = append(out.TimePeriods, TimePeriodMeta{
			Code:  code,
			Year:  tp.Year,
			Label: condition.FormatTimePeriodLabel(code, tp.Year),
		})
	}

	groupIndex := make(map[string]int, len(meta.FilterGroups))
	for _, g := range meta.FilterGroups {
		groupIndex[g.Name] = len(out.FilterGroups)
		out.FilterGroups = append(out.FilterGroups, FilterGroupMeta{Name: g.Name, Label: g.Label})
	}
	for _, f := range filters {
		i, ok := groupIndex[f.GroupName]
		if !ok {
			continue
		}
		tok, err := ss.codecs.Filters.Encode(f.ID)
		if err != nil {
			return nil, fmt.Errorf("encode filter: %w", err)
		}
		out.FilterGroups[i].Options = append(out.FilterGroups[i].Options, FilterOptionMeta{
			ID:          tok,
			Label:       f.Label,
			IsAggregate: f.IsAggregate,
		})
	}

	for _, ind := range meta.Indicators {
		tok, err := ss.codecs.Indicators.Encode(ind.ID)
		if err != nil {
			return nil, fmt.Errorf("encode indicator: %w", err)
		}
		out.Indicators = append(out.Indicators, IndicatorMeta{
			ID:            tok,
			Name:          ind.Name,
			Label:         ind.Label,
			Unit:          ind.Unit,
			DecimalPlaces: ind.DecimalPlaces,
		})
	}

	levelIndex := make(map[condition.GeographicLevel]int, len(meta.GeographicLevels))
	for _, level := range meta.GeographicLevels {
		levelIndex[level] = len(out.Locations)
		out.Locations = append(out.Locations, LocationLevelMeta{Level: level, Label: level.Label()})
	}
	for _, loc := range locations {
		i, ok := levelIndex[loc.Level]
		if !ok {
			continue
		}
		tok, err := ss.codecs.Locations.Encode(loc.ID)
		if err != nil {
			return nil, fmt.Errorf("encode location: %w", err)
		}
		out.Locations[i].Options = append(out.Locations[i].Options, LocationOptionMeta{
			ID:   tok,
			Code: loc.Code,
			Name: loc.Name,
		})
	}
	return out, nil
}
