package results

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/roach88/statq/internal/condition"
)

// Header returns the CSV columns for p: time period, time identifier and
// geographic level, then a code and name column per level, one column per
// filter group, and one per indicator.
func Header(p Page) []string {
	cols := []string{"time_period", "time_identifier", "geographic_level"}
	for _, level := range p.Levels {
		lc := level.Columns()
		cols = append(cols, lc.Code, lc.Name)
	}
	for _, g := range p.FilterGroups {
		cols = append(cols, g.Name)
	}
	for _, ind := range p.Indicators {
		cols = append(cols, ind.Name)
	}
	return cols
}

// WriteCSV writes p as one row per fact record. Dimension values are
// written as labels, not tokens.
func WriteCSV(w io.Writer, p Page) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(p)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, raw := range p.Rows {
		if err := cw.Write(row(p, raw)); err != nil {
			return fmt.Errorf("write csv row %d: %w", raw.RowID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func row(p Page, raw Raw) []string {
	identifier, _ := condition.TimePeriodIdentifier(raw.TimePeriod.Code)
	out := []string{
		condition.FormatTimePeriodLabel(raw.TimePeriod.Code, raw.TimePeriod.Year),
		identifier,
		raw.Level.Label(),
	}

	for _, level := range p.Levels {
		var code, name string
		if id, ok := raw.Locations[level]; ok {
			loc := p.Labels.Locations[id]
			code, name = loc.Code, loc.Name
		}
		out = append(out, code, name)
	}
	for _, g := range p.FilterGroups {
		var label string
		if id, ok := raw.Filters[g.Name]; ok {
			label = p.Labels.Filters[id].Label
		}
		out = append(out, label)
	}
	for _, ind := range p.Indicators {
		out = append(out, raw.Values[ind.Name])
	}
	return out
}
