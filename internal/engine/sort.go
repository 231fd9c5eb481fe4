package engine

import (
	"github.com/roach88/statq/internal/condition"
	"github.com/roach88/statq/internal/diag"
	"github.com/roach88/statq/internal/querysql"
	"github.com/roach88/statq/internal/store"
)

// defaultOrder is newest time period first.
var defaultOrder = []querysql.OrderKey{{TimePeriod: true, Desc: true}}

// resolveSort maps requested sort entries to order keys. A name must be
// TimePeriod, a geographic level of the dataset, or one of its filter
// groups; anything else is recorded at sort[i].name with the allowed set.
func resolveSort(sorts []condition.Sort, meta *store.Meta, ledger *diag.Ledger) []querysql.OrderKey {
	if len(sorts) == 0 {
		return defaultOrder
	}

	keys := make([]querysql.OrderKey, 0, len(sorts))
	for i, s := range sorts {
		key := querysql.OrderKey{Desc: s.Order == condition.Desc}

		if s.Name == condition.SortTimePeriod {
			key.TimePeriod = true
		} else if level, ok := condition.ParseGeographicLevel(s.Name); ok && meta.HasLevel(level) {
			key.Level = level
		} else if _, ok := meta.FilterGroup(s.Name); ok {
			key.FilterGroup = s.Name
		} else {
			ledger.Error(diag.Root("sort").Index(i).Field("name"), diag.AllowedValue(s.Name, allowedSortNames(meta)))
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func allowedSortNames(meta *store.Meta) []string {
	names := []string{condition.SortTimePeriod}
	names = append(names, meta.GeographicLevelNames()...)
	return append(names, meta.FilterGroupNames()...)
}
