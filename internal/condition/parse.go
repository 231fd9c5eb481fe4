package condition

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/statq/internal/diag"
)

var (
	combinatorKeys = []string{"and", "or", "not"}

	criteriaKeys = []string{
		string(FacetFilters),
		string(FacetLocations),
		string(FacetParentLocations),
		string(FacetGeographicLevels),
		string(FacetTimePeriods),
	}

	equalityComparators = []Comparator{Eq, NotEq, In, NotIn}
)

// ParseQuery decodes a JSON query document. Every problem is recorded in
// ledger; the returned Query holds whatever could be parsed and is only
// meaningful when the ledger has no errors.
func ParseQuery(data []byte, ledger *diag.Ledger) *Query {
	doc, err := decodeJSON(data)
	if err != nil {
		ledger.Error("", diag.Malformed("Request body is not valid JSON: "+err.Error()))
		return &Query{Facets: Criteria{}}
	}
	return parseDocument(doc, ledger)
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return doc, nil
}

type parser struct {
	ledger *diag.Ledger
}

func parseDocument(doc any, ledger *diag.Ledger) *Query {
	p := &parser{ledger: ledger}
	q := &Query{Facets: Criteria{}}

	obj, ok := doc.(map[string]any)
	if !ok {
		ledger.Error("", diag.Type("an object"))
		return q
	}

	for _, key := range sortedKeys(obj) {
		switch key {
		case "facets", "indicators", "sort":
		default:
			ledger.Error(diag.Root(key), diag.UnknownField(key))
		}
	}

	if raw, present := obj["facets"]; present {
		q.Facets = p.clause(raw, diag.Root("facets"))
	} else {
		ledger.Error(diag.Root("facets"), diag.Required())
	}

	if raw, present := obj["indicators"]; present {
		q.Indicators = p.indicators(raw, diag.Root("indicators"))
	} else {
		ledger.Error(diag.Root("indicators"), diag.Required())
	}

	if raw, present := obj["sort"]; present && raw != nil {
		q.Sort = p.sorts(raw, diag.Root("sort"))
	}

	return q
}

func (p *parser) clause(raw any, path diag.Path) Clause {
	obj, ok := raw.(map[string]any)
	if !ok {
		p.ledger.Error(path, diag.Type("an object"))
		return Criteria{}
	}

	var combinators []string
	for _, key := range combinatorKeys {
		if _, present := obj[key]; present {
			combinators = append(combinators, key)
		}
	}

	if len(combinators) > 0 {
		if len(obj) != 1 {
			p.ledger.Error(path, diag.OneOf())
			return Criteria{}
		}
		switch key := combinators[0]; key {
		case "and":
			return And{Clauses: p.clauseList(obj[key], path.Field(key))}
		case "or":
			return Or{Clauses: p.clauseList(obj[key], path.Field(key))}
		default:
			return Not{Clause: p.clause(obj[key], path.Field(key))}
		}
	}

	return p.criteria(obj, path)
}

func (p *parser) clauseList(raw any, path diag.Path) []Clause {
	items, ok := raw.([]any)
	if !ok {
		p.ledger.Error(path, diag.Type("an array"))
		return nil
	}
	clauses := make([]Clause, 0, len(items))
	for i, item := range items {
		clauses = append(clauses, p.clause(item, path.Index(i)))
	}
	return clauses
}

func (p *parser) criteria(obj map[string]any, path diag.Path) Criteria {
	var c Criteria

	for _, key := range sortedKeys(obj) {
		if !contains(criteriaKeys, key) {
			p.ledger.Error(path.Field(key), diag.UnknownField(key))
		}
	}

	if raw, present := obj[string(FacetFilters)]; present {
		c.Filters = parseFacet(p, raw, path.Field(string(FacetFilters)), equalityComparators, p.token)
	}
	if raw, present := obj[string(FacetLocations)]; present {
		c.Locations = parseFacet(p, raw, path.Field(string(FacetLocations)), equalityComparators, p.token)
	}
	if raw, present := obj[string(FacetParentLocations)]; present {
		c.ParentLocations = parseFacet(p, raw, path.Field(string(FacetParentLocations)), equalityComparators, p.token)
	}
	if raw, present := obj[string(FacetGeographicLevels)]; present {
		c.GeographicLevels = parseFacet(p, raw, path.Field(string(FacetGeographicLevels)), equalityComparators, p.geographicLevel)
	}
	if raw, present := obj[string(FacetTimePeriods)]; present {
		c.TimePeriods = parseFacet(p, raw, path.Field(string(FacetTimePeriods)), comparatorOrder, p.timePeriod)
	}

	return c
}

// parseFacet reads a {comparator: value(s)} object. Comparisons come out in
// canonical comparator order. Values that fail to parse are dropped after
// their issue is recorded.
func parseFacet[T any](p *parser, raw any, path diag.Path, allowed []Comparator, value func(any, diag.Path) (T, bool)) Facet[T] {
	obj, ok := raw.(map[string]any)
	if !ok {
		p.ledger.Error(path, diag.Type("an object"))
		return nil
	}

	for _, key := range sortedKeys(obj) {
		if !containsComparator(allowed, Comparator(key)) {
			p.ledger.Error(path.Field(key), diag.UnknownField(key))
		}
	}

	facet := Facet[T]{}
	for _, cmp := range allowed {
		rawValue, present := obj[string(cmp)]
		if !present {
			continue
		}
		cmpPath := path.Field(string(cmp))

		if !cmp.IsList() {
			if v, ok := value(rawValue, cmpPath); ok {
				facet = append(facet, Comparison[T]{Comparator: cmp, Values: []T{v}})
			}
			continue
		}

		items, ok := rawValue.([]any)
		if !ok {
			p.ledger.Error(cmpPath, diag.Type("an array"))
			continue
		}
		values := make([]T, 0, len(items))
		for i, item := range items {
			if v, ok := value(item, cmpPath.Index(i)); ok {
				values = append(values, v)
			}
		}
		facet = append(facet, Comparison[T]{Comparator: cmp, Values: values})
	}
	return facet
}

func (p *parser) token(raw any, path diag.Path) (string, bool) {
	s, ok := raw.(string)
	if !ok {
		p.ledger.Error(path, diag.Type("a string"))
		return "", false
	}
	return s, true
}

func (p *parser) geographicLevel(raw any, path diag.Path) (GeographicLevel, bool) {
	s, ok := raw.(string)
	if !ok {
		p.ledger.Error(path, diag.Type("a string"))
		return "", false
	}
	level, ok := ParseGeographicLevel(strings.TrimSpace(s))
	if !ok {
		p.ledger.Error(path, diag.Enum(s, GeographicLevelNames()))
		return "", false
	}
	return level, true
}

func (p *parser) timePeriod(raw any, path diag.Path) (TimePeriod, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		p.ledger.Error(path, diag.Type("an object"))
		return TimePeriod{}, false
	}

	for _, key := range sortedKeys(obj) {
		if key != "year" && key != "code" {
			p.ledger.Error(path.Field(key), diag.UnknownField(key))
		}
	}

	valid := true
	var tp TimePeriod

	switch year := obj["year"].(type) {
	case nil:
		p.ledger.Error(path.Field("year"), diag.Required())
		valid = false
	case json.Number:
		n, err := year.Int64()
		if err != nil || n < 0 || n > math.MaxInt32 {
			p.ledger.Error(path.Field("year"), diag.Type("a positive integer"))
			valid = false
		}
		tp.Year = int(n)
	default:
		p.ledger.Error(path.Field("year"), diag.Type("a positive integer"))
		valid = false
	}

	switch code := obj["code"].(type) {
	case nil:
		p.ledger.Error(path.Field("code"), diag.Required())
		valid = false
	case string:
		if _, ok := TimePeriodIdentifier(code); !ok {
			p.ledger.Error(path.Field("code"), diag.Enum(code, TimePeriodCodes()))
			valid = false
		}
		tp.Code = code
	default:
		p.ledger.Error(path.Field("code"), diag.Type("a string"))
		valid = false
	}

	return tp, valid
}

func (p *parser) indicators(raw any, path diag.Path) []string {
	items, ok := raw.([]any)
	if !ok {
		p.ledger.Error(path, diag.Type("an array"))
		return nil
	}
	if len(items) == 0 {
		p.ledger.Error(path, diag.ArrayNotEmpty())
		return nil
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			p.ledger.Error(path.Index(i), diag.Type("a string"))
			continue
		}
		if strings.TrimSpace(s) == "" {
			p.ledger.Error(path, diag.ArrayNoBlankStrings())
			continue
		}
		out = append(out, Normalize(s))
	}
	return out
}

func (p *parser) sorts(raw any, path diag.Path) []Sort {
	items, ok := raw.([]any)
	if !ok {
		p.ledger.Error(path, diag.Type("an array"))
		return nil
	}

	out := make([]Sort, 0, len(items))
	for i, item := range items {
		itemPath := path.Index(i)
		obj, ok := item.(map[string]any)
		if !ok {
			p.ledger.Error(itemPath, diag.Type("an object"))
			continue
		}

		for _, key := range sortedKeys(obj) {
			if key != "name" && key != "order" {
				p.ledger.Error(itemPath.Field(key), diag.UnknownField(key))
			}
		}

		valid := true
		var s Sort

		switch name := obj["name"].(type) {
		case nil:
			p.ledger.Error(itemPath.Field("name"), diag.Required())
			valid = false
		case string:
			if strings.TrimSpace(name) == "" {
				p.ledger.Error(itemPath.Field("name"), diag.Type("a non-blank string"))
				valid = false
			}
			s.Name = Normalize(name)
		default:
			p.ledger.Error(itemPath.Field("name"), diag.Type("a string"))
			valid = false
		}

		switch order := obj["order"].(type) {
		case nil:
			p.ledger.Error(itemPath.Field("order"), diag.Required())
			valid = false
		case string:
			if order != string(Asc) && order != string(Desc) {
				p.ledger.Error(itemPath.Field("order"), diag.Enum(order, []string{string(Asc), string(Desc)}))
				valid = false
			}
			s.Order = SortOrder(order)
		default:
			p.ledger.Error(itemPath.Field("order"), diag.Type("a string"))
			valid = false
		}

		if valid {
			out = append(out, s)
		}
	}
	return out
}

// Normalize trims and NFC-normalizes a client string so visually identical
// codes and names compare equal to the dimension data.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func containsComparator(list []Comparator, c Comparator) bool {
	for _, item := range list {
		if item == c {
			return true
		}
	}
	return false
}
