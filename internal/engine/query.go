package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/statq/internal/condition"
	"github.com/roach88/statq/internal/diag"
	"github.com/roach88/statq/internal/querysql"
	"github.com/roach88/statq/internal/resolve"
	"github.com/roach88/statq/internal/results"
	"github.com/roach88/statq/internal/store"
)

// Request is one query against a dataset.
type Request struct {
	DataSetID string
	// Version is empty for the latest version.
	Version string

	// Body is the JSON query document: facets, indicators and sort.
	Body []byte

	// Page is 1-based. Zero means the first page.
	Page int
	// PageSize zero means paging.defaultPageSize.
	PageSize int

	// Debug appends labels to tokens. Rejected unless debug.allowed is set.
	Debug bool
}

// Response is one page of results.
type Response struct {
	RequestID string
	Version   string

	// Document is the JSON body.
	Document results.Document
	// Page is the raw page, for CSV output.
	Page results.Page
}

// Explanation is a compiled query that was not executed.
type Explanation struct {
	RequestID string
	Version   string

	CountSQL    string
	CountParams []any
	FetchSQL    string
	FetchParams []any

	Warnings diag.Dictionary
}

// plan is a compiled, validated query.
type plan struct {
	fetch      querysql.Fetch
	page       int
	pageSize   int
	indicators []store.IndicatorRow
	debug      bool
}

// Query runs req and returns one page of results.
//
// Execution is gated: if parsing, resolution or compilation recorded any
// error, no SQL runs and a *ValidationError carries every error.
func (s *Service) Query(ctx context.Context, req Request) (*Response, error) {
	ss, err := s.open(ctx, req.DataSetID, req.Version)
	if err != nil {
		return nil, err
	}
	defer ss.close()

	ledger := diag.NewLedger()
	p, err := s.plan(ctx, ss, req, ledger)
	if err != nil {
		return nil, s.internal(ss.logger, ss.requestID, err)
	}
	if ledger.HasErrors() {
		ss.logger.Debug("query rejected", "paths", ledger.Errors().Paths())
		return nil, newValidationError(ledger)
	}

	var total int64
	var rows []results.Raw

	// Count and fetch are independent reads of the same predicate.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := countRows(gctx, ss.store, p.fetch.Where)
		total = n
		return err
	})
	g.Go(func() error {
		r, err := fetchRows(gctx, ss.store, p.fetch)
		rows = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.internal(ss.logger, ss.requestID, err)
	}

	labels, err := pageLabels(ctx, ss.store, rows)
	if err != nil {
		return nil, s.internal(ss.logger, ss.requestID, err)
	}

	meta := ss.store.Meta()
	page := results.Page{
		Levels:       meta.GeographicLevels,
		FilterGroups: meta.FilterGroups,
		Indicators:   p.indicators,
		Rows:         rows,
		Labels:       labels,
	}
	records, err := results.NewAssembler(ss.codecs, p.debug).Records(page)
	if err != nil {
		return nil, s.internal(ss.logger, ss.requestID, err)
	}
	results.WarnIfEmpty(ledger, len(records))

	ss.logger.Info("query",
		"total", total,
		"page", p.page,
		"page_size", p.pageSize,
		"rows", len(records))

	return &Response{
		RequestID: ss.requestID,
		Version:   ss.version.Version,
		Document: results.Document{
			Results:   records,
			Paging:    results.NewPaging(p.page, p.pageSize, total),
			Warnings:  ledger.Warnings(),
			Footnotes: []string{},
		},
		Page: page,
	}, nil
}

// Explain compiles req and returns its statements without running them.
func (s *Service) Explain(ctx context.Context, req Request) (*Explanation, error) {
	ss, err := s.open(ctx, req.DataSetID, req.Version)
	if err != nil {
		return nil, err
	}
	defer ss.close()

	ledger := diag.NewLedger()
	p, err := s.plan(ctx, ss, req, ledger)
	if err != nil {
		return nil, s.internal(ss.logger, ss.requestID, err)
	}
	if ledger.HasErrors() {
		return nil, newValidationError(ledger)
	}

	countSQL, countParams := querysql.CountSQL(p.fetch.Where)
	fetchSQL, fetchParams := querysql.FetchSQL(p.fetch)
	return &Explanation{
		RequestID:   ss.requestID,
		Version:     ss.version.Version,
		CountSQL:    countSQL,
		CountParams: countParams,
		FetchSQL:    fetchSQL,
		FetchParams: fetchParams,
		Warnings:    ledger.Warnings(),
	}, nil
}

// plan parses, resolves and compiles req, recording every client fault in
// ledger. The returned error is reserved for storage faults.
func (s *Service) plan(ctx context.Context, ss *session, req Request, ledger *diag.Ledger) (*plan, error) {
	p := &plan{debug: req.Debug}
	p.page, p.pageSize = s.validatePaging(req, ledger)
	if req.Debug && !s.debugAllowed {
		ledger.Error(diag.Root("debug"), diag.AllowedValue("true", []string{"false"}))
	}

	q := condition.ParseQuery(req.Body, ledger)
	meta := ss.store.Meta()

	resolved, err := resolve.Resolve(ctx, q.Facets, ss.store, ss.codecs)
	if err != nil {
		return nil, err
	}

	indicators, missing := resolve.Indicators(q.Indicators, meta, ss.codecs.Indicators)
	if len(missing) > 0 {
		ledger.Error(diag.Root("indicators"), diag.NotFound("indicators", missing))
	}
	p.indicators = indicators

	order := resolveSort(q.Sort, meta, ledger)
	where := querysql.NewCompiler(meta, resolved, ledger).Compile(q.Facets)

	names := make([]string, len(indicators))
	for i, ind := range indicators {
		names[i] = ind.Name
	}
	p.fetch = querysql.Fetch{
		Where:        where,
		Order:        order,
		Levels:       meta.GeographicLevels,
		FilterGroups: meta.FilterGroupNames(),
		Indicators:   names,
		Limit:        p.pageSize,
		Offset:       (p.page - 1) * p.pageSize,
	}
	return p, nil
}

// validatePaging applies defaults and bounds. Invalid values are recorded
// and replaced so planning can continue.
func (s *Service) validatePaging(req Request, ledger *diag.Ledger) (page, pageSize int) {
	page, pageSize = req.Page, req.PageSize
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = s.paging.DefaultPageSize
	}

	if page < 1 {
		ledger.Error(diag.Root("page"), diag.NumberMin(1))
		page = 1
	}
	if pageSize < 1 {
		ledger.Error(diag.Root("pageSize"), diag.NumberMin(1))
		pageSize = 1
	} else if pageSize > s.paging.MaxPageSize {
		ledger.Error(diag.Root("pageSize"), diag.NumberMax(s.paging.MaxPageSize))
		pageSize = s.paging.MaxPageSize
	}
	return page, pageSize
}

func countRows(ctx context.Context, st *store.Store, where querysql.Fragment) (int64, error) {
	query, args := querysql.CountSQL(where)
	var n int64
	if err := st.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// pageLabels looks up the dimension rows referenced by a fetched page.
func pageLabels(ctx context.Context, st *store.Store, rows []results.Raw) (results.Labels, error) {
	labels := results.Labels{
		Filters:   map[int64]store.FilterRow{},
		Locations: map[int64]store.LocationRow{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		filters, err := st.FiltersByID(gctx, results.FilterIDs(rows))
		if err != nil {
			return err
		}
		labels.Filters = filters
		return nil
	})
	g.Go(func() error {
		ids := results.LocationIDs(rows)
		if len(ids) == 0 {
			return nil
		}
		locations, err := st.LocationsByIDOrCode(gctx, ids, nil)
		if err != nil {
			return err
		}
		for _, loc := range locations {
			labels.Locations[loc.ID] = loc
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return results.Labels{}, fmt.Errorf("page labels: %w", err)
	}
	return labels, nil
}
