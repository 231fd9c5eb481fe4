package harness

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"text/template"

	"github.com/stretchr/testify/require"

	"github.com/roach88/statq/internal/catalog"
	"github.com/roach88/statq/internal/config"
	"github.com/roach88/statq/internal/diag"
	"github.com/roach88/statq/internal/engine"
	"github.com/roach88/statq/internal/results"
	"github.com/roach88/statq/internal/testutil"
)

// RequestID is the request id every scenario query runs under.
const RequestID = "test-request-harness"

// Env is a query service over the schools fixture.
//
// Scenario bodies are rendered as text/templates with these functions:
//
//	{{filter "characteristic" "Gender female"}}  filter token by group and label
//	{{location "Region" "E12000001"}}            location token by level and code
//	{{indicator "sess_possible"}}                indicator token by name
type Env struct {
	Service   *engine.Service
	DataSetID string

	filters    map[[2]string]string
	locations  map[[2]string]string
	indicators map[string]string
}

// NewEnv writes the schools fixture, registers it as version "1.0" and
// starts a service over it. Everything is torn down with t.
func NewEnv(t testing.TB, mutate ...func(*config.Config)) *Env {
	t.Helper()
	ctx := context.Background()

	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	require.NoError(t, cat.Register(ctx, catalog.DataSet{
		ID:    testutil.SchoolsDataSetID,
		Title: "Pupil absence",
		Versions: []catalog.Version{
			{Version: "1.0", Dir: testutil.WriteSchoolsDataset(t)},
		},
	}))

	svc, err := engine.New(cfg, cat,
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithRequestIDGenerator(testutil.NewFixedRequestID(RequestID)),
	)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	meta, err := svc.Meta(ctx, testutil.SchoolsDataSetID, "")
	require.NoError(t, err)

	env := &Env{
		Service:    svc,
		DataSetID:  testutil.SchoolsDataSetID,
		filters:    make(map[[2]string]string),
		locations:  make(map[[2]string]string),
		indicators: make(map[string]string),
	}
	for _, g := range meta.FilterGroups {
		for _, opt := range g.Options {
			env.filters[[2]string{g.Name, opt.Label}] = opt.ID
		}
	}
	for _, l := range meta.Locations {
		for _, opt := range l.Options {
			env.locations[[2]string{string(l.Level), opt.Code}] = opt.ID
		}
	}
	for _, ind := range meta.Indicators {
		env.indicators[ind.Name] = ind.ID
	}
	return env
}

func (e *Env) funcs() template.FuncMap {
	return template.FuncMap{
		"filter": func(group, label string) (string, error) {
			if tok, ok := e.filters[[2]string{group, label}]; ok {
				return tok, nil
			}
			return "", fmt.Errorf("no filter %q in group %q", label, group)
		},
		"location": func(level, code string) (string, error) {
			if tok, ok := e.locations[[2]string{level, code}]; ok {
				return tok, nil
			}
			return "", fmt.Errorf("no %s location with code %q", level, code)
		},
		"indicator": func(name string) (string, error) {
			if tok, ok := e.indicators[name]; ok {
				return tok, nil
			}
			return "", fmt.Errorf("no indicator %q", name)
		},
	}
}

// RenderBody expands the token functions in a scenario body.
func (e *Env) RenderBody(name, body string) ([]byte, error) {
	tmpl, err := template.New(name).Funcs(e.funcs()).Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse body template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, nil); err != nil {
		return nil, fmt.Errorf("render body: %w", err)
	}
	return buf.Bytes(), nil
}

// Run executes a scenario and checks its expectations and assertions.
// The returned error is reserved for scenarios that cannot run at all;
// mismatches are recorded on the Result.
func Run(ctx context.Context, env *Env, scenario *Scenario) (*Result, error) {
	body, err := env.RenderBody(scenario.Name, scenario.Request.Body)
	if err != nil {
		return nil, err
	}

	req := engine.Request{
		DataSetID: scenario.Request.DataSet,
		Version:   scenario.Request.Version,
		Body:      body,
		Page:      scenario.Request.Page,
		PageSize:  scenario.Request.PageSize,
		Debug:     scenario.Request.Debug,
	}
	if req.DataSetID == "" {
		req.DataSetID = env.DataSetID
	}

	result := NewResult()
	resp, err := env.Service.Query(ctx, req)
	result.Err = err

	switch {
	case err == nil:
		result.Outcome = OutcomeOK
		result.Response = resp
	case engine.IsValidationError(err):
		result.Outcome = OutcomeValidation
	case engine.IsNotFoundError(err):
		result.Outcome = OutcomeNotFound
	default:
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	if result.Outcome != scenario.Expect.Outcome {
		result.AddError(fmt.Sprintf("expected outcome %s, got %s (%v)", scenario.Expect.Outcome, result.Outcome, err))
		return result, nil
	}

	if result.Outcome == OutcomeValidation {
		var ve *engine.ValidationError
		errors.As(err, &ve)
		checkIssues(result, "errors", scenario.Expect.Errors, issueCodes(ve.Errors))
		return result, nil
	}
	if result.Outcome == OutcomeNotFound {
		return result, nil
	}

	var buf bytes.Buffer
	if err := results.WriteCSV(&buf, resp.Page); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	result.CSV = buf.Bytes()
	if result.Rows, err = parseRows(result.CSV); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	checkExpect(result, scenario.Expect)
	for i, a := range scenario.Assertions {
		if err := evaluateAssertion(result.Rows, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return result, nil
}

func checkExpect(result *Result, want Expect) {
	doc := result.Response.Document

	if want.TotalResults != nil && *want.TotalResults != doc.Paging.TotalResults {
		result.AddError(fmt.Sprintf("expected totalResults %d, got %d", *want.TotalResults, doc.Paging.TotalResults))
	}
	if want.TotalPages != nil && *want.TotalPages != doc.Paging.TotalPages {
		result.AddError(fmt.Sprintf("expected totalPages %d, got %d", *want.TotalPages, doc.Paging.TotalPages))
	}
	if want.Rows != nil && *want.Rows != len(doc.Results) {
		result.AddError(fmt.Sprintf("expected %d rows, got %d", *want.Rows, len(doc.Results)))
	}
	checkIssues(result, "warnings", want.Warnings, issueCodes(doc.Warnings))
}

// checkIssues compares path → codes maps. A nil want skips the check.
func checkIssues(result *Result, kind string, want, got map[string][]string) {
	if want == nil {
		return
	}
	if !reflect.DeepEqual(want, got) {
		result.AddError(fmt.Sprintf("expected %s %v, got %v", kind, formatIssues(want), formatIssues(got)))
	}
}

func issueCodes(d diag.Dictionary) map[string][]string {
	out := make(map[string][]string, len(d))
	for path, issues := range d {
		for _, issue := range issues {
			out[path] = append(out[path], issue.Code)
		}
	}
	return out
}

func formatIssues(m map[string][]string) string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	parts := make([]string, len(paths))
	for i, p := range paths {
		parts[i] = p + ":" + strings.Join(m[p], ",")
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func parseRows(data []byte) ([]map[string]string, error) {
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("parse csv: missing header")
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			row[col] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
