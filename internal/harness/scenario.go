package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is one query run end-to-end against a fixture dataset, with
// the expected outcome and assertions over the returned page.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Request Request `yaml:"request"`

	Expect Expect `yaml:"expect"`

	// Assertions run over the page rendered as labelled CSV rows.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Golden compares the page's CSV against testdata/golden/{name}.golden.
	Golden bool `yaml:"golden,omitempty"`
}

// Request is the query a scenario sends.
type Request struct {
	// DataSet defaults to the fixture's dataset id.
	DataSet  string `yaml:"dataSet,omitempty"`
	Version  string `yaml:"version,omitempty"`
	Page     int    `yaml:"page,omitempty"`
	PageSize int    `yaml:"pageSize,omitempty"`
	Debug    bool   `yaml:"debug,omitempty"`

	// Body is the JSON query document. It is a text/template; see Env for
	// the token functions available to it.
	Body string `yaml:"body"`
}

// Expect is the expected outcome of a scenario's request.
type Expect struct {
	// Outcome is ok (default), validation or not_found.
	Outcome string `yaml:"outcome,omitempty"`

	TotalResults *int64 `yaml:"totalResults,omitempty"`
	TotalPages   *int64 `yaml:"totalPages,omitempty"`
	Rows         *int   `yaml:"rows,omitempty"`

	// Errors and Warnings map paths to issue codes. Errors apply to the
	// validation outcome; warnings to ok. When set they must match exactly.
	Errors   map[string][]string `yaml:"errors,omitempty"`
	Warnings map[string][]string `yaml:"warnings,omitempty"`
}

// Outcome values.
const (
	OutcomeOK         = "ok"
	OutcomeValidation = "validation"
	OutcomeNotFound   = "not_found"
)

// Assertion validates the returned rows. Field names are CSV columns such
// as "geographic_level", "region_name" or "characteristic".
type Assertion struct {
	// Type is one of all_rows, sorted, distinct or contains_row.
	Type string `yaml:"type"`

	// Field is the column checked by all_rows, sorted and distinct.
	Field string `yaml:"field,omitempty"`

	// Equals is the value every row must hold (all_rows).
	Equals string `yaml:"equals,omitempty"`

	// Order is asc or desc (sorted).
	Order string `yaml:"order,omitempty"`

	// Count is the number of distinct values (distinct).
	Count int `yaml:"count,omitempty"`

	// Values is a subset of columns one row must match (contains_row).
	Values map[string]string `yaml:"values,omitempty"`
}

// Assertion type constants.
const (
	AssertAllRows     = "all_rows"
	AssertSorted      = "sorted"
	AssertDistinct    = "distinct"
	AssertContainsRow = "contains_row"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	sort.Strings(paths)

	seen := make(map[string]string, len(paths))
	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(path), s.Name, prev)
		}
		seen[s.Name] = filepath.Base(path)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if strings.TrimSpace(s.Request.Body) == "" {
		return fmt.Errorf("request.body is required")
	}

	switch s.Expect.Outcome {
	case "":
		s.Expect.Outcome = OutcomeOK
	case OutcomeOK, OutcomeValidation, OutcomeNotFound:
	default:
		return fmt.Errorf("expect.outcome: unknown outcome %q", s.Expect.Outcome)
	}
	if s.Expect.Outcome != OutcomeValidation && len(s.Expect.Errors) > 0 {
		return fmt.Errorf("expect.errors requires outcome %q", OutcomeValidation)
	}
	if s.Expect.Outcome != OutcomeOK {
		if len(s.Assertions) > 0 {
			return fmt.Errorf("assertions require outcome %q", OutcomeOK)
		}
		if s.Golden {
			return fmt.Errorf("golden requires outcome %q", OutcomeOK)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertAllRows:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for all_rows", index)
		}
	case AssertSorted:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for sorted", index)
		}
		if a.Order != "asc" && a.Order != "desc" {
			return fmt.Errorf("assertions[%d]: order must be asc or desc for sorted", index)
		}
	case AssertDistinct:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for distinct", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for distinct", index)
		}
	case AssertContainsRow:
		if len(a.Values) == 0 {
			return fmt.Errorf("assertions[%d]: values are required for contains_row", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
