package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and, when the scenario sets golden,
// compares its labelled CSV page against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, env *Env, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), env, scenario)
	if err != nil {
		return nil, err
	}
	if scenario.Golden && result.Outcome == OutcomeOK {
		AssertGolden(t, scenario.Name, result)
	}
	return result, nil
}

// AssertGolden compares a result's CSV against the named golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, result.CSV)
}
