package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statq/internal/config"
	"github.com/roach88/statq/internal/testutil"
)

const countryQuery = `{"facets": {"geographicLevels": {"eq": "Country"}}, "indicators": ["sess_authorised"]}`

// writeConfig writes the schools fixture and a config declaring it, and
// returns the config path. The catalog is not synced.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dataDir := testutil.WriteSchoolsDataset(t)

	src := fmt.Sprintf(`
catalog: %q
dataSets: %q: {
	title: "Pupil absence"
	versions: [{version: "1.0", dir: %q}]
}
`, filepath.Join(dir, "statq.db"), testutil.SchoolsDataSetID, dataDir)

	path := filepath.Join(dir, "statq.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

// syncedConfig writes a config and registers its datasets.
func syncedConfig(t *testing.T) string {
	t.Helper()
	path := writeConfig(t)
	_, _, err := execute(t, "", "--config", path, "catalog", "sync")
	require.NoError(t, err)
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decodeResponse(t *testing.T, out string) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "statq", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{{"query"}, {"explain"}, {"meta"}, {"catalog"}, {"catalog", "sync"}, {"catalog", "list"}}

	for _, path := range commands {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "json", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, config.DefaultPath, configFlag.DefValue)
}

func TestQueryCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	queryCmd, _, err := cmd.Find([]string{"query"})
	require.NoError(t, err)

	for _, name := range []string{"version", "body", "page", "page-size", "debug"} {
		assert.NotNil(t, queryCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "-", queryCmd.Flags().Lookup("body").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "", "--format", "xml", "catalog", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestCatalogSyncAndList(t *testing.T) {
	path := writeConfig(t)

	out, _, err := execute(t, "", "--config", path, "catalog", "sync")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, map[string]any{"dataSets": float64(1), "versions": float64(1)}, resp["data"])

	out, _, err = execute(t, "", "--config", path, "catalog", "list")
	require.NoError(t, err)
	resp = decodeResponse(t, out)
	sets := resp["data"].([]any)
	require.Len(t, sets, 1)
	ds := sets[0].(map[string]any)
	assert.Equal(t, testutil.SchoolsDataSetID, ds["id"])
	assert.Equal(t, "Pupil absence", ds["title"])
	assert.Len(t, ds["versions"], 1)
}

func TestCatalogList_Text(t *testing.T) {
	path := syncedConfig(t)

	out, _, err := execute(t, "", "--config", path, "--format", "text", "catalog", "list")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, testutil.SchoolsDataSetID+"\tPupil absence\n  1.0\t"), out)
}

func TestQuery_JSON(t *testing.T) {
	path := syncedConfig(t)

	out, _, err := execute(t, countryQuery, "--config", path, "query", testutil.SchoolsDataSetID, "--page-size", "5")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, resp["request_id"])

	doc := resp["data"].(map[string]any)
	paging := doc["paging"].(map[string]any)
	assert.Equal(t, float64(18), paging["totalResults"])
	assert.Equal(t, float64(4), paging["totalPages"])
	assert.Len(t, doc["results"], 5)
	assert.Equal(t, []any{}, doc["footnotes"])
}

func TestQuery_BodyFile(t *testing.T) {
	path := syncedConfig(t)
	bodyPath := filepath.Join(t.TempDir(), "query.json")
	require.NoError(t, os.WriteFile(bodyPath, []byte(countryQuery), 0644))

	out, _, err := execute(t, "", "--config", path, "query", testutil.SchoolsDataSetID, "--body", bodyPath)
	require.NoError(t, err)
	doc := decodeResponse(t, out)["data"].(map[string]any)
	assert.Len(t, doc["results"], 18)
}

func TestQuery_CSV(t *testing.T) {
	path := syncedConfig(t)

	out, errOut, err := execute(t, countryQuery, "--config", path, "--format", "csv", "query", testutil.SchoolsDataSetID, "--page-size", "5")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "time_period,time_identifier,geographic_level,country_code,country_name,region_code,region_name,new_la_code,la_name,characteristic,school_type,sess_authorised", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2022/23,Academic year,National,E92000001,England,"), lines[1])
	assert.Contains(t, errOut, "page 1 of 4 (page size 5, 18 results)")
}

func TestQuery_Text(t *testing.T) {
	path := syncedConfig(t)
	body := `{"facets": {"filters": {"in": []}}, "indicators": ["sess_authorised"]}`

	out, _, err := execute(t, body, "--config", path, "--format", "text", "query", testutil.SchoolsDataSetID, "--page-size", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "page 1 of 90 (page size 1, 90 results)")
	assert.Contains(t, out, "warning: facets.filters.in: Empty criteria impose no constraint.")
}

func TestQuery_ValidationError(t *testing.T) {
	path := syncedConfig(t)

	out, _, err := execute(t, `{"facets": {}, "indicators": []}`, "--config", path, "query", testutil.SchoolsDataSetID)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp["status"])
	cliErr := resp["error"].(map[string]any)
	assert.Equal(t, ErrCodeValidation, cliErr["code"])
	assert.Equal(t, "The query is invalid.", cliErr["message"])

	errs := cliErr["details"].(map[string]any)["errors"].(map[string]any)
	issues := errs["indicators"].([]any)
	require.Len(t, issues, 1)
	assert.Equal(t, "array.notEmpty", issues[0].(map[string]any)["code"])
}

func TestQuery_DebugNotAllowed(t *testing.T) {
	path := syncedConfig(t)

	_, _, err := execute(t, countryQuery, "--config", path, "query", testutil.SchoolsDataSetID, "--debug")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestQuery_NotFound(t *testing.T) {
	path := syncedConfig(t)

	out, _, err := execute(t, countryQuery, "--config", path, "query", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	cliErr := decodeResponse(t, out)["error"].(map[string]any)
	assert.Equal(t, ErrCodeNotFound, cliErr["code"])
	assert.Equal(t, `data set "nope" not found`, cliErr["message"])
}

func TestQuery_UnsyncedCatalog(t *testing.T) {
	path := writeConfig(t)

	_, _, err := execute(t, countryQuery, "--config", path, "query", testutil.SchoolsDataSetID)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestQuery_MissingBodyFile(t *testing.T) {
	path := syncedConfig(t)

	out, _, err := execute(t, "", "--config", path, "query", testutil.SchoolsDataSetID, "--body", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeReadBody, decodeResponse(t, out)["error"].(map[string]any)["code"])
}

func TestQuery_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statq.cue")
	require.NoError(t, os.WriteFile(path, []byte(`paging: maxPageSize: -1`), 0644))

	out, _, err := execute(t, countryQuery, "--config", path, "query", testutil.SchoolsDataSetID)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
	assert.Equal(t, ErrCodeConfig, decodeResponse(t, out)["error"].(map[string]any)["code"])
}

func TestConfigErrorsAreReported(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent", "statq.cue")

	commands := [][]string{
		{"query", testutil.SchoolsDataSetID},
		{"explain", testutil.SchoolsDataSetID},
		{"meta", testutil.SchoolsDataSetID},
		{"catalog", "sync"},
		{"catalog", "list"},
	}

	for _, command := range commands {
		t.Run(strings.Join(command, " "), func(t *testing.T) {
			args := append([]string{"--format", "json", "--config", missing}, command...)
			out, _, err := execute(t, countryQuery, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decodeResponse(t, out)
			assert.Equal(t, "error", resp["status"])
			assert.Equal(t, ErrCodeConfig, resp["error"].(map[string]any)["code"])
		})
	}
}

func TestConfigError_Text(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "statq.cue")

	out, _, err := execute(t, "", "--format", "text", "--config", missing, "catalog", "list")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(out, "Error [E002]: "), out)
}

func TestCatalogOpenErrorIsReported(t *testing.T) {
	dir := t.TempDir()
	src := fmt.Sprintf("catalog: %q\n", filepath.Join(dir, "no", "such", "dir", "statq.db"))
	path := filepath.Join(dir, "statq.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))

	out, _, err := execute(t, "", "--config", path, "catalog", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open catalog")
	assert.Equal(t, ErrCodeCatalog, decodeResponse(t, out)["error"].(map[string]any)["code"])
}

func TestExplain_Text(t *testing.T) {
	path := syncedConfig(t)

	out, _, err := execute(t, countryQuery, "--config", path, "--format", "text", "explain", testutil.SchoolsDataSetID)
	require.NoError(t, err)
	assert.Contains(t, out, "-- count (version 1.0)\nSELECT count(*) FROM data WHERE data.\"geographic_level\" = 'National';")
	assert.Contains(t, out, "-- fetch\nWITH page AS")
	assert.NotContains(t, out, "?")
}

func TestExplain_JSON(t *testing.T) {
	path := syncedConfig(t)

	out, _, err := execute(t, countryQuery, "--config", path, "explain", testutil.SchoolsDataSetID)
	require.NoError(t, err)

	data := decodeResponse(t, out)["data"].(map[string]any)
	assert.Equal(t, `SELECT count(*) FROM data WHERE data."geographic_level" = ?`, data["CountSQL"])
	assert.Equal(t, []any{"National"}, data["CountParams"])
}

func TestMeta(t *testing.T) {
	path := syncedConfig(t)

	out, _, err := execute(t, "", "--config", path, "meta", testutil.SchoolsDataSetID)
	require.NoError(t, err)
	data := decodeResponse(t, out)["data"].(map[string]any)
	assert.Equal(t, float64(90), data["totalResults"])
	assert.Len(t, data["timePeriods"], 3)

	out, _, err = execute(t, "", "--config", path, "--format", "text", "meta", testutil.SchoolsDataSetID)
	require.NoError(t, err)
	assert.Contains(t, out, "pupil-absence 1.0: 90 rows")
	assert.Contains(t, out, "AY       2020  2020/21")
	assert.Contains(t, out, "Filter characteristic (Characteristic):")
	assert.Contains(t, out, "[aggregate]")
	assert.Contains(t, out, "E06000001  Hartlepool")
}

func TestLoadConfig(t *testing.T) {
	// The package directory has no statq.cue.
	cfg, err := loadConfig(config.DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Paging.DefaultPageSize)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
}
