package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 500, cfg.Paging.DefaultPageSize)
	assert.Equal(t, 10000, cfg.Paging.MaxPageSize)
	assert.Equal(t, 10000, cfg.Codec.CacheSize)
	assert.Equal(t, 8, cfg.Codec.MinLength)
	assert.Equal(t, 16, cfg.Stores.MaxOpen)
	assert.False(t, cfg.Debug.Allowed)
	assert.Equal(t, "data", cfg.DataRoot)
	assert.Empty(t, cfg.DataSets)
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "statq.cue")
	require.NoError(t, os.WriteFile(path, []byte(`
dataRoot: "datasets"
paging: maxPageSize: 2000
debug: allowed: true
dataSets: "pupil-absence": {
	title: "Pupil absence"
	versions: [
		{version: "1.0", dir: "absence/1.0"},
		{version: "2.0", dir: "/abs/absence/2.0"},
	]
}
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "datasets"), cfg.DataRoot)
	assert.Equal(t, filepath.Join(dir, "statq.db"), cfg.Catalog)
	assert.Equal(t, 2000, cfg.Paging.MaxPageSize)
	assert.Equal(t, 500, cfg.Paging.DefaultPageSize)
	assert.True(t, cfg.Debug.Allowed)

	ds := cfg.DataSets["pupil-absence"]
	assert.Equal(t, "Pupil absence", ds.Title)
	require.Len(t, ds.Versions, 2)
	assert.Equal(t, filepath.Join(dir, "datasets", "absence", "1.0"), ds.Versions[0].Dir)
	assert.Equal(t, "/abs/absence/2.0", ds.Versions[1].Dir)
	assert.Equal(t, []string{"pupil-absence"}, cfg.DataSetIDs())
}

func TestParse_RejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte(`pagng: defaultPageSize: 10`), "bad.cue", "/tmp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pagng")
}

func TestParse_RejectsOutOfRange(t *testing.T) {
	_, err := Parse([]byte(`paging: defaultPageSize: 0`), "bad.cue", "/tmp")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "defaultPageSize")
}

func TestParse_RejectsDefaultAboveMax(t *testing.T) {
	_, err := Parse([]byte(`paging: {defaultPageSize: 600, maxPageSize: 100}`), "bad.cue", "/tmp")
	require.Error(t, err)

	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "paging.defaultPageSize", cfgErr.Field)
}

func TestParse_RejectsVersionWithoutDir(t *testing.T) {
	_, err := Parse([]byte(`dataSets: x: versions: [{version: "1"}]`), "bad.cue", "/tmp")
	require.Error(t, err)
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse([]byte(`paging: {`), "broken.cue", "/tmp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
