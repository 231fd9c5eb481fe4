// Package config loads statq configuration from a CUE file.
//
// The file is unified with the embedded #Config schema, which supplies
// defaults and rejects unknown fields:
//
//	dataRoot: "/srv/statq/data"
//	paging: maxPageSize: 5000
//	dataSets: "pupil-absence": {
//		title: "Pupil absence in schools"
//		versions: [{version: "1.0", dir: "pupil-absence/1.0"}]
//	}
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

// DefaultPath is the config file the CLI reads when --config is not set.
const DefaultPath = "statq.cue"

// Config is the resolved configuration.
type Config struct {
	DataRoot string             `json:"dataRoot"`
	Catalog  string             `json:"catalog"`
	Paging   Paging             `json:"paging"`
	Codec    Codec              `json:"codec"`
	Debug    Debug              `json:"debug"`
	Stores   Stores             `json:"stores"`
	DataSets map[string]DataSet `json:"dataSets"`
}

type Paging struct {
	DefaultPageSize int `json:"defaultPageSize"`
	MaxPageSize     int `json:"maxPageSize"`
}

type Codec struct {
	CacheSize int `json:"cacheSize"`
	MinLength int `json:"minLength"`
}

type Debug struct {
	Allowed bool `json:"allowed"`
}

type Stores struct {
	MaxOpen     int    `json:"maxOpen"`
	Threads     int    `json:"threads"`
	MemoryLimit string `json:"memoryLimit"`
}

// DataSet is a dataset declared in the config file.
type DataSet struct {
	Title    string    `json:"title"`
	Versions []Version `json:"versions"`
}

// Version is one version directory of a declared dataset.
type Version struct {
	Version string `json:"version"`
	Dir     string `json:"dir"`
}

// DataSetIDs returns the declared dataset ids in sorted order.
func (c *Config) DataSetIDs() []string {
	ids := make([]string, 0, len(c.DataSets))
	for id := range c.DataSets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Error is a configuration error, positioned in the CUE source when known.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the schema defaults with no datasets.
func Default() *Config {
	cfg, err := compile(cuecontext.New(), []byte("{}"), "defaults.cue")
	if err != nil {
		// The embedded schema is constant; failing here is a build defect.
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load reads and validates the config file at path. Relative paths in the
// file are resolved against the file's directory; relative dataset dirs
// are resolved against dataRoot.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := compile(cuecontext.New(), src, path)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.resolvePaths(filepath.Dir(abs))
	return cfg, nil
}

// Parse validates config source held in memory. Relative paths are
// resolved against baseDir.
func Parse(src []byte, filename, baseDir string) (*Config, error) {
	cfg, err := compile(cuecontext.New(), src, filename)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(baseDir)
	return cfg, nil
}

func compile(ctx *cue.Context, src []byte, filename string) (*Config, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, formatCUEError(err)
	}

	if cfg.Paging.DefaultPageSize > cfg.Paging.MaxPageSize {
		return nil, &Error{
			Field:   "paging.defaultPageSize",
			Message: fmt.Sprintf("must not exceed paging.maxPageSize (%d)", cfg.Paging.MaxPageSize),
			Pos:     unified.LookupPath(cue.ParsePath("paging.defaultPageSize")).Pos(),
		}
	}

	if cfg.DataSets == nil {
		cfg.DataSets = map[string]DataSet{}
	}
	return &cfg, nil
}

func (c *Config) resolvePaths(baseDir string) {
	c.DataRoot = resolve(baseDir, c.DataRoot)
	c.Catalog = resolve(baseDir, c.Catalog)
	for id, ds := range c.DataSets {
		for i := range ds.Versions {
			ds.Versions[i].Dir = resolve(c.DataRoot, ds.Versions[i].Dir)
		}
		c.DataSets[id] = ds
	}
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &Error{
			Field:   pathOf(first),
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

func pathOf(err errors.Error) string {
	path := err.Path()
	if len(path) == 0 {
		return "cue"
	}
	out := path[0]
	for _, p := range path[1:] {
		out += "." + p
	}
	return out
}
