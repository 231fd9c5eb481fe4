package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/roach88/statq/internal/catalog"
	"github.com/roach88/statq/internal/config"
	"github.com/roach88/statq/internal/engine"
)

// loadConfig reads the config file. A missing file at the default path
// falls back to the built-in defaults; a missing explicit path is an
// error.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == config.DefaultPath && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, err
}

// Env is everything a command needs to serve queries. Close releases it.
type Env struct {
	Config  *config.Config
	Catalog *catalog.Catalog
	Service *engine.Service
}

// Close closes the service and then the catalog.
func (e *Env) Close() error {
	if e.Service != nil {
		e.Service.Close()
	}
	if e.Catalog != nil {
		return e.Catalog.Close()
	}
	return nil
}

// openCatalog loads the config and opens its catalog. Failures are
// reported through f.
func openCatalog(opts *RootOptions, f *OutputFormatter) (*config.Config, *catalog.Catalog, error) {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, nil, f.fail(ErrCodeConfig, ExitCommandError, "failed to load config", err)
	}
	cat, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return nil, nil, f.fail(ErrCodeCatalog, ExitCommandError, "failed to open catalog", err)
	}
	return cfg, cat, nil
}

// openEnv loads the config, opens the catalog and starts the query service.
func openEnv(opts *RootOptions, f *OutputFormatter) (*Env, error) {
	cfg, cat, err := openCatalog(opts, f)
	if err != nil {
		return nil, err
	}

	svc, err := engine.New(cfg, cat, engine.WithLogger(opts.logger()))
	if err != nil {
		cat.Close()
		return nil, f.fail(ErrCodeConfig, ExitCommandError, "failed to start query service", err)
	}
	return &Env{Config: cfg, Catalog: cat, Service: svc}, nil
}

// readBody reads a query body from a file, or from stdin when path is "-".
func readBody(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		body, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return body, nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read query file: %w", err)
	}
	return body, nil
}
