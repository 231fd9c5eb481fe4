package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/statq/internal/catalog"
	"github.com/roach88/statq/internal/config"
	"github.com/roach88/statq/internal/idcodec"
	"github.com/roach88/statq/internal/store"
)

// Catalog maps dataset ids and versions to directories. *catalog.Catalog
// implements it.
type Catalog interface {
	Resolve(ctx context.Context, dataSetID, version string) (catalog.Version, error)
}

// Service answers queries over the datasets in a catalog.
//
// Thread-safety: Service is safe for concurrent use. Requests share only
// the open stores (read-only) and the codec caches (synchronized).
type Service struct {
	catalog Catalog
	stores  *store.Cache
	codecs  *idcodec.Registry

	paging       config.Paging
	debugAllowed bool

	logger *slog.Logger
	ids    RequestIDGenerator
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithRequestIDGenerator sets the request id source. Default: UUIDv7Generator.
func WithRequestIDGenerator(gen RequestIDGenerator) Option {
	return func(s *Service) {
		s.ids = gen
	}
}

// New creates a Service from cfg, resolving datasets through cat.
func New(cfg *config.Config, cat Catalog, opts ...Option) (*Service, error) {
	s := &Service{
		catalog: cat,
		codecs: idcodec.NewRegistry(idcodec.Options{
			MinLength: cfg.Codec.MinLength,
			CacheSize: cfg.Codec.CacheSize,
		}),
		paging:       cfg.Paging,
		debugAllowed: cfg.Debug.Allowed,
		logger:       slog.Default(),
		ids:          UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}

	stores, err := store.NewCache(cfg.Stores.MaxOpen, store.Options{
		Threads:     cfg.Stores.Threads,
		MemoryLimit: cfg.Stores.MemoryLimit,
	}, s.logger)
	if err != nil {
		return nil, err
	}
	s.stores = stores
	return s, nil
}

// Close closes every open store.
func (s *Service) Close() {
	s.stores.Close()
}

// session is the per-request state shared by Query, Explain and Meta.
type session struct {
	requestID string
	logger    *slog.Logger
	version   catalog.Version
	store     *store.Store
	codecs    idcodec.Set
	release   func()
}

// open resolves the dataset and acquires its store. The caller must call
// close on success.
func (s *Service) open(ctx context.Context, dataSetID, version string) (*session, error) {
	requestID := s.ids.Generate()
	logger := s.logger.With("request_id", requestID, "data_set", dataSetID)

	v, err := s.catalog.Resolve(ctx, dataSetID, version)
	if errors.Is(err, catalog.ErrNotFound) {
		id := dataSetID
		if version != "" {
			id += "@" + version
		}
		logger.Debug("dataset not found", "version", version)
		return nil, &NotFoundError{Resource: "data set", ID: id}
	}
	if err != nil {
		return nil, s.internal(logger, requestID, fmt.Errorf("resolve dataset: %w", err))
	}

	codecs, err := s.codecs.ForDataSet(dataSetID)
	if err != nil {
		return nil, s.internal(logger, requestID, err)
	}

	st, release, err := s.stores.Acquire(ctx, v.Dir)
	if err != nil {
		return nil, s.internal(logger, requestID, fmt.Errorf("open dataset %s: %w", v.Dir, err))
	}

	return &session{
		requestID: requestID,
		logger:    logger.With("version", v.Version),
		version:   v,
		store:     st,
		codecs:    codecs,
		release:   release,
	}, nil
}

func (ss *session) close() {
	ss.release()
}

// internal logs err and wraps it for the caller.
func (s *Service) internal(logger *slog.Logger, requestID string, err error) error {
	logger.Error("request failed", "error", err)
	return &InternalError{RequestID: requestID, Err: err}
}
