package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Cache keeps a bounded set of open stores keyed by directory.
//
// A store evicted while in use stays open until its last user releases it.
type Cache struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	entries *lru.Cache[string, *cacheEntry]
	opening singleflight.Group
}

type cacheEntry struct {
	store   *Store
	refs    int
	evicted bool
}

// NewCache creates a cache holding at most size open stores.
func NewCache(size int, opts Options, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{opts: opts, logger: logger}

	entries, err := lru.NewWithEvict[string, *cacheEntry](size, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create store cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Acquire returns the open store for dir, opening it on first use.
// The caller must call release exactly once when done with the store.
func (c *Cache) Acquire(ctx context.Context, dir string) (*Store, func(), error) {
	key, err := filepath.Abs(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve dataset dir: %w", err)
	}

	for {
		if s, release, ok := c.acquire(key); ok {
			return s, release, nil
		}
		_, err, _ := c.opening.Do(key, func() (any, error) {
			return nil, c.open(ctx, key)
		})
		if err != nil {
			return nil, nil, err
		}
	}
}

// Len returns the number of cached stores.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Close evicts every store. Stores still in use close on release.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

func (c *Cache) acquire(key string) (*Store, func(), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if !ok {
		return nil, nil, false
	}
	e.refs++

	var once sync.Once
	release := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			e.refs--
			if e.evicted && e.refs == 0 {
				c.closeStore(e.store)
			}
		})
	}
	return e.store, release, true
}

func (c *Cache) open(ctx context.Context, key string) error {
	c.mu.Lock()
	_, ok := c.entries.Peek(key)
	c.mu.Unlock()
	if ok {
		return nil
	}

	s, err := Open(ctx, key, c.opts)
	if err != nil {
		return err
	}
	c.logger.Debug("opened dataset store",
		"dir", key,
		"levels", len(s.Meta().GeographicLevels),
		"filter_groups", len(s.Meta().FilterGroups))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, &cacheEntry{store: s})
	return nil
}

// onEvict runs inside entries.Add or entries.Purge, with c.mu held.
func (c *Cache) onEvict(_ string, e *cacheEntry) {
	e.evicted = true
	if e.refs == 0 {
		c.closeStore(e.store)
	}
}

func (c *Cache) closeStore(s *Store) {
	if err := s.Close(); err != nil {
		c.logger.Warn("close dataset store", "dir", s.Dir(), "error", err)
	}
}
