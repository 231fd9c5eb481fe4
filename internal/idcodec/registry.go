package idcodec

import (
	"fmt"
	"sync"
)

// Registry hands out one codec per (dataset, kind), created on first use.
// Codecs and their caches are shared by every request for that dataset.
type Registry struct {
	opts Options

	mu     sync.Mutex
	codecs map[string]*Codec
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:   opts.withDefaults(),
		codecs: make(map[string]*Codec),
	}
}

// Codec returns the codec for (dataSetID, kind).
func (r *Registry) Codec(dataSetID string, kind Kind) (*Codec, error) {
	key := dataSetID + "/" + string(kind)

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.codecs[key]; ok {
		return c, nil
	}
	c, err := New(dataSetID, kind, r.opts)
	if err != nil {
		return nil, err
	}
	r.codecs[key] = c
	return c, nil
}

// Set is the codecs of every kind for one dataset.
type Set struct {
	Filters    *Codec
	Locations  *Codec
	Indicators *Codec
}

// ForDataSet returns the codecs for every kind of dataSetID.
func (r *Registry) ForDataSet(dataSetID string) (Set, error) {
	var s Set
	var err error

	if s.Filters, err = r.Codec(dataSetID, Filters); err != nil {
		return Set{}, fmt.Errorf("filters codec: %w", err)
	}
	if s.Locations, err = r.Codec(dataSetID, Locations); err != nil {
		return Set{}, fmt.Errorf("locations codec: %w", err)
	}
	if s.Indicators, err = r.Codec(dataSetID, Indicators); err != nil {
		return Set{}, fmt.Errorf("indicators codec: %w", err)
	}
	return s, nil
}
