// Package idcodec turns dimension surrogate ids into opaque tokens.
//
// Tokens are hashids over the pair [id, check], salted with the
// (dataset, kind) namespace. The check word is derived from the namespace
// too, so a token decoded under a foreign namespace fails the check instead
// of landing on an unrelated id.
package idcodec

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/speps/go-hashids/v2"
)

// Kind is the entity kind a token belongs to.
type Kind string

const (
	Filters    Kind = "filters"
	Locations  Kind = "locations"
	Indicators Kind = "indicators"
)

// Kinds lists every token kind.
var Kinds = []Kind{Filters, Locations, Indicators}

const (
	DefaultMinLength = 8
	DefaultCacheSize = 10000
)

// Options tune a codec.
type Options struct {
	MinLength int
	CacheSize int
}

func (o Options) withDefaults() Options {
	if o.MinLength <= 0 {
		o.MinLength = DefaultMinLength
	}
	if o.CacheSize <= 0 {
		o.CacheSize = DefaultCacheSize
	}
	return o
}

// Codec encodes and decodes ids for one (dataset, kind) namespace.
// It is safe for concurrent use.
type Codec struct {
	namespace string
	check     int64
	hasher    *hashids.HashID

	encoded *lru.Cache[int64, string]
	decoded *lru.Cache[string, int64]
}

// New creates a codec for the namespace (dataSetID, kind).
func New(dataSetID string, kind Kind, opts Options) (*Codec, error) {
	opts = opts.withDefaults()
	namespace := dataSetID + "/" + string(kind)

	data := hashids.NewData()
	data.Salt = namespace
	data.MinLength = opts.MinLength

	hasher, err := hashids.NewWithData(data)
	if err != nil {
		return nil, fmt.Errorf("create hasher for %s: %w", namespace, err)
	}

	encoded, err := lru.New[int64, string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create encode cache: %w", err)
	}
	decoded, err := lru.New[string, int64](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create decode cache: %w", err)
	}

	return &Codec{
		namespace: namespace,
		check:     int64(xxhash.Sum64String(namespace) & 0xffff),
		hasher:    hasher,
		encoded:   encoded,
		decoded:   decoded,
	}, nil
}

// Namespace returns "<dataset>/<kind>".
func (c *Codec) Namespace() string {
	return c.namespace
}

// Encode returns the token for id. Negative ids are rejected.
func (c *Codec) Encode(id int64) (string, error) {
	if id < 0 {
		return "", fmt.Errorf("encode %s id %d: negative id", c.namespace, id)
	}
	if token, ok := c.encoded.Get(id); ok {
		return token, nil
	}

	token, err := c.hasher.EncodeInt64([]int64{id, c.check})
	if err != nil {
		return "", fmt.Errorf("encode %s id %d: %w", c.namespace, id, err)
	}
	c.encoded.Add(id, token)
	c.decoded.Add(token, id)
	return token, nil
}

// MustEncode is Encode for ids already known to be valid, such as ids read
// back from dimension tables.
func (c *Codec) MustEncode(id int64) string {
	token, err := c.Encode(id)
	if err != nil {
		panic(err)
	}
	return token
}

// Decode returns the id for token. It reports false for malformed tokens
// and for tokens issued under another namespace.
func (c *Codec) Decode(token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	if id, ok := c.decoded.Get(token); ok {
		return id, true
	}

	numbers, err := c.hasher.DecodeInt64WithError(token)
	if err != nil || len(numbers) != 2 || numbers[1] != c.check || numbers[0] < 0 {
		return 0, false
	}

	// Only successfully decoded tokens are cached, so arbitrary client
	// input cannot fill the cache with misses.
	c.decoded.Add(token, numbers[0])
	return numbers[0], true
}
