package aspen

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache registers a program cache for check expressions.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *providerConfig) {
		cfg.programCache = cache
	}
}

// NewProgramCache returns a ProgramCache backed by go-cache. A ttl of zero
// keeps programs until the process exits.
func NewProgramCache(ttl time.Duration) ProgramCache {
	if ttl <= 0 {
		return memoryProgramCache{c: gocache.New(gocache.NoExpiration, 0)}
	}
	return memoryProgramCache{c: gocache.New(ttl, 2*ttl)}
}

type memoryProgramCache struct {
	c *gocache.Cache
}

func (m memoryProgramCache) Get(key string) (any, bool) {
	return m.c.Get(key)
}

func (m memoryProgramCache) Set(key string, value any) {
	m.c.SetDefault(key, value)
}
