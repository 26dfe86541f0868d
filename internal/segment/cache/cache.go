// Package cache keeps values computed per segment core and drops them when
// the core closes.
//
// Values are keyed by the core of the SegmentReader underneath whatever
// reader the caller holds, so every decorated view of a segment shares one
// entry. The first entry stored for a core registers a core-closed listener
// that evicts all of that core's entries.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"segreader/internal/callgroup"
	"segreader/internal/logging"
	"segreader/internal/segment"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
)

var ErrNilReader = errors.New("cannot cache values for a nil reader")

// DefaultName labels metrics when Config.Name is empty.
const DefaultName = "segment"

type Config struct {
	// Name is the value of the "cache" metric label.
	Name string

	// TTL bounds how long an entry lives even while its core stays open.
	// Zero means entries live until their core closes.
	TTL time.Duration

	// CleanupInterval controls how often expired entries are purged.
	// Zero disables the background purge.
	CleanupInterval time.Duration

	// Registerer receives the cache metrics. If nil, metrics are kept but
	// not registered.
	Registerer prometheus.Registerer

	// Logger for structured logging. If nil, logging is disabled.
	Logger *slog.Logger
}

type metrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
}

func newMetrics(name string) *metrics {
	labels := prometheus.Labels{"cache": name}
	return &metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "segreader_cache_hits_total",
			Help:        "Lookups served from the segment cache.",
			ConstLabels: labels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "segreader_cache_misses_total",
			Help:        "Lookups that had to load a value.",
			ConstLabels: labels,
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "segreader_cache_evictions_total",
			Help:        "Entries dropped because their segment core closed.",
			ConstLabels: labels,
		}),
	}
}

func (m *metrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.hits, m.misses, m.evictions} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Cache maps (segment core, key) to a value of type V.
type Cache[V any] struct {
	name    string
	items   *gocache.Cache
	calls   callgroup.Group[string, V]
	metrics *metrics
	logger  *slog.Logger

	mu    sync.Mutex
	cores map[segment.CoreKey][]string
}

func New[V any](cfg Config) (*Cache[V], error) {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}

	m := newMetrics(cfg.Name)
	if cfg.Registerer != nil {
		if err := m.register(cfg.Registerer); err != nil {
			return nil, fmt.Errorf("register cache metrics: %w", err)
		}
	}

	return &Cache[V]{
		name:    cfg.Name,
		items:   gocache.New(ttl, cfg.CleanupInterval),
		metrics: m,
		logger:  logging.Default(cfg.Logger).With("component", "segment-cache", "cache", cfg.Name),
		cores:   make(map[segment.CoreKey][]string),
	}, nil
}

// Get returns the value cached for key on r's segment core, calling load
// on a miss. Concurrent misses for the same entry share one load. Errors
// from load are returned and not cached.
//
// r must resolve to a SegmentReader: a nil reader yields ErrNilReader and an
// unresolvable chain an error matching segment.ErrUnresolvable.
func (c *Cache[V]) Get(r segment.Reader, key string, load func(*segment.SegmentReader) (V, error)) (V, error) {
	var zero V
	sr, err := segment.SegmentOf(r)
	if err != nil {
		return zero, fmt.Errorf("cache %s: %w", c.name, err)
	}
	if sr == nil {
		return zero, ErrNilReader
	}

	core := sr.CoreKey()
	entry := core.String() + "/" + key
	if v, ok := c.items.Get(entry); ok {
		c.metrics.hits.Inc()
		val, _ := v.(V)
		return val, nil
	}
	c.metrics.misses.Inc()

	v, err, _ := c.calls.Do(entry, func() (V, error) {
		v, err := load(sr)
		if err != nil {
			return v, err
		}
		c.store(sr, core, entry, v)
		return v, nil
	})
	return v, err
}

// store records the entry under its core. The first entry for a core hooks
// eviction onto the core; if the core has already closed the listener runs
// right away and removes the entry again.
func (c *Cache[V]) store(sr *segment.SegmentReader, core segment.CoreKey, entry string, v V) {
	c.mu.Lock()
	entries, tracked := c.cores[core]
	if !slices.Contains(entries, entry) {
		c.cores[core] = append(entries, entry)
	}
	c.items.Set(entry, v, gocache.DefaultExpiration)
	c.mu.Unlock()

	if !tracked {
		segment.RegisterCoreListener(sr, c.evictCore)
	}
}

func (c *Cache[V]) evictCore(core segment.CoreKey) {
	c.mu.Lock()
	entries := c.cores[core]
	delete(c.cores, core)
	for _, entry := range entries {
		c.items.Delete(entry)
	}
	c.mu.Unlock()

	c.metrics.evictions.Add(float64(len(entries)))
	c.logger.Debug("evicted entries for closed core", "core", core, "entries", len(entries))
}

// Len returns the number of cached entries, including expired ones not yet
// purged.
func (c *Cache[V]) Len() int {
	return c.items.ItemCount()
}

// Cores returns the number of segment cores with at least one entry.
func (c *Cache[V]) Cores() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cores)
}
