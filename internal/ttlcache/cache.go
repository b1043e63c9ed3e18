package ttlcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"animelink/internal/kvstore"
	"animelink/internal/logging"
	"animelink/internal/services"
)

const (
	DefaultDebounce    = 2 * time.Second
	DefaultGrace       = 500 * time.Millisecond
	DefaultStaleWindow = 7 * 24 * time.Hour
)

// Entry is one stored value. Data is the normalized form.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt time.Time       `json:"expiresAt"`
	CachedAt  time.Time       `json:"cachedAt"`
}

// Fetch produces a fresh value. It runs detached from the caller's
// cancellation because other callers may be waiting on it.
type Fetch func(ctx context.Context) (json.RawMessage, error)

// Options configures a Cache.
type Options struct {
	// Store mirrors persisted namespaces. Nil keeps everything in memory.
	Store    kvstore.Store
	Debounce time.Duration
	// Grace keeps a settled request joinable. Zero removes it at settlement.
	Grace time.Duration
	// StaleWindow bounds how long expired entries are kept for fallback.
	StaleWindow time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

// DefaultOptions returns the production timings.
func DefaultOptions() Options {
	return Options{Debounce: DefaultDebounce, Grace: DefaultGrace, StaleWindow: DefaultStaleWindow}
}

type call struct {
	done chan struct{}
	val  json.RawMessage
	err  error
}

func (c *call) wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cache is safe for concurrent use.
type Cache struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[Namespace]map[string]Entry
	media   map[int]json.RawMessage
	pending map[string]*call

	persist *writer
}

// New constructs an empty Cache. Call Load to hydrate from the store.
func New(opts Options) *Cache {
	if opts.StaleWindow <= 0 {
		opts.StaleWindow = DefaultStaleWindow
	}
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}
	if opts.Grace < 0 {
		opts.Grace = 0
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	c := &Cache{
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "ttlcache"),
		now:     now,
		entries: make(map[Namespace]map[string]Entry),
		media:   make(map[int]json.RawMessage),
		pending: make(map[string]*call),
	}
	c.persist = newWriter(c, opts.Store, opts.Debounce)
	return c
}

func pendingKey(ns Namespace, key string) string {
	return string(ns) + ":" + key
}

// CachedEntry returns an in-flight value first, then a stored one that is
// still fresh (or any stored one when ignoreExpiry is set).
func (c *Cache) CachedEntry(ctx context.Context, ns Namespace, key string, ignoreExpiry bool) (json.RawMessage, bool) {
	c.mu.Lock()
	if p := c.pending[pendingKey(ns, key)]; p != nil {
		c.mu.Unlock()
		logging.WithContext(ctx, c.logger).Debug("joined pending request",
			logging.String(logging.FieldNamespace, string(ns)), logging.String("key", key))
		val, err := p.wait(ctx)
		if err != nil || val == nil {
			return nil, false
		}
		return val, true
	}
	val, ok := c.lookupLocked(ns, key, ignoreExpiry)
	c.mu.Unlock()
	return val, ok
}

func (c *Cache) lookupLocked(ns Namespace, key string, ignoreExpiry bool) (json.RawMessage, bool) {
	e, ok := c.entries[ns][key]
	if !ok || len(e.Data) == 0 {
		return nil, false
	}
	now := c.now()
	if !now.Before(e.ExpiresAt) {
		if now.Sub(e.ExpiresAt) > c.opts.StaleWindow {
			delete(c.entries[ns], key)
			c.persist.markRemovedLocked(ns, key)
			return nil, false
		}
		if !ignoreExpiry {
			return nil, false
		}
	}
	if ns.normalized() {
		return denormalizePayload(e.Data, c.identityLocked), true
	}
	return e.Data, true
}

func (c *Cache) identityLocked(id int) (json.RawMessage, bool) {
	rec, ok := c.media[id]
	return rec, ok
}

// CacheEntry returns the in-flight value for key if there is one; otherwise
// it runs fetch, stores a successful result until expiresAt, and returns it.
// When fetch fails with an upstream error the last stored value is returned
// regardless of expiry. A nil value with a nil error means absent.
func (c *Cache) CacheEntry(ctx context.Context, ns Namespace, key string, fetch Fetch, expiresAt time.Time) (json.RawMessage, error) {
	if ns == Media {
		return nil, services.Wrap(services.ErrValidation, "ttlcache", "cache entry", "media namespace is written through normalization only", nil)
	}
	if fetch == nil {
		return nil, services.Wrap(services.ErrValidation, "ttlcache", "cache entry", "nil fetch", nil)
	}
	pk := pendingKey(ns, key)
	c.mu.Lock()
	if p := c.pending[pk]; p != nil {
		c.mu.Unlock()
		logging.WithContext(ctx, c.logger).Debug("coalesced request",
			logging.String(logging.FieldNamespace, string(ns)), logging.String("key", key))
		return p.wait(ctx)
	}
	p := &call{done: make(chan struct{})}
	c.pending[pk] = p
	c.mu.Unlock()

	go c.run(context.WithoutCancel(ctx), ns, key, pk, p, fetch, expiresAt)
	return p.wait(ctx)
}

func (c *Cache) run(ctx context.Context, ns Namespace, key, pk string, p *call, fetch Fetch, expiresAt time.Time) {
	val, err := safeFetch(ctx, fetch)

	c.mu.Lock()
	switch {
	case err == nil:
		if len(val) > 0 && string(val) != "null" {
			c.storeLocked(ns, key, val, expiresAt)
		}
		p.val = val
	case errors.Is(err, services.ErrUpstream):
		if stale, ok := c.lookupLocked(ns, key, true); ok {
			logging.WithContext(ctx, c.logger).Info("serving stale entry after upstream error",
				logging.String(logging.FieldNamespace, string(ns)),
				logging.String("key", key),
				logging.Error(err),
			)
			p.val = stale
		} else {
			p.err = err
		}
	default:
		p.err = err
	}
	if c.opts.Grace <= 0 && c.pending[pk] == p {
		delete(c.pending, pk)
	}
	c.mu.Unlock()
	close(p.done)

	if c.opts.Grace > 0 {
		time.AfterFunc(c.opts.Grace, func() {
			c.mu.Lock()
			if c.pending[pk] == p {
				delete(c.pending, pk)
			}
			c.mu.Unlock()
		})
	}
}

func safeFetch(ctx context.Context, fetch Fetch) (val json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

func (c *Cache) storeLocked(ns Namespace, key string, val json.RawMessage, expiresAt time.Time) {
	data := val
	if ns.normalized() {
		var records map[int]json.RawMessage
		data, records = normalizePayload(val)
		for id, rec := range records {
			c.media[id] = rec
			c.persist.markDirtyLocked(Media, mediaKey(id))
		}
	}
	bucket := c.entries[ns]
	if bucket == nil {
		bucket = make(map[string]Entry)
		c.entries[ns] = bucket
	}
	bucket[key] = Entry{Data: data, ExpiresAt: expiresAt, CachedAt: c.now()}
	c.persist.markDirtyLocked(ns, key)
}

// Identity returns the stored media record for id.
func (c *Cache) Identity(id int) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identityLocked(id)
}

// Clear drops every entry in ns, in memory and in the store. An empty ns
// clears all namespaces.
func (c *Cache) Clear(ctx context.Context, ns Namespace) error {
	targets := []Namespace{ns}
	if ns == "" {
		targets = Namespaces()
	}
	c.mu.Lock()
	for _, target := range targets {
		if target == Media {
			c.media = make(map[int]json.RawMessage)
		} else {
			delete(c.entries, target)
		}
		c.persist.forgetLocked(target)
	}
	c.mu.Unlock()
	return c.persist.clear(ctx, targets)
}

// NamespaceStats summarizes one namespace.
type NamespaceStats struct {
	Entries int
	Fresh   int
	Dirty   int
}

// Stats is a snapshot of the cache.
type Stats struct {
	Namespaces map[Namespace]NamespaceStats
	Pending    int
}

// Stats reports entry counts per namespace.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	out := Stats{Namespaces: make(map[Namespace]NamespaceStats), Pending: len(c.pending)}
	for _, ns := range Namespaces() {
		var s NamespaceStats
		if ns == Media {
			s.Entries = len(c.media)
			s.Fresh = len(c.media)
		} else {
			for _, e := range c.entries[ns] {
				s.Entries++
				if now.Before(e.ExpiresAt) {
					s.Fresh++
				}
			}
		}
		s.Dirty = c.persist.dirtyCountLocked(ns)
		out.Namespaces[ns] = s
	}
	return out
}
