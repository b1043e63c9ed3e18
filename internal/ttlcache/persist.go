package ttlcache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"animelink/internal/kvstore"
	"animelink/internal/logging"
)

func mediaKey(id int) string {
	return strconv.Itoa(id)
}

// writer mirrors dirty keys to the store, one debounce timer per namespace.
// Its maps are guarded by the owning Cache's mutex.
type writer struct {
	cache    *Cache
	store    kvstore.Store
	debounce time.Duration

	dirty   map[Namespace]map[string]struct{}
	removed map[Namespace]map[string]struct{}
	timers  map[Namespace]*time.Timer
	closed  bool

	// flushing serializes store writes per namespace.
	flushing map[Namespace]*sync.Mutex
}

func newWriter(c *Cache, store kvstore.Store, debounce time.Duration) *writer {
	w := &writer{
		cache:    c,
		store:    store,
		debounce: debounce,
		dirty:    make(map[Namespace]map[string]struct{}),
		removed:  make(map[Namespace]map[string]struct{}),
		timers:   make(map[Namespace]*time.Timer),
		flushing: make(map[Namespace]*sync.Mutex),
	}
	for _, ns := range persistedNamespaces() {
		w.flushing[ns] = &sync.Mutex{}
	}
	return w
}

func (w *writer) enabled(ns Namespace) bool {
	return w.store != nil && ns.Persisted()
}

func (w *writer) markDirtyLocked(ns Namespace, key string) {
	if !w.enabled(ns) {
		return
	}
	addKey(w.dirty, ns, key)
	delete(w.removed[ns], key)
	w.scheduleLocked(ns)
}

func (w *writer) markRemovedLocked(ns Namespace, key string) {
	if !w.enabled(ns) {
		return
	}
	addKey(w.removed, ns, key)
	delete(w.dirty[ns], key)
	w.scheduleLocked(ns)
}

func (w *writer) forgetLocked(ns Namespace) {
	delete(w.dirty, ns)
	delete(w.removed, ns)
	if t := w.timers[ns]; t != nil {
		t.Stop()
	}
}

func (w *writer) dirtyCountLocked(ns Namespace) int {
	return len(w.dirty[ns]) + len(w.removed[ns])
}

func (w *writer) scheduleLocked(ns Namespace) {
	if w.closed {
		return
	}
	if t := w.timers[ns]; t != nil {
		t.Reset(w.debounce)
		return
	}
	w.timers[ns] = time.AfterFunc(w.debounce, func() {
		if err := w.flushNamespace(context.Background(), ns); err != nil {
			logging.WarnWithContext(w.cache.logger, "cache persistence failed", "cache_persist_failed",
				logging.String(logging.FieldNamespace, string(ns)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check cache.path permissions and free space"),
				logging.String(logging.FieldImpact, "changes stay in memory and are retried on the next write"),
			)
		}
	})
}

func addKey(m map[Namespace]map[string]struct{}, ns Namespace, key string) {
	set := m[ns]
	if set == nil {
		set = make(map[string]struct{})
		m[ns] = set
	}
	set[key] = struct{}{}
}

// flushNamespace writes the namespace's dirty keys and deletes its removed
// keys. On failure the keys are marked dirty again.
func (w *writer) flushNamespace(ctx context.Context, ns Namespace) error {
	if !w.enabled(ns) {
		return nil
	}
	mu := w.flushing[ns]
	mu.Lock()
	defer mu.Unlock()

	c := w.cache
	c.mu.Lock()
	dirty := w.dirty[ns]
	removed := w.removed[ns]
	delete(w.dirty, ns)
	delete(w.removed, ns)
	values := make(map[string][]byte, len(dirty))
	for key := range dirty {
		raw, ok := c.persistedValueLocked(ns, key)
		if !ok {
			continue
		}
		values[key] = raw
	}
	c.mu.Unlock()

	removedKeys := make([]string, 0, len(removed))
	for key := range removed {
		removedKeys = append(removedKeys, key)
	}
	if len(values) == 0 && len(removedKeys) == 0 {
		return nil
	}

	err := kvstore.WriteBatch(ctx, w.store, string(ns), values)
	if err == nil && len(removedKeys) > 0 {
		err = w.store.DeleteKeys(ctx, string(ns), removedKeys)
	}
	if err != nil {
		c.mu.Lock()
		for key := range values {
			if _, gone := w.removed[ns][key]; !gone {
				addKey(w.dirty, ns, key)
			}
		}
		for _, key := range removedKeys {
			if _, rewritten := w.dirty[ns][key]; !rewritten {
				addKey(w.removed, ns, key)
			}
		}
		c.mu.Unlock()
		return err
	}
	c.logger.Debug("cache namespace persisted",
		logging.String(logging.FieldNamespace, string(ns)),
		logging.Int("written", len(values)),
		logging.Int("deleted", len(removedKeys)),
	)
	return nil
}

func (c *Cache) persistedValueLocked(ns Namespace, key string) ([]byte, bool) {
	if ns == Media {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, false
		}
		rec, ok := c.media[id]
		return rec, ok
	}
	e, ok := c.entries[ns][key]
	if !ok {
		return nil, false
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (w *writer) flushAll(ctx context.Context) error {
	if w.store == nil {
		return nil
	}
	p := pool.New().WithErrors().WithContext(ctx)
	for _, ns := range persistedNamespaces() {
		p.Go(func(ctx context.Context) error {
			return w.flushNamespace(ctx, ns)
		})
	}
	return p.Wait()
}

func (w *writer) clear(ctx context.Context, namespaces []Namespace) error {
	if w.store == nil {
		return nil
	}
	var errs []error
	for _, ns := range namespaces {
		if !ns.Persisted() {
			continue
		}
		mu := w.flushing[ns]
		mu.Lock()
		err := w.store.Clear(ctx, string(ns))
		mu.Unlock()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush writes every pending change now.
func (c *Cache) Flush(ctx context.Context) error {
	return c.persist.flushAll(ctx)
}

// Close stops the debounce timers and flushes. The cache stays readable.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	c.persist.closed = true
	for _, t := range c.persist.timers {
		t.Stop()
	}
	c.mu.Unlock()
	return c.Flush(ctx)
}

// Load hydrates persisted namespaces from the store. Unreadable records are
// skipped and an unreadable namespace is left empty.
func (c *Cache) Load(ctx context.Context) error {
	if c.persist.store == nil {
		return nil
	}
	store := c.persist.store
	now := c.now()
	var loaded, skipped int
	for _, ns := range persistedNamespaces() {
		media := make(map[int]json.RawMessage)
		entries := make(map[string]Entry)
		var expiredKeys []string
		err := store.Scan(ctx, string(ns), func(key string, value []byte) error {
			if ns == Media {
				id, err := strconv.Atoi(key)
				if err != nil || !json.Valid(value) {
					skipped++
					return nil
				}
				media[id] = json.RawMessage(value)
				return nil
			}
			var e Entry
			if err := json.Unmarshal(value, &e); err != nil || len(e.Data) == 0 {
				skipped++
				return nil
			}
			if now.Sub(e.ExpiresAt) > c.opts.StaleWindow {
				expiredKeys = append(expiredKeys, key)
				return nil
			}
			entries[key] = e
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.WarnWithContext(c.logger, "cache namespace unreadable; starting empty", "cache_load_failed",
				logging.String(logging.FieldNamespace, string(ns)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run 'animelink cache clear' if this persists"),
				logging.String(logging.FieldImpact, "entries are refetched from the catalog"),
			)
			continue
		}
		c.mu.Lock()
		if ns == Media {
			for id, rec := range media {
				if _, exists := c.media[id]; !exists {
					c.media[id] = rec
				}
			}
			loaded += len(media)
		} else {
			bucket := c.entries[ns]
			if bucket == nil {
				bucket = make(map[string]Entry)
				c.entries[ns] = bucket
			}
			for key, e := range entries {
				if _, exists := bucket[key]; !exists {
					bucket[key] = e
				}
			}
			loaded += len(entries)
			for _, key := range expiredKeys {
				c.persist.markRemovedLocked(ns, key)
			}
		}
		c.mu.Unlock()
	}
	if skipped > 0 {
		logging.WarnWithContext(c.logger, "skipped unreadable cache records", "cache_corrupt",
			logging.Int("skipped", skipped),
			logging.String(logging.FieldErrorHint, "records are rewritten on the next fetch"),
			logging.String(logging.FieldImpact, "affected lookups are refetched"),
		)
	}
	c.logger.Debug("cache loaded", logging.Int("entries", loaded))
	return nil
}
