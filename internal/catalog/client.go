package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"animelink/internal/gateway"
	"animelink/internal/logging"
	"animelink/internal/services"
	"animelink/internal/ttlcache"
)

// Requester sends one query. *gateway.Gateway implements it.
type Requester interface {
	Do(ctx context.Context, req gateway.Request) (gateway.Result, error)
}

// Expiry windows in minutes; each cached result picks a random point in its
// window so entries written together do not expire together.
var (
	idsExpiry      = [2]int{34, 46}
	searchExpiry   = [2]int{16, 28}
	episodesExpiry = [2]int{75, 100}
)

const (
	// DefaultBatchSize keeps one compound document under the catalog's
	// complexity ceiling of about 62 aliased lookups.
	DefaultBatchSize = 60
	hydrateBatchSize = 50
)

// Client is the catalog API.
type Client struct {
	queries   Requester
	episodes  Requester
	cache     *ttlcache.Cache
	logger    *slog.Logger
	randInt   func(lo, hi int) int
	now       func() time.Time
	batchSize int
}

// Option customizes a Client.
type Option func(*Client)

// WithEpisodeRequester routes airing schedule lookups through a separate,
// slower lane.
func WithEpisodeRequester(r Requester) Option {
	return func(c *Client) {
		if r != nil {
			c.episodes = r
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "catalog")
		}
	}
}

// WithBatchSize overrides the compound search chunk size.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithJitter overrides how expiry minutes are drawn from a window.
func WithJitter(fn func(lo, hi int) int) Option {
	return func(c *Client) {
		if fn != nil {
			c.randInt = fn
		}
	}
}

// WithClock overrides the time source for expiry computation.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a Client. A nil cache disables caching.
func New(queries Requester, cache *ttlcache.Cache, opts ...Option) *Client {
	c := &Client{
		queries:   queries,
		episodes:  queries,
		cache:     cache,
		logger:    logging.NewComponentLogger(logging.NewNop(), "catalog"),
		randInt:   func(lo, hi int) int { return lo + rand.IntN(hi-lo+1) },
		now:       time.Now,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) expiry(window [2]int) time.Time {
	return c.now().Add(time.Duration(c.randInt(window[0], window[1])) * time.Minute)
}

func fetchData(r Requester, req gateway.Request) ttlcache.Fetch {
	return func(ctx context.Context) (json.RawMessage, error) {
		res, err := r.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if res.Empty {
			return nil, nil
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return res.Data, nil
	}
}

// cached serves key from ns when fresh and otherwise fetches through the
// cache so concurrent identical lookups share one request.
func (c *Client) cached(ctx context.Context, ns ttlcache.Namespace, key string, fetch ttlcache.Fetch, expiresAt time.Time) (json.RawMessage, error) {
	if c.cache == nil {
		return fetch(ctx)
	}
	if raw, ok := c.cache.CachedEntry(ctx, ns, key, false); ok {
		return raw, nil
	}
	return c.cache.CacheEntry(ctx, ns, key, fetch, expiresAt)
}

// IDFilter selects media by id.
type IDFilter struct {
	ID      []int    `json:"id,omitempty"`
	IDMal   []int    `json:"idMal,omitempty"`
	IDNot   []int    `json:"id_not,omitempty"`
	Status  []string `json:"status,omitempty"`
	Sort    []string `json:"sort,omitempty"`
	Search  string   `json:"search,omitempty"`
	Season  string   `json:"season,omitempty"`
	Year    int      `json:"year,omitempty"`
	Format  string   `json:"format,omitempty"`
	Page    int      `json:"page,omitempty"`
	PerPage int      `json:"perPage,omitempty"`
}

// TextFilter selects media by free-text search.
type TextFilter struct {
	Name    string   `json:"name"`
	Year    int      `json:"year,omitempty"`
	IsAdult bool     `json:"isAdult"`
	Status  []string `json:"status,omitempty"`
	Sort    []string `json:"sort,omitempty"`
	Page    int      `json:"page,omitempty"`
	PerPage int      `json:"perPage,omitempty"`
}

// filterVariables serializes f once for both the cache key and the query
// variables, so equal filters always share a key.
func filterVariables(f any) (string, map[string]any, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return "", nil, err
	}
	var vars map[string]any
	if err := json.Unmarshal(raw, &vars); err != nil {
		return "", nil, err
	}
	return string(raw), vars, nil
}

// SearchByIDs returns the media matching f.
func (c *Client) SearchByIDs(ctx context.Context, f IDFilter) (*Page, error) {
	key, vars, err := filterVariables(f)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "catalog", "search ids", "", err)
	}
	logging.WithContext(ctx, c.logger).Debug("searching by ids", logging.String("filter", key))
	raw, err := c.cached(ctx, ttlcache.SearchIDs, key,
		fetchData(c.queries, gateway.Request{Query: searchIDsQuery, Variables: vars}), c.expiry(idsExpiry))
	if err != nil {
		return nil, fmt.Errorf("search ids: %w", err)
	}
	return decodePage(raw)
}

// SearchByText runs a free-text search.
func (c *Client) SearchByText(ctx context.Context, f TextFilter) (*Page, error) {
	key, vars, err := filterVariables(f)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "catalog", "search text", "", err)
	}
	logging.WithContext(ctx, c.logger).Debug("searching by name", logging.String("filter", key))
	raw, err := c.cached(ctx, ttlcache.Search, key,
		fetchData(c.queries, gateway.Request{Query: searchNameQuery, Variables: vars}), c.expiry(searchExpiry))
	if err != nil {
		return nil, fmt.Errorf("search text: %w", err)
	}
	return decodePage(raw)
}

// MediaByID returns one media, from the identity store when present.
func (c *Client) MediaByID(ctx context.Context, id int) (*Media, error) {
	if c.cache != nil {
		if raw, ok := c.cache.Identity(id); ok {
			var m Media
			if err := json.Unmarshal(raw, &m); err == nil && m.ID == id {
				return &m, nil
			}
		}
	}
	page, err := c.SearchByIDs(ctx, IDFilter{ID: []int{id}, Page: 1, PerPage: 1})
	if err != nil {
		return nil, err
	}
	if m := page.Find(id); m != nil {
		return m, nil
	}
	return nil, services.Wrap(services.ErrNotFound, "catalog", "media by id", "media "+strconv.Itoa(id), nil)
}

// AiringSchedule returns the broadcast schedule of a media.
func (c *Client) AiringSchedule(ctx context.Context, id int) ([]AiringSchedule, error) {
	raw, err := c.cached(ctx, ttlcache.Episodes, strconv.Itoa(id),
		fetchData(c.episodes, gateway.Request{Query: airingScheduleQuery, Variables: map[string]any{"id": id}}),
		c.expiry(episodesExpiry))
	if err != nil {
		return nil, fmt.Errorf("airing schedule %d: %w", id, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var env struct {
		Page struct {
			AiringSchedules []AiringSchedule `json:"airingSchedules"`
		} `json:"Page"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode airing schedule: %w", err)
	}
	return env.Page.AiringSchedules, nil
}

func decodePage(raw json.RawMessage) (*Page, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return &Page{}, nil
	}
	var env struct {
		Page *Page `json:"Page"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	if env.Page == nil {
		return &Page{}, nil
	}
	media := env.Page.Media[:0]
	for _, m := range env.Page.Media {
		if m != nil {
			media = append(media, m)
		}
	}
	env.Page.Media = media
	return env.Page, nil
}
