package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/iter"
	"golang.org/x/sync/singleflight"

	"animelink/internal/catalog"
	"animelink/internal/logging"
	"animelink/internal/releaseparse"
	"animelink/internal/seasongraph"
	"animelink/internal/services"
	"animelink/internal/titles"
)

// DefaultWorkers bounds how many files are corrected concurrently.
const DefaultWorkers = 4

// Catalog is the subset of the catalog client the resolver needs.
type Catalog interface {
	SearchCompound(ctx context.Context, cands []titles.Candidate) (map[string]*catalog.Media, error)
	MediaByID(ctx context.Context, id int) (*catalog.Media, error)
}

// Resolver is safe for concurrent use.
type Resolver struct {
	catalog   Catalog
	seasons   *seasongraph.Resolver
	base      *slog.Logger
	logger    *slog.Logger
	threshold float64
	workers   int
	ceiling   int

	mu    sync.RWMutex
	names map[string]*catalog.Media

	flight singleflight.Group
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.base = logger
			r.logger = logging.NewComponentLogger(logger, "resolver")
		}
	}
}

// WithMatchThreshold sets the normalized distance under which a parsed
// title is accepted as naming its matched entry.
func WithMatchThreshold(threshold float64) Option {
	return func(r *Resolver) {
		if threshold > 0 {
			r.threshold = threshold
		}
	}
}

// WithWorkers bounds concurrent per-file correction.
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithStepCeiling bounds each season walk.
func WithStepCeiling(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.ceiling = n
		}
	}
}

// New constructs a Resolver.
func New(cat Catalog, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:   cat,
		logger:    logging.NewComponentLogger(logging.NewNop(), "resolver"),
		threshold: titles.DefaultMatchThreshold,
		workers:   DefaultWorkers,
		ceiling:   seasongraph.DefaultStepCeiling,
		names:     make(map[string]*catalog.Media),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.seasons = seasongraph.New(cat, seasongraph.WithStepCeiling(r.ceiling), seasongraph.WithLogger(r.base))
	return r
}

// Lookup returns the entry a group key resolved to.
func (r *Resolver) Lookup(key string) (*catalog.Media, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.names[key]
	return m, ok
}

// Known returns the number of resolved group keys.
func (r *Resolver) Known() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// remember stores the first resolution of key and reports whether m was
// kept.
func (r *Resolver) remember(ctx context.Context, key string, m *catalog.Media) bool {
	if m == nil {
		return false
	}
	r.mu.Lock()
	prev, ok := r.names[key]
	if !ok {
		r.names[key] = m
	}
	r.mu.Unlock()

	logger := logging.WithContext(ctx, r.logger)
	if ok {
		logger.Debug("duplicate title resolution ignored",
			logging.String(logging.FieldGroupKey, key),
			logging.Int("kept", prev.ID),
			logging.Int("ignored", m.ID),
		)
		return false
	}
	logger.Debug("title resolved",
		logging.String(logging.FieldGroupKey, key),
		logging.Int(logging.FieldMediaID, m.ID),
		logging.String("title", m.DisplayTitle()),
	)
	return true
}

func groupKey(p releaseparse.Parsed) string {
	return titles.GroupKey(p.Title, p.Year, p.ReleaseInfo)
}

// FindByTitle searches every distinct, not yet resolved title in parsed.
// Excluded release types are not searched. Concurrent calls for the same
// set of titles share one search.
func (r *Resolver) FindByTitle(ctx context.Context, parsed []releaseparse.Parsed) error {
	var (
		keys  []string
		cands []titles.Candidate
		seen  = make(map[string]struct{})
	)
	for _, p := range parsed {
		if strings.TrimSpace(p.Title) == "" || Excluded(p) {
			continue
		}
		key := groupKey(p)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := r.Lookup(key); ok {
			continue
		}
		keys = append(keys, key)
		cands = append(cands, titles.Candidates(p.Title, p.Year, p.ReleaseInfo)...)
	}
	if len(keys) == 0 {
		return nil
	}

	logger := logging.WithContext(ctx, r.logger)
	logger.Debug("searching titles", logging.Int("titles", len(keys)), logging.Int("candidates", len(cands)))

	detached := context.WithoutCancel(ctx)
	ch := r.flight.DoChan(strings.Join(keys, "\x00"), func() (any, error) {
		found, err := r.catalog.SearchCompound(detached, cands)
		for key, m := range found {
			r.remember(detached, key, m)
		}
		return len(found), err
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResolveFiles resolves each name. Per-file problems are reported on the
// results; the error is non-nil only when ctx ends or the title search
// fails in a way that cannot degrade.
func (r *Resolver) ResolveFiles(ctx context.Context, names []string) ([]Result, error) {
	if len(names) == 0 {
		return nil, nil
	}
	parsed := releaseparse.ParseAll(names)
	logger := logging.WithContext(ctx, r.logger)

	if err := r.FindByTitle(ctx, parsed); err != nil {
		if ctx.Err() != nil || !services.Degradable(err) {
			return nil, err
		}
		logging.WarnWithContext(logger, "title search incomplete", "title_search_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check catalog connectivity; unresolved titles are retried on the next run"),
			logging.String(logging.FieldImpact, "some files are reported without a match"),
		)
	}

	mapper := iter.Mapper[releaseparse.Parsed, Result]{MaxGoroutines: r.workers}
	results := mapper.Map(parsed, func(p *releaseparse.Parsed) Result {
		return r.resolveOne(ctx, *p)
	})
	if err := ctx.Err(); err != nil {
		return results, err
	}

	resolved, failed, skipped := 0, 0, 0
	for _, res := range results {
		switch {
		case res.Skipped:
			skipped++
		case res.Resolved():
			resolved++
		default:
			failed++
		}
	}
	logger.Info("files resolved",
		logging.Int("files", len(results)),
		logging.Int("resolved", resolved),
		logging.Int("unresolved", failed),
		logging.Int("skipped", skipped),
	)
	return results, nil
}

// Resolve resolves one name.
func (r *Resolver) Resolve(ctx context.Context, name string) (Result, error) {
	results, err := r.ResolveFiles(ctx, []string{name})
	if len(results) == 0 {
		return Result{File: name}, err
	}
	return results[0], err
}

var seasonEpisodeMarker = regexp.MustCompile(`S\d+(E\d+)?`)

func (r *Resolver) resolveOne(ctx context.Context, p releaseparse.Parsed) Result {
	key := groupKey(p)
	ctx = services.WithGroupKey(services.WithFileName(ctx, p.Name), key)
	logger := logging.WithContext(ctx, r.logger)

	res := Result{
		File:       p.Name,
		Parsed:     p,
		Episode:    p.Episode,
		EpisodeEnd: p.EpisodeEnd,
		Season:     max(p.Season, 1),
	}
	if Excluded(p) {
		res.Skipped = true
		logger.Debug("release type excluded", logging.Args(logging.DecisionAttrs("release_type", "skipped", p.Type)...)...)
		return res
	}

	media, _ := r.Lookup(key)
	res.Media = media
	if !p.HasEpisode() || (media != nil && media.Format == catalog.FormatMovie && media.HighestEpisode() == 0) {
		return res
	}

	var err error
	if p.IsRange() {
		err = r.correctRange(ctx, p, &res)
	} else {
		err = r.correctEpisode(ctx, p, &res)
	}
	if err != nil {
		res.Failed = true
		res.Error = err.Error()
		if ctx.Err() == nil {
			logging.WarnWithContext(logger, "episode correction failed", "episode_correction_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the catalog lookup for a related season failed; retry later"),
				logging.String(logging.FieldImpact, "file reported with its parsed episode"),
			)
		}
	}

	attrs := []logging.Attr{
		logging.String("title", p.Title),
		logging.String("episode", res.EpisodeLabel()),
		logging.Int("season", res.Season),
	}
	if res.Media != nil {
		attrs = append(attrs, logging.Int(logging.FieldMediaID, res.Media.ID), logging.String("media_title", res.Media.DisplayTitle()))
	}
	if res.Resolved() {
		logger.Debug("file resolved", logging.Args(attrs...)...)
	} else {
		logger.Debug("file not resolved", logging.Args(attrs...)...)
	}
	return res
}

// correctRange maps a batch range onto one season. A range starting at 1
// spans a whole season or more and is left alone.
func (r *Resolver) correctRange(ctx context.Context, p releaseparse.Parsed, res *Result) error {
	media := res.Media
	maxep := media.HighestEpisode()
	if p.Episode == 1 || maxep == 0 || p.EpisodeEnd <= maxep {
		return nil
	}
	root, err := r.franchiseRoot(ctx, p, media, 0)
	if err != nil {
		return err
	}
	start := media
	if root != nil {
		start = root
	}
	rng := seasongraph.Range{Lower: p.Episode, Upper: p.EpisodeEnd}
	out, err := r.seasons.ResolveRange(ctx, seasongraph.Request{Media: start, Increment: incrementFor(p.Season > 0)}, rng)
	if err != nil {
		return err
	}
	if out.Failed() && p.Season > 0 {
		if out, err = r.seasons.ResolveRange(ctx, seasongraph.Request{Media: start}, rng); err != nil {
			return err
		}
	}
	res.Media = out.Root
	res.Episode = out.Range.Lower
	res.EpisodeEnd = out.Range.Upper
	res.Failed = out.Failed()
	return nil
}

// correctEpisode maps one absolute episode onto its season. A title that
// does not match its entry is re-searched without its season marker, and
// the found entry's length becomes a negative offset so the walk starts
// counting from the season after it.
func (r *Resolver) correctEpisode(ctx context.Context, p releaseparse.Parsed, res *Result) error {
	media := res.Media
	maxep := media.HighestEpisode()
	offset := 0
	if media == nil || !titles.Matches(media, p.Title, r.threshold) {
		verified, err := r.verify(ctx, p)
		if err != nil {
			return err
		}
		media = verified
		res.Media = media
		maxep = media.HighestEpisode()
		if media != nil {
			n := media.Episodes
			if n == 0 && media.NextAiringEpisode != nil {
				n = media.NextAiringEpisode.Episode
			}
			offset = -n
		}
	}

	ep := p.Episode
	if maxep == 0 || (ep <= maxep && offset == 0) {
		return nil
	}

	root, err := r.franchiseRoot(ctx, p, media, offset)
	if err != nil {
		return err
	}
	// A root whose title does not match means the search already landed on
	// the root.
	isRoot := root != nil && !titles.Matches(root, p.Title, r.threshold)
	start := media
	if root != nil && !isRoot {
		start = root
	}
	req := seasongraph.Request{Media: start, Episode: ep, Offset: offset, Increment: incrementFor(p.Season > 0 || isRoot)}
	out, err := r.seasons.Resolve(ctx, req)
	if err != nil {
		return err
	}
	if out.Failed() && p.Season > 0 {
		req.Increment = nil
		if out, err = r.seasons.Resolve(ctx, req); err != nil {
			return err
		}
	}
	res.Media = out.Root
	res.Episode = out.Episode
	res.Failed = out.Failed()
	return nil
}

// verify re-searches the title with its SxxEyy marker removed.
func (r *Resolver) verify(ctx context.Context, p releaseparse.Parsed) (*catalog.Media, error) {
	loc := seasonEpisodeMarker.FindStringIndex(p.Title)
	title := p.Title
	if loc != nil {
		title = title[:loc[0]] + title[loc[1]:]
	}
	np := releaseparse.Parse(title)
	logging.WithContext(ctx, r.logger).Debug("verifying title against root search",
		logging.String("title", p.Title),
		logging.String("search", np.Title),
	)
	if err := r.FindByTitle(ctx, []releaseparse.Parsed{np}); err != nil {
		return nil, fmt.Errorf("verify %q: %w", np.Title, err)
	}
	m, _ := r.Lookup(groupKey(np))
	return m, nil
}

// franchiseRoot walks prequels (or the parent of an OVA/ONA) to the first
// season. A parsed season means the search already targeted the right
// season, so no root is needed.
func (r *Resolver) franchiseRoot(ctx context.Context, p releaseparse.Parsed, media *catalog.Media, offset int) (*catalog.Media, error) {
	if p.Season > 0 {
		return nil, nil
	}
	node := seasongraph.RootCandidate(media)
	if node == nil {
		return nil, nil
	}
	start, err := r.catalog.MediaByID(ctx, node.ID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("franchise root: %w", err)
	}
	out, err := r.seasons.Resolve(ctx, seasongraph.Request{Media: start, Force: true, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("franchise root: %w", err)
	}
	return out.Media, nil
}

func incrementFor(forward bool) *bool {
	if !forward {
		return nil
	}
	return &forward
}
