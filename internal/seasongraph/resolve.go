package seasongraph

import (
	"context"
	"fmt"
	"log/slog"

	"animelink/internal/catalog"
	"animelink/internal/logging"
	"animelink/internal/services"
)

// DefaultStepCeiling bounds the number of edges one walk may follow.
const DefaultStepCeiling = 32

// State is the outcome of a walk.
type State int

const (
	Resolving State = iota
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Fetcher loads the target of a relation edge.
type Fetcher interface {
	MediaByID(ctx context.Context, id int) (*catalog.Media, error)
}

// Request describes one walk.
type Request struct {
	Media   *catalog.Media
	Episode int
	// Force walks to the end of the relation chain without checking
	// episode bounds. It is used to locate a franchise root.
	Force bool
	// Increment selects the direction: true walks sequels, false walks
	// prequels. Nil picks sequels unless media has a prequel.
	Increment *bool
	Offset    int
	// Root is the entry episode counts are measured against. Defaults to
	// Media.
	Root *catalog.Media
}

// Result is where a walk ended.
type Result struct {
	Media *catalog.Media
	Root  *catalog.Media
	// Episode is relative to Media when State is Resolved.
	Episode   int
	Offset    int
	Increment bool
	State     State
	Steps     int
}

// Failed reports whether the walk could not place the episode.
func (r Result) Failed() bool {
	return r.State != Resolved
}

// Resolver walks relation graphs.
type Resolver struct {
	fetcher Fetcher
	ceiling int
	logger  *slog.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithStepCeiling overrides DefaultStepCeiling.
func WithStepCeiling(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.ceiling = n
		}
	}
}

// WithLogger sets the resolver logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logging.NewComponentLogger(logger, "seasongraph")
		}
	}
}

// New constructs a Resolver.
func New(fetcher Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		ceiling: DefaultStepCeiling,
		logger:  logging.NewComponentLogger(logging.NewNop(), "seasongraph"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// walk is the mutable state of one Resolve call.
type walk struct {
	media     *catalog.Media
	root      *catalog.Media
	episode   int
	offset    int
	increment *bool
	force     bool
	visited   map[int]struct{}
	steps     int
}

// Resolve walks from req.Media until req.Episode falls inside the current
// entry. A missing edge, a revisited entry or the step ceiling end the walk
// in the Failed state. Errors are returned only for invalid requests and
// failed lookups.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	if req.Media == nil {
		return Result{}, services.Wrap(services.ErrValidation, "seasongraph", "resolve", "no media", nil)
	}
	if req.Episode == 0 && !req.Force {
		return Result{}, services.Wrap(services.ErrValidation, "seasongraph", "resolve", "no episode", nil)
	}
	w := &walk{
		media:     req.Media,
		root:      req.Root,
		episode:   req.Episode,
		offset:    req.Offset,
		increment: req.Increment,
		force:     req.Force,
		visited:   map[int]struct{}{req.Media.ID: {}},
	}
	if w.root == nil {
		w.root = req.Media
	}
	logger := logging.WithContext(ctx, r.logger)

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, done, err := r.step(ctx, w)
		if err != nil {
			return Result{}, err
		}
		if done {
			if res.State == Failed && !req.Force {
				logger.Debug("season walk failed",
					logging.Int(logging.FieldMediaID, res.Media.ID),
					logging.String("title", res.Media.DisplayTitle()),
					logging.Int("episode", req.Episode),
					logging.Bool("increment", res.Increment),
					logging.Int("offset", res.Offset),
					logging.Int("root_id", res.Root.ID),
					logging.Int("steps", res.Steps),
				)
			}
			return res, nil
		}
	}
}

// step follows one edge. It reports done with the final result when the
// walk ends here.
func (r *Resolver) step(ctx context.Context, w *walk) (Result, bool, error) {
	rootHighest := w.root.HighestEpisode()

	var edge *catalog.RelationEdge
	prequel := false
	if w.increment == nil || !*w.increment {
		edge = FindEdge(w.media, catalog.RelationPrequel)
		prequel = edge != nil
	}
	if edge == nil && (w.increment == nil || *w.increment) {
		edge = FindEdge(w.media, catalog.RelationSequel)
	}
	increment := !prequel
	if w.increment != nil {
		increment = *w.increment
	}
	w.increment = &increment

	if edge == nil {
		return w.terminal(w.force), true, nil
	}
	if _, seen := w.visited[edge.Node.ID]; seen || w.steps >= r.ceiling {
		return w.terminal(false), true, nil
	}
	w.visited[edge.Node.ID] = struct{}{}
	w.steps++

	target, err := r.fetcher.MediaByID(ctx, edge.Node.ID)
	if err != nil {
		return Result{}, false, fmt.Errorf("fetch %s %d: %w", edge.RelationType, edge.Node.ID, err)
	}
	highest := target.HighestEpisode()
	diff := w.episode - (highest + w.offset)
	if increment {
		w.offset += rootHighest
		w.root = target
	} else {
		w.offset += highest
	}
	w.media = target

	if !w.force && diff <= rootHighest {
		w.episode -= w.offset
		return w.result(Resolved), true, nil
	}
	return Result{}, false, nil
}

// terminal ends the walk where it stands. A forced walk that runs out of
// edges has found the end of the chain, which is what it was looking for.
func (w *walk) terminal(resolved bool) Result {
	state := Failed
	if resolved {
		state = Resolved
	}
	res := w.result(state)
	res.Episode = w.episode - w.offset
	return res
}

func (w *walk) result(state State) Result {
	return Result{
		Media:     w.media,
		Root:      w.root,
		Episode:   w.episode,
		Offset:    w.offset,
		Increment: w.increment != nil && *w.increment,
		State:     state,
		Steps:     w.steps,
	}
}

// Range is an inclusive episode range.
type Range struct {
	Lower int
	Upper int
}

// RangeResult is a range mapped onto one season.
type RangeResult struct {
	Result
	Range Range
}

// ResolveRange resolves req for the upper bound of rng and shifts the lower
// bound by the same amount, so a batch crossing a season boundary keeps its
// width. req.Episode is ignored.
func (r *Resolver) ResolveRange(ctx context.Context, req Request, rng Range) (RangeResult, error) {
	req.Episode = rng.Upper
	res, err := r.Resolve(ctx, req)
	if err != nil {
		return RangeResult{}, err
	}
	diff := rng.Upper - res.Episode
	return RangeResult{Result: res, Range: Range{Lower: rng.Lower - diff, Upper: res.Episode}}, nil
}
