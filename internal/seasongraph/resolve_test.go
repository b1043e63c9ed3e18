package seasongraph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"animelink/internal/catalog"
	"animelink/internal/services"
)

type fakeFetcher struct {
	mu    sync.Mutex
	media map[int]*catalog.Media
	calls int
	err   error
}

func (f *fakeFetcher) MediaByID(_ context.Context, id int) (*catalog.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.media[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "fake", "media", "", nil)
	}
	return m, nil
}

func newFetcher(media ...*catalog.Media) *fakeFetcher {
	f := &fakeFetcher{media: make(map[int]*catalog.Media)}
	for _, m := range media {
		f.media[m.ID] = m
	}
	return f
}

func show(id, episodes int, format string) *catalog.Media {
	return &catalog.Media{ID: id, Episodes: episodes, Format: format, Relations: &catalog.Relations{}}
}

func link(from *catalog.Media, relation string, to *catalog.Media) {
	from.Relations.Edges = append(from.Relations.Edges, catalog.RelationEdge{
		RelationType: relation,
		Node:         catalog.RelationNode{ID: to.ID, Format: to.Format},
	})
}

// franchise builds a linear chain of TV seasons linked both ways.
func franchise(episodes ...int) []*catalog.Media {
	out := make([]*catalog.Media, len(episodes))
	for i, n := range episodes {
		out[i] = show(i+1, n, catalog.FormatTV)
		if i > 0 {
			link(out[i-1], catalog.RelationSequel, out[i])
			link(out[i], catalog.RelationPrequel, out[i-1])
		}
	}
	return out
}

func boolPtr(v bool) *bool { return &v }

func TestResolveIntoSequel(t *testing.T) {
	seasons := franchise(12, 12)
	r := New(newFetcher(seasons...))

	res, err := r.Resolve(context.Background(), Request{Media: seasons[0], Episode: 14})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.State != Resolved || res.Failed() {
		t.Fatalf("expected resolved, got %s", res.State)
	}
	if res.Media.ID != 2 || res.Root.ID != 2 || res.Episode != 2 {
		t.Fatalf("expected season 2 episode 2, got media %d root %d episode %d", res.Media.ID, res.Root.ID, res.Episode)
	}
	if !res.Increment || res.Offset != 12 {
		t.Fatalf("unexpected walk state %+v", res)
	}
}

func TestResolveAcrossSeveralSeasons(t *testing.T) {
	seasons := franchise(12, 12, 12)
	r := New(newFetcher(seasons...))

	res, err := r.Resolve(context.Background(), Request{Media: seasons[0], Episode: 30})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.State != Resolved || res.Media.ID != 3 || res.Episode != 6 || res.Steps != 2 {
		t.Fatalf("expected season 3 episode 6 after two steps, got %+v", res)
	}
}

func TestResolveUsesNextAiringEpisode(t *testing.T) {
	seasons := franchise(0, 0)
	seasons[0].NextAiringEpisode = &catalog.AiringEpisode{Episode: 10}
	seasons[1].NextAiringEpisode = &catalog.AiringEpisode{Episode: 4}
	r := New(newFetcher(seasons...))

	res, err := r.Resolve(context.Background(), Request{Media: seasons[0], Episode: 12})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Media.ID != 2 || res.Episode != 2 {
		t.Fatalf("expected season 2 episode 2, got media %d episode %d", res.Media.ID, res.Episode)
	}
}

func TestResolveWithNegativeOffset(t *testing.T) {
	seasons := franchise(12, 12)
	r := New(newFetcher(seasons...))

	res, err := r.Resolve(context.Background(), Request{
		Media:     seasons[0],
		Episode:   3,
		Increment: boolPtr(true),
		Offset:    -12,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.State != Resolved || res.Media.ID != 2 || res.Episode != 3 {
		t.Fatalf("expected season 2 episode 3, got %+v", res)
	}
}

func TestResolveWithoutEdgeFails(t *testing.T) {
	lone := show(7, 12, catalog.FormatTV)
	fetcher := newFetcher(lone)
	r := New(fetcher)

	res, err := r.Resolve(context.Background(), Request{Media: lone, Episode: 20, Offset: 3})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.State != Failed || res.Media != lone || res.Episode != 17 || res.Offset != 3 {
		t.Fatalf("unexpected failed result %+v", res)
	}
	if fetcher.calls != 0 {
		t.Fatalf("expected no lookups, got %d", fetcher.calls)
	}
}

func TestForcedWalkFindsRoot(t *testing.T) {
	seasons := franchise(12, 12, 12)
	r := New(newFetcher(seasons...))

	res, err := r.Resolve(context.Background(), Request{Media: seasons[2], Force: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.State != Resolved || res.Media.ID != 1 {
		t.Fatalf("expected root season 1, got %+v", res)
	}
	if res.Increment {
		t.Fatal("a prequel walk must not increment")
	}
	if res.Offset != 24 {
		t.Fatalf("expected offset 24, got %d", res.Offset)
	}
}

func TestForcedWalkDoesNotStopAtEpisode(t *testing.T) {
	seasons := franchise(12, 12, 12)
	r := New(newFetcher(seasons...))

	res, err := r.Resolve(context.Background(), Request{Media: seasons[0], Episode: 14, Force: true, Increment: boolPtr(true)})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Media.ID != 3 {
		t.Fatalf("expected walk to the last season, got %d", res.Media.ID)
	}
}

func TestCycleEndsInFailure(t *testing.T) {
	a := show(1, 12, catalog.FormatTV)
	b := show(2, 12, catalog.FormatTV)
	link(a, catalog.RelationSequel, b)
	link(b, catalog.RelationSequel, a)
	fetcher := newFetcher(a, b)
	r := New(fetcher)

	res, err := r.Resolve(context.Background(), Request{Media: a, Episode: 100})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.State != Failed {
		t.Fatalf("expected failure on cycle, got %s", res.State)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected one lookup before the revisit, got %d", fetcher.calls)
	}
}

func TestStepCeiling(t *testing.T) {
	counts := make([]int, 40)
	for i := range counts {
		counts[i] = 1
	}
	seasons := franchise(counts...)
	fetcher := newFetcher(seasons...)
	r := New(fetcher, WithStepCeiling(3))

	res, err := r.Resolve(context.Background(), Request{Media: seasons[0], Episode: 39})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.State != Failed || res.Steps != 3 || fetcher.calls != 3 {
		t.Fatalf("expected failure after 3 steps, got %+v with %d calls", res, fetcher.calls)
	}
}

func TestSequelFallsBackToOVA(t *testing.T) {
	a := show(1, 12, catalog.FormatTV)
	movie := show(2, 1, catalog.FormatMovie)
	ova := show(3, 6, catalog.FormatOVA)
	link(a, catalog.RelationSequel, movie)
	link(a, catalog.RelationSequel, ova)
	r := New(newFetcher(a, movie, ova))

	res, err := r.Resolve(context.Background(), Request{Media: a, Episode: 14})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Media.ID != 3 || res.Episode != 2 {
		t.Fatalf("expected OVA episode 2, got media %d episode %d", res.Media.ID, res.Episode)
	}
}

func TestFindEdge(t *testing.T) {
	a := show(1, 12, catalog.FormatTV)
	link(a, catalog.RelationSequel, show(2, 1, catalog.FormatMovie))
	link(a, catalog.RelationPrequel, show(3, 1, catalog.FormatOVA))

	if edge := FindEdge(a, catalog.RelationSequel); edge != nil {
		t.Fatalf("movie sequel must be ignored, got %+v", edge)
	}
	if edge := FindEdge(a, catalog.RelationPrequel); edge != nil {
		t.Fatalf("OVA prequel must be ignored, got %+v", edge)
	}
	if edge := FindEdge(a, catalog.RelationSequel, catalog.FormatMovie); edge == nil || edge.Node.ID != 2 {
		t.Fatalf("explicit formats must be honored, got %+v", edge)
	}
	if edge := FindEdge(nil, catalog.RelationSequel); edge != nil {
		t.Fatal("nil media has no edges")
	}
}

func TestRootCandidate(t *testing.T) {
	seasons := franchise(12, 12)
	if node := RootCandidate(seasons[1]); node == nil || node.ID != 1 {
		t.Fatalf("expected prequel root, got %+v", node)
	}
	if node := RootCandidate(seasons[0]); node != nil {
		t.Fatalf("first season has no root candidate, got %+v", node)
	}

	ova := show(9, 2, catalog.FormatOVA)
	link(ova, catalog.RelationParent, seasons[0])
	if node := RootCandidate(ova); node == nil || node.ID != 1 {
		t.Fatalf("expected parent root for OVA, got %+v", node)
	}

	special := show(10, 2, catalog.FormatTVShort)
	link(special, catalog.RelationParent, seasons[0])
	if node := RootCandidate(special); node != nil {
		t.Fatalf("parent is only followed for OVA and ONA, got %+v", node)
	}
}

func TestResolveRange(t *testing.T) {
	seasons := franchise(12, 12)
	r := New(newFetcher(seasons...))

	res, err := r.ResolveRange(context.Background(), Request{Media: seasons[0]}, Range{Lower: 13, Upper: 14})
	if err != nil {
		t.Fatalf("ResolveRange: %v", err)
	}
	if res.Failed() || res.Media.ID != 2 {
		t.Fatalf("expected season 2, got %+v", res.Result)
	}
	if res.Range != (Range{Lower: 1, Upper: 2}) {
		t.Fatalf("expected [1,2], got %+v", res.Range)
	}
}

func TestResolveRejectsInvalidRequests(t *testing.T) {
	r := New(newFetcher())
	if _, err := r.Resolve(context.Background(), Request{Episode: 3}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for nil media, got %v", err)
	}
	if _, err := r.Resolve(context.Background(), Request{Media: show(1, 12, catalog.FormatTV)}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing episode, got %v", err)
	}
}

func TestResolvePropagatesLookupErrors(t *testing.T) {
	seasons := franchise(12, 12)
	fetcher := newFetcher(seasons...)
	fetcher.err = services.Wrap(services.ErrTransport, "fake", "media", "", nil)
	r := New(fetcher)

	if _, err := r.Resolve(context.Background(), Request{Media: seasons[0], Episode: 14}); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestResolveHonorsCancellation(t *testing.T) {
	seasons := franchise(12, 12)
	r := New(newFetcher(seasons...))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Resolve(ctx, Request{Media: seasons[0], Episode: 14}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
