package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"animelink/internal/gateway"
	"animelink/internal/services"
	"animelink/internal/titles"
	"animelink/internal/ttlcache"
)

type fakeRequester struct {
	mu    sync.Mutex
	calls []gateway.Request
	fn    func(gateway.Request) (gateway.Result, error)
}

func (f *fakeRequester) Do(_ context.Context, req gateway.Request) (gateway.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.fn(req)
}

func (f *fakeRequester) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func dataResult(payload string) gateway.Result {
	return gateway.Result{Data: json.RawMessage(payload), Status: 200}
}

func newTestClient(r Requester, opts ...Option) *Client {
	cache := ttlcache.New(ttlcache.Options{})
	return New(r, cache, opts...)
}

const frierenPage = `{"Page":{"pageInfo":{"hasNextPage":false},"media":[{"id":154587,"title":{"romaji":"Sousou no Frieren","english":"Frieren: Beyond Journey's End"},"episodes":28,"format":"TV"}]}}`

func TestSearchByIDsIsCached(t *testing.T) {
	fake := &fakeRequester{fn: func(gateway.Request) (gateway.Result, error) { return dataResult(frierenPage), nil }}
	c := newTestClient(fake)

	for range 2 {
		page, err := c.SearchByIDs(context.Background(), IDFilter{ID: []int{154587}})
		if err != nil {
			t.Fatalf("SearchByIDs: %v", err)
		}
		if m := page.Find(154587); m == nil || m.Episodes != 28 {
			t.Fatalf("unexpected page: %+v", page)
		}
	}
	if fake.count() != 1 {
		t.Fatalf("expected one request, got %d", fake.count())
	}
	vars := fake.calls[0].Variables
	if ids, ok := vars["id"].([]any); !ok || len(ids) != 1 {
		t.Fatalf("expected id variable, got %#v", vars)
	}
	if _, ok := vars["idMal"]; ok {
		t.Fatalf("empty filters must be omitted: %#v", vars)
	}
}

func TestMediaByIDUsesIdentityStore(t *testing.T) {
	fake := &fakeRequester{fn: func(gateway.Request) (gateway.Result, error) { return dataResult(frierenPage), nil }}
	c := newTestClient(fake)

	if _, err := c.SearchByText(context.Background(), TextFilter{Name: "frieren"}); err != nil {
		t.Fatalf("SearchByText: %v", err)
	}
	m, err := c.MediaByID(context.Background(), 154587)
	if err != nil {
		t.Fatalf("MediaByID: %v", err)
	}
	if m.DisplayTitle() != "Frieren: Beyond Journey's End" {
		t.Fatalf("unexpected title %q", m.DisplayTitle())
	}
	if fake.count() != 1 {
		t.Fatalf("expected identity hit, got %d requests", fake.count())
	}
}

func TestMediaByIDNotFound(t *testing.T) {
	fake := &fakeRequester{fn: func(gateway.Request) (gateway.Result, error) {
		return dataResult(`{"Page":{"pageInfo":{},"media":[]}}`), nil
	}}
	c := newTestClient(fake)
	_, err := c.MediaByID(context.Background(), 1)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEmptyResultIsNotAnError(t *testing.T) {
	fake := &fakeRequester{fn: func(gateway.Request) (gateway.Result, error) {
		return gateway.Result{Status: 404, Empty: true}, nil
	}}
	c := newTestClient(fake)
	page, err := c.SearchByText(context.Background(), TextFilter{Name: "nothing"})
	if err != nil {
		t.Fatalf("SearchByText: %v", err)
	}
	if len(page.Media) != 0 {
		t.Fatalf("expected empty page, got %+v", page)
	}
}

func TestUpstreamErrorsSurface(t *testing.T) {
	fake := &fakeRequester{fn: func(gateway.Request) (gateway.Result, error) {
		return gateway.Result{Status: 400, Errors: []gateway.UpstreamError{{Status: 400, Message: "bad"}}}, nil
	}}
	c := newTestClient(fake)
	_, err := c.SearchByText(context.Background(), TextFilter{Name: "x"})
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestAiringScheduleUsesEpisodeLane(t *testing.T) {
	queries := &fakeRequester{fn: func(gateway.Request) (gateway.Result, error) {
		t.Error("schedule lookup went through the query lane")
		return gateway.Result{}, nil
	}}
	episodes := &fakeRequester{fn: func(req gateway.Request) (gateway.Result, error) {
		if req.Variables["id"] != 21 {
			t.Errorf("unexpected variables %#v", req.Variables)
		}
		return dataResult(`{"Page":{"airingSchedules":[{"airingAt":1,"episode":1},{"airingAt":2,"episode":2}]}}`), nil
	}}
	c := newTestClient(queries, WithEpisodeRequester(episodes))

	got, err := c.AiringSchedule(context.Background(), 21)
	if err != nil {
		t.Fatalf("AiringSchedule: %v", err)
	}
	if len(got) != 2 || got[1].Episode != 2 {
		t.Fatalf("unexpected schedule %+v", got)
	}
}

func TestExpiryWindows(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var windows [][2]int
	jitter := func(lo, hi int) int {
		windows = append(windows, [2]int{lo, hi})
		return lo
	}
	fake := &fakeRequester{fn: func(req gateway.Request) (gateway.Result, error) {
		if strings.Contains(req.Query, "airingSchedules") {
			return dataResult(`{"Page":{"airingSchedules":[]}}`), nil
		}
		return dataResult(frierenPage), nil
	}}
	c := newTestClient(fake, WithJitter(jitter), WithClock(func() time.Time { return now }))
	ctx := context.Background()
	_, _ = c.SearchByIDs(ctx, IDFilter{ID: []int{1}})
	_, _ = c.SearchByText(ctx, TextFilter{Name: "a"})
	_, _ = c.AiringSchedule(ctx, 1)

	want := [][2]int{{34, 46}, {16, 28}, {75, 100}}
	if len(windows) != len(want) {
		t.Fatalf("expected %d draws, got %v", len(want), windows)
	}
	for i := range want {
		if windows[i] != want[i] {
			t.Fatalf("draw %d: expected %v, got %v", i, want[i], windows[i])
		}
	}
}

func TestDefaultJitterStaysInWindow(t *testing.T) {
	c := New(nil, nil)
	for range 200 {
		n := c.randInt(16, 28)
		if n < 16 || n > 28 {
			t.Fatalf("draw %d outside window", n)
		}
	}
}

func TestBuildCompoundQuery(t *testing.T) {
	cands := []titles.Candidate{
		{Title: "Frieren", GroupKey: "frieren", Year: 2023},
		{Title: "Frieren", GroupKey: "frieren"},
		{Title: "Frieren", GroupKey: "frieren", IsAdult: true},
	}
	query, vars := buildCompoundQuery(cands)

	if len(vars) != 2 || vars["v0"] != "Frieren" || vars["v1"] != "Frieren" {
		t.Fatalf("unexpected variables %#v", vars)
	}
	if _, ok := vars["v2"]; ok {
		t.Fatal("adult candidate must reuse the previous variable")
	}
	for _, want := range []string{
		"query($v0: String, $v1: String)",
		"v0: Page(perPage: 10) { media(type: ANIME, search: $v0, status_in: [RELEASING, FINISHED], isAdult: false, seasonYear: 2023) { ...med } }",
		"v1: Page(perPage: 10) { media(type: ANIME, search: $v1, status_in: [RELEASING, FINISHED], isAdult: false) { ...med } }",
		"v2: Page(perPage: 10) { media(type: ANIME, search: $v1, status_in: [RELEASING, FINISHED], isAdult: true) { ...med } }",
		"fragment med on Media",
	} {
		if !strings.Contains(query, want) {
			t.Fatalf("query missing %q:\n%s", want, query)
		}
	}
}

func TestSearchCompoundPicksFirstAliasAndHydrates(t *testing.T) {
	compound := `{
		"v0": {"media": []},
		"v1": {"media": [
			{"id": 2, "title": {"romaji": "Something Else"}},
			{"id": 1, "title": {"romaji": "Frieren"}}
		]},
		"v2": {"media": [{"id": 3, "title": {"romaji": "Frieren"}}]},
		"v3": {"media": [{"id": 9, "title": {"romaji": "Dungeon Meshi"}}]}
	}`
	hydrated := `{"Page":{"media":[
		{"id": 1, "title": {"romaji": "Sousou no Frieren"}, "episodes": 28},
		{"id": 9, "title": {"romaji": "Dungeon Meshi"}, "episodes": 24}
	]}}`
	fake := &fakeRequester{fn: func(req gateway.Request) (gateway.Result, error) {
		if strings.Contains(req.Query, "...med") {
			return dataResult(compound), nil
		}
		return dataResult(hydrated), nil
	}}
	c := newTestClient(fake)
	cands := []titles.Candidate{
		{Title: "Frieren 2023", GroupKey: "frieren"},
		{Title: "Frieren", GroupKey: "frieren"},
		{Title: "Frieren", GroupKey: "frieren", IsAdult: true},
		{Title: "Dungeon Meshi", GroupKey: "meshi"},
	}

	got, err := c.SearchCompound(context.Background(), cands)
	if err != nil {
		t.Fatalf("SearchCompound: %v", err)
	}
	if got["frieren"] == nil || got["frieren"].ID != 1 || got["frieren"].Episodes != 28 {
		t.Fatalf("unexpected frieren result %+v", got["frieren"])
	}
	if got["meshi"] == nil || got["meshi"].ID != 9 {
		t.Fatalf("unexpected meshi result %+v", got["meshi"])
	}
	if fake.count() != 2 {
		t.Fatalf("expected compound plus hydration, got %d requests", fake.count())
	}
}

func TestSearchCompoundBatches(t *testing.T) {
	var mu sync.Mutex
	var sizes []int
	fake := &fakeRequester{fn: func(req gateway.Request) (gateway.Result, error) {
		if strings.Contains(req.Query, "...med") {
			mu.Lock()
			sizes = append(sizes, strings.Count(req.Query, "Page(perPage: 10)"))
			mu.Unlock()
			return dataResult(`{}`), nil
		}
		return dataResult(`{"Page":{"media":[]}}`), nil
	}}
	c := newTestClient(fake, WithBatchSize(2))
	cands := make([]titles.Candidate, 5)
	for i := range cands {
		cands[i] = titles.Candidate{Title: string(rune('a' + i)), GroupKey: string(rune('a' + i))}
	}
	got, err := c.SearchCompound(context.Background(), cands)
	if err != nil {
		t.Fatalf("SearchCompound: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no winners, got %v", got)
	}
	if len(sizes) != 3 || sizes[0] != 2 || sizes[2] != 1 {
		t.Fatalf("unexpected batch sizes %v", sizes)
	}
}

func TestSearchCompoundKeepsOtherBatchesOnFailure(t *testing.T) {
	fake := &fakeRequester{fn: func(req gateway.Request) (gateway.Result, error) {
		switch {
		case strings.Contains(req.Query, "...med") && req.Variables["v0"] == "bad":
			return gateway.Result{}, services.Wrap(services.ErrTransport, "gateway", "send", "", errors.New("reset"))
		case strings.Contains(req.Query, "...med"):
			return dataResult(`{"v0":{"media":[{"id":5,"title":{"romaji":"good"}}]}}`), nil
		default:
			return dataResult(`{"Page":{"media":[{"id":5,"title":{"romaji":"good"}}]}}`), nil
		}
	}}
	c := newTestClient(fake, WithBatchSize(1))
	got, err := c.SearchCompound(context.Background(), []titles.Candidate{
		{Title: "bad", GroupKey: "bad"},
		{Title: "good", GroupKey: "good"},
	})
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected joined transport error, got %v", err)
	}
	if got["good"] == nil || got["good"].ID != 5 {
		t.Fatalf("expected good batch to resolve, got %v", got)
	}
}
