package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"slices"
	"strings"
	"sync"
	"testing"

	"animelink/internal/catalog"
)

var compoundAlias = regexp.MustCompile(`(v\d+): Page\(perPage: 10\) \{ media\(type: ANIME, search: \$(v\d+), status_in: \[[^\]]*\], isAdult: (true|false)`)

// CatalogServer is an in-process stand-in for the GraphQL catalog. It
// answers compound, id, and free-text searches from a fixed media set.
type CatalogServer struct {
	*httptest.Server

	mu       sync.Mutex
	media    []catalog.Media
	requests []string
	// Status, when set, is returned for every request instead of data.
	status int
}

// NewCatalogServer starts a server seeded with media and registers cleanup.
func NewCatalogServer(t testing.TB, media ...catalog.Media) *CatalogServer {
	t.Helper()
	s := &CatalogServer{media: media}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// FailWith makes every subsequent request answer with status.
func (s *CatalogServer) FailWith(status int) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Requests returns the kind of every request served so far: "compound",
// "ids", "text" or "airing".
func (s *CatalogServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// Count returns how many requests of kind were served.
func (s *CatalogServer) Count(kind string) int {
	n := 0
	for _, r := range s.Requests() {
		if r == kind {
			n++
		}
	}
	return n
}

func (s *CatalogServer) handle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	status := s.status
	kind := classifyQuery(body.Query)
	s.requests = append(s.requests, kind)
	s.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"errors":[{"message":"` + http.StatusText(status) + `"}]}`))
		return
	}

	var data any
	switch kind {
	case "compound":
		pages := make(map[string]any)
		for _, m := range compoundAlias.FindAllStringSubmatch(body.Query, -1) {
			search, _ := body.Variables[m[2]].(string)
			pages[m[1]] = map[string]any{"media": s.search(search, m[3] == "true")}
		}
		data = pages
	case "ids":
		data = page(s.byIDs(intList(body.Variables["id"])))
	case "text":
		name, _ := body.Variables["name"].(string)
		adult, _ := body.Variables["isAdult"].(bool)
		data = page(s.search(name, adult))
	default:
		data = map[string]any{"Page": map[string]any{"airingSchedules": []any{}}}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func classifyQuery(q string) string {
	switch {
	case strings.Contains(q, "v0: Page"):
		return "compound"
	case strings.Contains(q, "id_in:"):
		return "ids"
	case strings.Contains(q, "airingSchedules"):
		return "airing"
	default:
		return "text"
	}
}

func page(media []catalog.Media) map[string]any {
	return map[string]any{"Page": map[string]any{
		"pageInfo": map[string]any{"hasNextPage": false},
		"media":    media,
	}}
}

func (s *CatalogServer) search(query string, adult bool) []catalog.Media {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []catalog.Media{}
	if q == "" {
		return out
	}
	for _, m := range s.media {
		if m.IsAdult != adult {
			continue
		}
		for _, title := range append(m.TitleFields(), m.Synonyms...) {
			t := strings.ToLower(title)
			if t != "" && (strings.Contains(t, q) || strings.Contains(q, t)) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

func (s *CatalogServer) byIDs(ids []int) []catalog.Media {
	out := []catalog.Media{}
	for _, m := range s.media {
		if slices.Contains(ids, m.ID) {
			out = append(out, m)
		}
	}
	return out
}

func intList(v any) []int {
	items, _ := v.([]any)
	out := make([]int, 0, len(items))
	for _, item := range items {
		if f, ok := item.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out
}
