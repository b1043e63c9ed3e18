package catalog

// Relation types and formats used by the season walk.
const (
	RelationPrequel = "PREQUEL"
	RelationSequel  = "SEQUEL"
	RelationParent  = "PARENT"

	FormatTV      = "TV"
	FormatTVShort = "TV_SHORT"
	FormatMovie   = "MOVIE"
	FormatOVA     = "OVA"
	FormatONA     = "ONA"
)

// Title holds the catalog's title variants.
type Title struct {
	Romaji        string `json:"romaji,omitempty"`
	English       string `json:"english,omitempty"`
	Native        string `json:"native,omitempty"`
	UserPreferred string `json:"userPreferred,omitempty"`
}

// AiringEpisode is the next scheduled episode of a releasing show.
type AiringEpisode struct {
	Episode         int `json:"episode"`
	TimeUntilAiring int `json:"timeUntilAiring,omitempty"`
}

// RelationNode is the far side of a relation edge.
type RelationNode struct {
	ID         int    `json:"id"`
	Type       string `json:"type,omitempty"`
	Format     string `json:"format,omitempty"`
	SeasonYear int    `json:"seasonYear,omitempty"`
}

// RelationEdge links two catalog entries.
type RelationEdge struct {
	RelationType string       `json:"relationType"`
	Node         RelationNode `json:"node"`
}

// Relations wraps the edge list the way the catalog returns it.
type Relations struct {
	Edges []RelationEdge `json:"edges"`
}

// Media is a catalog entry.
type Media struct {
	ID                int            `json:"id"`
	IDMal             int            `json:"idMal,omitempty"`
	Title             Title          `json:"title"`
	Synonyms          []string       `json:"synonyms,omitempty"`
	Episodes          int            `json:"episodes,omitempty"`
	Duration          int            `json:"duration,omitempty"`
	NextAiringEpisode *AiringEpisode `json:"nextAiringEpisode,omitempty"`
	Format            string         `json:"format,omitempty"`
	Status            string         `json:"status,omitempty"`
	Season            string         `json:"season,omitempty"`
	SeasonYear        int            `json:"seasonYear,omitempty"`
	IsAdult           bool           `json:"isAdult,omitempty"`
	Genres            []string       `json:"genres,omitempty"`
	Relations         *Relations     `json:"relations,omitempty"`
}

// HighestEpisode is the next airing episode when known, else the episode
// count. Zero means unknown.
func (m *Media) HighestEpisode() int {
	if m == nil {
		return 0
	}
	if m.NextAiringEpisode != nil && m.NextAiringEpisode.Episode > 0 {
		return m.NextAiringEpisode.Episode
	}
	return m.Episodes
}

// Edges returns the relation edges, or nil.
func (m *Media) Edges() []RelationEdge {
	if m == nil || m.Relations == nil {
		return nil
	}
	return m.Relations.Edges
}

// DisplayTitle picks the title a user would expect to see.
func (m *Media) DisplayTitle() string {
	if m == nil {
		return ""
	}
	for _, t := range []string{m.Title.UserPreferred, m.Title.English, m.Title.Romaji, m.Title.Native} {
		if t != "" {
			return t
		}
	}
	return ""
}

// TitleFields implements titles.Titled.
func (m *Media) TitleFields() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, 4)
	for _, t := range []string{m.Title.Romaji, m.Title.English, m.Title.Native, m.Title.UserPreferred} {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SynonymList implements titles.Titled.
func (m *Media) SynonymList() []string {
	if m == nil {
		return nil
	}
	return m.Synonyms
}

// PageInfo is the pagination block of a Page.
type PageInfo struct {
	HasNextPage bool `json:"hasNextPage"`
}

// Page is one page of media results.
type Page struct {
	PageInfo PageInfo `json:"pageInfo"`
	Media    []*Media `json:"media"`
}

// Find returns the media with id, or nil.
func (p *Page) Find(id int) *Media {
	if p == nil {
		return nil
	}
	for _, m := range p.Media {
		if m != nil && m.ID == id {
			return m
		}
	}
	return nil
}

// AiringSchedule is one scheduled broadcast.
type AiringSchedule struct {
	AiringAt int64 `json:"airingAt"`
	Episode  int   `json:"episode"`
}
