package resolver

import (
	"slices"
	"strconv"
	"strings"

	"animelink/internal/catalog"
	"animelink/internal/releaseparse"
)

// excludedTypes are release types that are never episodes.
var excludedTypes = []string{"ED", "ENDING", "NCED", "NCOP", "OP", "OPENING", "PREVIEW", "PV"}

// Excluded reports whether p names an opening, ending, preview or similar
// non-episode release.
func Excluded(p releaseparse.Parsed) bool {
	return p.Type != "" && slices.Contains(excludedTypes, strings.ToUpper(p.Type))
}

// Result is the resolution of one file.
type Result struct {
	File   string              `json:"file"`
	Parsed releaseparse.Parsed `json:"parsed"`
	Media  *catalog.Media      `json:"media,omitempty"`
	// Episode is relative to Media. Zero when the name carried none.
	Episode int `json:"episode,omitempty"`
	// EpisodeEnd is set for batch releases.
	EpisodeEnd int `json:"episodeEnd,omitempty"`
	Season     int `json:"season"`
	// Failed is set when the season walk could not place the episode.
	Failed bool `json:"failed"`
	// Skipped is set for excluded release types, which are not searched.
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Resolved reports whether the file was matched and placed.
func (r Result) Resolved() bool {
	return r.Media != nil && !r.Failed && !r.Skipped
}

// EpisodeLabel formats the episode or range for display.
func (r Result) EpisodeLabel() string {
	switch {
	case r.Episode == 0 && r.EpisodeEnd == 0:
		return ""
	case r.EpisodeEnd > 0:
		return strconv.Itoa(r.Episode) + " ~ " + strconv.Itoa(r.EpisodeEnd)
	default:
		return strconv.Itoa(r.Episode)
	}
}
