package releaseparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/moistari/rls"
)

// Parsed is the structured form of one release name.
type Parsed struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
	// Season is zero when the name does not state one.
	Season  int `json:"season,omitempty"`
	Episode int `json:"episode,omitempty"`
	// EpisodeEnd is set for batch releases covering Episode..EpisodeEnd.
	EpisodeEnd  int    `json:"episodeEnd,omitempty"`
	ReleaseInfo string `json:"releaseInfo,omitempty"`
	Type        string `json:"type,omitempty"`
	Group       string `json:"group,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
}

// HasEpisode reports whether an episode number was found.
func (p Parsed) HasEpisode() bool {
	return p.Episode > 0
}

// IsRange reports whether the release covers more than one episode.
func (p Parsed) IsRange() bool {
	return p.EpisodeEnd > 0 && p.EpisodeEnd != p.Episode
}

var (
	leadingGroup   = regexp.MustCompile(`^\s*\[([^\]]+)\]`)
	bracketPattern = regexp.MustCompile(`\[([^\]]*)\]|\(([^)]*)\)|\{([^}]*)\}`)
	bracketEpisode = regexp.MustCompile(`^(\d{1,4})(?:v\d)?(?:\s?[-~]\s?(\d{1,4})(?:v\d)?)?$`)

	seasonEpisodePattern  = regexp.MustCompile(`(?i)\bS(\d{1,2})\s?E(\d{1,4})(?:v\d)?(?:\s?-\s?(?:S\d{1,2})?E?(\d{1,4}))?\b`)
	crossEpisodePattern   = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
	keywordEpisodePattern = regexp.MustCompile(`(?i)\b(?:EP?|Episode)\s?(\d{1,4})(?:v\d)?(?:\s?[-~]\s?(?:EP?)?(\d{1,4}))?\b`)
	dashEpisodePattern    = regexp.MustCompile(`(?:^|\s)[-–~]\s(\d{1,4})(?:v\d)?(?:\s?[-~]\s?(\d{1,4})(?:v\d)?)?(?:\s|$)`)
	typeTagPattern        = regexp.MustCompile(`(?i)(?:^|\s)(NCOP|NCED|OPENING|ENDING|OP|ED|PREVIEW|PV|OVA|ONA|SPECIAL|SP)\s?(\d{1,3})?(?:v\d)?(?:\s|$)`)
	trailingEpisode       = regexp.MustCompile(`\s(\d{1,4})(?:v\d)?(?:\s?[-~]\s?(\d{1,4})(?:v\d)?)?$`)

	seasonInTitle = regexp.MustCompile(`(?i)\bS(\d{1,2})\b|\bSeason\s?(\d{1,2})\b|\b(\d{1,2})(?:st|nd|rd|th)\s+Season\b`)

	resolutionToken = regexp.MustCompile(`(?i)^(\d{3,4}p|\d{3,4}x\d{3,4}|4k)$`)
	checksumToken   = regexp.MustCompile(`^[0-9A-Fa-f]{8}$`)
	yearToken       = regexp.MustCompile(`^(19[5-9]\d|20\d{2})$`)

	spaceRun = regexp.MustCompile(`\s{2,}`)
)

var mediaTokens = map[string]struct{}{
	"x264": {}, "x265": {}, "h264": {}, "h265": {}, "h.264": {}, "h.265": {}, "hevc": {}, "avc": {},
	"aac": {}, "flac": {}, "opus": {}, "ac3": {}, "eac3": {}, "dts": {}, "ddp": {},
	"bd": {}, "bdrip": {}, "bluray": {}, "blu-ray": {}, "web": {}, "web-dl": {}, "webrip": {},
	"dvd": {}, "dvdrip": {}, "hdtv": {}, "10bit": {}, "10-bit": {}, "8bit": {}, "hi10p": {},
	"dual-audio": {}, "dual": {}, "multi-sub": {}, "multisub": {}, "eng": {}, "raw": {},
}

var releaseInfoTokens = map[string]struct{}{
	"batch": {}, "complete": {}, "end": {}, "final": {}, "patch": {}, "remux": {},
}

var typeTokens = map[string]string{
	"tv": "TV", "movie": "MOVIE", "ova": "OVA", "ona": "ONA", "oad": "OVA", "special": "SPECIAL", "sp": "SP",
	"op": "OP", "ed": "ED", "ncop": "NCOP", "nced": "NCED", "opening": "OPENING", "ending": "ENDING",
	"pv": "PV", "preview": "PREVIEW",
}

func isMediaToken(tok string) bool {
	if resolutionToken.MatchString(tok) {
		return true
	}
	_, ok := mediaTokens[strings.ToLower(tok)]
	return ok
}

// Parse extracts the fields of one release name. The name is passed
// through CleanFileName first.
func Parse(name string) Parsed {
	p := Parsed{Name: name}
	work := strings.ReplaceAll(CleanFileName(strings.TrimSpace(name)), "_", " ")
	if m := leadingGroup.FindStringSubmatch(work); m != nil {
		p.Group = strings.TrimSpace(m[1])
		work = work[len(m[0]):]
	}
	work = collapse(p.stripBrackets(work))

	title, tail := p.splitEpisode(work)
	for _, tok := range strings.Fields(tail) {
		p.absorb(tok, false)
	}
	p.Title = p.finishTitle(title)

	if p.Title == "" || !p.HasEpisode() {
		p.fallback(name)
	}
	return p
}

// ParseAll parses each name.
func ParseAll(names []string) []Parsed {
	out := make([]Parsed, len(names))
	for i, name := range names {
		out[i] = Parse(name)
	}
	return out
}

// stripBrackets removes bracketed metadata and records what it recognizes.
// Square and curly brackets always go; parentheses stay unless they hold
// metadata, so "Title (Alternate Title)" survives.
func (p *Parsed) stripBrackets(work string) string {
	var b strings.Builder
	last := 0
	for _, loc := range bracketPattern.FindAllStringSubmatchIndex(work, -1) {
		b.WriteString(work[last:loc[0]])
		last = loc[1]
		paren := loc[4] >= 0
		content := ""
		for g := 1; g <= 3; g++ {
			if loc[2*g] >= 0 {
				content = strings.TrimSpace(work[loc[2*g]:loc[2*g+1]])
			}
		}
		if paren && !p.bracketIsMetadata(content) {
			b.WriteString(work[loc[0]:loc[1]])
			continue
		}
		p.absorbBracket(content)
		b.WriteString(" ")
	}
	b.WriteString(work[last:])
	return b.String()
}

func bracketTokens(content string) []string {
	return strings.FieldsFunc(content, func(r rune) bool {
		return r == ' ' || r == ',' || r == '_'
	})
}

func (p *Parsed) bracketIsMetadata(content string) bool {
	if yearToken.MatchString(content) || bracketEpisode.MatchString(content) {
		return true
	}
	for _, tok := range bracketTokens(content) {
		if isMediaToken(tok) || checksumToken.MatchString(tok) {
			return true
		}
		lower := strings.ToLower(tok)
		if _, ok := releaseInfoTokens[lower]; ok {
			return true
		}
		if _, ok := typeTokens[lower]; ok {
			return true
		}
	}
	return false
}

func (p *Parsed) absorbBracket(content string) {
	if content == "" {
		return
	}
	if yearToken.MatchString(content) {
		if p.Year == 0 {
			p.Year, _ = strconv.Atoi(content)
		}
		return
	}
	if m := bracketEpisode.FindStringSubmatch(content); m != nil {
		if !p.HasEpisode() {
			p.setEpisode(m[1], m[2])
		}
		return
	}
	for _, tok := range bracketTokens(content) {
		p.absorb(tok, true)
	}
}

// absorb records a metadata token. Type tags only count inside brackets or
// after the episode marker.
func (p *Parsed) absorb(tok string, bracketed bool) {
	lower := strings.ToLower(tok)
	switch {
	case resolutionToken.MatchString(tok):
		if p.Resolution == "" {
			p.Resolution = tok
		}
	case checksumToken.MatchString(tok) && bracketed:
	default:
		if _, ok := releaseInfoTokens[lower]; ok && p.ReleaseInfo == "" {
			p.ReleaseInfo = tok
			return
		}
		if t, ok := typeTokens[lower]; ok && p.Type == "" {
			p.Type = t
		}
	}
}

func (p *Parsed) setEpisode(first, last string) {
	p.Episode, _ = strconv.Atoi(first)
	if last != "" {
		p.EpisodeEnd, _ = strconv.Atoi(last)
		if p.EpisodeEnd <= p.Episode {
			p.EpisodeEnd = 0
		}
	}
}

// splitEpisode finds the episode marker and returns the text before it as
// the title and the text after it as the tail.
func (p *Parsed) splitEpisode(work string) (string, string) {
	if m := seasonEpisodePattern.FindStringSubmatchIndex(work); m != nil {
		p.Season, _ = strconv.Atoi(work[m[2]:m[3]])
		p.setEpisode(work[m[4]:m[5]], group(work, m, 3))
		return work[:m[0]], work[m[1]:]
	}
	if m := crossEpisodePattern.FindStringSubmatchIndex(work); m != nil && m[0] > 0 {
		p.Season, _ = strconv.Atoi(work[m[2]:m[3]])
		p.setEpisode(work[m[4]:m[5]], "")
		return work[:m[0]], work[m[1]:]
	}
	if m := keywordEpisodePattern.FindStringSubmatchIndex(work); m != nil && m[0] > 0 {
		p.setEpisode(work[m[2]:m[3]], group(work, m, 2))
		return work[:m[0]], work[m[1]:]
	}
	if m := dashEpisodePattern.FindStringSubmatchIndex(work); m != nil && m[0] > 0 {
		p.setEpisode(work[m[2]:m[3]], group(work, m, 2))
		return work[:m[0]], work[m[1]:]
	}
	if m := typeTagPattern.FindStringSubmatchIndex(work); m != nil && m[0] > 0 {
		p.Type = typeTokens[strings.ToLower(work[m[2]:m[3]])]
		if n := group(work, m, 2); n != "" {
			p.setEpisode(n, "")
		}
		return work[:m[0]], work[m[1]:]
	}
	if p.Group != "" {
		if m := trailingEpisode.FindStringSubmatchIndex(work); m != nil && m[0] > 0 {
			p.setEpisode(work[m[2]:m[3]], group(work, m, 2))
			return work[:m[0]], ""
		}
	}
	return work, ""
}

func group(s string, m []int, n int) string {
	if 2*n+1 >= len(m) || m[2*n] < 0 {
		return ""
	}
	return s[m[2*n]:m[2*n+1]]
}

// finishTitle drops trailing media tokens, lifts a trailing year and reads
// the season from the title without removing it.
func (p *Parsed) finishTitle(title string) string {
	tokens := strings.Fields(title)
	for i := 1; i < len(tokens); i++ {
		if isMediaToken(tokens[i]) {
			for _, tok := range tokens[i:] {
				p.absorb(tok, false)
			}
			tokens = tokens[:i]
			break
		}
	}
	title = strings.Trim(strings.Join(tokens, " "), " -–~:|,")
	tokens = strings.Fields(title)
	if n := len(tokens); n > 1 && yearToken.MatchString(tokens[n-1]) {
		if p.Year == 0 {
			p.Year, _ = strconv.Atoi(tokens[n-1])
		}
		title = strings.Trim(strings.Join(tokens[:n-1], " "), " -–~:|,")
	}
	if p.Season == 0 {
		if m := seasonInTitle.FindStringSubmatch(title); m != nil {
			for _, g := range m[1:] {
				if g != "" {
					p.Season, _ = strconv.Atoi(g)
					break
				}
			}
		}
	}
	return collapse(title)
}

// fallback fills gaps from the scene-release parser.
func (p *Parsed) fallback(name string) {
	r := rls.ParseString(name)
	if p.Title == "" {
		p.Title = collapse(r.Title)
	}
	if !p.HasEpisode() && r.Episode > 0 {
		p.Episode = r.Episode
	}
	if p.Season == 0 && r.Series > 0 {
		p.Season = r.Series
	}
	if p.Year == 0 {
		p.Year = r.Year
	}
	if p.Resolution == "" {
		p.Resolution = r.Resolution
	}
	if p.Group == "" {
		p.Group = r.Group
	}
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
