package titles

import (
	"regexp"
	"strconv"
	"strings"

	"animelink/internal/textutil"
)

var (
	seasonMarker = regexp.MustCompile(` S(\d+)`)
	separators   = regexp.MustCompile(`[-:]`)
	spaceRun     = regexp.MustCompile(`[ ]{2,}`)
	tvMarker     = regexp.MustCompile(`(?i)\(tv\)`)
	movieMarker  = regexp.MustCompile(`(?i)\(movie\)`)
	movieWord    = regexp.MustCompile(`(?i)movie`)
	pairedTitle  = regexp.MustCompile(`^(.+?)\s*\((.+?)\)$`)
)

// AlternativeTitles returns spelling variants of title in priority order.
// The rules apply cumulatively:
//
//   - " S1" is removed; " S<N>" becomes " <N>th Season" and " Season <N>"
//   - "-" and ":" are dropped and the first run of spaces collapsed
//   - "(TV)" is removed
//   - "(Movie)" and then the word "movie" are removed
//   - "Main (Alt)" adds "Main" and "Alt"
//
// A transliterated form is appended for titles outside ASCII.
func AlternativeTitles(title string) []string {
	var out orderedSet

	modified := title
	if m := seasonMarker.FindStringSubmatchIndex(title); m != nil {
		n, _ := strconv.Atoi(title[m[2]:m[3]])
		if n == 1 {
			modified = title[:m[0]] + title[m[1]:]
			out.add(modified)
		} else {
			modified = title[:m[0]] + " " + strconv.Itoa(n) + ordinalSuffix(n) + " Season" + title[m[1]:]
			out.add(modified)
			out.add(title[:m[0]] + " Season " + strconv.Itoa(n) + title[m[1]:])
		}
	} else {
		out.add(title)
	}

	if separators.MatchString(modified) {
		modified = replaceFirst(spaceRun, separators.ReplaceAllString(modified, ""), " ")
		out.add(modified)
	}

	if tvMarker.MatchString(modified) {
		modified = replaceFirst(tvMarker, modified, "")
		out.add(modified)
	}

	if movieMarker.MatchString(modified) || movieWord.MatchString(modified) {
		modified = replaceFirst(movieWord, replaceFirst(movieMarker, modified, ""), "")
		out.add(modified)
	}

	if m := pairedTitle.FindStringSubmatch(modified); m != nil {
		out.add(strings.TrimSpace(m[1]))
		out.add(strings.TrimSpace(m[2]))
	}

	if roman := textutil.Romanize(title); roman != "" && roman != title {
		out.add(roman)
	}
	return out.items
}

func ordinalSuffix(n int) string {
	switch n {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

func replaceFirst(re *regexp.Regexp, s, repl string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + repl + s[loc[1]:]
}

type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func (s *orderedSet) add(v string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
