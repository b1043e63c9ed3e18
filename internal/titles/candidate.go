package titles

import "strconv"

// Candidate is one search probe. Candidates derived from the same release
// share a GroupKey.
type Candidate struct {
	Title    string
	GroupKey string
	Year     int
	IsAdult  bool
}

// GroupKey identifies a parsed release: title, then year, then release info.
func GroupKey(title string, year int, releaseInfo string) string {
	key := title
	if year > 0 {
		key += strconv.Itoa(year)
	}
	return key + releaseInfo
}

// Candidates expands a parsed title into probes. For each alternative title
// the order is: with release info, with release info and year, with year,
// bare. One adult-flagged copy of the final probe closes the group.
func Candidates(title string, year int, releaseInfo string) []Candidate {
	key := GroupKey(title, year, releaseInfo)
	var out []Candidate
	for _, alt := range AlternativeTitles(title) {
		base := Candidate{Title: alt, GroupKey: key}
		if releaseInfo != "" {
			out = append(out, Candidate{Title: alt + " " + releaseInfo, GroupKey: key})
			if year > 0 {
				out = append(out, Candidate{Title: alt + " " + releaseInfo, GroupKey: key, Year: year})
			}
		}
		if year > 0 {
			withYear := base
			withYear.Year = year
			out = append(out, withYear)
		}
		out = append(out, base)
	}
	if len(out) == 0 {
		return nil
	}
	adult := out[len(out)-1]
	adult.IsAdult = true
	return append(out, adult)
}
