package textutil

import "strings"

// FileToken turns a namespace or title into a lowercase file name stem.
// Non-ASCII input is romanized first; runs of anything other than letters,
// digits, dots and hyphens collapse to one underscore. Empty results become
// "default".
func FileToken(value string) string {
	value = strings.ToLower(Romanize(strings.TrimSpace(value)))
	var b strings.Builder
	pendingSep := false
	for _, r := range value {
		keep := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '.'
		if !keep {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), ".-")
	if out == "" {
		return "default"
	}
	return out
}
