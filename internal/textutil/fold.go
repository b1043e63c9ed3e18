package textutil

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Lower returns the NFC-normalized lowercase form of value. Composed and
// decomposed spellings of the same title compare equal afterwards.
func Lower(value string) string {
	if value == "" {
		return ""
	}
	return cases.Lower(language.Und).String(norm.NFC.String(value))
}

// Romanize transliterates value to ASCII. Values that are already ASCII are
// returned unchanged; results that lose every letter (e.g. pure punctuation)
// return an empty string.
func Romanize(value string) string {
	if isASCII(value) {
		return value
	}
	out := CollapseSpaces(unidecode.Unidecode(value))
	if strings.IndexFunc(out, unicode.IsLetter) < 0 {
		return ""
	}
	return out
}

// CollapseSpaces trims value and replaces each run of whitespace with a single space.
func CollapseSpaces(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func isASCII(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] >= utf8RuneSelf {
			return false
		}
	}
	return true
}

const utf8RuneSelf = 0x80
