package releaseparse

import (
	"regexp"
	"strings"
)

var (
	audioTagPattern   = regexp.MustCompile(`\b([A-Za-z]{3}\d)\.(\d)\b`)
	codecTagPattern   = regexp.MustCompile(`\b(H|X)\.(\d{3})\b`)
	channelTagPattern = regexp.MustCompile(`\b5\.1\b`)
	flacTagPattern    = regexp.MustCompile(`\bFLAC5\.1\b`)
	volumeTagPattern  = regexp.MustCompile(`\bVol\.(\d+)\b`)

	audioMarker   = regexp.MustCompile(`<<AUDIO_([A-Za-z]{3}\d)_(\d)>>`)
	codecMarker   = regexp.MustCompile(`<<RES_([HX])_(\d{3})>>`)
	channelMarker = regexp.MustCompile(`<<CHANNEL_5_1>>`)
	flacMarker    = regexp.MustCompile(`<<AUDIO_FLAC_5_1>>`)
	volumeMarker  = regexp.MustCompile(`<<VOL_(\d+)>>`)

	videoExtension = regexp.MustCompile(`(?i)\.(mkv|mp4|avi|mov|wmv|flv|webm|m4v|mpeg|mpg|3gp|ogg|ogv)$`)
	halfTitle      = regexp.MustCompile(`\b1[-_]2\b`)
)

// CleanFileName rewrites dot-separated names into spaced ones. Dots inside
// audio tags (AAC2.0), codecs (H.264), channel layouts (5.1, FLAC5.1) and
// volume markers (Vol.3) survive, the video extension is dropped, and the
// first "1-2" or "1_2" becomes "1/2".
func CleanFileName(name string) string {
	name = audioTagPattern.ReplaceAllString(name, "<<AUDIO_${1}_${2}>>")
	name = codecTagPattern.ReplaceAllString(name, "<<RES_${1}_${2}>>")
	name = channelTagPattern.ReplaceAllString(name, "<<CHANNEL_5_1>>")
	name = flacTagPattern.ReplaceAllString(name, "<<AUDIO_FLAC_5_1>>")
	name = volumeTagPattern.ReplaceAllString(name, "<<VOL_${1}>>")

	name = videoExtension.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, ".", " ")

	if loc := halfTitle.FindStringIndex(name); loc != nil {
		name = name[:loc[0]] + "1/2" + name[loc[1]:]
	}

	name = audioMarker.ReplaceAllString(name, "${1}.${2}")
	name = codecMarker.ReplaceAllString(name, "${1}.${2}")
	name = channelMarker.ReplaceAllString(name, "5.1")
	name = flacMarker.ReplaceAllString(name, "FLAC5.1")
	name = volumeMarker.ReplaceAllString(name, "Vol.${1}")
	return name
}

// CleanFileNames applies CleanFileName to each name.
func CleanFileNames(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = CleanFileName(name)
	}
	return out
}
