// Package releaseparse turns release file names into the fields the title
// resolver searches with: title, year, season, episode or episode range,
// release information and type tag.
//
// Fansub-style names ("[Group] Title - 03 [1080p].mkv") are handled by an
// anime-aware tokenizer; scene-style names fall back to rls.
package releaseparse
