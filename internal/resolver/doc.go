// Package resolver maps release file names to catalog entries and
// in-season episode numbers.
//
// A batch is parsed, the distinct titles are searched in one compound
// lookup, and every file is then corrected against the season graph: an
// absolute episode number past the end of the matched entry is walked
// forward into the sequel that contains it, and a title that does not match
// its entry is re-searched without its season marker and measured from the
// franchise root. Resolved titles are remembered for the lifetime of the
// Resolver; the first resolution of a title is never replaced.
package resolver
