// Package seasongraph maps an absolute episode number onto the season that
// contains it by walking prequel and sequel relations between catalog
// entries.
//
// A walk starts at one entry and moves forward along SEQUEL edges (or
// backward along PREQUEL edges) accumulating the episode counts it passes,
// until the requested episode falls inside the current entry. Walks are
// bounded by a step ceiling and never revisit an entry, so a malformed
// relation graph ends in a failed result rather than a loop.
package seasongraph
