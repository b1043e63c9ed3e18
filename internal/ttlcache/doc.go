// Package ttlcache is the response cache in front of the catalog gateway.
//
// Entries live in namespaces and expire at a caller-chosen time. Identical
// concurrent CacheEntry calls share one fetch, and the in-flight marker
// outlives settlement by a short grace window so near-simultaneous callers
// still coalesce. Search pages are normalized on write: embedded media
// records are replaced by their ids and kept in a separate identity store,
// then stitched back in on read.
//
// The in-memory view is authoritative. Dirty namespaces are mirrored to a
// kvstore.Store by a debounced writer; Flush and Close drain it.
package ttlcache
