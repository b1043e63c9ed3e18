// Package kvstore persists namespaced key/value records for the response
// cache.
//
// Three backends implement Store: an in-memory map for tests and
// throwaway runs, a SQLite database (modernc.org/sqlite, WAL mode), and a
// directory of per-namespace JSON documents on an afero filesystem. Open
// selects a backend from Options and guards file-backed stores with an
// advisory lock so two processes never write the same cache.
package kvstore
