package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"animelink/internal/logging"
)

func openBackends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	sqlite, err := Open(ctx, Options{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "cache.db")}, logging.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	jsonStore, err := Open(ctx, Options{Backend: BackendJSON, Path: "/cache/store", Fs: afero.NewMemMapFs()}, logging.NewNop())
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	stores := map[string]Store{
		BackendMemory: NewMemory(),
		BackendSQLite: sqlite,
		BackendJSON:   jsonStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := store.Read(ctx, "search", "missing"); err != nil || ok {
				t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
			}
			if err := store.Write(ctx, "search", "a", []byte(`{"x":1}`)); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := WriteBatch(ctx, store, "search", map[string][]byte{
				"b": []byte(`{"x":2}`),
				"c": []byte(`{"x":3}`),
			}); err != nil {
				t.Fatalf("write batch: %v", err)
			}
			if err := store.Write(ctx, "media", "a", []byte(`{"id":9}`)); err != nil {
				t.Fatalf("write other namespace: %v", err)
			}

			got, ok, err := store.Read(ctx, "search", "a")
			if err != nil || !ok || string(got) != `{"x":1}` {
				t.Fatalf("read a: %q ok=%v err=%v", got, ok, err)
			}

			var keys []string
			if err := store.Scan(ctx, "search", func(key string, _ []byte) error {
				keys = append(keys, key)
				return nil
			}); err != nil {
				t.Fatalf("scan: %v", err)
			}
			if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
				t.Fatalf("unexpected scan keys %v", keys)
			}

			if err := store.DeleteKeys(ctx, "search", []string{"a", "b"}); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, ok, _ := store.Read(ctx, "search", "a"); ok {
				t.Fatal("expected a deleted")
			}
			if _, ok, _ := store.Read(ctx, "search", "c"); !ok {
				t.Fatal("expected c kept")
			}

			if err := store.Clear(ctx, "search"); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if _, ok, _ := store.Read(ctx, "search", "c"); ok {
				t.Fatal("expected namespace cleared")
			}
			if _, ok, _ := store.Read(ctx, "media", "a"); !ok {
				t.Fatal("clear must not touch other namespaces")
			}
		})
	}
}

func TestScanStopsOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	_ = store.Write(ctx, "ns", "a", []byte(`1`))
	_ = store.Write(ctx, "ns", "b", []byte(`2`))
	stop := errors.New("stop")
	var visited int
	err := store.Scan(ctx, "ns", func(string, []byte) error {
		visited++
		return stop
	})
	if !errors.Is(err, stop) || visited != 1 {
		t.Fatalf("expected scan to stop after first record, visited=%d err=%v", visited, err)
	}
}

func TestJSONStoreCorruptDocumentIsEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/store/search.json", []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store, err := NewJSONStore(fs, "/store", logging.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok, err := store.Read(context.Background(), "search", "a"); err != nil || ok {
		t.Fatalf("expected empty namespace, ok=%v err=%v", ok, err)
	}
	if err := store.Write(context.Background(), "search", "a", []byte(`true`)); err != nil {
		t.Fatalf("write after corruption: %v", err)
	}
	raw, err := afero.ReadFile(fs, "/store/search.json")
	if err != nil || string(raw) != `{"a":true}` {
		t.Fatalf("expected rewritten document, got %q err=%v", raw, err)
	}
}

func TestOpenRebuildsCorruptSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	garbage := []byte("definitely not a sqlite database, just some bytes")
	if err := os.WriteFile(path, garbage, 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store, err := Open(ctx, Options{Backend: BackendSQLite, Path: path}, logging.NewNop())
	if err != nil {
		t.Fatalf("expected corrupt database to be rebuilt, got %v", err)
	}
	defer store.Close()

	if _, ok, err := store.Read(ctx, "search", "a"); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}
	if err := store.Write(ctx, "search", "a", []byte(`true`)); err != nil {
		t.Fatalf("write after rebuild: %v", err)
	}
	raw, err := os.ReadFile(path + ".corrupt")
	if err != nil || string(raw) != string(garbage) {
		t.Fatalf("expected damaged file kept aside, got %q err=%v", raw, err)
	}
}

func TestOpenRebuildsSQLiteFromOtherSchemaVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Write(ctx, "general", "k", []byte(`"v"`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = s.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	if _, err := db.ExecContext(ctx, "UPDATE schema_version SET version = ?", schemaVersion+1); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := OpenSQLite(ctx, path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch from OpenSQLite, got %v", err)
	}
	store, err := Open(ctx, Options{Backend: BackendSQLite, Path: path}, logging.NewNop())
	if err != nil {
		t.Fatalf("expected rebuild, got %v", err)
	}
	defer store.Close()
	if _, ok, err := store.Read(ctx, "general", "k"); err != nil || ok {
		t.Fatalf("expected empty store after rebuild, ok=%v err=%v", ok, err)
	}
}

func TestJSONStoreRejectsInvalidValue(t *testing.T) {
	store, _ := NewJSONStore(afero.NewMemMapFs(), "/store", logging.NewNop())
	if err := store.Write(context.Background(), "ns", "k", []byte("nope")); err == nil {
		t.Fatal("expected invalid JSON to be rejected")
	}
}

func TestJSONStorePersistsAcrossInstances(t *testing.T) {
	fs := afero.NewMemMapFs()
	first, _ := NewJSONStore(fs, "/store", logging.NewNop())
	if err := first.Write(context.Background(), "searchIDs", "k", []byte(`[1,2]`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	second, _ := NewJSONStore(fs, "/store", logging.NewNop())
	got, ok, err := second.Read(context.Background(), "searchIDs", "k")
	if err != nil || !ok || string(got) != `[1,2]` {
		t.Fatalf("expected persisted value, got %q ok=%v err=%v", got, ok, err)
	}
}

func TestOpenLocksStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	first, err := Open(ctx, Options{Backend: BackendSQLite, Path: path}, logging.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := Open(ctx, Options{Backend: BackendSQLite, Path: path}, logging.NewNop()); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	again, err := Open(ctx, Options{Backend: BackendSQLite, Path: path}, logging.NewNop())
	if err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
	_ = again.Close()
}

func TestSQLiteSchemaReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Write(ctx, "general", "k", []byte(`"v"`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = s.Close()

	s, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, ok, err := s.Read(ctx, "general", "k")
	if err != nil || !ok || string(got) != `"v"` {
		t.Fatalf("expected persisted value, got %q ok=%v err=%v", got, ok, err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Options{Backend: "redis", Path: filepath.Join(t.TempDir(), "x")}, nil); err == nil {
		t.Fatal("expected unknown backend error")
	}
}
