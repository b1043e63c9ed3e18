package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/spf13/afero"

	"animelink/internal/logging"
	"animelink/internal/textutil"
)

// JSONStore keeps one JSON document per namespace under a directory. Each
// document maps keys to raw JSON values and is rewritten atomically on
// every mutation.
type JSONStore struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	loaded map[string]map[string]json.RawMessage
}

// NewJSONStore creates dir on fs if needed.
func NewJSONStore(fs afero.Fs, dir string, logger *slog.Logger) (*JSONStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &JSONStore{
		fs:     fs,
		dir:    dir,
		logger: logger,
		loaded: make(map[string]map[string]json.RawMessage),
	}, nil
}

func (s *JSONStore) filePath(namespace string) string {
	return filepath.Join(s.dir, textutil.FileToken(namespace)+".json")
}

// namespaceLocked returns the cached document for namespace, reading it on
// first use. A corrupt document is treated as empty.
func (s *JSONStore) namespaceLocked(namespace string) (map[string]json.RawMessage, error) {
	if doc, ok := s.loaded[namespace]; ok {
		return doc, nil
	}
	doc := make(map[string]json.RawMessage)
	raw, err := afero.ReadFile(s.fs, s.filePath(namespace))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", namespace, err)
	default:
		if jsonErr := json.Unmarshal(raw, &doc); jsonErr != nil {
			logging.WarnWithContext(s.logger, "cache document unreadable; starting empty", "cache_corrupt",
				logging.String(logging.FieldNamespace, namespace),
				logging.Error(jsonErr),
				logging.String(logging.FieldErrorHint, "the file is rewritten on the next flush"),
				logging.String(logging.FieldImpact, "cached entries for this namespace are refetched"),
			)
			doc = make(map[string]json.RawMessage)
		}
	}
	s.loaded[namespace] = doc
	return doc, nil
}

func (s *JSONStore) persistLocked(namespace string, doc map[string]json.RawMessage) error {
	path := s.filePath(namespace)
	if len(doc) == 0 {
		if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", namespace, err)
		}
		return nil
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", namespace, err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", namespace, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replace %s: %w", namespace, err)
	}
	return nil
}

func (s *JSONStore) Read(_ context.Context, namespace, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.namespaceLocked(namespace)
	if err != nil {
		return nil, false, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone([]byte(v)), true, nil
}

func (s *JSONStore) Write(ctx context.Context, namespace, key string, value []byte) error {
	return s.WriteBatch(ctx, namespace, map[string][]byte{key: value})
}

// WriteBatch applies every value and rewrites the namespace document once.
func (s *JSONStore) WriteBatch(_ context.Context, namespace string, values map[string][]byte) error {
	for key, value := range values {
		if !json.Valid(value) {
			return fmt.Errorf("write %s/%s: value is not valid JSON", namespace, key)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.namespaceLocked(namespace)
	if err != nil {
		return err
	}
	for key, value := range values {
		doc[key] = json.RawMessage(slices.Clone(value))
	}
	return s.persistLocked(namespace, doc)
}

func (s *JSONStore) DeleteKeys(_ context.Context, namespace string, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.namespaceLocked(namespace)
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(doc, k)
	}
	return s.persistLocked(namespace, doc)
}

func (s *JSONStore) Clear(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded[namespace] = make(map[string]json.RawMessage)
	return s.persistLocked(namespace, nil)
}

func (s *JSONStore) Scan(_ context.Context, namespace string, fn func(string, []byte) error) error {
	s.mu.Lock()
	doc, err := s.namespaceLocked(namespace)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	keys := make([]string, 0, len(doc))
	snapshot := make(map[string][]byte, len(doc))
	for k, v := range doc {
		keys = append(keys, k)
		snapshot[k] = slices.Clone([]byte(v))
	}
	s.mu.Unlock()
	slices.Sort(keys)
	for _, k := range keys {
		if err := fn(k, snapshot[k]); err != nil {
			return err
		}
	}
	return nil
}

func (s *JSONStore) Close() error { return nil }
