package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"animelink/internal/logging"
	"animelink/internal/services"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
	BackendMemory = "memory"
)

// ErrLocked indicates another process holds the store lock.
var ErrLocked = errors.New("cache store is locked by another process")

// Store is the persistence contract the cache depends on.
type Store interface {
	Read(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Write(ctx context.Context, namespace, key string, value []byte) error
	DeleteKeys(ctx context.Context, namespace string, keys []string) error
	Clear(ctx context.Context, namespace string) error
	// Scan visits every record in namespace. Returning an error stops the scan.
	Scan(ctx context.Context, namespace string, fn func(key string, value []byte) error) error
	Close() error
}

// BatchWriter is implemented by stores that can write many keys in one
// transaction.
type BatchWriter interface {
	WriteBatch(ctx context.Context, namespace string, values map[string][]byte) error
}

// WriteBatch writes values through BatchWriter when available and one key
// at a time otherwise.
func WriteBatch(ctx context.Context, s Store, namespace string, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}
	if bw, ok := s.(BatchWriter); ok {
		return bw.WriteBatch(ctx, namespace, values)
	}
	for key, value := range values {
		if err := s.Write(ctx, namespace, key, value); err != nil {
			return err
		}
	}
	return nil
}

// Options selects and locates a backend.
type Options struct {
	Backend string
	Path    string
	// Fs overrides the filesystem for the JSON backend.
	Fs afero.Fs
}

// Open constructs the configured backend. File-backed stores take an
// exclusive lock at Path+".lock" that is released by Close.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	logger = logging.NewComponentLogger(logger, "kvstore")
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" {
		backend = BackendSQLite
	}
	if backend == BackendMemory {
		return NewMemory(), nil
	}
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "kvstore", "open", "path is required for "+backend, nil)
	}

	var (
		store Store
		err   error
		lock  *flock.Flock
	)
	// The lock only means something on the real filesystem.
	if opts.Fs == nil {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		lock = flock.New(path + ".lock")
		ok, lockErr := lock.TryLock()
		if lockErr != nil {
			return nil, fmt.Errorf("acquire cache lock: %w", lockErr)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
	}

	switch backend {
	case BackendSQLite:
		store, err = openSQLiteRebuilding(ctx, path, logger)
	case BackendJSON:
		fs := opts.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		store, err = NewJSONStore(fs, path, logger)
	default:
		err = services.Wrap(services.ErrConfiguration, "kvstore", "open", fmt.Sprintf("unknown backend %q", backend), nil)
	}
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, err
	}
	logger.Debug("cache store opened", logging.String("backend", backend), logging.String("path", path))
	if lock == nil {
		return store, nil
	}
	return &lockedStore{Store: store, lock: lock}, nil
}

// openSQLiteRebuilding opens the database at path. A corrupt file or one
// from another schema version is moved aside and replaced with an empty
// database.
func openSQLiteRebuilding(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	store, err := OpenSQLite(ctx, path)
	if err == nil || !isUnusableDatabase(err) {
		return store, err
	}
	aside, moveErr := quarantineSQLite(path)
	if moveErr != nil {
		return nil, errors.Join(err, moveErr)
	}
	logging.WarnWithContext(logger, "cache database unusable; rebuilt empty", "cache_store_rebuilt",
		logging.Error(err),
		logging.String("path", path),
		logging.String("moved_to", aside),
		logging.String(logging.FieldImpact, "previously cached catalog responses are discarded"),
		logging.String(logging.FieldErrorHint, "remove the .corrupt file once it is no longer needed"),
	)
	return OpenSQLite(ctx, path)
}

type lockedStore struct {
	Store
	lock *flock.Flock
}

func (l *lockedStore) WriteBatch(ctx context.Context, namespace string, values map[string][]byte) error {
	return WriteBatch(ctx, l.Store, namespace, values)
}

func (l *lockedStore) Close() error {
	err := l.Store.Close()
	if unlockErr := l.lock.Unlock(); unlockErr != nil && err == nil {
		err = fmt.Errorf("release cache lock: %w", unlockErr)
	}
	return err
}
