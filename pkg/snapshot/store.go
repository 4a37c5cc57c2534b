package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/viewgrid/viewgrid/pkg/errors"
)

// Store is the interface for snapshot storage backends.
//
// Load returns nil, nil when no snapshot exists for the view - absence is
// not an error, it just means the caller should run an initial layout.
type Store interface {
	// Save persists a snapshot for the view and returns a save ID.
	Save(ctx context.Context, viewID string, s Snapshot) (string, error)

	// Load retrieves the latest snapshot for the view.
	Load(ctx context.Context, viewID string) (*Snapshot, error)

	// Delete removes the view's snapshot. Unknown views are a no-op.
	Delete(ctx context.Context, viewID string) error

	// Close releases backend resources.
	Close() error
}

// =============================================================================
// Memory store
// =============================================================================

// MemoryStore keeps snapshots in process memory. For tests and
// single-process development only.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Snapshot)}
}

// Save stores a snapshot keyed by view ID.
func (m *MemoryStore) Save(ctx context.Context, viewID string, s Snapshot) (string, error) {
	if err := errors.ValidateViewID(viewID); err != nil {
		return "", err
	}
	s.ViewID = viewID
	m.mu.Lock()
	m.data[viewID] = s
	m.mu.Unlock()
	return uuid.NewString(), nil
}

// Load returns the stored snapshot, or nil if the view has none.
func (m *MemoryStore) Load(ctx context.Context, viewID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.data[viewID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Delete removes the view's snapshot.
func (m *MemoryStore) Delete(ctx context.Context, viewID string) error {
	m.mu.Lock()
	delete(m.data, viewID)
	m.mu.Unlock()
	return nil
}

// Close does nothing for the memory store.
func (m *MemoryStore) Close() error { return nil }

// =============================================================================
// File store
// =============================================================================

// FileStore persists snapshots as JSON files under a directory, one file
// per view, with a hash-based subdirectory split to keep directories small.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-based store rooted at dir. The directory is
// created if it doesn't exist.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodePersistence, err, "create snapshot dir %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes the snapshot to disk, replacing any previous one.
func (f *FileStore) Save(ctx context.Context, viewID string, s Snapshot) (string, error) {
	if err := errors.ValidateViewID(viewID); err != nil {
		return "", err
	}
	s.ViewID = viewID
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "marshal snapshot for view %s", viewID)
	}
	path := f.path(viewID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodePersistence, err, "create snapshot subdir")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.Wrap(errors.ErrCodePersistence, err, "write snapshot for view %s", viewID)
	}
	return uuid.NewString(), nil
}

// Load reads the snapshot from disk, or returns nil if none exists.
// An unreadable file is a CORRUPT_SNAPSHOT error, not a miss - silently
// relaying out would clobber the very positions this package protects.
func (f *FileStore) Load(ctx context.Context, viewID string) (*Snapshot, error) {
	data, err := os.ReadFile(f.path(viewID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePersistence, err, "read snapshot for view %s", viewID)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCorruptSnapshot, err, "decode snapshot for view %s", viewID)
	}
	return &s, nil
}

// Delete removes the view's snapshot file.
func (f *FileStore) Delete(ctx context.Context, viewID string) error {
	err := os.Remove(f.path(viewID))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistence, err, "delete snapshot for view %s", viewID)
	}
	return nil
}

// Close does nothing for the file store.
func (f *FileStore) Close() error { return nil }

// path converts a view ID to a file path. The first two hash characters
// become a subdirectory so one directory never holds every view.
func (f *FileStore) path(viewID string) string {
	sum := sha256.Sum256([]byte(viewID))
	hash := hex.EncodeToString(sum[:])
	return filepath.Join(f.dir, hash[:2], hash[2:]+".json")
}

// Ensure implementations satisfy Store.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
)
