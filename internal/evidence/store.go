// Package evidence stores proof-of-claim uploads and returns opaque
// references. The lifecycle core only ever sees the reference string.
package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists one evidence upload and returns its reference.
type Store interface {
	Put(ctx context.Context, data []byte, contentType, filename string) (string, error)
}

func objectKey(filename string) string {
	ext := filepath.Ext(filename)
	return fmt.Sprintf("%s/%s%s", time.Now().UTC().Format("2006/01/02"), uuid.NewString(), ext)
}

// MemoryStore keeps uploads in process memory for tests.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, data []byte, _, filename string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := objectKey(filename)
	copied := make([]byte, len(data))
	copy(copied, data)
	s.objects[key] = copied
	return "mem://" + key, nil
}

// Get returns a stored object; test helper.
func (s *MemoryStore) Get(ref string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[ref[len("mem://"):]]
	return data, ok
}

// FilesystemStore writes uploads under a base directory for single-node
// deployments.
type FilesystemStore struct {
	baseDir string
}

// NewFilesystemStore returns a store rooted at baseDir, creating it if
// needed.
func NewFilesystemStore(baseDir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create evidence dir %s: %w", baseDir, err)
	}
	return &FilesystemStore{baseDir: baseDir}, nil
}

func (s *FilesystemStore) Put(_ context.Context, data []byte, _, filename string) (string, error) {
	key := objectKey(filename)
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return "file://" + path, nil
}
