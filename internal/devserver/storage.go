package devserver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FileStorage stores uploaded attachment bytes and returns a reference the
// server can turn into a download URL. Implementations returning an absolute
// URL (http:// or https://) are served as-is.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

type storedFile struct {
	name string
	mime string
	data []byte
}

// MemoryStorage keeps uploads in process memory. It backs the dev server so
// attachment flows work without external object storage.
type MemoryStorage struct {
	mu    sync.RWMutex
	files map[string]storedFile
}

// NewMemoryStorage constructs an empty in-memory file store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{files: make(map[string]storedFile)}
}

// Upload copies the file into memory and returns its reference id.
func (s *MemoryStorage) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}

	ref := fmt.Sprintf("%s%s", uuid.NewString(), sanitizeExt(name))

	s.mu.Lock()
	s.files[ref] = storedFile{name: name, data: data}
	s.mu.Unlock()

	return ref, nil
}

// Get returns the stored file bytes and original name for a reference.
func (s *MemoryStorage) Get(ref string) (string, io.Reader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, ok := s.files[ref]
	if !ok {
		return "", nil, false
	}
	return file.name, bytes.NewReader(file.data), true
}

func sanitizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	for _, r := range ext {
		if r != '.' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
