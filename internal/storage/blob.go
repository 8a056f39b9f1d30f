package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// refPrefix is the public form of a blob reference, matching the path the
// original uploads were served under.
const refPrefix = "/uploads/"

// BlobStore persists raw audio uploads on the local filesystem and hands out
// opaque references of the form "/uploads/<name>".
type BlobStore struct {
	root string
}

func NewBlobStore(root string) (*BlobStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &BlobStore{root: root}, nil
}

// Save writes the audio bytes under a fresh unique name and returns the
// reference. The original filename only contributes its extension.
func (s *BlobStore) Save(filename string, r io.Reader) (string, error) {
	name := uuid.New().String() + sanitizeExt(filename)
	fullPath := filepath.Join(s.root, name)

	f, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(fullPath)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("close blob: %w", err)
	}

	return refPrefix + name, nil
}

// Open returns a reader over the stored bytes for the given reference.
func (s *BlobStore) Open(ref string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	return os.Open(fullPath)
}

// Delete removes the stored blob. Deleting an unknown reference is an error.
func (s *BlobStore) Delete(ref string) error {
	fullPath, err := s.resolve(ref)
	if err != nil {
		return err
	}
	return os.Remove(fullPath)
}

// resolve maps a reference back to a file path, rejecting anything that
// escapes the upload root.
func (s *BlobStore) resolve(ref string) (string, error) {
	name := strings.TrimPrefix(ref, refPrefix)
	fullPath := filepath.Join(s.root, name)

	absRoot, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	absFull, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}
	if absFull == absRoot || !strings.HasPrefix(absFull, absRoot+string(os.PathSeparator)) {
		return "", os.ErrPermission
	}
	return fullPath, nil
}

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".ogg": true,
	".webm": true, ".flac": true, ".aac": true, ".opus": true,
}

func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if audioExtensions[ext] {
		return ext
	}
	return ".bin"
}
