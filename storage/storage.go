// Package storage keeps uploaded images on an afero filesystem so tests can
// run fully in memory.
package storage

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var ErrNotFound = errors.New("stored file not found")

// ImageStore reads and writes image blobs under opaque keys.
type ImageStore struct {
	fs afero.Fs
}

// NewImageStore stores files under baseDir on the OS filesystem.
func NewImageStore(baseDir string) *ImageStore {
	return &ImageStore{fs: afero.NewBasePathFs(afero.NewOsFs(), baseDir)}
}

// NewMemImageStore is an in-memory store for tests.
func NewMemImageStore() *ImageStore {
	return &ImageStore{fs: afero.NewMemMapFs()}
}

// SaveProfileImage writes the blob and returns the generated key.
func (s *ImageStore) SaveProfileImage(filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	key := "profile-images/" + uuid.NewString() + ext

	if err := s.fs.MkdirAll("profile-images", 0o755); err != nil {
		return "", err
	}
	f, err := s.fs.Create(key)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return key, nil
}

// Open returns the blob and a sniffed content type.
func (s *ImageStore) Open(key string) ([]byte, string, error) {
	data, err := afero.ReadFile(s.fs, key)
	if err != nil {
		return nil, "", ErrNotFound
	}
	return data, http.DetectContentType(data), nil
}

// Delete removes the blob. Missing keys are not an error.
func (s *ImageStore) Delete(key string) error {
	if ok, _ := afero.Exists(s.fs, key); !ok {
		return nil
	}
	return s.fs.Remove(key)
}

// Exists reports whether the key is present.
func (s *ImageStore) Exists(key string) bool {
	ok, err := afero.Exists(s.fs, key)
	return err == nil && ok
}
