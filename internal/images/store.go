// Package images is the product image directory. Uploading is handled elsewhere;
// the service only resolves URLs and removes files it no longer references.
package images

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var ErrBadName = errors.New("image name must be a bare file name")

type DiskStore struct {
	Fs      afero.Fs
	Dir     string
	BaseURL string // e.g. FRONTEND_URL; URLs are BaseURL + "/uploads/" + name
}

func NewDiskStore(dir, baseURL string) *DiskStore {
	return &DiskStore{Fs: afero.NewOsFs(), Dir: dir, BaseURL: baseURL}
}

func (s *DiskStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", ErrBadName
	}
	return filepath.Join(s.Dir, name), nil
}

// Delete removes the file. A file that is already gone is not an error.
func (s *DiskStore) Delete(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := s.Fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *DiskStore) URL(name string) string {
	if name == "" {
		return ""
	}
	return strings.TrimRight(s.BaseURL, "/") + path.Join("/uploads", name)
}
