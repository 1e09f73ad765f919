// package assets stores downloaded images on local disk between download and upload
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/champbox/internal/shared"
)

// Store reads and writes named blobs under a single directory.
//
// Two writers for the same name overwrite each other; callers derive names from the champion so
// concurrent runs for one champion share a file.
type Store struct {
	dir string
}

// NewStore creates a [Store] rooted at dir, creating the directory if needed. An empty dir means ".".
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create asset directory: %v", shared.ErrAssetWrite, err)
	}
	return &Store{dir: dir}, nil
}

// FileName returns the blob name for a champion's image.
func FileName(subject string) string {
	return subject + ".jpg"
}

// Path returns the on-disk location of name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Write stores data under name, replacing any previous content.
//
// Data is written to a temporary file and renamed into place so readers never see a partial image.
func (s *Store) Write(name string, data []byte) error {
	if err := checkName(name); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAssetWrite, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAssetWrite, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", shared.ErrAssetWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAssetWrite, err)
	}

	if err := os.Rename(tmp.Name(), s.Path(name)); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAssetWrite, err)
	}

	return nil
}

// Read returns the bytes stored under name.
func (s *Store) Read(name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAssetRead, err)
	}

	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAssetRead, err)
	}
	return data, nil
}

// Remove deletes name. Removing a missing blob is not an error.
func (s *Store) Remove(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove asset %s: %w", name, err)
	}
	return nil
}

// checkName rejects names that would escape the store directory.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid asset name %q", name)
	}
	return nil
}
