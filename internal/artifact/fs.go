package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FSStore keeps artifacts in a directory on local disk.
type FSStore struct {
	dir string
}

// NewFSStore creates the directory if needed and returns a store rooted in it.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create dir: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) path(name string) (string, error) {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") {
		return "", fmt.Errorf("artifact: invalid name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

// Save writes the artifact through a temp file and renames it into place so
// readers never observe a half-written document.
func (s *FSStore) Save(ctx context.Context, name string, data []byte) error {
	target, err := s.path(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("artifact: stage %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("artifact: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("artifact: close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("artifact: publish %s: %w", name, err)
	}
	return nil
}

// Open returns a reader over the stored artifact.
func (s *FSStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	target, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	return f, nil
}

// Exists reports whether the artifact is present.
func (s *FSStore) Exists(ctx context.Context, name string) (bool, error) {
	target, err := s.path(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the artifact. Deleting a missing artifact is not an error.
func (s *FSStore) Delete(ctx context.Context, name string) error {
	target, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
