package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FSStore is a filesystem-based implementation of Store rooted at a public
// directory:
//
//	<root>/
//	  css/min/<hash>.css
//	  css/min/<hash>.css.gz
//	  js/min/<hash>.js
type FSStore struct {
	root string
}

// NewFSStore creates a store rooted at root. The root is not created; a
// missing root surfaces as an error on the first Put.
func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

// Root returns the directory the store writes under.
func (s *FSStore) Root() string {
	return s.root
}

// Path returns the filesystem path for name.
func (s *FSStore) Path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Exists reports whether name is present.
func (s *FSStore) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(s.Path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat artifact: %w", err)
}

// Put writes data to a temporary sibling and renames it into place so readers
// never observe a partially written artifact.
func (s *FSStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(s.root); err != nil {
		return fmt.Errorf("artifact root: %w", err)
	}

	target := s.Path(name)
	dir := filepath.Dir(target)
	// MkdirAll treats an existing directory as success, so concurrent creators don't race.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// Get reads name.
func (s *FSStore) Get(_ context.Context, name string) ([]byte, error) {
	// #nosec G304 - path is rooted at the configured public directory
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound{Name: name}
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

// Stat returns metadata for name.
func (s *FSStore) Stat(_ context.Context, name string) (Info, error) {
	fi, err := os.Stat(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, ErrNotFound{Name: name}
		}
		return Info{}, fmt.Errorf("stat artifact: %w", err)
	}
	return Info{Name: name, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Purge removes all entries inside dir.
func (s *FSStore) Purge(ctx context.Context, dir string) error {
	abs := dir
	if !filepath.IsAbs(dir) {
		abs = s.Path(dir)
	}

	fi, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", abs, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", abs)
	}
	if err := probeWritable(abs); err != nil {
		return ErrNotWritable{Dir: abs, Err: err}
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return fmt.Errorf("read %s: %w", abs, err)
	}
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.RemoveAll(filepath.Join(abs, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
