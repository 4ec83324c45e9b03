// Package storage persists pipeline artifacts under a root directory.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Store persists artifacts addressed by slash-separated names relative to a
// root (for example "css/min/0cc175b9.css"). Writes are all-or-nothing from a
// reader's point of view.
type Store interface {
	// Exists reports whether an artifact is present.
	Exists(ctx context.Context, name string) (bool, error)

	// Put writes data under name, creating parent directories as needed and
	// replacing any existing artifact.
	Put(ctx context.Context, name string, data []byte) error

	// Get reads an artifact. Returns ErrNotFound if absent.
	Get(ctx context.Context, name string) ([]byte, error)

	// Stat returns artifact metadata. Returns ErrNotFound if absent.
	Stat(ctx context.Context, name string) (Info, error)

	// Purge deletes everything inside dir while keeping dir itself.
	// A missing dir is not an error.
	Purge(ctx context.Context, dir string) error

	// Path returns the absolute location for name.
	Path(name string) string
}

// Info describes a stored artifact.
type Info struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// ErrNotFound is returned when an artifact doesn't exist.
type ErrNotFound struct {
	Name string
}

func (e ErrNotFound) Error() string {
	return "artifact not found: " + e.Name
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}

// ErrNotWritable is returned by Purge when dir exists but cannot be modified.
type ErrNotWritable struct {
	Dir string
	Err error
}

func (e ErrNotWritable) Error() string {
	return fmt.Sprintf("%s is not writable: %v", e.Dir, e.Err)
}

func (e ErrNotWritable) Unwrap() error { return e.Err }
