// Package ledger records every pipeline artifact that was built, so the
// history of a public directory can be inspected after the fact.
package ledger

import (
	"context"
	"time"
)

// Entry is one built artifact.
type Entry struct {
	ID        string
	BuildID   string
	Group     string
	Hash      string
	Filename  string
	URL       string
	Path      string
	Sources   []string
	Gzipped   bool
	CreatedAt time.Time
}

// Store defines the interface for persisting and retrieving entries.
type Store interface {
	// Record appends an entry. A zero CreatedAt is set to the current time.
	Record(ctx context.Context, e Entry) error

	// ByBuild returns the entries of one build in insertion order.
	ByBuild(ctx context.Context, buildID string) ([]Entry, error)

	// Recent returns at most limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Range returns entries created within [start, end].
	Range(ctx context.Context, start, end time.Time) ([]Entry, error)

	// Close releases resources.
	Close() error
}
