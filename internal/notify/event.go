// Package notify provides pipeline.Notifier implementations: a NATS
// JetStream publisher, an artifact ledger recorder and a fan-out.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
)

// ArtifactEvent is the JSON payload published for a built artifact.
type ArtifactEvent struct {
	ID        string    `json:"id"`
	BuildID   string    `json:"build_id"`
	Group     string    `json:"group"`
	Hash      string    `json:"hash"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	Path      string    `json:"path"`
	Sources   []string  `json:"sources"`
	Gzipped   bool      `json:"gzipped"`
	Timestamp time.Time `json:"timestamp"`
}

// Scope identifies where an artifact came from.
type Scope struct {
	BuildID string
	Group   string
}

// NewEvent builds an event for a.
func NewEvent(scope Scope, a pipeline.Artifact) ArtifactEvent {
	return ArtifactEvent{
		ID:        uuid.NewString(),
		BuildID:   scope.BuildID,
		Group:     scope.Group,
		Hash:      a.Hash,
		Filename:  a.Filename,
		URL:       a.URL,
		Path:      a.Path,
		Sources:   append([]string(nil), a.Sources...),
		Gzipped:   a.Gzipped,
		Timestamp: time.Now().UTC(),
	}
}

// Multi notifies every non-nil notifier and joins their errors.
type Multi []pipeline.Notifier

// Notify implements pipeline.Notifier.
func (m Multi) Notify(ctx context.Context, a pipeline.Artifact) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
