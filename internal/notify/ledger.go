package notify

import (
	"context"

	"git.home.luguber.info/inful/assetbuilder/internal/ledger"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
)

// LedgerNotifier records each artifact in a ledger.
type LedgerNotifier struct {
	Store ledger.Store
	Scope Scope
}

// Notify implements pipeline.Notifier.
func (l LedgerNotifier) Notify(ctx context.Context, a pipeline.Artifact) error {
	ev := NewEvent(l.Scope, a)
	return l.Store.Record(ctx, ledger.Entry{
		ID:        ev.ID,
		BuildID:   ev.BuildID,
		Group:     ev.Group,
		Hash:      ev.Hash,
		Filename:  ev.Filename,
		URL:       ev.URL,
		Path:      ev.Path,
		Sources:   ev.Sources,
		Gzipped:   ev.Gzipped,
		CreatedAt: ev.Timestamp,
	})
}
