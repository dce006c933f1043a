// Package browser wires a record source, navigation, selection and deletion
// into one browsing session.
package browser

import (
	"context"

	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/deletion"
	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/navigation"
	"github.com/fruitsalade/folderview/internal/selection"
	"github.com/fruitsalade/folderview/internal/source"
)

// Deps are the inputs of a browsing session.
type Deps struct {
	Source source.Source

	// FetchBuffer is the per-fetch channel capacity.
	FetchBuffer int

	// BulkConfirmation routes deletions through one confirmed batch.
	BulkConfirmation bool
}

// Browser is one browsing session.
type Browser struct {
	Source     source.Source
	Navigation *navigation.Controller
	Selection  *selection.Manager
	Deletion   *deletion.Coordinator

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a session. Every log line from the session carries its ID.
func New(ctx context.Context, deps Deps) *Browser {
	ctx, cancel := context.WithCancel(logging.WithSession(ctx, ""))

	nav := navigation.New(ctx, deps.Source, navigation.Options{FetchBuffer: deps.FetchBuffer})
	sel := selection.New()
	del := deletion.New(deletion.Config{
		Selection:        sel,
		Deleter:          deps.Source,
		Reloader:         nav,
		BulkConfirmation: deps.BulkConfirmation,
	})

	logging.WithContext(ctx).Info("browsing session created",
		zap.String("source", deps.Source.Name()),
		zap.Bool("bulk_confirmation", deps.BulkConfirmation))

	return &Browser{
		Source:     deps.Source,
		Navigation: nav,
		Selection:  sel,
		Deletion:   del,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Context returns the session context, tagged with the session ID.
func (b *Browser) Context() context.Context {
	return b.ctx
}

// SessionID returns the session ID used in logs.
func (b *Browser) SessionID() string {
	return logging.SessionID(b.ctx)
}

// Open starts browsing at root.
func (b *Browser) Open(root string) error {
	return b.Navigation.Open(b.ctx, root)
}

// Close stops fetches, closes subscriptions and the source.
func (b *Browser) Close() error {
	b.Navigation.Close()
	b.Deletion.Close()
	b.Selection.Close()
	b.cancel()
	return b.Source.Close()
}
