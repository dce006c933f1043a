package deletion

import (
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/source"
)

// Event is emitted by the coordinator. It is either ShowDeletionConfirmation
// or DeletionResult.
type Event interface {
	deletionEvent()
}

// ShowDeletionConfirmation asks the caller to confirm a batch deletion and
// report back through ResolveConfirmation or AbandonConfirmation.
type ShowDeletionConfirmation struct {
	Records []models.Record
	Handle  *source.ConfirmationHandle
}

// DeletionResult reports the outcome of deleting one record directly.
type DeletionResult struct {
	Record  models.Record
	Success bool
	Err     error
}

func (ShowDeletionConfirmation) deletionEvent() {}
func (DeletionResult) deletionEvent()           {}

// HandleID returns the ID to pass back when resolving the confirmation.
func (e ShowDeletionConfirmation) HandleID() string {
	return e.Handle.ID
}

func resultFrom(o models.DeletionOutcome) DeletionResult {
	switch o := o.(type) {
	case models.Deleted:
		return DeletionResult{Record: o.Record, Success: true}
	case models.DeleteFailed:
		return DeletionResult{Record: o.Record, Err: o.Err}
	default:
		return DeletionResult{Record: o.Target()}
	}
}
