package models

// DeletionOutcome is the result of deleting a single record.
// It is either Deleted or DeleteFailed.
type DeletionOutcome interface {
	Target() Record
	deletionOutcome()
}

// Deleted reports a record that was removed from its source.
type Deleted struct {
	Record Record
}

// DeleteFailed reports a record the source could not remove.
type DeleteFailed struct {
	Record Record
	Err    error
}

func (d Deleted) Target() Record      { return d.Record }
func (d DeleteFailed) Target() Record { return d.Record }

func (Deleted) deletionOutcome()      {}
func (DeleteFailed) deletionOutcome() {}

// Succeeded reports whether o is a Deleted outcome.
func Succeeded(o DeletionOutcome) bool {
	switch o.(type) {
	case Deleted:
		return true
	case DeleteFailed:
		return false
	default:
		return false
	}
}
