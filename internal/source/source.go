// Package source defines the RecordSource contract consumed by the browsing
// core: a prefix query yielding a lazy, cancellable sequence of records, plus
// per-record and capability-gated bulk deletion.
//
// Backends live in subpackages (memory, sqlstore, s3).
package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/fruitsalade/folderview/internal/hierarchy"
	"github.com/fruitsalade/folderview/internal/models"
)

// ErrNotFound is returned when a record to delete no longer exists.
var ErrNotFound = errors.New("record not found")

// ErrHandleSpent is returned when a confirmation handle is committed twice.
var ErrHandleSpent = errors.New("confirmation handle already used")

// Cursor yields records one at a time, in source order. It follows the
// database/sql Rows protocol: call Next until it returns false, then check
// Err. Close releases resources and is safe to call more than once.
type Cursor interface {
	Next() bool
	Record() models.Record
	Err() error
	Close() error
}

// Querier runs prefix queries. Cancelling ctx stops the cursor.
type Querier interface {
	Query(ctx context.Context, prefix string) (Cursor, error)
}

// Deleter removes records.
type Deleter interface {
	// RequestBulkDeletion prepares one confirmation for the whole set. A nil
	// handle with a nil error means the capability is unavailable.
	RequestBulkDeletion(ctx context.Context, records []models.Record) (*ConfirmationHandle, error)

	// DeleteOne removes a single record immediately.
	DeleteOne(ctx context.Context, record models.Record) models.DeletionOutcome
}

// Source is a complete record backend.
type Source interface {
	Querier
	Deleter
	Name() string
	Close() error
}

// Error reports a failed source operation.
type Error struct {
	Source string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Source, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns err as a *Error, or nil when err is nil.
func Wrap(source, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Source: source, Op: op, Err: err}
}

// ConfirmationHandle stands for one pending batch deletion. The batch is
// only carried out when Commit is called.
type ConfirmationHandle struct {
	ID      string
	Records []models.Record

	mu     sync.Mutex
	spent  bool
	commit func(ctx context.Context) error
}

// NewConfirmationHandle creates a handle that runs commit on confirmation.
func NewConfirmationHandle(records []models.Record, commit func(ctx context.Context) error) *ConfirmationHandle {
	batch := make([]models.Record, len(records))
	copy(batch, records)
	return &ConfirmationHandle{
		ID:      uuid.NewString(),
		Records: batch,
		commit:  commit,
	}
}

// Commit performs the batch deletion. A handle can be committed once.
func (h *ConfirmationHandle) Commit(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.spent {
		return ErrHandleSpent
	}
	h.spent = true
	return h.commit(ctx)
}

// Matches reports whether a record folder falls under prefix. An empty
// prefix matches everything.
func Matches(folder, prefix string) bool {
	if prefix == "" {
		return true
	}
	return hierarchy.Under(folder, prefix)
}

// SliceCursor iterates over an in-memory slice. It stops early once ctx is
// done.
type SliceCursor struct {
	ctx     context.Context
	records []models.Record
	pos     int
	cur     models.Record
	err     error
}

// NewSliceCursor returns a cursor over records.
func NewSliceCursor(ctx context.Context, records []models.Record) *SliceCursor {
	return &SliceCursor{ctx: ctx, records: records}
}

func (c *SliceCursor) Next() bool {
	if c.err != nil || c.pos >= len(c.records) {
		return false
	}
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return false
	}
	c.cur = c.records[c.pos]
	c.pos++
	return true
}

func (c *SliceCursor) Record() models.Record { return c.cur }
func (c *SliceCursor) Err() error            { return c.err }
func (c *SliceCursor) Close() error          { return nil }
