// Package memory provides a slice-backed record source.
package memory

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/metrics"
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/source"
)

const name = "memory"

// Option configures a Source.
type Option func(*Source)

// WithBulkDeletion enables the batch confirmation capability.
func WithBulkDeletion(enabled bool) Option {
	return func(s *Source) { s.bulk = enabled }
}

// WithFailures makes DeleteOne fail for the given record IDs.
func WithFailures(ids ...string) Option {
	return func(s *Source) {
		for _, id := range ids {
			s.failing[id] = true
		}
	}
}

// WithDelay sleeps before yielding each record.
func WithDelay(d time.Duration) Option {
	return func(s *Source) { s.delay = d }
}

// Source holds records in insertion order.
type Source struct {
	mu      sync.RWMutex
	records []models.Record
	failing map[string]bool
	bulk    bool
	delay   time.Duration
}

// New creates a memory source seeded with records.
func New(records []models.Record, opts ...Option) *Source {
	s := &Source{
		records: append([]models.Record(nil), records...),
		failing: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromPaths builds records from absolute file paths. The path doubles as the
// record ID.
func FromPaths(paths []string) []models.Record {
	records := make([]models.Record, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		records = append(records, models.Record{
			ID:          p,
			DisplayName: path.Base(p),
			FolderPath:  path.Dir(p),
		})
	}
	return records
}

func (s *Source) Name() string { return name }

// Len returns the number of stored records.
func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Add appends records.
func (s *Source) Add(records ...models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

// Query returns a cursor over the records under prefix, snapshotted at call
// time.
func (s *Source) Query(ctx context.Context, prefix string) (source.Cursor, error) {
	start := time.Now()
	s.mu.RLock()
	var matched []models.Record
	for _, r := range s.records {
		if source.Matches(r.FolderPath, prefix) {
			matched = append(matched, r)
		}
	}
	s.mu.RUnlock()
	metrics.RecordSourceOperation(name, "query", time.Since(start), true)

	return &cursor{SliceCursor: source.NewSliceCursor(ctx, matched), ctx: ctx, delay: s.delay}, nil
}

// DeleteOne removes a record immediately.
func (s *Source) DeleteOne(ctx context.Context, record models.Record) models.DeletionOutcome {
	start := time.Now()
	err := s.remove(record.ID)
	metrics.RecordSourceOperation(name, "delete", time.Since(start), err == nil)
	if err != nil {
		logging.WithContext(ctx).Warn("delete failed", zap.String("id", record.ID), zap.Error(err))
		return models.DeleteFailed{Record: record, Err: source.Wrap(name, "delete", err)}
	}
	return models.Deleted{Record: record}
}

func (s *Source) remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[id] {
		return fmt.Errorf("delete %s: permission denied", id)
	}
	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return source.ErrNotFound
}

// RequestBulkDeletion returns a handle whose commit removes every record in
// the batch. It returns nil when the capability is disabled or the batch is
// empty.
func (s *Source) RequestBulkDeletion(ctx context.Context, records []models.Record) (*source.ConfirmationHandle, error) {
	if !s.bulk || len(records) == 0 {
		return nil, nil
	}
	h := source.NewConfirmationHandle(records, func(ctx context.Context) error {
		start := time.Now()
		var firstErr error
		for _, r := range records {
			if err := s.remove(r.ID); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		metrics.RecordSourceOperation(name, "bulk_delete", time.Since(start), firstErr == nil)
		return source.Wrap(name, "bulk_delete", firstErr)
	})
	return h, nil
}

func (s *Source) Close() error { return nil }

type cursor struct {
	*source.SliceCursor
	ctx   context.Context
	delay time.Duration
}

func (c *cursor) Next() bool {
	if c.delay > 0 {
		select {
		case <-c.ctx.Done():
		case <-time.After(c.delay):
		}
	}
	return c.SliceCursor.Next()
}
