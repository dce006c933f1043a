// Package deletion turns the current selection into deletions, either as one
// externally confirmed batch or record by record.
package deletion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/events"
	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/metrics"
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/navigation"
	"github.com/fruitsalade/folderview/internal/selection"
	"github.com/fruitsalade/folderview/internal/source"
)

// ErrUnknownConfirmation is returned when resolving a handle that is not
// pending.
var ErrUnknownConfirmation = errors.New("unknown confirmation")

const (
	strategyBulk   = "bulk"
	strategyDirect = "direct"
)

// Coordinator deletes selected records and reloads navigation afterwards.
type Coordinator struct {
	sel  *selection.Manager
	del  source.Deleter
	nav  navigation.Reloader
	bulk bool

	mu sync.Mutex // serializes deletion requests

	pmu     sync.Mutex
	pending map[string]*source.ConfirmationHandle

	events *events.Broadcaster[Event]
}

// Config wires a Coordinator.
type Config struct {
	Selection *selection.Manager
	Deleter   source.Deleter
	Reloader  navigation.Reloader

	// BulkConfirmation selects the confirmed batch path over direct
	// per-record deletion.
	BulkConfirmation bool
}

// New creates a coordinator.
func New(cfg Config) *Coordinator {
	return &Coordinator{
		sel:     cfg.Selection,
		del:     cfg.Deleter,
		nav:     cfg.Reloader,
		bulk:    cfg.BulkConfirmation,
		pending: make(map[string]*source.ConfirmationHandle),
		events:  events.NewBroadcaster[Event]("deletion"),
	}
}

// DeleteSelected deletes the current selection. The selection is cleared
// before any deletion starts.
func (c *Coordinator) DeleteSelected(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.deleteRecords(ctx, c.sel.Take())
}

// DeleteRecord deletes a single record through the same path as a
// selection.
func (c *Coordinator) DeleteRecord(ctx context.Context, record models.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sel.SelectOnly(record)
	return c.deleteRecords(ctx, c.sel.Take())
}

// deleteRecords runs one deletion request. Callers hold c.mu.
func (c *Coordinator) deleteRecords(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	if c.bulk {
		return c.requestBulk(ctx, records)
	}
	return c.deleteEach(ctx, records)
}

func (c *Coordinator) requestBulk(ctx context.Context, records []models.Record) error {
	log := logging.WithContext(ctx)

	h, err := c.del.RequestBulkDeletion(ctx, records)
	if err != nil {
		log.Warn("bulk deletion request failed", zap.Int("records", len(records)), zap.Error(err))
		return c.failAll(ctx, records, err)
	}
	if h == nil {
		log.Debug("bulk deletion unavailable", zap.Int("records", len(records)))
		return nil
	}

	c.pmu.Lock()
	c.pending[h.ID] = h
	n := len(c.pending)
	c.pmu.Unlock()
	metrics.SetConfirmationsPending(n)

	log.Info("awaiting deletion confirmation",
		zap.String("handle", h.ID), zap.Int("records", len(h.Records)))
	return c.events.PublishWait(ctx, ShowDeletionConfirmation{Records: h.Records, Handle: h})
}

// failAll reports every record of a batch that could not be requested as a
// failed deletion. Nothing changed in the source, so there is no reload.
func (c *Coordinator) failAll(ctx context.Context, records []models.Record, err error) error {
	err = fmt.Errorf("request bulk deletion: %w", err)
	for _, r := range records {
		metrics.RecordDeletion(strategyBulk, false)
		if perr := c.events.PublishWait(ctx, DeletionResult{Record: r, Err: err}); perr != nil {
			return perr
		}
	}
	return nil
}

func (c *Coordinator) deleteEach(ctx context.Context, records []models.Record) error {
	log := logging.WithContext(ctx)

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		res := resultFrom(c.del.DeleteOne(ctx, r))
		metrics.RecordDeletion(strategyDirect, res.Success)
		if res.Success {
			log.Info("deleted record", zap.String("id", r.ID), zap.String("name", r.DisplayName))
		} else {
			log.Warn("record deletion failed", zap.String("id", r.ID), zap.Error(res.Err))
		}

		if err := c.events.PublishWait(ctx, res); err != nil {
			return err
		}
		if err := c.nav.Reload(ctx); err != nil {
			log.Warn("reload after deletion failed", zap.Error(err))
		}
	}
	return nil
}

// ResolveConfirmation reports the caller's answer for a pending batch. A
// confirmed batch is committed. Navigation reloads either way.
func (c *Coordinator) ResolveConfirmation(ctx context.Context, handleID string, confirmed bool) error {
	h := c.take(handleID)
	if h == nil {
		return fmt.Errorf("resolve %s: %w", handleID, ErrUnknownConfirmation)
	}
	log := logging.WithContext(ctx)

	var commitErr error
	if confirmed {
		commitErr = h.Commit(ctx)
		metrics.RecordDeletion(strategyBulk, commitErr == nil)
		metrics.RecordConfirmationResolved("confirmed")
		if commitErr != nil {
			log.Error("bulk deletion failed", zap.String("handle", handleID), zap.Error(commitErr))
		} else {
			log.Info("bulk deletion committed",
				zap.String("handle", handleID), zap.Int("records", len(h.Records)))
		}
	} else {
		metrics.RecordConfirmationResolved("declined")
		log.Info("bulk deletion declined", zap.String("handle", handleID))
	}

	if err := c.nav.Reload(ctx); err != nil {
		log.Warn("reload after confirmation failed", zap.Error(err))
		return errors.Join(commitErr, err)
	}
	return commitErr
}

// AbandonConfirmation drops a pending batch without deleting or reloading.
// Unknown IDs are ignored.
func (c *Coordinator) AbandonConfirmation(handleID string) {
	if c.take(handleID) == nil {
		return
	}
	metrics.RecordConfirmationResolved("abandoned")
	logging.Debug("deletion confirmation abandoned", zap.String("handle", handleID))
}

func (c *Coordinator) take(handleID string) *source.ConfirmationHandle {
	c.pmu.Lock()
	h, ok := c.pending[handleID]
	delete(c.pending, handleID)
	n := len(c.pending)
	c.pmu.Unlock()
	if !ok {
		return nil
	}
	metrics.SetConfirmationsPending(n)
	return h
}

// Pending returns the IDs of batches awaiting resolution, sorted.
func (c *Coordinator) Pending() []string {
	c.pmu.Lock()
	defer c.pmu.Unlock()
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Subscribe returns a channel of deletion events. Events are delivered
// without drops, so subscribers must keep reading.
func (c *Coordinator) Subscribe() chan Event {
	return c.events.Subscribe()
}

// Unsubscribe stops delivery to ch and closes it.
func (c *Coordinator) Unsubscribe(ch chan Event) {
	c.events.Unsubscribe(ch)
}

// Close closes all subscriptions.
func (c *Coordinator) Close() {
	c.events.Close()
}
