// Package navigation tracks where the user is in the folder hierarchy and
// keeps the record buffer, folder labels and current-folder view in step
// with it.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/events"
	"github.com/fruitsalade/folderview/internal/fetch"
	"github.com/fruitsalade/folderview/internal/hierarchy"
	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/metrics"
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/source"
)

// ErrHistoryMismatch is returned by BackPath when the current path does not
// end with the most recently pushed segment.
var ErrHistoryMismatch = errors.New("path history does not match current path")

// ErrClosed is returned by commands issued after Close.
var ErrClosed = errors.New("navigation controller closed")

// Reloader re-fetches the current folder.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Controller owns the navigation state of one browsing session. Commands
// are serialized; getters never wait for a running fetch.
type Controller struct {
	src    source.Querier
	buffer int
	ctx    context.Context

	op sync.Mutex // serializes commands

	mu          sync.RWMutex
	currentPath string
	history     []string
	session     *fetch.Session
	state       State
	hier        models.HierarchyResult
	view        []models.Record
	closed      bool

	changes *events.Broadcaster[Change]
}

// Options configures a Controller.
type Options struct {
	// FetchBuffer is the producer/consumer channel capacity per fetch.
	FetchBuffer int
}

// New creates a controller over src. Fetches run under ctx, which should
// outlive individual commands.
func New(ctx context.Context, src source.Querier, opts Options) *Controller {
	return &Controller{
		src:     src,
		buffer:  opts.FetchBuffer,
		ctx:     ctx,
		changes: events.NewBroadcaster[Change]("navigation"),
	}
}

// Open starts a browsing session at root with an empty history.
func (c *Controller) Open(ctx context.Context, root string) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	c.history = nil
	c.currentPath = hierarchy.Normalize(root)
	c.mu.Unlock()
	c.publish(ChangePath)

	return c.refetch(ctx)
}

// SetPath jumps to path. History is cleared and any running fetch is
// superseded by one scoped to path. It returns once the old fetch has
// stopped and the new one is running; folders and view are recomputed when
// the new fetch completes.
func (c *Controller) SetPath(path string) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.currentPath = hierarchy.Normalize(path)
	c.history = nil
	c.hier = models.HierarchyResult{}
	c.view = nil
	current := c.currentPath
	c.mu.Unlock()
	c.publish(ChangePath)
	c.publish(ChangeHierarchy)
	c.publish(ChangeView)

	return c.setPath(current, true)
}

// NextPath descends by segment, e.g. "x/" or "x/y/".
func (c *Controller) NextPath(ctx context.Context, segment string) error {
	c.op.Lock()
	defer c.op.Unlock()

	if segment == "" {
		return fmt.Errorf("next path: empty segment")
	}

	c.mu.Lock()
	c.currentPath += segment
	c.history = append(c.history, segment)
	c.mu.Unlock()
	c.publish(ChangePath)

	logging.WithContext(ctx).Debug("descend",
		zap.String("segment", segment), zap.String("path", c.CurrentPath()))
	return c.refetch(ctx)
}

// Enter descends into a folder label from the latest aggregation.
func (c *Controller) Enter(ctx context.Context, label models.FolderLabel) error {
	current := hierarchy.Normalize(c.CurrentPath())
	full := hierarchy.Normalize(label.FullPath)
	if !strings.HasPrefix(full, current) || full == current {
		return fmt.Errorf("enter %q: not below %q", label.FullPath, current)
	}
	return c.NextPath(ctx, strings.TrimPrefix(full, current))
}

// BackPath undoes the last descent. It returns false when there is nothing
// to go back to.
func (c *Controller) BackPath(ctx context.Context) (bool, error) {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	if len(c.history) == 0 {
		c.mu.Unlock()
		return false, nil
	}
	last := c.history[len(c.history)-1]
	if !strings.HasSuffix(c.currentPath, last) {
		current := c.currentPath
		c.mu.Unlock()
		metrics.RecordHistoryMismatch()
		logging.WithContext(ctx).Error("path history mismatch",
			zap.String("current_path", current), zap.String("segment", last))
		return false, fmt.Errorf("back from %q by %q: %w", current, last, ErrHistoryMismatch)
	}
	c.history = c.history[:len(c.history)-1]
	c.currentPath = strings.TrimSuffix(c.currentPath, last)
	c.mu.Unlock()
	c.publish(ChangePath)

	return true, c.refetch(ctx)
}

// Reload re-fetches the current path and recomputes folders and view.
func (c *Controller) Reload(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()
	return c.refetch(ctx)
}

// Refresh re-derives the current-folder view from the buffer without
// fetching. It does nothing while the view is empty.
func (c *Controller) Refresh(ctx context.Context) {
	c.mu.RLock()
	empty := len(c.view) == 0
	folder := viewFolder(c.hier.RootFolder, c.currentPath)
	c.mu.RUnlock()
	if empty {
		return
	}
	c.DeriveCurrentFolderView(folder)
}

// DeriveCurrentFolderView sets the view to the buffered records whose folder
// is exactly folder, and returns it.
func (c *Controller) DeriveCurrentFolderView(folder string) []models.Record {
	view := hierarchy.DirectlyIn(c.Records(), folder)
	c.mu.Lock()
	c.view = view
	c.mu.Unlock()
	c.publish(ChangeView)
	return append([]models.Record(nil), view...)
}

// refetch replaces the fetch for the current path, waits for it, then
// aggregates and derives the view. Callers hold c.op.
func (c *Controller) refetch(ctx context.Context) error {
	if err := c.setPath(c.CurrentPath(), false); err != nil {
		return err
	}

	c.mu.RLock()
	sess := c.session
	c.mu.RUnlock()

	err := sess.Wait(ctx)
	if ctx.Err() == nil {
		c.settle(sess)
	}
	switch {
	case err == nil:
	case errors.Is(err, fetch.ErrCancelled):
		return nil
	case ctx.Err() != nil:
		return err
	default:
		// Partial results stay usable; the session already logged the error.
	}

	c.present(ctx, sess)
	return nil
}

// setPath cancels the running fetch and starts one scoped to path. With
// present set, folders and view are recomputed once the new fetch ends;
// otherwise the caller does that.
func (c *Controller) setPath(path string, present bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	old := c.session
	c.mu.Unlock()

	if old != nil {
		old.Cancel()
	}

	sess := fetch.Start(c.ctx, c.src, path, fetch.Options{
		Buffer:   c.buffer,
		OnAppend: func(models.Record) { c.publish(ChangeRecords) },
	})

	c.mu.Lock()
	c.session = sess
	c.state = Fetching
	c.mu.Unlock()
	c.publish(ChangeState)

	go c.watch(sess, present)
	return nil
}

// watch settles the state once sess stops, even if nobody waits for it.
func (c *Controller) watch(sess *fetch.Session, present bool) {
	<-sess.Done()
	if present && sess.Result() != metrics.FetchCancelled {
		c.present(c.ctx, sess)
	}
	c.settle(sess)
}

// settle moves Fetching to Ready, or to Idle after a cancellation. Sessions
// that were already superseded are ignored.
func (c *Controller) settle(sess *fetch.Session) {
	c.mu.Lock()
	if c.session != sess || c.state != Fetching {
		c.mu.Unlock()
		return
	}
	if sess.Result() == metrics.FetchCancelled {
		c.state = Idle
	} else {
		c.state = Ready
	}
	c.mu.Unlock()
	c.publish(ChangeState)
}

// present aggregates the buffer of sess and derives the view from it. A
// superseded sess is ignored.
func (c *Controller) present(ctx context.Context, sess *fetch.Session) {
	start := time.Now()
	records := sess.Records()
	h := hierarchy.Aggregate(records)
	metrics.RecordAggregation(time.Since(start), len(h.SubFolders))

	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return
	}
	folder := viewFolder(h.RootFolder, c.currentPath)
	c.hier = h
	c.view = hierarchy.DirectlyIn(records, folder)
	c.mu.Unlock()

	logging.WithContext(ctx).Debug("aggregated folders",
		zap.String("root", h.RootFolder), zap.String("view", folder),
		zap.Int("folders", len(h.SubFolders)))
	c.publish(ChangeHierarchy)
	c.publish(ChangeView)
}

// viewFolder picks the folder whose records form the view. When every
// fetched record lies below current, root is the deepest folder they share
// and its own records would otherwise be reachable from no label.
func viewFolder(root, current string) string {
	if root != "" && hierarchy.Under(root, current) {
		return root
	}
	return current
}

func (c *Controller) publish(kind ChangeKind) {
	c.changes.Publish(Change{Kind: kind, Path: c.CurrentPath()})
}

// CanGoBack reports whether BackPath has a segment to undo.
func (c *Controller) CanGoBack() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.history) > 0
}

// CurrentPath returns the folder being browsed.
func (c *Controller) CurrentPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentPath
}

// History returns the pushed segments, oldest first.
func (c *Controller) History() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.history...)
}

// Navigation returns the current path and history together.
func (c *Controller) Navigation() models.NavigationState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.NavigationState{
		CurrentPath: c.currentPath,
		PathHistory: append([]string(nil), c.history...),
	}
}

// Records returns every record fetched for the current path so far.
func (c *Controller) Records() []models.Record {
	c.mu.RLock()
	sess := c.session
	c.mu.RUnlock()
	if sess == nil {
		return nil
	}
	return sess.Records()
}

// Hierarchy returns the latest aggregation.
func (c *Controller) Hierarchy() models.HierarchyResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h := c.hier
	h.SubFolders = append([]models.FolderLabel(nil), c.hier.SubFolders...)
	return h
}

// Folders returns the subfolder labels of the latest aggregation.
func (c *Controller) Folders() []models.FolderLabel {
	return c.Hierarchy().SubFolders
}

// CurrentFolderRecords returns the records directly in the current folder.
func (c *Controller) CurrentFolderRecords() []models.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Record(nil), c.view...)
}

// State returns the fetch state and the scope it applies to.
func (c *Controller) State() (State, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return c.state, ""
	}
	return c.state, c.session.Scope()
}

// FetchErr returns the error that ended the latest fetch, if any.
func (c *Controller) FetchErr() error {
	c.mu.RLock()
	sess := c.session
	c.mu.RUnlock()
	if sess == nil {
		return nil
	}
	return sess.Err()
}

// Subscribe returns a channel of state changes.
func (c *Controller) Subscribe() chan Change {
	return c.changes.Subscribe()
}

// Unsubscribe stops delivery to ch and closes it.
func (c *Controller) Unsubscribe(ch chan Change) {
	c.changes.Unsubscribe(ch)
}

// Close cancels any running fetch and closes all subscriptions.
func (c *Controller) Close() {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sess := c.session
	c.mu.Unlock()

	if sess != nil {
		sess.Cancel()
	}
	c.changes.Close()
}
