// Package fetch runs one cancellable query against a record source and
// accumulates the results into a buffer owned by the session.
//
// A producer goroutine pulls from the source cursor into a bounded channel
// and a consumer goroutine appends to the buffer. Both stop at the next item
// boundary once the session is cancelled. A session never touches another
// session's buffer, so a superseded fetch cannot leak records into the next
// one.
package fetch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/metrics"
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/source"
)

// DefaultBuffer is the capacity of the producer/consumer channel.
const DefaultBuffer = 64

// ErrCancelled is returned by Wait when the session was cancelled before the
// source was exhausted. It is not a failure.
var ErrCancelled = errors.New("fetch cancelled")

// Options tunes a session.
type Options struct {
	// Buffer is the channel capacity between producer and consumer.
	Buffer int

	// OnAppend is called from the consumer goroutine after each record is
	// appended. It is never called once Cancel has returned.
	OnAppend func(models.Record)
}

// Session is one in-flight or finished fetch.
type Session struct {
	scope    string
	ctx      context.Context
	cancel   context.CancelFunc
	onAppend func(models.Record)
	started  time.Time

	wg   sync.WaitGroup
	done chan struct{}

	mu      sync.RWMutex
	records []models.Record

	// Written by the producer before it closes the channel.
	exhausted bool
	err       error

	// Written by the consumer when it stops appending early.
	skipped bool

	result string
}

// Start begins fetching every record under scope from q.
func Start(ctx context.Context, q source.Querier, scope string, opts Options) *Session {
	if opts.Buffer < 1 {
		opts.Buffer = DefaultBuffer
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		scope:    scope,
		ctx:      ctx,
		cancel:   cancel,
		onAppend: opts.OnAppend,
		started:  time.Now(),
		done:     make(chan struct{}),
	}

	metrics.FetchStarted()
	logging.WithContext(ctx).Debug("fetch started", zap.String("scope", scope))

	ch := make(chan models.Record, opts.Buffer)
	s.wg.Add(2)
	go s.produce(q, ch)
	go s.consume(ch)
	go s.finish()
	return s
}

func (s *Session) produce(q source.Querier, ch chan<- models.Record) {
	defer s.wg.Done()
	defer close(ch)

	cur, err := q.Query(s.ctx, s.scope)
	if err != nil {
		if s.ctx.Err() == nil {
			s.err = err
		}
		return
	}
	defer cur.Close()

	for cur.Next() {
		select {
		case ch <- cur.Record():
		case <-s.ctx.Done():
			return
		}
	}
	if err := cur.Err(); err != nil {
		if s.ctx.Err() == nil {
			s.err = err
		}
		return
	}
	s.exhausted = s.ctx.Err() == nil
}

func (s *Session) consume(ch <-chan models.Record) {
	defer s.wg.Done()
	for r := range ch {
		if s.ctx.Err() != nil {
			s.skipped = true
			continue
		}
		s.mu.Lock()
		s.records = append(s.records, r)
		s.mu.Unlock()
		metrics.RecordStreamed()
		if s.onAppend != nil {
			s.onAppend(r)
		}
	}
}

func (s *Session) finish() {
	s.wg.Wait()

	log := logging.WithContext(s.ctx)
	result := metrics.FetchCancelled
	switch {
	case s.err != nil:
		result = metrics.FetchFailed
		log.Error("fetch failed, keeping partial results",
			zap.String("scope", s.scope), zap.Int("records", s.Len()), zap.Error(s.err))
	case s.exhausted && !s.skipped:
		result = metrics.FetchCompleted
		log.Debug("fetch completed", zap.String("scope", s.scope), zap.Int("records", s.Len()))
	default:
		log.Debug("fetch cancelled", zap.String("scope", s.scope))
	}

	s.mu.Lock()
	s.result = result
	s.mu.Unlock()

	metrics.FetchFinished(result, time.Since(s.started))
	// Release the context once both goroutines are gone.
	s.cancel()
	close(s.done)
}

// Scope returns the path prefix this session fetches.
func (s *Session) Scope() string { return s.scope }

// Done is closed when the session has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Cancel stops the session and waits until no further record can be
// appended. It is safe to call after completion and more than once.
func (s *Session) Cancel() {
	s.cancel()
	<-s.done
}

// Wait blocks until the session stops or ctx ends. It returns nil on natural
// completion, ErrCancelled after cancellation, or the source error.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	switch s.Result() {
	case metrics.FetchCompleted:
		return nil
	case metrics.FetchFailed:
		return s.err
	default:
		return ErrCancelled
	}
}

// Err returns the source error that ended the session, if any. It is only
// meaningful after Done is closed.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Result returns the metrics result label, or "" while running.
func (s *Session) Result() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Records returns a copy of the buffer.
func (s *Session) Records() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of buffered records.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
