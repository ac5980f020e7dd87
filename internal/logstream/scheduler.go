package logstream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"turing-log-tail/internal/model"
	"turing-log-tail/pkg/log"
)

// Fetcher retrieves one batch of raw log records.
type Fetcher interface {
	FetchLogs(ctx context.Context, q model.LogsQuery) ([]json.RawMessage, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, q model.LogsQuery) ([]json.RawMessage, error)

// FetchLogs calls f.
func (f FetcherFunc) FetchLogs(ctx context.Context, q model.LogsQuery) ([]json.RawMessage, error) {
	return f(ctx, q)
}

// Cycle is the context of one in-flight poll request. Canceling it detaches
// the eventual response from any observable effect.
type Cycle struct {
	ID    ulid.ULID
	Query model.LogsQuery

	epoch  uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Cancel marks the cycle canceled and aborts its request.
func (c *Cycle) Cancel() { c.cancel() }

// Canceled reports whether the cycle was canceled.
func (c *Cycle) Canceled() bool { return c.ctx.Err() != nil }

// Context returns the context the cycle's request runs under. It carries the
// cycle ID as the request ID.
func (c *Cycle) Context() context.Context { return c.ctx }

// ParamsFunc returns the parameters of the next request along with an epoch
// identifying the query state they were derived from.
type ParamsFunc func() (model.LogsQuery, uint64)

// ResultFunc receives the outcome of a cycle that was not canceled while in flight.
type ResultFunc func(c *Cycle, records []json.RawMessage, err error)

// Scheduler runs a fetch-and-wait loop: fetch immediately, wait for the
// response, wait one interval, repeat. At most one loop and one request exist
// at a time.
type Scheduler struct {
	fetcher  Fetcher
	interval time.Duration

	mu      sync.Mutex
	stop    context.CancelFunc
	current *Cycle
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler polling fetcher every interval.
func NewScheduler(fetcher Fetcher, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Scheduler{
		fetcher:  fetcher,
		interval: interval,
	}
}

// Interval returns the poll cadence.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Start replaces any running loop with a new one. params is evaluated at the
// start of every cycle, so parameter changes are picked up on the next tick.
func (s *Scheduler) Start(params ParamsFunc, onResult ResultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.wg.Add(1)
	go s.loop(ctx, params, onResult)
}

// Stop cancels the pending timer and the in-flight request. It is idempotent
// and safe to call from within a ResultFunc.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Running reports whether a loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Wait blocks until every loop started so far has exited. It must not be
// called from within a ResultFunc.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) stopLocked() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	if s.current != nil {
		s.current.Cancel()
		s.current = nil
	}
}

func (s *Scheduler) loop(ctx context.Context, params ParamsFunc, onResult ResultFunc) {
	defer s.wg.Done()

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		s.runCycle(ctx, params, onResult)

		timer.Reset(s.interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context, params ParamsFunc, onResult ResultFunc) {
	if ctx.Err() != nil {
		return
	}
	q, epoch := params()

	id := ulid.Make()
	cctx, cancel := context.WithCancel(model.WithRequestID(ctx, id.String()))
	c := &Cycle{ID: id, Query: q, epoch: epoch, ctx: cctx, cancel: cancel}
	defer cancel()

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.current = c
	s.mu.Unlock()

	log.Debug("Polling logs", "cycle", c.ID.String(), "component_type", q.ComponentType,
		"tail_lines", q.TailLines, "head_lines", q.HeadLines, "since_time", q.SinceTime)

	records, err := s.fetcher.FetchLogs(c.Context(), q)

	s.mu.Lock()
	if s.current == c {
		s.current = nil
	}
	s.mu.Unlock()

	if c.Canceled() {
		log.Debug("Dropping response of canceled cycle", "cycle", c.ID.String())
		return
	}
	onResult(c, records, err)
}
