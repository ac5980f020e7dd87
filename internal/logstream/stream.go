// Package logstream tails a paginated logs endpoint and reassembles the
// batches into an ordered, append-only text stream delivered through an
// event emitter.
package logstream

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"turing-log-tail/internal/model"
	"turing-log-tail/pkg/events"
	"turing-log-tail/pkg/log"
)

const (
	// DefaultPollInterval is used when Config.PollInterval is unset.
	DefaultPollInterval = 5 * time.Second
	// DefaultBatchSize is the head_lines value used after the first response.
	DefaultBatchSize = 500

	// FetchingLine is emitted when a stream (re)starts, before any response arrives.
	FetchingLine = "Fetching logs..."
)

// State of a Stream.
type State int

const (
	StateIdle State = iota
	StatePolling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	default:
		return "unknown"
	}
}

// Config tunes a Stream.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	// DefaultTailLines is where tailing restarts when the component changes
	// without an explicit tail selection. The zero value means from start.
	DefaultTailLines TailLines
	// Resource, when set, restricts component types to the resource's components.
	Resource model.Resource
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		if c.Resource != "" {
			c.PollInterval = c.Resource.DefaultPollInterval()
		} else {
			c.PollInterval = DefaultPollInterval
		}
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return c
}

// Stream is the log reassembly engine. It is Idle until a start event is
// emitted, then polls until an abort event. Every accepted batch is rendered
// into one data event and advances the cursor.
type Stream struct {
	id        string
	logger    *slog.Logger
	codec     *Codec
	cfg       Config
	emitter   *Emitter
	scheduler *Scheduler
	listeners []listenerRef

	// deliver serializes decode, cursor advance and emission of responses.
	deliver sync.Mutex

	mu    sync.Mutex
	state State
	query Query
	epoch uint64
}

type listenerRef struct {
	kind EventKind
	id   events.ListenerID
}

// NewStream wires a Stream to its emitter. The stream is Idle; emit
// EventStart (or call Start) to begin polling.
func NewStream(fetcher Fetcher, initial Query, codec *Codec, cfg Config) *Stream {
	cfg = cfg.withDefaults()
	if codec == nil {
		codec, _ = NewCodec()
	}
	if initial.ComponentType == "" && cfg.Resource != "" {
		initial.ComponentType = cfg.Resource.DefaultComponent()
	}
	initial.SinceTime = ""
	initial.HeadLines = 0

	id := uuid.New().String()
	s := &Stream{
		id:        id,
		logger:    log.With("stream", id),
		codec:     codec,
		cfg:       cfg,
		emitter:   NewEmitter(),
		scheduler: NewScheduler(fetcher, cfg.PollInterval),
		query:     initial,
	}
	s.listeners = []listenerRef{
		{EventStart, s.emitter.On(EventStart, func(Event) { s.onStart() })},
		{EventAbort, s.emitter.On(EventAbort, func(Event) { s.onAbort() })},
	}
	return s
}

// ID identifies the stream in logs.
func (s *Stream) ID() string { return s.id }

// Emitter returns the event emitter shared with the display consumer.
func (s *Stream) Emitter() *Emitter { return s.emitter }

// Start signals that the consumer wants data flowing.
func (s *Stream) Start() { s.emitter.Emit(Event{Kind: EventStart}) }

// Abort signals that the consumer no longer wants data.
func (s *Stream) Abort() { s.emitter.Emit(Event{Kind: EventAbort}) }

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Query returns a snapshot of the current query state.
func (s *Stream) Query() Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// UpdateQuery merges a filter change. If the filter differs from the current
// one, the cursor is cleared; while Polling the in-flight cycle is canceled
// and tailing restarts with a fresh fetching line.
func (s *Stream) UpdateQuery(u QueryUpdate) error {
	u, err := u.normalize(s.cfg.Resource)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.query.apply(u, s.cfg.DefaultTailLines) {
		s.mu.Unlock()
		return nil
	}
	s.epoch++
	epoch := s.epoch
	q := s.query
	polling := s.state == StatePolling
	if polling {
		s.scheduler.Stop()
	}
	s.mu.Unlock()

	s.logger.Info("Log filter changed", "component_type", q.ComponentType, "tail_lines", q.TailLines.String())
	testHookFilterChanged()

	if polling {
		s.begin(epoch)
	}
	return nil
}

// Close aborts the stream, closes its emitter and waits for the polling
// goroutine to exit. Once Close returns no further events are emitted. It
// must not be called from an event handler.
func (s *Stream) Close() {
	s.onAbort()
	for _, l := range s.listeners {
		s.emitter.Off(l.kind, l.id)
	}
	s.listeners = nil
	s.scheduler.Wait()
	s.emitter.Close()
}

func (s *Stream) onStart() {
	s.mu.Lock()
	s.state = StatePolling
	epoch := s.epoch
	s.mu.Unlock()

	s.begin(epoch)
}

// begin emits the fetching line and starts the poll loop for the query state
// identified by epoch. It gives up if the stream was aborted or the query
// replaced in the meantime; whoever replaced it restarts tailing.
func (s *Stream) begin(epoch uint64) {
	if !s.current(epoch) {
		return
	}

	s.emitter.Emit(Event{Kind: EventData, Data: FetchingLine + "\n"})

	s.mu.Lock()
	defer s.mu.Unlock()
	// A handler of the fetching line may already have aborted.
	if s.state != StatePolling || s.epoch != epoch {
		return
	}
	s.scheduler.Start(s.nextRequest, s.handleResult)
	s.logger.Info("Log stream started", "component_type", s.query.ComponentType,
		"tail_lines", s.query.TailLines.String(), "interval", s.scheduler.Interval().String())
}

func (s *Stream) current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StatePolling && s.epoch == epoch
}

func (s *Stream) onAbort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduler.Stop()
	if s.state == StatePolling {
		s.logger.Info("Log stream stopped")
	}
	s.state = StateIdle
}

func (s *Stream) nextRequest() (model.LogsQuery, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query.request(s.cfg.BatchSize), s.epoch
}

// handleResult applies one response. Responses of canceled cycles, or of
// cycles whose query has since been superseded, have no effect.
func (s *Stream) handleResult(c *Cycle, records []json.RawMessage, err error) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	if s.state != StatePolling || c.Canceled() || c.epoch != s.epoch {
		s.mu.Unlock()
		s.logger.Debug("Dropping stale logs response", "cycle", c.ID.String())
		return
	}

	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("Failed to fetch logs", "cycle", c.ID.String(), "error", err)
		s.emitter.Emit(Event{Kind: EventError, Err: err})
		return
	}

	if len(records) == 0 {
		s.mu.Unlock()
		return
	}

	entries := s.codec.DecodeBatch(records)
	chunk := s.codec.Chunk(entries)
	if s.query.advance(entries, s.cfg.BatchSize) {
		s.epoch++
		s.logger.Debug("Log cursor advanced", "since_time", s.query.SinceTime, "records", len(entries))
	}
	s.mu.Unlock()

	s.emitter.Emit(Event{Kind: EventData, Data: chunk})
}

// testHookFilterChanged runs between a filter change and the restart it triggers.
var testHookFilterChanged = func() {}
