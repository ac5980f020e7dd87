package logstream

import "turing-log-tail/pkg/events"

// EventKind names the events a stream emitter carries.
type EventKind string

const (
	// EventStart is emitted by the consumer to request data.
	EventStart EventKind = "start"
	// EventAbort is emitted by the consumer to stop data.
	EventAbort EventKind = "abort"
	// EventData carries a newline-terminated chunk of display lines.
	EventData EventKind = "data"
	// EventError carries a transport or decoding failure.
	EventError EventKind = "error"
)

// Event is the payload delivered to listeners.
type Event struct {
	Kind EventKind
	Data string
	Err  error
}

// Handler receives emitted events.
type Handler = events.Handler[Event]

// Emitter is the publish/subscribe channel between the stream engine and its
// display consumer.
type Emitter struct {
	bus *events.Bus[EventKind, Event]
}

// NewEmitter creates an emitter with no listeners.
func NewEmitter() *Emitter {
	return &Emitter{bus: events.NewBus[EventKind, Event]()}
}

// On registers handler for kind and returns an id for Off.
func (e *Emitter) On(kind EventKind, handler Handler) events.ListenerID {
	return e.bus.On(kind, handler)
}

// Off removes a handler registered with On.
func (e *Emitter) Off(kind EventKind, id events.ListenerID) bool {
	return e.bus.Off(kind, id)
}

// Emit notifies the listeners of ev.Kind synchronously, in registration order.
func (e *Emitter) Emit(ev Event) {
	e.bus.Emit(ev.Kind, ev)
}

// Close drops every listener; later events go nowhere.
func (e *Emitter) Close() {
	e.bus.Close()
}
