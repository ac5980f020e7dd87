// Package console displays a log stream on a terminal.
package console

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/fatih/color"

	"turing-log-tail/internal/logstream"
	"turing-log-tail/pkg/events"
)

// Writer is a display consumer of a stream emitter: data chunks are appended
// to out, errors are reported on errOut.
type Writer struct {
	out    io.Writer
	errOut io.Writer

	search    *regexp.Regexp
	highlight *color.Color
	errColor  *color.Color

	mu    sync.Mutex
	lines int
	errs  int

	emitter *logstream.Emitter
	dataID  events.ListenerID
	errID   events.ListenerID
}

// Option configures a Writer.
type Option func(*Writer)

// WithSearch highlights case-insensitive occurrences of term.
func WithSearch(term string) Option {
	return func(w *Writer) {
		if term = strings.TrimSpace(term); term != "" {
			w.search = regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))
		}
	}
}

// WithColor forces color output on or off regardless of terminal detection.
func WithColor(enabled bool) Option {
	return func(w *Writer) {
		if enabled {
			w.highlight.EnableColor()
			w.errColor.EnableColor()
		} else {
			w.highlight.DisableColor()
			w.errColor.DisableColor()
		}
	}
}

// NewWriter creates a Writer. Nothing is displayed until Attach.
func NewWriter(out, errOut io.Writer, opts ...Option) *Writer {
	w := &Writer{
		out:       out,
		errOut:    errOut,
		highlight: color.New(color.FgBlack, color.BgYellow),
		errColor:  color.New(color.FgRed),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Attach subscribes the writer to data and error events of e.
func (w *Writer) Attach(e *logstream.Emitter) {
	w.Detach()
	w.emitter = e
	w.dataID = e.On(logstream.EventData, func(ev logstream.Event) { w.writeData(ev.Data) })
	w.errID = e.On(logstream.EventError, func(ev logstream.Event) { w.writeError(ev.Err) })
}

// Detach unsubscribes from the emitter passed to Attach.
func (w *Writer) Detach() {
	if w.emitter == nil {
		return
	}
	w.emitter.Off(logstream.EventData, w.dataID)
	w.emitter.Off(logstream.EventError, w.errID)
	w.emitter = nil
}

// Lines returns the number of lines written so far.
func (w *Writer) Lines() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

// Errors returns the number of errors reported so far.
func (w *Writer) Errors() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errs
}

func (w *Writer) writeData(chunk string) {
	if chunk == "" {
		return
	}
	if w.search != nil {
		chunk = w.search.ReplaceAllStringFunc(chunk, func(m string) string {
			return w.highlight.Sprint(m)
		})
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines += strings.Count(chunk, "\n")
	_, _ = io.WriteString(w.out, chunk)
}

func (w *Writer) writeError(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errs++
	_, _ = fmt.Fprintln(w.errOut, w.errColor.Sprintf("error: %v", err))
}
