package logstream

import (
	"errors"
	"fmt"
	"strings"

	"turing-log-tail/internal/model"
)

var (
	// ErrUnknownComponent is returned when a component is not part of the stream's resource.
	ErrUnknownComponent = errors.New("unknown component type")
	// ErrInvalidTailLines is returned for tail-line selections other than 100, 1000 or from start.
	ErrInvalidTailLines = errors.New("invalid tail lines")
)

// TailLines selects where a new stream starts.
type TailLines string

const (
	// TailFromStart requests the full history, batch by batch.
	TailFromStart TailLines = ""
	TailLast100   TailLines = "100"
	TailLast1000  TailLines = "1000"
)

// ParseTailLines accepts "100", "1000", and "", "all" or "start" for from-start.
func ParseTailLines(s string) (TailLines, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "start":
		return TailFromStart, nil
	case "100":
		return TailLast100, nil
	case "1000":
		return TailLast1000, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTailLines, s)
	}
}

func (t TailLines) String() string {
	if t == TailFromStart {
		return "start"
	}
	return string(t)
}

// Query is the parameter set for the next poll request.
type Query struct {
	ComponentType string
	TailLines     TailLines
	// HeadLines is the batch size used once the stream tails from a cursor
	// or from the start. Zero until resolved.
	HeadLines int
	// SinceTime is the timestamp of the last entry already delivered.
	SinceTime string
}

// QueryUpdate is a partial filter change. Nil fields are left untouched.
type QueryUpdate struct {
	ComponentType *string
	TailLines     *TailLines
}

// Component returns an update changing only the component type.
func Component(c string) QueryUpdate { return QueryUpdate{ComponentType: &c} }

// Tail returns an update changing only the tail-line selection.
func Tail(t TailLines) QueryUpdate { return QueryUpdate{TailLines: &t} }

// request resolves the wire parameters for the next poll.
func (q Query) request(batchSize int) model.LogsQuery {
	r := model.LogsQuery{ComponentType: q.ComponentType}
	switch {
	case q.SinceTime != "":
		r.SinceTime = q.SinceTime
		r.HeadLines = q.HeadLines
		if r.HeadLines <= 0 {
			r.HeadLines = batchSize
		}
	case q.TailLines != TailFromStart:
		r.TailLines = string(q.TailLines)
	default:
		r.HeadLines = batchSize
	}
	return r
}

// advance moves the cursor to the last timestamped entry of a batch. It
// reports false when the batch carries no usable timestamp.
func (q *Query) advance(entries []LogEntry, batchSize int) bool {
	for i := len(entries) - 1; i >= 0; i-- {
		if ts := entries[i].Timestamp; ts != "" {
			q.SinceTime = ts
			q.HeadLines = batchSize
			return true
		}
	}
	return false
}

// apply merges u into q. A change of component without an explicit tail
// selection restarts from defaultTail. It reports whether the filter changed,
// in which case the cursor has been cleared.
func (q *Query) apply(u QueryUpdate, defaultTail TailLines) bool {
	next := *q
	if u.ComponentType != nil && *u.ComponentType != q.ComponentType {
		next.ComponentType = *u.ComponentType
		if u.TailLines == nil {
			next.TailLines = defaultTail
		}
	}
	if u.TailLines != nil {
		next.TailLines = *u.TailLines
	}
	if next.ComponentType == q.ComponentType && next.TailLines == q.TailLines {
		return false
	}
	next.SinceTime = ""
	next.HeadLines = 0
	*q = next
	return true
}

// normalize validates u against resource and canonicalizes the tail selection.
func (u QueryUpdate) normalize(resource model.Resource) (QueryUpdate, error) {
	if u.ComponentType != nil && resource != "" && !resource.HasComponent(*u.ComponentType) {
		return u, fmt.Errorf("%w: %q (want one of %v)", ErrUnknownComponent, *u.ComponentType, resource.Components())
	}
	if u.TailLines != nil {
		t, err := ParseTailLines(string(*u.TailLines))
		if err != nil {
			return u, err
		}
		u.TailLines = &t
	}
	return u, nil
}
