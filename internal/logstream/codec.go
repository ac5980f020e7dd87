package logstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmespath/go-jmespath"
)

// renderLayout is ISO-8601 with milliseconds and a numeric offset.
const renderLayout = "2006-01-02T15:04:05.000-07:00"

// LogEntry is one normalized log record.
type LogEntry struct {
	Timestamp   string
	PodName     string
	TextPayload string
	// JSONPayload holds the raw structured payload. When present it takes
	// precedence over TextPayload.
	JSONPayload json.RawMessage
}

// Codec turns raw server records into entries and entries into display lines.
type Codec struct {
	location *time.Location
	expr     *jmespath.JMESPath
}

// CodecOption configures a Codec.
type CodecOption func(*Codec) error

// WithLocation renders timestamps in loc instead of the local timezone.
func WithLocation(loc *time.Location) CodecOption {
	return func(c *Codec) error {
		if loc != nil {
			c.location = loc
		}
		return nil
	}
}

// WithPayloadExpression projects JSON payloads through a JMESPath expression
// before rendering. An empty expression disables projection.
func WithPayloadExpression(expr string) CodecOption {
	return func(c *Codec) error {
		if strings.TrimSpace(expr) == "" {
			return nil
		}
		compiled, err := jmespath.Compile(expr)
		if err != nil {
			return fmt.Errorf("invalid payload expression %q: %w", expr, err)
		}
		c.expr = compiled
		return nil
	}
}

// NewCodec creates a Codec rendering in the local timezone.
func NewCodec(opts ...CodecOption) (*Codec, error) {
	c := &Codec{location: time.Local}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Decode maps a raw JSON record to a LogEntry. It never fails: missing or
// mistyped fields decode to their zero value.
func (c *Codec) Decode(raw json.RawMessage) LogEntry {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return LogEntry{}
	}

	entry := LogEntry{
		Timestamp:   stringField(fields["timestamp"]),
		PodName:     stringField(fields["pod_name"]),
		TextPayload: stringField(fields["text_payload"]),
	}
	if p := bytes.TrimSpace(fields["json_payload"]); len(p) > 0 && !bytes.Equal(p, []byte("null")) {
		entry.JSONPayload = json.RawMessage(p)
	}
	return entry
}

// DecodeBatch decodes every record, preserving order.
func (c *Codec) DecodeBatch(raws []json.RawMessage) []LogEntry {
	entries := make([]LogEntry, 0, len(raws))
	for _, raw := range raws {
		entries = append(entries, c.Decode(raw))
	}
	return entries
}

// Render produces "<local time> - <payload>".
func (c *Codec) Render(e LogEntry) string {
	return c.formatTimestamp(e.Timestamp) + " - " + c.payload(e)
}

// Chunk renders entries joined by newlines. The result ends with exactly one
// trailing newline; an empty input yields an empty string.
func (c *Codec) Chunk(entries []LogEntry) string {
	if len(entries) == 0 {
		return ""
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, c.Render(e))
	}
	return terminate(strings.Join(lines, "\n"))
}

func (c *Codec) formatTimestamp(ts string) string {
	if ts == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.In(c.location).Format(renderLayout)
}

func (c *Codec) payload(e LogEntry) string {
	if len(e.JSONPayload) == 0 {
		return e.TextPayload
	}

	if c.expr != nil {
		var data any
		if err := json.Unmarshal(e.JSONPayload, &data); err == nil {
			if res, err := c.expr.Search(data); err == nil && res != nil {
				if s, ok := res.(string); ok {
					return s
				}
				if b, err := json.Marshal(res); err == nil {
					return string(b)
				}
			}
		}
	}

	// Compact keeps the server's key order.
	var buf bytes.Buffer
	if err := json.Compact(&buf, e.JSONPayload); err != nil {
		return string(e.JSONPayload)
	}
	return buf.String()
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// terminate strips trailing newlines and appends exactly one.
func terminate(s string) string {
	return strings.TrimRight(s, "\n") + "\n"
}
