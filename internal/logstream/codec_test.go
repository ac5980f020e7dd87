package logstream

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	c, _ := NewCodec()
	tests := []struct {
		name string
		raw  string
		want LogEntry
	}{
		{
			name: "text record",
			raw:  `{"timestamp":"2024-01-02T03:04:05Z","pod_name":"router-0","text_payload":"hello"}`,
			want: LogEntry{Timestamp: "2024-01-02T03:04:05Z", PodName: "router-0", TextPayload: "hello"},
		},
		{
			name: "json record",
			raw:  `{"timestamp":"T1","json_payload":{"b":1,"a":"x"}}`,
			want: LogEntry{Timestamp: "T1", JSONPayload: json.RawMessage(`{"b":1,"a":"x"}`)},
		},
		{
			name: "null json payload is absent",
			raw:  `{"timestamp":"T1","text_payload":"t","json_payload":null}`,
			want: LogEntry{Timestamp: "T1", TextPayload: "t"},
		},
		{
			name: "mistyped fields default",
			raw:  `{"timestamp":12,"pod_name":["x"],"text_payload":"ok"}`,
			want: LogEntry{TextPayload: "ok"},
		},
		{name: "not an object", raw: `"just a string"`, want: LogEntry{}},
		{name: "garbage", raw: `{`, want: LogEntry{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Decode(json.RawMessage(tt.raw))
			if got.Timestamp != tt.want.Timestamp || got.PodName != tt.want.PodName ||
				got.TextPayload != tt.want.TextPayload || string(got.JSONPayload) != string(tt.want.JSONPayload) {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	utc, _ := NewCodec(WithLocation(time.UTC))
	plus8, _ := NewCodec(WithLocation(time.FixedZone("SGT", 8*3600)))

	tests := []struct {
		name  string
		codec *Codec
		entry LogEntry
		want  string
	}{
		{
			name:  "utc text",
			codec: utc,
			entry: LogEntry{Timestamp: "2024-01-02T03:04:05.123456Z", TextPayload: "a"},
			want:  "2024-01-02T03:04:05.123+00:00 - a",
		},
		{
			name:  "converted to viewer zone",
			codec: plus8,
			entry: LogEntry{Timestamp: "2024-01-02T20:00:00Z", TextPayload: "b"},
			want:  "2024-01-03T04:00:00.000+08:00 - b",
		},
		{
			name:  "json payload wins and keeps key order",
			codec: utc,
			entry: LogEntry{Timestamp: "2024-01-02T03:04:05Z", TextPayload: "ignored", JSONPayload: json.RawMessage(`{ "z": 1, "a": [1, 2] }`)},
			want:  `2024-01-02T03:04:05.000+00:00 - {"z":1,"a":[1,2]}`,
		},
		{
			name:  "unparseable timestamp shown verbatim",
			codec: utc,
			entry: LogEntry{Timestamp: "yesterday", TextPayload: "c"},
			want:  "yesterday - c",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.codec.Render(tt.entry); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPayloadExpression(t *testing.T) {
	c, err := NewCodec(WithLocation(time.UTC), WithPayloadExpression("msg"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	e := LogEntry{Timestamp: "2024-01-02T03:04:05Z", JSONPayload: json.RawMessage(`{"msg":"served","latency":3}`)}
	if got, want := c.Render(e), "2024-01-02T03:04:05.000+00:00 - served"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}

	// A projection that matches nothing falls back to the full payload.
	e.JSONPayload = json.RawMessage(`{"other":1}`)
	if got := c.Render(e); !strings.HasSuffix(got, `- {"other":1}`) {
		t.Errorf("Render() = %q, want full payload", got)
	}

	if _, err := NewCodec(WithPayloadExpression("a[")); err == nil {
		t.Errorf("expected invalid expression to fail")
	}
}

func TestChunkTrailingNewline(t *testing.T) {
	c, _ := NewCodec(WithLocation(time.UTC))
	tests := []struct {
		name    string
		entries []LogEntry
		want    string
	}{
		{name: "empty", entries: nil, want: ""},
		{
			name:    "adds newline",
			entries: []LogEntry{{Timestamp: "2024-01-02T03:04:05Z", TextPayload: "a"}, {Timestamp: "2024-01-02T03:04:06Z", TextPayload: "b"}},
			want:    "2024-01-02T03:04:05.000+00:00 - a\n2024-01-02T03:04:06.000+00:00 - b\n",
		},
		{
			name:    "payload already terminated",
			entries: []LogEntry{{Timestamp: "2024-01-02T03:04:05Z", TextPayload: "a\n"}},
			want:    "2024-01-02T03:04:05.000+00:00 - a\n",
		},
		{
			name:    "several trailing newlines collapse",
			entries: []LogEntry{{Timestamp: "2024-01-02T03:04:05Z", TextPayload: "a\n\n\n"}},
			want:    "2024-01-02T03:04:05.000+00:00 - a\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Chunk(tt.entries); got != tt.want {
				t.Errorf("Chunk() = %q, want %q", got, tt.want)
			}
		})
	}
}
