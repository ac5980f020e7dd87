package model

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestLogsQueryValues(t *testing.T) {
	tests := []struct {
		name string
		q    LogsQuery
		want string
	}{
		{
			name: "tail request ignores cursor fields",
			q:    LogsQuery{ComponentType: "router", TailLines: "1000", HeadLines: 500, SinceTime: "T1"},
			want: "component_type=router&tail_lines=1000",
		},
		{
			name: "incremental request",
			q:    LogsQuery{ComponentType: "enricher", HeadLines: 500, SinceTime: "2024-01-02T03:04:05Z"},
			want: "component_type=enricher&head_lines=500&since_time=2024-01-02T03%3A04%3A05Z",
		},
		{
			name: "from start",
			q:    LogsQuery{ComponentType: "driver", HeadLines: 500},
			want: "component_type=driver&head_lines=500",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Values().Encode(); got != tt.want {
				t.Errorf("Values() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLogsQuery(t *testing.T) {
	v, _ := url.ParseQuery("component_type=router&head_lines=abc&since_time=T9")
	q := ParseLogsQuery(v)
	if q.ComponentType != "router" || q.HeadLines != 0 || q.SinceTime != "T9" {
		t.Fatalf("ParseLogsQuery = %+v", q)
	}

	in := LogsQuery{ComponentType: "executor", HeadLines: 20, SinceTime: "T1"}
	if got := ParseLogsQuery(in.Values()); got != in {
		t.Fatalf("ParseLogsQuery(Values()) = %+v, want %+v", got, in)
	}
}

func TestResource(t *testing.T) {
	if _, err := ParseResource("ensemblers"); !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("ParseResource error = %v, want ErrUnknownResource", err)
	}
	r, err := ParseResource("jobs")
	if err != nil {
		t.Fatalf("ParseResource: %v", err)
	}
	if !r.HasComponent("executor") || r.HasComponent("router") {
		t.Errorf("unexpected component set %v", r.Components())
	}
	if r.DefaultPollInterval() != 7*time.Second {
		t.Errorf("jobs interval = %v", r.DefaultPollInterval())
	}
	if ResourceRouters.DefaultComponent() != "router" {
		t.Errorf("routers default component = %q", ResourceRouters.DefaultComponent())
	}

	cs := ResourceRouters.Components()
	cs[0] = "mutated"
	if ResourceRouters.DefaultComponent() != "router" {
		t.Errorf("Components must return a copy")
	}
}

func TestLogsPath(t *testing.T) {
	p := LogsPath{ProjectID: "1", Resource: ResourceRouters, ResourceID: "my router"}
	if got, want := p.String(), "/projects/1/routers/my%20router/logs"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestRequestID(t *testing.T) {
	if _, ok := RequestID(context.Background()); ok {
		t.Fatalf("empty context reported a request id")
	}
	ctx := WithRequestID(context.Background(), "abc")
	if id, ok := RequestID(ctx); !ok || id != "abc" {
		t.Errorf("RequestID = %q, %v", id, ok)
	}
	if _, ok := RequestID(WithRequestID(context.Background(), "")); ok {
		t.Errorf("empty id should be reported as missing")
	}
}
