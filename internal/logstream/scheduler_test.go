package logstream

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"turing-log-tail/internal/model"
)

func TestSchedulerUsesCurrentParams(t *testing.T) {
	f := &fakeFetcher{}
	s := NewScheduler(f, testInterval)

	var mu sync.Mutex
	component := "router"
	params := func() (model.LogsQuery, uint64) {
		mu.Lock()
		defer mu.Unlock()
		return model.LogsQuery{ComponentType: component}, 0
	}

	s.Start(params, func(*Cycle, []json.RawMessage, error) {})
	waitFor(t, "first poll", func() bool { return len(f.calls()) >= 1 })

	mu.Lock()
	component = "enricher"
	mu.Unlock()

	waitFor(t, "updated params", func() bool {
		calls := f.calls()
		return calls[len(calls)-1].ComponentType == "enricher"
	})
	s.Stop()
	s.Wait()

	if f.calls()[0].ComponentType != "router" {
		t.Errorf("first call = %+v", f.calls()[0])
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := NewScheduler(&fakeFetcher{}, testInterval)
	s.Stop()
	if s.Running() {
		t.Fatalf("Running() = true before Start")
	}

	s.Start(func() (model.LogsQuery, uint64) { return model.LogsQuery{}, 0 }, func(*Cycle, []json.RawMessage, error) {})
	if !s.Running() {
		t.Fatalf("Running() = false after Start")
	}
	s.Stop()
	s.Stop()
	s.Wait()
	if s.Running() {
		t.Fatalf("Running() = true after Stop")
	}
}

func TestSchedulerStartReplacesLoop(t *testing.T) {
	var mu sync.Mutex
	var ctxs []context.Context
	f := FetcherFunc(func(ctx context.Context, q model.LogsQuery) ([]json.RawMessage, error) {
		mu.Lock()
		ctxs = append(ctxs, ctx)
		mu.Unlock()
		if q.ComponentType == "first" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, nil
	})
	s := NewScheduler(f, testInterval)

	var firstResults, secondResults atomic.Int32
	s.Start(func() (model.LogsQuery, uint64) { return model.LogsQuery{ComponentType: "first"}, 0 },
		func(*Cycle, []json.RawMessage, error) { firstResults.Add(1) })
	waitFor(t, "first fetch", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ctxs) == 1
	})

	s.Start(func() (model.LogsQuery, uint64) { return model.LogsQuery{ComponentType: "second"}, 0 },
		func(*Cycle, []json.RawMessage, error) { secondResults.Add(1) })
	waitFor(t, "second loop", func() bool { return secondResults.Load() >= 2 })
	s.Stop()
	s.Wait()

	mu.Lock()
	first := ctxs[0]
	mu.Unlock()
	if first.Err() == nil {
		t.Fatalf("replaced loop's request was not canceled")
	}
	if n := firstResults.Load(); n != 0 {
		t.Fatalf("replaced loop delivered %d results", n)
	}
}

func TestSchedulerDropsCanceledCycle(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := FetcherFunc(func(context.Context, model.LogsQuery) ([]json.RawMessage, error) {
		close(started)
		<-release
		return raws(`{}`), nil
	})
	s := NewScheduler(f, time.Hour)

	var delivered atomic.Bool
	s.Start(func() (model.LogsQuery, uint64) { return model.LogsQuery{}, 0 }, func(*Cycle, []json.RawMessage, error) {
		delivered.Store(true)
	})
	<-started
	s.Stop()
	close(release)
	s.Wait()

	if delivered.Load() {
		t.Fatalf("result of a canceled cycle was delivered")
	}
}

func TestSchedulerSendsCycleIDAsRequestID(t *testing.T) {
	var mu sync.Mutex
	var requestIDs []string
	f := FetcherFunc(func(ctx context.Context, _ model.LogsQuery) ([]json.RawMessage, error) {
		id, _ := model.RequestID(ctx)
		mu.Lock()
		requestIDs = append(requestIDs, id)
		mu.Unlock()
		return nil, nil
	})
	s := NewScheduler(f, testInterval)

	var cycleIDs []string
	s.Start(func() (model.LogsQuery, uint64) { return model.LogsQuery{}, 0 }, func(c *Cycle, _ []json.RawMessage, _ error) {
		mu.Lock()
		cycleIDs = append(cycleIDs, c.ID.String())
		mu.Unlock()
	})
	waitFor(t, "two cycles", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(cycleIDs) >= 2
	})
	s.Stop()
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, id := range cycleIDs {
		if requestIDs[i] != id {
			t.Errorf("cycle %d request id = %q, want %q", i, requestIDs[i], id)
		}
	}
	if cycleIDs[0] == cycleIDs[1] {
		t.Errorf("cycles share id %q", cycleIDs[0])
	}
}
