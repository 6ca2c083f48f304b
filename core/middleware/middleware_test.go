package middleware_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/miladsoleymani/topicmux/core"
	"github.com/miladsoleymani/topicmux/core/middleware"
	"github.com/miladsoleymani/topicmux/internal/mock"
)

func newContext() core.Context {
	msg := &mock.Message{D: "/topic/batch/42", B: []byte(`{}`)}
	info := core.SubscriptionInfo{ID: "sub-1", Destination: "/topic/batch/42", Kind: core.ChannelBatch}
	return core.NewContext(context.Background(), msg, info, map[string]any{}, core.JSONBinder{}, nil)
}

func TestLogging(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)

	handler := middleware.Logging(zap.New(obs))(func(core.Context) error {
		return nil
	})

	if err := handler(newContext()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := logs.FilterMessage("message handled").All()
	if len(entries) != 1 {
		t.Fatalf("expected one debug entry, got: %v", logs.All())
	}
	if got := entries[0].ContextMap()["destination"]; got != "/topic/batch/42" {
		t.Errorf("expected destination in log, got: %v", got)
	}
}

func TestLogging_Error(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)

	handler := middleware.Logging(zap.New(obs))(func(core.Context) error {
		return errors.New("boom")
	})
	_ = handler(newContext())

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	if len(entries) != 1 {
		t.Fatalf("expected ERROR log, got: %v", logs.All())
	}
	if got := entries[0].ContextMap()["error"]; got != "boom" {
		t.Errorf("unexpected error field: %v", got)
	}
}

func TestRecovery(t *testing.T) {
	obs, logs := observer.New(zapcore.ErrorLevel)

	handler := middleware.Recovery(zap.New(obs))(func(core.Context) error {
		panic("test panic")
	})

	err := handler(newContext())
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	if !strings.Contains(err.Error(), "panic recovered") {
		t.Errorf("unexpected error: %v", err)
	}
	if logs.Len() != 1 {
		t.Errorf("expected one log entry, got %d", logs.Len())
	}
}

func TestRecovery_NoPanic(t *testing.T) {
	handler := middleware.Recovery(nil)(func(core.Context) error {
		return nil
	})

	if err := handler(newContext()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type recordingCollector struct {
	mu      sync.Mutex
	samples []middleware.Sample
}

func (r *recordingCollector) Observe(s middleware.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

func TestMetrics(t *testing.T) {
	rc := &recordingCollector{}
	ok := middleware.Metrics(rc)(func(core.Context) error { return nil })
	fail := middleware.Metrics(rc)(func(core.Context) error { return errors.New("x") })

	_ = ok(newContext())
	_ = fail(newContext())

	if len(rc.samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(rc.samples))
	}
	first, second := rc.samples[0], rc.samples[1]
	if first.Kind != core.ChannelBatch || first.SubscriptionID != "sub-1" || first.Err != nil {
		t.Errorf("unexpected first sample: %+v", first)
	}
	if second.Destination != "/topic/batch/42" || second.Err == nil {
		t.Errorf("unexpected second sample: %+v", second)
	}
}

func TestCounters(t *testing.T) {
	c := middleware.NewCounters()
	c.Observe(middleware.Sample{Kind: core.ChannelRun, Destination: "/topic/run/1", Duration: 2 * time.Millisecond})
	c.Observe(middleware.Sample{Kind: core.ChannelRun, Destination: "/topic/run/1", Duration: 5 * time.Millisecond, Err: errors.New("boom")})
	c.Observe(middleware.Sample{Kind: core.ChannelGlobal, Destination: "/topic/global", Duration: time.Millisecond})

	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("got %d destinations, want 2", len(snap))
	}
	if snap[0].Destination != "/topic/global" || snap[0].Messages != 1 {
		t.Errorf("unexpected global stats: %+v", snap[0])
	}
	run := snap[1]
	if run.Kind != core.ChannelRun || run.Messages != 2 || run.Failures != 1 {
		t.Errorf("unexpected run stats: %+v", run)
	}
	if run.Total != 7*time.Millisecond || run.Max != 5*time.Millisecond {
		t.Errorf("unexpected run timings: total=%v max=%v", run.Total, run.Max)
	}
}
