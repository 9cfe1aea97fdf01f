package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Emit(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(ctx context.Context, _ Event) error {
	<-s.release
	return nil
}

type panicSink struct{}

func (panicSink) Emit(context.Context, Event) error { panic("boom") }

func TestDispatcherDeliversAndFillsDefaults(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 8, zap.NewNop())

	d.Record(Event{Layer: LayerEdge, Path: "/admin", Reason: "no_session"})
	d.Record(Event{ID: "fixed", Layer: LayerPage, Path: "/admin/users", Allowed: true, Reason: "ok"})
	d.Close()

	events := sink.Events()
	require.Len(t, events, 2)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Time.IsZero())
	assert.Equal(t, "fixed", events[1].ID)
	assert.Equal(t, uint64(0), d.Dropped())
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(sink, 1, zap.NewNop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			d.Record(Event{Path: "/admin"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a stuck sink")
	}
	assert.Positive(t, d.Dropped())

	close(sink.release)
	d.Close()
}

func TestDispatcherSurvivesSinkFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	good := &recordingSink{}
	failing := &recordingSink{err: errors.New("db down")}
	d := NewDispatcher(MultiSink{panicSink{}, failing, good}, 4, zap.New(core))

	d.Record(Event{Path: "/admin"})
	d.Record(Event{Path: "/admin/users"})
	d.Close()

	assert.Equal(t, 2, logs.FilterMessage("audit sink panicked").Len())
	assert.Empty(t, good.Events(), "panic in the first sink aborts that fan-out")

	d2 := NewDispatcher(MultiSink{failing, good}, 4, zap.New(core))
	d2.Record(Event{Path: "/admin"})
	d2.Close()
	assert.Len(t, good.Events(), 1)
	assert.Equal(t, 1, logs.FilterMessage("audit sink failed").Len())
}

func TestDispatcherIgnoresRecordAfterClose(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 4, zap.NewNop())
	d.Close()
	d.Close()

	d.Record(Event{Path: "/admin"})
	assert.Empty(t, sink.Events())

	var nilDispatcher *Dispatcher
	nilDispatcher.Record(Event{})
	nilDispatcher.Close()
	assert.Zero(t, nilDispatcher.Dropped())
}

func TestZapSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewZapSink(zap.New(core))

	require.NoError(t, sink.Emit(context.Background(), Event{ID: "e1", Layer: LayerEdge, Path: "/admin", Reason: "no_session"}))

	entries := logs.FilterMessage("authorization decision").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/admin", entries[0].ContextMap()["path"])
	assert.Equal(t, "no_session", entries[0].ContextMap()["reason"])
}
