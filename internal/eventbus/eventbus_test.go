package eventbus

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/sks-levelbuilder/internal/logging"
)

func mustEnvelope(t *testing.T, eventType, session string, payload interface{}) *Envelope {
	t.Helper()
	ev, err := NewEnvelope("test", eventType, session, payload)
	require.NoError(t, err)
	return ev
}

func receive(t *testing.T, ch <-chan *Envelope) *Envelope {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
		return nil
	}
}

func TestNewEnvelopePayload(t *testing.T) {
	ev := mustEnvelope(t, EventBlockPlaced, "s1", BlockPlaced{Index: 33, X: 1, Y: 1, Block: "a1"})

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, EventBlockPlaced, ev.EventType)
	assert.Equal(t, "s1", ev.SessionID)

	var p BlockPlaced
	require.NoError(t, ev.Decode(&p))
	assert.Equal(t, BlockPlaced{Index: 33, X: 1, Y: 1, Block: "a1"}, p)

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	var back Envelope
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ev.ID, back.ID)
	assert.JSONEq(t, string(ev.Payload), string(back.Payload))
}

func TestMemoryBusDeliversByFilter(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()
	ctx := context.Background()

	all := make(chan *Envelope, 4)
	saved := make(chan *Envelope, 4)
	_, err := bus.Subscribe(ctx, Filter{}, func(ctx context.Context, ev *Envelope) { all <- ev })
	require.NoError(t, err)
	_, err = bus.Subscribe(ctx, Filter{Types: []string{EventLevelSaved}, Sessions: []string{"s2"}},
		func(ctx context.Context, ev *Envelope) { saved <- ev })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, mustEnvelope(t, EventLevelSaved, "s1", LevelStored{Name: "a"})))
	require.NoError(t, bus.Publish(ctx, mustEnvelope(t, EventLevelSaved, "s2", LevelStored{Name: "b"})))

	receive(t, all)
	receive(t, all)

	ev := receive(t, saved)
	var p LevelStored
	require.NoError(t, ev.Decode(&p))
	assert.Equal(t, "b", p.Name)

	select {
	case extra := <-saved:
		t.Fatalf("unexpected event for session %s", extra.SessionID)
	case <-time.After(50 * time.Millisecond):
	}

	assert.Eventually(t, func() bool { return bus.Metrics().Consumed == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(2), bus.Metrics().Published)
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()
	ctx := context.Background()

	got := make(chan *Envelope, 4)
	sub, err := bus.Subscribe(ctx, Filter{}, func(ctx context.Context, ev *Envelope) { got <- ev })
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(ctx, mustEnvelope(t, EventSessionOpened, "s", nil)))
	require.NoError(t, bus.Close())

	assert.Empty(t, got)
	assert.Error(t, bus.Publish(ctx, mustEnvelope(t, EventSessionClosed, "s", nil)))
}

func TestMemoryBusBackpressure(t *testing.T) {
	// Шина без dispatchLoop: буфер не разгружается
	mb := &memoryBus{
		subscribers: make(map[int]subscriber),
		buffer:      make(chan *Envelope, 1),
		done:        make(chan struct{}),
	}
	ctx := context.Background()

	require.NoError(t, mb.Publish(ctx, mustEnvelope(t, EventBlockPlaced, "s", nil)))
	require.NoError(t, mb.Publish(ctx, mustEnvelope(t, EventBlockPlaced, "s", nil)))

	stats := mb.Metrics()
	assert.Equal(t, uint64(1), stats.Published)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, 1, stats.InFlight)

	high := mustEnvelope(t, EventLevelSaved, "s", nil)
	high.Priority = 9
	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, mb.Publish(cctx, high), context.DeadlineExceeded)
}

func TestMetricsExporterCollect(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()
	ctx := context.Background()

	_, err := bus.Subscribe(ctx, Filter{}, func(ctx context.Context, ev *Envelope) {})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	me := NewMetricsExporter(bus, reg)

	require.NoError(t, bus.Publish(ctx, mustEnvelope(t, EventLevelImported, "s", LevelImported{Format: "bin", Blocks: 3})))
	assert.Eventually(t, func() bool { return bus.Metrics().Consumed == 1 }, time.Second, 10*time.Millisecond)

	me.collect()
	assert.Equal(t, 1.0, testutil.ToFloat64(me.published))
	assert.Equal(t, 1.0, testutil.ToFloat64(me.consumed))
	assert.Equal(t, 0.0, testutil.ToFloat64(me.dropped))

	// Повторный сбор не удваивает счётчики
	me.collect()
	assert.Equal(t, 1.0, testutil.ToFloat64(me.published))

	me.Start(time.Hour)
	me.Stop()
}

func TestLoggingListener(t *testing.T) {
	bus := NewMemoryBus(4)
	defer bus.Close()

	sub, err := StartLoggingListener(bus, logging.GetComponentLogger("eventbus-test"))
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), mustEnvelope(t, EventSessionOpened, "s", nil)))
	assert.Eventually(t, func() bool { return bus.Metrics().Consumed == 1 }, time.Second, 10*time.Millisecond)
}

func TestSubjectFor(t *testing.T) {
	assert.Equal(t, "levelbuilder.events.level.saved", subjectFor(EventLevelSaved))
}

// Интеграционный тест: LEVELBUILDER_TEST_NATS=nats://127.0.0.1:4222 (с JetStream)
func TestJetStreamBusRoundTrip(t *testing.T) {
	url := os.Getenv("LEVELBUILDER_TEST_NATS")
	if url == "" {
		t.Skip("LEVELBUILDER_TEST_NATS not set")
	}

	bus, err := NewJetStreamBus(url, "LEVELBUILDER_TEST", time.Minute)
	require.NoError(t, err)
	defer bus.Close()

	got := make(chan *Envelope, 1)
	sub, err := bus.Subscribe(context.Background(), Filter{Types: []string{EventLevelSaved}},
		func(ctx context.Context, ev *Envelope) { got <- ev })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	ev := mustEnvelope(t, EventLevelSaved, "s", LevelStored{Name: "js"})
	require.NoError(t, bus.Publish(context.Background(), ev))

	assert.Equal(t, ev.ID, receive(t, got).ID)
}
