package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupeSetWindow(t *testing.T) {
	d := newDedupeSet(time.Second)
	now := time.Unix(100, 0)

	assert.True(t, d.add("level:a", now))
	assert.False(t, d.add("level:a", now.Add(500*time.Millisecond)))
	assert.True(t, d.add("level:b", now))
	assert.True(t, d.add("level:a", now.Add(1500*time.Millisecond)))

	d.cleanup(now.Add(2 * time.Second))
	assert.Equal(t, 1, d.len())
	d.cleanup(now.Add(3 * time.Second))
	assert.Equal(t, 0, d.len())
}

func TestInvalidationMessageCodec(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := encodeInvalidation("level:intro", "node-1", ts)
	require.NoError(t, err)

	msg, err := decodeInvalidation(data)
	require.NoError(t, err)
	assert.Equal(t, "level:intro", msg.Key)
	assert.Equal(t, "node-1", msg.NodeID)
	assert.True(t, ts.Equal(msg.Timestamp))

	_, err = decodeInvalidation([]byte(`{"node_id":"x"}`))
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = decodeInvalidation([]byte("not json"))
	assert.Error(t, err)
}

// Интеграционный тест: LEVELBUILDER_TEST_NATS=nats://127.0.0.1:4222
func TestNATSInvalidatorBetweenNodes(t *testing.T) {
	url := os.Getenv("LEVELBUILDER_TEST_NATS")
	if url == "" {
		t.Skip("LEVELBUILDER_TEST_NATS not set")
	}

	cfg := InvalidatorConfig{NATSURL: url, Subject: "levelbuilder.test.invalidate"}
	a, err := NewNATSInvalidator(cfg, "node-a")
	require.NoError(t, err)
	defer a.Close()
	b, err := NewNATSInvalidator(cfg, "node-b")
	require.NoError(t, err)
	defer b.Close()

	got := make(chan string, 4)
	require.NoError(t, b.SubscribeInvalidations(context.Background(), func(key string) error {
		got <- key
		return nil
	}))
	require.NoError(t, a.conn.Flush())
	require.NoError(t, b.conn.Flush())

	require.NoError(t, a.PublishInvalidation(context.Background(), "level:shared"))

	select {
	case key := <-got:
		assert.Equal(t, "level:shared", key)
	case <-time.After(3 * time.Second):
		t.Fatal("invalidation not received")
	}
}
