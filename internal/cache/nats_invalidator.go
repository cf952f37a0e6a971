package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/sks-levelbuilder/internal/logging"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NATSInvalidator рассылает инвалидации кеша уровней между узлами через
// NATS Pub/Sub. Собственные сообщения узла и повторы в окне дедупликации
// игнорируются.
type NATSInvalidator struct {
	conn   *nats.Conn
	config InvalidatorConfig
	nodeID string

	subMu        sync.Mutex
	subscription *nats.Subscription
	handler      InvalidationHandler

	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	published *dedupeSet

	publishedCount int64
	receivedCount  int64
	errorsCount    int64
}

// InvalidatorConfig конфигурация NATS invalidator.
type InvalidatorConfig struct {
	NATSURL       string        `yaml:"nats_url"`
	Subject       string        `yaml:"subject"`
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
	DedupeWindow  time.Duration `yaml:"dedupe_window"`
}

func (c InvalidatorConfig) withDefaults() InvalidatorConfig {
	if c.NATSURL == "" {
		c.NATSURL = nats.DefaultURL
	}
	if c.Subject == "" {
		c.Subject = "levelbuilder.cache.invalidate"
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 10
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.DedupeWindow == 0 {
		c.DedupeWindow = time.Second
	}
	return c
}

// InvalidationMessage сообщение об инвалидации ключа уровня.
type InvalidationMessage struct {
	Key       string    `json:"key"`
	NodeID    string    `json:"node_id"`
	Timestamp time.Time `json:"timestamp"`
}

func encodeInvalidation(key, nodeID string, now time.Time) ([]byte, error) {
	return json.Marshal(&InvalidationMessage{Key: key, NodeID: nodeID, Timestamp: now})
}

func decodeInvalidation(data []byte) (*InvalidationMessage, error) {
	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Key == "" {
		return nil, ErrInvalidKey
	}
	return &msg, nil
}

// NewNATSInvalidator подключается к NATS. Пустой nodeID заменяется на UUID.
func NewNATSInvalidator(config InvalidatorConfig, nodeID string) (*NATSInvalidator, error) {
	config = config.withDefaults()
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	conn, err := nats.Connect(config.NATSURL,
		nats.Name("levelbuilder-"+nodeID),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	n := &NATSInvalidator{
		conn:      conn,
		config:    config,
		nodeID:    nodeID,
		stopCh:    make(chan struct{}),
		published: newDedupeSet(config.DedupeWindow),
	}
	n.startDedupeCleanup()

	logging.Info("NATS invalidator initialized: %s (subject: %s, node: %s)", config.NATSURL, config.Subject, nodeID)
	return n, nil
}

// NodeID идентификатор узла
func (n *NATSInvalidator) NodeID() string { return n.nodeID }

// PublishInvalidation публикует инвалидацию ключа
func (n *NATSInvalidator) PublishInvalidation(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !n.published.add(key, time.Now()) {
		logging.Debug("Skipping duplicate invalidation for key: %s", key)
		return nil
	}

	data, err := encodeInvalidation(key, n.nodeID, time.Now())
	if err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return fmt.Errorf("failed to marshal invalidation message: %w", err)
	}

	if err := n.conn.Publish(n.config.Subject, data); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	atomic.AddInt64(&n.publishedCount, 1)
	return nil
}

// SubscribeInvalidations подписывается на инвалидации других узлов.
// Подписка снимается при отмене ctx или Close.
func (n *NATSInvalidator) SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error {
	n.subMu.Lock()
	defer n.subMu.Unlock()

	if n.subscription != nil {
		return fmt.Errorf("already subscribed to invalidations")
	}

	n.handler = handler
	sub, err := n.conn.Subscribe(n.config.Subject, n.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to invalidations: %w", err)
	}
	n.subscription = sub

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		select {
		case <-ctx.Done():
		case <-n.stopCh:
		}
		n.unsubscribe()
	}()

	logging.Info("Subscribed to level cache invalidations on %s", n.config.Subject)
	return nil
}

func (n *NATSInvalidator) handleMessage(msg *nats.Msg) {
	atomic.AddInt64(&n.receivedCount, 1)

	inv, err := decodeInvalidation(msg.Data)
	if err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		logging.Error("Failed to decode invalidation message: %v", err)
		return
	}
	if inv.NodeID == n.nodeID {
		return
	}

	if n.handler != nil {
		if err := n.handler(inv.Key); err != nil {
			atomic.AddInt64(&n.errorsCount, 1)
			logging.Error("Invalidation handler failed for key %s: %v", inv.Key, err)
		}
	}
}

func (n *NATSInvalidator) unsubscribe() {
	n.subMu.Lock()
	defer n.subMu.Unlock()

	if n.subscription == nil {
		return
	}
	if err := n.subscription.Unsubscribe(); err != nil {
		logging.Error("Failed to unsubscribe from invalidations: %v", err)
	}
	n.subscription = nil
}

// Close снимает подписку и закрывает соединение
func (n *NATSInvalidator) Close() error {
	n.stopOnce.Do(func() { close(n.stopCh) })
	n.wg.Wait()
	n.unsubscribe()

	n.conn.Close()
	logging.Info("NATS invalidator closed")
	return nil
}

// GetMetrics счётчики публикаций и получений
func (n *NATSInvalidator) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"published_count": atomic.LoadInt64(&n.publishedCount),
		"received_count":  atomic.LoadInt64(&n.receivedCount),
		"errors_count":    atomic.LoadInt64(&n.errorsCount),
		"connected":       n.conn.IsConnected(),
	}
}

func (n *NATSInvalidator) startDedupeCleanup() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ticker := time.NewTicker(n.config.DedupeWindow)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				n.published.cleanup(now)
			case <-n.stopCh:
				return
			}
		}
	}()
}

// dedupeSet ключи, опубликованные за последнее окно
type dedupeSet struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

func newDedupeSet(window time.Duration) *dedupeSet {
	return &dedupeSet{window: window, seen: make(map[string]time.Time)}
}

// add возвращает false, если ключ уже был в пределах окна
func (d *dedupeSet) add(key string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.seen[key]; ok && now.Sub(last) < d.window {
		return false
	}
	d.seen[key] = now
	return true
}

func (d *dedupeSet) cleanup(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, ts := range d.seen {
		if now.Sub(ts) >= d.window {
			delete(d.seen, key)
		}
	}
}

func (d *dedupeSet) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
