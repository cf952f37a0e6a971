package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Типы событий редактора
const (
	EventSessionOpened = "session.opened"
	EventSessionClosed = "session.closed"
	EventBlockPlaced   = "level.block_placed"
	EventLevelImported = "level.imported"
	EventLevelSaved    = "level.saved"
	EventLevelLoaded   = "level.loaded"
	EventLevelDeleted  = "level.deleted"
)

// Envelope контейнер события.
type Envelope struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
	EventType string            `json:"event_type"`
	SessionID string            `json:"session_id,omitempty"`
	Priority  int               `json:"priority"` // 0=Low … 9=Critical (для backpressure)
	Payload   json.RawMessage   `json:"payload,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// BlockPlaced полезная нагрузка EventBlockPlaced
type BlockPlaced struct {
	Index int    `json:"index"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Block string `json:"block"`
}

// LevelImported полезная нагрузка EventLevelImported
type LevelImported struct {
	Format string `json:"format"`
	Blocks int    `json:"blocks"`
}

// LevelStored полезная нагрузка EventLevelSaved / EventLevelLoaded / EventLevelDeleted
type LevelStored struct {
	Name string `json:"name"`
}

// NewEnvelope создаёт событие с новым UUID и JSON-нагрузкой
func NewEnvelope(source, eventType, sessionID string, payload interface{}) (*Envelope, error) {
	ev := &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		SessionID: sessionID,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		ev.Payload = data
	}
	return ev, nil
}

// Decode разбирает нагрузку события в v
func (ev *Envelope) Decode(v interface{}) error {
	return json.Unmarshal(ev.Payload, v)
}

// Filter позволяет подписаться только на нужные события.
type Filter struct {
	Types    []string // Если пусто: все типы.
	Sources  []string // Если пусто: все источники.
	Sessions []string // Если пусто: все сессии.
}

// Subscription возвращается при подписке; позволяет отписаться.
type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события.
type Handler func(ctx context.Context, ev *Envelope)

// Stats агрегированные метрики шины.
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// EventBus шина событий редактора.
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}

//================ In-Memory implementation =================//

type memoryBus struct {
	mu          sync.RWMutex
	subscribers map[int]subscriber
	nextID      int
	stats       Stats
	buffer      chan *Envelope
	closeMu     sync.RWMutex // отправка в buffer против его закрытия
	closed      bool
	done        chan struct{}
	handlers    sync.WaitGroup
}

type subscriber struct {
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewMemoryBus создаёт in-memory шину с указанным буфером.
func NewMemoryBus(capacity int) EventBus {
	if capacity <= 0 {
		capacity = 256
	}
	mb := &memoryBus{
		subscribers: make(map[int]subscriber),
		buffer:      make(chan *Envelope, capacity),
		done:        make(chan struct{}),
	}
	go mb.dispatchLoop()
	return mb
}

func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	mb.closeMu.RLock()
	defer mb.closeMu.RUnlock()
	if mb.closed {
		return fmt.Errorf("event bus closed")
	}

	select {
	case mb.buffer <- ev:
		mb.count(func(s *Stats) { s.Published++ })
		return nil
	default:
	}

	// Буфер заполнен: низкий приоритет (<5) отбрасываем
	if ev.Priority < 5 {
		mb.count(func(s *Stats) { s.Dropped++ })
		return nil
	}

	// Высокий приоритет ждёт места или отмены контекста
	select {
	case mb.buffer <- ev:
		mb.count(func(s *Stats) { s.Published++ })
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (mb *memoryBus) count(f func(s *Stats)) {
	mb.mu.Lock()
	f(&mb.stats)
	mb.mu.Unlock()
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	id := mb.nextID
	mb.nextID++
	cctx, cancel := context.WithCancel(ctx)
	mb.subscribers[id] = subscriber{filter: f, handler: h, ctx: cctx, cancel: cancel}

	return &memSub{bus: mb, id: id}, nil
}

func (mb *memoryBus) Metrics() Stats {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	s := mb.stats
	s.InFlight = len(mb.buffer)
	return s
}

// Close доставляет оставшиеся события и останавливает шину
func (mb *memoryBus) Close() error {
	mb.closeMu.Lock()
	if mb.closed {
		mb.closeMu.Unlock()
		return nil
	}
	mb.closed = true
	close(mb.buffer)
	mb.closeMu.Unlock()

	<-mb.done
	mb.handlers.Wait()
	return nil
}

// dispatchLoop рассылает события подписчикам.
func (mb *memoryBus) dispatchLoop() {
	defer close(mb.done)

	for ev := range mb.buffer {
		mb.mu.RLock()
		subs := make([]subscriber, 0, len(mb.subscribers))
		for _, sub := range mb.subscribers {
			if matchFilter(ev, sub.filter) {
				subs = append(subs, sub)
			}
		}
		mb.mu.RUnlock()

		for _, sub := range subs {
			mb.handlers.Add(1)
			go func(s subscriber) {
				defer mb.handlers.Done()
				if s.ctx.Err() != nil {
					return
				}
				s.handler(s.ctx, ev)
				mb.count(func(st *Stats) { st.Consumed++ })
			}(sub)
		}
	}
}

func matchFilter(ev *Envelope, f Filter) bool {
	match := func(val string, arr []string) bool {
		if len(arr) == 0 {
			return true
		}
		for _, v := range arr {
			if v == val {
				return true
			}
		}
		return false
	}
	return match(ev.EventType, f.Types) && match(ev.Source, f.Sources) && match(ev.SessionID, f.Sessions)
}

type memSub struct {
	bus *memoryBus
	id  int
}

func (s *memSub) Unsubscribe() {
	s.bus.mu.Lock()
	if sub, ok := s.bus.subscribers[s.id]; ok {
		sub.cancel()
		delete(s.bus.subscribers, s.id)
	}
	s.bus.mu.Unlock()
}
