package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/annel0/sks-levelbuilder/internal/builder"
	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound сессия не существует или истекла
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions достигнут лимит одновременных сессий
	ErrTooManySessions = errors.New("too many sessions")
)

// Session сессия редактора: один LevelBuilder на клиента
type Session struct {
	ID      string
	Builder *builder.LevelBuilder
	Created time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen время последнего обращения
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionManager хранит сессии по UUID и удаляет простаивающие
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     builder.Options
	ttl      time.Duration
	max      int

	now func() time.Time
}

// NewSessionManager ttl <= 0: сессии не истекают, max <= 0: без лимита
func NewSessionManager(opts builder.Options, ttl time.Duration, max int) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		opts:     opts,
		ttl:      ttl,
		max:      max,
		now:      time.Now,
	}
}

// Create открывает новую сессию с пустым уровнем
func (sm *SessionManager) Create() (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.max > 0 && len(sm.sessions) >= sm.max {
		return nil, ErrTooManySessions
	}

	now := sm.now()
	s := &Session{
		ID:       uuid.NewString(),
		Builder:  builder.New(sm.opts),
		Created:  now,
		lastSeen: now,
	}
	sm.sessions[s.ID] = s
	return s, nil
}

// Get возвращает сессию и продлевает её
func (sm *SessionManager) Get(id string) (*Session, error) {
	sm.mu.RLock()
	s, ok := sm.sessions[id]
	sm.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	now := sm.now()
	if sm.expired(s, now) {
		sm.Close(id)
		return nil, ErrSessionNotFound
	}
	s.touch(now)
	return s, nil
}

// Close удаляет сессию; false, если её не было
func (sm *SessionManager) Close(id string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.sessions[id]; !ok {
		return false
	}
	delete(sm.sessions, id)
	return true
}

// Count количество открытых сессий
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// IDs отсортированные идентификаторы сессий
func (sm *SessionManager) IDs() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	ids := make([]string, 0, len(sm.sessions))
	for id := range sm.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (sm *SessionManager) expired(s *Session, now time.Time) bool {
	return sm.ttl > 0 && now.Sub(s.LastSeen()) > sm.ttl
}

// Sweep удаляет истёкшие сессии и возвращает их идентификаторы
func (sm *SessionManager) Sweep() []string {
	now := sm.now()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	var removed []string
	for id, s := range sm.sessions {
		if sm.expired(s, now) {
			delete(sm.sessions, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// StartJanitor периодически вызывает Sweep до отмены ctx.
// onExpired вызывается для каждой удалённой сессии (может быть nil).
func (sm *SessionManager) StartJanitor(ctx context.Context, interval time.Duration, onExpired func(id string)) {
	if sm.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				for _, id := range sm.Sweep() {
					if onExpired != nil {
						onExpired(id)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
