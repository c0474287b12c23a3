package cart

import (
	"log/slog"
	"sync"
	"time"
)

// Manager hands out one Store per storefront session. Idle stores are evicted;
// the durable state lives in the cache and remote mirrors and reloads on the
// next request.
type Manager struct {
	mu     sync.Mutex
	local  Cache
	remote Remote
	log    *slog.Logger
	stores map[string]*managedStore
}

type managedStore struct {
	store    *Store
	lastSeen time.Time
}

func NewManager(local Cache, remote Remote, log *slog.Logger) *Manager {
	return &Manager{
		local:  local,
		remote: remote,
		log:    log,
		stores: make(map[string]*managedStore),
	}
}

func (m *Manager) Store(sessionKey string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.stores[sessionKey]; ok {
		e.lastSeen = time.Now()
		return e.store
	}
	s := NewStore(m.local, m.remote, sessionKey, m.log)
	m.stores[sessionKey] = &managedStore{store: s, lastSeen: time.Now()}
	return s
}

func (m *Manager) Drop(sessionKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, sessionKey)
}

// EvictIdle drops every store that has not been handed out for longer than
// maxIdle and reports how many went.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	evicted := 0
	for key, e := range m.stores {
		if e.lastSeen.Before(cutoff) {
			delete(m.stores, key)
			evicted++
		}
	}
	return evicted
}
