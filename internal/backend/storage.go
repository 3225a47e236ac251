package backend

import (
	"sync"

	"github.com/go-session/session/v3"
)

// Storage is the per-browser key/value state: the persisted auth session,
// the sign-in flow and flash messages.
type Storage interface {
	// Key identifies the browser session; auth events are scoped to it.
	Key() string
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
	Save() error
}

// CookieStorage adapts a go-session store.
type CookieStorage struct {
	store session.Store
}

func NewCookieStorage(store session.Store) *CookieStorage {
	return &CookieStorage{store: store}
}

func (s *CookieStorage) Key() string { return s.store.SessionID() }

func (s *CookieStorage) Get(key string) (string, bool) {
	v, ok := s.store.Get(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

func (s *CookieStorage) Set(key, value string) { s.store.Set(key, value) }

func (s *CookieStorage) Delete(key string) { s.store.Delete(key) }

func (s *CookieStorage) Save() error { return s.store.Save() }

// MemoryStorage keeps values in process; used by the CLI and tests.
type MemoryStorage struct {
	mu     sync.Mutex
	key    string
	values map[string]string
	saves  int
}

func NewMemoryStorage(key string) *MemoryStorage {
	return &MemoryStorage{key: key, values: make(map[string]string)}
}

func (m *MemoryStorage) Key() string { return m.key }

func (m *MemoryStorage) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStorage) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *MemoryStorage) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

func (m *MemoryStorage) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	return nil
}

// Saves counts Save calls.
func (m *MemoryStorage) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
