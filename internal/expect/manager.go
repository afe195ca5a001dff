package expect

import (
	"sync"
)

// Manager tracks live sessions in a thread-safe manner so that signal
// handlers and leak checks can reach every open session.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// DefaultManager is the process-wide session registry.
var DefaultManager = &Manager{sessions: make(map[string]*Session)}

// Add registers a session under its id.
func (m *Manager) Add(id string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = s
}

// Get retrieves a session by id. Returns nil if not found.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Remove deregisters a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// List returns all live sessions.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
