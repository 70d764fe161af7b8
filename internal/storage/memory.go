package storage

import (
	"sync"
	"time"

	"github.com/medreader/labreader-backend/internal/models"
)

// MemoryStore holds sessions in process memory. Used for tests and for
// running without a database; a later turn landing on a different
// instance starts from a default session in that mode.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
	}
}

func (m *MemoryStore) GetSession(userID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[userID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	copy := *session
	return &copy, nil
}

func (m *MemoryStore) SaveSession(session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copy := *session
	if existing, exists := m.sessions[session.UserID]; exists {
		copy.CreatedAt = existing.CreatedAt
		// keep UpdatedAt monotonic
		if copy.UpdatedAt.Before(existing.UpdatedAt) {
			copy.UpdatedAt = existing.UpdatedAt
		}
	}
	if copy.UpdatedAt.IsZero() {
		copy.UpdatedAt = time.Now()
	}
	m.sessions[session.UserID] = &copy
	return nil
}

func (m *MemoryStore) UpdateSessionFields(userID string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[userID]
	if !exists {
		session = models.DefaultSession(userID)
		m.sessions[userID] = session
	}

	for key, value := range fields {
		switch key {
		case "stage":
			if v, ok := value.(models.Stage); ok {
				session.Stage = v
			}
		case "task":
			if v, ok := value.(models.Task); ok {
				session.Task = v
			}
		case "language":
			if v, ok := value.(models.Language); ok {
				session.Language = v
			}
		}
	}
	session.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ResetSession(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fresh := models.DefaultSession(userID)
	if existing, exists := m.sessions[userID]; exists {
		fresh.CreatedAt = existing.CreatedAt
	}
	m.sessions[userID] = fresh
	return nil
}

func (m *MemoryStore) ResetStaleSessions(maxIdle time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	var reset int64
	for userID, session := range m.sessions {
		if session.Stage != models.StageAwaitingTask && session.UpdatedAt.Before(cutoff) {
			fresh := models.DefaultSession(userID)
			fresh.CreatedAt = session.CreatedAt
			m.sessions[userID] = fresh
			reset++
		}
	}
	return reset, nil
}

func (m *MemoryStore) Ping() error {
	return nil
}
