package storage

import (
	"errors"
	"time"

	"github.com/medreader/labreader-backend/internal/models"
)

// ErrSessionNotFound is returned when no session exists for a user yet
var ErrSessionNotFound = errors.New("session not found")

var (
	storeInstance Store
)

// SetStore sets the global store instance (call from main.go)
func SetStore(s Store) {
	storeInstance = s
}

// GetStore returns the global store instance
func GetStore() Store {
	return storeInstance
}

// Store is the durable session tier, visible across instances
type Store interface {
	// GetSession returns the stored session or ErrSessionNotFound
	GetSession(userID string) (*models.Session, error)

	// SaveSession upserts the full session
	SaveSession(session *models.Session) error

	// UpdateSessionFields updates a subset of columns without clobbering
	// the rest (e.g. set language without touching task)
	UpdateSessionFields(userID string, fields map[string]interface{}) error

	// ResetSession writes the default session back (upsert, never delete)
	ResetSession(userID string) error

	// ResetStaleSessions resets in-progress sessions idle longer than
	// maxIdle and returns how many were reset
	ResetStaleSessions(maxIdle time.Duration) (int64, error)

	// Ping checks connectivity to the backing store
	Ping() error
}
