package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/medreader/labreader-backend/internal/models"
	"github.com/medreader/labreader-backend/internal/storage"
)

// ErrStoreDegraded signals that the durable tier rejected a write. The
// volatile tier was still updated, so the turn can proceed; the caller
// should log the inconsistency instead of failing the user.
var ErrStoreDegraded = errors.New("durable session store unavailable")

// SessionManager is the two-tier session store: a durable tier shared
// across instances and a process-local TTL cache. The durable tier is
// authoritative whenever both hold a value.
type SessionManager struct {
	store storage.Store // nil when no durable tier is configured
	cache *cache.Cache
}

// NewSessionManager creates a session manager. Volatile entries expire
// after an hour and are purged every 10 minutes.
func NewSessionManager(store storage.Store) *SessionManager {
	return &SessionManager{
		store: store,
		cache: cache.New(1*time.Hour, 10*time.Minute),
	}
}

// Load returns the user's session: durable value when present, else the
// cached value, else a default session. A durable session violating the
// stage/field invariant is reset and replaced with the default.
func (sm *SessionManager) Load(userID string) *models.Session {
	if sm.store != nil {
		session, err := sm.store.GetSession(userID)
		switch {
		case err == nil:
			if !session.Valid() {
				log.Printf("⚠️  Corrupt session for %s (stage=%s task=%s language=%s) - resetting", userID, session.Stage, session.Task, session.Language)
				if resetErr := sm.Reset(userID); resetErr != nil {
					log.Printf("⚠️  Failed to reset corrupt session for %s: %v", userID, resetErr)
				}
				return models.DefaultSession(userID)
			}
			sm.cache.Set(userID, session, cache.DefaultExpiration)
			copy := *session
			return &copy
		case errors.Is(err, storage.ErrSessionNotFound):
			// fall through to the volatile tier
		default:
			log.Printf("⚠️  Durable session read failed for %s: %v - falling back to cache", userID, err)
		}
	}

	if x, found := sm.cache.Get(userID); found {
		copy := *x.(*models.Session)
		return &copy
	}

	return models.DefaultSession(userID)
}

// Save upserts the full session. The cache is always updated; a durable
// failure is reported as ErrStoreDegraded, never as a hard stop.
func (sm *SessionManager) Save(session *models.Session) error {
	copy := *session
	sm.cache.Set(session.UserID, &copy, cache.DefaultExpiration)

	if sm.store == nil {
		return nil
	}
	if err := sm.store.SaveSession(session); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreDegraded, err)
	}
	return nil
}

// Update applies a partial field update (e.g. set language without
// clobbering task) and refreshes the cache with the full session.
func (sm *SessionManager) Update(session *models.Session, fields map[string]interface{}) error {
	copy := *session
	sm.cache.Set(session.UserID, &copy, cache.DefaultExpiration)

	if sm.store == nil {
		return nil
	}
	if err := sm.store.UpdateSessionFields(session.UserID, fields); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreDegraded, err)
	}
	return nil
}

// Reset puts the user back at the start of the dialog in both tiers
func (sm *SessionManager) Reset(userID string) error {
	sm.cache.Set(userID, models.DefaultSession(userID), cache.DefaultExpiration)

	if sm.store == nil {
		return nil
	}
	if err := sm.store.ResetSession(userID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreDegraded, err)
	}
	return nil
}

// Durable reports whether a durable tier is configured. Without one a
// later turn landing on a different instance starts from a default
// session.
func (sm *SessionManager) Durable() bool {
	return sm.store != nil
}
