package jobs

import (
	"log"
	"time"

	"github.com/medreader/labreader-backend/internal/storage"
)

// SessionCleanupJob resets in-progress dialogs that were abandoned in
// the durable tier, so a user coming back days later starts fresh
// instead of landing mid-conversation.
type SessionCleanupJob struct {
	store    storage.Store
	interval time.Duration
	maxIdle  time.Duration
	stop     chan struct{}
	running  bool
}

// NewSessionCleanupJob creates a cleanup job sweeping every hour for
// sessions idle longer than a day
func NewSessionCleanupJob(store storage.Store) *SessionCleanupJob {
	return &SessionCleanupJob{
		store:    store,
		interval: 1 * time.Hour,
		maxIdle:  24 * time.Hour,
		stop:     make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (j *SessionCleanupJob) Start() {
	if j.running {
		log.Println("Session cleanup job already running")
		return
	}
	j.running = true
	log.Println("Starting session cleanup job...")

	go j.run()
}

// Stop halts the sweep
func (j *SessionCleanupJob) Stop() {
	if !j.running {
		return
	}
	j.running = false
	close(j.stop)
	log.Println("Stopping session cleanup job...")
}

func (j *SessionCleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reset, err := j.store.ResetStaleSessions(j.maxIdle)
			if err != nil {
				log.Printf("⚠️  Session cleanup sweep failed: %v", err)
				continue
			}
			if reset > 0 {
				log.Printf("🧹 Reset %d stale session(s)", reset)
			}
		case <-j.stop:
			return
		}
	}
}
