package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/medreader/labreader-backend/internal/models"
)

// DatabaseStore persists sessions in PostgreSQL via GORM
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a new database-backed session store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (d *DatabaseStore) GetSession(userID string) (*models.Session, error) {
	var session models.Session
	err := d.db.First(&session, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (d *DatabaseStore) SaveSession(session *models.Session) error {
	session.UpdatedAt = time.Now()
	return d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"stage", "task", "language", "updated_at",
		}),
	}).Create(session).Error
}

func (d *DatabaseStore) UpdateSessionFields(userID string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()

	result := d.db.Model(&models.Session{}).
		Where("user_id = ?", userID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// first contact: seed a default session, then apply the update
		if err := d.db.Create(models.DefaultSession(userID)).Error; err != nil {
			return err
		}
		return d.db.Model(&models.Session{}).
			Where("user_id = ?", userID).
			Updates(fields).Error
	}
	return nil
}

func (d *DatabaseStore) ResetSession(userID string) error {
	fresh := models.DefaultSession(userID)
	return d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"stage":      fresh.Stage,
			"task":       "",
			"language":   "",
			"updated_at": fresh.UpdatedAt,
		}),
	}).Create(fresh).Error
}

func (d *DatabaseStore) ResetStaleSessions(maxIdle time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxIdle)
	result := d.db.Model(&models.Session{}).
		Where("stage <> ? AND updated_at < ?", models.StageAwaitingTask, cutoff).
		Updates(map[string]interface{}{
			"stage":      models.StageAwaitingTask,
			"task":       "",
			"language":   "",
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (d *DatabaseStore) Ping() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
