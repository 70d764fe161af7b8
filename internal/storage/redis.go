package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medreader/labreader-backend/internal/models"
)

const redisSessionPrefix = "labreader:session:"

// RedisStore persists sessions in Redis as JSON values. An alternative
// durable tier for deployments without PostgreSQL.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis using the given URL
// (redis://[:password@]host:port/db)
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func sessionKey(userID string) string {
	return redisSessionPrefix + userID
}

func (r *RedisStore) GetSession(userID string) (*models.Session, error) {
	ctx := context.Background()

	data, err := r.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("corrupt session payload: %w", err)
	}
	return &session, nil
}

func (r *RedisStore) SaveSession(session *models.Session) error {
	ctx := context.Background()

	copy := *session
	if existing, err := r.GetSession(session.UserID); err == nil {
		copy.CreatedAt = existing.CreatedAt
		if copy.UpdatedAt.Before(existing.UpdatedAt) {
			copy.UpdatedAt = existing.UpdatedAt
		}
	}
	if copy.UpdatedAt.IsZero() {
		copy.UpdatedAt = time.Now()
	}

	data, err := json.Marshal(&copy)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKey(session.UserID), data, 0).Err()
}

func (r *RedisStore) UpdateSessionFields(userID string, fields map[string]interface{}) error {
	session, err := r.GetSession(userID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			return err
		}
		session = models.DefaultSession(userID)
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
	return r.SaveSession(session)
}

func (r *RedisStore) ResetSession(userID string) error {
	fresh := models.DefaultSession(userID)
	if existing, err := r.GetSession(userID); err == nil {
		fresh.CreatedAt = existing.CreatedAt
	}

	data, err := json.Marshal(fresh)
	if err != nil {
		return err
	}
	return r.client.Set(context.Background(), sessionKey(userID), data, 0).Err()
}

func (r *RedisStore) ResetStaleSessions(maxIdle time.Duration) (int64, error) {
	ctx := context.Background()
	cutoff := time.Now().Add(-maxIdle)

	var reset int64
	iter := r.client.Scan(ctx, 0, redisSessionPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var session models.Session
		if err := json.Unmarshal(data, &session); err != nil {
			continue
		}
		if session.Stage == models.StageAwaitingTask || !session.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := r.ResetSession(session.UserID); err == nil {
			reset++
		}
	}
	return reset, iter.Err()
}

func (r *RedisStore) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err()
}
