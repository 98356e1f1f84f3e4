package funnel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xrick/laptop-funnel-dialogue/internal/models"
)

// RedisStore is the alternate SessionStore backend named in §9: sessions
// live behind a redis.Client instead of an in-process map, so a
// multi-instance deployment can share funnel state. Each key carries its
// own TTL so redis itself performs expiry; Sweep is a no-op that exists
// only to satisfy the interface.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, prefix: "funnel:session:"}
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (*models.Session, bool, error) {
	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("funnel: redis get: %w", err)
	}
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("funnel: redis decode session: %w", err)
	}
	return &s, true, nil
}

func (r *RedisStore) Put(ctx context.Context, s *models.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("funnel: redis encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(s.SessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("funnel: redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("funnel: redis del: %w", err)
	}
	return nil
}

// Sweep is a no-op: redis expires keys on their own TTL (set on every
// Put). It exists so RedisStore satisfies SessionStore alongside MemStore,
// which has no native expiry and needs the controller to sweep it.
func (r *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
