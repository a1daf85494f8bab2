package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// Redis stores each room as one JSON value under session:<roomID>. A zero ttl
// keeps keys until they are deleted.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func OpenRedis(ctx context.Context, redisURL string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func redisKey(roomID string) string {
	return redisKeyPrefix + roomID
}

func (r *Redis) Load(ctx context.Context, roomID string) (*Record, error) {
	data, err := r.client.Get(ctx, redisKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", roomID, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", roomID, err)
	}
	return &rec, nil
}

func (r *Redis) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", rec.RoomID, err)
	}
	if err := r.client.Set(ctx, redisKey(rec.RoomID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", rec.RoomID, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, roomID string) error {
	if err := r.client.Del(ctx, redisKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", roomID, err)
	}
	return nil
}

func (r *Redis) DeleteAll(ctx context.Context) error {
	var keys []string
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan sessions: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to purge sessions: %w", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
