package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Record is the durable form of one room: the serialized session plus the
// columns the drivers index on.
type Record struct {
	RoomID    string          `json:"roomId"`
	Phase     string          `json:"phase"`
	State     json.RawMessage `json:"state"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Store is a key-value document store for room records keyed by room id.
// Save is an upsert. Load returns ErrNotFound for unknown rooms and Delete of an
// unknown room is not an error.
type Store interface {
	Load(ctx context.Context, roomID string) (*Record, error)
	Save(ctx context.Context, rec Record) error
	Delete(ctx context.Context, roomID string) error
	DeleteAll(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
)

type Options struct {
	Driver        string
	DatabaseURL   string
	RedisURL      string
	RedisTTL      time.Duration
	MongoURL      string
	MongoDatabase string
}

// Open connects the configured driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverPostgres:
		return OpenPostgres(ctx, opts.DatabaseURL)
	case DriverRedis:
		return OpenRedis(ctx, opts.RedisURL, opts.RedisTTL)
	case DriverMongo:
		return OpenMongo(ctx, opts.MongoURL, opts.MongoDatabase)
	}
	return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
}

func clone(rec Record) Record {
	rec.State = append(json.RawMessage(nil), rec.State...)
	return rec
}
