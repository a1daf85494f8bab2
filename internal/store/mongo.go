package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mongoCollection = "sessions"

type mongoRecord struct {
	RoomID    string    `bson:"_id"`
	Phase     string    `bson:"phase"`
	State     string    `bson:"state"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Mongo stores each room as one document of the sessions collection keyed by
// room id.
type Mongo struct {
	client   *mongo.Client
	sessions *mongo.Collection
}

func OpenMongo(ctx context.Context, mongoURL, database string) (*Mongo, error) {
	if database == "" {
		database = "investment"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Mongo{
		client:   client,
		sessions: client.Database(database).Collection(mongoCollection),
	}, nil
}

func (m *Mongo) Load(ctx context.Context, roomID string) (*Record, error) {
	var doc mongoRecord
	err := m.sessions.FindOne(ctx, bson.M{"_id": roomID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", roomID, err)
	}

	return &Record{
		RoomID:    doc.RoomID,
		Phase:     doc.Phase,
		State:     []byte(doc.State),
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (m *Mongo) Save(ctx context.Context, rec Record) error {
	doc := mongoRecord{
		RoomID:    rec.RoomID,
		Phase:     rec.Phase,
		State:     string(rec.State),
		UpdatedAt: rec.UpdatedAt,
	}

	_, err := m.sessions.ReplaceOne(ctx, bson.M{"_id": rec.RoomID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", rec.RoomID, err)
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, roomID string) error {
	if _, err := m.sessions.DeleteOne(ctx, bson.M{"_id": roomID}); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", roomID, err)
	}
	return nil
}

func (m *Mongo) DeleteAll(ctx context.Context) error {
	if _, err := m.sessions.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to purge sessions: %w", err)
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
