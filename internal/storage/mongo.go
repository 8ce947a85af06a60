package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoKVCollection = "kv"

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Mongo keeps each key as one document in the "kv" collection. It does not
// implement Watcher: change streams need a replica set, which the dashboard's
// deployments do not assume.
type Mongo struct {
	coll *mongo.Collection
}

// ConnectMongo dials uri and returns the named database.
func ConnectMongo(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, client.Database(database), nil
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{coll: db.Collection(mongoKVCollection)}
}

func (m *Mongo) Get(ctx context.Context, key string) ([]byte, error) {
	var e mongoEntry
	err := m.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo get %s: %w", key, err)
	}
	return e.Value, nil
}

func (m *Mongo) Set(ctx context.Context, key string, value []byte) error {
	_, err := m.coll.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": value, "updatedAt": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo set %s: %w", key, err)
	}
	return nil
}

func (m *Mongo) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	_, err := m.coll.InsertOne(ctx, mongoEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mongo setnx %s: %w", key, err)
	}
	return true, nil
}

func (m *Mongo) Delete(ctx context.Context, key string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("mongo delete %s: %w", key, err)
	}
	return nil
}
