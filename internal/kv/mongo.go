package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoEntry is one key-value pair. The raw key doubles as _id, so the
// primary index is the only index needed.
type mongoEntry struct {
	Key   []byte `bson:"_id"`
	Value []byte `bson:"v"`
}

// Mongo keeps pairs in a single collection. Replace and delete use the
// find-and-modify commands, which are atomic per document. A checked Put is a
// compare-and-swap on the value it inspected.
type Mongo struct {
	col    *mongo.Collection
	client *mongo.Client
}

// DialMongo connects, pings, and returns a Mongo engine over database.collection.
// Close disconnects the client.
func DialMongo(ctx context.Context, uri, database, collection string, timeout time.Duration) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Mongo{col: client.Database(database).Collection(collection), client: client}, nil
}

// casRetries bounds compare-and-swap attempts of a checked Put.
const casRetries = 8

func (m *Mongo) Put(ctx context.Context, key, value []byte, check Check) ([]byte, error) {
	if check != nil {
		return m.checkedPut(ctx, key, value, check)
	}
	opts := options.FindOneAndReplace().SetUpsert(true).SetReturnDocument(options.Before)
	var old mongoEntry
	err := m.col.FindOneAndReplace(ctx, bson.M{"_id": key}, mongoEntry{Key: key, Value: value}, opts).Decode(&old)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return present(old.Value), nil
}

func (m *Mongo) checkedPut(ctx context.Context, key, value []byte, check Check) ([]byte, error) {
	entry := mongoEntry{Key: key, Value: value}
	for i := 0; i < casRetries; i++ {
		prev, err := m.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := check(prev); err != nil {
			return nil, err
		}
		if prev == nil {
			_, err = m.col.InsertOne(ctx, entry)
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			return nil, nil
		}
		res, err := m.col.ReplaceOne(ctx, bson.M{"_id": key, "v": prev}, entry)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 1 {
			return prev, nil
		}
	}
	return nil, ErrConflict
}

func (m *Mongo) Get(ctx context.Context, key []byte) ([]byte, error) {
	var e mongoEntry
	if err := m.col.FindOne(ctx, bson.M{"_id": key}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return present(e.Value), nil
}

func (m *Mongo) Delete(ctx context.Context, key []byte) ([]byte, error) {
	var old mongoEntry
	if err := m.col.FindOneAndDelete(ctx, bson.M{"_id": key}).Decode(&old); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return present(old.Value), nil
}

func (m *Mongo) Exists(ctx context.Context, key []byte) (bool, error) {
	n, err := m.col.CountDocuments(ctx, bson.M{"_id": key}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
