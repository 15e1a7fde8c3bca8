package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRecordStore journals observed purchase records in MongoDB.
type MongoRecordStore struct {
	client  *mongo.Client
	records *mongo.Collection
}

type mongoRecord struct {
	Ref       string    `bson:"_id"`
	Status    string    `bson:"status"`
	ItemID    string    `bson:"item_id"`
	Record    Record    `bson:"record"`
	UpdatedAt time.Time `bson:"updated_at"`
}

var terminalStatuses = []string{
	string(StatusCompleted), string(StatusFailed),
	string(StatusRefunded), string(StatusDisputed),
}

// NewMongoRecordStore connects to MongoDB and prepares the journal collection.
func NewMongoRecordStore(connectionString, database, collection string) (*MongoRecordStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	if collection == "" {
		collection = "purchase_records"
	}
	store := &MongoRecordStore{
		client:  client,
		records: client.Database(database).Collection(collection),
	}

	_, err = store.records.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "item_id", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create purchase record indexes: %w", err)
	}

	return store, nil
}

// Upsert stores the record. The filter keeps terminal rows from regressing:
// a non-terminal observation only replaces a row whose status is still
// non-terminal.
func (s *MongoRecordStore) Upsert(ctx context.Context, record Record) error {
	doc := mongoRecord{
		Ref:       record.Ref(),
		Status:    string(record.Status),
		ItemID:    record.ItemID,
		Record:    record,
		UpdatedAt: time.Now(),
	}

	filter := bson.M{"_id": doc.Ref}
	if !record.Status.Terminal() {
		filter["status"] = bson.M{"$nin": terminalStatuses}
	}

	_, err := s.records.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		// A duplicate key here means the filter excluded an existing terminal
		// row; the observation is stale, not an error.
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("upsert purchase record: %w", err)
	}
	return nil
}

// Get returns the journaled record for a reference.
func (s *MongoRecordStore) Get(ctx context.Context, ref string) (Record, error) {
	var doc mongoRecord
	err := s.records.FindOne(ctx, bson.M{"_id": ref}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("find purchase record: %w", err)
	}
	return doc.Record, nil
}

// Close disconnects the client.
func (s *MongoRecordStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
