package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vetproxy/logger"
	"vetproxy/proxy"
)

// MongoStorage mirrors the proxy pool into a MongoDB collection so results
// survive restarts and other services can query them
type MongoStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
	log        zerolog.Logger
}

// NewMongoStorage connects to MongoDB and prepares the proxy collection
func NewMongoStorage(dsn, database, collection string, timeout time.Duration) (*MongoStorage, error) {
	clientOptions := options.Client().ApplyURI(dsn)
	clientOptions.SetConnectTimeout(timeout)
	clientOptions.SetServerSelectionTimeout(timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	storage := &MongoStorage{
		client:     client,
		collection: client.Database(database).Collection(collection),
		log:        logger.WithComponent("mongodb"),
	}

	if err := storage.createIndexes(ctx); err != nil {
		storage.log.Warn().Err(err).Msg("failed to create indexes")
	}

	storage.log.Info().Str("database", database).Str("collection", collection).Msg("connected to MongoDB")
	return storage, nil
}

// createIndexes creates the indexes the pool queries rely on
func (m *MongoStorage) createIndexes(ctx context.Context) error {
	endpointIndex := mongo.IndexModel{
		Keys:    bson.D{bson.E{Key: "endpoint", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	statusIndex := mongo.IndexModel{
		Keys: bson.D{
			bson.E{Key: "status", Value: 1},
			bson.E{Key: "last_checked_at", Value: -1},
		},
	}

	latencyIndex := mongo.IndexModel{
		Keys: bson.D{bson.E{Key: "latency_ms", Value: 1}},
	}

	// Drop records that have not been re-confirmed for a week
	ttlIndex := mongo.IndexModel{
		Keys:    bson.D{bson.E{Key: "last_checked_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(7 * 24 * 3600),
	}

	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		endpointIndex,
		statusIndex,
		latencyIndex,
		ttlIndex,
	})
	return err
}

// SaveRecords upserts one document per record, keyed by endpoint. Each
// write fully replaces the tracked fields; there is no merging of old and
// new check results.
func (m *MongoStorage) SaveRecords(ctx context.Context, records []*proxy.Record) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now()
	operations := make([]mongo.WriteModel, 0, len(records))

	for _, rec := range records {
		filter := bson.M{"endpoint": rec.Endpoint}
		update := bson.M{
			"$set": bson.M{
				"status":          rec.Status,
				"country":         rec.Country,
				"country_code":    rec.CountryCode,
				"privacy":         rec.Privacy,
				"latency_ms":      rec.LatencyMs,
				"last_checked_at": rec.LastCheckedAt,
				"updated_at":      now,
			},
			"$setOnInsert": bson.M{
				"endpoint":   rec.Endpoint,
				"created_at": now,
			},
		}

		operation := mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(update).
			SetUpsert(true)

		operations = append(operations, operation)
	}

	opts := options.BulkWrite().SetOrdered(false)
	result, err := m.collection.BulkWrite(ctx, operations, opts)
	if err != nil {
		return fmt.Errorf("failed to bulk write records: %v", err)
	}

	m.log.Info().
		Int("records", len(records)).
		Int64("modified", result.ModifiedCount).
		Int64("upserted", result.UpsertedCount).
		Msg("saved records")
	return nil
}

// LoadRecent retrieves up to limit records, freshest first
func (m *MongoStorage) LoadRecent(ctx context.Context, limit int) ([]*proxy.Record, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "last_checked_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := m.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %v", err)
	}
	defer cursor.Close(ctx)

	var records []*proxy.Record
	for cursor.Next(ctx) {
		var rec proxy.Record
		if err := cursor.Decode(&rec); err != nil {
			m.log.Warn().Err(err).Msg("error decoding record document")
			continue
		}
		records = append(records, &rec)
	}

	return records, cursor.Err()
}

// Stats returns record counts grouped by status
func (m *MongoStorage) Stats(ctx context.Context) (map[string]int64, error) {
	pipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":   "$status",
				"count": bson.M{"$sum": 1},
			},
		},
	}

	cursor, err := m.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %v", err)
	}
	defer cursor.Close(ctx)

	stats := make(map[string]int64)
	for cursor.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode stats: %v", err)
		}
		stats[row.Status] = row.Count
	}

	return stats, cursor.Err()
}

// Close closes the MongoDB connection
func (m *MongoStorage) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
