// Package mongo implements the candle repository against a MongoDB
// collection. Writes are upserts keyed by timestamp, so re-running a
// backfill converges on a single document per hour.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"btcTracker/internal/domain"
	"btcTracker/internal/ports"
)

const (
	defaultDatabase   = "btc_data"
	defaultCollection = "1h_price_data"
	moonCycleField    = "Moon_Cycle"
)

// Repository implements the ports.CandleRepository interface using MongoDB.
type Repository struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger ports.Logger
}

// Config holds configuration for the MongoDB repository.
type Config struct {
	URI            string
	Database       string
	Collection     string
	Logger         ports.Logger
	ConnectTimeout time.Duration
}

// NewRepository connects to MongoDB, verifies the connection with a
// ping, and ensures the unique timestamp index.
func NewRepository(ctx context.Context, cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for MongoDB repository")
	}
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: MongoDB URI is required", ports.ErrConfiguration)
	}
	database := cfg.Database
	if database == "" {
		database = defaultDatabase
	}
	collection := cfg.Collection
	if collection == "" {
		collection = defaultCollection
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		err = fmt.Errorf("failed to connect to MongoDB: %w: %w", ports.ErrDBConnection, err)
		cfg.Logger.Error(ctx, err, "MongoDB repository initialization failed")
		return nil, err
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		err = fmt.Errorf("failed to ping MongoDB: %w: %w", ports.ErrDBConnection, err)
		cfg.Logger.Error(ctx, err, "MongoDB repository initialization failed")
		return nil, err
	}

	repo := &Repository{
		client: client,
		coll:   client.Database(database).Collection(collection),
		logger: cfg.Logger,
	}

	if err := repo.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		err = fmt.Errorf("failed to ensure indexes: %w", err)
		cfg.Logger.Error(ctx, err, "MongoDB repository initialization failed")
		return nil, err
	}

	cfg.Logger.Info(ctx, "MongoDB connection established", map[string]interface{}{
		"database":   database,
		"collection": collection,
	})
	return repo, nil
}

// ensureIndexes creates the unique timestamp index backing the upsert key.
func (r *Repository) ensureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "timestamp", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("%w: creating timestamp index: %w", ports.ErrQueryFailed, err)
	}
	return nil
}

// Close disconnects the underlying client.
func (r *Repository) Close(ctx context.Context) error {
	if err := r.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("%w: disconnecting MongoDB client: %w", ports.ErrDBConnection, err)
	}
	return nil
}

// Upsert creates or replaces the document for the candle's timestamp.
// Rows carrying NaN indicator values are rejected so the collection only
// ever holds fully-computed candles.
func (r *Repository) Upsert(ctx context.Context, candle *domain.EnrichedCandle) error {
	if candle.HasNaN() {
		return fmt.Errorf("refusing to persist %s: %w", candle.Timestamp.Format(time.RFC3339), ports.ErrIndicatorNaN)
	}
	doc := documentFrom(candle)
	res, err := r.coll.ReplaceOne(ctx,
		bson.M{"timestamp": candle.Timestamp},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert for %s failed: %w: %w", candle.Timestamp.Format(time.RFC3339), ports.ErrUpdateFailed, err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return fmt.Errorf("upsert for %s not acknowledged: %w", candle.Timestamp.Format(time.RFC3339), ports.ErrUpdateFailed)
	}
	return nil
}

// LatestTimestamp returns the timestamp of the newest stored candle,
// or ErrNotFound when the collection is empty.
func (r *Repository) LatestTimestamp(ctx context.Context) (time.Time, error) {
	var doc struct {
		Timestamp time.Time `bson:"timestamp"`
	}
	err := r.coll.FindOne(ctx,
		bson.M{},
		options.FindOne().
			SetSort(bson.D{{Key: "timestamp", Value: -1}}).
			SetProjection(bson.M{"timestamp": 1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return time.Time{}, fmt.Errorf("no candles stored: %w", ports.ErrNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("latest timestamp query failed: %w: %w", ports.ErrQueryFailed, err)
	}
	return domain.FloorHour(doc.Timestamp), nil
}

// LoadRecent retrieves the newest n candles ordered ascending by timestamp.
func (r *Repository) LoadRecent(ctx context.Context, n int) ([]*domain.Candle, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: LoadRecent requires a positive count", ports.ErrInvalidRequest)
	}

	cursor, err := r.coll.Find(ctx,
		bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: -1}}).
			SetLimit(int64(n)),
	)
	if err != nil {
		return nil, fmt.Errorf("recent candles query failed: %w: %w", ports.ErrQueryFailed, err)
	}

	var docs []*domain.Candle
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding recent candles failed: %w: %w", ports.ErrQueryFailed, err)
	}

	// The query sorts descending for the limit; callers want ascending.
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
	for _, d := range docs {
		d.Timestamp = domain.FloorHour(d.Timestamp)
	}
	return docs, nil
}

// documentFrom flattens an enriched candle into the stored document
// shape: OHLCV fields, one field per indicator column, and the moon
// cycle label.
func documentFrom(candle *domain.EnrichedCandle) bson.M {
	doc := bson.M{
		"timestamp": candle.Timestamp,
		"Open":      candle.Open,
		"High":      candle.High,
		"Low":       candle.Low,
		"Close":     candle.Close,
		"Volume":    candle.Volume,
	}
	for name, value := range candle.Indicators {
		doc[name] = value
	}
	doc[moonCycleField] = candle.MoonCycle
	return doc
}
