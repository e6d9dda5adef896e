package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"price-alert-engine/internal/config"
	"price-alert-engine/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when an alert does not exist or does not
// belong to the requesting owner.
var ErrNotFound = errors.New("alert not found")

// MongoRepository stores alert conditions in MongoDB and implements
// the engine's Repository interface.
type MongoRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	config     *config.MongoDBConfig
}

// NewMongoRepository connects to MongoDB with pooled, retryable options
// and ensures the indexes the evaluation loop depends on.
func NewMongoRepository(cfg *config.MongoDBConfig) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.URI)
	clientOptions.SetMaxPoolSize(cfg.MaxPoolSize)
	clientOptions.SetMinPoolSize(cfg.MaxPoolSize / 4)
	clientOptions.SetMaxConnIdleTime(30 * time.Minute)
	clientOptions.SetConnectTimeout(cfg.ConnectTimeout)
	clientOptions.SetServerSelectionTimeout(5 * time.Second)
	clientOptions.SetRetryWrites(true)
	clientOptions.SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(cfg.Database).Collection(cfg.AlertCollection)

	// The evaluation loop filters on status every cycle; the admin API
	// lists per owner.
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
	}
	// Index creation is idempotent; existing indexes are not an error
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return &MongoRepository{
		client:     client,
		collection: collection,
		config:     cfg,
	}, nil
}

// ListActive returns all conditions eligible for evaluation.
func (r *MongoRepository) ListActive(ctx context.Context) ([]models.Condition, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"status": models.AlertStatusActive})
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	defer cursor.Close(ctx)

	var conditions []models.Condition
	if err := cursor.All(ctx, &conditions); err != nil {
		return nil, fmt.Errorf("failed to decode active alerts: %w", err)
	}
	return conditions, nil
}

// MarkTriggered transitions a condition to triggered with the given
// timestamp. Triggered conditions stop firing until re-armed by their
// owner.
func (r *MongoRepository) MarkTriggered(ctx context.Context, id string, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"status":       models.AlertStatusTriggered,
		"triggered_at": at,
	}}

	result, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("failed to mark alert %s triggered: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Disable transitions a condition to disabled.
func (r *MongoRepository) Disable(ctx context.Context, id string) error {
	update := bson.M{"$set": bson.M{"status": models.AlertStatusDisabled}}

	result, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("failed to disable alert %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Create inserts a new alert condition, assigning its ID and
// timestamps.
func (r *MongoRepository) Create(ctx context.Context, cond *models.Condition) error {
	if err := cond.Validate(); err != nil {
		return err
	}

	cond.ID = uuid.New().String()
	cond.Status = models.AlertStatusActive
	cond.CreatedAt = time.Now().UTC()
	cond.TriggeredAt = nil

	if _, err := r.collection.InsertOne(ctx, cond); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// ListByOwner returns all of an owner's alerts, newest first.
func (r *MongoRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Condition, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts for owner %s: %w", ownerID, err)
	}
	defer cursor.Close(ctx)

	var conditions []models.Condition
	if err := cursor.All(ctx, &conditions); err != nil {
		return nil, fmt.Errorf("failed to decode alerts: %w", err)
	}
	return conditions, nil
}

// Delete removes an alert owned by ownerID. It reports whether an
// alert was actually removed.
func (r *MongoRepository) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return false, fmt.Errorf("failed to delete alert %s: %w", id, err)
	}
	return result.DeletedCount > 0, nil
}

// Ping verifies the MongoDB connection.
func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// Close disconnects from MongoDB.
func (r *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}
