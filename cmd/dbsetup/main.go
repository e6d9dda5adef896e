package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"price-alert-engine/internal/config"
	"price-alert-engine/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	var (
		initDB      = flag.Bool("init", false, "Initialize the alert store with indexes")
		seedData    = flag.Bool("seed", false, "Seed the alert store with sample alerts")
		healthCheck = flag.Bool("health", false, "Run an alert store health check")
		all         = flag.Bool("all", false, "Run full setup (health + init + seed)")
	)
	flag.Parse()

	// Load configuration
	cfg := config.LoadConfig()

	// If no flags specified, show usage
	if !*initDB && !*seedData && !*healthCheck && !*all {
		fmt.Println("Alert Store Setup Utility")
		fmt.Println("Usage:")
		fmt.Println("  -init      Initialize the alert store with indexes")
		fmt.Println("  -seed      Seed the alert store with sample alerts")
		fmt.Println("  -health    Run an alert store health check")
		fmt.Println("  -all       Run full setup (health + init + seed)")
		fmt.Println()
		fmt.Println("Environment Variables:")
		fmt.Println("  MONGODB_URI              MongoDB connection string")
		fmt.Println("  MONGODB_DATABASE         Database name")
		fmt.Println("  MONGODB_ALERT_COLLECTION Alert collection name")
		os.Exit(1)
	}

	initializer, err := NewStoreInitializer(&cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to alert store: %v", err)
	}
	defer initializer.Close()

	if *healthCheck || *all {
		if err := initializer.HealthCheck(); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
	}

	if *initDB || *all {
		if err := initializer.InitializeStore(); err != nil {
			log.Fatalf("Store initialization failed: %v", err)
		}
	}

	if *seedData || *all {
		if err := initializer.SeedSampleAlerts(); err != nil {
			log.Fatalf("Data seeding failed: %v", err)
		}
	}

	log.Println("Alert store setup completed successfully!")
}

// StoreInitializer handles alert store setup and seeding
type StoreInitializer struct {
	client *mongo.Client
	db     *mongo.Database
	config *config.MongoDBConfig
}

// NewStoreInitializer creates a new store initializer
func NewStoreInitializer(cfg *config.MongoDBConfig) (*StoreInitializer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.URI)
	clientOptions.SetMaxPoolSize(cfg.MaxPoolSize)
	clientOptions.SetConnectTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &StoreInitializer{
		client: client,
		db:     client.Database(cfg.Database),
		config: cfg,
	}, nil
}

// HealthCheck verifies the store is reachable and reports timing.
func (si *StoreInitializer) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Println("Running alert store health check...")

	start := time.Now()
	if err := si.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	log.Printf("  ✓ alert store reachable (%v)", time.Since(start))

	return nil
}

// InitializeStore creates the indexes the evaluation loop and the admin
// API query on.
func (si *StoreInitializer) InitializeStore() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Println("Setting up alert store indexes...")

	collection := si.db.Collection(si.config.AlertCollection)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{Keys: bson.D{
			{Key: "owner_id", Value: 1},
			{Key: "created_at", Value: -1},
		}},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Alert store indexes created successfully")
	return nil
}

// SeedSampleAlerts creates sample alert conditions for local testing.
func (si *StoreInitializer) SeedSampleAlerts() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Println("Creating sample alerts...")

	collection := si.db.Collection(si.config.AlertCollection)

	// Check if data already exists
	count, err := collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to count existing documents: %w", err)
	}
	if count > 0 {
		log.Printf("Found %d existing alerts, skipping seed data creation", count)
		return nil
	}

	samples := []models.Condition{
		{
			OwnerID:   "demo-user-1",
			Symbol:    "BTC/USDT",
			Predicate: models.Predicate{Direction: models.DirectionAbove, Threshold: 100000},
		},
		{
			OwnerID:   "demo-user-1",
			Symbol:    "ETH/USDT",
			Predicate: models.Predicate{Direction: models.DirectionBelow, Threshold: 2500},
		},
		{
			OwnerID:   "demo-user-2",
			Symbol:    "SOL/USDT",
			Predicate: models.Predicate{Direction: models.DirectionAbove, Threshold: 300},
		},
	}

	var documents []interface{}
	for i := range samples {
		samples[i].ID = uuid.New().String()
		samples[i].Status = models.AlertStatusActive
		samples[i].CreatedAt = time.Now().UTC()
		documents = append(documents, samples[i])
	}

	result, err := collection.InsertMany(ctx, documents)
	if err != nil {
		return fmt.Errorf("failed to insert sample alerts: %w", err)
	}

	log.Printf("Successfully created %d sample alerts", len(result.InsertedIDs))
	for _, cond := range samples {
		log.Printf("  - %s %s %s %.2f [%s]",
			cond.OwnerID, cond.Symbol, cond.Predicate.Direction, cond.Predicate.Threshold, cond.ID)
	}

	return nil
}

// Close closes the database connection
func (si *StoreInitializer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return si.client.Disconnect(ctx)
}
