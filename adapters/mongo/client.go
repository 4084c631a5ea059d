package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
)

const (
	defaultURI      = "mongodb://localhost:27017"
	defaultDatabase = "speak_english"

	collectionAudio         = "audio"
	collectionConversations = "conversations"
	collectionMessages      = "messages"
	collectionFeedback      = "feedback"
	collectionFeedbackJobs  = "feedback_jobs"
)

// Config holds the connection settings for MongoDB
type Config struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	ConnectTimeout time.Duration
}

// Client wraps the MongoDB client and database
type Client struct {
	*mongo.Client
	Database *mongo.Database
	logger   *zap.Logger
}

// NewClient creates a new MongoDB client connection
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	uri := cfg.URI
	if uri == "" {
		uri = defaultURI
		logger.Info("Using default MongoDB URI", zap.String("uri", uri))
	}

	dbName := cfg.Database
	if dbName == "" {
		dbName = defaultDatabase
		logger.Info("Using default MongoDB database", zap.String("database", dbName))
	}

	poolSize := cfg.MaxPoolSize
	if poolSize == 0 {
		poolSize = 10
	}

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = 10 * time.Second
	}

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(poolSize).
		SetMinPoolSize(1).
		SetMaxConnIdleTime(30 * time.Minute).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(connectTimeout)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Successfully connected to MongoDB", zap.String("database", dbName))

	return &Client{
		Client:   client,
		Database: client.Database(dbName),
		logger:   logger,
	}, nil
}

// Ping reports whether the primary is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx, nil)
}

// EnsureIndexes creates the indexes every repository relies on
func (c *Client) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		collectionConversations: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		collectionMessages: {
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}},
		},
		collectionFeedback: {
			{Keys: bson.D{{Key: "target_id", Value: 1}, {Key: "target_type", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		collectionAudio: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		collectionFeedbackJobs: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "lease_until", Value: 1}}},
		},
	}

	var errs []error
	for name, models := range specs {
		if _, err := c.Database.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			errs = append(errs, fmt.Errorf("create %s indexes: %w", name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	c.logger.Info("MongoDB indexes ensured")
	return nil
}

// Close closes the MongoDB connection
func (c *Client) Close(ctx context.Context) error {
	if err := c.Client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	c.logger.Info("Disconnected from MongoDB")
	return nil
}

// lookupError maps a missing document to domain.ErrNotFound
func lookupError(err error, what string, id primitive.ObjectID) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", what, id.Hex(), domain.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s %s: %w", what, id.Hex(), err)
}
