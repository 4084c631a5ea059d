package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

var _ repositories.FeedbackRepository = (*FeedbackRepository)(nil)

type FeedbackRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewFeedbackRepository creates a new MongoDB feedback repository
func NewFeedbackRepository(db *mongo.Database, logger *zap.Logger) *FeedbackRepository {
	return &FeedbackRepository{
		collection: db.Collection(collectionFeedback),
		logger:     logger,
	}
}

// Create implements repositories.FeedbackRepository
func (r *FeedbackRepository) Create(ctx context.Context, feedback *entities.Feedback) error {
	if feedback == nil {
		return errors.New("feedback cannot be nil")
	}
	if err := feedback.Validate(); err != nil {
		return err
	}
	if feedback.ID.IsZero() {
		feedback.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctx, feedback); err != nil {
		r.logger.Error("Failed to create feedback", zap.Error(err),
			zap.String("target_id", feedback.TargetID.Hex()))
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

// GetByID implements repositories.FeedbackRepository
func (r *FeedbackRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entities.Feedback, error) {
	var feedback entities.Feedback
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&feedback); err != nil {
		return nil, lookupError(err, "feedback", id)
	}
	return &feedback, nil
}

// GetLatestByTarget implements repositories.FeedbackRepository
func (r *FeedbackRepository) GetLatestByTarget(ctx context.Context, targetID primitive.ObjectID, targetType entities.TargetType) (*entities.Feedback, error) {
	filter := bson.M{"target_id": targetID, "target_type": targetType}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	var feedback entities.Feedback
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&feedback); err != nil {
		return nil, lookupError(err, "feedback for target", targetID)
	}
	return &feedback, nil
}
