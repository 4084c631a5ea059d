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

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

var _ repositories.FeedbackJobRepository = (*FeedbackJobRepository)(nil)

// FeedbackJobRepository persists the feedback job outbox
type FeedbackJobRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewFeedbackJobRepository creates a new MongoDB feedback job repository
func NewFeedbackJobRepository(db *mongo.Database, logger *zap.Logger) *FeedbackJobRepository {
	return &FeedbackJobRepository{
		collection: db.Collection(collectionFeedbackJobs),
		logger:     logger,
	}
}

// Create implements repositories.FeedbackJobRepository
func (r *FeedbackJobRepository) Create(ctx context.Context, job *entities.FeedbackJob) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	if err := job.Validate(); err != nil {
		return err
	}
	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctx, job); err != nil {
		r.logger.Error("Failed to enqueue feedback job", zap.Error(err),
			zap.String("message_id", job.MessageID.Hex()))
		return fmt.Errorf("failed to create feedback job: %w", err)
	}
	return nil
}

// GetByID implements repositories.FeedbackJobRepository
func (r *FeedbackJobRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entities.FeedbackJob, error) {
	var job entities.FeedbackJob
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&job); err != nil {
		return nil, lookupError(err, "feedback job", id)
	}
	return &job, nil
}

// Claim implements repositories.FeedbackJobRepository
func (r *FeedbackJobRepository) Claim(ctx context.Context, id primitive.ObjectID, now time.Time, lease time.Duration) (*entities.FeedbackJob, error) {
	filter := claimableFilter(now)
	filter["_id"] = id
	return r.claim(ctx, filter, now, lease)
}

// ClaimNextDue implements repositories.FeedbackJobRepository
func (r *FeedbackJobRepository) ClaimNextDue(ctx context.Context, now time.Time, lease time.Duration) (*entities.FeedbackJob, error) {
	return r.claim(ctx, claimableFilter(now), now, lease)
}

func (r *FeedbackJobRepository) claim(ctx context.Context, filter bson.M, now time.Time, lease time.Duration) (*entities.FeedbackJob, error) {
	update := bson.M{
		"$set": bson.M{
			"status":      entities.JobStatusRunning,
			"lease_until": now.Add(lease),
			"updated_at":  now,
		},
		"$inc": bson.M{"attempts": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "next_attempt_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetReturnDocument(options.After)

	var job entities.FeedbackJob
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim feedback job: %w", err)
	}
	return &job, nil
}

// SaveFeedbackID implements repositories.FeedbackJobRepository
func (r *FeedbackJobRepository) SaveFeedbackID(ctx context.Context, id, feedbackID primitive.ObjectID, now time.Time) error {
	return r.set(ctx, id, bson.M{"feedback_id": feedbackID, "updated_at": now})
}

// MarkDone implements repositories.FeedbackJobRepository
func (r *FeedbackJobRepository) MarkDone(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	return r.set(ctx, id, bson.M{"status": entities.JobStatusDone, "last_error": "", "updated_at": now})
}

// Reschedule implements repositories.FeedbackJobRepository
func (r *FeedbackJobRepository) Reschedule(ctx context.Context, id primitive.ObjectID, nextAttemptAt time.Time, lastError string, now time.Time) error {
	return r.set(ctx, id, bson.M{
		"status":          entities.JobStatusPending,
		"next_attempt_at": nextAttemptAt,
		"last_error":      lastError,
		"updated_at":      now,
	})
}

// MarkDead implements repositories.FeedbackJobRepository
func (r *FeedbackJobRepository) MarkDead(ctx context.Context, id primitive.ObjectID, lastError string, now time.Time) error {
	return r.set(ctx, id, bson.M{"status": entities.JobStatusDead, "last_error": lastError, "updated_at": now})
}

func (r *FeedbackJobRepository) set(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update feedback job %s: %w", id.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return lookupError(mongo.ErrNoDocuments, "feedback job", id)
	}
	return nil
}

// claimableFilter mirrors entities.FeedbackJob.Claimable
func claimableFilter(now time.Time) bson.M {
	return bson.M{
		"$or": bson.A{
			bson.M{"status": entities.JobStatusPending, "next_attempt_at": bson.M{"$lte": now}},
			bson.M{"status": entities.JobStatusRunning, "lease_until": bson.M{"$lt": now}},
		},
	}
}
