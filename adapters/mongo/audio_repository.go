package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

var _ repositories.AudioRepository = (*AudioRepository)(nil)

type AudioRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewAudioRepository creates a new MongoDB audio repository
func NewAudioRepository(db *mongo.Database, logger *zap.Logger) *AudioRepository {
	return &AudioRepository{
		collection: db.Collection(collectionAudio),
		logger:     logger,
	}
}

// Create implements repositories.AudioRepository
func (r *AudioRepository) Create(ctx context.Context, audio *entities.Audio) error {
	if audio == nil {
		return errors.New("audio cannot be nil")
	}
	if err := audio.Validate(); err != nil {
		return err
	}
	if audio.ID.IsZero() {
		audio.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctx, audio); err != nil {
		r.logger.Error("Failed to create audio record", zap.Error(err), zap.String("user_id", audio.UserID))
		return fmt.Errorf("failed to create audio: %w", err)
	}
	return nil
}

// GetByID implements repositories.AudioRepository
func (r *AudioRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entities.Audio, error) {
	var audio entities.Audio
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&audio); err != nil {
		return nil, lookupError(err, "audio", id)
	}
	return &audio, nil
}
