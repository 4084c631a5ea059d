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

var _ repositories.ConversationRepository = (*ConversationRepository)(nil)

type ConversationRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewConversationRepository creates a new MongoDB conversation repository
func NewConversationRepository(db *mongo.Database, logger *zap.Logger) *ConversationRepository {
	return &ConversationRepository{
		collection: db.Collection(collectionConversations),
		logger:     logger,
	}
}

// Create implements repositories.ConversationRepository
func (r *ConversationRepository) Create(ctx context.Context, conversation *entities.Conversation) error {
	if conversation == nil {
		return errors.New("conversation cannot be nil")
	}
	if err := conversation.Validate(); err != nil {
		return err
	}
	if conversation.ID.IsZero() {
		conversation.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctx, conversation); err != nil {
		r.logger.Error("Failed to create conversation", zap.Error(err), zap.String("user_id", conversation.UserID))
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	r.logger.Info("Conversation created",
		zap.String("conversation_id", conversation.ID.Hex()),
		zap.String("user_id", conversation.UserID))
	return nil
}

// GetByID implements repositories.ConversationRepository
func (r *ConversationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entities.Conversation, error) {
	var conversation entities.Conversation
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&conversation); err != nil {
		return nil, lookupError(err, "conversation", id)
	}
	return &conversation, nil
}

// ListByUser implements repositories.ConversationRepository
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.Conversation, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations for user %s: %w", userID, err)
	}

	conversations := []*entities.Conversation{}
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return conversations, nil
}

// Delete implements repositories.ConversationRepository
func (r *ConversationRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id.Hex(), err)
	}
	r.logger.Info("Conversation deleted", zap.String("conversation_id", id.Hex()))
	return nil
}
