package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

var _ repositories.MessageRepository = (*MessageRepository)(nil)

type MessageRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMessageRepository creates a new MongoDB message repository
func NewMessageRepository(db *mongo.Database, logger *zap.Logger) *MessageRepository {
	return &MessageRepository{
		collection: db.Collection(collectionMessages),
		logger:     logger,
	}
}

// Create implements repositories.MessageRepository
func (r *MessageRepository) Create(ctx context.Context, message *entities.Message) error {
	if message == nil {
		return errors.New("message cannot be nil")
	}
	if err := message.Validate(); err != nil {
		return err
	}
	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = entities.Now()
	}

	if _, err := r.collection.InsertOne(ctx, message); err != nil {
		r.logger.Error("Failed to create message", zap.Error(err),
			zap.String("conversation_id", message.ConversationID.Hex()))
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetByID implements repositories.MessageRepository
func (r *MessageRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entities.Message, error) {
	var message entities.Message
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&message); err != nil {
		return nil, lookupError(err, "message", id)
	}
	return &message, nil
}

// ListRecent implements repositories.MessageRepository. ObjectIDs grow with
// insertion, so _id breaks timestamp ties in insertion order.
func (r *MessageRepository) ListRecent(ctx context.Context, conversationID primitive.ObjectID, limit int) ([]*entities.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for conversation %s: %w", conversationID.Hex(), err)
	}

	messages := []*entities.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	// Fetched newest first to apply the limit; hand back oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
	return messages, nil
}

// LatestBySender implements repositories.MessageRepository
func (r *MessageRepository) LatestBySender(ctx context.Context, conversationID primitive.ObjectID, sender entities.Sender) (*entities.Message, error) {
	filter := bson.M{"conversation_id": conversationID, "sender": sender}
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})

	var message entities.Message
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&message); err != nil {
		return nil, lookupError(err, "latest message in conversation", conversationID)
	}
	return &message, nil
}

// SetFeedbackID implements repositories.MessageRepository. The filter only
// matches while feedback_id is unset, which makes the write set-once.
func (r *MessageRepository) SetFeedbackID(ctx context.Context, messageID, feedbackID primitive.ObjectID) error {
	if feedbackID.IsZero() {
		return errors.New("feedback ID cannot be empty")
	}

	filter := bson.M{
		"_id": messageID,
		"$or": bson.A{
			bson.M{"feedback_id": bson.M{"$exists": false}},
			bson.M{"feedback_id": nil},
		},
	}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"feedback_id": feedbackID}})
	if err != nil {
		return fmt.Errorf("failed to link feedback to message %s: %w", messageID.Hex(), err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	existing, err := r.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if existing.FeedbackID != nil && *existing.FeedbackID == feedbackID {
		return nil
	}
	return fmt.Errorf("message %s: %w", messageID.Hex(), domain.ErrAlreadyLinked)
}
