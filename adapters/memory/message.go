package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

var _ repositories.MessageRepository = (*MessageRepository)(nil)

// MessageRepository is an in-memory MessageRepository. Messages are kept in
// insertion order so ties on timestamp resolve the way they were written.
type MessageRepository struct {
	mu       sync.RWMutex
	ordered  []*entities.Message
	messages map[primitive.ObjectID]*entities.Message
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{
		messages: make(map[primitive.ObjectID]*entities.Message),
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

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.messages[message.ID]; exists {
		return fmt.Errorf("message %s already exists", message.ID.Hex())
	}

	m := *message
	r.messages[m.ID] = &m
	r.ordered = append(r.ordered, &m)
	return nil
}

// GetByID implements repositories.MessageRepository
func (r *MessageRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entities.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.messages[id]
	if !exists {
		return nil, fmt.Errorf("message %s: %w", id.Hex(), domain.ErrNotFound)
	}
	return copyMessage(m), nil
}

// ListRecent implements repositories.MessageRepository
func (r *MessageRepository) ListRecent(ctx context.Context, conversationID primitive.ObjectID, limit int) ([]*entities.Message, error) {
	r.mu.RLock()
	var result []*entities.Message
	for _, m := range r.ordered {
		if m.ConversationID == conversationID {
			result = append(result, copyMessage(m))
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

// LatestBySender implements repositories.MessageRepository
func (r *MessageRepository) LatestBySender(ctx context.Context, conversationID primitive.ObjectID, sender entities.Sender) (*entities.Message, error) {
	all, err := r.ListRecent(ctx, conversationID, 0)
	if err != nil {
		return nil, err
	}
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Sender == sender {
			return all[i], nil
		}
	}
	return nil, fmt.Errorf("no %s message in conversation %s: %w", sender, conversationID.Hex(), domain.ErrNotFound)
}

// SetFeedbackID implements repositories.MessageRepository
func (r *MessageRepository) SetFeedbackID(ctx context.Context, messageID, feedbackID primitive.ObjectID) error {
	if feedbackID.IsZero() {
		return errors.New("feedback ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.messages[messageID]
	if !exists {
		return fmt.Errorf("message %s: %w", messageID.Hex(), domain.ErrNotFound)
	}
	if m.HasFeedback() {
		if *m.FeedbackID == feedbackID {
			return nil
		}
		return fmt.Errorf("message %s: %w", messageID.Hex(), domain.ErrAlreadyLinked)
	}

	id := feedbackID
	m.FeedbackID = &id
	return nil
}

func copyMessage(m *entities.Message) *entities.Message {
	c := *m
	if m.FeedbackID != nil {
		id := *m.FeedbackID
		c.FeedbackID = &id
	}
	return &c
}
