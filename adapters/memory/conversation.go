// Package memory provides in-process implementations of the storage
// repositories. They are used for local development and tests.
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

var _ repositories.ConversationRepository = (*ConversationRepository)(nil)

// ConversationRepository is an in-memory ConversationRepository
type ConversationRepository struct {
	mu            sync.RWMutex
	conversations map[primitive.ObjectID]*entities.Conversation
	owners        map[string][]primitive.ObjectID // user_id -> ids in insertion order
}

func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{
		conversations: make(map[primitive.ObjectID]*entities.Conversation),
		owners:        make(map[string][]primitive.ObjectID),
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
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = entities.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conversations[conversation.ID]; exists {
		return fmt.Errorf("conversation %s already exists", conversation.ID.Hex())
	}

	c := *conversation
	r.conversations[c.ID] = &c
	r.owners[c.UserID] = append(r.owners[c.UserID], c.ID)
	return nil
}

// GetByID implements repositories.ConversationRepository
func (r *ConversationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entities.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.conversations[id]
	if !exists {
		return nil, fmt.Errorf("conversation %s: %w", id.Hex(), domain.ErrNotFound)
	}

	// Return a copy to prevent external modifications
	conversationCopy := *c
	return &conversationCopy, nil
}

// ListByUser implements repositories.ConversationRepository
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.Conversation, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.owners[userID]
	result := make([]*entities.Conversation, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		c := *r.conversations[ids[i]]
		result = append(result, &c)
	}

	// Walking backwards puts newer inserts first; the stable sort keeps that
	// for equal timestamps.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Delete implements repositories.ConversationRepository
func (r *ConversationRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.conversations[id]
	if !exists {
		return nil
	}
	delete(r.conversations, id)
	ids := r.owners[c.UserID]
	for i, owned := range ids {
		if owned == id {
			r.owners[c.UserID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}
