package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

var _ repositories.FeedbackRepository = (*FeedbackRepository)(nil)

// FeedbackRepository is an in-memory FeedbackRepository. Records are
// insert-only.
type FeedbackRepository struct {
	mu       sync.RWMutex
	ordered  []*entities.Feedback
	feedback map[primitive.ObjectID]*entities.Feedback
}

func NewFeedbackRepository() *FeedbackRepository {
	return &FeedbackRepository{feedback: make(map[primitive.ObjectID]*entities.Feedback)}
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

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.feedback[feedback.ID]; exists {
		return fmt.Errorf("feedback %s already exists", feedback.ID.Hex())
	}
	f := *feedback
	r.feedback[f.ID] = &f
	r.ordered = append(r.ordered, &f)
	return nil
}

// GetByID implements repositories.FeedbackRepository
func (r *FeedbackRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entities.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, exists := r.feedback[id]
	if !exists {
		return nil, fmt.Errorf("feedback %s: %w", id.Hex(), domain.ErrNotFound)
	}
	feedbackCopy := *f
	return &feedbackCopy, nil
}

// GetLatestByTarget implements repositories.FeedbackRepository
func (r *FeedbackRepository) GetLatestByTarget(ctx context.Context, targetID primitive.ObjectID, targetType entities.TargetType) (*entities.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.ordered) - 1; i >= 0; i-- {
		f := r.ordered[i]
		if f.TargetID == targetID && f.TargetType == targetType {
			feedbackCopy := *f
			return &feedbackCopy, nil
		}
	}
	return nil, fmt.Errorf("feedback for %s %s: %w", targetType, targetID.Hex(), domain.ErrNotFound)
}

// Count returns the number of stored records
func (r *FeedbackRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}
