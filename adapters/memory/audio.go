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

var _ repositories.AudioRepository = (*AudioRepository)(nil)

// AudioRepository is an in-memory AudioRepository
type AudioRepository struct {
	mu     sync.RWMutex
	audios map[primitive.ObjectID]*entities.Audio
}

func NewAudioRepository() *AudioRepository {
	return &AudioRepository{audios: make(map[primitive.ObjectID]*entities.Audio)}
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

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.audios[audio.ID]; exists {
		return fmt.Errorf("audio %s already exists", audio.ID.Hex())
	}
	a := *audio
	r.audios[a.ID] = &a
	return nil
}

// GetByID implements repositories.AudioRepository
func (r *AudioRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entities.Audio, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.audios[id]
	if !exists {
		return nil, fmt.Errorf("audio %s: %w", id.Hex(), domain.ErrNotFound)
	}
	audioCopy := *a
	return &audioCopy, nil
}

// Count returns the number of stored records
func (r *AudioRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.audios)
}
