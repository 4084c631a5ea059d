package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

var _ repositories.FeedbackJobRepository = (*FeedbackJobRepository)(nil)

// FeedbackJobRepository is an in-memory job outbox. Jobs do not survive a
// restart; use the Mongo implementation when durability matters.
type FeedbackJobRepository struct {
	mu      sync.Mutex
	ordered []*entities.FeedbackJob
	jobs    map[primitive.ObjectID]*entities.FeedbackJob
}

func NewFeedbackJobRepository() *FeedbackJobRepository {
	return &FeedbackJobRepository{jobs: make(map[primitive.ObjectID]*entities.FeedbackJob)}
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

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID.Hex())
	}
	j := copyJob(job)
	r.jobs[j.ID] = j
	r.ordered = append(r.ordered, j)
	return nil
}

// GetByID implements repositories.FeedbackJobRepository
func (r *FeedbackJobRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entities.FeedbackJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, exists := r.jobs[id]
	if !exists {
		return nil, fmt.Errorf("job %s: %w", id.Hex(), domain.ErrNotFound)
	}
	return copyJob(j), nil
}

// Claim implements repositories.FeedbackJobRepository
func (r *FeedbackJobRepository) Claim(ctx context.Context, id primitive.ObjectID, now time.Time, lease time.Duration) (*entities.FeedbackJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, exists := r.jobs[id]
	if !exists || !j.Claimable(now) {
		return nil, nil
	}
	lock(j, now, lease)
	return copyJob(j), nil
}

// ClaimNextDue implements repositories.FeedbackJobRepository
func (r *FeedbackJobRepository) ClaimNextDue(ctx context.Context, now time.Time, lease time.Duration) (*entities.FeedbackJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, j := range r.ordered {
		if j.Claimable(now) {
			lock(j, now, lease)
			return copyJob(j), nil
		}
	}
	return nil, nil
}

// SaveFeedbackID implements repositories.FeedbackJobRepository
func (r *FeedbackJobRepository) SaveFeedbackID(ctx context.Context, id, feedbackID primitive.ObjectID, now time.Time) error {
	return r.update(id, func(j *entities.FeedbackJob) {
		fid := feedbackID
		j.FeedbackID = &fid
		j.UpdatedAt = now
	})
}

// MarkDone implements repositories.FeedbackJobRepository
func (r *FeedbackJobRepository) MarkDone(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	return r.update(id, func(j *entities.FeedbackJob) {
		j.Status = entities.JobStatusDone
		j.LastError = ""
		j.UpdatedAt = now
	})
}

// Reschedule implements repositories.FeedbackJobRepository
func (r *FeedbackJobRepository) Reschedule(ctx context.Context, id primitive.ObjectID, nextAttemptAt time.Time, lastError string, now time.Time) error {
	return r.update(id, func(j *entities.FeedbackJob) {
		j.Status = entities.JobStatusPending
		j.NextAttemptAt = nextAttemptAt
		j.LastError = lastError
		j.UpdatedAt = now
	})
}

// MarkDead implements repositories.FeedbackJobRepository
func (r *FeedbackJobRepository) MarkDead(ctx context.Context, id primitive.ObjectID, lastError string, now time.Time) error {
	return r.update(id, func(j *entities.FeedbackJob) {
		j.Status = entities.JobStatusDead
		j.LastError = lastError
		j.UpdatedAt = now
	})
}

// ListByStatus returns copies of all jobs in the given status
func (r *FeedbackJobRepository) ListByStatus(status entities.JobStatus) []*entities.FeedbackJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entities.FeedbackJob
	for _, j := range r.ordered {
		if j.Status == status {
			result = append(result, copyJob(j))
		}
	}
	return result
}

func (r *FeedbackJobRepository) update(id primitive.ObjectID, fn func(j *entities.FeedbackJob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, exists := r.jobs[id]
	if !exists {
		return fmt.Errorf("job %s: %w", id.Hex(), domain.ErrNotFound)
	}
	fn(j)
	return nil
}

func lock(j *entities.FeedbackJob, now time.Time, lease time.Duration) {
	j.Status = entities.JobStatusRunning
	j.Attempts++
	j.LeaseUntil = now.Add(lease)
	j.UpdatedAt = now
}

func copyJob(j *entities.FeedbackJob) *entities.FeedbackJob {
	c := *j
	if j.FeedbackID != nil {
		id := *j.FeedbackID
		c.FeedbackID = &id
	}
	return &c
}
