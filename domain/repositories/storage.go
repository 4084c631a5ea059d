package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
)

// Lookups return an error wrapping domain.ErrNotFound when the document does
// not exist.

// AudioRepository stores records of successfully transcribed utterances
type AudioRepository interface {
	Create(ctx context.Context, audio *entities.Audio) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*entities.Audio, error)
}

// ConversationRepository stores role-play conversations
type ConversationRepository interface {
	Create(ctx context.Context, conversation *entities.Conversation) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*entities.Conversation, error)
	// ListByUser returns the newest conversations first
	ListByUser(ctx context.Context, userID string, limit int) ([]*entities.Conversation, error)
	// Delete removes a conversation; a missing one is not an error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// MessageRepository stores conversation messages
type MessageRepository interface {
	Create(ctx context.Context, message *entities.Message) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*entities.Message, error)
	// ListRecent returns at most limit of the newest messages, ordered by
	// timestamp ascending with ties in insertion order. limit <= 0 means all.
	ListRecent(ctx context.Context, conversationID primitive.ObjectID, limit int) ([]*entities.Message, error)
	// LatestBySender returns the newest message of the given sender
	LatestBySender(ctx context.Context, conversationID primitive.ObjectID, sender entities.Sender) (*entities.Message, error)
	// SetFeedbackID sets the feedback reference only if none is set yet.
	// Setting the same id twice is a no-op; a different existing id yields
	// domain.ErrAlreadyLinked.
	SetFeedbackID(ctx context.Context, messageID, feedbackID primitive.ObjectID) error
}

// FeedbackRepository stores immutable feedback records
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *entities.Feedback) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*entities.Feedback, error)
	GetLatestByTarget(ctx context.Context, targetID primitive.ObjectID, targetType entities.TargetType) (*entities.Feedback, error)
}

// FeedbackJobRepository is the outbox of background feedback work
type FeedbackJobRepository interface {
	Create(ctx context.Context, job *entities.FeedbackJob) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*entities.FeedbackJob, error)
	// Claim atomically leases the job if it is claimable at now and counts
	// the attempt. It returns nil without error when the job is not
	// claimable or does not exist.
	Claim(ctx context.Context, id primitive.ObjectID, now time.Time, lease time.Duration) (*entities.FeedbackJob, error)
	// ClaimNextDue leases the oldest claimable job, or returns nil
	ClaimNextDue(ctx context.Context, now time.Time, lease time.Duration) (*entities.FeedbackJob, error)
	SaveFeedbackID(ctx context.Context, id, feedbackID primitive.ObjectID, now time.Time) error
	MarkDone(ctx context.Context, id primitive.ObjectID, now time.Time) error
	Reschedule(ctx context.Context, id primitive.ObjectID, nextAttemptAt time.Time, lastError string, now time.Time) error
	MarkDead(ctx context.Context, id primitive.ObjectID, lastError string, now time.Time) error
}
