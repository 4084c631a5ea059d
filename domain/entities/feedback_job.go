package entities

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobStatus represents the state of a feedback job
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusDead    JobStatus = "dead"
)

// FeedbackJob is the persisted unit of background feedback work. It carries a
// snapshot of the turn so the job can run without the originating request.
type FeedbackJob struct {
	ID             primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID         string              `json:"user_id" bson:"user_id"`
	ConversationID primitive.ObjectID  `json:"conversation_id" bson:"conversation_id"`
	MessageID      primitive.ObjectID  `json:"message_id" bson:"message_id"`
	AudioID        primitive.ObjectID  `json:"audio_id" bson:"audio_id"`
	Transcription  string              `json:"transcription" bson:"transcription"`
	FilePath       string              `json:"file_path" bson:"file_path"`
	Status         JobStatus           `json:"status" bson:"status"`
	Attempts       int                 `json:"attempts" bson:"attempts"`
	FeedbackID     *primitive.ObjectID `json:"feedback_id,omitempty" bson:"feedback_id,omitempty"`
	LastError      string              `json:"last_error,omitempty" bson:"last_error,omitempty"`
	NextAttemptAt  time.Time           `json:"next_attempt_at" bson:"next_attempt_at"`
	LeaseUntil     time.Time           `json:"lease_until" bson:"lease_until"`
	CreatedAt      time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" bson:"updated_at"`
}

// NewFeedbackJob snapshots a persisted user message for background feedback
func NewFeedbackJob(userID string, message *Message, audio *Audio) *FeedbackJob {
	now := Now()
	job := &FeedbackJob{
		ID:             primitive.NewObjectID(),
		UserID:         userID,
		ConversationID: message.ConversationID,
		MessageID:      message.ID,
		Transcription:  message.Transcription,
		FilePath:       message.AudioPath,
		Status:         JobStatusPending,
		NextAttemptAt:  now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if audio != nil {
		job.AudioID = audio.ID
	}
	return job
}

// Claimable reports whether a worker may take the job at now: either it is
// pending and due, or its previous lease was abandoned.
func (j *FeedbackJob) Claimable(now time.Time) bool {
	switch j.Status {
	case JobStatusPending:
		return !j.NextAttemptAt.After(now)
	case JobStatusRunning:
		return j.LeaseUntil.Before(now)
	}
	return false
}

// HasFeedback reports whether the feedback record was already stored
func (j *FeedbackJob) HasFeedback() bool {
	return j.FeedbackID != nil && !j.FeedbackID.IsZero()
}

// IsFinal reports whether no further attempts will be made
func (j *FeedbackJob) IsFinal() bool {
	return j.Status == JobStatusDone || j.Status == JobStatusDead
}

func (j *FeedbackJob) Validate() error {
	if j.UserID == "" {
		return errors.New("user_id is required")
	}
	if j.MessageID.IsZero() || j.ConversationID.IsZero() {
		return errors.New("message_id and conversation_id are required")
	}
	switch j.Status {
	case JobStatusPending, JobStatusRunning, JobStatusDone, JobStatusDead:
	default:
		return errors.New("invalid job status")
	}
	return nil
}
