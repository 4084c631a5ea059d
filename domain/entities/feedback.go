package entities

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TargetType is what a feedback record critiques
type TargetType string

const (
	TargetMessage      TargetType = "message"
	TargetConversation TargetType = "conversation"
)

// Feedback is immutable once inserted
type Feedback struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID        string             `json:"user_id" bson:"user_id"`
	TargetID      primitive.ObjectID `json:"target_id" bson:"target_id"`
	TargetType    TargetType         `json:"target_type" bson:"target_type"`
	Transcription string             `json:"transcription,omitempty" bson:"transcription,omitempty"`
	UserFeedback  string             `json:"user_feedback" bson:"user_feedback"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}

// NewMessageFeedback creates feedback targeting a single user message
func NewMessageFeedback(userID string, messageID primitive.ObjectID, transcription, text string) *Feedback {
	return &Feedback{
		ID:            primitive.NewObjectID(),
		UserID:        userID,
		TargetID:      messageID,
		TargetType:    TargetMessage,
		Transcription: transcription,
		UserFeedback:  text,
		CreatedAt:     Now(),
	}
}

func (f *Feedback) Validate() error {
	if f.UserID == "" {
		return errors.New("user_id is required")
	}
	if f.TargetID.IsZero() {
		return errors.New("target_id is required")
	}
	if f.TargetType != TargetMessage && f.TargetType != TargetConversation {
		return errors.New("invalid target_type")
	}
	if f.UserFeedback == "" {
		return errors.New("user_feedback is required")
	}
	return nil
}
