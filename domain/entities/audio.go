package entities

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Audio is the durable record of a successfully transcribed utterance.
// Records are only written when transcription succeeded, so HasError is
// always false for newly created documents; it is kept for older data.
type Audio struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID        string             `json:"user_id" bson:"user_id"`
	FilePath      string             `json:"file_path" bson:"file_path"`
	Transcription string             `json:"transcription" bson:"transcription"`
	HasError      bool               `json:"has_error" bson:"has_error"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}

// NewAudio creates an audio record for a durable artifact
func NewAudio(userID, filePath, transcription string) *Audio {
	return &Audio{
		ID:            primitive.NewObjectID(),
		UserID:        userID,
		FilePath:      filePath,
		Transcription: transcription,
		CreatedAt:     Now(),
	}
}

func (a *Audio) Validate() error {
	if a.UserID == "" {
		return errors.New("user_id is required")
	}
	if a.FilePath == "" {
		return errors.New("file_path is required")
	}
	return nil
}
