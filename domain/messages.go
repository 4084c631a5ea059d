package domain

import (
	"time"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
)

// User-facing texts shown when an utterance could not be used. They are
// display strings only; decisions are made on TranscriptionKind.
const (
	TranscriptionEmptyMessage  = "No speech detected in the audio. Please try again."
	TranscriptionFailedMessage = "Sorry, we couldn't process your audio. Please try again."
	AudioStorageWarning        = "Transcription successful but audio storage failed"
	FeedbackPendingMessage     = "Feedback is still being generated. Please try again in a moment."
)

// TranscriptionResponse is returned by the speech-to-text endpoint
type TranscriptionResponse struct {
	AudioID       *string `json:"audio_id"`
	Transcription string  `json:"transcription"`
	Success       bool    `json:"success"`
	Warning       string  `json:"warning,omitempty"`
}

// CreateConversationRequest carries the scenario typed by the user
type CreateConversationRequest struct {
	UserRole  string `json:"user_role"`
	AIRole    string `json:"ai_role"`
	Situation string `json:"situation"`
}

// CreateConversationResponse returns the refined conversation and the
// opening line of the model
type CreateConversationResponse struct {
	Conversation   *entities.Conversation `json:"conversation"`
	InitialMessage *entities.Message      `json:"initial_message"`
}

// TurnResponse is returned after a user turn was processed
type TurnResponse struct {
	UserMessage *entities.Message `json:"user_message"`
	AIMessage   *entities.Message `json:"ai_message"`
}

// FeedbackPayload is the ready form of a feedback lookup
type FeedbackPayload struct {
	ID           string    `json:"id"`
	UserFeedback string    `json:"user_feedback"`
	CreatedAt    time.Time `json:"created_at"`
}

// FeedbackResponse holds either FeedbackPendingMessage (not ready) or a
// FeedbackPayload (ready) in UserFeedback.
type FeedbackResponse struct {
	UserFeedback interface{} `json:"user_feedback"`
	IsReady      bool        `json:"is_ready"`
}

// LatestAIMessage is the last model utterance of a conversation
type LatestAIMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// VoiceContextResponse tells a client which voice to expect for a message
type VoiceContextResponse struct {
	ConversationID  string             `json:"conversation_id,omitempty"`
	VoiceType       entities.VoiceType `json:"voice_type"`
	LatestAIMessage *LatestAIMessage   `json:"latest_ai_message,omitempty"`
}

// FeedbackReadyEvent is pushed to connected clients once feedback is linked
type FeedbackReadyEvent struct {
	Type           string    `json:"type"`
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	FeedbackID     string    `json:"feedback_id"`
	Timestamp      time.Time `json:"timestamp"`
}

const EventTypeFeedbackReady = "feedback_ready"
