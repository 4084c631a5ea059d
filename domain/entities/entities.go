package entities

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Scenario defaults used whenever a conversation is missing or incomplete.
const (
	DefaultUserRole  = "Student"
	DefaultAIRole    = "Teacher"
	DefaultSituation = "General conversation"
)

// Sender identifies who authored a message
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Conversation is a role-play session owned by one user. It is never updated
// after creation apart from the legacy feedback_ids array.
type Conversation struct {
	ID          primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	UserID      string               `json:"user_id" bson:"user_id"`
	UserRole    string               `json:"user_role" bson:"user_role"`
	AIRole      string               `json:"ai_role" bson:"ai_role"`
	Situation   string               `json:"situation" bson:"situation"`
	VoiceType   VoiceType            `json:"voice_type" bson:"voice_type"`
	FeedbackIDs []primitive.ObjectID `json:"feedback_ids,omitempty" bson:"feedback_ids,omitempty"`
	CreatedAt   time.Time            `json:"created_at" bson:"created_at"`
}

// Scenario is the role-play framing shared by prompts
type Scenario struct {
	UserRole  string
	AIRole    string
	Situation string
}

// Message is a single utterance inside a conversation
type Message struct {
	ID             primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID  `json:"conversation_id" bson:"conversation_id"`
	Sender         Sender              `json:"sender" bson:"sender"`
	Content        string              `json:"content" bson:"content"`
	AudioPath      string              `json:"audio_path,omitempty" bson:"audio_path,omitempty"`
	Transcription  string              `json:"transcription,omitempty" bson:"transcription,omitempty"`
	FeedbackID     *primitive.ObjectID `json:"feedback_id,omitempty" bson:"feedback_id,omitempty"`
	Timestamp      time.Time           `json:"timestamp" bson:"timestamp"`
}

// Now returns the current time at the precision the document store keeps,
// so timestamps compare the same before and after a round trip.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// NewConversation creates a conversation for the given user and scenario
func NewConversation(userID string, scenario Scenario, voice VoiceType) *Conversation {
	return &Conversation{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		UserRole:  scenario.UserRole,
		AIRole:    scenario.AIRole,
		Situation: scenario.Situation,
		VoiceType: voice,
		CreatedAt: Now(),
	}
}

// Scenario returns the conversation framing with defaults filled in
func (c *Conversation) Scenario() Scenario {
	if c == nil {
		return Scenario{UserRole: DefaultUserRole, AIRole: DefaultAIRole, Situation: DefaultSituation}
	}
	return Scenario{
		UserRole:  orDefault(c.UserRole, DefaultUserRole),
		AIRole:    orDefault(c.AIRole, DefaultAIRole),
		Situation: orDefault(c.Situation, DefaultSituation),
	}
}

// Voice returns the stored voice, falling back to the default voice
func (c *Conversation) Voice() VoiceType {
	if c == nil || c.VoiceType == "" {
		return DefaultVoice
	}
	return c.VoiceType
}

// OwnedBy reports whether the conversation belongs to userID
func (c *Conversation) OwnedBy(userID string) bool {
	return c != nil && userID != "" && c.UserID == userID
}

func (c *Conversation) Validate() error {
	if c.UserID == "" {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(c.UserRole) == "" || strings.TrimSpace(c.AIRole) == "" {
		return errors.New("user_role and ai_role are required")
	}
	if c.VoiceType != "" && !c.VoiceType.IsValid() {
		return errors.New("invalid voice_type")
	}
	return nil
}

// NewUserMessage creates the message for a transcribed user utterance
func NewUserMessage(conversationID primitive.ObjectID, transcription, audioPath string) *Message {
	return &Message{
		ID:             primitive.NewObjectID(),
		ConversationID: conversationID,
		Sender:         SenderUser,
		Content:        transcription,
		AudioPath:      audioPath,
		Transcription:  transcription,
		Timestamp:      Now(),
	}
}

// NewAIMessage creates a message authored by the model
func NewAIMessage(conversationID primitive.ObjectID, content string) *Message {
	return &Message{
		ID:             primitive.NewObjectID(),
		ConversationID: conversationID,
		Sender:         SenderAI,
		Content:        content,
		Timestamp:      Now(),
	}
}

// HasFeedback reports whether the feedback reference was already set
func (m *Message) HasFeedback() bool {
	return m.FeedbackID != nil && !m.FeedbackID.IsZero()
}

func (m *Message) Validate() error {
	if m.ConversationID.IsZero() {
		return errors.New("conversation_id is required")
	}
	if m.Sender != SenderUser && m.Sender != SenderAI {
		return errors.New("invalid sender")
	}
	if m.Sender == SenderAI && m.Transcription != "" {
		return errors.New("ai messages cannot carry a transcription")
	}
	return nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
