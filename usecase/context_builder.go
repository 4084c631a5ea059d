package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

// Turn is one line of a conversation transcript
type Turn struct {
	Speaker entities.Sender
	Text    string
}

// ConversationContext is everything a prompt needs about a conversation.
// Conversation is nil when the conversation no longer exists.
type ConversationContext struct {
	Conversation *entities.Conversation
	Scenario     entities.Scenario
	Turns        []Turn
}

// SenderLabel labels turns with the raw sender value ("user", "ai")
func SenderLabel(s entities.Sender) string {
	return string(s)
}

// DisplayLabel labels turns as "User" or "AI"
func DisplayLabel(s entities.Sender) string {
	if s == entities.SenderUser {
		return "User"
	}
	return "AI"
}

// Transcript renders the turns as "<label>: <text>" lines
func (c *ConversationContext) Transcript(label func(entities.Sender) string) string {
	lines := make([]string, 0, len(c.Turns))
	for _, turn := range c.Turns {
		lines = append(lines, label(turn.Speaker)+": "+turn.Text)
	}
	return strings.Join(lines, "\n")
}

// ContextBuilder assembles conversation contexts from storage
type ContextBuilder struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	logger        *zap.Logger
}

// NewContextBuilder creates a new context builder
func NewContextBuilder(conversations repositories.ConversationRepository, messages repositories.MessageRepository, logger *zap.Logger) *ContextBuilder {
	return &ContextBuilder{
		conversations: conversations,
		messages:      messages,
		logger:        logger,
	}
}

// Build loads the conversation and its newest limit messages. A missing
// conversation yields default scenario values instead of an error.
func (b *ContextBuilder) Build(ctx context.Context, conversationID primitive.ObjectID, limit int) (*ConversationContext, error) {
	conversation, err := b.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to load conversation: %w", err)
		}
		b.logger.Warn("Conversation not found, using default scenario",
			zap.String("conversationID", conversationID.Hex()))
		conversation = nil
	}
	return b.build(ctx, conversation, conversationID, limit)
}

// BuildFor builds the context of an already loaded conversation
func (b *ContextBuilder) BuildFor(ctx context.Context, conversation *entities.Conversation, limit int) (*ConversationContext, error) {
	return b.build(ctx, conversation, conversation.ID, limit)
}

func (b *ContextBuilder) build(ctx context.Context, conversation *entities.Conversation, conversationID primitive.ObjectID, limit int) (*ConversationContext, error) {
	messages, err := b.messages.ListRecent(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	// Stable so equal timestamps keep insertion order.
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})

	turns := make([]Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, Turn{Speaker: m.Sender, Text: m.Content})
	}

	return &ConversationContext{
		Conversation: conversation,
		Scenario:     conversation.Scenario(),
		Turns:        turns,
	}, nil
}
