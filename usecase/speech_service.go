package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

const (
	DemoSpeechText     = "Hello, how are you?"
	FallbackGreeting   = "Hello, how can I help you today?"
	MaxDemoSpeechRunes = 500
)

// SpeechConfig configures speech synthesis requests
type SpeechConfig struct {
	Speed    float64
	Language string
	Format   string
	Timeout  time.Duration

	// MaxAttempts bounds synthesis calls for errors the provider marks
	// retryable. Audio has not been sent yet, so a retry is invisible to
	// the client.
	MaxAttempts int
	RetryDelay  time.Duration
}

// SpeechService speaks AI messages in their conversation's voice
type SpeechService struct {
	messages      repositories.MessageRepository
	conversations repositories.ConversationRepository
	tts           repositories.TextToSpeech
	config        SpeechConfig
	logger        *zap.Logger
}

// NewSpeechService creates a new speech service
func NewSpeechService(
	messages repositories.MessageRepository,
	conversations repositories.ConversationRepository,
	tts repositories.TextToSpeech,
	config SpeechConfig,
	logger *zap.Logger,
) *SpeechService {
	if config.Speed == 0 {
		config.Speed = 1.3
	}
	if config.Language == "" {
		config.Language = "en-US"
	}
	if config.Format == "" {
		config.Format = "mp3"
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 2
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 500 * time.Millisecond
	}
	return &SpeechService{
		messages:      messages,
		conversations: conversations,
		tts:           tts,
		config:        config,
		logger:        logger,
	}
}

// StreamMessage starts synthesis of an AI message. The caller owns the
// returned stream and must close it.
func (s *SpeechService) StreamMessage(ctx context.Context, userID, messageID string) (*repositories.SpeechStream, error) {
	message, conversation, err := s.loadOwned(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if message.Sender != entities.SenderAI {
		return nil, fmt.Errorf("%w: only AI messages can be spoken", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(message.Content) == "" {
		return nil, fmt.Errorf("%w: message has no text", domain.ErrInvalidInput)
	}

	return s.speak(ctx, message.Content, conversation.Voice(), zap.String("messageID", messageID))
}

// DemoSpeech speaks arbitrary text in the default voice without touching
// storage. Empty text speaks DemoSpeechText.
func (s *SpeechService) DemoSpeech(ctx context.Context, text string) (*repositories.SpeechStream, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = DemoSpeechText
	}
	if utf8.RuneCountInString(text) > MaxDemoSpeechRunes {
		return nil, fmt.Errorf("%w: text exceeds %d characters", domain.ErrInvalidInput, MaxDemoSpeechRunes)
	}
	return s.speak(ctx, text, entities.DefaultVoice, zap.Bool("demo", true))
}

// speak starts synthesis. The timeout bounds the whole stream, so it is
// released when the reader closes the stream.
func (s *SpeechService) speak(ctx context.Context, text string, voice entities.VoiceType, field zap.Field) (*repositories.SpeechStream, error) {
	var cancel context.CancelFunc = func() {}
	if s.config.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
	}

	stream, err := s.synthesize(ctx, repositories.SpeechRequest{
		Text:     text,
		Voice:    voice,
		Format:   s.config.Format,
		Speed:    s.config.Speed,
		Language: s.config.Language,
	})
	if err != nil {
		cancel()
		s.logger.Error("Speech synthesis failed", field, zap.String("voice", string(voice)), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Speech stream started", field, zap.String("voice", string(voice)))
	return &repositories.SpeechStream{
		ReadCloser:  &cancelOnClose{SpeechStream: stream, cancel: cancel},
		ContentType: stream.ContentType,
	}, nil
}

// synthesize calls the provider, retrying errors it marks retryable
func (s *SpeechService) synthesize(ctx context.Context, req repositories.SpeechRequest) (*repositories.SpeechStream, error) {
	for attempt := 1; ; attempt++ {
		stream, err := s.tts.Synthesize(ctx, req)
		if err == nil {
			return stream, nil
		}

		var synthErr *repositories.SynthesisError
		if !errors.As(err, &synthErr) || !synthErr.Retryable || attempt >= s.config.MaxAttempts {
			return nil, err
		}
		s.logger.Warn("Retrying speech synthesis",
			zap.Int("attempt", attempt),
			zap.String("voice", string(req.Voice)),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(s.config.RetryDelay):
		}
	}
}

// VoiceContext tells the client which voice the conversation of a message
// uses and what the model said last
func (s *SpeechService) VoiceContext(ctx context.Context, userID, messageID string) (*domain.VoiceContextResponse, error) {
	_, conversation, err := s.loadOwned(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}

	resp := &domain.VoiceContextResponse{
		ConversationID: conversation.ID.Hex(),
		VoiceType:      conversation.Voice(),
	}

	latest, err := s.messages.LatestBySender(ctx, conversation.ID, entities.SenderAI)
	switch {
	case err == nil:
		resp.LatestAIMessage = &domain.LatestAIMessage{
			ID:        latest.ID.Hex(),
			Content:   latest.Content,
			Timestamp: latest.Timestamp,
		}
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("failed to load latest AI message: %w", err)
	}
	return resp, nil
}

// FallbackVoiceContext answers a voice context lookup without storage so
// clients can keep playing audio when the message is unknown to them
func (s *SpeechService) FallbackVoiceContext(messageID string) *domain.VoiceContextResponse {
	s.logger.Info("Fallback voice context requested", zap.String("messageID", messageID))
	return &domain.VoiceContextResponse{
		VoiceType: entities.DefaultVoice,
		LatestAIMessage: &domain.LatestAIMessage{
			ID:        messageID,
			Content:   FallbackGreeting,
			Timestamp: entities.Now(),
		},
	}
}

func (s *SpeechService) loadOwned(ctx context.Context, userID, messageID string) (*entities.Message, *entities.Conversation, error) {
	msgID, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid message id", domain.ErrInvalidInput)
	}
	message, err := s.messages.GetByID(ctx, msgID)
	if err != nil {
		return nil, nil, err
	}
	conversation, err := s.conversations.GetByID(ctx, message.ConversationID)
	if err != nil {
		return nil, nil, err
	}
	if !conversation.OwnedBy(userID) {
		return nil, nil, fmt.Errorf("message: %w", domain.ErrNotFound)
	}
	return message, conversation, nil
}

type cancelOnClose struct {
	*repositories.SpeechStream
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.SpeechStream.Close()
}
