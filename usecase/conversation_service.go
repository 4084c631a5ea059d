package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

const (
	DefaultTurnHistoryLimit     = 20
	DefaultFeedbackHistoryLimit = 10
	DefaultConversationPageSize = 50
)

// Turn states, logged under the turn_state field
const (
	stateAudioReceived     = "AUDIO_RECEIVED"
	stateTranscribed       = "TRANSCRIBED"
	stateMessagePersisted  = "MESSAGE_PERSISTED"
	stateFeedbackScheduled = "FEEDBACK_SCHEDULED"
	stateContextBuilt      = "CONTEXT_BUILT"
	stateResponseGenerated = "AI_RESPONSE_GENERATED"
	stateResponseReturned  = "RESPONSE_RETURNED"
)

var refinementSchema = jsonschema.MustCompileString("refinement.json", `{
	"type": "object",
	"required": ["refined_user_role", "refined_ai_role", "refined_situation", "response", "ai_gender"],
	"properties": {
		"refined_user_role": {"type": "string", "pattern": "\\S"},
		"refined_ai_role":   {"type": "string", "pattern": "\\S"},
		"refined_situation": {"type": "string", "pattern": "\\S"},
		"response":          {"type": "string", "pattern": "\\S"},
		"ai_gender":         {"type": "string", "pattern": "\\S"}
	}
}`)

// scenarioRefinement is the JSON the model returns when a conversation starts
type scenarioRefinement struct {
	UserRole  string `json:"refined_user_role"`
	AIRole    string `json:"refined_ai_role"`
	Situation string `json:"refined_situation"`
	Response  string `json:"response"`
	AIGender  string `json:"ai_gender"`
}

// FeedbackScheduler hands a feedback job to background processing. It must
// return without waiting for the job.
type FeedbackScheduler interface {
	Schedule(job *entities.FeedbackJob)
}

// ConversationConfig configures the conversation service
type ConversationConfig struct {
	TurnHistoryLimit int
	LLMTimeout       time.Duration
}

// ConversationService creates conversations and orchestrates user turns
type ConversationService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	audios        repositories.AudioRepository
	llm           repositories.LargeLanguageModel
	contexts      *ContextBuilder
	scheduler     FeedbackScheduler
	config        ConversationConfig
	pickVoice     func(n int) int
	logger        *zap.Logger
}

// NewConversationService creates a new conversation service
func NewConversationService(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	audios repositories.AudioRepository,
	llm repositories.LargeLanguageModel,
	contexts *ContextBuilder,
	scheduler FeedbackScheduler,
	config ConversationConfig,
	logger *zap.Logger,
) *ConversationService {
	if config.TurnHistoryLimit <= 0 {
		config.TurnHistoryLimit = DefaultTurnHistoryLimit
		logger.Info("Using default turn history limit", zap.Int("limit", config.TurnHistoryLimit))
	}
	if config.LLMTimeout <= 0 {
		config.LLMTimeout = 60 * time.Second
		logger.Info("Using default LLM timeout", zap.Duration("timeout", config.LLMTimeout))
	}
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		audios:        audios,
		llm:           llm,
		contexts:      contexts,
		scheduler:     scheduler,
		config:        config,
		pickVoice:     rand.Intn,
		logger:        logger,
	}
}

// CreateConversation refines the scenario with the model, then stores the
// conversation and the model's opening message. Nothing is stored when the
// model output is unusable.
func (s *ConversationService) CreateConversation(ctx context.Context, userID string, req domain.CreateConversationRequest) (*domain.CreateConversationResponse, error) {
	userRole := strings.TrimSpace(req.UserRole)
	aiRole := strings.TrimSpace(req.AIRole)
	situation := strings.TrimSpace(req.Situation)
	if userID == "" || userRole == "" || aiRole == "" || situation == "" {
		return nil, fmt.Errorf("%w: user_role, ai_role and situation are required", domain.ErrInvalidInput)
	}

	raw, err := s.generate(ctx, refinementPrompt(userRole, aiRole, situation))
	if err != nil {
		s.logger.Error("Scenario refinement failed", zap.String("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to refine scenario: %v", domain.ErrProcessing, err)
	}

	refined, err := parseRefinement(raw)
	if err != nil {
		s.logger.Error("Invalid scenario refinement",
			zap.String("userID", userID),
			zap.String("response", raw),
			zap.Error(err))
		return nil, fmt.Errorf("%w: invalid scenario refinement: %v", domain.ErrProcessing, err)
	}

	voice := entities.VoiceForGender(entities.ParseGender(refined.AIGender), s.pickVoice)
	conversation := entities.NewConversation(userID, entities.Scenario{
		UserRole:  refined.UserRole,
		AIRole:    refined.AIRole,
		Situation: refined.Situation,
	}, voice)

	if err := s.conversations.Create(ctx, conversation); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	initial := entities.NewAIMessage(conversation.ID, refined.Response)
	if err := s.messages.Create(ctx, initial); err != nil {
		// A conversation without its opening line cannot be resumed
		if delErr := s.conversations.Delete(context.WithoutCancel(ctx), conversation.ID); delErr != nil {
			s.logger.Error("Failed to remove conversation without initial message",
				zap.String("conversationID", conversation.ID.Hex()),
				zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to create initial message: %w", err)
	}

	s.logger.Info("Conversation created",
		zap.String("conversationID", conversation.ID.Hex()),
		zap.String("userID", userID),
		zap.String("voice", string(voice)))

	return &domain.CreateConversationResponse{Conversation: conversation, InitialMessage: initial}, nil
}

func parseRefinement(raw string) (*scenarioRefinement, error) {
	body := []byte(StripCodeFence(raw))

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if err := refinementSchema.Validate(payload); err != nil {
		return nil, err
	}

	var refined scenarioRefinement
	if err := json.Unmarshal(body, &refined); err != nil {
		return nil, err
	}
	refined.Response = StripCodeFence(refined.Response)
	return &refined, nil
}

// SubmitTurn turns a stored utterance into a user message, schedules its
// feedback and answers in character.
func (s *ConversationService) SubmitTurn(ctx context.Context, userID, conversationID, audioID string) (*domain.TurnResponse, error) {
	convID, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid conversation id", domain.ErrInvalidInput)
	}
	audID, err := primitive.ObjectIDFromHex(audioID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid audio id", domain.ErrInvalidInput)
	}

	logger := s.logger.With(
		zap.String("userID", userID),
		zap.String("conversationID", conversationID),
		zap.String("audioID", audioID))
	logger.Info("Turn received", zap.String("turn_state", stateAudioReceived))

	var (
		conversation *entities.Conversation
		audio        *entities.Audio
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.conversations.GetByID(gctx, convID)
		if err != nil {
			return fmt.Errorf("conversation: %w", err)
		}
		conversation = c
		return nil
	})
	g.Go(func() error {
		a, err := s.audios.GetByID(gctx, audID)
		if err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		audio = a
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !conversation.OwnedBy(userID) {
		return nil, fmt.Errorf("conversation: %w", domain.ErrNotFound)
	}
	if audio.UserID != userID {
		return nil, fmt.Errorf("audio: %w", domain.ErrNotFound)
	}
	logger.Info("Transcription loaded", zap.String("turn_state", stateTranscribed))

	userMessage := entities.NewUserMessage(conversation.ID, audio.Transcription, audio.FilePath)
	if err := s.messages.Create(ctx, userMessage); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}
	logger.Info("User message stored",
		zap.String("turn_state", stateMessagePersisted),
		zap.String("messageID", userMessage.ID.Hex()))

	s.scheduler.Schedule(entities.NewFeedbackJob(userID, userMessage, audio))
	logger.Info("Feedback scheduled", zap.String("turn_state", stateFeedbackScheduled))

	cctx, err := s.contexts.BuildFor(ctx, conversation, s.config.TurnHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build context: %v", domain.ErrProcessing, err)
	}
	logger.Info("Context built",
		zap.String("turn_state", stateContextBuilt),
		zap.Int("turns", len(cctx.Turns)))

	reply, err := s.generate(ctx, rolePlayPrompt(cctx))
	if err != nil {
		logger.Error("Failed to generate AI response", zap.Error(err))
		return nil, fmt.Errorf("%w: failed to generate response: %v", domain.ErrProcessing, err)
	}
	logger.Info("AI response generated", zap.String("turn_state", stateResponseGenerated))

	aiMessage := entities.NewAIMessage(conversation.ID, reply)
	if err := s.messages.Create(ctx, aiMessage); err != nil {
		return nil, fmt.Errorf("failed to store AI message: %w", err)
	}

	logger.Info("Turn completed", zap.String("turn_state", stateResponseReturned))
	return &domain.TurnResponse{UserMessage: userMessage, AIMessage: aiMessage}, nil
}

// ListConversations returns the user's conversations, newest first
func (s *ConversationService) ListConversations(ctx context.Context, userID string) ([]*entities.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	return s.conversations.ListByUser(ctx, userID, DefaultConversationPageSize)
}

// ListMessages returns every message of a conversation owned by the user
func (s *ConversationService) ListMessages(ctx context.Context, userID, conversationID string) ([]*entities.Message, error) {
	convID, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid conversation id", domain.ErrInvalidInput)
	}
	conversation, err := s.conversations.GetByID(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conversation.OwnedBy(userID) {
		return nil, fmt.Errorf("conversation: %w", domain.ErrNotFound)
	}
	return s.messages.ListRecent(ctx, convID, 0)
}

// generate calls the model under the configured timeout and cleans its text
func (s *ConversationService) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.LLMTimeout)
	defer cancel()

	text, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text = StripCodeFence(text)
	if text == "" {
		return "", errors.New("empty response from model")
	}
	return text, nil
}
