package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
	"github.com/NguyenNhat4/Speak-english-with-AI/internal/worker"
)

// FallbackFeedback is stored whenever the model cannot produce feedback
const FallbackFeedback = "Thank you for your response. I had trouble analyzing it in detail, but please continue practicing."

// FeedbackNotifier pushes feedback-ready events to connected clients
type FeedbackNotifier interface {
	NotifyFeedbackReady(userID string, event domain.FeedbackReadyEvent)
}

// FeedbackConfig configures the feedback pipeline
type FeedbackConfig struct {
	HistoryLimit   int
	NativeLanguage string
	LLMTimeout     time.Duration
}

// FeedbackPipeline generates, stores and links feedback for user messages
type FeedbackPipeline struct {
	messages      repositories.MessageRepository
	conversations repositories.ConversationRepository
	feedbacks     repositories.FeedbackRepository
	jobs          repositories.FeedbackJobRepository
	llm           repositories.LargeLanguageModel
	contexts      *ContextBuilder
	notifier      FeedbackNotifier
	config        FeedbackConfig
	now           func() time.Time
	logger        *zap.Logger
}

// NewFeedbackPipeline creates a new feedback pipeline. notifier may be nil.
func NewFeedbackPipeline(
	messages repositories.MessageRepository,
	conversations repositories.ConversationRepository,
	feedbacks repositories.FeedbackRepository,
	jobs repositories.FeedbackJobRepository,
	llm repositories.LargeLanguageModel,
	contexts *ContextBuilder,
	notifier FeedbackNotifier,
	config FeedbackConfig,
	logger *zap.Logger,
) *FeedbackPipeline {
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultFeedbackHistoryLimit
		logger.Info("Using default feedback history limit", zap.Int("limit", config.HistoryLimit))
	}
	if config.NativeLanguage == "" {
		config.NativeLanguage = "Vietnamese"
		logger.Info("Using default native language", zap.String("language", config.NativeLanguage))
	}
	if config.LLMTimeout <= 0 {
		config.LLMTimeout = 60 * time.Second
	}
	return &FeedbackPipeline{
		messages:      messages,
		conversations: conversations,
		feedbacks:     feedbacks,
		jobs:          jobs,
		llm:           llm,
		contexts:      contexts,
		notifier:      notifier,
		config:        config,
		now:           entities.Now,
		logger:        logger,
	}
}

// Process runs one attempt of a feedback job. The feedback record is created
// at most once per job; later attempts only retry linking it.
func (p *FeedbackPipeline) Process(ctx context.Context, job *entities.FeedbackJob) error {
	logger := p.logger.With(
		zap.String("jobID", job.ID.Hex()),
		zap.String("messageID", job.MessageID.Hex()),
		zap.Int("attempt", job.Attempts))

	if !job.HasFeedback() {
		cctx, err := p.contexts.Build(ctx, job.ConversationID, p.config.HistoryLimit)
		if err != nil {
			return fmt.Errorf("failed to build feedback context: %w", err)
		}

		text := p.GenerateDualFeedback(ctx, job.Transcription, cctx)
		feedback := entities.NewMessageFeedback(job.UserID, job.MessageID, job.Transcription, text)
		if err := p.feedbacks.Create(ctx, feedback); err != nil {
			return fmt.Errorf("failed to store feedback: %w", err)
		}
		if err := p.jobs.SaveFeedbackID(ctx, job.ID, feedback.ID, p.now()); err != nil {
			logger.Warn("Failed to checkpoint feedback id", zap.String("feedbackID", feedback.ID.Hex()), zap.Error(err))
			return fmt.Errorf("failed to checkpoint feedback: %w", err)
		}
		job.FeedbackID = &feedback.ID
		logger.Info("Feedback stored", zap.String("feedbackID", feedback.ID.Hex()))
	}

	if err := p.messages.SetFeedbackID(ctx, job.MessageID, *job.FeedbackID); err != nil {
		if errors.Is(err, domain.ErrAlreadyLinked) || errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Feedback left orphaned", zap.String("feedbackID", job.FeedbackID.Hex()), zap.Error(err))
			return worker.Permanent(fmt.Errorf("failed to link feedback: %w", err))
		}
		return fmt.Errorf("failed to link feedback: %w", err)
	}

	logger.Info("Feedback linked", zap.String("feedbackID", job.FeedbackID.Hex()))

	if p.notifier != nil {
		p.notifier.NotifyFeedbackReady(job.UserID, domain.FeedbackReadyEvent{
			Type:           domain.EventTypeFeedbackReady,
			MessageID:      job.MessageID.Hex(),
			ConversationID: job.ConversationID.Hex(),
			FeedbackID:     job.FeedbackID.Hex(),
			Timestamp:      p.now(),
		})
	}
	return nil
}

// GenerateDualFeedback asks the model for a critique of the utterance. It
// never fails; any problem yields FallbackFeedback.
func (p *FeedbackPipeline) GenerateDualFeedback(ctx context.Context, transcription string, cctx *ConversationContext) (feedback string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Feedback generation panicked", zap.Any("panic", r))
			feedback = FallbackFeedback
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.config.LLMTimeout)
	defer cancel()

	text, err := p.llm.Generate(ctx, feedbackPrompt(transcription, cctx, p.config.NativeLanguage))
	if err != nil {
		p.logger.Warn("Feedback generation failed, using fallback", zap.Error(err))
		return FallbackFeedback
	}
	text = StripCodeFence(text)
	if text == "" {
		p.logger.Warn("Empty feedback from model, using fallback")
		return FallbackFeedback
	}
	return text
}

// GetFeedback returns the feedback of a message owned by the user. Feedback
// that exists but was never linked is still found through its target.
func (p *FeedbackPipeline) GetFeedback(ctx context.Context, userID, messageID string) (*domain.FeedbackResponse, error) {
	msgID, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid message id", domain.ErrInvalidInput)
	}

	message, err := p.messages.GetByID(ctx, msgID)
	if err != nil {
		return nil, err
	}
	conversation, err := p.conversations.GetByID(ctx, message.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.OwnedBy(userID) {
		return nil, fmt.Errorf("message: %w", domain.ErrNotFound)
	}

	var feedback *entities.Feedback
	if message.HasFeedback() {
		feedback, err = p.feedbacks.GetByID(ctx, *message.FeedbackID)
	} else {
		feedback, err = p.feedbacks.GetLatestByTarget(ctx, message.ID, entities.TargetMessage)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.FeedbackResponse{UserFeedback: domain.FeedbackPendingMessage, IsReady: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback: %w", err)
	}

	return &domain.FeedbackResponse{
		UserFeedback: domain.FeedbackPayload{
			ID:           feedback.ID.Hex(),
			UserFeedback: feedback.UserFeedback,
			CreatedAt:    feedback.CreatedAt,
		},
		IsReady: true,
	}, nil
}
