package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/adapters/llm"
	"github.com/NguyenNhat4/Speak-english-with-AI/adapters/memory"
	"github.com/NguyenNhat4/Speak-english-with-AI/adapters/mongo"
	"github.com/NguyenNhat4/Speak-english-with-AI/adapters/stt"
	"github.com/NguyenNhat4/Speak-english-with-AI/adapters/tts"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
	"github.com/NguyenNhat4/Speak-english-with-AI/internal/config"
)

// storage groups the repositories of the selected backend
type storage struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	audios        repositories.AudioRepository
	feedbacks     repositories.FeedbackRepository
	jobs          repositories.FeedbackJobRepository

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

func openStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*storage, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("Using in-memory storage; data is lost on restart")
		return &storage{
			conversations: memory.NewConversationRepository(),
			messages:      memory.NewMessageRepository(),
			audios:        memory.NewAudioRepository(),
			feedbacks:     memory.NewFeedbackRepository(),
			jobs:          memory.NewFeedbackJobRepository(),
			close:         func(context.Context) error { return nil },
		}, nil

	case config.BackendMongo:
		client, err := mongo.NewClient(ctx, mongo.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			_ = client.Close(context.Background())
			return nil, err
		}
		db := client.Database
		return &storage{
			conversations: mongo.NewConversationRepository(db, logger),
			messages:      mongo.NewMessageRepository(db, logger),
			audios:        mongo.NewAudioRepository(db, logger),
			feedbacks:     mongo.NewFeedbackRepository(db, logger),
			jobs:          mongo.NewFeedbackJobRepository(db, logger),
			ping:          client.Ping,
			close:         client.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// providers holds the remote model clients
type providers struct {
	llm     repositories.LargeLanguageModel
	stt     repositories.SpeechToText
	tts     repositories.TextToSpeech
	closers []func() error
}

func (p *providers) close() {
	for _, c := range p.closers {
		_ = c()
	}
}

func newProviders(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*providers, error) {
	p := &providers{}

	switch cfg.LLM.Provider {
	case "gemini":
		gemini, err := llm.NewGeminiLLM(ctx, llm.GeminiConfig{
			APIKey:      cfg.LLM.Gemini.APIKey,
			BaseURL:     cfg.LLM.Gemini.BaseURL,
			Model:       cfg.LLM.Gemini.Model,
			MaxAttempts: cfg.LLM.Gemini.MaxAttempts,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		p.llm = gemini
	case "openai":
		openai, err := llm.NewOpenAILLM(llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
			Timeout: cfg.LLM.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		p.llm = openai
	default:
		logger.Warn("Using mock LLM")
		p.llm = llm.NewMockLLM()
	}

	switch cfg.STT.Provider {
	case "google":
		google, err := stt.NewGoogleSpeechToText(ctx, logger)
		if err != nil {
			return nil, err
		}
		p.stt = google
		p.closers = append(p.closers, google.Close)
	default:
		logger.Warn("Using mock speech-to-text")
		transcript := cfg.STT.MockTranscript
		if transcript == "" {
			transcript = "I want to order a pizza"
		}
		p.stt = stt.NewMockSpeechToText(transcript, logger)
	}

	switch cfg.TTS.Provider {
	case "kokoro":
		kokoro, err := tts.NewKokoroTTS(tts.KokoroConfig{
			BaseURL:  cfg.TTS.Kokoro.BaseURL,
			APIKey:   cfg.TTS.Kokoro.APIKey,
			Model:    cfg.TTS.Kokoro.Model,
			Speed:    cfg.TTS.Speed,
			Language: cfg.TTS.Language,
			Timeout:  cfg.TTS.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kokoro client: %w", err)
		}
		p.tts = kokoro
	case "elevenlabs":
		eleven, err := tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
			APIKey:     cfg.TTS.ElevenLabs.APIKey,
			APIBaseURL: cfg.TTS.ElevenLabs.BaseURL,
			ModelID:    cfg.TTS.ElevenLabs.ModelID,
			Timeout:    cfg.TTS.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create ElevenLabs client: %w", err)
		}
		p.tts = eleven
	case "polly":
		p.tts = tts.NewPollyTTS(tts.PollyConfig{
			Region: cfg.TTS.Polly.Region,
			Engine: cfg.TTS.Polly.Engine,
		}, nil, logger)
	default:
		logger.Warn("Using mock text-to-speech")
		p.tts = tts.NewMockTTS(nil, logger)
	}

	return p, nil
}
