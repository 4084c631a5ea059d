package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/adapters/filestore"
	"github.com/NguyenNhat4/Speak-english-with-AI/internal/api"
	"github.com/NguyenNhat4/Speak-english-with-AI/internal/config"
	"github.com/NguyenNhat4/Speak-english-with-AI/internal/logging"
	"github.com/NguyenNhat4/Speak-english-with-AI/internal/observe"
	"github.com/NguyenNhat4/Speak-english-with-AI/internal/websocket"
	"github.com/NguyenNhat4/Speak-english-with-AI/internal/worker"
	"github.com/NguyenNhat4/Speak-english-with-AI/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Server.LogLevel, cfg.Server.Development)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server exited")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	meterProvider, shutdownMetrics, err := observe.InitProvider()
	if err != nil {
		return err
	}
	defer shutdownMetrics(context.Background())

	metrics, err := observe.NewMetrics(meterProvider)
	if err != nil {
		return err
	}

	// Storage
	stores, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer stores.close(context.Background())

	files, err := filestore.NewLocalStore(filestore.Config{
		UploadDir: cfg.Storage.UploadDir,
		TempDir:   cfg.Storage.TempDir,
	}, logger)
	if err != nil {
		return err
	}

	// Providers
	providers, err := newProviders(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer providers.close()

	model := observe.InstrumentLLM(providers.llm, metrics)
	recognizer := observe.InstrumentSTT(providers.stt, metrics)
	synthesizer := observe.InstrumentTTS(providers.tts, metrics)

	hub := websocket.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	// Initialize usecase services
	contexts := usecase.NewContextBuilder(stores.conversations, stores.messages, logger)

	gateway := usecase.NewTranscriptionGateway(recognizer, files, usecase.TranscriptionConfig{
		Timeout:    cfg.STT.Timeout,
		Language:   cfg.STT.Language,
		SampleRate: cfg.STT.SampleRate,
	}, metrics, logger)
	lifecycle := usecase.NewAudioLifecycleManager(files, stores.audios, logger)
	audioService := usecase.NewAudioService(gateway, lifecycle, cfg.Storage.MaxUploadBytes, logger)

	feedback := usecase.NewFeedbackPipeline(
		stores.messages,
		stores.conversations,
		stores.feedbacks,
		stores.jobs,
		model,
		contexts,
		hub,
		usecase.FeedbackConfig{
			HistoryLimit:   cfg.Pipeline.FeedbackHistoryLimit,
			NativeLanguage: cfg.Pipeline.NativeLanguage,
			LLMTimeout:     cfg.LLM.Timeout,
		},
		logger,
	)

	dispatcher := worker.NewDispatcher(stores.jobs, feedback, metrics, worker.Config{
		MaxAttempts:   cfg.Worker.MaxAttempts,
		BaseBackoff:   cfg.Worker.BaseBackoff,
		MaxBackoff:    cfg.Worker.MaxBackoff,
		Lease:         cfg.Worker.Lease,
		SweepInterval: cfg.Worker.SweepInterval,
		JobTimeout:    cfg.Worker.JobTimeout,
	}, logger)
	dispatcher.Start()

	conversations := usecase.NewConversationService(
		stores.conversations,
		stores.messages,
		stores.audios,
		model,
		contexts,
		dispatcher,
		usecase.ConversationConfig{
			TurnHistoryLimit: cfg.Pipeline.TurnHistoryLimit,
			LLMTimeout:       cfg.LLM.Timeout,
		},
		logger,
	)

	speech := usecase.NewSpeechService(stores.messages, stores.conversations, synthesizer, usecase.SpeechConfig{
		Speed:       cfg.TTS.Speed,
		Language:    cfg.TTS.Language,
		Format:      cfg.TTS.Format,
		Timeout:     cfg.TTS.Timeout,
		MaxAttempts: cfg.TTS.Attempts,
	}, logger)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(observe.Middleware(metrics))

	api.InitRoutes(e, api.Dependencies{
		Audio:         audioService,
		Conversations: conversations,
		Feedback:      feedback,
		Speech:        speech,
		Hub:           hub,
		Ready:         stores.ping,
		JWTSecret:     []byte(cfg.Auth.JWTSecret),
	}, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("llm", cfg.LLM.Provider),
		zap.String("stt", cfg.STT.Provider),
		zap.String("tts", cfg.TTS.Provider))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			dispatcher.Stop(context.Background())
			return err
		}
	}

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Warn("Feedback jobs left unfinished", zap.Error(err))
	}
	return nil
}
