package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/internal/auth"
	"github.com/NguyenNhat4/Speak-english-with-AI/internal/websocket"
	"github.com/NguyenNhat4/Speak-english-with-AI/usecase"
)

const serviceName = "speak-english-with-ai"

// Dependencies are the services the HTTP layer dispatches to
type Dependencies struct {
	Audio         *usecase.AudioService
	Conversations *usecase.ConversationService
	Feedback      *usecase.FeedbackPipeline
	Speech        *usecase.SpeechService
	Hub           *websocket.Hub

	// Ready reports whether storage is reachable. Nil means always ready.
	Ready func(ctx context.Context) error

	JWTSecret []byte
}

// Handler serves the REST endpoints
type Handler struct {
	deps   Dependencies
	logger *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies, logger *zap.Logger) {
	h := &Handler{deps: deps, logger: logger}

	e.GET("/health", h.health)
	e.GET("/ready", h.ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	requireUser := auth.Middleware(deps.JWTSecret, logger)

	// API v1 routes
	v1 := e.Group("/api/v1", requireUser)

	v1.POST("/audio2text", h.audioToText)
	v1.GET("/audio/:id", h.audioFile)

	v1.POST("/conversations", h.createConversation)
	v1.GET("/conversations", h.listConversations)
	v1.GET("/conversations/:id/messages", h.listMessages)
	v1.POST("/conversations/:id/message", h.submitTurn)

	v1.GET("/messages/demospeech", h.demoSpeech)
	v1.GET("/messages/:id/feedback", h.getFeedback)
	v1.GET("/messages/:id/speech", h.speech)
	v1.GET("/messages/:id/voice_context", h.voiceContext)
	v1.GET("/messages/:id/fallback_voice_context", h.fallbackVoiceContext)

	// WebSocket endpoint with JWT validation
	if deps.Hub != nil {
		e.GET("/ws", h.websocket, requireUser)
	}
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: serviceName,
	})
}

func (h *Handler) ready(c echo.Context) error {
	if h.deps.Ready != nil {
		if err := h.deps.Ready(c.Request().Context()); err != nil {
			h.logger.Warn("Readiness check failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, HealthResponse{
				Status:  "unavailable",
				Service: serviceName,
				Error:   "storage unreachable",
			})
		}
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ready",
		Service: serviceName,
	})
}

func (h *Handler) websocket(c echo.Context) error {
	userID := auth.UserID(c)
	h.logger.Info("WebSocket connection authenticated", zap.String("user_id", userID))
	return h.deps.Hub.ServeWS(c, userID)
}
