package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
	"github.com/NguyenNhat4/Speak-english-with-AI/internal/auth"
)

// Multipart framing allowance on top of the audio size limit
const multipartOverhead = 1 << 20

func (h *Handler) audioToText(c echo.Context) error {
	maxBytes := h.deps.Audio.MaxUploadBytes()
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBytes+multipartOverhead)

	fileHeader, err := c.FormFile("audio_file")
	if err != nil {
		h.logger.Warn("Missing or unreadable audio upload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "audio_file is required and must not exceed the upload limit",
		})
	}
	if fileHeader.Size > maxBytes {
		return h.respondError(c, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidInput, maxBytes))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return h.respondError(c, fmt.Errorf("failed to open upload: %w", err))
	}
	defer file.Close()

	resp, err := h.deps.Audio.ProcessUpload(req.Context(), auth.UserID(c), fileHeader.Filename, file)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// audioFile plays back a stored utterance of the user
func (h *Handler) audioFile(c echo.Context) error {
	file, err := h.deps.Audio.OpenAudio(c.Request().Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	defer file.Close()

	c.Response().Header().Set("Cache-Control", "private, max-age=3600")
	return c.Stream(http.StatusOK, file.ContentType, file)
}

func (h *Handler) createConversation(c echo.Context) error {
	var req domain.CreateConversationRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Error("Failed to bind conversation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	resp, err := h.deps.Conversations.CreateConversation(c.Request().Context(), auth.UserID(c), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) listConversations(c echo.Context) error {
	conversations, err := h.deps.Conversations.ListConversations(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, ConversationListResponse{Conversations: conversations})
}

func (h *Handler) listMessages(c echo.Context) error {
	messages, err := h.deps.Conversations.ListMessages(c.Request().Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, MessageListResponse{Messages: messages})
}

func (h *Handler) submitTurn(c echo.Context) error {
	audioID := c.QueryParam("audio_id")
	if audioID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "audio_id is required",
		})
	}

	resp, err := h.deps.Conversations.SubmitTurn(c.Request().Context(), auth.UserID(c), c.Param("id"), audioID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) getFeedback(c echo.Context) error {
	resp, err := h.deps.Feedback.GetFeedback(c.Request().Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// speech streams synthesized audio to the client as it arrives
func (h *Handler) speech(c echo.Context) error {
	stream, err := h.deps.Speech.StreamMessage(c.Request().Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return h.streamSpeech(c, stream)
}

func (h *Handler) demoSpeech(c echo.Context) error {
	start := time.Now()
	stream, err := h.deps.Speech.DemoSpeech(c.Request().Context(), c.QueryParam("message"))
	if err != nil {
		return h.respondError(c, err)
	}
	c.Response().Header().Set("X-Processing-Time", strconv.FormatFloat(time.Since(start).Seconds(), 'f', 3, 64))
	return h.streamSpeech(c, stream)
}

func (h *Handler) streamSpeech(c echo.Context, stream *repositories.SpeechStream) error {
	defer stream.Close()

	contentType := stream.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	c.Response().Header().Set("Cache-Control", "no-cache")
	if err := c.Stream(http.StatusOK, contentType, stream); err != nil {
		// Headers are already sent; nothing left to tell the client
		h.logger.Warn("Speech stream interrupted",
			zap.String("path", c.Path()),
			zap.String("messageID", c.Param("id")),
			zap.Error(err))
	}
	return nil
}

func (h *Handler) voiceContext(c echo.Context) error {
	resp, err := h.deps.Speech.VoiceContext(c.Request().Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) fallbackVoiceContext(c echo.Context) error {
	return c.JSON(http.StatusOK, h.deps.Speech.FallbackVoiceContext(c.Param("id")))
}
