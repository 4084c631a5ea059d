package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

const (
	defaultModel           = "gemini-2.0-flash"
	defaultTemperature     = 0.7
	defaultTopP            = 0.95
	defaultTopK            = 40
	defaultMaxOutputTokens = 1024
	defaultMaxAttempts     = 3
)

// GeminiConfig holds configuration for the Gemini adapter.
// APIKey is required; everything else falls back to a default.
type GeminiConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for a proxy
	BaseURL         string
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int
	MaxAttempts     int
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}

	// Validate temperature is in the valid range
	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}

	// Validate topP is in the valid range
	if config.TopP != 0 && (config.TopP < 0 || config.TopP > 1) {
		return fmt.Errorf("topP must be between 0 and 1, got %f", config.TopP)
	}

	if config.TopK < 0 {
		return fmt.Errorf("topK must be positive, got %f", config.TopK)
	}

	if config.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must be positive, got %d", config.MaxAttempts)
	}

	return nil
}

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	topP            float32
	topK            float32
	maxOutputTokens int
	maxAttempts     int
	backoff         func(attempt int) time.Duration
}

var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      config.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: config.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	g := &GeminiLLM{
		client:          client,
		logger:          logger,
		model:           config.Model,
		temperature:     config.Temperature,
		topP:            config.TopP,
		topK:            config.TopK,
		maxOutputTokens: config.MaxOutputTokens,
		maxAttempts:     config.MaxAttempts,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * time.Second
		},
	}

	if g.model == "" {
		g.model = defaultModel
		logger.Info("Using default model", zap.String("model", g.model))
	}
	if g.temperature == 0 {
		g.temperature = defaultTemperature
		logger.Info("Using default temperature", zap.Float32("temperature", g.temperature))
	}
	if g.topP == 0 {
		g.topP = defaultTopP
	}
	if g.topK == 0 {
		g.topK = defaultTopK
	}
	if g.maxOutputTokens == 0 {
		g.maxOutputTokens = defaultMaxOutputTokens
		logger.Info("Using default maxOutputTokens", zap.Int("maxOutputTokens", g.maxOutputTokens))
	}
	if g.maxAttempts == 0 {
		g.maxAttempts = defaultMaxAttempts
	}

	return g, nil
}

// Generate implements repositories.LargeLanguageModel. The caller's context
// bounds all attempts together.
func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt cannot be empty")
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		TopP:            genai.Ptr(g.topP),
		TopK:            genai.Ptr(g.topK),
		MaxOutputTokens: int32(g.maxOutputTokens),
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		response, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			text := responseText(response)
			if text != "" {
				return text, nil
			}
			err = errors.New("empty response from Gemini")
		}
		lastErr = err

		if !retryable(ctx, err) {
			g.logger.Error("Failed to generate content", zap.Int("attempt", attempt), zap.Error(err))
			return "", fmt.Errorf("gemini generate: %w", err)
		}
		if attempt == g.maxAttempts {
			break
		}
		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("gemini generate: %w", ctx.Err())
		case <-time.After(g.backoff(attempt)):
		}
	}

	return "", fmt.Errorf("gemini generate failed after %d attempts: %w", g.maxAttempts, lastErr)
}

// retryable reports whether another attempt could succeed. Rate limits,
// timeouts and server errors are retried; other client errors are not.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests ||
			apiErr.Code == http.StatusRequestTimeout ||
			apiErr.Code >= http.StatusInternalServerError
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return retryable(ctx, *apiErrPtr)
	}
	return true
}

// responseText concatenates the text parts of the first candidate
func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 {
		return ""
	}
	candidate := response.Candidates[0]
	if candidate.Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
