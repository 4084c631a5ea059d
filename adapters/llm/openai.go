package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

// OpenAIConfig configures any OpenAI-compatible chat completion endpoint
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAILLM implements LargeLanguageModel on the chat completions API
type OpenAILLM struct {
	client oai.Client
	model  string
	logger *zap.Logger
}

var _ repositories.LargeLanguageModel = (*OpenAILLM)(nil)

// NewOpenAILLM creates an OpenAI-compatible LLM adapter
func NewOpenAILLM(config OpenAIConfig, logger *zap.Logger) (*OpenAILLM, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}

	model := config.Model
	if model == "" {
		model = "gpt-4o-mini"
		logger.Info("Using default model", zap.String("model", model))
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: config.Timeout}))
	}

	return &OpenAILLM{
		client: oai.NewClient(opts...),
		model:  model,
		logger: logger,
	}, nil
}

// Generate implements repositories.LargeLanguageModel
func (o *OpenAILLM) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt cannot be empty")
	}

	resp, err := o.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.model),
		Messages: []oai.ChatCompletionMessageParamUnion{oai.UserMessage(prompt)},
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices in response")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("openai: empty completion")
	}

	o.logger.Debug("Chat completion received",
		zap.String("model", o.model),
		zap.Int64("total_tokens", resp.Usage.TotalTokens))
	return text, nil
}
