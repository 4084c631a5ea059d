package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

const (
	defaultKokoroBaseURL = "http://localhost:8880/v1"
	defaultKokoroModel   = "kokoro"
	defaultKokoroSpeed   = 1.3
	defaultKokoroLang    = "en-US"
)

// KokoroConfig configures a Kokoro server speaking the OpenAI audio API
type KokoroConfig struct {
	BaseURL  string
	APIKey   string
	Model    string
	Speed    float64
	Language string
	Timeout  time.Duration
}

// KokoroTTS streams speech from an OpenAI-compatible speech endpoint
type KokoroTTS struct {
	client   oai.Client
	model    string
	speed    float64
	language string
	logger   *zap.Logger
}

var _ repositories.TextToSpeech = (*KokoroTTS)(nil)

// NewKokoroTTS creates a Kokoro adapter. The API key is optional since
// self-hosted servers usually ignore it.
func NewKokoroTTS(config KokoroConfig, logger *zap.Logger) (*KokoroTTS, error) {
	if config.Speed < 0 {
		return nil, fmt.Errorf("speed must be positive, got %f", config.Speed)
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultKokoroBaseURL
		logger.Info("Using default Kokoro base URL", zap.String("baseURL", baseURL))
	}
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "not-needed"
	}

	k := &KokoroTTS{
		model:    config.Model,
		speed:    config.Speed,
		language: config.Language,
		logger:   logger,
	}
	if k.model == "" {
		k.model = defaultKokoroModel
	}
	if k.speed == 0 {
		k.speed = defaultKokoroSpeed
	}
	if k.language == "" {
		k.language = defaultKokoroLang
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(1),
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: config.Timeout}))
	}
	k.client = oai.NewClient(opts...)

	return k, nil
}

// Synthesize implements repositories.TextToSpeech
func (k *KokoroTTS) Synthesize(ctx context.Context, req repositories.SpeechRequest) (*repositories.SpeechStream, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("text cannot be empty")
	}

	speed := req.Speed
	if speed == 0 {
		speed = k.speed
	}
	lang := req.Language
	if lang == "" {
		lang = k.language
	}
	format := oai.AudioSpeechNewParamsResponseFormatMP3
	contentType := "audio/mpeg"
	if req.Format == "wav" {
		format = oai.AudioSpeechNewParamsResponseFormatWAV
		contentType = "audio/wav"
	}

	k.logger.Debug("Requesting speech",
		zap.Int("textLength", len(req.Text)),
		zap.String("voice", string(req.Voice)),
		zap.Float64("speed", speed))

	resp, err := k.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          oai.SpeechModel(k.model),
		Voice:          oai.AudioSpeechNewParamsVoice(req.Voice),
		ResponseFormat: format,
		Speed:          oai.Float(speed),
	}, option.WithJSONSet("lang_code", lang))
	if err != nil {
		return nil, kokoroError(err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &repositories.SynthesisError{
			Provider:   "kokoro",
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
			Retryable:  resp.StatusCode >= 500,
		}
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		contentType = ct
	}
	return &repositories.SpeechStream{ReadCloser: resp.Body, ContentType: contentType}, nil
}

func kokoroError(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return &repositories.SynthesisError{
			Provider:   "kokoro",
			StatusCode: apiErr.StatusCode,
			Code:       apiErr.Code,
			Message:    apiErr.Message,
			Retryable:  apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500,
			Err:        err,
		}
	}
	return &repositories.SynthesisError{Provider: "kokoro", Retryable: true, Err: err}
}
