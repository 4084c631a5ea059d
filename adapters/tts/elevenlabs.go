package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

const (
	defaultAPIBaseURL    = "https://api.elevenlabs.io/v1"
	defaultFemaleVoiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel voice
	defaultMaleVoiceID   = "pNInz6obpgDQGcFmaJgB" // Adam voice
	defaultOutputFormat  = "mp3_44100_128"
	defaultModelID       = "eleven_multilingual_v2"
	defaultStability     = 0.5
	defaultClarity       = 0.75
	defaultHTTPTimeout   = 60 * time.Second
)

// ElevenLabsConfig holds configuration for the ElevenLabsTTS adapter
// Required fields:
// - APIKey: Your Eleven Labs API key
// Optional fields with defaults:
// - APIBaseURL: The base URL for the Eleven Labs API (default: "https://api.elevenlabs.io/v1")
// - FemaleVoiceID / MaleVoiceID: voices used for female and male conversation voices
// - ModelID: The model ID to use (default: "eleven_multilingual_v2")
// - OutputFormat: The output format (default: "mp3_44100_128")
// - Stability: Voice stability value between 0 and 1 (default: 0.5)
// - Clarity: Voice clarity/similarity boost value between 0 and 1 (default: 0.75)
type ElevenLabsConfig struct {
	APIKey        string
	APIBaseURL    string
	FemaleVoiceID string
	MaleVoiceID   string
	ModelID       string
	OutputFormat  string
	Stability     float64
	Clarity       float64
	Timeout       time.Duration
}

// ElevenLabsTTS implements TextToSpeech interface using Eleven Labs API
type ElevenLabsTTS struct {
	apiKey        string
	apiBaseURL    string
	femaleVoiceID string
	maleVoiceID   string
	modelID       string
	outputFormat  string
	stability     float64
	clarity       float64
	httpClient    *http.Client
	logger        *zap.Logger
}

// Ensure ElevenLabsTTS implements the TextToSpeech interface
var _ repositories.TextToSpeech = (*ElevenLabsTTS)(nil)

// ElevenLabsVoiceSettings represents voice settings for Eleven Labs API
type ElevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	Speed           float64 `json:"speed,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// ElevenLabsRequest represents the request payload for Eleven Labs TTS API
type ElevenLabsRequest struct {
	Text                   string                  `json:"text"`
	ModelID                string                  `json:"model_id"`
	LanguageCode           string                  `json:"language_code,omitempty"`
	VoiceSettings          ElevenLabsVoiceSettings `json:"voice_settings"`
	ApplyTextNormalization string                  `json:"apply_text_normalization,omitempty"`
}

// ValidateElevenLabsConfig validates the ElevenLabsConfig
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("eleven labs API key is required")
	}

	// Validate stability is in the valid range
	if config.Stability != 0 && (config.Stability < 0 || config.Stability > 1) {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}

	// Validate clarity is in the valid range
	if config.Clarity != 0 && (config.Clarity < 0 || config.Clarity > 1) {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}

	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}

	return nil
}

// NewElevenLabsTTS creates a new Eleven Labs TTS instance
func NewElevenLabsTTS(config ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsTTS, error) {
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}

	e := &ElevenLabsTTS{
		apiKey:        config.APIKey,
		apiBaseURL:    config.APIBaseURL,
		femaleVoiceID: config.FemaleVoiceID,
		maleVoiceID:   config.MaleVoiceID,
		modelID:       config.ModelID,
		outputFormat:  config.OutputFormat,
		stability:     config.Stability,
		clarity:       config.Clarity,
		logger:        logger,
	}

	// Apply defaults where needed
	if e.apiBaseURL == "" {
		e.apiBaseURL = defaultAPIBaseURL
		logger.Info("Using default API base URL", zap.String("apiBaseURL", e.apiBaseURL))
	}
	if e.femaleVoiceID == "" {
		e.femaleVoiceID = defaultFemaleVoiceID
	}
	if e.maleVoiceID == "" {
		e.maleVoiceID = defaultMaleVoiceID
	}
	if e.modelID == "" {
		e.modelID = defaultModelID
		logger.Info("Using default model ID", zap.String("modelID", e.modelID))
	}
	if e.outputFormat == "" {
		e.outputFormat = defaultOutputFormat
		logger.Info("Using default output format", zap.String("outputFormat", e.outputFormat))
	}
	if e.stability == 0 {
		e.stability = defaultStability
	}
	if e.clarity == 0 {
		e.clarity = defaultClarity
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}
	e.httpClient = &http.Client{Timeout: timeout}

	return e, nil
}

// voiceFor maps a conversation voice onto an Eleven Labs voice ID
func (e *ElevenLabsTTS) voiceFor(voice entities.VoiceType) string {
	if voice.Gender() == entities.GenderMale {
		return e.maleVoiceID
	}
	return e.femaleVoiceID
}

// Synthesize streams speech from the Eleven Labs streaming endpoint
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, req repositories.SpeechRequest) (*repositories.SpeechStream, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	voiceID := e.voiceFor(req.Voice)
	e.logger.Info("Converting text to speech",
		zap.Int("textLength", len(req.Text)),
		zap.String("voiceID", voiceID),
		zap.String("modelID", e.modelID))

	request := ElevenLabsRequest{
		Text:                   req.Text,
		ModelID:                e.modelID,
		ApplyTextNormalization: "auto",
		VoiceSettings: ElevenLabsVoiceSettings{
			Stability:       e.stability,
			SimilarityBoost: e.clarity,
			Speed:           clampSpeed(req.Speed),
			UseSpeakerBoost: true,
		},
	}
	if lang := languageCode(req.Language); lang != "" {
		request.LanguageCode = lang
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s&enable_logging=false",
		e.apiBaseURL, voiceID, e.outputFormat)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	contentType := "audio/mpeg"
	if strings.HasPrefix(e.outputFormat, "pcm") {
		contentType = "audio/pcm"
	}
	httpReq.Header.Set("Accept", contentType)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, &repositories.SynthesisError{Provider: "elevenlabs", Retryable: true, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		e.logger.Error("Eleven Labs API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return nil, &repositories.SynthesisError{
			Provider:   "elevenlabs",
			StatusCode: resp.StatusCode,
			Message:    string(errorBody),
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		contentType = ct
	}
	return &repositories.SpeechStream{ReadCloser: resp.Body, ContentType: contentType}, nil
}

// clampSpeed keeps the requested speed inside the range Eleven Labs accepts
func clampSpeed(speed float64) float64 {
	switch {
	case speed == 0:
		return 0
	case speed < 0.7:
		return 0.7
	case speed > 1.2:
		return 1.2
	}
	return speed
}

// languageCode turns "en-US" into the ISO 639-1 code Eleven Labs expects
func languageCode(lang string) string {
	lang = strings.TrimSpace(lang)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}
