package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

func TestNewElevenLabsTTS(t *testing.T) {
	logger := zaptest.NewLogger(t)

	// Test without API key
	_, err := NewElevenLabsTTS(ElevenLabsConfig{}, logger)
	if err == nil {
		t.Error("Expected error when API key is not set")
	}

	// Test with API key
	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "test-api-key"}, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if tts.apiKey != "test-api-key" {
		t.Errorf("Expected API key 'test-api-key', got '%s'", tts.apiKey)
	}
	if tts.femaleVoiceID != defaultFemaleVoiceID {
		t.Errorf("Expected default female voice ID '%s', got '%s'", defaultFemaleVoiceID, tts.femaleVoiceID)
	}
	if tts.maleVoiceID != defaultMaleVoiceID {
		t.Errorf("Expected default male voice ID '%s', got '%s'", defaultMaleVoiceID, tts.maleVoiceID)
	}
	if tts.stability != defaultStability || tts.clarity != defaultClarity {
		t.Errorf("Expected default voice settings, got %f/%f", tts.stability, tts.clarity)
	}
}

func TestValidateElevenLabsConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  ElevenLabsConfig
		wantErr bool
	}{
		{"valid", ElevenLabsConfig{APIKey: "k", Stability: 0.3, Clarity: 0.9}, false},
		{"missing key", ElevenLabsConfig{}, true},
		{"stability out of range", ElevenLabsConfig{APIKey: "k", Stability: 1.5}, true},
		{"clarity out of range", ElevenLabsConfig{APIKey: "k", Clarity: -0.2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateElevenLabsConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateElevenLabsConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestElevenLabsTTS_Synthesize(t *testing.T) {
	var gotPath, gotKey string
	var gotBody ElevenLabsRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-audio-bytes"))
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "secret", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	stream, err := tts.Synthesize(context.Background(), repositories.SpeechRequest{
		Text:     "Hello there",
		Voice:    "am_adam",
		Speed:    1.3,
		Language: "en-US",
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	defer stream.Close()

	data, _ := io.ReadAll(stream)
	if string(data) != "ID3-audio-bytes" {
		t.Errorf("Expected audio bytes, got %q", data)
	}
	if stream.ContentType != "audio/mpeg" {
		t.Errorf("Expected audio/mpeg, got %s", stream.ContentType)
	}
	if gotPath != "/text-to-speech/"+defaultMaleVoiceID+"/stream" {
		t.Errorf("Expected male voice path, got %s", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("Expected api key header, got %q", gotKey)
	}
	if gotBody.Text != "Hello there" || gotBody.LanguageCode != "en" {
		t.Errorf("Unexpected request body %+v", gotBody)
	}
	if gotBody.VoiceSettings.Speed != 1.2 {
		t.Errorf("Expected speed clamped to 1.2, got %f", gotBody.VoiceSettings.Speed)
	}
}

func TestElevenLabsTTS_SynthesizeErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "bad", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	if _, err := tts.Synthesize(context.Background(), repositories.SpeechRequest{Text: "  "}); err == nil {
		t.Error("Expected error for empty text")
	}

	_, err = tts.Synthesize(context.Background(), repositories.SpeechRequest{Text: "Hello"})
	var synthErr *repositories.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("Expected SynthesisError, got %v", err)
	}
	if synthErr.StatusCode != http.StatusUnauthorized || synthErr.Retryable {
		t.Errorf("Unexpected error details %+v", synthErr)
	}
	if !strings.Contains(synthErr.Error(), "invalid api key") {
		t.Errorf("Expected provider message in error, got %s", synthErr.Error())
	}
}
