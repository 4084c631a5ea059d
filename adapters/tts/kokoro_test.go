package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

func TestKokoroTTS_Synthesize(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("kokoro-audio"))
	}))
	defer server.Close()

	k, err := NewKokoroTTS(KokoroConfig{BaseURL: server.URL + "/v1"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create KokoroTTS: %v", err)
	}

	stream, err := k.Synthesize(context.Background(), repositories.SpeechRequest{Text: "Good morning", Voice: "bf_emma"})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	defer stream.Close()

	data, _ := io.ReadAll(stream)
	if string(data) != "kokoro-audio" {
		t.Errorf("Expected audio body, got %q", data)
	}
	if body["voice"] != "bf_emma" || body["model"] != defaultKokoroModel {
		t.Errorf("Unexpected request %v", body)
	}
	if body["speed"] != defaultKokoroSpeed {
		t.Errorf("Expected default speed %v, got %v", defaultKokoroSpeed, body["speed"])
	}
	if body["lang_code"] != defaultKokoroLang {
		t.Errorf("Expected lang_code %s, got %v", defaultKokoroLang, body["lang_code"])
	}
}

func TestKokoroTTS_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"unknown voice","code":"invalid_voice"}}`))
	}))
	defer server.Close()

	k, err := NewKokoroTTS(KokoroConfig{BaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create KokoroTTS: %v", err)
	}

	_, err = k.Synthesize(context.Background(), repositories.SpeechRequest{Text: "Hello", Voice: "xx"})
	var synthErr *repositories.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("Expected SynthesisError, got %v", err)
	}
	if synthErr.StatusCode != http.StatusBadRequest || synthErr.Retryable {
		t.Errorf("Unexpected error details %+v", synthErr)
	}
}

func TestMockTTS(t *testing.T) {
	m := NewMockTTS(nil, zaptest.NewLogger(t))
	stream, err := m.Synthesize(context.Background(), repositories.SpeechRequest{Text: "Hi", Voice: "af_heart"})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	data, _ := io.ReadAll(stream)
	if len(data) == 0 {
		t.Error("Expected mock audio")
	}
	if len(m.Requests()) != 1 {
		t.Errorf("Expected 1 request, got %d", len(m.Requests()))
	}

	m.SetError(errors.New("down"))
	if _, err := m.Synthesize(context.Background(), repositories.SpeechRequest{Text: "Hi"}); err == nil {
		t.Error("Expected configured error")
	}
}
