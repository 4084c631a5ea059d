package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/NguyenNhat4/Speak-english-with-AI/adapters/tts"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

func TestStreamMessage(t *testing.T) {
	s := newTestStores(t)
	synth := tts.NewMockTTS([]byte("mp3-bytes"), s.logger)
	svc := NewSpeechService(s.messages, s.conversations, synth, SpeechConfig{}, s.logger)

	conv := s.seedConversation(t, "user-1", "bm_george")
	aiMsg := s.seedMessage(t, entities.NewAIMessage(conv.ID, "What would you like to drink?"))

	stream, err := svc.StreamMessage(context.Background(), "user-1", aiMsg.ID.Hex())
	if err != nil {
		t.Fatalf("StreamMessage failed: %v", err)
	}
	if got := readAll(t, stream); got != "mp3-bytes" {
		t.Errorf("Expected audio bytes, got %q", got)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if stream.ContentType != "audio/mpeg" {
		t.Errorf("Expected audio/mpeg, got %s", stream.ContentType)
	}

	req := synth.Requests()[0]
	if req.Voice != "bm_george" || req.Speed != 1.3 || req.Language != "en-US" || req.Format != "mp3" {
		t.Errorf("Unexpected synthesis request %+v", req)
	}
}

func TestStreamMessage_DefaultVoice(t *testing.T) {
	s := newTestStores(t)
	synth := tts.NewMockTTS(nil, s.logger)
	svc := NewSpeechService(s.messages, s.conversations, synth, SpeechConfig{}, s.logger)

	conv := s.seedConversation(t, "user-1", "")
	aiMsg := s.seedMessage(t, entities.NewAIMessage(conv.ID, "Hello"))

	stream, err := svc.StreamMessage(context.Background(), "user-1", aiMsg.ID.Hex())
	if err != nil {
		t.Fatalf("StreamMessage failed: %v", err)
	}
	stream.Close()

	if v := synth.Requests()[0].Voice; v != entities.DefaultVoice {
		t.Errorf("Expected default voice, got %s", v)
	}
}

func TestStreamMessage_Errors(t *testing.T) {
	s := newTestStores(t)
	synth := tts.NewMockTTS(nil, s.logger)
	svc := NewSpeechService(s.messages, s.conversations, synth, SpeechConfig{RetryDelay: time.Millisecond}, s.logger)

	conv := s.seedConversation(t, "user-1", "")
	userMsg := s.seedMessage(t, entities.NewUserMessage(conv.ID, "I want a pizza", ""))
	aiMsg := s.seedMessage(t, entities.NewAIMessage(conv.ID, "Sure"))

	if _, err := svc.StreamMessage(context.Background(), "user-1", userMsg.ID.Hex()); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for user message, got %v", err)
	}
	if _, err := svc.StreamMessage(context.Background(), "user-2", aiMsg.ID.Hex()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for other user, got %v", err)
	}
	if _, err := svc.StreamMessage(context.Background(), "user-1", "xyz"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for bad id, got %v", err)
	}

	synth.SetError(&repositories.SynthesisError{Provider: "mock", StatusCode: 503, Message: "down", Retryable: true})
	_, err := svc.StreamMessage(context.Background(), "user-1", aiMsg.ID.Hex())
	var synthErr *repositories.SynthesisError
	if !errors.As(err, &synthErr) || synthErr.StatusCode != 503 {
		t.Errorf("Expected SynthesisError to pass through, got %v", err)
	}
	if n := len(synth.Requests()); n != 2 {
		t.Errorf("Expected retryable error to be tried twice, got %d calls", n)
	}
}

func TestStreamMessage_Retry(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		failures  int
		wantErr   bool
		wantCalls int
	}{
		{"retryable recovers", &repositories.SynthesisError{Provider: "mock", StatusCode: 503, Retryable: true}, 1, false, 2},
		{"retryable exhausted", &repositories.SynthesisError{Provider: "mock", StatusCode: 503, Retryable: true}, 3, true, 2},
		{"not retryable", &repositories.SynthesisError{Provider: "mock", StatusCode: 400}, 1, true, 1},
		{"plain error", errors.New("boom"), 1, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStores(t)
			synth := tts.NewMockTTS([]byte("audio"), s.logger)
			synth.FailNext(tt.failures, tt.err)
			svc := NewSpeechService(s.messages, s.conversations, synth, SpeechConfig{MaxAttempts: 2, RetryDelay: time.Millisecond}, s.logger)

			conv := s.seedConversation(t, "user-1", "")
			aiMsg := s.seedMessage(t, entities.NewAIMessage(conv.ID, "Hello"))

			stream, err := svc.StreamMessage(context.Background(), "user-1", aiMsg.ID.Hex())
			if tt.wantErr && err == nil {
				t.Fatal("Expected error")
			}
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("StreamMessage failed: %v", err)
				}
				if got := readAll(t, stream); got != "audio" {
					t.Errorf("Expected audio after retry, got %q", got)
				}
				stream.Close()
			}
			if n := len(synth.Requests()); n != tt.wantCalls {
				t.Errorf("Expected %d calls, got %d", tt.wantCalls, n)
			}
		})
	}
}

func TestVoiceContext(t *testing.T) {
	s := newTestStores(t)
	svc := NewSpeechService(s.messages, s.conversations, tts.NewMockTTS(nil, s.logger), SpeechConfig{}, s.logger)

	conv := s.seedConversation(t, "user-1", "af_bella")
	userMsg := s.seedMessage(t, entities.NewUserMessage(conv.ID, "Hi", ""))

	resp, err := svc.VoiceContext(context.Background(), "user-1", userMsg.ID.Hex())
	if err != nil {
		t.Fatalf("VoiceContext failed: %v", err)
	}
	if resp.VoiceType != "af_bella" || resp.LatestAIMessage != nil {
		t.Errorf("Unexpected voice context %+v", resp)
	}

	aiMsg := s.seedMessage(t, entities.NewAIMessage(conv.ID, "Hello there"))
	resp, err = svc.VoiceContext(context.Background(), "user-1", userMsg.ID.Hex())
	if err != nil {
		t.Fatalf("VoiceContext failed: %v", err)
	}
	if resp.LatestAIMessage == nil || resp.LatestAIMessage.ID != aiMsg.ID.Hex() {
		t.Errorf("Expected latest AI message, got %+v", resp.LatestAIMessage)
	}
}

func TestDemoSpeech(t *testing.T) {
	s := newTestStores(t)
	synth := tts.NewMockTTS([]byte("demo-bytes"), s.logger)
	svc := NewSpeechService(s.messages, s.conversations, synth, SpeechConfig{}, s.logger)

	stream, err := svc.DemoSpeech(context.Background(), "  Nice to meet you ")
	if err != nil {
		t.Fatalf("DemoSpeech failed: %v", err)
	}
	if got := readAll(t, stream); got != "demo-bytes" {
		t.Errorf("Expected audio bytes, got %q", got)
	}
	stream.Close()

	stream, err = svc.DemoSpeech(context.Background(), "")
	if err != nil {
		t.Fatalf("DemoSpeech failed: %v", err)
	}
	stream.Close()

	reqs := synth.Requests()
	if len(reqs) != 2 {
		t.Fatalf("Expected 2 synthesis requests, got %d", len(reqs))
	}
	if reqs[0].Text != "Nice to meet you" || reqs[0].Voice != entities.DefaultVoice {
		t.Errorf("Unexpected synthesis request %+v", reqs[0])
	}
	if reqs[1].Text != DemoSpeechText {
		t.Errorf("Expected demo text for an empty message, got %q", reqs[1].Text)
	}

	_, err = svc.DemoSpeech(context.Background(), strings.Repeat("a", MaxDemoSpeechRunes+1))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for long text, got %v", err)
	}
	if len(synth.Requests()) != 2 {
		t.Error("Expected long text not to reach the provider")
	}
}

func TestFallbackVoiceContext(t *testing.T) {
	s := newTestStores(t)
	svc := NewSpeechService(s.messages, s.conversations, tts.NewMockTTS(nil, s.logger), SpeechConfig{}, s.logger)

	resp := svc.FallbackVoiceContext("not-a-real-id")
	if resp.VoiceType != entities.DefaultVoice || resp.ConversationID != "" {
		t.Errorf("Unexpected voice context %+v", resp)
	}
	if resp.LatestAIMessage == nil || resp.LatestAIMessage.ID != "not-a-real-id" || resp.LatestAIMessage.Content != FallbackGreeting {
		t.Errorf("Unexpected latest AI message %+v", resp.LatestAIMessage)
	}
	if resp.LatestAIMessage.Timestamp.IsZero() {
		t.Error("Expected a timestamp")
	}
}
