package stt

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

// MockSpeechToText returns a fixed transcript or error. It is used for local
// development without cloud credentials and in tests.
type MockSpeechToText struct {
	mu         sync.Mutex
	transcript string
	err        error
	calls      int
	logger     *zap.Logger
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(transcript string, logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{transcript: transcript, logger: logger}
}

// SetResult changes what subsequent calls return
func (s *MockSpeechToText) SetResult(transcript string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = transcript
	s.err = err
}

// Calls returns how many times TranscribeAudio was invoked
func (s *MockSpeechToText) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	s.mu.Lock()
	s.calls++
	transcript, err := s.transcript, s.err
	s.mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	s.logger.Info("Mock transcription",
		zap.Int("size", len(audioData)),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	if len(audioData) == 0 {
		return "", fmt.Errorf("no audio data received")
	}
	if err != nil {
		return "", err
	}
	return transcript, nil
}
