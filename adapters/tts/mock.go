package tts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

// MockTTS returns a fixed audio payload. It is used for local development and
// tests.
type MockTTS struct {
	mu       sync.Mutex
	audio    []byte
	err      error
	failNext int
	requests []repositories.SpeechRequest
	logger   *zap.Logger
}

var _ repositories.TextToSpeech = (*MockTTS)(nil)

// NewMockTTS creates a mock synthesizer returning audio for every request
func NewMockTTS(audio []byte, logger *zap.Logger) *MockTTS {
	if audio == nil {
		audio = []byte("ID3mock-audio")
	}
	return &MockTTS{audio: audio, logger: logger}
}

// SetError makes subsequent calls fail with err
func (m *MockTTS) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailNext makes the next n calls fail with err, then recovers
func (m *MockTTS) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
	m.err = err
}

// Requests returns the requests received so far
func (m *MockTTS) Requests() []repositories.SpeechRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repositories.SpeechRequest(nil), m.requests...)
}

// Synthesize implements repositories.TextToSpeech
func (m *MockTTS) Synthesize(ctx context.Context, req repositories.SpeechRequest) (*repositories.SpeechStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		err := m.err
		if m.failNext > 0 {
			m.failNext--
			if m.failNext == 0 {
				m.err = nil
			}
		}
		return nil, err
	}
	if req.Text == "" {
		return nil, errors.New("text cannot be empty")
	}

	m.logger.Debug("Mock synthesis", zap.String("voice", string(req.Voice)), zap.Int("textLength", len(req.Text)))
	return &repositories.SpeechStream{
		ReadCloser:  io.NopCloser(bytes.NewReader(m.audio)),
		ContentType: "audio/mpeg",
	}, nil
}
