package repositories

import (
	"context"
	"fmt"
	"io"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
)

// TextToSpeech abstracts speech synthesis providers. Synthesize returns once
// the provider accepted the request; audio is read from the stream as it
// arrives.
type TextToSpeech interface {
	Synthesize(ctx context.Context, req SpeechRequest) (*SpeechStream, error)
}

// SpeechRequest describes one synthesis call
type SpeechRequest struct {
	Text     string
	Voice    entities.VoiceType
	Format   string
	Speed    float64
	Language string
}

// SpeechStream is an audio body that must be closed by the reader
type SpeechStream struct {
	io.ReadCloser
	ContentType string
}

// SynthesisError is returned when the provider rejected or failed a request
type SynthesisError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
	Retryable  bool
	Err        error
}

func (e *SynthesisError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s synthesis failed with status %d: %s", e.Provider, e.StatusCode, msg)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s synthesis failed (%s): %s", e.Provider, e.Code, msg)
	}
	return fmt.Sprintf("%s synthesis failed: %s", e.Provider, msg)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}
