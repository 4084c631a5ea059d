package usecase

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

// TranscriptionKind tells callers whether an utterance can be used
type TranscriptionKind int

const (
	TranscriptionOK TranscriptionKind = iota
	TranscriptionEmpty
	TranscriptionError
)

func (k TranscriptionKind) String() string {
	switch k {
	case TranscriptionOK:
		return "ok"
	case TranscriptionEmpty:
		return "empty"
	default:
		return "error"
	}
}

// TranscriptionResult is the outcome of one recognition attempt. Text is only
// meaningful when Kind is TranscriptionOK.
type TranscriptionResult struct {
	Kind TranscriptionKind
	Text string
}

// OK reports whether the transcript can be stored and used
func (r TranscriptionResult) OK() bool {
	return r.Kind == TranscriptionOK
}

// DisplayText is what the user sees for this result
func (r TranscriptionResult) DisplayText() string {
	switch r.Kind {
	case TranscriptionOK:
		return r.Text
	case TranscriptionEmpty:
		return domain.TranscriptionEmptyMessage
	default:
		return domain.TranscriptionFailedMessage
	}
}

// TranscriptionRecorder counts transcription outcomes
type TranscriptionRecorder interface {
	RecordTranscription(ctx context.Context, outcome string)
}

// TranscriptionConfig configures the gateway
type TranscriptionConfig struct {
	Timeout    time.Duration
	Language   string
	SampleRate int
}

// TranscriptionGateway turns uploaded audio into a TranscriptionResult
type TranscriptionGateway struct {
	stt      repositories.SpeechToText
	files    repositories.AudioFileStore
	config   TranscriptionConfig
	recorder TranscriptionRecorder
	logger   *zap.Logger
}

// NewTranscriptionGateway creates a gateway. recorder may be nil.
func NewTranscriptionGateway(
	stt repositories.SpeechToText,
	files repositories.AudioFileStore,
	config TranscriptionConfig,
	recorder TranscriptionRecorder,
	logger *zap.Logger,
) *TranscriptionGateway {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
		logger.Info("Using default transcription timeout", zap.Duration("timeout", config.Timeout))
	}
	if config.Language == "" {
		config.Language = "en-US"
	}
	return &TranscriptionGateway{
		stt:      stt,
		files:    files,
		config:   config,
		recorder: recorder,
		logger:   logger,
	}
}

// Transcribe stores the upload as a temporary artifact and recognises it.
// It never fails: every problem is reported as TranscriptionError. The
// returned temp path is empty only when the artifact could not be written.
func (g *TranscriptionGateway) Transcribe(ctx context.Context, filename string, audio []byte) (TranscriptionResult, string) {
	tempPath, err := g.files.SaveTemp(ctx, filename, bytes.NewReader(audio))
	if err != nil {
		g.logger.Error("Failed to write temporary audio", zap.String("filename", filename), zap.Error(err))
		return g.finish(ctx, TranscriptionResult{Kind: TranscriptionError}), ""
	}

	text, err := g.recognize(ctx, filename, audio)
	if err != nil {
		g.logger.Warn("Transcription failed", zap.String("filename", filename), zap.Error(err))
		return g.finish(ctx, TranscriptionResult{Kind: TranscriptionError}), tempPath
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return g.finish(ctx, TranscriptionResult{Kind: TranscriptionEmpty}), tempPath
	}
	return g.finish(ctx, TranscriptionResult{Kind: TranscriptionOK, Text: text}), tempPath
}

func (g *TranscriptionGateway) recognize(ctx context.Context, filename string, audio []byte) (text string, err error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("speech recognizer panicked: %v", r)
		}
	}()

	return g.stt.TranscribeAudio(ctx, audio, repositories.AudioConfig{
		SampleRate: g.config.SampleRate,
		Encoding:   repositories.EncodingForFile(filename),
		Language:   g.config.Language,
	})
}

func (g *TranscriptionGateway) finish(ctx context.Context, result TranscriptionResult) TranscriptionResult {
	if g.recorder != nil {
		g.recorder.RecordTranscription(ctx, result.Kind.String())
	}
	return result
}
