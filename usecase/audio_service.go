package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

const DefaultMaxUploadBytes int64 = 50 << 20

// AudioService handles the speech-to-text endpoint
type AudioService struct {
	gateway   *TranscriptionGateway
	lifecycle *AudioLifecycleManager
	maxBytes  int64
	logger    *zap.Logger
}

// NewAudioService creates a new audio service
func NewAudioService(gateway *TranscriptionGateway, lifecycle *AudioLifecycleManager, maxBytes int64, logger *zap.Logger) *AudioService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
		logger.Info("Using default upload limit", zap.Int64("maxBytes", maxBytes))
	}
	return &AudioService{
		gateway:   gateway,
		lifecycle: lifecycle,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// MaxUploadBytes returns the configured upload limit
func (s *AudioService) MaxUploadBytes() int64 {
	return s.maxBytes
}

// ValidateAudioFilename checks the upload extension
func ValidateAudioFilename(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || !slices.Contains(repositories.SupportedAudioExtensions, ext) {
		return fmt.Errorf("%w: unsupported audio format %q, allowed: %s",
			domain.ErrInvalidInput, ext, strings.Join(repositories.SupportedAudioExtensions, ", "))
	}
	return nil
}

// ProcessUpload transcribes an upload and stores it when usable. A failed
// transcription is a normal response with Success false, not an error.
func (s *AudioService) ProcessUpload(ctx context.Context, userID, filename string, r io.Reader) (*domain.TranscriptionResponse, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if err := ValidateAudioFilename(filename); err != nil {
		return nil, err
	}

	audio, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read upload: %v", domain.ErrInvalidInput, err)
	}
	if int64(len(audio)) > s.maxBytes {
		return nil, fmt.Errorf("%w: file too large, max %d bytes", domain.ErrInvalidInput, s.maxBytes)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio file", domain.ErrInvalidInput)
	}

	result, tempPath := s.gateway.Transcribe(ctx, filename, audio)
	stored, storeErr := s.lifecycle.Finalize(ctx, tempPath, filename, userID, result)

	resp := &domain.TranscriptionResponse{
		Transcription: result.DisplayText(),
		Success:       result.OK(),
	}
	if stored != nil {
		id := stored.ID.Hex()
		resp.AudioID = &id
	}
	if result.OK() && storeErr != nil {
		resp.Warning = domain.AudioStorageWarning
	}

	s.logger.Info("Processed audio upload",
		zap.String("userID", userID),
		zap.String("outcome", result.Kind.String()),
		zap.Bool("stored", stored != nil))
	return resp, nil
}

// AudioFile is a stored utterance opened for playback. The caller must
// close it.
type AudioFile struct {
	io.ReadCloser
	ContentType string
}

// OpenAudio opens a stored utterance of the user for playback
func (s *AudioService) OpenAudio(ctx context.Context, userID, audioID string) (*AudioFile, error) {
	id, err := primitive.ObjectIDFromHex(audioID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid audio id", domain.ErrInvalidInput)
	}
	audio, r, err := s.lifecycle.Open(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return &AudioFile{
		ReadCloser:  r,
		ContentType: repositories.ContentTypeForFile(audio.FilePath),
	}, nil
}
