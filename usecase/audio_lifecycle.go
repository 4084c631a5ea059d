package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

// AudioLifecycleManager decides what survives of an upload. Only successful
// transcriptions leave a durable file and an audio record behind.
type AudioLifecycleManager struct {
	files  repositories.AudioFileStore
	audios repositories.AudioRepository
	now    func() time.Time
	logger *zap.Logger
}

// NewAudioLifecycleManager creates a new lifecycle manager
func NewAudioLifecycleManager(files repositories.AudioFileStore, audios repositories.AudioRepository, logger *zap.Logger) *AudioLifecycleManager {
	return &AudioLifecycleManager{
		files:  files,
		audios: audios,
		now:    time.Now,
		logger: logger,
	}
}

// Finalize promotes or discards the temporary artifact. For a usable result
// it returns the stored audio record; a non-nil error is a storage warning
// and never invalidates the transcription itself.
func (m *AudioLifecycleManager) Finalize(ctx context.Context, tempPath, filename, userID string, result TranscriptionResult) (*entities.Audio, error) {
	defer m.removeTemp(tempPath)

	if !result.OK() {
		return nil, nil
	}
	if tempPath == "" {
		return nil, errors.New("no temporary artifact to promote")
	}

	durable, err := m.files.Promote(ctx, tempPath, userID, filename, m.now())
	if err != nil {
		m.logger.Error("Failed to store audio file", zap.String("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to store audio file: %w", err)
	}

	audio := entities.NewAudio(userID, durable, result.Text)
	if err := m.audios.Create(ctx, audio); err != nil {
		m.logger.Error("Failed to create audio record", zap.String("userID", userID), zap.Error(err))
		if rmErr := m.files.Remove(durable); rmErr != nil {
			m.logger.Warn("Failed to remove durable audio", zap.String("path", durable), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("failed to create audio record: %w", err)
	}

	m.logger.Info("Audio stored",
		zap.String("audioID", audio.ID.Hex()),
		zap.String("userID", userID),
		zap.String("path", durable))
	return audio, nil
}

// Open returns the stored artifact of an audio record owned by userID.
// Records of other users are reported as not found.
func (m *AudioLifecycleManager) Open(ctx context.Context, userID string, id primitive.ObjectID) (*entities.Audio, io.ReadCloser, error) {
	audio, err := m.audios.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if audio.UserID != userID {
		return nil, nil, fmt.Errorf("audio: %w", domain.ErrNotFound)
	}
	r, err := m.files.Open(audio.FilePath)
	if errors.Is(err, fs.ErrNotExist) {
		m.logger.Warn("Audio record without file", zap.String("audioID", id.Hex()), zap.String("path", audio.FilePath))
		return nil, nil, fmt.Errorf("audio file: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	return audio, r, nil
}

func (m *AudioLifecycleManager) removeTemp(path string) {
	if path == "" {
		return
	}
	if err := m.files.Remove(path); err != nil {
		m.logger.Warn("Failed to remove temporary audio", zap.String("path", path), zap.Error(err))
	}
}
