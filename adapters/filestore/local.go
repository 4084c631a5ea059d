// Package filestore keeps uploaded audio on the local disk. Uploads land in a
// temporary directory first and are promoted to a per-user durable path once
// transcription succeeded.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

const durableTimeLayout = "20060102_150405"

// Config configures the local file store
type Config struct {
	UploadDir string
	TempDir   string
}

// LocalStore implements repositories.AudioFileStore on the local filesystem
type LocalStore struct {
	uploadDir string
	tempDir   string
	logger    *zap.Logger
}

var _ repositories.AudioFileStore = (*LocalStore)(nil)

// NewLocalStore creates the store and its directories
func NewLocalStore(cfg Config, logger *zap.Logger) (*LocalStore, error) {
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
		logger.Info("Using default upload directory", zap.String("uploadDir", cfg.UploadDir))
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "speak-english-audio")
		logger.Info("Using default temp directory", zap.String("tempDir", cfg.TempDir))
	}

	for _, dir := range []string{cfg.UploadDir, cfg.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return &LocalStore{uploadDir: cfg.UploadDir, tempDir: cfg.TempDir, logger: logger}, nil
}

// SaveTemp copies r into a uniquely named temporary file
func (s *LocalStore) SaveTemp(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.tempDir, uuid.NewString()+strings.ToLower(filepath.Ext(filename)))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return path, nil
}

// Promote copies a temporary upload to <upload_dir>/<user_id>/<time>_<name>.
// An existing file at the target is never overwritten.
func (s *LocalStore) Promote(ctx context.Context, tempPath, userID, filename string, at time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if userID == "" || strings.ContainsAny(userID, `/\`) || userID == "." || userID == ".." {
		return "", fmt.Errorf("invalid user id %q", userID)
	}

	dir := filepath.Join(s.uploadDir, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create user directory: %w", err)
	}
	target := filepath.Join(dir, DurableName(filename, at))

	src, err := os.Open(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to open temp file: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create durable file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(target)
		return "", fmt.Errorf("failed to copy audio: %w", err)
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		os.Remove(target)
		return "", fmt.Errorf("failed to sync audio: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("failed to close durable file: %w", err)
	}

	s.logger.Debug("Promoted audio", zap.String("path", target))
	return target, nil
}

// Open opens a durable audio file for reading. Paths outside the upload
// directory are refused.
func (s *LocalStore) Open(path string) (io.ReadCloser, error) {
	rel, err := filepath.Rel(s.uploadDir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("path %s is outside the upload directory", path)
	}
	return os.Open(path)
}

// Remove deletes a file; a missing file is not an error
func (s *LocalStore) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// DurableName builds the timestamped file name used for promoted audio
func DurableName(filename string, at time.Time) string {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "." || name == "/" || name == "" {
		name = "audio"
	}
	return at.UTC().Format(durableTimeLayout) + "_" + name
}
