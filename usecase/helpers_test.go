package usecase

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/NguyenNhat4/Speak-english-with-AI/adapters/filestore"
	"github.com/NguyenNhat4/Speak-english-with-AI/adapters/memory"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

type testStores struct {
	conversations *memory.ConversationRepository
	messages      *memory.MessageRepository
	audios        *memory.AudioRepository
	feedbacks     *memory.FeedbackRepository
	jobs          *memory.FeedbackJobRepository
	files         *filestore.LocalStore
	tempDir       string
	uploadDir     string
	logger        *zap.Logger
}

func newTestStores(t *testing.T) *testStores {
	t.Helper()
	logger := zaptest.NewLogger(t)
	root := t.TempDir()
	tempDir := filepath.Join(root, "tmp")
	uploadDir := filepath.Join(root, "uploads")
	files, err := filestore.NewLocalStore(filestore.Config{UploadDir: uploadDir, TempDir: tempDir}, logger)
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}
	return &testStores{
		conversations: memory.NewConversationRepository(),
		messages:      memory.NewMessageRepository(),
		audios:        memory.NewAudioRepository(),
		feedbacks:     memory.NewFeedbackRepository(),
		jobs:          memory.NewFeedbackJobRepository(),
		files:         files,
		tempDir:       tempDir,
		uploadDir:     uploadDir,
		logger:        logger,
	}
}

func (s *testStores) contextBuilder() *ContextBuilder {
	return NewContextBuilder(s.conversations, s.messages, s.logger)
}

func (s *testStores) tempFiles(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		t.Fatalf("Failed to read temp dir: %v", err)
	}
	return entries
}

// seedConversation stores a conversation for userID
func (s *testStores) seedConversation(t *testing.T, userID string, voice entities.VoiceType) *entities.Conversation {
	t.Helper()
	conv := entities.NewConversation(userID, entities.Scenario{
		UserRole:  "Customer",
		AIRole:    "Waiter",
		Situation: "Ordering food at a restaurant",
	}, voice)
	if err := s.conversations.Create(context.Background(), conv); err != nil {
		t.Fatalf("Failed to seed conversation: %v", err)
	}
	return conv
}

func (s *testStores) seedMessage(t *testing.T, msg *entities.Message) *entities.Message {
	t.Helper()
	if err := s.messages.Create(context.Background(), msg); err != nil {
		t.Fatalf("Failed to seed message: %v", err)
	}
	return msg
}

type recordingScheduler struct {
	mu   sync.Mutex
	jobs []*entities.FeedbackJob
}

func (r *recordingScheduler) Schedule(job *entities.FeedbackJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
}

func (r *recordingScheduler) scheduled() []*entities.FeedbackJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entities.FeedbackJob(nil), r.jobs...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	users  []string
	events []string
}

func (r *recordingNotifier) NotifyFeedbackReady(userID string, event domain.FeedbackReadyEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
	r.events = append(r.events, event.FeedbackID)
}

type panicLLM struct{}

func (panicLLM) Generate(ctx context.Context, prompt string) (string, error) {
	panic("model exploded")
}

type slowLLM struct{}

func (slowLLM) Generate(ctx context.Context, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(5 * time.Second):
		return "too late", nil
	}
}

type panicSTT struct{}

func (panicSTT) TranscribeAudio(ctx context.Context, audio []byte, cfg repositories.AudioConfig) (string, error) {
	panic("recognizer exploded")
}

// promoteFailingStore fails every promotion
type promoteFailingStore struct {
	*filestore.LocalStore
}

func (promoteFailingStore) Promote(ctx context.Context, tempPath, userID, filename string, at time.Time) (string, error) {
	return "", errors.New("disk full")
}

// failingAudioRepo fails every insert
type failingAudioRepo struct {
	*memory.AudioRepository
}

func (failingAudioRepo) Create(ctx context.Context, audio *entities.Audio) error {
	return errors.New("insert failed")
}

// failingMessageRepo fails every insert
type failingMessageRepo struct {
	*memory.MessageRepository
}

func (failingMessageRepo) Create(ctx context.Context, message *entities.Message) error {
	return errors.New("insert failed")
}

// flakyLinkRepo fails the first n link attempts
type flakyLinkRepo struct {
	*memory.MessageRepository
	mu       sync.Mutex
	failures int
}

func (r *flakyLinkRepo) SetFeedbackID(ctx context.Context, messageID, feedbackID primitive.ObjectID) error {
	r.mu.Lock()
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return errors.New("connection reset")
	}
	r.mu.Unlock()
	return r.MessageRepository.SetFeedbackID(ctx, messageID, feedbackID)
}

func readAll(t *testing.T, r io.Reader) string {
	t.Helper()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	return string(data)
}
