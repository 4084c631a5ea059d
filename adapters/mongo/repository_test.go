package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
)

// setupTestClient connects to the database named by MONGODB_URI and drops the
// test database afterwards. Tests are skipped when MONGODB_URI is not set.
func setupTestClient(t *testing.T) *Client {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, Config{URI: uri, Database: "speak_english_test"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	if err := client.EnsureIndexes(ctx); err != nil {
		t.Fatalf("Failed to create indexes: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Database.Drop(context.Background())
		_ = client.Close(context.Background())
	})
	return client
}

func TestMongoMessageRepository_Integration(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	repo := NewMessageRepository(client.Database, zaptest.NewLogger(t))
	convID := primitive.NewObjectID()

	t.Run("TiesKeepInsertionOrder", func(t *testing.T) {
		ts := entities.Now()
		for _, c := range []string{"one", "two", "three"} {
			m := entities.NewAIMessage(convID, c)
			m.Timestamp = ts
			if err := repo.Create(ctx, m); err != nil {
				t.Fatalf("Failed to create message: %v", err)
			}
		}

		messages, err := repo.ListRecent(ctx, convID, 2)
		if err != nil {
			t.Fatalf("Failed to list messages: %v", err)
		}
		if len(messages) != 2 || messages[0].Content != "two" || messages[1].Content != "three" {
			t.Errorf("Expected [two three], got %+v", messages)
		}
	})

	t.Run("SetFeedbackIDOnce", func(t *testing.T) {
		msg := entities.NewUserMessage(convID, "hello", "")
		if err := repo.Create(ctx, msg); err != nil {
			t.Fatalf("Failed to create message: %v", err)
		}

		fid := primitive.NewObjectID()
		if err := repo.SetFeedbackID(ctx, msg.ID, fid); err != nil {
			t.Fatalf("Failed to link feedback: %v", err)
		}
		if err := repo.SetFeedbackID(ctx, msg.ID, fid); err != nil {
			t.Errorf("Expected idempotent link, got %v", err)
		}
		if err := repo.SetFeedbackID(ctx, msg.ID, primitive.NewObjectID()); !errors.Is(err, domain.ErrAlreadyLinked) {
			t.Errorf("Expected ErrAlreadyLinked, got %v", err)
		}
	})

	t.Run("MissingMessage", func(t *testing.T) {
		if _, err := repo.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestMongoFeedbackJobRepository_Integration(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	repo := NewFeedbackJobRepository(client.Database, zaptest.NewLogger(t))

	msg := entities.NewUserMessage(primitive.NewObjectID(), "hello", "")
	job := entities.NewFeedbackJob("user-1", msg, nil)
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	now := time.Now().UTC()
	claimed, err := repo.Claim(ctx, job.ID, now, time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("Expected claim, got %v, %v", claimed, err)
	}
	if claimed.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", claimed.Attempts)
	}

	if again, _ := repo.ClaimNextDue(ctx, now, time.Minute); again != nil {
		t.Error("Expected leased job not to be claimable")
	}
	if again, err := repo.Claim(ctx, job.ID, now, time.Minute); err != nil || again != nil {
		t.Errorf("Expected leased job not to be claimable, got %v, %v", again, err)
	}
	if missing, err := repo.Claim(ctx, primitive.NewObjectID(), now, time.Minute); err != nil || missing != nil {
		t.Errorf("Expected nil without error for a missing job, got %v, %v", missing, err)
	}

	if err := repo.MarkDead(ctx, job.ID, "boom", now); err != nil {
		t.Fatalf("Failed to mark job dead: %v", err)
	}
	stored, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if stored.Status != entities.JobStatusDead || stored.LastError != "boom" {
		t.Errorf("Unexpected job %+v", stored)
	}
}

func TestMongoConversationAndFeedback_Integration(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	conversations := NewConversationRepository(client.Database, logger)
	feedback := NewFeedbackRepository(client.Database, logger)
	audio := NewAudioRepository(client.Database, logger)

	conv := entities.NewConversation("user-1", entities.Scenario{UserRole: "customer", AIRole: "waiter", Situation: "ordering food"}, "af_bella")
	if err := conversations.Create(ctx, conv); err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}
	got, err := conversations.GetByID(ctx, conv.ID)
	if err != nil || got.AIRole != "waiter" || got.VoiceType != "af_bella" {
		t.Fatalf("Unexpected conversation %+v, %v", got, err)
	}

	list, err := conversations.ListByUser(ctx, "user-1", 5)
	if err != nil || len(list) != 1 {
		t.Errorf("Expected one conversation, got %d, %v", len(list), err)
	}

	gone := entities.NewConversation("user-1", entities.Scenario{UserRole: "a", AIRole: "b"}, "")
	if err := conversations.Create(ctx, gone); err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}
	if err := conversations.Delete(ctx, gone.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := conversations.GetByID(ctx, gone.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected deleted conversation to be gone, got %v", err)
	}
	if err := conversations.Delete(ctx, gone.ID); err != nil {
		t.Errorf("Expected deleting a missing conversation to succeed, got %v", err)
	}

	rec := entities.NewAudio("user-1", "uploads/user-1/a.wav", "I want to order a pizza")
	if err := audio.Create(ctx, rec); err != nil {
		t.Fatalf("Failed to create audio: %v", err)
	}
	if a, err := audio.GetByID(ctx, rec.ID); err != nil || a.Transcription != rec.Transcription || a.HasError {
		t.Errorf("Unexpected audio %+v, %v", a, err)
	}

	target := primitive.NewObjectID()
	fb := entities.NewMessageFeedback("user-1", target, "hello", "Nice work")
	if err := feedback.Create(ctx, fb); err != nil {
		t.Fatalf("Failed to create feedback: %v", err)
	}
	latest, err := feedback.GetLatestByTarget(ctx, target, entities.TargetMessage)
	if err != nil || latest.ID != fb.ID {
		t.Errorf("Expected feedback %s, got %+v, %v", fb.ID.Hex(), latest, err)
	}
}
