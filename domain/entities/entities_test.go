package entities

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestConversationScenarioDefaults(t *testing.T) {
	var missing *Conversation
	s := missing.Scenario()
	if s.UserRole != DefaultUserRole || s.AIRole != DefaultAIRole || s.Situation != DefaultSituation {
		t.Errorf("Expected defaults for nil conversation, got %+v", s)
	}

	conv := NewConversation("user-1", Scenario{UserRole: "customer", AIRole: "  ", Situation: "ordering food"}, "")
	s = conv.Scenario()
	if s.UserRole != "customer" {
		t.Errorf("Expected user role customer, got %s", s.UserRole)
	}
	if s.AIRole != DefaultAIRole {
		t.Errorf("Expected default ai role, got %s", s.AIRole)
	}
	if conv.Voice() != DefaultVoice {
		t.Errorf("Expected default voice, got %s", conv.Voice())
	}
}

func TestConversationOwnership(t *testing.T) {
	conv := NewConversation("user-1", Scenario{UserRole: "a", AIRole: "b"}, "am_adam")
	if !conv.OwnedBy("user-1") {
		t.Error("Expected conversation to be owned by user-1")
	}
	if conv.OwnedBy("user-2") || conv.OwnedBy("") {
		t.Error("Expected conversation not to be owned by other users")
	}
	if err := conv.Validate(); err != nil {
		t.Errorf("Expected valid conversation, got %v", err)
	}

	conv.VoiceType = "xx_unknown"
	if err := conv.Validate(); err == nil {
		t.Error("Expected error for unknown voice")
	}
}

func TestMessageConstructors(t *testing.T) {
	convID := primitive.NewObjectID()

	user := NewUserMessage(convID, "I want to order a pizza", "uploads/u/a.wav")
	if user.Sender != SenderUser {
		t.Errorf("Expected sender user, got %s", user.Sender)
	}
	if user.Content != user.Transcription {
		t.Errorf("Expected content to equal transcription, got %q and %q", user.Content, user.Transcription)
	}
	if user.HasFeedback() {
		t.Error("New message must not carry feedback")
	}
	if err := user.Validate(); err != nil {
		t.Errorf("Expected valid user message, got %v", err)
	}

	ai := NewAIMessage(convID, "What would you like on it?")
	if ai.Sender != SenderAI || ai.Transcription != "" {
		t.Errorf("Unexpected ai message %+v", ai)
	}

	ai.Transcription = "oops"
	if err := ai.Validate(); err == nil {
		t.Error("Expected error for ai message with transcription")
	}
}

func TestNowPrecision(t *testing.T) {
	now := Now()
	if now.Nanosecond()%int(time.Millisecond) != 0 {
		t.Errorf("Expected millisecond precision, got %v", now)
	}
	if now.Location() != time.UTC {
		t.Errorf("Expected UTC, got %v", now.Location())
	}
}

func TestVoiceSelection(t *testing.T) {
	tests := []struct {
		gender string
		want   Gender
	}{
		{"female", GenderFemale},
		{"Female", GenderFemale},
		{"male", GenderMale},
		{" MALE ", GenderMale},
		{"a woman", GenderFemale},
		{"robot", GenderUnknown},
		{"human", GenderUnknown},
		{"manager", GenderUnknown},
		{"Gender: Female.", GenderFemale},
		{"\"male\"", GenderMale},
		{"an elderly gentleman", GenderMale},
		{"F", GenderFemale},
		{"woman, not a man", GenderFemale},
		{"", GenderUnknown},
	}

	for _, tt := range tests {
		if got := ParseGender(tt.gender); got != tt.want {
			t.Errorf("ParseGender(%q) = %q, want %q", tt.gender, got, tt.want)
		}
	}

	for i := 0; i < len(MaleVoices); i++ {
		v := VoiceForGender(GenderMale, func(int) int { return i })
		if v.Gender() != GenderMale || !v.IsValid() {
			t.Errorf("Expected valid male voice, got %s", v)
		}
	}

	if v := VoiceForGender(GenderFemale, func(n int) int { return n + 5 }); v != FemaleVoices[0] {
		t.Errorf("Expected clamped index to select first voice, got %s", v)
	}
	if v := VoiceForGender(GenderUnknown, nil); v != DefaultVoice {
		t.Errorf("Expected default voice, got %s", v)
	}
}

func TestFeedbackJobClaimable(t *testing.T) {
	convID := primitive.NewObjectID()
	msg := NewUserMessage(convID, "hello", "")
	job := NewFeedbackJob("user-1", msg, nil)

	now := time.Now()
	if !job.Claimable(now.Add(time.Second)) {
		t.Error("Expected new job to be claimable")
	}

	job.NextAttemptAt = now.Add(time.Minute)
	if job.Claimable(now) {
		t.Error("Expected job with future attempt not to be claimable")
	}

	job.Status = JobStatusRunning
	job.LeaseUntil = now.Add(time.Minute)
	if job.Claimable(now) {
		t.Error("Expected leased job not to be claimable")
	}
	if !job.Claimable(now.Add(2 * time.Minute)) {
		t.Error("Expected job with expired lease to be claimable")
	}

	job.Status = JobStatusDead
	if job.Claimable(now.Add(time.Hour)) || !job.IsFinal() {
		t.Error("Expected dead job to be final")
	}
}

func TestFeedbackValidate(t *testing.T) {
	fb := NewMessageFeedback("user-1", primitive.NewObjectID(), "hello", "Good job")
	if err := fb.Validate(); err != nil {
		t.Errorf("Expected valid feedback, got %v", err)
	}
	if fb.TargetType != TargetMessage {
		t.Errorf("Expected target type message, got %s", fb.TargetType)
	}

	fb.UserFeedback = ""
	if err := fb.Validate(); err == nil {
		t.Error("Expected error for empty feedback text")
	}
}
