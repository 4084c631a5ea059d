package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"
)

func TestValidateGeminiConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GeminiConfig
		wantErr bool
	}{
		{"missing key", GeminiConfig{}, true},
		{"defaults", GeminiConfig{APIKey: "k"}, false},
		{"temperature too high", GeminiConfig{APIKey: "k", Temperature: 3}, true},
		{"topP out of range", GeminiConfig{APIKey: "k", TopP: 1.5}, true},
		{"negative topK", GeminiConfig{APIKey: "k", TopK: -1}, true},
		{"negative attempts", GeminiConfig{APIKey: "k", MaxAttempts: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGeminiConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGeminiConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResponseText(t *testing.T) {
	if got := responseText(nil); got != "" {
		t.Errorf("Expected empty text for nil response, got %q", got)
	}

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: " Hello"},
				{Text: ", how are you? "},
			}},
		}},
	}
	if got := responseText(resp); got != "Hello, how are you?" {
		t.Errorf("Expected joined text, got %q", got)
	}
}

// Integration test - only runs if GEMINI_API_KEY is set
func TestGeminiLLM_GenerateRetries(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		status    int
		wantErr   bool
		wantCalls int32
	}{
		{"success", 0, 0, false, 1},
		{"unavailable then success", 1, http.StatusServiceUnavailable, false, 2},
		{"rate limited until exhausted", 5, http.StatusTooManyRequests, true, 3},
		{"bad request is not retried", 5, http.StatusBadRequest, true, 1},
		{"forbidden is not retried", 5, http.StatusForbidden, true, 1},
		{"not found is not retried", 5, http.StatusNotFound, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				if int(n) <= tt.failures {
					w.WriteHeader(tt.status)
					fmt.Fprintf(w, `{"error":{"code":%d,"message":"failure","status":"ERROR"}}`, tt.status)
					return
				}
				fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello there"}]}}]}`)
			}))
			defer srv.Close()

			g, err := NewGeminiLLM(context.Background(), GeminiConfig{APIKey: "k", BaseURL: srv.URL, MaxAttempts: 3}, zaptest.NewLogger(t))
			if err != nil {
				t.Fatalf("Failed to create Gemini LLM: %v", err)
			}
			g.backoff = func(int) time.Duration { return 0 }

			text, err := g.Generate(context.Background(), "Say hello")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if !tt.wantErr && text != "Hello there" {
				t.Errorf("Expected model text, got %q", text)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("Expected %d calls, got %d", tt.wantCalls, got)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want bool
	}{
		{"server error", context.Background(), genai.APIError{Code: 500}, true},
		{"rate limit", context.Background(), genai.APIError{Code: 429}, true},
		{"wrapped unauthorized", context.Background(), fmt.Errorf("call: %w", genai.APIError{Code: 401}), false},
		{"pointer bad request", context.Background(), &genai.APIError{Code: 400}, false},
		{"network error", context.Background(), errors.New("connection reset"), true},
		{"canceled", canceled, errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		if got := retryable(tt.ctx, tt.err); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestGeminiLLM_Generate_Integration(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping integration test - set GEMINI_API_KEY environment variable")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	g, err := NewGeminiLLM(ctx, GeminiConfig{APIKey: apiKey}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create Gemini LLM: %v", err)
	}

	reply, err := g.Generate(ctx, "Reply with the single word: pizza")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(strings.ToLower(reply), "pizza") {
		t.Errorf("Unexpected reply %q", reply)
	}
}
