package llm

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

// MockLLM answers from a script. Each call consumes the next reply; when the
// script is exhausted the last entry repeats. An entry with Err set fails
// the call.
type MockLLM struct {
	mu      sync.Mutex
	script  []MockReply
	prompts []string
}

// MockReply is one scripted answer
type MockReply struct {
	Text string
	Err  error
}

var _ repositories.LargeLanguageModel = (*MockLLM)(nil)

// NewMockLLM creates a scripted mock. Without a script it answers with a
// short in-character reply and a valid scenario refinement.
func NewMockLLM(script ...MockReply) *MockLLM {
	return &MockLLM{script: script}
}

// Generate implements repositories.LargeLanguageModel
func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)

	if len(m.script) == 0 {
		return defaultMockReply(prompt), nil
	}

	reply := m.script[0]
	if len(m.script) > 1 {
		m.script = m.script[1:]
	}
	if reply.Err != nil {
		return "", reply.Err
	}
	return reply.Text, nil
}

// Prompts returns every prompt received so far
func (m *MockLLM) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// ErrMockUnavailable is a convenience failure for scripts
var ErrMockUnavailable = errors.New("mock llm unavailable")

func defaultMockReply(prompt string) string {
	if strings.Contains(prompt, "refined_user_role") {
		return "```json\n" + `{"refined_user_role": "Customer", "refined_ai_role": "Waiter", ` +
			`"refined_situation": "Ordering food at a restaurant", ` +
			`"response": "Good evening! Welcome to our restaurant. What would you like to order today?", ` +
			`"ai_gender": "female"}` + "\n```"
	}
	return "That sounds great! What would you like to talk about next?"
}
