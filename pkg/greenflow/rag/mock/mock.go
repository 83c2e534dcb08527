package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elevated-systems/greenflow/pkg/greenflow/rag"
)

// MockCompleter implements rag.Completer for testing
type MockCompleter struct {
	answer    string
	errorMode bool
	delay     time.Duration

	mu      sync.Mutex
	prompts []rag.Prompt
}

// New creates a completer that always returns answer
func New(answer string) *MockCompleter {
	return &MockCompleter{answer: answer}
}

// NewWithError creates a completer that always fails
func NewWithError() *MockCompleter {
	return &MockCompleter{errorMode: true}
}

// NewSlow creates a completer that waits for delay or context cancellation
func NewSlow(answer string, delay time.Duration) *MockCompleter {
	return &MockCompleter{answer: answer, delay: delay}
}

func (m *MockCompleter) Name() string { return "mock" }

// Complete records prompt and returns the configured response
func (m *MockCompleter) Complete(ctx context.Context, prompt rag.Prompt) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.errorMode {
		return "", fmt.Errorf("completion API error (mock)")
	}
	return m.answer, nil
}

// Prompts returns every prompt received so far
func (m *MockCompleter) Prompts() []rag.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]rag.Prompt(nil), m.prompts...)
}
