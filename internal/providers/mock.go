package providers

import (
	"context"
	"fmt"
	"sync"
)

// MockLLMClient is a test double that replays canned responses.
type MockLLMClient struct {
	mu        sync.Mutex
	name      string
	responses []string
	calls     []*ChatRequest
	err       error
}

// NewMockLLMClient creates a mock that returns the given responses in order,
// repeating the last one when exhausted.
func NewMockLLMClient(responses ...string) *MockLLMClient {
	return &MockLLMClient{name: "mock", responses: responses}
}

// SetError makes every subsequent Chat call fail with err.
func (m *MockLLMClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the requests received so far.
func (m *MockLLMClient) Calls() []*ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ChatRequest(nil), m.calls...)
}

// Name returns "mock".
func (m *MockLLMClient) Name() string { return m.name }

// Chat replays the next canned response.
func (m *MockLLMClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("mock has no responses configured")
	}
	idx := len(m.calls) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	content := m.responses[idx]

	result := &ChatResult{
		Content:   content,
		Provider:  m.name,
		ModelUsed: "mock-model",
		RequestID: req.RequestID,
	}
	if req.ResponseFormat != nil {
		if parsed, err := ParseStructured(content, req.ResponseFormat.JSONSchema); err == nil {
			result.ParsedJSON = parsed
		}
	}
	return result, nil
}
