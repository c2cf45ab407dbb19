package ai

import (
	"context"
	"strings"
	"sync"
)

// MockProvider is a test double for AI providers. It returns Responses in
// order and repeats the last one.
type MockProvider struct {
	Responses   []string
	Err         error
	LastRequest *CompletionRequest // captures the last request for inspection

	mu    sync.Mutex
	calls int
}

// NewMockProvider creates a MockProvider that returns the given responses.
func NewMockProvider(responses ...string) *MockProvider {
	return &MockProvider{Responses: responses}
}

func (m *MockProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastRequest = &req
	m.calls++
	if m.Err != nil {
		return CompletionResponse{}, m.Err
	}
	content := m.next()
	return CompletionResponse{
		Content:      content,
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: len(content),
	}, nil
}

// StreamComplete emits the next response word by word.
func (m *MockProvider) StreamComplete(_ context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	m.mu.Lock()
	m.LastRequest = &req
	m.calls++
	if m.Err != nil {
		m.mu.Unlock()
		return nil, m.Err
	}
	content := m.next()
	m.mu.Unlock()

	words := strings.SplitAfter(content, " ")
	ch := make(chan StreamChunk, len(words)+1)
	go func() {
		defer close(ch)
		for _, w := range words {
			if w != "" {
				ch <- StreamChunk{Content: w}
			}
		}
		ch <- StreamChunk{Done: true}
	}()
	return ch, nil
}

func (m *MockProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "mock", Name: "Mock Model", MaxTokens: 4096, Description: "Test mock"},
	}
}

func (m *MockProvider) HealthCheck(_ context.Context) error {
	return m.Err
}

// Calls returns how many requests the mock has served.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Request returns a copy of the last captured request.
func (m *MockProvider) Request() (CompletionRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LastRequest == nil {
		return CompletionRequest{}, false
	}
	return *m.LastRequest, true
}

func (m *MockProvider) next() string {
	if len(m.Responses) == 0 {
		return ""
	}
	i := min(m.calls-1, len(m.Responses)-1)
	return m.Responses[i]
}
