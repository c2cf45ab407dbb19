// Package ai provides a provider-agnostic AI gateway with task-based routing.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TaskType defines the kind of AI task for routing purposes.
type TaskType int

const (
	TaskCurriculum TaskType = iota
	TaskGrading
	TaskHint
)

func (t TaskType) String() string {
	switch t {
	case TaskCurriculum:
		return "curriculum"
	case TaskGrading:
		return "grading"
	case TaskHint:
		return "hint"
	default:
		return "unknown"
	}
}

var (
	// ErrRateLimited is returned when a provider answers 429.
	ErrRateLimited = errors.New("ai rate limited")
	// ErrQuotaExceeded is returned when a provider answers 402 (credits exhausted).
	ErrQuotaExceeded = errors.New("ai quota exceeded")
	// ErrBudgetExceeded is returned when the user's token budget is spent.
	ErrBudgetExceeded = errors.New("ai token budget exceeded")
	// ErrNoProvider is returned when the router has nothing registered.
	ErrNoProvider = errors.New("no ai provider configured")
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
	// JSON asks the provider for a JSON object response where supported.
	JSON bool `json:"json,omitempty"`
	// UserID is charged against the token budget when set.
	UserID string `json:"user_id,omitempty"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// StreamChunk represents a streaming response chunk.
type StreamChunk struct {
	Content string
	Done    bool
	Error   error
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}

// StatusError is a non-200 answer from a provider API.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.Code, e.Body)
}

// Unwrap maps well-known statuses to sentinel errors.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrQuotaExceeded
	default:
		return nil
	}
}

func statusError(provider string, code int, body []byte) error {
	const maxBody = 512
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	return &StatusError{Provider: provider, Code: code, Body: string(body)}
}

// ExtractJSONObject returns the span from the first '{' to the last '}' of a
// model reply, after dropping markdown code fences.
func ExtractJSONObject(content string) (string, bool) {
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	first := strings.Index(content, "{")
	last := strings.LastIndex(content, "}")
	if first < 0 || last < first {
		return "", false
	}
	return content[first : last+1], true
}
