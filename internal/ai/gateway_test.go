package ai_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/p-n-ai/pai-path/internal/ai"
)

func TestMockProvider_Complete(t *testing.T) {
	mock := ai.NewMockProvider("test response")

	resp, err := mock.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "user", Content: "Hello"},
		},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "test response" {
		t.Errorf("Content = %q, want %q", resp.Content, "test response")
	}
	if resp.Model != "mock" {
		t.Errorf("Model = %q, want %q", resp.Model, "mock")
	}
	if mock.Calls() != 1 {
		t.Errorf("Calls() = %d, want 1", mock.Calls())
	}
}

func TestMockProvider_Responses(t *testing.T) {
	mock := ai.NewMockProvider("first", "second")
	for _, want := range []string{"first", "second", "second"} {
		resp, err := mock.Complete(context.Background(), ai.CompletionRequest{})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if resp.Content != want {
			t.Errorf("Content = %q, want %q", resp.Content, want)
		}
	}
}

func TestMockProvider_StreamComplete(t *testing.T) {
	mock := ai.NewMockProvider("a streamed hint")
	ch, err := mock.StreamComplete(context.Background(), ai.CompletionRequest{})
	if err != nil {
		t.Fatalf("StreamComplete() error = %v", err)
	}
	var got string
	var done bool
	for chunk := range ch {
		got += chunk.Content
		done = done || chunk.Done
	}
	if got != "a streamed hint" || !done {
		t.Errorf("stream = %q done=%v", got, done)
	}
}

func TestTaskType_String(t *testing.T) {
	tests := []struct {
		task     ai.TaskType
		expected string
	}{
		{ai.TaskCurriculum, "curriculum"},
		{ai.TaskGrading, "grading"},
		{ai.TaskHint, "hint"},
		{ai.TaskType(99), "unknown"},
	}
	for _, tt := range tests {
		if tt.task.String() != tt.expected {
			t.Errorf("TaskType.String() = %q, want %q", tt.task.String(), tt.expected)
		}
	}
}

func TestCompletionResponse_TotalTokens(t *testing.T) {
	resp := ai.CompletionResponse{InputTokens: 100, OutputTokens: 50}
	if got := resp.TotalTokens(); got != 150 {
		t.Errorf("TotalTokens() = %d, want 150", got)
	}
}

func TestStatusError_Unwrap(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusTooManyRequests, ai.ErrRateLimited},
		{http.StatusPaymentRequired, ai.ErrQuotaExceeded},
	}
	for _, tt := range tests {
		err := fmt.Errorf("wrapped: %w", &ai.StatusError{Provider: "openai", Code: tt.code})
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: errors.Is(%v) = false", tt.code, tt.want)
		}
	}

	err := &ai.StatusError{Provider: "openai", Code: http.StatusInternalServerError}
	if errors.Is(err, ai.ErrRateLimited) || errors.Is(err, ai.ErrQuotaExceeded) {
		t.Error("500 should not map to a sentinel")
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		ok      bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"prose around", `Here you go: {"a":{"b":2}} hope it helps`, `{"a":{"b":2}}`, true},
		{"no object", "no json here", "", false},
		{"reversed braces", "} nothing {", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ai.ExtractJSONObject(tt.content)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ExtractJSONObject() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
