// Package help implements the Socratic hint assistant students can ask while
// working on a task.
package help

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/p-n-ai/pai-path/internal/ai"
	"github.com/p-n-ai/pai-path/internal/learning"
)

const (
	maxHistory     = 10
	contentPreview = 500
	defaultTokens  = 300
)

const systemPrompt = `You are a helpful learning assistant that provides guidance through hints and examples, NOT direct answers.

Your role is to:
- Guide students to discover answers themselves through thoughtful questioning
- Provide vague examples and analogies that illustrate concepts without solving the problem
- Break down complex problems into smaller thinking steps
- Encourage critical thinking with "what if" scenarios
- Use the Socratic method to lead them to understanding

What you should NEVER do:
- Give direct answers to assignment questions
- Provide complete code solutions
- Solve problems step-by-step with exact answers
- Do the work for the student

Keep responses concise (2-4 sentences) and always end with a guiding question to encourage further thinking.`

// Completer is the slice of the AI router the assistant needs.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
	StreamComplete(ctx context.Context, req ai.CompletionRequest) (<-chan ai.StreamChunk, error)
}

// TaskSource resolves task context and records hint usage.
type TaskSource interface {
	GetTask(ctx context.Context, id string) (learning.TaskDetail, error)
	RecordHint(ctx context.Context, taskID string) error
}

// Config configures an Assistant.
type Config struct {
	AI        Completer
	Tasks     TaskSource // optional
	MaxTokens int        // defaults to 300
}

// Assistant answers help requests with hints.
type Assistant struct {
	ai        Completer
	tasks     TaskSource
	maxTokens int
}

// New creates an Assistant.
func New(cfg Config) *Assistant {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultTokens
	}
	return &Assistant{ai: cfg.AI, tasks: cfg.Tasks, maxTokens: maxTokens}
}

// Request is one help question.
type Request struct {
	Message string
	History []ai.Message
	TaskID  string
	UserID  string
}

// Ask returns a hint for req.
func (a *Assistant) Ask(ctx context.Context, req Request) (string, error) {
	creq, err := a.build(ctx, req)
	if err != nil {
		return "", err
	}
	resp, err := a.ai.Complete(ctx, creq)
	if err != nil {
		return "", fmt.Errorf("help completion: %w", err)
	}
	a.recordHint(ctx, req.TaskID)
	return resp.Content, nil
}

// Stream returns a hint as it is generated.
func (a *Assistant) Stream(ctx context.Context, req Request) (<-chan ai.StreamChunk, error) {
	creq, err := a.build(ctx, req)
	if err != nil {
		return nil, err
	}
	ch, err := a.ai.StreamComplete(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("help stream: %w", err)
	}
	a.recordHint(ctx, req.TaskID)
	return ch, nil
}

func (a *Assistant) build(ctx context.Context, req Request) (ai.CompletionRequest, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return ai.CompletionRequest{}, fmt.Errorf("%w: message is required", learning.ErrValidation)
	}
	if a.ai == nil {
		return ai.CompletionRequest{}, fmt.Errorf("%w: no ai provider configured", learning.ErrExternalService)
	}

	prompt := systemPrompt
	if req.TaskID != "" && a.tasks != nil {
		detail, err := a.tasks.GetTask(ctx, req.TaskID)
		if err != nil {
			return ai.CompletionRequest{}, err
		}
		prompt += taskContext(detail)
	}

	messages := []ai.Message{{Role: "system", Content: prompt}}
	messages = append(messages, RecentHistory(req.History)...)
	messages = append(messages, ai.Message{Role: "user", Content: message})

	return ai.CompletionRequest{
		Messages:    messages,
		MaxTokens:   a.maxTokens,
		Temperature: 0.7,
		Task:        ai.TaskHint,
		UserID:      req.UserID,
	}, nil
}

func (a *Assistant) recordHint(ctx context.Context, taskID string) {
	if taskID == "" || a.tasks == nil {
		return
	}
	if err := a.tasks.RecordHint(ctx, taskID); err != nil {
		slog.Warn("failed to record hint", "task_id", taskID, "error", err)
	}
}

func taskContext(d learning.TaskDetail) string {
	content := d.Task.Content
	if r := []rune(content); len(r) > contentPreview {
		content = string(r[:contentPreview]) + "..."
	}

	var b strings.Builder
	b.WriteString("\n\nCURRENT TASK CONTEXT:\n")
	fmt.Fprintf(&b, "Task: %s\n", d.Task.Title)
	fmt.Fprintf(&b, "Description: %s\n", d.Task.Description)
	fmt.Fprintf(&b, "Lesson Content Summary: %s\n", content)
	if d.Assignment != nil && d.Assignment.Question != "" {
		fmt.Fprintf(&b, "Assignment Question: %s\n", d.Assignment.Question)
	}
	b.WriteString("\nUse this context to provide relevant hints and guidance related to the current task the student is working on.")
	return b.String()
}

// RecentHistory keeps the last ten user and assistant turns.
func RecentHistory(history []ai.Message) []ai.Message {
	kept := make([]ai.Message, 0, len(history))
	for _, m := range history {
		if (m.Role != "user" && m.Role != "assistant") || strings.TrimSpace(m.Content) == "" {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) > maxHistory {
		kept = kept[len(kept)-maxHistory:]
	}
	return kept
}

// UserError maps a help failure to an HTTP status and a message safe to show
// the student.
func UserError(err error) (int, string) {
	switch {
	case errors.Is(err, ai.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many requests. Please try again in a moment."
	case errors.Is(err, ai.ErrBudgetExceeded):
		return http.StatusTooManyRequests, "You have used today's help allowance. Please try again tomorrow."
	case errors.Is(err, ai.ErrQuotaExceeded):
		return http.StatusPaymentRequired, "Service temporarily unavailable. Please try again later."
	case errors.Is(err, learning.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, learning.ErrNotFound):
		return http.StatusNotFound, "Task not found."
	default:
		return http.StatusBadGateway, "AI service error"
	}
}
