package evaluator_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-path/internal/ai"
	"github.com/p-n-ai/pai-path/internal/evaluator"
	"github.com/p-n-ai/pai-path/internal/learning"
)

func newEvaluator(t *testing.T, completer evaluator.Completer) *evaluator.Evaluator {
	t.Helper()
	e, err := evaluator.New(evaluator.Config{AI: completer, Timeout: time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func sampleRequest() learning.GradeRequest {
	return learning.GradeRequest{
		UserID:        "user-1",
		TaskTitle:     "Variables",
		LessonContent: "A variable names a value.",
		Question:      "What is a variable?",
		Answer:        "A named value.",
	}
}

func TestNew_RequiresCompleter(t *testing.T) {
	if _, err := evaluator.New(evaluator.Config{}); err == nil {
		t.Fatal("New() should fail without a completer")
	}
}

func TestEvaluate_ParsesReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  learning.Grade
	}{
		{
			name:  "plain json",
			reply: `{"score": 85, "feedback": "Good", "suggestions": "Add an example"}`,
			want:  learning.Grade{Score: 85, Feedback: "Good", Suggestions: "Add an example"},
		},
		{
			name:  "wrapped in prose and fences",
			reply: "Sure!\n```json\n{\"score\": 40, \"feedback\": \"Too short\"}\n```",
			want:  learning.Grade{Score: 40, Feedback: "Too short"},
		},
		{
			name:  "boundary scores",
			reply: `{"score": 0, "feedback": "Blank"}`,
			want:  learning.Grade{Score: 0, Feedback: "Blank"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEvaluator(t, ai.NewMockProvider(tt.reply))
			got, err := e.Evaluate(context.Background(), sampleRequest())
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_MalformedOutput(t *testing.T) {
	replies := map[string]string{
		"no json":          "I think this answer is quite good.",
		"score too high":   `{"score": 150, "feedback": "Great"}`,
		"negative score":   `{"score": -5, "feedback": "Bad"}`,
		"score as string":  `{"score": "85", "feedback": "Good"}`,
		"missing feedback": `{"score": 85}`,
		"broken json":      `{"score": 85, "feedback": }`,
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			e := newEvaluator(t, ai.NewMockProvider(reply))
			_, err := e.Evaluate(context.Background(), sampleRequest())
			if !errors.Is(err, evaluator.ErrMalformedOutput) {
				t.Fatalf("error = %v, want ErrMalformedOutput", err)
			}
			if !errors.Is(err, learning.ErrExternalService) {
				t.Errorf("error = %v, want ErrExternalService", err)
			}
		})
	}
}

func TestEvaluate_Request(t *testing.T) {
	mock := ai.NewMockProvider(`{"score": 90, "feedback": "ok"}`)
	e := newEvaluator(t, mock)

	if _, err := e.Evaluate(context.Background(), sampleRequest()); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	req, ok := mock.Request()
	if !ok {
		t.Fatal("no request captured")
	}
	if req.Task != ai.TaskGrading {
		t.Errorf("Task = %v, want grading", req.Task)
	}
	if !req.JSON {
		t.Error("JSON should be requested")
	}
	if req.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", req.UserID)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
		t.Fatalf("Messages = %+v, want system + user", req.Messages)
	}
	user := req.Messages[1].Content
	for _, want := range []string{"Task: Variables", "Assignment Question: What is a variable?", "Student's Answer: A named value."} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q:\n%s", want, user)
		}
	}
}

func TestEvaluate_ProviderError(t *testing.T) {
	mock := ai.NewMockProvider()
	mock.Err = ai.ErrRateLimited
	e := newEvaluator(t, mock)

	_, err := e.Evaluate(context.Background(), sampleRequest())
	if !errors.Is(err, learning.ErrExternalService) {
		t.Errorf("error = %v, want ErrExternalService", err)
	}
	if !errors.Is(err, ai.ErrRateLimited) {
		t.Errorf("error = %v, want ErrRateLimited kept in chain", err)
	}
}

type blockingCompleter struct{}

func (blockingCompleter) Complete(ctx context.Context, _ ai.CompletionRequest) (ai.CompletionResponse, error) {
	<-ctx.Done()
	return ai.CompletionResponse{}, ctx.Err()
}

func TestEvaluate_Timeout(t *testing.T) {
	e, err := evaluator.New(evaluator.Config{AI: blockingCompleter{}, Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = e.Evaluate(context.Background(), sampleRequest())
	if !errors.Is(err, learning.ErrExternalService) {
		t.Fatalf("error = %v, want ErrExternalService", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error = %v, want timeout message", err)
	}
}
