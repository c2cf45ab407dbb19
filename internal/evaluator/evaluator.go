// Package evaluator grades assignment answers with an AI model.
package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-path/internal/ai"
	"github.com/p-n-ai/pai-path/internal/learning"
)

const defaultTimeout = 30 * time.Second

// ErrMalformedOutput marks a model reply that is not a valid grade. It is an
// external service failure; a malformed reply never becomes a score of 0.
var ErrMalformedOutput = fmt.Errorf("%w: malformed evaluation output", learning.ErrExternalService)

const systemPrompt = `You are an expert educational evaluator. Evaluate the student's answer and provide:
1. A score from 0-100
2. Constructive feedback
3. Suggestions for improvement

Respond with ONLY a JSON object in exactly this shape:
{
  "score": 85,
  "feedback": "Detailed feedback about what was good and what could be improved",
  "suggestions": "Specific suggestions for improvement"
}`

var gradeSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["score", "feedback"],
  "properties": {
    "score": {"type": "integer", "minimum": 0, "maximum": 100},
    "feedback": {"type": "string"},
    "suggestions": {"type": "string"}
  }
}`)

// Completer is the slice of the AI router the evaluator needs.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
}

// Config configures an Evaluator.
type Config struct {
	AI      Completer
	Timeout time.Duration // per call; defaults to 30s
	Model   string        // optional model override
}

// Evaluator implements learning.Evaluator on top of an AI completer.
type Evaluator struct {
	ai      Completer
	timeout time.Duration
	model   string
	schema  *gojsonschema.Schema
}

// New creates an Evaluator.
func New(cfg Config) (*Evaluator, error) {
	if cfg.AI == nil {
		return nil, errors.New("evaluator: ai completer is required")
	}
	schema, err := gojsonschema.NewSchema(gradeSchema)
	if err != nil {
		return nil, fmt.Errorf("compile grade schema: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Evaluator{ai: cfg.AI, timeout: timeout, model: cfg.Model, schema: schema}, nil
}

// Evaluate grades one answer.
func (e *Evaluator) Evaluate(ctx context.Context, req learning.GradeRequest) (learning.Grade, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.ai.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
		Model:       e.model,
		Temperature: 0.5,
		Task:        ai.TaskGrading,
		JSON:        true,
		UserID:      req.UserID,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return learning.Grade{}, fmt.Errorf("%w: evaluation timed out after %s", learning.ErrExternalService, e.timeout)
		}
		return learning.Grade{}, fmt.Errorf("%w: %w", learning.ErrExternalService, err)
	}

	grade, err := e.parse(resp.Content)
	if err != nil {
		slog.Warn("unusable evaluation output", "model", resp.Model, "error", err)
		return learning.Grade{}, err
	}
	return grade, nil
}

func (e *Evaluator) parse(content string) (learning.Grade, error) {
	raw, ok := ai.ExtractJSONObject(content)
	if !ok {
		return learning.Grade{}, fmt.Errorf("%w: no json object in reply", ErrMalformedOutput)
	}

	result, err := e.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return learning.Grade{}, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	if !result.Valid() {
		return learning.Grade{}, fmt.Errorf("%w: %s", ErrMalformedOutput, result.Errors()[0])
	}

	var grade learning.Grade
	if err := json.Unmarshal([]byte(raw), &grade); err != nil {
		return learning.Grade{}, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	return grade, nil
}

func userPrompt(req learning.GradeRequest) string {
	return fmt.Sprintf(`Task: %s

Lesson Content: %s

Assignment Question: %s

Student's Answer: %s

Please evaluate this answer and provide a score with detailed feedback.`,
		req.TaskTitle, req.LessonContent, req.Question, req.Answer)
}
