package curriculum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-path/internal/ai"
)

const defaultTimeout = 90 * time.Second

// ErrMalformedOutput marks a model reply that is not a usable curriculum.
var ErrMalformedOutput = errors.New("malformed curriculum output")

var curriculumSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["title", "topics"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "topics": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["title", "tasks"],
        "properties": {
          "title": {"type": "string"},
          "description": {"type": "string"},
          "tasks": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["title", "assignment"],
              "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "content": {"type": "string"},
                "assignment": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`)

var systemPrompt = fmt.Sprintf(`You are an expert educational curriculum designer. Create a comprehensive learning curriculum organized into topics (chapters) with multiple tasks under each topic.

STRUCTURE:
- Create %d-%d main topics (chapters) for a complete learning journey
- Each topic should have 3-4 tasks
- Total of %d-%d tasks across all topics
- Progress from basic fundamentals to advanced mastery
- Include practical, hands-on assignments

Keep lesson content concise (max 300 words per task). Focus on key concepts and practical examples.

Each task should include:
1. A clear, engaging title
2. A brief description (1-2 sentences)
3. Concise lesson content (key concepts, 2-3 examples max)
4. An assignment question to test understanding

Respond with ONLY valid JSON, no markdown formatting, in exactly this shape:
{
  "title": "Course title",
  "description": "Course description",
  "topics": [
    {
      "title": "Topic title",
      "description": "Topic description",
      "tasks": [
        {
          "title": "Task title",
          "description": "Task description",
          "content": "Lesson content",
          "assignment": "Assignment question"
        }
      ]
    }
  ]
}`, MinTopics, MaxTopics, MinTasks, MaxTasks)

// Completer is the slice of the AI router the generator needs.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
}

// AIGeneratorConfig configures an AIGenerator.
type AIGeneratorConfig struct {
	AI        Completer
	Timeout   time.Duration // defaults to 90s
	Model     string
	MaxTokens int
}

// AIGenerator asks a model for a curriculum.
type AIGenerator struct {
	ai        Completer
	timeout   time.Duration
	model     string
	maxTokens int
	schema    *gojsonschema.Schema
}

// NewAIGenerator creates an AIGenerator.
func NewAIGenerator(cfg AIGeneratorConfig) (*AIGenerator, error) {
	if cfg.AI == nil {
		return nil, errors.New("curriculum: ai completer is required")
	}
	schema, err := gojsonschema.NewSchema(curriculumSchema)
	if err != nil {
		return nil, fmt.Errorf("compile curriculum schema: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &AIGenerator{
		ai:        cfg.AI,
		timeout:   timeout,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		schema:    schema,
	}, nil
}

// Generate produces a validated curriculum for goal.
func (g *AIGenerator) Generate(ctx context.Context, goal string) (Curriculum, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.ai.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Create a learning curriculum for: " + goal},
		},
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: 0.7,
		Task:        ai.TaskCurriculum,
		JSON:        true,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Curriculum{}, fmt.Errorf("curriculum generation timed out after %s: %w", g.timeout, err)
		}
		return Curriculum{}, fmt.Errorf("curriculum generation: %w", err)
	}
	slog.Debug("curriculum reply received", "model", resp.Model, "length", len(resp.Content))

	c, err := g.Parse(resp.Content)
	if err != nil {
		slog.Warn("unusable curriculum output", "model", resp.Model, "error", err)
		return Curriculum{}, err
	}
	return c, nil
}

// Parse extracts and validates a curriculum from a model reply.
func (g *AIGenerator) Parse(content string) (Curriculum, error) {
	raw, ok := ai.ExtractJSONObject(strings.TrimSpace(content))
	if !ok {
		return Curriculum{}, fmt.Errorf("%w: no json object found", ErrMalformedOutput)
	}

	result, err := g.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return Curriculum{}, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	if !result.Valid() {
		return Curriculum{}, fmt.Errorf("%w: %s", ErrMalformedOutput, result.Errors()[0])
	}

	var c Curriculum
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Curriculum{}, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	if err := c.Validate(); err != nil {
		return Curriculum{}, err
	}
	return c, nil
}
