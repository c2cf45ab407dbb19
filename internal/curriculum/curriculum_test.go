package curriculum_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-path/internal/ai"
	"github.com/p-n-ai/pai-path/internal/curriculum"
)

const goCurriculumJSON = `{
  "title": "Learn Go",
  "description": "From zero to services",
  "topics": [
    {
      "title": "Basics",
      "description": "Syntax",
      "tasks": [
        {"title": "Variables", "description": "Names", "content": "var x int", "assignment": "Declare a variable."},
        {"title": "Loops", "description": "for", "content": "for i := range 3", "assignment": "Write a loop."}
      ]
    },
    {
      "title": "Concurrency",
      "tasks": [
        {"title": "Goroutines", "content": "go f()", "assignment": "Start a goroutine."}
      ]
    }
  ]
}`

func validCurriculum() curriculum.Curriculum {
	return curriculum.Curriculum{
		Title: "Learn Go",
		Topics: []curriculum.Topic{
			{Title: "Basics", Tasks: []curriculum.Task{{Title: "Variables", Assignment: "Declare one."}}},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*curriculum.Curriculum)
		ok     bool
	}{
		{"valid", func(*curriculum.Curriculum) {}, true},
		{"missing title", func(c *curriculum.Curriculum) { c.Title = "  " }, false},
		{"no topics", func(c *curriculum.Curriculum) { c.Topics = nil }, false},
		{"topic without title", func(c *curriculum.Curriculum) { c.Topics[0].Title = "" }, false},
		{"topic without tasks", func(c *curriculum.Curriculum) { c.Topics[0].Tasks = nil }, false},
		{"task without title", func(c *curriculum.Curriculum) { c.Topics[0].Tasks[0].Title = "" }, false},
		{"task without assignment", func(c *curriculum.Curriculum) { c.Topics[0].Tasks[0].Assignment = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCurriculum()
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, curriculum.ErrInvalid) {
				t.Fatalf("Validate() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestTaskCount(t *testing.T) {
	c := curriculum.Curriculum{Topics: []curriculum.Topic{
		{Tasks: make([]curriculum.Task, 3)},
		{Tasks: make([]curriculum.Task, 4)},
	}}
	if got := c.TaskCount(); got != 7 {
		t.Errorf("TaskCount() = %d, want 7", got)
	}
}

func newGenerator(t *testing.T, mock *ai.MockProvider) *curriculum.AIGenerator {
	t.Helper()
	g, err := curriculum.NewAIGenerator(curriculum.AIGeneratorConfig{AI: mock})
	if err != nil {
		t.Fatalf("NewAIGenerator() error = %v", err)
	}
	return g
}

func TestAIGenerator_Generate(t *testing.T) {
	mock := ai.NewMockProvider("```json\n" + goCurriculumJSON + "\n```")
	g := newGenerator(t, mock)

	c, err := g.Generate(context.Background(), "Learn Go")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if c.Title != "Learn Go" || len(c.Topics) != 2 || c.TaskCount() != 3 {
		t.Errorf("Generate() = %+v", c)
	}

	req, _ := mock.Request()
	if req.Task != ai.TaskCurriculum || !req.JSON {
		t.Errorf("request task = %v json = %v", req.Task, req.JSON)
	}
	if !strings.Contains(req.Messages[1].Content, "Learn Go") {
		t.Errorf("user prompt = %q, want goal", req.Messages[1].Content)
	}
	if !strings.Contains(req.Messages[0].Content, "5-6 main topics") {
		t.Error("system prompt should carry the topic policy")
	}
}

func TestAIGenerator_Parse_Rejects(t *testing.T) {
	tests := map[string]string{
		"no json":          "Sorry, I cannot help.",
		"missing title":    `{"topics": [{"title": "A", "tasks": [{"title": "t", "assignment": "q"}]}]}`,
		"empty topics":     `{"title": "X", "topics": []}`,
		"topic no tasks":   `{"title": "X", "topics": [{"title": "A", "tasks": []}]}`,
		"task no question": `{"title": "X", "topics": [{"title": "A", "tasks": [{"title": "t"}]}]}`,
		"truncated":        `{"title": "X", "topics": [{"title": "A"}`,
	}
	g := newGenerator(t, ai.NewMockProvider())
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := g.Parse(content); err == nil {
				t.Fatal("Parse() should fail")
			}
		})
	}
}

func TestAIGenerator_Parse_BlankTitlesFailValidate(t *testing.T) {
	g := newGenerator(t, ai.NewMockProvider())
	_, err := g.Parse(`{"title": "X", "topics": [{"title": " ", "tasks": [{"title": "t", "assignment": "q"}]}]}`)
	if !errors.Is(err, curriculum.ErrInvalid) {
		t.Errorf("Parse() error = %v, want ErrInvalid", err)
	}
}

func TestAIGenerator_ProviderError(t *testing.T) {
	mock := ai.NewMockProvider()
	mock.Err = ai.ErrQuotaExceeded
	g := newGenerator(t, mock)

	if _, err := g.Generate(context.Background(), "Learn Go"); !errors.Is(err, ai.ErrQuotaExceeded) {
		t.Errorf("Generate() error = %v, want ErrQuotaExceeded", err)
	}
}

func setupTemplates(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"go/learn-go.yaml": `
id: learn-go
goals:
  - Learn Go
  - golang basics
title: Learn Go
description: A pre-authored Go course
topics:
  - title: Basics
    tasks:
      - title: Variables
        content: var x int
        assignment: Declare a variable.
`,
		"broken.yaml":  "id: [unclosed",
		"notes.yml":    "just: notes\n",
		"invalid.yaml": "id: empty\ngoals: [empty]\ntitle: Empty\n",
		"README.md":    "# templates",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoader_LoadsTemplates(t *testing.T) {
	loader, err := curriculum.NewLoader(setupTemplates(t))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	if loader.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (broken and invalid files skipped)", loader.Len())
	}
	tmpl, ok := loader.Get("learn-go")
	if !ok {
		t.Fatal("Get(learn-go) not found")
	}
	if tmpl.Curriculum.Title != "Learn Go" || tmpl.Curriculum.TaskCount() != 1 {
		t.Errorf("template = %+v", tmpl)
	}
}

func TestLoader_MissingDir(t *testing.T) {
	loader, err := curriculum.NewLoader(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	if loader.Len() != 0 {
		t.Errorf("Len() = %d, want 0", loader.Len())
	}
}

func TestLoader_Match(t *testing.T) {
	loader, err := curriculum.NewLoader(setupTemplates(t))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	for _, goal := range []string{"Learn Go", "LEARN go", "  golang   Basics "} {
		if _, ok := loader.Match(goal); !ok {
			t.Errorf("Match(%q) not found", goal)
		}
	}
	if _, ok := loader.Match("Learn Rust"); ok {
		t.Error("Match(Learn Rust) should not be found")
	}
	if _, err := loader.Generate(context.Background(), "Learn Rust"); !errors.Is(err, curriculum.ErrNoTemplate) {
		t.Errorf("Generate() error = %v, want ErrNoTemplate", err)
	}
}

func TestFoldGoal(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Learn Go", "learn go"},
		{"  Learn   GO ", "learn go"},
		{"Café", "café"},
	}
	for _, tt := range tests {
		if got := curriculum.FoldGoal(tt.in); got != tt.want {
			t.Errorf("FoldGoal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChain(t *testing.T) {
	loader, err := curriculum.NewLoader(setupTemplates(t))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	mock := ai.NewMockProvider(goCurriculumJSON)
	chain := curriculum.Chain{loader, newGenerator(t, mock)}

	c, err := chain.Generate(context.Background(), "learn go")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if c.Description != "A pre-authored Go course" {
		t.Errorf("Description = %q, want template", c.Description)
	}
	if mock.Calls() != 0 {
		t.Errorf("AI calls = %d, want 0 when a template matches", mock.Calls())
	}

	if _, err := chain.Generate(context.Background(), "Learn Rust"); err != nil {
		t.Fatalf("Generate() fallback error = %v", err)
	}
	if mock.Calls() != 1 {
		t.Errorf("AI calls = %d, want 1", mock.Calls())
	}
}

func TestChain_Empty(t *testing.T) {
	if _, err := (curriculum.Chain{}).Generate(context.Background(), "x"); !errors.Is(err, curriculum.ErrNoTemplate) {
		t.Errorf("Generate() error = %v, want ErrNoTemplate", err)
	}
}
