package learning_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-path/internal/learning"
)

func TestMemoryStore_CreatePathAssignsIDs(t *testing.T) {
	store := learning.NewMemoryStore()
	s := seedPath(t, store, "user-1", 2, 2)

	if s.path.ID == "" {
		t.Fatal("path ID is empty")
	}
	if len(s.tasks) != 4 {
		t.Fatalf("len(tasks) = %d, want 4", len(s.tasks))
	}
	for _, task := range s.tasks {
		if task.ID == "" || task.TopicID == "" || task.LearningPathID != s.path.ID {
			t.Errorf("task not linked: %+v", task)
		}
	}
	for i, a := range s.assignments {
		if a.TaskID != s.tasks[i].ID || a.UserID != "user-1" {
			t.Errorf("assignment not linked: %+v", a)
		}
	}

	topics, err := store.ListTopics(context.Background(), s.path.ID)
	if err != nil {
		t.Fatalf("ListTopics() error = %v", err)
	}
	if len(topics) != 2 || topics[0].Order != 1 || topics[1].Order != 2 {
		t.Errorf("topics = %+v", topics)
	}
}

func TestMemoryStore_CreatePathRequiresUser(t *testing.T) {
	store := learning.NewMemoryStore()
	_, err := store.CreatePath(context.Background(), learning.PathPlan{})
	if !errors.Is(err, learning.ErrValidation) {
		t.Fatalf("CreatePath() error = %v, want ErrValidation", err)
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := learning.NewMemoryStore()

	checks := map[string]error{}
	_, checks["GetPath"] = store.GetPath(ctx, "missing")
	_, checks["GetTask"] = store.GetTask(ctx, "missing")
	_, checks["GetAssignment"] = store.GetAssignment(ctx, "missing")
	_, checks["GetAssignmentForTask"] = store.GetAssignmentForTask(ctx, "missing")
	_, checks["SetPathStatus"] = store.SetPathStatus(ctx, "missing", learning.PathPaused)
	_, checks["ListResources"] = store.ListResources(ctx, "missing")
	_, checks["AddResources"] = store.AddResources(ctx, "missing", nil)
	checks["DeletePath"] = store.DeletePath(ctx, "missing")
	checks["MarkHintUsed"] = store.MarkHintUsed(ctx, "missing")

	for name, err := range checks {
		if !errors.Is(err, learning.ErrNotFound) {
			t.Errorf("%s error = %v, want ErrNotFound", name, err)
		}
	}
}

func TestMemoryStore_ListPathsByUser(t *testing.T) {
	ctx := context.Background()
	store := learning.NewMemoryStore()
	seedPath(t, store, "user-1", 1)
	seedPath(t, store, "user-1", 1)
	seedPath(t, store, "user-2", 1)

	paths, err := store.ListPaths(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListPaths() error = %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("len(paths) = %d, want 2", len(paths))
	}
	for i := 1; i < len(paths); i++ {
		if paths[i].CreatedAt.After(paths[i-1].CreatedAt) {
			t.Errorf("paths not sorted newest first")
		}
	}
}

func TestMemoryStore_AddResources(t *testing.T) {
	ctx := context.Background()
	store := learning.NewMemoryStore()
	s := seedPath(t, store, "user-1", 1)
	taskID := s.tasks[0].ID

	n, err := store.AddResources(ctx, taskID, []learning.Resource{
		{Type: learning.ResourceVideo, Source: "youtube", Title: "Intro", URL: "https://youtube.com/watch?v=1"},
		{Type: learning.ResourceArticle, Source: "devto", Title: "Guide", URL: "https://dev.to/guide"},
	})
	if err != nil {
		t.Fatalf("AddResources() error = %v", err)
	}
	if n != 2 {
		t.Errorf("AddResources() = %d, want 2", n)
	}

	if got := mustTask(t, store, taskID).ResourceCount; got != 2 {
		t.Errorf("ResourceCount = %d, want 2", got)
	}
	resources, err := store.ListResources(ctx, taskID)
	if err != nil {
		t.Fatalf("ListResources() error = %v", err)
	}
	for _, r := range resources {
		if r.ID == "" || r.TaskID != taskID || r.TopicID != s.tasks[0].TopicID {
			t.Errorf("resource not linked: %+v", r)
		}
	}
}

func TestMemoryStore_DeletePathCascades(t *testing.T) {
	ctx := context.Background()
	store := learning.NewMemoryStore()
	s := seedPath(t, store, "user-1", 2)
	other := seedPath(t, store, "user-1", 1)

	if _, err := store.AddResources(ctx, s.tasks[0].ID, []learning.Resource{{Title: "r", URL: "https://x"}}); err != nil {
		t.Fatalf("AddResources() error = %v", err)
	}
	if err := store.DeletePath(ctx, s.path.ID); err != nil {
		t.Fatalf("DeletePath() error = %v", err)
	}

	if _, err := store.GetTask(ctx, s.tasks[0].ID); !errors.Is(err, learning.ErrNotFound) {
		t.Errorf("GetTask() after delete error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetAssignment(ctx, s.assignments[1].ID); !errors.Is(err, learning.ErrNotFound) {
		t.Errorf("GetAssignment() after delete error = %v, want ErrNotFound", err)
	}
	topics, _ := store.ListTopics(ctx, s.path.ID)
	if len(topics) != 0 {
		t.Errorf("topics after delete = %d, want 0", len(topics))
	}

	// Other paths are untouched.
	if _, err := store.GetTask(ctx, other.tasks[0].ID); err != nil {
		t.Errorf("other path task lost: %v", err)
	}
}

func TestMemoryStore_MarkHintUsed(t *testing.T) {
	ctx := context.Background()
	store := learning.NewMemoryStore()
	s := seedPath(t, store, "user-1", 1)

	if err := store.MarkHintUsed(ctx, s.assignments[0].ID); err != nil {
		t.Fatalf("MarkHintUsed() error = %v", err)
	}
	a, _ := store.GetAssignment(ctx, s.assignments[0].ID)
	if !a.HintUsed {
		t.Error("HintUsed = false, want true")
	}
}

func TestMemoryStore_ApplyEvaluationFloorsAttempts(t *testing.T) {
	ctx := context.Background()
	store := learning.NewMemoryStore()
	s := seedPath(t, store, "user-1", 1)

	for range learning.DefaultAttempts + 2 {
		if _, err := store.ApplyEvaluation(ctx, learning.Mutations{
			AssignmentID:   s.assignments[0].ID,
			Score:          10,
			ConsumeAttempt: true,
		}); err != nil {
			t.Fatalf("ApplyEvaluation() error = %v", err)
		}
	}
	a, _ := store.GetAssignment(ctx, s.assignments[0].ID)
	if a.AttemptsRemaining != 0 {
		t.Errorf("AttemptsRemaining = %d, want 0", a.AttemptsRemaining)
	}
	if a.SubmissionCount != learning.DefaultAttempts+2 {
		t.Errorf("SubmissionCount = %d, want %d", a.SubmissionCount, learning.DefaultAttempts+2)
	}
}
