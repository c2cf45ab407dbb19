package learning_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/p-n-ai/pai-path/internal/curriculum"
	"github.com/p-n-ai/pai-path/internal/learning"
)

// sampleCurriculum builds a curriculum with one topic per entry of tasksPerTopic.
func sampleCurriculum(tasksPerTopic ...int) curriculum.Curriculum {
	c := curriculum.Curriculum{Title: "Go Concurrency", Description: "Goroutines to pipelines"}
	for i, n := range tasksPerTopic {
		topic := curriculum.Topic{
			Title:       fmt.Sprintf("Topic %d", i+1),
			Description: "topic description",
		}
		for j := 0; j < n; j++ {
			topic.Tasks = append(topic.Tasks, curriculum.Task{
				Title:      fmt.Sprintf("Task %d.%d", i+1, j+1),
				Content:    "lesson content",
				Assignment: fmt.Sprintf("Explain concept %d.%d", i+1, j+1),
			})
		}
		c.Topics = append(c.Topics, topic)
	}
	return c
}

type seeded struct {
	path        learning.LearningPath
	tasks       []learning.Task
	assignments []learning.Assignment // indexed like tasks
}

func seedPath(t *testing.T, store learning.Store, userID string, tasksPerTopic ...int) seeded {
	t.Helper()
	ctx := context.Background()

	plan, err := learning.Materialize(userID, sampleCurriculum(tasksPerTopic...))
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	path, err := store.CreatePath(ctx, plan)
	if err != nil {
		t.Fatalf("CreatePath() error = %v", err)
	}
	tasks, err := store.ListTasks(ctx, path.ID)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	s := seeded{path: path, tasks: tasks}
	for _, task := range tasks {
		a, err := store.GetAssignmentForTask(ctx, task.ID)
		if err != nil {
			t.Fatalf("GetAssignmentForTask(%s) error = %v", task.ID, err)
		}
		s.assignments = append(s.assignments, a)
	}
	return s
}

func mustTask(t *testing.T, store learning.Store, id string) learning.Task {
	t.Helper()
	task, err := store.GetTask(context.Background(), id)
	if err != nil {
		t.Fatalf("GetTask(%s) error = %v", id, err)
	}
	return task
}

func mustPath(t *testing.T, store learning.Store, id string) learning.LearningPath {
	t.Helper()
	p, err := store.GetPath(context.Background(), id)
	if err != nil {
		t.Fatalf("GetPath(%s) error = %v", id, err)
	}
	return p
}
