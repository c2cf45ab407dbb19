package learning_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/p-n-ai/pai-path/internal/learning"
	"github.com/p-n-ai/pai-path/internal/platform/database"
	"github.com/p-n-ai/pai-path/migrations"
)

func newPostgresStore(t *testing.T) (*learning.PostgresStore, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("pai_test"),
		tcpostgres.WithUsername("pai"),
		tcpostgres.WithPassword("pai"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	m, err := database.NewMigrator(migrations.FS, dsn)
	if err != nil {
		t.Fatalf("NewMigrator() error = %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	_ = m.Close()

	db, err := database.New(ctx, database.Options{URL: dsn, MaxConns: 5, MinConns: 1})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(db.Close)

	store, err := learning.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	return store, db.Pool
}

func TestPostgresStore_Progression(t *testing.T) {
	store, pool := newPostgresStore(t)
	ctx := context.Background()
	engine := learning.NewEngine(store, learning.NewPostgresEventLogger(pool))
	s := seedPath(t, store, "user-1", 2, 1)

	if s.tasks[0].Status != learning.TaskUnlocked || s.tasks[1].Status != learning.TaskLocked {
		t.Fatalf("initial statuses = %s, %s", s.tasks[0].Status, s.tasks[1].Status)
	}

	out, err := engine.RecordEvaluation(ctx, learning.EvaluationInput{AssignmentID: s.assignments[0].ID, Answer: "a", Score: 60})
	if err != nil {
		t.Fatalf("RecordEvaluation(60) error = %v", err)
	}
	if out.Result != learning.ResultRetry || out.Assignment.AttemptsRemaining != learning.DefaultAttempts-1 {
		t.Errorf("outcome = %+v", out)
	}

	out, err = engine.RecordEvaluation(ctx, learning.EvaluationInput{AssignmentID: s.assignments[0].ID, Answer: "b", Score: 80})
	if err != nil {
		t.Fatalf("RecordEvaluation(80) error = %v", err)
	}
	if out.UnlockedTaskID != s.tasks[1].ID || out.Path.CompletedTasks != 1 {
		t.Errorf("outcome = %+v", out)
	}

	out, err = engine.RecordEvaluation(ctx, learning.EvaluationInput{AssignmentID: s.assignments[0].ID, Answer: "c", Score: 99})
	if err != nil {
		t.Fatalf("RecordEvaluation(99) error = %v", err)
	}
	if !out.AlreadyCompleted || out.Path.CompletedTasks != 1 {
		t.Errorf("duplicate pass outcome = %+v", out)
	}

	for _, a := range s.assignments[1:] {
		out, err = engine.RecordEvaluation(ctx, learning.EvaluationInput{AssignmentID: a.ID, Answer: "d", Score: 90})
		if err != nil {
			t.Fatalf("RecordEvaluation() error = %v", err)
		}
	}
	if !out.PathCompleted || out.Path.CompletedTasks != 3 || out.Path.Status != learning.PathCompleted {
		t.Errorf("final path = %+v", out.Path)
	}
	if out.Path.CurrentDifficulty != learning.DifficultyAdvanced {
		t.Errorf("CurrentDifficulty = %s, want advanced", out.Path.CurrentDifficulty)
	}

	var events int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE event_type = 'task_completed'`).Scan(&events); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 3 {
		t.Errorf("task_completed events = %d, want 3", events)
	}
}

func TestPostgresStore_PausedPathAndLateFailure(t *testing.T) {
	store, _ := newPostgresStore(t)
	ctx := context.Background()
	engine := learning.NewEngine(store, nil)
	s := seedPath(t, store, "user-1", 3)

	if _, err := store.SetPathStatus(ctx, s.path.ID, learning.PathPaused); err != nil {
		t.Fatalf("SetPathStatus() error = %v", err)
	}

	out, err := engine.RecordEvaluation(ctx, learning.EvaluationInput{AssignmentID: s.assignments[0].ID, Answer: "a", Score: 40})
	if err != nil {
		t.Fatalf("RecordEvaluation(40) error = %v", err)
	}
	if out.Path.Status != learning.PathPaused {
		t.Errorf("status after failing grade = %s, want paused", out.Path.Status)
	}

	out, err = engine.RecordEvaluation(ctx, learning.EvaluationInput{AssignmentID: s.assignments[0].ID, Answer: "b", Score: 85})
	if err != nil {
		t.Fatalf("RecordEvaluation(85) error = %v", err)
	}
	if out.Path.Status != learning.PathPaused || out.Path.CompletedTasks != 1 {
		t.Errorf("path = %d completed, %s; want 1, paused", out.Path.CompletedTasks, out.Path.Status)
	}

	_, err = engine.RecordEvaluation(ctx, learning.EvaluationInput{AssignmentID: s.assignments[0].ID, Answer: "late", Score: 30})
	if !errors.Is(err, learning.ErrConflict) {
		t.Fatalf("RecordEvaluation(30) error = %v, want ErrConflict", err)
	}
	a, err := store.GetAssignment(ctx, s.assignments[0].ID)
	if err != nil {
		t.Fatalf("GetAssignment() error = %v", err)
	}
	if *a.Score != 85 || a.SubmissionCount != 2 || a.AttemptsRemaining != learning.DefaultAttempts-1 {
		t.Errorf("assignment after rejected grade = %+v, want score 85, 2 submissions, one attempt used", a)
	}
}

func TestPostgresStore_ResourcesAndDelete(t *testing.T) {
	store, _ := newPostgresStore(t)
	ctx := context.Background()
	s := seedPath(t, store, "user-1", 1)

	n, err := store.AddResources(ctx, s.tasks[0].ID, []learning.Resource{
		{Type: learning.ResourceVideo, Source: "youtube", Title: "Intro", URL: "https://youtube.com/watch?v=1", Metadata: map[string]any{"channel": "go"}},
	})
	if err != nil || n != 1 {
		t.Fatalf("AddResources() = %d, %v", n, err)
	}
	resources, err := store.ListResources(ctx, s.tasks[0].ID)
	if err != nil || len(resources) != 1 {
		t.Fatalf("ListResources() = %v, %v", resources, err)
	}
	if resources[0].Metadata["channel"] != "go" {
		t.Errorf("metadata = %v", resources[0].Metadata)
	}
	if got := mustTask(t, store, s.tasks[0].ID).ResourceCount; got != 1 {
		t.Errorf("ResourceCount = %d, want 1", got)
	}

	if err := store.DeletePath(ctx, s.path.ID); err != nil {
		t.Fatalf("DeletePath() error = %v", err)
	}
	if _, err := store.GetTask(ctx, s.tasks[0].ID); !errors.Is(err, learning.ErrNotFound) {
		t.Errorf("GetTask() after delete error = %v, want ErrNotFound", err)
	}
}
