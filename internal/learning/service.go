package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/pai-path/internal/curriculum"
)

const defaultResourceConcurrency = 4

// CurriculumGenerator produces a curriculum for a learning goal.
type CurriculumGenerator interface {
	Generate(ctx context.Context, goal string) (curriculum.Curriculum, error)
}

// GradeRequest is what the evaluator sees for one submission.
type GradeRequest struct {
	UserID        string
	TaskTitle     string
	LessonContent string
	Question      string
	Answer        string
}

// Grade is the evaluator's verdict.
type Grade struct {
	Score       int    `json:"score"`
	Feedback    string `json:"feedback"`
	Suggestions string `json:"suggestions"`
}

// Evaluator grades a submission.
type Evaluator interface {
	Evaluate(ctx context.Context, req GradeRequest) (Grade, error)
}

// ResourceCollector gathers learning resources for a topic. It is best-effort
// and never fails; an empty result is valid.
type ResourceCollector interface {
	Collect(ctx context.Context, topic string, difficulty Difficulty) []Resource
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Store     Store
	Generator CurriculumGenerator
	Evaluator Evaluator
	Resources ResourceCollector // optional
	Events    EventLogger       // optional
	// ResourceConcurrency bounds concurrent per-task resource lookups (default 4).
	ResourceConcurrency int
}

// Service orchestrates path creation, submissions and read models.
type Service struct {
	store       Store
	generator   CurriculumGenerator
	evaluator   Evaluator
	resources   ResourceCollector
	events      EventLogger
	engine      *Engine
	concurrency int
}

// NewService creates a Service. A nil store defaults to an in-memory store.
func NewService(cfg ServiceConfig) *Service {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	concurrency := cfg.ResourceConcurrency
	if concurrency <= 0 {
		concurrency = defaultResourceConcurrency
	}
	return &Service{
		store:       store,
		generator:   cfg.Generator,
		evaluator:   cfg.Evaluator,
		resources:   cfg.Resources,
		events:      events,
		engine:      NewEngine(store, events),
		concurrency: concurrency,
	}
}

// Engine returns the progression engine used by the service.
func (s *Service) Engine() *Engine { return s.engine }

// Store returns the underlying store.
func (s *Service) Store() Store { return s.store }

// CreatePath generates a curriculum for goal and persists it as a new path.
// Generation failure leaves nothing behind. Resource lookup runs after the
// path is stored and never fails the call.
func (s *Service) CreatePath(ctx context.Context, userID, goal string) (LearningPath, error) {
	userID = strings.TrimSpace(userID)
	goal = strings.TrimSpace(goal)
	if userID == "" {
		return LearningPath{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if goal == "" {
		return LearningPath{}, fmt.Errorf("%w: learning goal is required", ErrValidation)
	}
	if s.generator == nil {
		return LearningPath{}, fmt.Errorf("%w: no curriculum generator configured", ErrExternalService)
	}

	c, err := s.generator.Generate(ctx, goal)
	if err != nil {
		return LearningPath{}, fmt.Errorf("generate curriculum: %w", externalErr(err))
	}

	plan, err := Materialize(userID, c)
	if err != nil {
		return LearningPath{}, fmt.Errorf("%w: generated curriculum rejected: %w", ErrExternalService, err)
	}

	path, err := s.store.CreatePath(ctx, plan)
	if err != nil {
		return LearningPath{}, fmt.Errorf("store learning path: %w", err)
	}

	s.logEvent(EventPathCreated, path, map[string]any{
		"goal":        goal,
		"total_tasks": path.TotalTasks,
		"topics":      len(plan.Topics),
	})
	slog.Info("learning path created",
		"path_id", path.ID,
		"user_id", userID,
		"topics", len(plan.Topics),
		"total_tasks", path.TotalTasks,
	)

	s.attachResources(ctx, path)
	return path, nil
}

// attachResources looks up resources for every task of path with bounded
// concurrency. Failures are logged and skipped.
func (s *Service) attachResources(ctx context.Context, path LearningPath) int {
	if s.resources == nil {
		return 0
	}
	tasks, err := s.store.ListTasks(ctx, path.ID)
	if err != nil {
		slog.Warn("resource lookup skipped", "path_id", path.ID, "error", err)
		return 0
	}

	counts := make([]int, len(tasks))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, task := range tasks {
		g.Go(func() error {
			found := s.resources.Collect(ctx, task.Title, task.Difficulty)
			if len(found) == 0 {
				return nil
			}
			for j := range found {
				if found[j].Difficulty == "" {
					found[j].Difficulty = task.Difficulty
				}
			}
			n, err := s.store.AddResources(ctx, task.ID, found)
			if err != nil {
				slog.Warn("failed to store resources", "task_id", task.ID, "error", err)
				return nil
			}
			counts[i] = n
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, n := range counts {
		total += n
	}
	slog.Info("resources attached", "path_id", path.ID, "tasks", len(tasks), "resources", total)
	return total
}

// Submission is the result of grading and recording an answer.
type Submission struct {
	Evaluation Grade             `json:"evaluation"`
	Outcome    EvaluationOutcome `json:"outcome"`
}

// SubmitAnswer grades answer for an assignment and records the result. If the
// evaluator fails the assignment is left untouched.
func (s *Service) SubmitAnswer(ctx context.Context, assignmentID, answer string) (Submission, error) {
	if strings.TrimSpace(answer) == "" {
		return Submission{}, fmt.Errorf("%w: answer is required", ErrValidation)
	}

	a, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	task, err := s.store.GetTask(ctx, a.TaskID)
	if err != nil {
		return Submission{}, err
	}
	path, err := s.store.GetPath(ctx, task.LearningPathID)
	if err != nil {
		return Submission{}, err
	}

	switch {
	case path.Status == PathPaused:
		return Submission{}, fmt.Errorf("%w: learning path is paused", ErrConflict)
	case task.Status == TaskLocked:
		return Submission{}, fmt.Errorf("%w: task %d is locked", ErrValidation, task.Order)
	case task.Status == TaskCompleted:
		return Submission{}, fmt.Errorf("%w: task %d is already completed", ErrConflict, task.Order)
	case a.AttemptsRemaining <= 0:
		return Submission{}, fmt.Errorf("assignment %s: %w", a.ID, ErrAttemptsExhausted)
	}

	if s.evaluator == nil {
		return Submission{}, fmt.Errorf("%w: no evaluator configured", ErrExternalService)
	}
	grade, err := s.evaluator.Evaluate(ctx, GradeRequest{
		UserID:        a.UserID,
		TaskTitle:     task.Title,
		LessonContent: task.Content,
		Question:      a.Question,
		Answer:        answer,
	})
	if err != nil {
		return Submission{}, fmt.Errorf("evaluate answer: %w", externalErr(err))
	}

	outcome, err := s.engine.RecordEvaluation(ctx, EvaluationInput{
		AssignmentID: a.ID,
		Answer:       answer,
		Score:        grade.Score,
		Feedback:     grade.Feedback,
		Suggestions:  grade.Suggestions,
	})
	if err != nil {
		return Submission{}, err
	}
	return Submission{Evaluation: grade, Outcome: outcome}, nil
}

func (s *Service) GetPath(ctx context.Context, id string) (LearningPath, error) {
	return s.store.GetPath(ctx, id)
}

func (s *Service) ListPaths(ctx context.Context, userID string) ([]LearningPath, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return s.store.ListPaths(ctx, userID)
}

// Progress derives completion for a path from its task statuses.
func (s *Service) Progress(ctx context.Context, pathID string) (Progress, error) {
	path, err := s.store.GetPath(ctx, pathID)
	if err != nil {
		return Progress{}, err
	}
	tasks, err := s.store.ListTasks(ctx, pathID)
	if err != nil {
		return Progress{}, err
	}
	return DeriveProgress(path, tasks), nil
}

// ListTopics returns the path's topics with their tasks partitioned for display.
func (s *Service) ListTopics(ctx context.Context, pathID string) ([]TopicGroup, error) {
	if _, err := s.store.GetPath(ctx, pathID); err != nil {
		return nil, err
	}
	topics, err := s.store.ListTopics(ctx, pathID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasks(ctx, pathID)
	if err != nil {
		return nil, err
	}
	return PartitionByTopic(topics, tasks), nil
}

func (s *Service) ListTasks(ctx context.Context, pathID string) ([]Task, error) {
	if _, err := s.store.GetPath(ctx, pathID); err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx, pathID)
}

// TaskDetail is a task with its assignment and resources.
type TaskDetail struct {
	Task       Task        `json:"task"`
	Assignment *Assignment `json:"assignment,omitempty"`
	Resources  []Resource  `json:"resources"`
}

func (s *Service) GetTask(ctx context.Context, id string) (TaskDetail, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return TaskDetail{}, err
	}
	detail := TaskDetail{Task: task, Resources: []Resource{}}

	a, err := s.store.GetAssignmentForTask(ctx, id)
	switch {
	case err == nil:
		detail.Assignment = &a
	case !errors.Is(err, ErrNotFound):
		return TaskDetail{}, err
	}

	resources, err := s.store.ListResources(ctx, id)
	if err != nil {
		return TaskDetail{}, err
	}
	detail.Resources = resources
	return detail, nil
}

// RecordHint marks the task's assignment as hint-assisted and logs a
// hint_requested event. Tasks without an assignment are left alone.
func (s *Service) RecordHint(ctx context.Context, taskID string) error {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	a, err := s.store.GetAssignmentForTask(ctx, taskID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.store.MarkHintUsed(ctx, a.ID); err != nil {
		return err
	}
	s.logEvent(EventHintRequested, LearningPath{ID: task.LearningPathID, UserID: a.UserID}, map[string]any{
		"task_id":       task.ID,
		"assignment_id": a.ID,
	})
	return nil
}

func (s *Service) ListResources(ctx context.Context, taskID string) ([]Resource, error) {
	return s.store.ListResources(ctx, taskID)
}

func (s *Service) DeletePath(ctx context.Context, id string) error {
	path, err := s.store.GetPath(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeletePath(ctx, id); err != nil {
		return err
	}
	s.logEvent(EventPathDeleted, path, nil)
	slog.Info("learning path deleted", "path_id", id, "user_id", path.UserID)
	return nil
}

// PausePath suspends an active path. Completed paths cannot be paused.
func (s *Service) PausePath(ctx context.Context, id string) (LearningPath, error) {
	path, err := s.store.GetPath(ctx, id)
	if err != nil {
		return LearningPath{}, err
	}
	switch path.Status {
	case PathPaused:
		return path, nil
	case PathCompleted:
		return LearningPath{}, fmt.Errorf("%w: learning path is completed", ErrConflict)
	}
	return s.store.SetPathStatus(ctx, id, PathPaused)
}

// ResumePath reactivates a paused path, or completes it when every task was
// finished while it was paused.
func (s *Service) ResumePath(ctx context.Context, id string) (LearningPath, error) {
	path, err := s.store.GetPath(ctx, id)
	if err != nil {
		return LearningPath{}, err
	}
	if path.Status != PathPaused {
		return path, nil
	}
	resumed, err := s.store.SetPathStatus(ctx, id, StatusFor(path.CompletedTasks, path.TotalTasks))
	if err != nil {
		return LearningPath{}, err
	}
	// Tasks finished while paused complete the path only now.
	if resumed.Status == PathCompleted {
		s.logEvent(EventPathCompleted, resumed, nil)
	}
	return resumed, nil
}

// Snapshot is everything needed to render a report for one path.
type Snapshot struct {
	Path        LearningPath
	Progress    Progress
	Topics      []TopicGroup
	Assignments []Assignment
}

// Snapshot loads a consistent read model of a path for reporting.
func (s *Service) Snapshot(ctx context.Context, pathID string) (Snapshot, error) {
	path, err := s.store.GetPath(ctx, pathID)
	if err != nil {
		return Snapshot{}, err
	}
	topics, err := s.store.ListTopics(ctx, pathID)
	if err != nil {
		return Snapshot{}, err
	}
	tasks, err := s.store.ListTasks(ctx, pathID)
	if err != nil {
		return Snapshot{}, err
	}
	assignments, err := s.store.ListAssignments(ctx, pathID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Path:        path,
		Progress:    DeriveProgress(path, tasks),
		Topics:      PartitionByTopic(topics, tasks),
		Assignments: assignments,
	}, nil
}

// LogEvent records an event for path, logging rather than returning failures.
func (s *Service) LogEvent(eventType string, path LearningPath, data map[string]any) {
	s.logEvent(eventType, path, data)
}

func (s *Service) logEvent(eventType string, path LearningPath, data map[string]any) {
	if err := s.events.LogEvent(Event{
		PathID:    path.ID,
		UserID:    path.UserID,
		EventType: eventType,
		Data:      data,
	}); err != nil {
		slog.Warn("failed to log event", "type", eventType, "path_id", path.ID, "error", err)
	}
}

// externalErr tags err as an external service failure unless it already
// carries a domain classification.
func externalErr(err error) error {
	for _, known := range []error{ErrExternalService, ErrValidation, ErrInvalidScore} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrExternalService, err)
}
