package learning

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// PassThreshold is the minimum score that completes a task.
	PassThreshold = 70
	// MinScore and MaxScore bound evaluator scores.
	MinScore = 0
	MaxScore = 100
	// DefaultAttempts is the number of failing submissions allowed per assignment.
	DefaultAttempts = 3
)

// Result is the coarse outcome of an evaluation.
type Result string

const (
	ResultRetry    Result = "retry"
	ResultAdvanced Result = "advanced"
)

// EvaluationInput is a graded submission ready to be recorded.
type EvaluationInput struct {
	AssignmentID string
	Answer       string
	Score        int
	Feedback     string
	Suggestions  string
}

// EvaluationOutcome reports what recording an evaluation changed.
type EvaluationOutcome struct {
	Result           Result       `json:"result"`
	Score            int          `json:"score"`
	Passed           bool         `json:"passed"`
	AlreadyCompleted bool         `json:"already_completed,omitempty"`
	PathCompleted    bool         `json:"path_completed"`
	UnlockedTaskID   string       `json:"unlocked_task_id,omitempty"`
	Assignment       Assignment   `json:"assignment"`
	Path             LearningPath `json:"path"`
}

// Mutations is the full set of writes produced by one evaluation, in the order
// a store must apply them: assignment, task completion, next unlock, path
// aggregate.
type Mutations struct {
	AssignmentID   string
	Answer         string
	Score          int
	Feedback       string
	EvaluatedAt    time.Time
	ConsumeAttempt bool
	// Completion is nil when the score is below PassThreshold.
	Completion *TaskCompletion
}

// TaskCompletion asks the store to complete a task and unlock its successor.
// The store must only count the completion if the task was not already
// completed (compare-and-set on status).
type TaskCompletion struct {
	TaskID    string
	PathID    string
	NextOrder int
}

// Applied is what a store reports after applying Mutations.
type Applied struct {
	Assignment Assignment
	Path       LearningPath
	// TaskCompleted is false when the task was already completed, i.e. the
	// compare-and-set lost and nothing beyond the assignment changed.
	TaskCompleted  bool
	UnlockedTaskID string
}

// ValidateScore rejects scores outside [MinScore, MaxScore].
func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidScore, score, MinScore, MaxScore)
	}
	return nil
}

// Passed reports whether a score completes a task.
func Passed(score int) bool {
	return score >= PassThreshold
}

// CombineFeedback joins narrative feedback and suggestions into the single
// text stored on the assignment.
func CombineFeedback(feedback, suggestions string) string {
	if suggestions == "" {
		return feedback
	}
	return feedback + "\n\nSuggestions: " + suggestions
}

// Plan decides the mutations for an evaluation of task. It performs no I/O.
func Plan(task Task, in EvaluationInput, now time.Time) (Mutations, error) {
	if err := ValidateScore(in.Score); err != nil {
		return Mutations{}, err
	}
	if in.AssignmentID == "" {
		return Mutations{}, fmt.Errorf("%w: assignment id is required", ErrValidation)
	}

	m := Mutations{
		AssignmentID: in.AssignmentID,
		Answer:       in.Answer,
		Score:        in.Score,
		Feedback:     CombineFeedback(in.Feedback, in.Suggestions),
		EvaluatedAt:  now,
	}
	if !Passed(in.Score) {
		m.ConsumeAttempt = true
		return m, nil
	}

	m.Completion = &TaskCompletion{
		TaskID:    task.ID,
		PathID:    task.LearningPathID,
		NextOrder: task.Order + 1,
	}
	return m, nil
}

// StatusFor derives a path status from its counters.
func StatusFor(completed, total int) PathStatus {
	if total > 0 && completed >= total {
		return PathCompleted
	}
	return PathActive
}

// Engine records evaluations against a Store.
type Engine struct {
	store  Store
	events EventLogger
	now    func() time.Time
}

// NewEngine creates a progression engine. A nil events logger discards events.
func NewEngine(store Store, events EventLogger) *Engine {
	if events == nil {
		events = NopEventLogger{}
	}
	return &Engine{store: store, events: events, now: time.Now}
}

// RecordEvaluation applies a graded submission: the assignment is always
// updated, and a passing score completes the task, unlocks the next one and
// refreshes the path aggregate. Recording a pass for a task that is already
// completed changes nothing beyond the assignment; a failing score for such a
// task is rejected with ErrConflict and writes nothing. The store re-checks
// task state under its lock.
func (e *Engine) RecordEvaluation(ctx context.Context, in EvaluationInput) (EvaluationOutcome, error) {
	if err := ValidateScore(in.Score); err != nil {
		return EvaluationOutcome{}, err
	}

	assignment, err := e.store.GetAssignment(ctx, in.AssignmentID)
	if err != nil {
		return EvaluationOutcome{}, err
	}
	task, err := e.store.GetTask(ctx, assignment.TaskID)
	if err != nil {
		return EvaluationOutcome{}, err
	}

	m, err := Plan(task, in, e.now())
	if err != nil {
		return EvaluationOutcome{}, err
	}

	applied, err := e.store.ApplyEvaluation(ctx, m)
	if err != nil {
		return EvaluationOutcome{}, fmt.Errorf("apply evaluation: %w", err)
	}

	outcome := EvaluationOutcome{
		Result:         ResultRetry,
		Score:          in.Score,
		Passed:         Passed(in.Score),
		Assignment:     applied.Assignment,
		Path:           applied.Path,
		UnlockedTaskID: applied.UnlockedTaskID,
		PathCompleted:  applied.Path.Status == PathCompleted,
	}
	if m.Completion != nil {
		outcome.Result = ResultAdvanced
		outcome.AlreadyCompleted = !applied.TaskCompleted
	}

	e.logEvent(EventAssignmentEvaluated, applied.Path, map[string]any{
		"assignment_id": in.AssignmentID,
		"task_id":       task.ID,
		"score":         in.Score,
		"result":        string(outcome.Result),
	})
	if applied.TaskCompleted {
		e.logEvent(EventTaskCompleted, applied.Path, map[string]any{
			"task_id":          task.ID,
			"order":            task.Order,
			"unlocked_task_id": applied.UnlockedTaskID,
		})
		if outcome.PathCompleted {
			e.logEvent(EventPathCompleted, applied.Path, map[string]any{
				"total_tasks": applied.Path.TotalTasks,
			})
		}
	}

	slog.Info("evaluation recorded",
		"assignment_id", in.AssignmentID,
		"task_id", task.ID,
		"path_id", task.LearningPathID,
		"score", in.Score,
		"result", outcome.Result,
		"already_completed", outcome.AlreadyCompleted,
		"completed_tasks", applied.Path.CompletedTasks,
		"total_tasks", applied.Path.TotalTasks,
	)
	return outcome, nil
}

func (e *Engine) logEvent(eventType string, path LearningPath, data map[string]any) {
	if err := e.events.LogEvent(Event{
		PathID:    path.ID,
		UserID:    path.UserID,
		EventType: eventType,
		Data:      data,
	}); err != nil {
		slog.Warn("failed to log event", "type", eventType, "path_id", path.ID, "error", err)
	}
}
