package learning

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists learning paths and everything they own.
type Store interface {
	// CreatePath persists a whole plan atomically and returns the stored path.
	CreatePath(ctx context.Context, plan PathPlan) (LearningPath, error)
	GetPath(ctx context.Context, id string) (LearningPath, error)
	ListPaths(ctx context.Context, userID string) ([]LearningPath, error)
	SetPathStatus(ctx context.Context, id string, status PathStatus) (LearningPath, error)
	// DeletePath removes a path and cascades to its topics, tasks,
	// assignments and resources.
	DeletePath(ctx context.Context, id string) error

	ListTopics(ctx context.Context, pathID string) ([]Topic, error)
	ListTasks(ctx context.Context, pathID string) ([]Task, error)
	GetTask(ctx context.Context, id string) (Task, error)

	GetAssignment(ctx context.Context, id string) (Assignment, error)
	GetAssignmentForTask(ctx context.Context, taskID string) (Assignment, error)
	ListAssignments(ctx context.Context, pathID string) ([]Assignment, error)
	MarkHintUsed(ctx context.Context, assignmentID string) error
	// ApplyEvaluation applies m in order in a single write. Task completion is
	// a compare-and-set on the task's prior status.
	ApplyEvaluation(ctx context.Context, m Mutations) (Applied, error)

	// AddResources stores resources for a task and updates its resource count.
	AddResources(ctx context.Context, taskID string, resources []Resource) (int, error)
	ListResources(ctx context.Context, taskID string) ([]Resource, error)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	paths       map[string]*LearningPath
	topics      map[string]*Topic
	tasks       map[string]*Task
	assignments map[string]*Assignment
	resources   map[string][]Resource // task id -> resources
	mu          sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		paths:       make(map[string]*LearningPath),
		topics:      make(map[string]*Topic),
		tasks:       make(map[string]*Task),
		assignments: make(map[string]*Assignment),
		resources:   make(map[string][]Resource),
	}
}

func (s *MemoryStore) CreatePath(_ context.Context, plan PathPlan) (LearningPath, error) {
	if plan.Path.UserID == "" {
		return LearningPath{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	path := plan.Path
	path.ID = uuid.NewString()
	path.CreatedAt = now
	path.UpdatedAt = now
	if path.Status == "" {
		path.Status = PathActive
	}
	s.paths[path.ID] = &path

	for _, tp := range plan.Topics {
		topic := tp.Topic
		topic.ID = uuid.NewString()
		topic.LearningPathID = path.ID
		s.topics[topic.ID] = &topic

		for _, tk := range tp.Tasks {
			task := tk.Task
			task.ID = uuid.NewString()
			task.LearningPathID = path.ID
			task.TopicID = topic.ID
			s.tasks[task.ID] = &task

			a := tk.Assignment
			a.ID = uuid.NewString()
			a.TaskID = task.ID
			if a.UserID == "" {
				a.UserID = path.UserID
			}
			if a.Status == "" {
				a.Status = AssignmentPending
			}
			s.assignments[a.ID] = &a
		}
	}

	return path, nil
}

func (s *MemoryStore) GetPath(_ context.Context, id string) (LearningPath, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.paths[id]
	if !ok {
		return LearningPath{}, fmt.Errorf("learning path %s: %w", id, ErrNotFound)
	}
	return *p, nil
}

func (s *MemoryStore) ListPaths(_ context.Context, userID string) ([]LearningPath, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []LearningPath{}
	for _, p := range s.paths {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SetPathStatus(_ context.Context, id string, status PathStatus) (LearningPath, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.paths[id]
	if !ok {
		return LearningPath{}, fmt.Errorf("learning path %s: %w", id, ErrNotFound)
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	return *p, nil
}

func (s *MemoryStore) DeletePath(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.paths[id]; !ok {
		return fmt.Errorf("learning path %s: %w", id, ErrNotFound)
	}
	delete(s.paths, id)
	for tid, t := range s.topics {
		if t.LearningPathID == id {
			delete(s.topics, tid)
		}
	}
	for tid, t := range s.tasks {
		if t.LearningPathID != id {
			continue
		}
		for aid, a := range s.assignments {
			if a.TaskID == tid {
				delete(s.assignments, aid)
			}
		}
		delete(s.resources, tid)
		delete(s.tasks, tid)
	}
	return nil
}

func (s *MemoryStore) ListTopics(_ context.Context, pathID string) ([]Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Topic{}
	for _, t := range s.topics {
		if t.LearningPathID == pathID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (s *MemoryStore) ListTasks(_ context.Context, pathID string) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pathTasksLocked(pathID), nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return *t, nil
}

func (s *MemoryStore) GetAssignment(_ context.Context, id string) (Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assignments[id]
	if !ok {
		return Assignment{}, fmt.Errorf("assignment %s: %w", id, ErrNotFound)
	}
	return *a, nil
}

func (s *MemoryStore) GetAssignmentForTask(_ context.Context, taskID string) (Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.assignments {
		if a.TaskID == taskID {
			return *a, nil
		}
	}
	return Assignment{}, fmt.Errorf("assignment for task %s: %w", taskID, ErrNotFound)
}

func (s *MemoryStore) ListAssignments(_ context.Context, pathID string) ([]Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Assignment{}
	for _, a := range s.assignments {
		if t, ok := s.tasks[a.TaskID]; ok && t.LearningPathID == pathID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.tasks[out[i].TaskID].Order < s.tasks[out[j].TaskID].Order
	})
	return out, nil
}

func (s *MemoryStore) MarkHintUsed(_ context.Context, assignmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[assignmentID]
	if !ok {
		return fmt.Errorf("assignment %s: %w", assignmentID, ErrNotFound)
	}
	a.HintUsed = true
	return nil
}

func (s *MemoryStore) ApplyEvaluation(_ context.Context, m Mutations) (Applied, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[m.AssignmentID]
	if !ok {
		return Applied{}, fmt.Errorf("assignment %s: %w", m.AssignmentID, ErrNotFound)
	}
	task, ok := s.tasks[a.TaskID]
	if !ok {
		return Applied{}, fmt.Errorf("task %s: %w", a.TaskID, ErrNotFound)
	}
	path, ok := s.paths[task.LearningPathID]
	if !ok {
		return Applied{}, fmt.Errorf("learning path %s: %w", task.LearningPathID, ErrNotFound)
	}
	if m.Completion == nil && task.Status == TaskCompleted {
		return Applied{}, fmt.Errorf("%w: task %d is already completed", ErrConflict, task.Order)
	}

	answer := m.Answer
	score := m.Score
	evaluatedAt := m.EvaluatedAt
	a.UserAnswer = &answer
	a.Score = &score
	a.Feedback = m.Feedback
	a.Status = AssignmentEvaluated
	a.SubmittedAt = &evaluatedAt
	a.EvaluatedAt = &evaluatedAt
	a.SubmissionCount++
	if m.ConsumeAttempt && a.AttemptsRemaining > 0 {
		a.AttemptsRemaining--
	}

	applied := Applied{}
	if c := m.Completion; c != nil && task.Status != TaskCompleted {
		task.Status = TaskCompleted
		applied.TaskCompleted = true

		for _, next := range s.tasks {
			if next.LearningPathID == c.PathID && next.Order == c.NextOrder {
				if next.Status == TaskLocked {
					next.Status = TaskUnlocked
				}
				applied.UnlockedTaskID = next.ID
				path.CurrentDifficulty = next.Difficulty
				break
			}
		}
	}

	s.refreshPathLocked(path)
	applied.Assignment = *a
	applied.Path = *path
	return applied, nil
}

// refreshPathLocked recomputes the path aggregate from task and assignment
// rows so the counter never drifts from the completed set. A paused path
// stays paused.
func (s *MemoryStore) refreshPathLocked(path *LearningPath) {
	completed := 0
	var scoreSum, scored int
	for _, t := range s.tasks {
		if t.LearningPathID != path.ID {
			continue
		}
		if t.Status == TaskCompleted {
			completed++
		}
	}
	for _, a := range s.assignments {
		t, ok := s.tasks[a.TaskID]
		if !ok || t.LearningPathID != path.ID || a.Status != AssignmentEvaluated || a.Score == nil {
			continue
		}
		scoreSum += *a.Score
		scored++
	}

	path.CompletedTasks = completed
	if path.Status != PathPaused {
		path.Status = StatusFor(completed, path.TotalTasks)
	}
	if scored > 0 {
		path.PerformanceAverage = float64(scoreSum) / float64(scored)
	}
	path.UpdatedAt = time.Now()
}

func (s *MemoryStore) AddResources(_ context.Context, taskID string, resources []Resource) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return 0, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	for _, r := range resources {
		r.ID = uuid.NewString()
		r.TaskID = taskID
		if r.TopicID == "" {
			r.TopicID = task.TopicID
		}
		s.resources[taskID] = append(s.resources[taskID], r)
	}
	task.ResourceCount = len(s.resources[taskID])
	return len(resources), nil
}

func (s *MemoryStore) ListResources(_ context.Context, taskID string) ([]Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tasks[taskID]; !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return append([]Resource{}, s.resources[taskID]...), nil
}

func (s *MemoryStore) pathTasksLocked(pathID string) []Task {
	out := []Task{}
	for _, t := range s.tasks {
		if t.LearningPathID == pathID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
