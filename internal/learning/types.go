// Package learning holds the learning path domain: paths, topics, tasks,
// assignments and resources, the progression engine that gates tasks on
// assignment scores, and the stores that persist them.
package learning

import "time"

// PathStatus is the lifecycle state of a learning path.
type PathStatus string

const (
	PathActive    PathStatus = "active"
	PathCompleted PathStatus = "completed"
	PathPaused    PathStatus = "paused"
)

// TaskStatus gates access to a task.
type TaskStatus string

const (
	TaskLocked    TaskStatus = "locked"
	TaskUnlocked  TaskStatus = "unlocked"
	TaskCompleted TaskStatus = "completed"
)

// AssignmentStatus tracks whether an answer has been graded.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentEvaluated AssignmentStatus = "evaluated"
)

// Difficulty is assigned to tasks by topic position.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// ResourceType classifies external learning material.
type ResourceType string

const (
	ResourceVideo         ResourceType = "video"
	ResourceArticle       ResourceType = "article"
	ResourceRepository    ResourceType = "repository"
	ResourceDocumentation ResourceType = "documentation"
	ResourceCode          ResourceType = "code"
)

// LearningPath is a user's enrollment in one generated curriculum.
type LearningPath struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	TotalTasks         int        `json:"total_tasks"`
	CompletedTasks     int        `json:"completed_tasks"`
	Status             PathStatus `json:"status"`
	CurrentDifficulty  Difficulty `json:"current_difficulty,omitempty"`
	PerformanceAverage float64    `json:"performance_average"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Topic is a chapter of a path. Grouping is display-only; tasks carry the
// authoritative order.
type Topic struct {
	ID             string `json:"id"`
	LearningPathID string `json:"learning_path_id"`
	ParentTopicID  string `json:"parent_topic_id,omitempty"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Order          int    `json:"order"`
}

// Task is one lesson plus its assignment. Order is global within the path.
type Task struct {
	ID               string     `json:"id"`
	LearningPathID   string     `json:"learning_path_id"`
	TopicID          string     `json:"topic_id,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Content          string     `json:"content"`
	Order            int        `json:"order"`
	Status           TaskStatus `json:"status"`
	Difficulty       Difficulty `json:"difficulty"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	ResourceCount    int        `json:"resource_count"`
}

// Assignment is the gradable question bound to a task and a user.
type Assignment struct {
	ID                string           `json:"id"`
	TaskID            string           `json:"task_id"`
	UserID            string           `json:"user_id"`
	Question          string           `json:"question"`
	UserAnswer        *string          `json:"user_answer,omitempty"`
	Score             *int             `json:"score,omitempty"`
	Feedback          string           `json:"feedback,omitempty"`
	Status            AssignmentStatus `json:"status"`
	AttemptsRemaining int              `json:"attempts_remaining"`
	SubmissionCount   int              `json:"submission_count"`
	HintUsed          bool             `json:"hint_used"`
	SubmittedAt       *time.Time       `json:"submitted_at,omitempty"`
	EvaluatedAt       *time.Time       `json:"evaluated_at,omitempty"`
}

// Resource is external material attached to a task or topic.
type Resource struct {
	ID           string         `json:"id"`
	TaskID       string         `json:"task_id,omitempty"`
	TopicID      string         `json:"topic_id,omitempty"`
	Type         ResourceType   `json:"type"`
	Source       string         `json:"source"`
	Title        string         `json:"title"`
	URL          string         `json:"url"`
	Description  string         `json:"description,omitempty"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty"`
	Duration     string         `json:"duration,omitempty"`
	Difficulty   Difficulty     `json:"difficulty,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
