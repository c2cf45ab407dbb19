package learning

import (
	"fmt"

	"github.com/p-n-ai/pai-path/internal/curriculum"
)

// PathPlan is a materialized curriculum ready to be persisted in one write.
// IDs are assigned by the store.
type PathPlan struct {
	Path   LearningPath
	Topics []TopicPlan
}

// TopicPlan is a topic with its tasks in global order.
type TopicPlan struct {
	Topic Topic
	Tasks []TaskPlan
}

// TaskPlan is a task with its pending assignment.
type TaskPlan struct {
	Task       Task
	Assignment Assignment
}

// Tasks returns all planned tasks in global order.
func (p PathPlan) Tasks() []Task {
	var out []Task
	for _, tp := range p.Topics {
		for _, t := range tp.Tasks {
			out = append(out, t.Task)
		}
	}
	return out
}

// Materialize turns a curriculum into a path plan for userID. Task order is a
// single sequence across topic boundaries; only order 1 starts unlocked.
func Materialize(userID string, c curriculum.Curriculum) (PathPlan, error) {
	if userID == "" {
		return PathPlan{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if err := c.Validate(); err != nil {
		return PathPlan{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	plan := PathPlan{
		Path: LearningPath{
			UserID:            userID,
			Title:             c.Title,
			Description:       c.Description,
			TotalTasks:        c.TaskCount(),
			CompletedTasks:    0,
			Status:            PathActive,
			CurrentDifficulty: DifficultyBeginner,
		},
	}

	order := 1
	for topicIndex, ct := range c.Topics {
		tp := TopicPlan{
			Topic: Topic{
				Title:       ct.Title,
				Description: ct.Description,
				Order:       topicIndex + 1,
			},
		}
		difficulty := difficultyFor(topicIndex, len(c.Topics))

		for taskIndex, task := range ct.Tasks {
			status := TaskLocked
			if order == 1 {
				status = TaskUnlocked
			}
			tp.Tasks = append(tp.Tasks, TaskPlan{
				Task: Task{
					Title:            task.Title,
					Description:      task.Description,
					Content:          task.Content,
					Order:            order,
					Status:           status,
					Difficulty:       difficulty,
					EstimatedMinutes: 30 + taskIndex*10,
				},
				Assignment: Assignment{
					UserID:            userID,
					Question:          task.Assignment,
					Status:            AssignmentPending,
					AttemptsRemaining: DefaultAttempts,
				},
			})
			order++
		}
		plan.Topics = append(plan.Topics, tp)
	}

	return plan, nil
}

func difficultyFor(topicIndex, topicCount int) Difficulty {
	switch {
	case topicIndex == 0:
		return DifficultyBeginner
	case topicIndex == topicCount-1:
		return DifficultyAdvanced
	default:
		return DifficultyIntermediate
	}
}
