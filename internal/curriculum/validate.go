package curriculum

import (
	"errors"
	"fmt"
	"strings"
)

// Policy constants for generated curricula. They shape the prompt; they are
// not enforced on the result.
const (
	MinTopics = 5
	MaxTopics = 6
	MinTasks  = 15
	MaxTasks  = 20
)

// ErrInvalid marks a curriculum that cannot be materialized.
var ErrInvalid = errors.New("invalid curriculum")

// Validate checks the structure required before materialization.
func (c Curriculum) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if len(c.Topics) == 0 {
		return fmt.Errorf("%w: at least one topic is required", ErrInvalid)
	}
	for i, topic := range c.Topics {
		if strings.TrimSpace(topic.Title) == "" {
			return fmt.Errorf("%w: topic %d has no title", ErrInvalid, i+1)
		}
		if len(topic.Tasks) == 0 {
			return fmt.Errorf("%w: topic %q has no tasks", ErrInvalid, topic.Title)
		}
		for j, task := range topic.Tasks {
			if strings.TrimSpace(task.Title) == "" {
				return fmt.Errorf("%w: task %d of topic %q has no title", ErrInvalid, j+1, topic.Title)
			}
			if strings.TrimSpace(task.Assignment) == "" {
				return fmt.Errorf("%w: task %q has no assignment", ErrInvalid, task.Title)
			}
		}
	}
	return nil
}
