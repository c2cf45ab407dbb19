package learning

import "sort"

// Progress is the read-side view of a path's completion.
type Progress struct {
	Percent    float64 `json:"percent"`
	IsComplete bool    `json:"is_complete"`
	Completed  int     `json:"completed"`
	Unlocked   int     `json:"unlocked"`
	Locked     int     `json:"locked"`
	Total      int     `json:"total"`
}

// DeriveProgress computes completion for path. When tasks are supplied their
// statuses are authoritative; otherwise the path counters are used. A path with
// no tasks is 0% and not complete.
func DeriveProgress(path LearningPath, tasks []Task) Progress {
	p := Progress{
		Total:     path.TotalTasks,
		Completed: path.CompletedTasks,
	}
	if len(tasks) > 0 {
		p.Completed = 0
		for _, t := range tasks {
			switch t.Status {
			case TaskCompleted:
				p.Completed++
			case TaskUnlocked:
				p.Unlocked++
			default:
				p.Locked++
			}
		}
		if p.Total < len(tasks) {
			p.Total = len(tasks)
		}
	}

	if p.Total <= 0 {
		return Progress{}
	}
	p.Percent = float64(p.Completed) / float64(p.Total) * 100
	p.IsComplete = p.Completed >= p.Total
	return p
}

// TopicGroup is a topic with the tasks displayed under it.
type TopicGroup struct {
	Topic Topic  `json:"topic"`
	Tasks []Task `json:"tasks"`
}

// PartitionByTopic splits the path's tasks evenly across its topics in global
// task order. The split is for display only; it never reorders tasks.
func PartitionByTopic(topics []Topic, tasks []Task) []TopicGroup {
	if len(topics) == 0 {
		return nil
	}

	sortedTopics := append([]Topic(nil), topics...)
	sort.Slice(sortedTopics, func(i, j int) bool { return sortedTopics[i].Order < sortedTopics[j].Order })
	sortedTasks := SortTasks(tasks)

	perTopic := (len(sortedTasks) + len(sortedTopics) - 1) / len(sortedTopics)
	groups := make([]TopicGroup, len(sortedTopics))
	for i, topic := range sortedTopics {
		start := min(i*perTopic, len(sortedTasks))
		end := min(start+perTopic, len(sortedTasks))
		groups[i] = TopicGroup{Topic: topic, Tasks: sortedTasks[start:end]}
	}
	return groups
}

// SortTasks returns a copy of tasks ordered by their global order.
func SortTasks(tasks []Task) []Task {
	out := append([]Task(nil), tasks...)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
