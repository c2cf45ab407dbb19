package curriculum

// Curriculum is a generated or pre-authored course: ordered topics, each with
// ordered tasks carrying one assignment question.
type Curriculum struct {
	Title       string  `json:"title" yaml:"title"`
	Description string  `json:"description" yaml:"description"`
	Topics      []Topic `json:"topics" yaml:"topics"`
}

// Topic is a chapter of a curriculum.
type Topic struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Tasks       []Task `json:"tasks" yaml:"tasks"`
}

// Task is one lesson with its assignment question.
type Task struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Content     string `json:"content" yaml:"content"`
	Assignment  string `json:"assignment" yaml:"assignment"`
}

// Template is a pre-authored curriculum loaded from YAML. Goals lists the
// learning goals it answers, matched case-insensitively.
type Template struct {
	ID         string     `yaml:"id"`
	Goals      []string   `yaml:"goals"`
	Curriculum Curriculum `yaml:",inline"`
}

// TaskCount returns the number of tasks across all topics.
func (c Curriculum) TaskCount() int {
	n := 0
	for _, t := range c.Topics {
		n += len(t.Tasks)
	}
	return n
}
