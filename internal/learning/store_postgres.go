package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

const pathColumns = `id::text, user_id, title, description, total_tasks, completed_tasks, status,
	current_difficulty, performance_average, created_at, updated_at`

const taskColumns = `id::text, learning_path_id::text, topic_id::text, title, description, content,
	task_order, status, difficulty_level, estimated_time_minutes, resource_count`

const assignmentColumns = `id::text, task_id::text, user_id, question, user_answer, score, ai_evaluation,
	status, attempts_remaining, submission_count, hint_used, submitted_at, evaluated_at`

func (s *PostgresStore) CreatePath(ctx context.Context, plan PathPlan) (LearningPath, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if plan.Path.UserID == "" {
		return LearningPath{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	status := plan.Path.Status
	if status == "" {
		status = PathActive
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return LearningPath{}, fmt.Errorf("begin create path: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	path, err := scanPath(tx.QueryRow(ctx,
		`INSERT INTO learning_paths (user_id, title, description, total_tasks, completed_tasks, status, current_difficulty)
		 VALUES ($1, $2, $3, $4, 0, $5, $6)
		 RETURNING `+pathColumns,
		plan.Path.UserID,
		plan.Path.Title,
		plan.Path.Description,
		plan.Path.TotalTasks,
		string(status),
		string(plan.Path.CurrentDifficulty),
	))
	if err != nil {
		return LearningPath{}, fmt.Errorf("insert learning path: %w", err)
	}

	for _, tp := range plan.Topics {
		var topicID string
		if err := tx.QueryRow(ctx,
			`INSERT INTO topics (learning_path_id, title, description, topic_order)
			 VALUES ($1::uuid, $2, $3, $4)
			 RETURNING id::text`,
			path.ID, tp.Topic.Title, tp.Topic.Description, tp.Topic.Order,
		).Scan(&topicID); err != nil {
			return LearningPath{}, fmt.Errorf("insert topic %d: %w", tp.Topic.Order, err)
		}

		for _, tk := range tp.Tasks {
			var taskID string
			if err := tx.QueryRow(ctx,
				`INSERT INTO tasks (learning_path_id, topic_id, title, description, content,
				                    task_order, status, difficulty_level, estimated_time_minutes)
				 VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8, $9)
				 RETURNING id::text`,
				path.ID, topicID, tk.Task.Title, tk.Task.Description, tk.Task.Content,
				tk.Task.Order, string(tk.Task.Status), string(tk.Task.Difficulty), tk.Task.EstimatedMinutes,
			).Scan(&taskID); err != nil {
				return LearningPath{}, fmt.Errorf("insert task %d: %w", tk.Task.Order, err)
			}

			userID := tk.Assignment.UserID
			if userID == "" {
				userID = path.UserID
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO assignments (task_id, user_id, question, status, attempts_remaining)
				 VALUES ($1::uuid, $2, $3, $4, $5)`,
				taskID, userID, tk.Assignment.Question, string(AssignmentPending), tk.Assignment.AttemptsRemaining,
			); err != nil {
				return LearningPath{}, fmt.Errorf("insert assignment for task %d: %w", tk.Task.Order, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return LearningPath{}, fmt.Errorf("commit create path: %w", err)
	}
	return path, nil
}

func (s *PostgresStore) GetPath(ctx context.Context, id string) (LearningPath, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	path, err := scanPath(s.pool.QueryRow(ctx,
		`SELECT `+pathColumns+` FROM learning_paths WHERE id = $1::uuid`, id))
	if err != nil {
		return LearningPath{}, notFound(err, "learning path", id)
	}
	return path, nil
}

func (s *PostgresStore) ListPaths(ctx context.Context, userID string) ([]LearningPath, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+pathColumns+` FROM learning_paths
		 WHERE user_id = $1
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query learning paths: %w", err)
	}
	defer rows.Close()

	out := []LearningPath{}
	for rows.Next() {
		p, err := scanPath(rows)
		if err != nil {
			return nil, fmt.Errorf("scan learning path: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate learning paths: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SetPathStatus(ctx context.Context, id string, status PathStatus) (LearningPath, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	path, err := scanPath(s.pool.QueryRow(ctx,
		`UPDATE learning_paths SET status = $2, updated_at = NOW()
		 WHERE id = $1::uuid
		 RETURNING `+pathColumns, id, string(status)))
	if err != nil {
		return LearningPath{}, notFound(err, "learning path", id)
	}
	return path, nil
}

func (s *PostgresStore) DeletePath(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	// Topics, tasks, assignments and resources cascade.
	cmd, err := s.pool.Exec(ctx, `DELETE FROM learning_paths WHERE id = $1::uuid`, id)
	if err != nil {
		return notFound(err, "learning path", id)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("learning path %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListTopics(ctx context.Context, pathID string) ([]Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, learning_path_id::text, parent_topic_id::text, title, description, topic_order
		 FROM topics
		 WHERE learning_path_id = $1::uuid
		 ORDER BY topic_order ASC`, pathID)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	out := []Topic{}
	for rows.Next() {
		var t Topic
		var parentID *string
		if err := rows.Scan(&t.ID, &t.LearningPathID, &parentID, &t.Title, &t.Description, &t.Order); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		if parentID != nil {
			t.ParentTopicID = *parentID
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, pathID string) ([]Task, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE learning_path_id = $1::uuid
		 ORDER BY task_order ASC`, pathID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (Task, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	t, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1::uuid`, id))
	if err != nil {
		return Task{}, notFound(err, "task", id)
	}
	return t, nil
}

func (s *PostgresStore) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	a, err := scanAssignment(s.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = $1::uuid`, id))
	if err != nil {
		return Assignment{}, notFound(err, "assignment", id)
	}
	return a, nil
}

func (s *PostgresStore) GetAssignmentForTask(ctx context.Context, taskID string) (Assignment, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	a, err := scanAssignment(s.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE task_id = $1::uuid
		 ORDER BY created_at ASC
		 LIMIT 1`, taskID))
	if err != nil {
		return Assignment{}, notFound(err, "assignment for task", taskID)
	}
	return a, nil
}

func (s *PostgresStore) ListAssignments(ctx context.Context, pathID string) ([]Assignment, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT a.id::text, a.task_id::text, a.user_id, a.question, a.user_answer, a.score, a.ai_evaluation,
		        a.status, a.attempts_remaining, a.submission_count, a.hint_used, a.submitted_at, a.evaluated_at
		 FROM assignments a
		 JOIN tasks t ON t.id = a.task_id
		 WHERE t.learning_path_id = $1::uuid
		 ORDER BY t.task_order ASC`, pathID)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	out := []Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkHintUsed(ctx context.Context, assignmentID string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`UPDATE assignments SET hint_used = TRUE, updated_at = NOW() WHERE id = $1::uuid`, assignmentID)
	if err != nil {
		return notFound(err, "assignment", assignmentID)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("assignment %s: %w", assignmentID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ApplyEvaluation(ctx context.Context, m Mutations) (Applied, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Applied{}, fmt.Errorf("begin apply evaluation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialize evaluations per path so the aggregate below sees every
	// committed completion.
	var pathID string
	var taskOrder int
	var taskStatus TaskStatus
	if err := tx.QueryRow(ctx,
		`SELECT p.id::text, t.task_order, t.status
		 FROM assignments a
		 JOIN tasks t ON t.id = a.task_id
		 JOIN learning_paths p ON p.id = t.learning_path_id
		 WHERE a.id = $1::uuid
		 FOR UPDATE OF p`,
		m.AssignmentID,
	).Scan(&pathID, &taskOrder, &taskStatus); err != nil {
		return Applied{}, notFound(err, "assignment", m.AssignmentID)
	}
	if m.Completion == nil && taskStatus == TaskCompleted {
		return Applied{}, fmt.Errorf("%w: task %d is already completed", ErrConflict, taskOrder)
	}

	applied := Applied{}
	applied.Assignment, err = scanAssignment(tx.QueryRow(ctx,
		`UPDATE assignments
		 SET user_answer = $2,
		     score = $3,
		     ai_evaluation = $4,
		     status = 'evaluated',
		     submitted_at = $5,
		     evaluated_at = $5,
		     submission_count = submission_count + 1,
		     attempts_remaining = CASE WHEN $6 AND attempts_remaining > 0
		                               THEN attempts_remaining - 1
		                               ELSE attempts_remaining END,
		     updated_at = NOW()
		 WHERE id = $1::uuid
		 RETURNING `+assignmentColumns,
		m.AssignmentID, m.Answer, m.Score, m.Feedback, m.EvaluatedAt, m.ConsumeAttempt,
	))
	if err != nil {
		return Applied{}, fmt.Errorf("update assignment: %w", err)
	}

	var nextDifficulty *string
	if c := m.Completion; c != nil {
		cmd, err := tx.Exec(ctx,
			`UPDATE tasks SET status = 'completed', updated_at = NOW()
			 WHERE id = $1::uuid AND status <> 'completed'`,
			c.TaskID)
		if err != nil {
			return Applied{}, fmt.Errorf("complete task: %w", err)
		}
		applied.TaskCompleted = cmd.RowsAffected() == 1

		if applied.TaskCompleted {
			var nextID, difficulty string
			err := tx.QueryRow(ctx,
				`UPDATE tasks
				 SET status = CASE WHEN status = 'locked' THEN 'unlocked' ELSE status END,
				     updated_at = NOW()
				 WHERE learning_path_id = $1::uuid AND task_order = $2
				 RETURNING id::text, difficulty_level`,
				c.PathID, c.NextOrder,
			).Scan(&nextID, &difficulty)
			switch {
			case errors.Is(err, pgx.ErrNoRows):
				// Last task in the path.
			case err != nil:
				return Applied{}, fmt.Errorf("unlock next task: %w", err)
			default:
				applied.UnlockedTaskID = nextID
				nextDifficulty = &difficulty
			}
		}
	}

	applied.Path, err = scanPath(tx.QueryRow(ctx,
		`UPDATE learning_paths p
		 SET completed_tasks = agg.completed,
		     status = CASE WHEN p.status = 'paused' THEN 'paused'
		                   WHEN p.total_tasks > 0 AND agg.completed >= p.total_tasks THEN 'completed'
		                   ELSE 'active' END,
		     performance_average = COALESCE(agg.avg_score, p.performance_average),
		     current_difficulty = COALESCE($2, p.current_difficulty),
		     updated_at = NOW()
		 FROM (
		     SELECT
		         (SELECT COUNT(*) FROM tasks WHERE learning_path_id = $1::uuid AND status = 'completed') AS completed,
		         (SELECT AVG(a.score)::float8
		            FROM assignments a
		            JOIN tasks t ON t.id = a.task_id
		           WHERE t.learning_path_id = $1::uuid
		             AND a.status = 'evaluated'
		             AND a.score IS NOT NULL) AS avg_score
		 ) agg
		 WHERE p.id = $1::uuid
		 RETURNING p.id::text, p.user_id, p.title, p.description, p.total_tasks, p.completed_tasks, p.status,
		           p.current_difficulty, p.performance_average, p.created_at, p.updated_at`,
		pathID, nextDifficulty,
	))
	if err != nil {
		return Applied{}, fmt.Errorf("update learning path aggregate: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Applied{}, fmt.Errorf("commit apply evaluation: %w", err)
	}
	return applied, nil
}

func (s *PostgresStore) AddResources(ctx context.Context, taskID string, resources []Resource) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin add resources: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var topicID *string
	if err := tx.QueryRow(ctx,
		`SELECT topic_id::text FROM tasks WHERE id = $1::uuid`, taskID,
	).Scan(&topicID); err != nil {
		return 0, notFound(err, "task", taskID)
	}

	batch := &pgx.Batch{}
	for _, r := range resources {
		rTopic := topicID
		if r.TopicID != "" {
			rTopic = &r.TopicID
		}
		metadata := r.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		batch.Queue(
			`INSERT INTO resources (task_id, topic_id, type, source, title, url, description,
			                        thumbnail_url, duration, difficulty_level, metadata)
			 VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			taskID, rTopic, string(r.Type), r.Source, r.Title, r.URL, r.Description,
			nullIfEmpty(r.ThumbnailURL), nullIfEmpty(r.Duration), nullIfEmpty(string(r.Difficulty)), metadata,
		)
	}
	batch.Queue(
		`UPDATE tasks SET resource_count = (SELECT COUNT(*) FROM resources WHERE task_id = $1::uuid)
		 WHERE id = $1::uuid`, taskID)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("insert resources: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit add resources: %w", err)
	}
	return len(resources), nil
}

func (s *PostgresStore) ListResources(ctx context.Context, taskID string) ([]Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, task_id::text, topic_id::text, type, source, title, url, description,
		        thumbnail_url, duration, difficulty_level, metadata
		 FROM resources
		 WHERE task_id = $1::uuid
		 ORDER BY created_at ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	out := []Resource{}
	for rows.Next() {
		var r Resource
		var rTaskID, topicID, thumbnail, duration, difficulty *string
		if err := rows.Scan(&r.ID, &rTaskID, &topicID, &r.Type, &r.Source, &r.Title, &r.URL, &r.Description,
			&thumbnail, &duration, &difficulty, &r.Metadata); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		r.TaskID = deref(rTaskID)
		r.TopicID = deref(topicID)
		r.ThumbnailURL = deref(thumbnail)
		r.Duration = deref(duration)
		r.Difficulty = Difficulty(deref(difficulty))
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return out, nil
}

func scanPath(row pgx.Row) (LearningPath, error) {
	var p LearningPath
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Title,
		&p.Description,
		&p.TotalTasks,
		&p.CompletedTasks,
		&p.Status,
		&p.CurrentDifficulty,
		&p.PerformanceAverage,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	var topicID *string
	err := row.Scan(
		&t.ID,
		&t.LearningPathID,
		&topicID,
		&t.Title,
		&t.Description,
		&t.Content,
		&t.Order,
		&t.Status,
		&t.Difficulty,
		&t.EstimatedMinutes,
		&t.ResourceCount,
	)
	t.TopicID = deref(topicID)
	return t, err
}

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	var feedback *string
	err := row.Scan(
		&a.ID,
		&a.TaskID,
		&a.UserID,
		&a.Question,
		&a.UserAnswer,
		&a.Score,
		&feedback,
		&a.Status,
		&a.AttemptsRemaining,
		&a.SubmissionCount,
		&a.HintUsed,
		&a.SubmittedAt,
		&a.EvaluatedAt,
	)
	a.Feedback = deref(feedback)
	return a, err
}

// notFound maps a missing row, or an id that is not a UUID, to ErrNotFound.
func notFound(err error, kind, id string) error {
	var pgErr *pgconn.PgError
	if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == "22P02") {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", kind, err)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
