package repository

import (
	"context"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"

	"github.com/jackc/pgx/v5"
)

const taskColumns = `t.id, t.title, t.description, t.points, t.icon_url, t.task_type, t.external_link, t.is_active, t.created_at`

func scanTaskInto(row pgx.Row, t *domain.Task, extra ...any) error {
	dest := append([]any{
		&t.ID, &t.Title, &t.Description, &t.Points, &t.IconURL, &t.TaskType,
		&t.ExternalLink, &t.IsActive, &t.CreatedAt,
	}, extra...)
	return row.Scan(dest...)
}

func (r *queries) CreateTask(ctx context.Context, t *domain.Task) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO tasks (title, description, points, icon_url, task_type, external_link, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		t.Title, t.Description, t.Points, t.IconURL, t.TaskType, t.ExternalLink, t.IsActive,
	).Scan(&t.ID, &t.CreatedAt)
}

func (r *queries) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	var t domain.Task
	if err := scanTaskInto(r.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.id = $1`, id), &t); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *queries) GetTaskByTitle(ctx context.Context, title string) (*domain.Task, error) {
	var t domain.Task
	if err := scanTaskInto(r.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.title = $1 ORDER BY t.id LIMIT 1`, title), &t); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// ListAvailableTasks returns active tasks the user has not completed, with their progress.
func (r *queries) ListAvailableTasks(ctx context.Context, userID int64) ([]domain.AvailableTask, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+taskColumns+`, COALESCE(c.status, 'pending')
		 FROM tasks t
		 LEFT JOIN user_task_completions c ON c.task_id = t.id AND c.user_id = $1
		 WHERE t.is_active AND COALESCE(c.status, 'pending') <> 'completed'
		 ORDER BY t.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AvailableTask
	for rows.Next() {
		var at domain.AvailableTask
		if err := scanTaskInto(rows, &at.Task, &at.Status); err != nil {
			return nil, err
		}
		out = append(out, at)
	}
	return out, rows.Err()
}

const completionColumns = `user_id, task_id, status, started_at, completed_at, awarded_points`

func scanCompletion(row pgx.Row) (*domain.TaskCompletion, error) {
	var c domain.TaskCompletion
	if err := row.Scan(&c.UserID, &c.TaskID, &c.Status, &c.StartedAt, &c.CompletedAt, &c.AwardedPoints); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *queries) LockTaskCompletion(ctx context.Context, userID, taskID int64) (*domain.TaskCompletion, error) {
	return scanCompletion(r.db.QueryRow(ctx,
		`SELECT `+completionColumns+`
		 FROM user_task_completions
		 WHERE user_id = $1 AND task_id = $2
		 FOR UPDATE`, userID, taskID))
}

func (r *queries) StartTaskCompletion(ctx context.Context, userID, taskID int64, at time.Time) (*domain.TaskCompletion, error) {
	_, err := r.db.Exec(ctx,
		`INSERT INTO user_task_completions (user_id, task_id, status, started_at)
		 VALUES ($1, $2, 'started', $3)
		 ON CONFLICT (user_id, task_id) DO UPDATE
		 SET status = 'started', started_at = EXCLUDED.started_at
		 WHERE user_task_completions.status = 'pending'`,
		userID, taskID, at)
	if err != nil {
		return nil, err
	}
	return scanCompletion(r.db.QueryRow(ctx,
		`SELECT `+completionColumns+` FROM user_task_completions WHERE user_id = $1 AND task_id = $2`,
		userID, taskID))
}

func (r *queries) FinishTaskCompletion(ctx context.Context, userID, taskID, awarded int64, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE user_task_completions
		 SET status = 'completed', completed_at = $3, awarded_points = $4
		 WHERE user_id = $1 AND task_id = $2 AND status = 'started'`,
		userID, taskID, at, awarded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotStarted
	}
	return nil
}
