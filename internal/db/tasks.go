package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scolarite/mailsync/internal/models"
)

// TaskStore persists actions and their tasks.
type TaskStore struct {
	pool *pgxpool.Pool
}

// NewTaskStore creates a task store over the given pool.
func NewTaskStore(pool *pgxpool.Pool) *TaskStore {
	return &TaskStore{pool: pool}
}

// CreateAction inserts a new action, assigning an id if the caller did not.
func (s *TaskStore) CreateAction(ctx context.Context, action *models.Action) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO actions (id, user_id, type, approved)
		VALUES ($1, $2, $3, $4)
	`, action.ID, action.UserID, action.Type.String(), action.Approved)
	if err != nil {
		return fmt.Errorf("failed to create action: %w", err)
	}
	return nil
}

// CreateTask inserts a task under the given action and registers it on the
// action's task set.
func (s *TaskStore) CreateTask(ctx context.Context, action *models.Action, task models.Task) (models.Task, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.ActionID = action.ID

	payload := task.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (id, action_id, kind, status, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, task.ID, task.ActionID, task.Kind.String(), task.Status.String(), payload)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to create task: %w", err)
	}

	action.AddTask(task)
	return task, nil
}

// RetrieveTasks loads tasks of one kind in one status, oldest first, up to
// limit.
func (s *TaskStore) RetrieveTasks(ctx context.Context, kind models.TaskKind, status models.TaskStatus, limit int) ([]models.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, action_id, kind, status, payload
		FROM tasks
		WHERE kind = $1 AND status = $2
		ORDER BY created_at, id
		LIMIT $3
	`, kind.String(), status.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		var kindStr, statusStr string
		if err := rows.Scan(&t.ID, &t.ActionID, &kindStr, &statusStr, &t.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		t.Kind, _ = models.ParseTaskKind(kindStr)
		t.Status, _ = models.ParseTaskStatus(statusStr)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read task rows: %w", err)
	}
	return tasks, nil
}

// EditTaskStatus writes the new status of one task.
func (s *TaskStore) EditTaskStatus(ctx context.Context, task models.Task, status models.TaskStatus) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, task.ID, status.String())
	if err != nil {
		return fmt.Errorf("failed to set status %s on task %s: %w", status, task.ID, err)
	}
	return nil
}
