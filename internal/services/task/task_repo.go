package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var ErrTaskNotFound = errors.New("task not found")

const taskColumns = `id, user_id, created_by, project_id, title, details, date, start_time, end_time, total_time_minutes, task_type, status, reviewer_id, is_backdated, is_approved, created_at, updated_at`

// TaskRepo handles database operations for tasks
type TaskRepo struct {
	db *sqlx.DB
}

// NewTaskRepo creates a new task repository
func NewTaskRepo(db *sqlx.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

// Insert persists a new task
func (r *TaskRepo) Insert(ctx context.Context, t *Task) (*Task, error) {
	query := fmt.Sprintf(`
        INSERT INTO tasks (user_id, created_by, project_id, title, details, date, start_time, end_time, total_time_minutes, task_type, status, reviewer_id, is_backdated, is_approved)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING %s
    `, taskColumns)

	var created Task
	err := r.db.GetContext(ctx, &created, query,
		t.UserID, t.CreatedBy, t.ProjectID, t.Title, t.Details, t.Date,
		t.StartTime, t.EndTime, t.TotalTimeMinutes, t.TaskType, t.Status,
		t.ReviewerID, t.IsBackdated, t.IsApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return &created, nil
}

// GetByID retrieves a task by ID
func (r *TaskRepo) GetByID(ctx context.Context, id int64) (*Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)

	var t Task
	err := r.db.GetContext(ctx, &t, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return &t, nil
}

// CountBackdated counts backdated tasks created by a user with dates in
// [from, until).
func (r *TaskRepo) CountBackdated(ctx context.Context, createdBy int64, from, until Day) (int, error) {
	query := `
        SELECT COUNT(*) FROM tasks
        WHERE created_by = $1 AND date >= $2 AND date < $3 AND is_backdated
    `

	var count int
	err := r.db.GetContext(ctx, &count, query, createdBy, from, until)
	if err != nil {
		return 0, fmt.Errorf("failed to count backdated tasks: %w", err)
	}

	return count, nil
}

// UpdateAtomic loads the task under a row lock, applies mutate, and writes it
// back in the same transaction. The state-machine guards inside mutate are
// therefore checked consistently under concurrent calls on the same task.
func (r *TaskRepo) UpdateAtomic(ctx context.Context, id int64, mutate func(*Task) error) (*Task, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1 FOR UPDATE`, taskColumns)

	var t Task
	if err := tx.GetContext(ctx, &t, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to lock task: %w", err)
	}

	if err := mutate(&t); err != nil {
		return nil, err
	}

	update := fmt.Sprintf(`
        UPDATE tasks
        SET user_id = $1, project_id = $2, title = $3, details = $4, date = $5,
            start_time = $6, end_time = $7, total_time_minutes = $8, task_type = $9,
            status = $10, reviewer_id = $11, is_backdated = $12, is_approved = $13,
            updated_at = NOW()
        WHERE id = $14
        RETURNING %s
    `, taskColumns)

	var updated Task
	err = tx.GetContext(ctx, &updated, update,
		t.UserID, t.ProjectID, t.Title, t.Details, t.Date, t.StartTime, t.EndTime,
		t.TotalTimeMinutes, t.TaskType, t.Status, t.ReviewerID, t.IsBackdated,
		t.IsApproved, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit task update: %w", err)
	}

	return &updated, nil
}

// Delete removes a task by ID
func (r *TaskRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrTaskNotFound
	}

	return nil
}

// List retrieves tasks matching the resolved query, ordered by start time
// descending.
func (r *TaskRepo) List(ctx context.Context, q ListQuery) ([]*Task, error) {
	conditions := []string{}
	args := []interface{}{}

	if q.OwnerIn != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(q.OwnerIn))
	}

	f := q.Filter
	if f.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, *f.UserID)
	}
	if f.ProjectID != nil {
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", len(args)+1))
		args = append(args, *f.ProjectID)
	}
	if f.TaskType != nil {
		conditions = append(conditions, fmt.Sprintf("task_type = $%d", len(args)+1))
		args = append(args, *f.TaskType)
	}
	if f.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *f.Status)
	}
	if f.FromDate != nil && f.ToDate != nil {
		conditions = append(conditions, fmt.Sprintf("date BETWEEN $%d AND $%d", len(args)+1, len(args)+2))
		args = append(args, *f.FromDate, *f.ToDate)
	}
	if f.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR details ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+f.Search+"%")
	}

	if f.OnlyBackdated {
		conditions = append(conditions, "is_backdated")
		switch f.BackdatedCreator {
		case BackdatedCreatorOwn:
			conditions = append(conditions, "user_id = created_by")
		case BackdatedCreatorManager:
			conditions = append(conditions, "user_id <> created_by")
		}
	} else {
		// Unapproved backdated tasks are hidden from normal listings.
		conditions = append(conditions, "(NOT is_backdated OR is_approved)")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	paging := ""
	if q.Limit > 0 {
		paging = fmt.Sprintf("OFFSET $%d LIMIT $%d", len(args)+1, len(args)+2)
		args = append(args, q.Offset, q.Limit)
	}

	query := fmt.Sprintf(`
        SELECT %s FROM tasks
        %s
        ORDER BY start_time DESC
        %s
    `, taskColumns, where, paging)

	var tasks []*Task
	err := r.db.SelectContext(ctx, &tasks, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, nil
}
