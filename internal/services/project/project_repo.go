package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrProjectCodeTaken  = errors.New("project code already exists")
	ErrProjectReferenced = errors.New("project is referenced by existing tasks")
)

const projectColumns = `id, project_code, name, description, is_active, created_at, updated_at`

// ProjectRepo handles database operations for projects
type ProjectRepo struct {
	db *sqlx.DB
}

// NewProjectRepo creates a new project repository
func NewProjectRepo(db *sqlx.DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

// Create creates a new project
func (r *ProjectRepo) Create(ctx context.Context, req *CreateProjectRequest) (*Project, error) {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	query := fmt.Sprintf(`
        INSERT INTO projects (project_code, name, description, is_active)
        VALUES ($1, $2, $3, $4)
        RETURNING %s
    `, projectColumns)

	var p Project
	err := r.db.GetContext(ctx, &p, query, req.Code, req.Name, req.Description, active)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrProjectCodeTaken
		}
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return &p, nil
}

// GetByID retrieves a project by ID
func (r *ProjectRepo) GetByID(ctx context.Context, id int64) (*Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1`, projectColumns)

	var p Project
	err := r.db.GetContext(ctx, &p, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &p, nil
}

// List retrieves a page of projects ordered by creation date
func (r *ProjectRepo) List(ctx context.Context, f ListProjectsFilter) ([]*Project, error) {
	where := ""
	if f.ActiveOnly {
		where = "WHERE is_active"
	}

	query := fmt.Sprintf(`
        SELECT %s FROM projects %s
        ORDER BY created_at DESC
        OFFSET $1 LIMIT $2
    `, projectColumns, where)

	var projects []*Project
	err := r.db.SelectContext(ctx, &projects, query, (f.Page-1)*f.PageSize, f.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	return projects, nil
}

// Update updates project fields
func (r *ProjectRepo) Update(ctx context.Context, id int64, req *UpdateProjectRequest) (*Project, error) {
	setParts := []string{}
	args := []interface{}{}

	if req.Code != nil {
		setParts = append(setParts, fmt.Sprintf("project_code = $%d", len(args)+1))
		args = append(args, *req.Code)
	}
	if req.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", len(args)+1))
		args = append(args, *req.Name)
	}
	if req.Description != nil {
		setParts = append(setParts, fmt.Sprintf("description = $%d", len(args)+1))
		args = append(args, *req.Description)
	}
	if req.IsActive != nil {
		setParts = append(setParts, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *req.IsActive)
	}

	if len(setParts) == 0 {
		return r.GetByID(ctx, id)
	}

	setParts = append(setParts, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`
        UPDATE projects
        SET %s
        WHERE id = $%d
        RETURNING %s
    `, strings.Join(setParts, ", "), len(args), projectColumns)

	var p Project
	err := r.db.GetContext(ctx, &p, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProjectNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrProjectCodeTaken
		}
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	return &p, nil
}

// Delete removes a project by ID
func (r *ProjectRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrProjectReferenced
		}
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProjectNotFound
	}

	return nil
}
