package user

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
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameTaken  = errors.New("username already exists")
	ErrEmailTaken     = errors.New("email already exists")
	ErrUserReferenced = errors.New("user is referenced by existing tasks")
)

const userColumns = `id, employee_code, name, username, email, password_hash, department, role, reporting_manager_id, team_lead_id, is_active, created_at, updated_at`

// UserRepo handles database operations for users
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo creates a new user repository
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Insert creates a new user. The employee code is assigned inside the insert
// so concurrent creates cannot hand out the same code.
func (r *UserRepo) Insert(ctx context.Context, u *User) (*User, error) {
	query := fmt.Sprintf(`
        INSERT INTO users (employee_code, name, username, email, password_hash, department, role, reporting_manager_id, team_lead_id, is_active)
        VALUES (
            (SELECT COALESCE(MAX(employee_code), 1000) + 1 FROM users),
            $1, $2, $3, $4, $5, $6, $7, $8, $9
        )
        RETURNING %s
    `, userColumns)

	var created User
	err := r.db.GetContext(ctx, &created, query,
		u.Name, u.Username, u.Email, u.PasswordHash, u.Department, u.Role,
		u.ReportingManagerID, u.TeamLeadID, u.IsActive)
	if err != nil {
		return nil, mapUserConstraintErr(err, "failed to create user")
	}

	return &created, nil
}

// GetByID retrieves a user by ID
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	var u User
	err := r.db.GetContext(ctx, &u, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = $1`, userColumns)

	var u User
	err := r.db.GetContext(ctx, &u, query, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// List retrieves users with optional role/active filters, ordered by employee code.
func (r *UserRepo) List(ctx context.Context, f ListUsersFilter) ([]*User, error) {
	conditions := []string{}
	args := []interface{}{}

	if f.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *f.Role)
	}
	if f.Active != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *f.Active)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM users %s ORDER BY employee_code`, userColumns, where)

	var users []*User
	err := r.db.SelectContext(ctx, &users, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

// ListByManager retrieves active users whose reporting manager is the given user.
func (r *UserRepo) ListByManager(ctx context.Context, managerID int64) ([]*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE reporting_manager_id = $1 AND is_active ORDER BY employee_code`, userColumns)

	var users []*User
	err := r.db.SelectContext(ctx, &users, query, managerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	return users, nil
}

// ListByTeamLead retrieves active users whose team lead is the given user.
func (r *UserRepo) ListByTeamLead(ctx context.Context, leadID int64) ([]*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE team_lead_id = $1 AND is_active ORDER BY employee_code`, userColumns)

	var users []*User
	err := r.db.SelectContext(ctx, &users, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}

	return users, nil
}

// Update applies a partial field set to a user. Password changes arrive here
// already hashed (in req.Password).
func (r *UserRepo) Update(ctx context.Context, id int64, req *UpdateUserRequest) (*User, error) {
	setParts := []string{}
	args := []interface{}{}

	if req.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", len(args)+1))
		args = append(args, *req.Name)
	}
	if req.Username != nil {
		setParts = append(setParts, fmt.Sprintf("username = $%d", len(args)+1))
		args = append(args, *req.Username)
	}
	if req.Email != nil {
		setParts = append(setParts, fmt.Sprintf("email = $%d", len(args)+1))
		args = append(args, *req.Email)
	}
	if req.Password != nil {
		setParts = append(setParts, fmt.Sprintf("password_hash = $%d", len(args)+1))
		args = append(args, *req.Password)
	}
	if req.Department != nil {
		setParts = append(setParts, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, *req.Department)
	}
	if req.Role != nil {
		setParts = append(setParts, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *req.Role)
	}
	if req.ReportingManagerID != nil {
		setParts = append(setParts, fmt.Sprintf("reporting_manager_id = $%d", len(args)+1))
		args = append(args, *req.ReportingManagerID)
	}
	if req.TeamLeadID != nil {
		setParts = append(setParts, fmt.Sprintf("team_lead_id = $%d", len(args)+1))
		args = append(args, *req.TeamLeadID)
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
        UPDATE users
        SET %s
        WHERE id = $%d
        RETURNING %s
    `, strings.Join(setParts, ", "), len(args), userColumns)

	var u User
	err := r.db.GetContext(ctx, &u, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, mapUserConstraintErr(err, "failed to update user")
	}

	return &u, nil
}

// Delete removes a user by ID
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrUserReferenced
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func mapUserConstraintErr(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		if strings.Contains(pqErr.Constraint, "email") {
			return ErrEmailTaken
		}
		return ErrUsernameTaken
	}
	return fmt.Errorf("%s: %w", msg, err)
}
