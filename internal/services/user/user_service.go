package user

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSelfReference      = errors.New("user cannot be their own manager or team lead")
	ErrInvalidRole        = errors.New("invalid role")
)

// Store is the persistence boundary for the directory. *UserRepo is the
// production implementation.
type Store interface {
	Insert(ctx context.Context, u *User) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, f ListUsersFilter) ([]*User, error)
	ListByManager(ctx context.Context, managerID int64) ([]*User, error)
	ListByTeamLead(ctx context.Context, leadID int64) ([]*User, error)
	Update(ctx context.Context, id int64, req *UpdateUserRequest) (*User, error)
	Delete(ctx context.Context, id int64) error
}

// UserService contains directory business logic: identity, roles and
// reporting-line resolution.
type UserService struct {
	store Store
}

// NewUserService constructs a new UserService
func NewUserService(store Store) *UserService {
	return &UserService{store: store}
}

// Create registers a new user. Username and email must be unique; the
// employee code is assigned sequentially by the store.
func (s *UserService) Create(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if req.Username == "" || req.Name == "" || req.Password == "" {
		return nil, fmt.Errorf("name, username and password are required")
	}
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, req.Role)
	}

	if _, err := s.store.GetByUsername(ctx, req.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to validate username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := s.store.Insert(ctx, &User{
		Name:               req.Name,
		Username:           req.Username,
		Email:              req.Email,
		PasswordHash:       string(hash),
		Department:         req.Department,
		Role:               req.Role,
		ReportingManagerID: req.ReportingManagerID,
		TeamLeadID:         req.TeamLeadID,
		IsActive:           true,
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// Authenticate verifies a username/password pair.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetByID fetches a user by its identifier
func (s *UserService) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.store.GetByID(ctx, id)
}

// GetByUsername fetches a user by username
func (s *UserService) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.store.GetByUsername(ctx, username)
}

// List returns users matching the optional role/active filters.
func (s *UserService) List(ctx context.Context, f ListUsersFilter) ([]*User, error) {
	return s.store.List(ctx, f)
}

// ReportsOf resolves the active direct reports of a manager.
func (s *UserService) ReportsOf(ctx context.Context, managerID int64) ([]*User, error) {
	return s.store.ListByManager(ctx, managerID)
}

// TeamOf resolves the active team members of a team lead.
func (s *UserService) TeamOf(ctx context.Context, leadID int64) ([]*User, error) {
	return s.store.ListByTeamLead(ctx, leadID)
}

// VisibleTo lists the active users the actor is allowed to see: an employee
// sees only themself, a team lead their team, a manager their reports, and
// everyone else the whole active directory.
func (s *UserService) VisibleTo(ctx context.Context, actor *User) ([]*User, error) {
	switch actor.Role {
	case RoleEmployee:
		return []*User{actor}, nil
	case RoleTeamLead:
		team, err := s.store.ListByTeamLead(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		return append([]*User{actor}, team...), nil
	case RoleManager:
		reports, err := s.store.ListByManager(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		return append([]*User{actor}, reports...), nil
	default:
		active := true
		return s.store.List(ctx, ListUsersFilter{Active: &active})
	}
}

// Update applies a partial field set. Username/email uniqueness is re-checked
// when those fields change, and a user may never become their own manager or
// team lead.
func (s *UserService) Update(ctx context.Context, id int64, req *UpdateUserRequest) (*User, error) {
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Role != nil && !req.Role.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, *req.Role)
	}
	if req.ReportingManagerID != nil && *req.ReportingManagerID == id {
		return nil, ErrSelfReference
	}
	if req.TeamLeadID != nil && *req.TeamLeadID == id {
		return nil, ErrSelfReference
	}

	if req.Username != nil && *req.Username != existing.Username {
		if _, err := s.store.GetByUsername(ctx, *req.Username); err == nil {
			return nil, ErrUsernameTaken
		} else if !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("failed to validate username: %w", err)
		}
	}

	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		hashed := string(hash)
		req.Password = &hashed
	}

	return s.store.Update(ctx, id, req)
}

// Delete removes a user. Users referenced by existing tasks cannot be
// deleted; deactivate them instead.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}
