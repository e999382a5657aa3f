package project

import (
	"context"
	"fmt"
)

// Store is the persistence boundary for the registry. *ProjectRepo is the
// production implementation.
type Store interface {
	Create(ctx context.Context, req *CreateProjectRequest) (*Project, error)
	GetByID(ctx context.Context, id int64) (*Project, error)
	List(ctx context.Context, f ListProjectsFilter) ([]*Project, error)
	Update(ctx context.Context, id int64, req *UpdateProjectRequest) (*Project, error)
	Delete(ctx context.Context, id int64) error
}

// ProjectService contains business logic for the project registry
type ProjectService struct {
	store Store
}

// NewProjectService constructs a new ProjectService
func NewProjectService(store Store) *ProjectService {
	return &ProjectService{store: store}
}

// Create registers a new project
func (s *ProjectService) Create(ctx context.Context, req *CreateProjectRequest) (*Project, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("project name is required")
	}

	return s.store.Create(ctx, req)
}

// GetByID fetches a project by its identifier
func (s *ProjectService) GetByID(ctx context.Context, id int64) (*Project, error) {
	return s.store.GetByID(ctx, id)
}

// List returns a page of projects
func (s *ProjectService) List(ctx context.Context, f ListProjectsFilter) ([]*Project, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 100
	}

	return s.store.List(ctx, f)
}

// Update modifies mutable project fields
func (s *ProjectService) Update(ctx context.Context, id int64, req *UpdateProjectRequest) (*Project, error) {
	if req.Name != nil && *req.Name == "" {
		return nil, fmt.Errorf("project name cannot be empty")
	}

	return s.store.Update(ctx, id, req)
}

// Delete removes a project. Projects referenced by tasks cannot be deleted;
// deactivate them instead.
func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}
