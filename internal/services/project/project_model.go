package project

import "time"

// Project is a catalog entry tasks are logged against.
type Project struct {
	ID          int64     `db:"id" json:"id"`
	Code        *string   `db:"project_code" json:"code,omitempty"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CreateProjectRequest captures payload for creating a project
type CreateProjectRequest struct {
	Code        *string `json:"code,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// UpdateProjectRequest captures payload for updating a project
type UpdateProjectRequest struct {
	Code        *string `json:"code,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// ListProjectsFilter pages through the catalog, optionally restricted to
// active projects.
type ListProjectsFilter struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	ActiveOnly bool `json:"active_only"`
}
