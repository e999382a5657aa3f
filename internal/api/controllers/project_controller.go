package controllers

import (
	"errors"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/curaious/chrono/internal/perrors"
	"github.com/curaious/chrono/internal/services"
	project2 "github.com/curaious/chrono/internal/services/project"
	user2 "github.com/curaious/chrono/internal/services/user"
)

// canManageProjects limits catalog writes to administrators.
func canManageProjects(u *user2.User) bool {
	return u.Role == user2.RoleAdmin || u.Role == user2.RoleManagement
}

func RegisterProjectRoutes(r *router.Router, svc *services.Services) {
	// Create project
	r.POST("/api/projects", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		actor, err := currentUser(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.NewErrUnauthorized("Not authenticated", err))
			return
		}
		if !canManageProjects(actor) {
			writeError(ctx, stdCtx, "Not allowed to manage projects", perrors.NewErrForbidden("Not allowed to manage projects", errors.New("insufficient role")))
			return
		}

		var body project2.CreateProjectRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		if body.Name == "" {
			writeError(ctx, stdCtx, "Name is required", perrors.NewErrInvalidRequest("Name is required", errors.New("name is required")))
			return
		}

		created, err := svc.Project.Create(stdCtx, &body)
		if err != nil {
			switch {
			case errors.Is(err, project2.ErrProjectCodeTaken):
				writeError(ctx, stdCtx, "Project code is already taken", perrors.NewErrConflict("Project code is already taken", err))
			default:
				writeError(ctx, stdCtx, "Failed to create project", perrors.NewErrInternalServerError("Failed to create project", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Project created successfully", created)
	})

	// List projects
	r.GET("/api/projects", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		f := project2.ListProjectsFilter{
			Page:       intQuery(ctx, "page", 1),
			PageSize:   intQuery(ctx, "size", 100),
			ActiveOnly: boolQuery(ctx, "active_only"),
		}

		projects, err := svc.Project.List(stdCtx, f)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list projects", perrors.NewErrInternalServerError("Failed to list projects", err))
			return
		}

		writeOK(ctx, stdCtx, "Projects retrieved successfully", projects)
	})

	// Get project by id
	r.GET("/api/projects/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		id, err := pathParamInt64(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		p, err := svc.Project.GetByID(stdCtx, id)
		if err != nil {
			switch {
			case errors.Is(err, project2.ErrProjectNotFound):
				writeError(ctx, stdCtx, "Project not found", perrors.NewErrNotFound("Project not found", err))
			default:
				writeError(ctx, stdCtx, "Failed to get project", perrors.NewErrInternalServerError("Failed to get project", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Project retrieved successfully", p)
	})

	// Update project
	r.PUT("/api/projects/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		actor, err := currentUser(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.NewErrUnauthorized("Not authenticated", err))
			return
		}
		if !canManageProjects(actor) {
			writeError(ctx, stdCtx, "Not allowed to manage projects", perrors.NewErrForbidden("Not allowed to manage projects", errors.New("insufficient role")))
			return
		}

		id, err := pathParamInt64(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		var body project2.UpdateProjectRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		updated, err := svc.Project.Update(stdCtx, id, &body)
		if err != nil {
			switch {
			case errors.Is(err, project2.ErrProjectNotFound):
				writeError(ctx, stdCtx, "Project not found", perrors.NewErrNotFound("Project not found", err))
			case errors.Is(err, project2.ErrProjectCodeTaken):
				writeError(ctx, stdCtx, "Project code is already taken", perrors.NewErrConflict("Project code is already taken", err))
			default:
				writeError(ctx, stdCtx, "Failed to update project", perrors.NewErrInternalServerError("Failed to update project", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Project updated successfully", updated)
	})

	// Delete project
	r.DELETE("/api/projects/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		actor, err := currentUser(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.NewErrUnauthorized("Not authenticated", err))
			return
		}
		if !canManageProjects(actor) {
			writeError(ctx, stdCtx, "Not allowed to manage projects", perrors.NewErrForbidden("Not allowed to manage projects", errors.New("insufficient role")))
			return
		}

		id, err := pathParamInt64(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		if err := svc.Project.Delete(stdCtx, id); err != nil {
			switch {
			case errors.Is(err, project2.ErrProjectNotFound):
				writeError(ctx, stdCtx, "Project not found", perrors.NewErrNotFound("Project not found", err))
			case errors.Is(err, project2.ErrProjectReferenced):
				writeError(ctx, stdCtx, "Project has tasks and cannot be deleted", perrors.NewErrConflict("Project has tasks and cannot be deleted", err))
			default:
				writeError(ctx, stdCtx, "Failed to delete project", perrors.NewErrInternalServerError("Failed to delete project", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Project deleted successfully", nil)
	})
}
