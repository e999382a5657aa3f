package controllers

import (
	"errors"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/curaious/chrono/internal/perrors"
	"github.com/curaious/chrono/internal/services"
	user2 "github.com/curaious/chrono/internal/services/user"
)

// canManageUsers limits directory writes to administrators.
func canManageUsers(u *user2.User) bool {
	return u.Role == user2.RoleAdmin || u.Role == user2.RoleManagement
}

func RegisterUserRoutes(r *router.Router, svc *services.Services) {
	// Create user
	r.POST("/api/users", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		actor, err := currentUser(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.NewErrUnauthorized("Not authenticated", err))
			return
		}
		if !canManageUsers(actor) {
			writeError(ctx, stdCtx, "Not allowed to manage users", perrors.NewErrForbidden("Not allowed to manage users", errors.New("insufficient role")))
			return
		}

		var body user2.CreateUserRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		created, err := svc.User.Create(stdCtx, &body)
		if err != nil {
			switch {
			case errors.Is(err, user2.ErrUsernameTaken):
				writeError(ctx, stdCtx, "Username is already taken", perrors.NewErrConflict("Username is already taken", err))
			case errors.Is(err, user2.ErrEmailTaken):
				writeError(ctx, stdCtx, "Email is already taken", perrors.NewErrConflict("Email is already taken", err))
			case errors.Is(err, user2.ErrInvalidRole):
				writeError(ctx, stdCtx, "Invalid role", perrors.NewErrInvalidRequest("Invalid role", err))
			default:
				writeError(ctx, stdCtx, "Failed to create user", perrors.NewErrInvalidRequest("Failed to create user", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "User created successfully", created)
	})

	// List users
	r.GET("/api/users", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		actor, err := currentUser(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.NewErrUnauthorized("Not authenticated", err))
			return
		}
		if !canManageUsers(actor) {
			writeError(ctx, stdCtx, "Not allowed to list all users", perrors.NewErrForbidden("Not allowed to list all users", errors.New("insufficient role")))
			return
		}

		var f user2.ListUsersFilter
		if role := stringQuery(ctx, "role"); role != "" {
			r := user2.Role(role)
			f.Role = &r
		}
		if ctx.QueryArgs().Has("active") {
			active := boolQuery(ctx, "active")
			f.Active = &active
		}

		users, err := svc.User.List(stdCtx, f)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list users", perrors.NewErrInternalServerError("Failed to list users", err))
			return
		}

		writeOK(ctx, stdCtx, "Users retrieved successfully", users)
	})

	// List users visible to the actor: an employee sees themself, a team lead
	// their team, a manager their reports, everyone else the whole directory.
	r.GET("/api/users/visible", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		actor, err := currentUser(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.NewErrUnauthorized("Not authenticated", err))
			return
		}

		users, err := svc.User.VisibleTo(stdCtx, actor)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list users", perrors.NewErrInternalServerError("Failed to list users", err))
			return
		}

		writeOK(ctx, stdCtx, "Users retrieved successfully", users)
	})

	// Get user by id
	r.GET("/api/users/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		id, err := pathParamInt64(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		u, err := svc.User.GetByID(stdCtx, id)
		if err != nil {
			switch {
			case errors.Is(err, user2.ErrUserNotFound):
				writeError(ctx, stdCtx, "User not found", perrors.NewErrNotFound("User not found", err))
			default:
				writeError(ctx, stdCtx, "Failed to get user", perrors.NewErrInternalServerError("Failed to get user", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "User retrieved successfully", u)
	})

	// Update user
	r.PUT("/api/users/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		actor, err := currentUser(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.NewErrUnauthorized("Not authenticated", err))
			return
		}
		if !canManageUsers(actor) {
			writeError(ctx, stdCtx, "Not allowed to manage users", perrors.NewErrForbidden("Not allowed to manage users", errors.New("insufficient role")))
			return
		}

		id, err := pathParamInt64(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		var body user2.UpdateUserRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		updated, err := svc.User.Update(stdCtx, id, &body)
		if err != nil {
			switch {
			case errors.Is(err, user2.ErrUserNotFound):
				writeError(ctx, stdCtx, "User not found", perrors.NewErrNotFound("User not found", err))
			case errors.Is(err, user2.ErrUsernameTaken):
				writeError(ctx, stdCtx, "Username is already taken", perrors.NewErrConflict("Username is already taken", err))
			case errors.Is(err, user2.ErrEmailTaken):
				writeError(ctx, stdCtx, "Email is already taken", perrors.NewErrConflict("Email is already taken", err))
			case errors.Is(err, user2.ErrSelfReference):
				writeError(ctx, stdCtx, "User cannot be their own manager or team lead", perrors.NewErrInvalidRequest("User cannot be their own manager or team lead", err))
			case errors.Is(err, user2.ErrInvalidRole):
				writeError(ctx, stdCtx, "Invalid role", perrors.NewErrInvalidRequest("Invalid role", err))
			default:
				writeError(ctx, stdCtx, "Failed to update user", perrors.NewErrInternalServerError("Failed to update user", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "User updated successfully", updated)
	})

	// Delete user
	r.DELETE("/api/users/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		actor, err := currentUser(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.NewErrUnauthorized("Not authenticated", err))
			return
		}
		if !canManageUsers(actor) {
			writeError(ctx, stdCtx, "Not allowed to manage users", perrors.NewErrForbidden("Not allowed to manage users", errors.New("insufficient role")))
			return
		}

		id, err := pathParamInt64(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		if err := svc.User.Delete(stdCtx, id); err != nil {
			switch {
			case errors.Is(err, user2.ErrUserNotFound):
				writeError(ctx, stdCtx, "User not found", perrors.NewErrNotFound("User not found", err))
			case errors.Is(err, user2.ErrUserReferenced):
				writeError(ctx, stdCtx, "User has tasks and cannot be deleted", perrors.NewErrConflict("User has tasks and cannot be deleted", err))
			default:
				writeError(ctx, stdCtx, "Failed to delete user", perrors.NewErrInternalServerError("Failed to delete user", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "User deleted successfully", nil)
	})
}
