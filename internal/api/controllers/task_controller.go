package controllers

import (
	"errors"
	"fmt"
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/curaious/chrono/internal/perrors"
	"github.com/curaious/chrono/internal/report"
	"github.com/curaious/chrono/internal/services"
	task2 "github.com/curaious/chrono/internal/services/task"
	user2 "github.com/curaious/chrono/internal/services/user"
)

type completeTaskRequest struct {
	EndTime *time.Time `json:"end_time,omitempty"`
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func RegisterTaskRoutes(r *router.Router, svc *services.Services) {
	// Log a task
	r.POST("/api/tasks", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		actor, err := currentUser(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.NewErrUnauthorized("Not authenticated", err))
			return
		}

		var body task2.CreateTaskRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		// Omitting the owner logs the task for the acting user.
		if body.UserID == 0 {
			body.UserID = actor.ID
		}
		if body.Title == "" || body.ProjectID == 0 || body.StartTime.IsZero() || body.Date.IsZero() {
			writeError(ctx, stdCtx, "Title, project, date and start time are required", perrors.NewErrInvalidRequest("Title, project, date and start time are required", errors.New("missing required fields")))
			return
		}

		created, err := svc.Task.Create(stdCtx, &body, actor)
		if err != nil {
			switch {
			case errors.Is(err, user2.ErrUserNotFound):
				writeError(ctx, stdCtx, "Task owner not found", perrors.NewErrNotFound("Task owner not found", err))
			case errors.Is(err, task2.ErrBackdatedQuota):
				writeError(ctx, stdCtx, "Monthly backdated task limit reached", perrors.NewErrQuotaExceeded("Monthly backdated task limit reached", err))
			case errors.Is(err, task2.ErrReviewerIsOwner):
				writeError(ctx, stdCtx, "Reviewer cannot be the task owner", perrors.NewErrInvalidRequest("Reviewer cannot be the task owner", err))
			case errors.Is(err, task2.ErrEndBeforeStart):
				writeError(ctx, stdCtx, "End time cannot be before start time", perrors.NewErrInvalidRequest("End time cannot be before start time", err))
			case errors.Is(err, task2.ErrInvalidTaskType):
				writeError(ctx, stdCtx, "Invalid task type", perrors.NewErrInvalidRequest("Invalid task type", err))
			default:
				writeError(ctx, stdCtx, "Failed to create task", perrors.NewErrInternalServerError("Failed to create task", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Task created successfully", created)
	})

	// List tasks visible to the actor
	r.GET("/api/tasks", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		actor, err := currentUser(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.NewErrUnauthorized("Not authenticated", err))
			return
		}

		f, err := parseTaskFilter(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Invalid filter", perrors.NewErrInvalidRequest("Invalid filter", err))
			return
		}

		tasks, err := svc.Task.List(stdCtx, f, actor, intQuery(ctx, "page", 1), intQuery(ctx, "size", 10))
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list tasks", perrors.NewErrInternalServerError("Failed to list tasks", err))
			return
		}

		writeOK(ctx, stdCtx, "Tasks retrieved successfully", tasks)
	})

	// Backdated tasks awaiting approval within the actor's scope
	r.GET("/api/tasks/pending", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		actor, err := currentUser(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.NewErrUnauthorized("Not authenticated", err))
			return
		}

		tasks, err := svc.Task.PendingApprovals(stdCtx, actor, intQuery(ctx, "page", 1), intQuery(ctx, "size", 10))
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list pending tasks", perrors.NewErrInternalServerError("Failed to list pending tasks", err))
			return
		}

		writeOK(ctx, stdCtx, "Pending tasks retrieved successfully", tasks)
	})

	// Download the task report as a spreadsheet
	r.GET("/api/tasks/download", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		actor, err := currentUser(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.NewErrUnauthorized("Not authenticated", err))
			return
		}

		f, err := parseTaskFilter(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Invalid filter", perrors.NewErrInvalidRequest("Invalid filter", err))
			return
		}

		rows, err := svc.Task.Export(stdCtx, f, actor)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to export tasks", perrors.NewErrInternalServerError("Failed to export tasks", err))
			return
		}

		data, err := report.WriteTasks(rows)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to render report", perrors.NewErrInternalServerError("Failed to render report", err))
			return
		}

		filename := fmt.Sprintf("task_report_%s.xlsx", time.Now().Format("20060102_150405"))
		ctx.Response.Header.Set("Content-Type", xlsxContentType)
		ctx.Response.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBody(data)
	})

	// Complete a task
	r.POST("/api/tasks/{id}/complete", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		id, err := pathParamInt64(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		// Body is optional; without it the end time defaults to now.
		var body completeTaskRequest
		if len(ctx.PostBody()) > 0 {
			if err := parseBody(ctx, &body); err != nil {
				writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
				return
			}
		}

		updated, err := svc.Task.Complete(stdCtx, id, body.EndTime)
		if err != nil {
			switch {
			case errors.Is(err, task2.ErrTaskNotFound):
				writeError(ctx, stdCtx, "Task not found", perrors.NewErrNotFound("Task not found", err))
			case errors.Is(err, task2.ErrInvalidTransition):
				writeError(ctx, stdCtx, "Task cannot be completed", perrors.NewErrInvalidState("Task cannot be completed", err))
			case errors.Is(err, task2.ErrEndBeforeStart):
				writeError(ctx, stdCtx, "End time cannot be before start time", perrors.NewErrInvalidRequest("End time cannot be before start time", err))
			default:
				writeError(ctx, stdCtx, "Failed to complete task", perrors.NewErrInternalServerError("Failed to complete task", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Task completed successfully", updated)
	})

	// Approve a backdated task
	r.POST("/api/tasks/{id}/approve", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		actor, err := currentUser(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.NewErrUnauthorized("Not authenticated", err))
			return
		}
		if actor.Role == user2.RoleEmployee {
			writeError(ctx, stdCtx, "Not allowed to approve tasks", perrors.NewErrForbidden("Not allowed to approve tasks", errors.New("insufficient role")))
			return
		}

		id, err := pathParamInt64(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		updated, err := svc.Task.Approve(stdCtx, id)
		if err != nil {
			switch {
			case errors.Is(err, task2.ErrTaskNotFound):
				writeError(ctx, stdCtx, "Task not found", perrors.NewErrNotFound("Task not found", err))
			case errors.Is(err, task2.ErrInvalidTransition):
				writeError(ctx, stdCtx, "Task cannot be approved", perrors.NewErrInvalidState("Task cannot be approved", err))
			default:
				writeError(ctx, stdCtx, "Failed to approve task", perrors.NewErrInternalServerError("Failed to approve task", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Task approved successfully", updated)
	})

	// Edit a task
	r.PUT("/api/tasks/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		actor, err := currentUser(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.NewErrUnauthorized("Not authenticated", err))
			return
		}

		id, err := pathParamInt64(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		var body task2.UpdateTaskRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		updated, err := svc.Task.Edit(stdCtx, id, &body, actor)
		if err != nil {
			switch {
			case errors.Is(err, task2.ErrTaskNotFound):
				writeError(ctx, stdCtx, "Task not found", perrors.NewErrNotFound("Task not found", err))
			case errors.Is(err, task2.ErrEditForbidden):
				writeError(ctx, stdCtx, "Not allowed to edit tasks", perrors.NewErrForbidden("Not allowed to edit tasks", err))
			case errors.Is(err, task2.ErrReviewerIsOwner):
				writeError(ctx, stdCtx, "Reviewer cannot be the task owner", perrors.NewErrInvalidRequest("Reviewer cannot be the task owner", err))
			case errors.Is(err, task2.ErrEndBeforeStart):
				writeError(ctx, stdCtx, "End time cannot be before start time", perrors.NewErrInvalidRequest("End time cannot be before start time", err))
			case errors.Is(err, task2.ErrInvalidTaskType):
				writeError(ctx, stdCtx, "Invalid task type", perrors.NewErrInvalidRequest("Invalid task type", err))
			default:
				writeError(ctx, stdCtx, "Failed to update task", perrors.NewErrInternalServerError("Failed to update task", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Task updated successfully", updated)
	})

	// Delete a task
	r.DELETE("/api/tasks/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		actor, err := currentUser(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.NewErrUnauthorized("Not authenticated", err))
			return
		}

		id, err := pathParamInt64(ctx, "id")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid ID format", perrors.NewErrInvalidRequest("Invalid ID format", err))
			return
		}

		if err := svc.Task.Delete(stdCtx, id, actor); err != nil {
			switch {
			case errors.Is(err, task2.ErrTaskNotFound):
				writeError(ctx, stdCtx, "Task not found", perrors.NewErrNotFound("Task not found", err))
			case errors.Is(err, task2.ErrDeleteForbidden):
				writeError(ctx, stdCtx, "Only the creator can delete a task", perrors.NewErrForbidden("Only the creator can delete a task", err))
			default:
				writeError(ctx, stdCtx, "Failed to delete task", perrors.NewErrInternalServerError("Failed to delete task", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Task deleted successfully", nil)
	})
}

// parseTaskFilter reads the shared list/export filter set from query args.
func parseTaskFilter(ctx *fasthttp.RequestCtx) (task2.TaskFilter, error) {
	var f task2.TaskFilter

	userID, err := optionalInt64Query(ctx, "user_id")
	if err != nil {
		return f, err
	}
	f.UserID = userID

	projectID, err := optionalInt64Query(ctx, "project_id")
	if err != nil {
		return f, err
	}
	f.ProjectID = projectID

	if tt := stringQuery(ctx, "task_type"); tt != "" {
		t := task2.Type(tt)
		if !t.Valid() {
			return f, fmt.Errorf("invalid task_type %q", tt)
		}
		f.TaskType = &t
	}
	if st := stringQuery(ctx, "status"); st != "" {
		s := task2.Status(st)
		if !s.Valid() {
			return f, fmt.Errorf("invalid status %q", st)
		}
		f.Status = &s
	}

	from, err := optionalDayQuery(ctx, "from_date")
	if err != nil {
		return f, err
	}
	if from != nil {
		d := task2.DayOf(*from)
		f.FromDate = &d
	}

	to, err := optionalDayQuery(ctx, "to_date")
	if err != nil {
		return f, err
	}
	if to != nil {
		d := task2.DayOf(*to)
		f.ToDate = &d
	}

	f.Search = stringQuery(ctx, "search")
	f.OnlyBackdated = boolQuery(ctx, "only_backdated")
	f.BackdatedCreator = stringQuery(ctx, "backdated_creator")
	f.Timezone = stringQuery(ctx, "timezone")

	if f.BackdatedCreator != "" && f.BackdatedCreator != task2.BackdatedCreatorOwn && f.BackdatedCreator != task2.BackdatedCreatorManager {
		return f, fmt.Errorf("backdated_creator must be %q or %q", task2.BackdatedCreatorOwn, task2.BackdatedCreatorManager)
	}

	return f, nil
}
