package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/curaious/chrono/internal/services/project"
	"github.com/curaious/chrono/internal/services/user"
)

var (
	ErrReviewerIsOwner   = errors.New("reviewer cannot be the same as the task owner")
	ErrEndBeforeStart    = errors.New("end time cannot be before start time")
	ErrBackdatedQuota    = errors.New("monthly backdated task limit reached")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEditForbidden     = errors.New("role is not allowed to edit tasks")
	ErrDeleteForbidden   = errors.New("only the task creator can delete a task")
	ErrInvalidTaskType   = errors.New("invalid task type")
)

// backdatedMonthlyLimit caps backdated tasks per owner per calendar month for
// Employee and TeamLead roles. Managers and above are exempt.
const backdatedMonthlyLimit = 5

// Store is the persistence boundary for tasks. *TaskRepo is the production
// implementation.
type Store interface {
	Insert(ctx context.Context, t *Task) (*Task, error)
	GetByID(ctx context.Context, id int64) (*Task, error)
	CountBackdated(ctx context.Context, createdBy int64, from, until Day) (int, error)
	UpdateAtomic(ctx context.Context, id int64, mutate func(*Task) error) (*Task, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q ListQuery) ([]*Task, error)
}

// Directory resolves users and reporting lines. *user.UserService is the
// production implementation.
type Directory interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
	ReportsOf(ctx context.Context, managerID int64) ([]*user.User, error)
	TeamOf(ctx context.Context, leadID int64) ([]*user.User, error)
}

// Projects resolves project display data for report exports.
type Projects interface {
	GetByID(ctx context.Context, id int64) (*project.Project, error)
}

// BackdatedNotice carries everything the dispatcher needs to tell a manager
// about a backdated submission.
type BackdatedNotice struct {
	ManagerName  string
	ManagerEmail string
	EmployeeName string
	TaskDate     string
	TaskTitle    string
	TaskDetails  string
}

// Notifier delivers backdated-task notices. Delivery is best effort; the
// lifecycle never depends on it.
type Notifier interface {
	NotifyBackdatedTask(ctx context.Context, n BackdatedNotice) error
}

// TaskService is the task lifecycle engine: creation rules, the status state
// machine, edit/delete authorization and role-scoped visibility.
type TaskService struct {
	store     Store
	directory Directory
	projects  Projects
	notifier  Notifier

	now func() time.Time
}

// NewTaskService constructs a new TaskService. notifier may be nil when no
// dispatcher is configured.
func NewTaskService(store Store, directory Directory, projects Projects, notifier Notifier) *TaskService {
	return &TaskService{
		store:     store,
		directory: directory,
		projects:  projects,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Create logs a task for req.UserID on behalf of actor. A task dated today
// starts In Progress; anything else is backdated and starts To Be Approved,
// subject to the monthly quota for Employee/TeamLead owners. On success a
// backdated submission notifies the owner's reporting manager asynchronously.
func (s *TaskService) Create(ctx context.Context, req *CreateTaskRequest, actor *user.User) (*Task, error) {
	owner, err := s.directory.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if !req.TaskType.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTaskType, req.TaskType)
	}
	if req.ReviewerID != nil && *req.ReviewerID == req.UserID {
		return nil, ErrReviewerIsOwner
	}

	today := DayOf(s.now())
	isBackdated := !req.Date.SameDay(today)

	if isBackdated && quotaApplies(owner.Role) {
		firstOfMonth := NewDay(today.Year(), today.Month(), 1)
		count, err := s.store.CountBackdated(ctx, owner.ID, firstOfMonth, today)
		if err != nil {
			return nil, err
		}
		if count >= backdatedMonthlyLimit {
			return nil, ErrBackdatedQuota
		}
	}

	start := req.StartTime.UTC()
	var end *time.Time
	if req.EndTime != nil {
		e := req.EndTime.UTC()
		if e.Before(start) {
			return nil, ErrEndBeforeStart
		}
		end = &e
	}

	status := StatusInProgress
	if isBackdated {
		status = StatusToBeApproved
	}

	t := &Task{
		UserID:      owner.ID,
		CreatedBy:   actor.ID,
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Details:     req.Details,
		Date:        req.Date,
		StartTime:   start,
		EndTime:     end,
		TaskType:    req.TaskType,
		Status:      status,
		ReviewerID:  req.ReviewerID,
		IsBackdated: isBackdated,
		IsApproved:  false,
	}
	if end != nil {
		minutes := roundMinutes(end.Sub(start))
		t.TotalTimeMinutes = &minutes
	}

	created, err := s.store.Insert(ctx, t)
	if err != nil {
		return nil, err
	}

	if isBackdated && quotaApplies(owner.Role) {
		s.notifyManager(ctx, owner, created)
	}

	return created, nil
}

// Complete moves an In Progress task to Done. The end time defaults to now
// and must not precede the stored start time.
func (s *TaskService) Complete(ctx context.Context, id int64, endTime *time.Time) (*Task, error) {
	end := s.now().UTC()
	if endTime != nil {
		end = endTime.UTC()
	}

	return s.store.UpdateAtomic(ctx, id, func(t *Task) error {
		if t.Status != StatusInProgress {
			return fmt.Errorf("%w: only 'In Progress' tasks can be completed", ErrInvalidTransition)
		}
		if end.Before(t.StartTime) {
			return ErrEndBeforeStart
		}

		t.EndTime = &end
		t.Status = StatusDone
		minutes := roundMinutes(end.Sub(t.StartTime))
		t.TotalTimeMinutes = &minutes
		return nil
	})
}

// Approve moves a To Be Approved task to Approved.
func (s *TaskService) Approve(ctx context.Context, id int64) (*Task, error) {
	return s.store.UpdateAtomic(ctx, id, func(t *Task) error {
		if t.Status != StatusToBeApproved {
			return fmt.Errorf("%w: only 'To Be Approved' tasks can be approved", ErrInvalidTransition)
		}

		t.Status = StatusApproved
		t.IsApproved = true
		return nil
	})
}

// Edit applies a partial update. Employees and team leads may not edit at
// all; the start time can only change on backdated tasks and is dropped
// otherwise; the reviewer must not be the owner; the resulting time pair must
// stay ordered.
func (s *TaskService) Edit(ctx context.Context, id int64, req *UpdateTaskRequest, actor *user.User) (*Task, error) {
	return s.store.UpdateAtomic(ctx, id, func(t *Task) error {
		if actor.Role == user.RoleEmployee || actor.Role == user.RoleTeamLead {
			return ErrEditForbidden
		}

		startTime := req.StartTime
		if !t.IsBackdated {
			startTime = nil
		}

		if req.ReviewerID != nil && *req.ReviewerID == t.UserID {
			return ErrReviewerIsOwner
		}
		if req.TaskType != nil && !req.TaskType.Valid() {
			return fmt.Errorf("%w: %s", ErrInvalidTaskType, *req.TaskType)
		}

		if req.ProjectID != nil {
			t.ProjectID = *req.ProjectID
		}
		if req.Title != nil {
			t.Title = *req.Title
		}
		if req.Details != nil {
			t.Details = *req.Details
		}
		if req.Date != nil {
			t.Date = *req.Date
		}
		if req.TaskType != nil {
			t.TaskType = *req.TaskType
		}
		if req.ReviewerID != nil {
			t.ReviewerID = req.ReviewerID
		}
		if startTime != nil {
			t.StartTime = startTime.UTC()
		}
		if req.EndTime != nil {
			e := req.EndTime.UTC()
			t.EndTime = &e
		}

		if t.EndTime != nil {
			if t.EndTime.Before(t.StartTime) {
				return ErrEndBeforeStart
			}
			minutes := roundMinutes(t.EndTime.Sub(t.StartTime))
			t.TotalTimeMinutes = &minutes
		}
		return nil
	})
}

// Delete removes a task. Only its creator may do so, regardless of role.
func (s *TaskService) Delete(ctx context.Context, id int64, actor *user.User) error {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if t.CreatedBy != actor.ID {
		return ErrDeleteForbidden
	}

	return s.store.Delete(ctx, id)
}

// List returns the page of tasks the actor may see: their role-based scope
// composed with the explicit filters, newest start time first.
func (s *TaskService) List(ctx context.Context, f TaskFilter, actor *user.User, page, pageSize int) ([]*Task, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	ownerIn, err := s.scopeOwnerIDs(ctx, actor)
	if err != nil {
		return nil, err
	}

	return s.store.List(ctx, ListQuery{
		Filter:  f,
		OwnerIn: ownerIn,
		Offset:  (page - 1) * pageSize,
		Limit:   pageSize,
	})
}

// PendingApprovals lists backdated tasks awaiting approval within the actor's
// visibility scope.
func (s *TaskService) PendingApprovals(ctx context.Context, actor *user.User, page, pageSize int) ([]*Task, error) {
	pending := StatusToBeApproved
	return s.List(ctx, TaskFilter{Status: &pending, OnlyBackdated: true}, actor, page, pageSize)
}

// Export resolves every task matching the filter within the actor's scope and
// renders report rows with display names and timestamps in the requested
// timezone (UTC when absent or unknown).
func (s *TaskService) Export(ctx context.Context, f TaskFilter, actor *user.User) ([]ExportRow, error) {
	ownerIn, err := s.scopeOwnerIDs(ctx, actor)
	if err != nil {
		return nil, err
	}

	tasks, err := s.store.List(ctx, ListQuery{Filter: f, OwnerIn: ownerIn})
	if err != nil {
		return nil, err
	}

	loc := time.UTC
	if f.Timezone != "" {
		if l, err := time.LoadLocation(f.Timezone); err == nil {
			loc = l
		}
	}

	userNames := map[int64]string{}
	projectNames := map[int64]string{}

	rows := make([]ExportRow, 0, len(tasks))
	for _, t := range tasks {
		row := ExportRow{
			Date:         t.Date.Format("01-02-2006"),
			User:         s.userName(ctx, userNames, t.UserID),
			Project:      s.projectName(ctx, projectNames, t.ProjectID),
			Title:        t.Title,
			Details:      t.Details,
			StartTime:    formatInZone(&t.StartTime, loc),
			EndTime:      formatInZone(t.EndTime, loc),
			TaskType:     string(t.TaskType),
			Status:       string(t.Status),
			IsBackdated:  boolUpper(t.IsBackdated),
			IsApproved:   boolUpper(t.IsApproved),
			TotalMinutes: t.TotalTimeMinutes,
		}
		if t.ReviewerID != nil {
			row.Reviewer = s.userName(ctx, userNames, *t.ReviewerID)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// scopeOwnerIDs resolves the owner ids visible to the actor. nil means
// unrestricted (Admin/Management).
func (s *TaskService) scopeOwnerIDs(ctx context.Context, actor *user.User) ([]int64, error) {
	switch actor.Role {
	case user.RoleEmployee:
		return []int64{actor.ID}, nil
	case user.RoleTeamLead:
		team, err := s.directory.TeamOf(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		return memberIDs(actor.ID, team), nil
	case user.RoleManager:
		reports, err := s.directory.ReportsOf(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		return memberIDs(actor.ID, reports), nil
	default:
		return nil, nil
	}
}

// notifyManager fires the backdated-task notice without blocking or failing
// the create. Skipped silently when the owner has no manager, the manager has
// no email, or no dispatcher is configured.
func (s *TaskService) notifyManager(ctx context.Context, owner *user.User, t *Task) {
	if s.notifier == nil || owner.ReportingManagerID == nil {
		return
	}

	manager, err := s.directory.GetByID(ctx, *owner.ReportingManagerID)
	if err != nil {
		slog.Warn("Unable to resolve reporting manager for backdated notice",
			slog.Int64("user_id", owner.ID), slog.Any("error", err))
		return
	}
	if manager.Email == nil || *manager.Email == "" {
		return
	}

	notice := BackdatedNotice{
		ManagerName:  manager.Name,
		ManagerEmail: *manager.Email,
		EmployeeName: owner.Name,
		TaskDate:     t.Date.String(),
		TaskTitle:    t.Title,
		TaskDetails:  t.Details,
	}

	go func() {
		if err := s.notifier.NotifyBackdatedTask(context.Background(), notice); err != nil {
			slog.Error("Failed to send backdated task notice",
				slog.String("manager_email", notice.ManagerEmail), slog.Any("error", err))
		}
	}()
}

func (s *TaskService) userName(ctx context.Context, cache map[int64]string, id int64) string {
	if name, ok := cache[id]; ok {
		return name
	}

	name := "Unknown"
	if u, err := s.directory.GetByID(ctx, id); err == nil {
		name = u.Name
	}
	cache[id] = name
	return name
}

func (s *TaskService) projectName(ctx context.Context, cache map[int64]string, id int64) string {
	if name, ok := cache[id]; ok {
		return name
	}

	name := "Unknown"
	if p, err := s.projects.GetByID(ctx, id); err == nil {
		name = p.Name
	}
	cache[id] = name
	return name
}

func quotaApplies(r user.Role) bool {
	return r == user.RoleEmployee || r == user.RoleTeamLead
}

func memberIDs(self int64, members []*user.User) []int64 {
	ids := make([]int64, 0, len(members)+1)
	ids = append(ids, self)
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids
}

func roundMinutes(d time.Duration) float64 {
	return math.Round(d.Minutes()*100) / 100
}

func formatInZone(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format("01-02-2006 15:04:05")
}

func boolUpper(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
