package task

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curaious/chrono/internal/services/project"
	"github.com/curaious/chrono/internal/services/user"
)

// fakeStore is an in-memory Store for exercising the lifecycle engine without
// a database. List mirrors the repo's filter semantics.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]*Task
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, tasks: map[int64]*Task{}}
}

func (s *fakeStore) Insert(_ context.Context, t *Task) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	cp.ID = s.nextID
	s.nextID++
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	s.tasks[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (s *fakeStore) GetByID(_ context.Context, id int64) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *fakeStore) CountBackdated(_ context.Context, createdBy int64, from, until Day) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, t := range s.tasks {
		if t.CreatedBy == createdBy && t.IsBackdated &&
			!t.Date.Before(from) && t.Date.Before(until) {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) UpdateAtomic(_ context.Context, id int64, mutate func(*Task) error) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}

	cp := *t
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	cp.UpdatedAt = time.Now()
	s.tasks[id] = &cp

	out := cp
	return &out, nil
}

func (s *fakeStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *fakeStore) List(_ context.Context, q ListQuery) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Task
	for _, t := range s.tasks {
		if !matches(t, q) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })

	if q.Limit > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
		if len(out) > q.Limit {
			out = out[:q.Limit]
		}
	}
	return out, nil
}

func matches(t *Task, q ListQuery) bool {
	if q.OwnerIn != nil {
		found := false
		for _, id := range q.OwnerIn {
			if t.UserID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	f := q.Filter
	if f.UserID != nil && t.UserID != *f.UserID {
		return false
	}
	if f.ProjectID != nil && t.ProjectID != *f.ProjectID {
		return false
	}
	if f.TaskType != nil && t.TaskType != *f.TaskType {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.OnlyBackdated {
		if !t.IsBackdated {
			return false
		}
		switch f.BackdatedCreator {
		case BackdatedCreatorOwn:
			if t.UserID != t.CreatedBy {
				return false
			}
		case BackdatedCreatorManager:
			if t.UserID == t.CreatedBy {
				return false
			}
		}
	} else if t.IsBackdated && !t.IsApproved {
		return false
	}
	return true
}

// fakeDirectory serves a fixed user set with reporting lines.
type fakeDirectory struct {
	users map[int64]*user.User
}

func (d *fakeDirectory) GetByID(_ context.Context, id int64) (*user.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

func (d *fakeDirectory) ReportsOf(_ context.Context, managerID int64) ([]*user.User, error) {
	var out []*user.User
	for _, u := range d.users {
		if u.ReportingManagerID != nil && *u.ReportingManagerID == managerID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *fakeDirectory) TeamOf(_ context.Context, leadID int64) ([]*user.User, error) {
	var out []*user.User
	for _, u := range d.users {
		if u.TeamLeadID != nil && *u.TeamLeadID == leadID {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeProjects struct {
	projects map[int64]*project.Project
}

func (p *fakeProjects) GetByID(_ context.Context, id int64) (*project.Project, error) {
	pr, ok := p.projects[id]
	if !ok {
		return nil, project.ErrProjectNotFound
	}
	return pr, nil
}

// fakeNotifier records notices on a channel so tests can wait for the
// fire-and-forget dispatch.
type fakeNotifier struct {
	notices chan BackdatedNotice
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{notices: make(chan BackdatedNotice, 10)}
}

func (n *fakeNotifier) NotifyBackdatedTask(_ context.Context, notice BackdatedNotice) error {
	n.notices <- notice
	return nil
}

func (n *fakeNotifier) wait(t *testing.T) BackdatedNotice {
	t.Helper()
	select {
	case notice := <-n.notices:
		return notice
	case <-time.After(2 * time.Second):
		t.Fatal("expected a backdated notice, got none")
		return BackdatedNotice{}
	}
}

func (n *fakeNotifier) assertNone(t *testing.T) {
	t.Helper()
	select {
	case notice := <-n.notices:
		t.Fatalf("expected no notice, got one for %s", notice.ManagerEmail)
	case <-time.After(50 * time.Millisecond):
	}
}

var testNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newTestService() (*TaskService, *fakeStore, *fakeNotifier) {
	managerEmail := "meera@example.com"
	dir := &fakeDirectory{users: map[int64]*user.User{
		1: {ID: 1, Name: "Meera Nair", Username: "meera", Email: &managerEmail, Role: user.RoleManager, IsActive: true},
		2: {ID: 2, Name: "Arun Pillai", Username: "arun", Role: user.RoleEmployee, ReportingManagerID: ptr(int64(1)), TeamLeadID: ptr(int64(4)), IsActive: true},
		3: {ID: 3, Name: "Divya Menon", Username: "divya", Role: user.RoleEmployee, ReportingManagerID: ptr(int64(1)), TeamLeadID: ptr(int64(4)), IsActive: true},
		4: {ID: 4, Name: "Kiran Das", Username: "kiran", Role: user.RoleTeamLead, ReportingManagerID: ptr(int64(1)), IsActive: true},
		5: {ID: 5, Name: "Suresh Iyer", Username: "suresh", Role: user.RoleManagement, IsActive: true},
	}}
	projects := &fakeProjects{projects: map[int64]*project.Project{
		10: {ID: 10, Name: "Billing Revamp", IsActive: true},
	}}

	store := newFakeStore()
	notifier := newFakeNotifier()
	svc := NewTaskService(store, dir, projects, notifier)
	svc.now = func() time.Time { return testNow }

	return svc, store, notifier
}

func createReq(userID int64, date Day) *CreateTaskRequest {
	return &CreateTaskRequest{
		UserID:    userID,
		ProjectID: 10,
		Title:     "Invoice reconciliation",
		Details:   "Matched ledger entries",
		Date:      date,
		StartTime: date.Time.Add(9 * time.Hour),
		TaskType:  TypeDevelopment,
	}
}

func TestCreateTodayStartsInProgress(t *testing.T) {
	svc, _, notifier := newTestService()
	actor, _ := svc.directory.GetByID(context.Background(), 2)

	created, err := svc.Create(context.Background(), createReq(2, DayOf(testNow)), actor)
	require.NoError(t, err)

	assert.Equal(t, StatusInProgress, created.Status)
	assert.False(t, created.IsBackdated)
	assert.False(t, created.IsApproved)
	assert.Nil(t, created.TotalTimeMinutes)
	notifier.assertNone(t)
}

func TestCreateBackdatedNeedsApprovalAndNotifies(t *testing.T) {
	svc, _, notifier := newTestService()
	actor, _ := svc.directory.GetByID(context.Background(), 2)

	yesterday := DayOf(testNow.AddDate(0, 0, -1))
	created, err := svc.Create(context.Background(), createReq(2, yesterday), actor)
	require.NoError(t, err)

	assert.Equal(t, StatusToBeApproved, created.Status)
	assert.True(t, created.IsBackdated)

	notice := notifier.wait(t)
	assert.Equal(t, "meera@example.com", notice.ManagerEmail)
	assert.Equal(t, "Arun Pillai", notice.EmployeeName)
	assert.Equal(t, yesterday.String(), notice.TaskDate)
}

func TestBackdatedQuotaCapsEmployees(t *testing.T) {
	svc, _, _ := newTestService()
	actor, _ := svc.directory.GetByID(context.Background(), 2)

	for i := 1; i <= 5; i++ {
		day := DayOf(testNow.AddDate(0, 0, -i))
		_, err := svc.Create(context.Background(), createReq(2, day), actor)
		require.NoError(t, err)
	}

	_, err := svc.Create(context.Background(), createReq(2, DayOf(testNow.AddDate(0, 0, -6))), actor)
	assert.ErrorIs(t, err, ErrBackdatedQuota)
}

func TestBackdatedQuotaIgnoresOtherMonths(t *testing.T) {
	svc, store, _ := newTestService()
	actor, _ := svc.directory.GetByID(context.Background(), 2)

	// Five backdated tasks last month should not count against this month.
	for i := 0; i < 5; i++ {
		lastMonth := DayOf(testNow.AddDate(0, -1, -i))
		_, err := store.Insert(context.Background(), &Task{
			UserID: 2, CreatedBy: 2, ProjectID: 10, Title: "old", Date: lastMonth,
			StartTime: lastMonth.Time, TaskType: TypeDevelopment,
			Status: StatusToBeApproved, IsBackdated: true,
		})
		require.NoError(t, err)
	}

	_, err := svc.Create(context.Background(), createReq(2, DayOf(testNow.AddDate(0, 0, -1))), actor)
	assert.NoError(t, err)
}

func TestBackdatedQuotaExemptsManagers(t *testing.T) {
	svc, _, _ := newTestService()
	manager, _ := svc.directory.GetByID(context.Background(), 1)

	for i := 1; i <= 7; i++ {
		day := DayOf(testNow.AddDate(0, 0, -i))
		_, err := svc.Create(context.Background(), createReq(1, day), manager)
		require.NoError(t, err)
	}
}

func TestCreateRejectsOwnerAsReviewer(t *testing.T) {
	svc, store, notifier := newTestService()
	actor, _ := svc.directory.GetByID(context.Background(), 2)

	req := createReq(2, DayOf(testNow.AddDate(0, 0, -1)))
	req.ReviewerID = ptr(int64(2))

	_, err := svc.Create(context.Background(), req, actor)
	assert.ErrorIs(t, err, ErrReviewerIsOwner)
	assert.Empty(t, store.tasks)
	notifier.assertNone(t)
}

func TestCreateRejectsUnknownOwner(t *testing.T) {
	svc, _, _ := newTestService()
	actor, _ := svc.directory.GetByID(context.Background(), 2)

	_, err := svc.Create(context.Background(), createReq(99, DayOf(testNow)), actor)
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestCreateRejectsInvalidType(t *testing.T) {
	svc, _, _ := newTestService()
	actor, _ := svc.directory.GetByID(context.Background(), 2)

	req := createReq(2, DayOf(testNow))
	req.TaskType = "Gardening"

	_, err := svc.Create(context.Background(), req, actor)
	assert.ErrorIs(t, err, ErrInvalidTaskType)
}

func TestCompleteComputesTotalMinutes(t *testing.T) {
	svc, _, _ := newTestService()
	actor, _ := svc.directory.GetByID(context.Background(), 2)

	req := createReq(2, DayOf(testNow))
	req.StartTime = testNow
	created, err := svc.Create(context.Background(), req, actor)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, created.Status)

	end := testNow.Add(90 * time.Minute)
	done, err := svc.Complete(context.Background(), created.ID, &end)
	require.NoError(t, err)

	assert.Equal(t, StatusDone, done.Status)
	require.NotNil(t, done.TotalTimeMinutes)
	assert.Equal(t, 90.0, *done.TotalTimeMinutes)
}

func TestCompleteRejectsEndBeforeStart(t *testing.T) {
	svc, _, _ := newTestService()
	actor, _ := svc.directory.GetByID(context.Background(), 2)

	req := createReq(2, DayOf(testNow))
	req.StartTime = testNow
	created, err := svc.Create(context.Background(), req, actor)
	require.NoError(t, err)

	end := testNow.Add(-time.Minute)
	_, err = svc.Complete(context.Background(), created.ID, &end)
	assert.ErrorIs(t, err, ErrEndBeforeStart)
}

func TestCompleteGuardsStatus(t *testing.T) {
	svc, _, _ := newTestService()
	actor, _ := svc.directory.GetByID(context.Background(), 2)

	created, err := svc.Create(context.Background(), createReq(2, DayOf(testNow.AddDate(0, 0, -1))), actor)
	require.NoError(t, err)
	require.Equal(t, StatusToBeApproved, created.Status)

	_, err = svc.Complete(context.Background(), created.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteUnknownTask(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Complete(context.Background(), 404, nil)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestApproveBackdatedTask(t *testing.T) {
	svc, _, _ := newTestService()
	actor, _ := svc.directory.GetByID(context.Background(), 2)

	created, err := svc.Create(context.Background(), createReq(2, DayOf(testNow.AddDate(0, 0, -1))), actor)
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), created.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, approved.Status)
	assert.True(t, approved.IsApproved)

	// A second approval hits the state guard.
	_, err = svc.Approve(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApproveGuardsStatus(t *testing.T) {
	svc, _, _ := newTestService()
	actor, _ := svc.directory.GetByID(context.Background(), 2)

	created, err := svc.Create(context.Background(), createReq(2, DayOf(testNow)), actor)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, created.Status)

	_, err = svc.Approve(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestEditForbiddenForEmployeeAndTeamLead(t *testing.T) {
	svc, _, _ := newTestService()
	manager, _ := svc.directory.GetByID(context.Background(), 1)

	created, err := svc.Create(context.Background(), createReq(2, DayOf(testNow)), manager)
	require.NoError(t, err)

	for _, actorID := range []int64{2, 4} {
		actor, _ := svc.directory.GetByID(context.Background(), actorID)
		_, err = svc.Edit(context.Background(), created.ID, &UpdateTaskRequest{Title: ptr("renamed")}, actor)
		assert.ErrorIs(t, err, ErrEditForbidden)
	}
}

func TestEditDropsStartTimeForNonBackdated(t *testing.T) {
	svc, _, _ := newTestService()
	manager, _ := svc.directory.GetByID(context.Background(), 1)

	req := createReq(2, DayOf(testNow))
	req.StartTime = testNow
	created, err := svc.Create(context.Background(), req, manager)
	require.NoError(t, err)
	require.False(t, created.IsBackdated)

	moved := testNow.Add(-3 * time.Hour)
	updated, err := svc.Edit(context.Background(), created.ID, &UpdateTaskRequest{
		Title:     ptr("renamed"),
		StartTime: &moved,
	}, manager)
	require.NoError(t, err)

	assert.Equal(t, "renamed", updated.Title)
	assert.True(t, updated.StartTime.Equal(testNow), "start time must not move on a non-backdated task")
}

func TestEditMovesStartTimeForBackdated(t *testing.T) {
	svc, _, _ := newTestService()
	manager, _ := svc.directory.GetByID(context.Background(), 1)

	yesterday := DayOf(testNow.AddDate(0, 0, -1))
	created, err := svc.Create(context.Background(), createReq(2, yesterday), manager)
	require.NoError(t, err)
	require.True(t, created.IsBackdated)

	moved := yesterday.Time.Add(7 * time.Hour)
	updated, err := svc.Edit(context.Background(), created.ID, &UpdateTaskRequest{StartTime: &moved}, manager)
	require.NoError(t, err)

	assert.True(t, updated.StartTime.Equal(moved))
}

func TestEditRejectsOwnerAsReviewer(t *testing.T) {
	svc, _, _ := newTestService()
	manager, _ := svc.directory.GetByID(context.Background(), 1)

	created, err := svc.Create(context.Background(), createReq(2, DayOf(testNow)), manager)
	require.NoError(t, err)

	_, err = svc.Edit(context.Background(), created.ID, &UpdateTaskRequest{ReviewerID: ptr(int64(2))}, manager)
	assert.ErrorIs(t, err, ErrReviewerIsOwner)
}

func TestEditRecomputesTotalMinutes(t *testing.T) {
	svc, _, _ := newTestService()
	manager, _ := svc.directory.GetByID(context.Background(), 1)

	req := createReq(2, DayOf(testNow))
	req.StartTime = testNow
	req.EndTime = ptr(testNow.Add(time.Hour))
	created, err := svc.Create(context.Background(), req, manager)
	require.NoError(t, err)
	require.NotNil(t, created.TotalTimeMinutes)
	require.Equal(t, 60.0, *created.TotalTimeMinutes)

	updated, err := svc.Edit(context.Background(), created.ID, &UpdateTaskRequest{
		EndTime: ptr(testNow.Add(2 * time.Hour)),
	}, manager)
	require.NoError(t, err)

	require.NotNil(t, updated.TotalTimeMinutes)
	assert.Equal(t, 120.0, *updated.TotalTimeMinutes)
}

func TestDeleteOnlyByCreator(t *testing.T) {
	svc, store, _ := newTestService()
	manager, _ := svc.directory.GetByID(context.Background(), 1)
	owner, _ := svc.directory.GetByID(context.Background(), 2)

	created, err := svc.Create(context.Background(), createReq(2, DayOf(testNow)), manager)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), created.ID, owner)
	assert.ErrorIs(t, err, ErrDeleteForbidden)

	err = svc.Delete(context.Background(), created.ID, manager)
	require.NoError(t, err)
	assert.Empty(t, store.tasks)
}

func TestListScopesByRole(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	manager, _ := svc.directory.GetByID(ctx, 1)
	arun, _ := svc.directory.GetByID(ctx, 2)
	lead, _ := svc.directory.GetByID(ctx, 4)
	management, _ := svc.directory.GetByID(ctx, 5)

	for _, owner := range []int64{1, 2, 3, 4} {
		_, err := svc.Create(ctx, createReq(owner, DayOf(testNow)), manager)
		require.NoError(t, err)
	}

	own, err := svc.List(ctx, TaskFilter{}, arun, 1, 50)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, int64(2), own[0].UserID)

	team, err := svc.List(ctx, TaskFilter{}, lead, 1, 50)
	require.NoError(t, err)
	assert.Len(t, team, 3) // lead plus two team members

	reports, err := svc.List(ctx, TaskFilter{}, manager, 1, 50)
	require.NoError(t, err)
	assert.Len(t, reports, 4) // manager plus all three reports

	all, err := svc.List(ctx, TaskFilter{}, management, 1, 50)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestListHidesUnapprovedBackdated(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	manager, _ := svc.directory.GetByID(ctx, 1)

	today, err := svc.Create(ctx, createReq(2, DayOf(testNow)), manager)
	require.NoError(t, err)
	backdated, err := svc.Create(ctx, createReq(2, DayOf(testNow.AddDate(0, 0, -1))), manager)
	require.NoError(t, err)

	listed, err := svc.List(ctx, TaskFilter{}, manager, 1, 50)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, today.ID, listed[0].ID)

	// Once approved, the backdated task shows up in normal listings.
	_, err = svc.Approve(ctx, backdated.ID)
	require.NoError(t, err)

	listed, err = svc.List(ctx, TaskFilter{}, manager, 1, 50)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestPendingApprovalsListsScopedBackdated(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	manager, _ := svc.directory.GetByID(ctx, 1)
	arun, _ := svc.directory.GetByID(ctx, 2)

	_, err := svc.Create(ctx, createReq(2, DayOf(testNow.AddDate(0, 0, -1))), manager)
	require.NoError(t, err)
	_, err = svc.Create(ctx, createReq(3, DayOf(testNow.AddDate(0, 0, -2))), manager)
	require.NoError(t, err)

	pending, err := svc.PendingApprovals(ctx, manager, 1, 50)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	// An employee only sees their own pending submissions.
	pending, err = svc.PendingApprovals(ctx, arun, 1, 50)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(2), pending[0].UserID)
}

func TestExportRendersRows(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	manager, _ := svc.directory.GetByID(ctx, 1)

	req := createReq(2, DayOf(testNow))
	req.StartTime = testNow
	req.EndTime = ptr(testNow.Add(30 * time.Minute))
	req.ReviewerID = ptr(int64(4))
	_, err := svc.Create(ctx, req, manager)
	require.NoError(t, err)

	rows, err := svc.Export(ctx, TaskFilter{}, manager)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "06-15-2025", row.Date)
	assert.Equal(t, "Arun Pillai", row.User)
	assert.Equal(t, "Billing Revamp", row.Project)
	assert.Equal(t, "Kiran Das", row.Reviewer)
	assert.Equal(t, "06-15-2025 10:00:00", row.StartTime)
	assert.Equal(t, "06-15-2025 10:30:00", row.EndTime)
	assert.Equal(t, "FALSE", row.IsBackdated)
	require.NotNil(t, row.TotalMinutes)
	assert.Equal(t, 30.0, *row.TotalMinutes)
}

func TestExportHonorsTimezone(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	manager, _ := svc.directory.GetByID(ctx, 1)

	req := createReq(2, DayOf(testNow))
	req.StartTime = testNow
	_, err := svc.Create(ctx, req, manager)
	require.NoError(t, err)

	rows, err := svc.Export(ctx, TaskFilter{Timezone: "Asia/Kolkata"}, manager)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// 10:00 UTC is 15:30 IST.
	assert.Equal(t, "06-15-2025 15:30:00", rows[0].StartTime)
}
