package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fakeUserStore is an in-memory Store mirroring the repo's uniqueness and
// employee-code behavior.
type fakeUserStore struct {
	nextID   int64
	nextCode int64
	users    map[int64]*User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{nextID: 1, nextCode: 1001, users: map[int64]*User{}}
}

func (s *fakeUserStore) Insert(_ context.Context, u *User) (*User, error) {
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return nil, ErrUsernameTaken
		}
		if u.Email != nil && existing.Email != nil && *existing.Email == *u.Email {
			return nil, ErrEmailTaken
		}
	}

	cp := *u
	cp.ID = s.nextID
	cp.EmployeeCode = s.nextCode
	s.nextID++
	s.nextCode++
	s.users[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id int64) (*User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) GetByUsername(_ context.Context, username string) (*User, error) {
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *fakeUserStore) List(_ context.Context, f ListUsersFilter) ([]*User, error) {
	var out []*User
	for _, u := range s.users {
		if f.Role != nil && u.Role != *f.Role {
			continue
		}
		if f.Active != nil && u.IsActive != *f.Active {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeUserStore) ListByManager(_ context.Context, managerID int64) ([]*User, error) {
	var out []*User
	for _, u := range s.users {
		if u.ReportingManagerID != nil && *u.ReportingManagerID == managerID && u.IsActive {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeUserStore) ListByTeamLead(_ context.Context, leadID int64) ([]*User, error) {
	var out []*User
	for _, u := range s.users {
		if u.TeamLeadID != nil && *u.TeamLeadID == leadID && u.IsActive {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeUserStore) Update(_ context.Context, id int64, req *UpdateUserRequest) (*User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Username != nil {
		u.Username = *req.Username
	}
	if req.Email != nil {
		u.Email = req.Email
	}
	if req.Password != nil {
		u.PasswordHash = *req.Password
	}
	if req.Department != nil {
		u.Department = *req.Department
	}
	if req.Role != nil {
		u.Role = *req.Role
	}
	if req.ReportingManagerID != nil {
		u.ReportingManagerID = req.ReportingManagerID
	}
	if req.TeamLeadID != nil {
		u.TeamLeadID = req.TeamLeadID
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}

	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) Delete(_ context.Context, id int64) error {
	if _, ok := s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func ptr[T any](v T) *T { return &v }

func createUser(t *testing.T, svc *UserService, username string, role Role) *User {
	t.Helper()
	created, err := svc.Create(context.Background(), &CreateUserRequest{
		Name:     "Test " + username,
		Username: username,
		Password: "secret123",
		Role:     role,
	})
	require.NoError(t, err)
	return created
}

func TestCreateAssignsSequentialEmployeeCodes(t *testing.T) {
	svc := NewUserService(newFakeUserStore())

	first := createUser(t, svc, "anita", RoleEmployee)
	second := createUser(t, svc, "vijay", RoleEmployee)

	assert.Equal(t, int64(1001), first.EmployeeCode)
	assert.Equal(t, int64(1002), second.EmployeeCode)
}

func TestCreateHashesPassword(t *testing.T) {
	svc := NewUserService(newFakeUserStore())

	created := createUser(t, svc, "anita", RoleEmployee)

	assert.NotEqual(t, "secret123", created.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("secret123")))
}

func TestCreateRejectsDuplicateUsername(t *testing.T) {
	svc := NewUserService(newFakeUserStore())
	createUser(t, svc, "anita", RoleEmployee)

	_, err := svc.Create(context.Background(), &CreateUserRequest{
		Name: "Another", Username: "anita", Password: "pw", Role: RoleEmployee,
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestCreateRejectsInvalidRole(t *testing.T) {
	svc := NewUserService(newFakeUserStore())

	_, err := svc.Create(context.Background(), &CreateUserRequest{
		Name: "Test", Username: "anita", Password: "pw", Role: "Intern",
	})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestAuthenticate(t *testing.T) {
	svc := NewUserService(newFakeUserStore())
	createUser(t, svc, "anita", RoleEmployee)

	u, err := svc.Authenticate(context.Background(), "anita", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "anita", u.Username)

	_, err = svc.Authenticate(context.Background(), "anita", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateRejectsSelfReference(t *testing.T) {
	svc := NewUserService(newFakeUserStore())
	created := createUser(t, svc, "anita", RoleEmployee)

	_, err := svc.Update(context.Background(), created.ID, &UpdateUserRequest{
		ReportingManagerID: &created.ID,
	})
	assert.ErrorIs(t, err, ErrSelfReference)

	_, err = svc.Update(context.Background(), created.ID, &UpdateUserRequest{
		TeamLeadID: &created.ID,
	})
	assert.ErrorIs(t, err, ErrSelfReference)
}

func TestUpdateRehashesPassword(t *testing.T) {
	svc := NewUserService(newFakeUserStore())
	created := createUser(t, svc, "anita", RoleEmployee)

	updated, err := svc.Update(context.Background(), created.ID, &UpdateUserRequest{
		Password: ptr("newsecret"),
	})
	require.NoError(t, err)

	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("newsecret")))
}

func TestUpdateRejectsTakenUsername(t *testing.T) {
	svc := NewUserService(newFakeUserStore())
	createUser(t, svc, "anita", RoleEmployee)
	second := createUser(t, svc, "vijay", RoleEmployee)

	_, err := svc.Update(context.Background(), second.ID, &UpdateUserRequest{
		Username: ptr("anita"),
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestVisibleToScopesByRole(t *testing.T) {
	svc := NewUserService(newFakeUserStore())
	ctx := context.Background()

	manager := createUser(t, svc, "meera", RoleManager)
	lead := createUser(t, svc, "kiran", RoleTeamLead)
	emp1 := createUser(t, svc, "arun", RoleEmployee)
	emp2 := createUser(t, svc, "divya", RoleEmployee)
	management := createUser(t, svc, "suresh", RoleManagement)

	for _, id := range []int64{lead.ID, emp1.ID, emp2.ID} {
		_, err := svc.Update(ctx, id, &UpdateUserRequest{ReportingManagerID: &manager.ID})
		require.NoError(t, err)
	}
	for _, id := range []int64{emp1.ID, emp2.ID} {
		_, err := svc.Update(ctx, id, &UpdateUserRequest{TeamLeadID: &lead.ID})
		require.NoError(t, err)
	}

	visible, err := svc.VisibleTo(ctx, emp1)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, emp1.ID, visible[0].ID)

	visible, err = svc.VisibleTo(ctx, lead)
	require.NoError(t, err)
	assert.Len(t, visible, 3) // lead plus two team members

	visible, err = svc.VisibleTo(ctx, manager)
	require.NoError(t, err)
	assert.Len(t, visible, 4) // manager plus three reports

	visible, err = svc.VisibleTo(ctx, management)
	require.NoError(t, err)
	assert.Len(t, visible, 5)
}
