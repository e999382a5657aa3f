package user

import "time"

type Role string

const (
	RoleAdmin      Role = "Admin"
	RoleEmployee   Role = "Employee"
	RoleTeamLead   Role = "TeamLead"
	RoleManager    Role = "Manager"
	RoleManagement Role = "Management"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEmployee, RoleTeamLead, RoleManager, RoleManagement:
		return true
	}
	return false
}

type User struct {
	ID                 int64     `db:"id" json:"id"`
	EmployeeCode       int64     `db:"employee_code" json:"employee_code"`
	Name               string    `db:"name" json:"name"`
	Username           string    `db:"username" json:"username"`
	Email              *string   `db:"email" json:"email,omitempty"`
	PasswordHash       string    `db:"password_hash" json:"-"`
	Department         string    `db:"department" json:"department"`
	Role               Role      `db:"role" json:"role"`
	ReportingManagerID *int64    `db:"reporting_manager_id" json:"reporting_manager_id,omitempty"`
	TeamLeadID         *int64    `db:"team_lead_id" json:"team_lead_id,omitempty"`
	IsActive           bool      `db:"is_active" json:"is_active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// CreateUserRequest captures payload for creating a user. The employee code is
// assigned by the directory, never by the caller.
type CreateUserRequest struct {
	Name               string  `json:"name"`
	Username           string  `json:"username"`
	Email              *string `json:"email,omitempty"`
	Password           string  `json:"password"`
	Department         string  `json:"department"`
	Role               Role    `json:"role"`
	ReportingManagerID *int64  `json:"reporting_manager_id,omitempty"`
	TeamLeadID         *int64  `json:"team_lead_id,omitempty"`
}

// UpdateUserRequest captures a partial update; nil fields are left untouched.
type UpdateUserRequest struct {
	Name               *string `json:"name,omitempty"`
	Username           *string `json:"username,omitempty"`
	Email              *string `json:"email,omitempty"`
	Password           *string `json:"password,omitempty"`
	Department         *string `json:"department,omitempty"`
	Role               *Role   `json:"role,omitempty"`
	ReportingManagerID *int64  `json:"reporting_manager_id,omitempty"`
	TeamLeadID         *int64  `json:"team_lead_id,omitempty"`
	IsActive           *bool   `json:"is_active,omitempty"`
}

type ListUsersFilter struct {
	Role   *Role `json:"role,omitempty"`
	Active *bool `json:"active,omitempty"`
}
