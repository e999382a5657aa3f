package task

import (
	"database/sql/driver"
	"fmt"
	"time"
)

type Status string

const (
	StatusToBeApproved Status = "To Be Approved"
	StatusInProgress   Status = "In Progress"
	StatusApproved     Status = "Approved"
	StatusDone         Status = "Done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusToBeApproved, StatusInProgress, StatusApproved, StatusDone:
		return true
	}
	return false
}

type Type string

const (
	TypeDevelopment         Type = "Development"
	TypeTesting             Type = "Testing"
	TypeDocumentation       Type = "Documentation"
	TypeReview              Type = "Review"
	TypeCustomerInteraction Type = "Customer Interaction"
	TypeInternalDiscussion  Type = "Internal Discussion"
	TypeDeployment          Type = "Deployment"
	TypeBreak               Type = "Break"
)

func (t Type) Valid() bool {
	switch t {
	case TypeDevelopment, TypeTesting, TypeDocumentation, TypeReview,
		TypeCustomerInteraction, TypeInternalDiscussion, TypeDeployment, TypeBreak:
		return true
	}
	return false
}

const dayLayout = "2006-01-02"

// Day is a calendar day. It marshals as YYYY-MM-DD and maps to a DATE column.
type Day struct {
	time.Time
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DayOf(t time.Time) Day {
	y, m, d := t.UTC().Date()
	return NewDay(y, m, d)
}

func (d Day) SameDay(o Day) bool {
	y1, m1, d1 := d.Date()
	y2, m2, d2 := o.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (d Day) Before(o Day) bool {
	return d.Time.Before(o.Time)
}

func (d Day) String() string {
	return d.Format(dayLayout)
}

func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dayLayout) + `"`), nil
}

func (d *Day) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	t, err := time.ParseInLocation(dayLayout, s[1:len(s)-1], time.UTC)
	if err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	d.Time = t
	return nil
}

func (d Day) Value() (driver.Value, error) {
	return d.Time, nil
}

func (d *Day) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		y, m, dd := v.Date()
		d.Time = time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into Day", src)
	}
}

func (d *Day) scanString(s string) error {
	t, err := time.ParseInLocation(dayLayout, s, time.UTC)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

type Task struct {
	ID               int64      `db:"id" json:"id"`
	UserID           int64      `db:"user_id" json:"user_id"`
	CreatedBy        int64      `db:"created_by" json:"created_by"`
	ProjectID        int64      `db:"project_id" json:"project_id"`
	Title            string     `db:"title" json:"title"`
	Details          string     `db:"details" json:"details"`
	Date             Day        `db:"date" json:"date"`
	StartTime        time.Time  `db:"start_time" json:"start_time"`
	EndTime          *time.Time `db:"end_time" json:"end_time,omitempty"`
	TotalTimeMinutes *float64   `db:"total_time_minutes" json:"total_time_minutes,omitempty"`
	TaskType         Type       `db:"task_type" json:"task_type"`
	Status           Status     `db:"status" json:"status"`
	ReviewerID       *int64     `db:"reviewer_id" json:"reviewer_id,omitempty"`
	IsBackdated      bool       `db:"is_backdated" json:"is_backdated"`
	IsApproved       bool       `db:"is_approved" json:"is_approved"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// CreateTaskRequest captures payload for logging a task. UserID is the owner
// the work belongs to; the creator is the acting user and may differ.
type CreateTaskRequest struct {
	UserID     int64      `json:"user_id"`
	ProjectID  int64      `json:"project_id"`
	Title      string     `json:"title"`
	Details    string     `json:"details"`
	Date       Day        `json:"date"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	TaskType   Type       `json:"task_type"`
	ReviewerID *int64     `json:"reviewer_id,omitempty"`
}

// UpdateTaskRequest captures a partial update; nil fields are left untouched.
type UpdateTaskRequest struct {
	ProjectID  *int64     `json:"project_id,omitempty"`
	Title      *string    `json:"title,omitempty"`
	Details    *string    `json:"details,omitempty"`
	Date       *Day       `json:"date,omitempty"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	TaskType   *Type      `json:"task_type,omitempty"`
	ReviewerID *int64     `json:"reviewer_id,omitempty"`
}

// Backdated creator relations for filtering: tasks the owner logged themself
// versus tasks somebody logged on the owner's behalf.
const (
	BackdatedCreatorOwn     = "own"
	BackdatedCreatorManager = "manager"
)

// TaskFilter is the caller-supplied filter set for list and export calls.
type TaskFilter struct {
	UserID           *int64  `json:"user_id,omitempty"`
	ProjectID        *int64  `json:"project_id,omitempty"`
	TaskType         *Type   `json:"task_type,omitempty"`
	Status           *Status `json:"status,omitempty"`
	FromDate         *Day    `json:"from_date,omitempty"`
	ToDate           *Day    `json:"to_date,omitempty"`
	Search           string  `json:"search,omitempty"`
	OnlyBackdated    bool    `json:"only_backdated,omitempty"`
	BackdatedCreator string  `json:"backdated_creator,omitempty"`
	Timezone         string  `json:"timezone,omitempty"`
}

// ListQuery is the fully resolved query handed to the store: the caller's
// filter composed with the role-based visibility scope. OwnerIn nil means
// unrestricted; Limit 0 means no pagination.
type ListQuery struct {
	Filter  TaskFilter
	OwnerIn []int64
	Offset  int
	Limit   int
}

// ExportRow is one rendered line of the downloadable task report.
type ExportRow struct {
	Date         string
	User         string
	Project      string
	Title        string
	Details      string
	StartTime    string
	EndTime      string
	TaskType     string
	Reviewer     string
	Status       string
	IsBackdated  string
	IsApproved   string
	TotalMinutes *float64
}
