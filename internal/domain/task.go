package domain

import "time"

type TaskType string

const (
	TaskTypeOnSite  TaskType = "on_site"
	TaskTypeOffSite TaskType = "off_site"
)

// ProfileTaskTitle names the on-site task that completes itself once the profile is filled in.
const ProfileTaskTitle = "Complete Your Profile"

type Task struct {
	ID           int64     `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	Points       int64     `db:"points" json:"points"`
	IconURL      string    `db:"icon_url" json:"icon,omitempty"`
	TaskType     TaskType  `db:"task_type" json:"task_type"`
	ExternalLink string    `db:"external_link" json:"external_link,omitempty"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusStarted   TaskStatus = "started"
	TaskStatusCompleted TaskStatus = "completed"
)

// TaskCompletion is the per-(user, task) progress record. AwardedPoints is
// written once, when the task completes.
type TaskCompletion struct {
	UserID        int64      `db:"user_id" json:"user_id"`
	TaskID        int64      `db:"task_id" json:"task_id"`
	Status        TaskStatus `db:"status" json:"status"`
	StartedAt     *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	AwardedPoints int64      `db:"awarded_points" json:"awarded_points"`
}

// AvailableTask is a task together with the caller's progress on it.
type AvailableTask struct {
	Task
	Status TaskStatus `json:"status"`
}
