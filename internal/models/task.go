package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/yukikurage/teamsync-api/internal/constants"
)

type TaskStatus string

const (
	TaskStatusPlanning   TaskStatus = "planning"
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// IsValid reports whether the status is one of the recognized values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPlanning, TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityUrgent TaskPriority = "urgent"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityLow    TaskPriority = "low"
)

// IsValid reports whether the priority is one of the recognized values.
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityUrgent, TaskPriorityHigh, TaskPriorityMedium, TaskPriorityLow:
		return true
	}
	return false
}

// Rank returns the sort weight of a priority: urgent=4 .. low=1.
// Unknown priorities rank below low.
func (p TaskPriority) Rank() int {
	switch p {
	case TaskPriorityUrgent:
		return 4
	case TaskPriorityHigh:
		return 3
	case TaskPriorityMedium:
		return 2
	case TaskPriorityLow:
		return 1
	}
	return 0
}

type OverdueFlag string

const (
	OverdueFlagNormal  OverdueFlag = "normal"
	OverdueFlagOverdue OverdueFlag = "overdue"
)

// Task is a node in the three-level task hierarchy. The ancestor chain is
// stored as a materialized path of ancestor IDs ("" for main tasks,
// "9" for their children, "9/12" for grandchildren).
type Task struct {
	ID          uint64       `gorm:"primarykey" json:"id"`
	ProjectID   uint64       `gorm:"not null;index:idx_tasks_project_level" json:"project_id"`
	Title       string       `gorm:"type:varchar(200);not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	Status      TaskStatus   `gorm:"type:varchar(20);not null;default:'planning';index" json:"status"`
	Priority    TaskPriority `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`

	// Hierarchy
	Level    int     `gorm:"not null;default:1;index:idx_tasks_project_level" json:"level"`
	ParentID *uint64 `json:"parent_id"`
	Path     string  `gorm:"type:varchar(255);not null;default:'';index" json:"path"`

	AssigneeID  *uint64 `gorm:"index" json:"assignee_id"`
	CreatedByID *uint64 `json:"created_by_id"`

	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `gorm:"index" json:"end_date"`

	// Overdue tracking; flipping the flag doubles as the once-only
	// notification guard for the daily sweep
	NormalFlag OverdueFlag `gorm:"type:varchar(20);not null;default:'normal';index" json:"normal_flag"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Project     Project          `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Parent      *Task            `gorm:"foreignKey:ParentID" json:"-"`
	Children    []Task           `gorm:"foreignKey:ParentID" json:"children,omitempty"`
	Assignee    *User            `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	CreatedBy   *User            `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	Attachments []TaskAttachment `gorm:"foreignKey:TaskID" json:"attachments,omitempty"`
	Histories   []TaskHistory    `gorm:"foreignKey:TaskID" json:"-"`
}

// FullPath is the canonical subtree prefix: path + "/" + id, or the bare
// id when the path is empty. It is always derived, never persisted.
func (t *Task) FullPath() string {
	id := strconv.FormatUint(t.ID, 10)
	if t.Path == "" {
		return id
	}
	return t.Path + constants.PathSeparator + id
}

// AncestorIDs parses the materialized path into ancestor IDs ordered
// root-to-parent. Empty for main tasks.
func (t *Task) AncestorIDs() []uint64 {
	if t.Path == "" {
		return nil
	}
	parts := strings.Split(strings.Trim(t.Path, constants.PathSeparator), constants.PathSeparator)
	ids := make([]uint64, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// CanHaveSubtasks reports whether the depth cap still allows children.
func (t *Task) CanHaveSubtasks() bool {
	return t.Level < constants.MaxTaskLevel
}

// IsOverdueAt is the overdue predicate: not completed, has an end date,
// and the end date's day is before now's day. Compares date parts only.
func (t *Task) IsOverdueAt(now time.Time) bool {
	if t.Status == TaskStatusCompleted || t.EndDate == nil {
		return false
	}
	end := t.EndDate
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return endDay.Before(nowDay)
}
