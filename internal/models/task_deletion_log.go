package models

import (
	"encoding/json"
	"time"
)

// TaskDeletionLog is an immutable snapshot taken right before a task is
// hard-deleted. Everything a reader might need later is denormalized so
// the record stays meaningful after the task, its project or its users
// are gone.
type TaskDeletionLog struct {
	ID uint64 `gorm:"primarykey" json:"id"`

	// Task snapshot
	OriginalTaskID    uint64       `gorm:"not null;index" json:"original_task_id"`
	Title             string       `gorm:"type:varchar(200);not null" json:"title"`
	Description       string       `gorm:"type:text" json:"description"`
	ProjectID         uint64       `gorm:"not null;index:idx_deletion_logs_project_deleted" json:"project_id"`
	ProjectTitle      string       `gorm:"type:varchar(100)" json:"project_title"`
	AssigneeID        *uint64      `json:"assignee_id"`
	AssigneeName      string       `gorm:"type:varchar(150)" json:"assignee_name"`
	Status            TaskStatus   `gorm:"type:varchar(20)" json:"status"`
	Priority          TaskPriority `gorm:"type:varchar(20)" json:"priority"`
	Level             int          `gorm:"not null;default:1" json:"level"`
	ParentID          *uint64      `json:"parent_id"`
	Path              string       `gorm:"type:varchar(255)" json:"path"`
	StartDate         *time.Time   `json:"start_date"`
	EndDate           *time.Time   `json:"end_date"`
	CreatedByID       *uint64      `json:"created_by_id"`
	CreatedByName     string       `gorm:"type:varchar(150)" json:"created_by_name"`
	OriginalCreatedAt *time.Time   `json:"original_created_at"`

	// Deletion info
	DeletedByID    *uint64   `gorm:"index:idx_deletion_logs_deleter_deleted" json:"deleted_by_id"`
	DeletedByName  string    `gorm:"type:varchar(150)" json:"deleted_by_name"`
	DeletedAt      time.Time `gorm:"autoCreateTime;index:idx_deletion_logs_project_deleted;index:idx_deletion_logs_deleter_deleted" json:"deleted_at"`
	DeletionReason string    `gorm:"type:text" json:"deletion_reason"`

	// Full task row as JSON, kept for recovery tooling.
	TaskData string `gorm:"type:json" json:"-"`
}

// NewTaskDeletionLog snapshots a task immediately before deletion. The
// task must carry its Project, Assignee and CreatedBy relations so the
// denormalized names can be captured.
func NewTaskDeletionLog(task *Task, deletedBy *User, reason string) (*TaskDeletionLog, error) {
	raw, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}

	createdAt := task.CreatedAt
	deleterID := deletedBy.ID
	log := &TaskDeletionLog{
		OriginalTaskID:    task.ID,
		Title:             task.Title,
		Description:       task.Description,
		ProjectID:         task.ProjectID,
		ProjectTitle:      task.Project.Title,
		AssigneeID:        task.AssigneeID,
		Status:            task.Status,
		Priority:          task.Priority,
		Level:             task.Level,
		ParentID:          task.ParentID,
		Path:              task.Path,
		StartDate:         task.StartDate,
		EndDate:           task.EndDate,
		CreatedByID:       task.CreatedByID,
		OriginalCreatedAt: &createdAt,
		DeletedByID:       &deleterID,
		DeletedByName:     deletedBy.Username,
		DeletionReason:    reason,
		TaskData:          string(raw),
	}
	if task.Assignee != nil {
		log.AssigneeName = task.Assignee.Username
	}
	if task.CreatedBy != nil {
		log.CreatedByName = task.CreatedBy.Username
	}
	return log, nil
}
