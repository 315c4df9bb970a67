package dto

import (
	"time"

	"github.com/yukikurage/teamsync-api/internal/models"
)

// DeletionLogDTO represents one deletion audit entry. Names are the
// denormalized values captured at deletion time, so the entry stays
// readable after the referenced users or project are gone.
type DeletionLogDTO struct {
	ID                uint64              `json:"id"`
	OriginalTaskID    uint64              `json:"original_task_id"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	ProjectID         uint64              `json:"project_id"`
	ProjectTitle      string              `json:"project_title"`
	Status            models.TaskStatus   `json:"status"`
	Priority          models.TaskPriority `json:"priority"`
	Level             int                 `json:"level"`
	ParentID          *uint64             `json:"parent_id"`
	Path              string              `json:"path"`
	AssigneeID        *uint64             `json:"assignee_id"`
	AssigneeName      string              `json:"assignee_name"`
	StartDate         *time.Time          `json:"start_date"`
	EndDate           *time.Time          `json:"end_date"`
	CreatedByID       *uint64             `json:"created_by_id"`
	CreatedByName     string              `json:"created_by_name"`
	OriginalCreatedAt *time.Time          `json:"original_created_at"`
	DeletedByID       *uint64             `json:"deleted_by_id"`
	DeletedByName     string              `json:"deleted_by_name"`
	DeletedAt         time.Time           `json:"deleted_at"`
	DeletionReason    string              `json:"deletion_reason"`
}

// ToDeletionLogDTO converts a TaskDeletionLog model to DeletionLogDTO
func ToDeletionLogDTO(log models.TaskDeletionLog) DeletionLogDTO {
	return DeletionLogDTO{
		ID:                log.ID,
		OriginalTaskID:    log.OriginalTaskID,
		Title:             log.Title,
		Description:       log.Description,
		ProjectID:         log.ProjectID,
		ProjectTitle:      log.ProjectTitle,
		Status:            log.Status,
		Priority:          log.Priority,
		Level:             log.Level,
		ParentID:          log.ParentID,
		Path:              log.Path,
		AssigneeID:        log.AssigneeID,
		AssigneeName:      log.AssigneeName,
		StartDate:         log.StartDate,
		EndDate:           log.EndDate,
		CreatedByID:       log.CreatedByID,
		CreatedByName:     log.CreatedByName,
		OriginalCreatedAt: log.OriginalCreatedAt,
		DeletedByID:       log.DeletedByID,
		DeletedByName:     log.DeletedByName,
		DeletedAt:         log.DeletedAt,
		DeletionReason:    log.DeletionReason,
	}
}

// DeletionLogListResponse represents a paginated deletion log listing
type DeletionLogListResponse struct {
	Logs       []DeletionLogDTO `json:"logs"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalCount int64            `json:"total_count"`
	TotalPages int              `json:"total_pages"`
}
