package dto

import (
	"time"

	"github.com/yukikurage/teamsync-api/internal/models"
)

// Sentinel values shown in place of redacted fields.
const (
	RedactedAssigneeName = "🔒 私有任务"
	RedactedMessage      = "该任务未分配给您，无权查看详情"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// RedactedUserDTO is the assignee placeholder on a redacted stub. The id
// is always null so the real assignee cannot be inferred.
type RedactedUserDTO struct {
	ID       *uint64 `json:"id"`
	Username string  `json:"username"`
}

// ProjectDTO represents a project in API responses
type ProjectDTO struct {
	ID    uint64 `json:"id"`
	Title string `json:"title"`
}

// AttachmentDTO represents attachment metadata in API responses
type AttachmentDTO struct {
	ID         uint64    `json:"id"`
	FileName   string    `json:"file_name"`
	FileType   string    `json:"file_type"`
	FileSize   int64     `json:"file_size"`
	URL        string    `json:"url"`
	UploadedBy *UserDTO  `json:"uploaded_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TaskView is the tagged variant returned for every task: either the
// full VisibleTask or a RedactedTaskStub, never a half-populated shape.
type TaskView interface {
	taskView()
}

// VisibleTask is the full-detail rendering of a task.
type VisibleTask struct {
	ID          uint64              `json:"id"`
	ProjectID   uint64              `json:"project_id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	Level       int                 `json:"level"`
	ParentID    *uint64             `json:"parent_id"`
	Path        string              `json:"path"`
	FullPath    string              `json:"full_path"`
	NormalFlag  models.OverdueFlag  `json:"normal_flag"`
	StartDate   *time.Time          `json:"start_date"`
	EndDate     *time.Time          `json:"end_date"`
	Assignee    *UserDTO            `json:"assignee"`
	CreatedBy   *UserDTO            `json:"created_by,omitempty"`
	Project     *ProjectDTO         `json:"project,omitempty"`
	Attachments []AttachmentDTO     `json:"attachments,omitempty"`
	CanView     bool                `json:"can_view"`
	CanEdit     bool                `json:"can_edit"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Children    []TaskView          `json:"children"`
}

func (VisibleTask) taskView() {}

// RedactedTaskStub keeps just enough of a private task for team-wide
// counts and board layout to stay accurate. Description, dates and the
// real assignee are suppressed; children are never populated.
type RedactedTaskStub struct {
	ID         uint64              `json:"id"`
	ProjectID  uint64              `json:"project_id"`
	Title      string              `json:"title"`
	Status     models.TaskStatus   `json:"status"`
	Priority   models.TaskPriority `json:"priority"`
	Level      int                 `json:"level"`
	ParentID   *uint64             `json:"parent_id"`
	Path       string              `json:"path"`
	FullPath   string              `json:"full_path"`
	NormalFlag models.OverdueFlag  `json:"normal_flag"`
	Assignee   RedactedUserDTO     `json:"assignee"`
	CanView    bool                `json:"can_view"`
	Message    string              `json:"message"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	Children   []TaskView          `json:"children"`
}

func (RedactedTaskStub) taskView() {}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:       user.ID,
		Username: user.Username,
		Avatar:   user.Avatar,
	}
}

// ToProjectDTO converts a Project model to ProjectDTO
func ToProjectDTO(project models.Project) ProjectDTO {
	return ProjectDTO{
		ID:    project.ID,
		Title: project.Title,
	}
}

// ToAttachmentDTO converts a TaskAttachment model to AttachmentDTO
func ToAttachmentDTO(attachment models.TaskAttachment) AttachmentDTO {
	dto := AttachmentDTO{
		ID:        attachment.ID,
		FileName:  attachment.FileName,
		FileType:  attachment.FileType,
		FileSize:  attachment.FileSize,
		URL:       attachment.URL,
		CreatedAt: attachment.CreatedAt,
	}
	if attachment.UploadedBy != nil {
		uploader := ToUserDTO(*attachment.UploadedBy)
		dto.UploadedBy = &uploader
	}
	return dto
}

// ToVisibleTask converts a task to its full-detail view.
func ToVisibleTask(task models.Task, canEdit bool) VisibleTask {
	view := VisibleTask{
		ID:          task.ID,
		ProjectID:   task.ProjectID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		Level:       task.Level,
		ParentID:    task.ParentID,
		Path:        task.Path,
		FullPath:    task.FullPath(),
		NormalFlag:  task.NormalFlag,
		StartDate:   task.StartDate,
		EndDate:     task.EndDate,
		CanView:     true,
		CanEdit:     canEdit,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
		Children:    []TaskView{},
	}
	if task.Assignee != nil {
		assignee := ToUserDTO(*task.Assignee)
		view.Assignee = &assignee
	}
	if task.CreatedBy != nil {
		creator := ToUserDTO(*task.CreatedBy)
		view.CreatedBy = &creator
	}
	if task.Project.ID != 0 {
		project := ToProjectDTO(task.Project)
		view.Project = &project
	}
	for _, attachment := range task.Attachments {
		view.Attachments = append(view.Attachments, ToAttachmentDTO(attachment))
	}
	return view
}

// ToRedactedStub converts a task to its redacted view.
func ToRedactedStub(task models.Task) RedactedTaskStub {
	return RedactedTaskStub{
		ID:         task.ID,
		ProjectID:  task.ProjectID,
		Title:      task.Title,
		Status:     task.Status,
		Priority:   task.Priority,
		Level:      task.Level,
		ParentID:   task.ParentID,
		Path:       task.Path,
		FullPath:   task.FullPath(),
		NormalFlag: task.NormalFlag,
		Assignee:   RedactedUserDTO{ID: nil, Username: RedactedAssigneeName},
		CanView:    false,
		Message:    RedactedMessage,
		CreatedAt:  task.CreatedAt,
		UpdatedAt:  task.UpdatedAt,
		Children:   []TaskView{},
	}
}

// TaskDetailResponse is the single-task endpoint payload: the task view
// plus its ancestor chain (root first) and subtask progress counts.
type TaskDetailResponse struct {
	Task              TaskView   `json:"task"`
	Ancestors         []TaskView `json:"ancestors"`
	SubtaskCount      int64      `json:"subtask_count"`
	CompletedSubtasks int64      `json:"completed_subtasks"`
}

// TaskHistoryDTO represents one field change in a task's history
type TaskHistoryDTO struct {
	ID        uint64    `json:"id"`
	FieldName string    `json:"field_name"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	ChangedBy *UserDTO  `json:"changed_by,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// ToTaskHistoryDTO converts a TaskHistory model to TaskHistoryDTO
func ToTaskHistoryDTO(history models.TaskHistory) TaskHistoryDTO {
	dto := TaskHistoryDTO{
		ID:        history.ID,
		FieldName: history.FieldName,
		OldValue:  history.OldValue,
		NewValue:  history.NewValue,
		ChangedAt: history.ChangedAt,
	}
	if history.ChangedBy != nil {
		user := ToUserDTO(*history.ChangedBy)
		dto.ChangedBy = &user
	}
	return dto
}

// CreateTaskRequest represents the request body for creating a main task
type CreateTaskRequest struct {
	ProjectID   uint64  `json:"project_id" binding:"required"`
	Title       string  `json:"title" binding:"required,max=200"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	AssigneeID  *uint64 `json:"assignee_id"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
}

// CreateSubtaskRequest represents the request body for creating a subtask
type CreateSubtaskRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// UpdateTaskRequest represents the request body for updating a task.
// Pointer fields distinguish "not sent" from "set to empty".
type UpdateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
}

// UpdateStatusRequest represents the request body for a status change
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ClaimTaskRequest represents the request body for claiming a task
type ClaimTaskRequest struct {
	TargetStatus string `json:"target_status" binding:"required"`
	EndDate      string `json:"end_date" binding:"required"`
}

// DeleteTaskRequest represents the request body for deleting a task
type DeleteTaskRequest struct {
	Reason string `json:"reason"`
}

// SuggestedSubtaskDTO represents one AI-proposed subtask
type SuggestedSubtaskDTO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// SuggestSubtasksResponse wraps the AI breakdown proposal
type SuggestSubtasksResponse struct {
	Suggestions []SuggestedSubtaskDTO `json:"suggestions"`
}
