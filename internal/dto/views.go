package dto

import "github.com/yukikurage/teamsync-api/internal/models"

// KanbanColumnSpec fixes a board column's key, display title and color.
type KanbanColumnSpec struct {
	Status models.TaskStatus
	Title  string
	Color  string
}

// KanbanColumns is the fixed board layout, in display order.
var KanbanColumns = []KanbanColumnSpec{
	{Status: models.TaskStatusPlanning, Title: "规划中", Color: "#94A3B8"},
	{Status: models.TaskStatusPending, Title: "待处理", Color: "#F59E0B"},
	{Status: models.TaskStatusInProgress, Title: "进行中", Color: "#0D9488"},
	{Status: models.TaskStatusCompleted, Title: "已完成", Color: "#10B981"},
}

// KanbanColumnDTO represents one board column in API responses
type KanbanColumnDTO struct {
	Status models.TaskStatus `json:"status"`
	Title  string            `json:"title"`
	Color  string            `json:"color"`
	Count  int               `json:"count"`
	Tasks  []TaskView        `json:"tasks"`
}

// KanbanResponse represents the kanban board payload
type KanbanResponse struct {
	Columns []KanbanColumnDTO `json:"columns"`
	Total   int               `json:"total"`
}

// GanttTaskDTO represents one row on the gantt chart
type GanttTaskDTO struct {
	ID           uint64  `json:"id"`
	Title        string  `json:"name"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	Progress     int     `json:"progress"`
	AssigneeID   *uint64 `json:"assignee_id"`
	AssigneeName string  `json:"assignee_name"`
	Color        string  `json:"color"`
	CanView      bool    `json:"can_view"`
}

// GanttResponse represents the gantt chart payload
type GanttResponse struct {
	Tasks    []GanttTaskDTO `json:"tasks"`
	ViewMode string         `json:"view_mode"`
}

// CalendarDayDTO represents one day bucket in the month view
type CalendarDayDTO struct {
	Date  string     `json:"date"`
	Tasks []TaskView `json:"tasks"`
}

// CalendarResponse represents the calendar payload for one month
type CalendarResponse struct {
	Year  int              `json:"year"`
	Month int              `json:"month"`
	Days  []CalendarDayDTO `json:"days"`
}

// TaskListResponse represents a tree or flat task listing
type TaskListResponse struct {
	Tasks      []TaskView `json:"tasks"`
	ViewType   string     `json:"view_type"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalCount int64      `json:"total_count"`
	TotalPages int        `json:"total_pages"`
}

// ProgressStatsResponse summarizes completion across a visible task set
type ProgressStatsResponse struct {
	Total          int64   `json:"total"`
	Completed      int64   `json:"completed"`
	InProgress     int64   `json:"in_progress"`
	Pending        int64   `json:"pending"`
	Planning       int64   `json:"planning"`
	Overdue        int64   `json:"overdue"`
	CompletionRate float64 `json:"completion_rate"`
}
