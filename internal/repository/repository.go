package repository

import (
	"errors"
	"time"

	"github.com/yukikurage/teamsync-api/internal/models"
)

// ErrClaimLost is returned when a conditional claim update matched no row,
// meaning another actor won the race or the task left planning.
var ErrClaimLost = errors.New("claim condition no longer holds")

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Task, error)

	// FindByIDs finds tasks by ID, unordered
	FindByIDs(ids []uint64) ([]models.Task, error)

	// List retrieves tasks with filtering and pagination
	List(filter TaskFilter) ([]models.Task, int64, error)

	// ListChildren lists a task's immediate children
	ListChildren(parentID uint64) ([]models.Task, error)

	// ListDescendants lists every task under the given subtree prefix,
	// exclusive of the root task itself
	ListDescendants(fullPath string) ([]models.Task, error)

	// HasChildren reports whether a task has at least one child
	HasChildren(taskID uint64) (bool, error)

	// CountChildren counts immediate children, optionally by status
	CountChildren(parentID uint64, status *models.TaskStatus) (int64, error)

	// UpdateWithHistory applies field updates and appends the matching
	// history rows within one transaction
	UpdateWithHistory(task *models.Task, histories []models.TaskHistory) error

	// Claim atomically assigns a planning task to the actor. The update is
	// conditioned on the assignee still being unset (or the actor); when
	// the condition fails nothing is written and ErrClaimLost is returned.
	Claim(input ClaimUpdate) error

	// MarkOverdue flips the normal_flag on every task the overdue
	// predicate matches at the given time, returning the newly flagged
	// tasks. Invoked by the daily sweep.
	MarkOverdue(now time.Time) ([]models.Task, error)

	// ListHistory lists a task's change history, newest first
	ListHistory(taskID uint64) ([]models.TaskHistory, error)
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	ProjectID   *uint64
	ProjectIDs  []uint64
	Level       *int
	Statuses    []models.TaskStatus
	Priority    *models.TaskPriority
	AssigneeID  *uint64
	Search      string
	StartBefore *time.Time
	EndAfter    *time.Time
	SpansMonth  *MonthRange
	SortBy      string
	SortDesc    bool
	Page        int
	PageSize    int
	Preload     []string
}

// MonthRange selects tasks whose date span intersects a calendar month.
type MonthRange struct {
	Start time.Time
	End   time.Time
}

// ClaimUpdate carries the field set a successful claim writes.
type ClaimUpdate struct {
	TaskID    uint64
	ActorID   uint64
	Status    models.TaskStatus
	StartDate time.Time
	EndDate   time.Time
	Histories []models.TaskHistory
}

// DeletionLogRepository defines the interface for deletion audit access
type DeletionLogRepository interface {
	// RecordAndDelete writes the snapshot, then removes the task and its
	// history rows, all within one transaction. Snapshot-first ordering
	// guarantees the log never observes a half-deleted task.
	RecordAndDelete(log *models.TaskDeletionLog, taskID uint64) error

	// FindByID finds a deletion log entry
	FindByID(id uint64) (*models.TaskDeletionLog, error)

	// List retrieves deletion logs with filtering and pagination
	List(filter DeletionLogFilter) ([]models.TaskDeletionLog, int64, error)
}

// DeletionLogFilter holds filtering options for listing deletion logs
type DeletionLogFilter struct {
	ProjectID   *uint64
	DeletedByID *uint64
	DeletedFrom *time.Time
	DeletedTo   *time.Time
	TitleSearch string
	Page        int
	PageSize    int
}

// ProjectRepository defines the interface for project lookups. Project
// CRUD belongs to the external project service.
type ProjectRepository interface {
	// FindByID finds a project by ID
	FindByID(id uint64) (*models.Project, error)

	// ListIDsByTeam lists project IDs within a team scope
	ListIDsByTeam(teamID uint64) ([]uint64, error)
}

// UserRepository defines the interface for user lookups. Accounts are
// owned by the external identity provider.
type UserRepository interface {
	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByIDs finds users by ID, keyed by ID in the result
	FindByIDs(ids []uint64) (map[uint64]models.User, error)
}
