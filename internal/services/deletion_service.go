package services

import (
	"errors"
	"fmt"

	"github.com/yukikurage/teamsync-api/internal/models"
	"github.com/yukikurage/teamsync-api/internal/repository"
	"gorm.io/gorm"
)

var ErrDeletionLogNotFound = errors.New("deletion log entry not found")

// DeletionService owns the delete-with-audit flow: a task may only be
// removed once its subtree is empty, and every removal leaves a
// denormalized snapshot that outlives the task's related entities.
type DeletionService struct {
	taskRepo        repository.TaskRepository
	deletionLogRepo repository.DeletionLogRepository
	userRepo        repository.UserRepository
}

// NewDeletionService creates a new DeletionService
func NewDeletionService(
	taskRepo repository.TaskRepository,
	deletionLogRepo repository.DeletionLogRepository,
	userRepo repository.UserRepository,
) *DeletionService {
	return &DeletionService{
		taskRepo:        taskRepo,
		deletionLogRepo: deletionLogRepo,
		userRepo:        userRepo,
	}
}

// DeleteTask snapshots and removes a task. Fails while descendants
// exist; deletion proceeds leaf-first. Only admins may delete.
func (s *DeletionService) DeleteTask(taskID uint64, actor models.Actor, reason string) (*models.TaskDeletionLog, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}

	task, err := s.taskRepo.FindByID(taskID, "Project", "Assignee", "CreatedBy")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	hasChildren, err := s.taskRepo.HasChildren(task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check subtasks: %w", err)
	}
	if hasChildren {
		return nil, ErrHasSubtasks
	}

	deleter, err := s.userRepo.FindByID(actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve deleting user: %w", err)
	}

	log, err := models.NewTaskDeletionLog(task, deleter, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot task: %w", err)
	}

	if err := s.deletionLogRepo.RecordAndDelete(log, task.ID); err != nil {
		return nil, fmt.Errorf("failed to delete task: %w", err)
	}
	return log, nil
}

// GetLog returns one deletion log entry. Admin only.
func (s *DeletionService) GetLog(id uint64, actor models.Actor) (*models.TaskDeletionLog, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	log, err := s.deletionLogRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeletionLogNotFound
		}
		return nil, fmt.Errorf("failed to find deletion log: %w", err)
	}
	return log, nil
}

// ListLogs lists deletion log entries, newest first. Admin only.
func (s *DeletionService) ListLogs(filter repository.DeletionLogFilter, actor models.Actor) ([]models.TaskDeletionLog, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, ErrNotAuthorized
	}
	logs, total, err := s.deletionLogRepo.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list deletion logs: %w", err)
	}
	return logs, total, nil
}
