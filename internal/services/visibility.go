package services

import (
	"errors"
	"fmt"

	"github.com/yukikurage/teamsync-api/internal/models"
	"github.com/yukikurage/teamsync-api/internal/repository"
	"gorm.io/gorm"
)

// VisibilityService decides, per (viewer, task) pair, whether the viewer
// gets full detail or a redacted stub, and what they may mutate.
// Redaction applies to level-1 tasks; subtasks inherit visibility from
// their main task.
type VisibilityService struct {
	taskRepo repository.TaskRepository
}

// NewVisibilityService creates a new VisibilityService
func NewVisibilityService(taskRepo repository.TaskRepository) *VisibilityService {
	return &VisibilityService{taskRepo: taskRepo}
}

// CanViewFull reports whether the viewer sees the task's full detail.
// For subtasks the decision is made against the level-1 ancestor, which
// is fetched when needed.
func (s *VisibilityService) CanViewFull(actor models.Actor, task *models.Task) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}

	root := task
	if task.Level > 1 {
		ids := task.AncestorIDs()
		if len(ids) == 0 {
			return false, fmt.Errorf("task %d has level %d but an empty path", task.ID, task.Level)
		}
		fetched, err := s.taskRepo.FindByID(ids[0])
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, ErrTaskNotFound
			}
			return false, fmt.Errorf("failed to resolve root task: %w", err)
		}
		root = fetched
	}

	return CanViewRoot(actor, root), nil
}

// CanViewRoot is the pure visibility rule for a level-1 task: admins and
// the task's assignee see full detail, everyone else gets a stub.
func CanViewRoot(actor models.Actor, root *models.Task) bool {
	if actor.IsAdmin() {
		return true
	}
	return root.AssigneeID != nil && *root.AssigneeID == actor.ID
}

// CanEdit reports whether the viewer may mutate the task. Same rule as
// the write path: admin, or the task's assignee.
func (s *VisibilityService) CanEdit(actor models.Actor, task *models.Task) bool {
	return canMutate(actor, task)
}
