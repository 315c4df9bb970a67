package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yukikurage/teamsync-api/internal/constants"
	"github.com/yukikurage/teamsync-api/internal/models"
	"github.com/yukikurage/teamsync-api/internal/notify"
	"github.com/yukikurage/teamsync-api/internal/repository"
	"github.com/yukikurage/teamsync-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound           = errors.New("task not found")
	ErrProjectNotFound        = errors.New("project not found")
	ErrProjectArchived        = errors.New("project is archived")
	ErrTitleRequired          = errors.New("title is required")
	ErrDepthExceeded          = errors.New("maximum hierarchy depth reached (3 levels)")
	ErrNotParentAssignee      = errors.New("only the parent task's assignee can create subtasks")
	ErrNotAuthorized          = errors.New("not authorized to modify this task")
	ErrStatusInvalid          = errors.New("unrecognized task status")
	ErrPriorityInvalid        = errors.New("unrecognized task priority")
	ErrTransitionInvalid      = errors.New("status transition not allowed")
	ErrAssigneeRequired       = errors.New("task must be assigned before leaving planning")
	ErrAssigneeNotFound       = errors.New("assignee does not exist")
	ErrOnlyPlanningClaimable  = errors.New("only planning tasks can be claimed")
	ErrEndDateInvalid         = errors.New("end date is required and must not be in the past")
	ErrAlreadyClaimed         = errors.New("task is already claimed by another user")
	ErrHasSubtasks            = errors.New("task has subtasks and cannot be deleted")
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
	ErrAINoSubtasksGenerated  = errors.New("AI did not suggest any subtasks")
)

// statusTransitions is the closed transition table. planning feeds the two
// active states, which flow freely between each other and into completed.
// completed is terminal.
var statusTransitions = map[models.TaskStatus][]models.TaskStatus{
	models.TaskStatusPlanning:   {models.TaskStatusPending, models.TaskStatusInProgress},
	models.TaskStatusPending:    {models.TaskStatusInProgress, models.TaskStatusCompleted},
	models.TaskStatusInProgress: {models.TaskStatusPending, models.TaskStatusCompleted},
	models.TaskStatusCompleted:  {},
}

func canTransition(from, to models.TaskStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TaskService owns the task hierarchy and its workflow state machine.
type TaskService struct {
	taskRepo    repository.TaskRepository
	projectRepo repository.ProjectRepository
	userRepo    repository.UserRepository
	notifier    notify.Notifier
	aiService   *AIService
}

// NewTaskService creates a new TaskService
func NewTaskService(
	taskRepo repository.TaskRepository,
	projectRepo repository.ProjectRepository,
	userRepo repository.UserRepository,
	notifier notify.Notifier,
	aiService *AIService,
) *TaskService {
	return &TaskService{
		taskRepo:    taskRepo,
		projectRepo: projectRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		aiService:   aiService,
	}
}

// CreateMainTaskInput represents input for creating a level-1 task
type CreateMainTaskInput struct {
	ProjectID   uint64
	Title       string
	Description string
	Priority    models.TaskPriority
	AssigneeID  *uint64
	StartDate   *time.Time
	EndDate     *time.Time
	Actor       models.Actor
}

// CreateMainTask creates a level-1 task with an empty path.
func (s *TaskService) CreateMainTask(input CreateMainTaskInput) (*models.Task, error) {
	if !input.Actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	project, err := s.projectRepo.FindByID(input.ProjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	if project.IsArchived {
		return nil, ErrProjectArchived
	}

	priority := input.Priority
	if priority == "" {
		priority = models.TaskPriorityMedium
	}
	if !priority.IsValid() {
		return nil, ErrPriorityInvalid
	}

	if input.AssigneeID != nil {
		if _, err := s.userRepo.FindByID(*input.AssigneeID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrAssigneeNotFound
			}
			return nil, fmt.Errorf("failed to verify assignee: %w", err)
		}
	}

	actorID := input.Actor.ID
	task := &models.Task{
		ProjectID:   input.ProjectID,
		Title:       title,
		Description: input.Description,
		Status:      models.TaskStatusPlanning,
		Priority:    priority,
		Level:       1,
		ParentID:    nil,
		Path:        "",
		AssigneeID:  input.AssigneeID,
		CreatedByID: &actorID,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		NormalFlag:  models.OverdueFlagNormal,
	}

	if err := s.taskRepo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if task.AssigneeID != nil && *task.AssigneeID != input.Actor.ID {
		s.notifier.Notify(notify.NewEvent(*task.AssigneeID, notify.EventTaskAssigned, map[string]interface{}{
			"task_id":    task.ID,
			"task_title": task.Title,
			"project_id": task.ProjectID,
		}))
	}

	return s.taskRepo.FindByID(task.ID, "Project", "Assignee", "CreatedBy")
}

// CreateSubtaskInput represents input for creating a child task
type CreateSubtaskInput struct {
	ParentID    uint64
	Title       string
	Description string
	Priority    models.TaskPriority
	StartDate   *time.Time
	EndDate     *time.Time
	Actor       models.Actor
}

// CreateSubtask creates a child under a parent task. Only the parent's
// assignee may decompose it, and the depth cap is enforced before the
// path is derived from the parent's full path.
func (s *TaskService) CreateSubtask(input CreateSubtaskInput) (*models.Task, error) {
	parent, err := s.taskRepo.FindByID(input.ParentID, "Project")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find parent task: %w", err)
	}

	if parent.Project.IsArchived {
		return nil, ErrProjectArchived
	}
	if parent.AssigneeID == nil || *parent.AssigneeID != input.Actor.ID {
		return nil, ErrNotParentAssignee
	}
	if !parent.CanHaveSubtasks() {
		return nil, ErrDepthExceeded
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	priority := input.Priority
	if priority == "" {
		priority = models.TaskPriorityMedium
	}
	if !priority.IsValid() {
		return nil, ErrPriorityInvalid
	}

	actorID := input.Actor.ID
	parentID := parent.ID
	task := &models.Task{
		ProjectID:   parent.ProjectID,
		Title:       title,
		Description: input.Description,
		Status:      models.TaskStatusPlanning,
		Priority:    priority,
		Level:       parent.Level + 1,
		ParentID:    &parentID,
		Path:        parent.FullPath(),
		AssigneeID:  parent.AssigneeID, // subtasks inherit the assignee
		CreatedByID: &actorID,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		NormalFlag:  models.OverdueFlagNormal,
	}

	if err := s.taskRepo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create subtask: %w", err)
	}

	return s.taskRepo.FindByID(task.ID, "Project", "Assignee", "CreatedBy")
}

// GetTask returns a task with related data
func (s *TaskService) GetTask(taskID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID, "Project", "Assignee", "CreatedBy", "Attachments", "Attachments.UploadedBy")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// Ancestors returns the task's ancestor chain ordered root-to-parent.
func (s *TaskService) Ancestors(task *models.Task) ([]models.Task, error) {
	ids := task.AncestorIDs()
	if len(ids) == 0 {
		return []models.Task{}, nil
	}

	found, err := s.taskRepo.FindByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ancestors: %w", err)
	}

	byID := make(map[uint64]models.Task, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}

	ordered := make([]models.Task, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("ancestor %d referenced by path is missing", id)
		}
		ordered = append(ordered, t)
	}
	return ordered, nil
}

// Descendants returns every task below the given one, any depth.
func (s *TaskService) Descendants(task *models.Task) ([]models.Task, error) {
	return s.taskRepo.ListDescendants(task.FullPath())
}

// SubtaskCounts returns (children, completed children) for a task.
func (s *TaskService) SubtaskCounts(taskID uint64) (int64, int64, error) {
	total, err := s.taskRepo.CountChildren(taskID, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count subtasks: %w", err)
	}
	completed := models.TaskStatusCompleted
	done, err := s.taskRepo.CountChildren(taskID, &completed)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count completed subtasks: %w", err)
	}
	return total, done, nil
}

// UpdateTaskInput represents input for updating task fields. Status is
// excluded on purpose; status changes go through UpdateStatus or Claim.
type UpdateTaskInput struct {
	Title          *string
	Description    *string
	Priority       *models.TaskPriority
	StartDate      *time.Time
	ClearStartDate bool
	EndDate        *time.Time
	ClearEndDate   bool
}

// UpdateTask updates task fields, appending one history row per changed
// field. History is only written when the update durably commits.
func (s *TaskService) UpdateTask(taskID uint64, input UpdateTaskInput, actor models.Actor) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID, "Project")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	if task.Project.IsArchived {
		return nil, ErrProjectArchived
	}
	if !canMutate(actor, task) {
		return nil, ErrNotAuthorized
	}

	actorID := actor.ID
	var histories []models.TaskHistory
	record := func(field, oldValue, newValue string) {
		if oldValue == newValue {
			return
		}
		histories = append(histories, models.TaskHistory{
			TaskID:      task.ID,
			ChangedByID: &actorID,
			FieldName:   field,
			OldValue:    oldValue,
			NewValue:    newValue,
		})
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		record("title", task.Title, title)
		task.Title = title
	}
	if input.Description != nil {
		record("description", task.Description, *input.Description)
		task.Description = *input.Description
	}
	if input.Priority != nil {
		if !input.Priority.IsValid() {
			return nil, ErrPriorityInvalid
		}
		record("priority", string(task.Priority), string(*input.Priority))
		task.Priority = *input.Priority
	}
	if input.ClearStartDate {
		record("start_date", formatDate(task.StartDate), "")
		task.StartDate = nil
	} else if input.StartDate != nil {
		record("start_date", formatDate(task.StartDate), formatDate(input.StartDate))
		task.StartDate = input.StartDate
	}
	if input.ClearEndDate {
		record("end_date", formatDate(task.EndDate), "")
		task.EndDate = nil
	} else if input.EndDate != nil {
		record("end_date", formatDate(task.EndDate), formatDate(input.EndDate))
		task.EndDate = input.EndDate
	}

	if err := s.taskRepo.UpdateWithHistory(task, histories); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return s.taskRepo.FindByID(task.ID, "Project", "Assignee", "CreatedBy", "Attachments")
}

// UpdateStatus applies a generic status transition.
func (s *TaskService) UpdateStatus(taskID uint64, newStatus models.TaskStatus, actor models.Actor) (*models.Task, error) {
	if !newStatus.IsValid() {
		return nil, ErrStatusInvalid
	}

	task, err := s.taskRepo.FindByID(taskID, "Project")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	if task.Project.IsArchived {
		return nil, ErrProjectArchived
	}
	if !canMutate(actor, task) {
		return nil, ErrNotAuthorized
	}

	if task.Status == newStatus {
		return task, nil
	}
	if !canTransition(task.Status, newStatus) {
		return nil, ErrTransitionInvalid
	}
	// A task cannot leave planning while unassigned.
	if task.Status == models.TaskStatusPlanning && task.AssigneeID == nil {
		return nil, ErrAssigneeRequired
	}

	actorID := actor.ID
	oldStatus := task.Status
	task.Status = newStatus
	histories := []models.TaskHistory{{
		TaskID:      task.ID,
		ChangedByID: &actorID,
		FieldName:   "status",
		OldValue:    string(oldStatus),
		NewValue:    string(newStatus),
	}}

	if err := s.taskRepo.UpdateWithHistory(task, histories); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	if task.AssigneeID != nil && *task.AssigneeID != actor.ID {
		s.notifier.Notify(notify.NewEvent(*task.AssigneeID, notify.EventTaskStatusChanged, map[string]interface{}{
			"task_id":    task.ID,
			"task_title": task.Title,
			"old_status": string(oldStatus),
			"new_status": string(newStatus),
		}))
	}

	return task, nil
}

// ClaimInput represents the kanban drag-to-claim operation
type ClaimInput struct {
	TaskID       uint64
	TargetStatus models.TaskStatus
	EndDate      *time.Time
	Actor        models.Actor
	Now          time.Time
}

// Claim assigns a planning task to the actor and moves it to pending or
// in_progress. Preconditions are checked in order; the final
// check-and-set runs as a conditional update so concurrent claims have
// exactly one winner.
func (s *TaskService) Claim(input ClaimInput) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(input.TaskID, "Project")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	if task.Project.IsArchived {
		return nil, ErrProjectArchived
	}

	if task.Status != models.TaskStatusPlanning {
		return nil, ErrOnlyPlanningClaimable
	}
	if input.TargetStatus != models.TaskStatusPending && input.TargetStatus != models.TaskStatusInProgress {
		return nil, ErrStatusInvalid
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}
	startOfToday := utils.StartOfDay(now)
	if input.EndDate == nil || input.EndDate.Before(startOfToday) {
		return nil, ErrEndDateInvalid
	}

	if task.AssigneeID != nil && *task.AssigneeID != input.Actor.ID {
		return nil, ErrAlreadyClaimed
	}

	actorID := input.Actor.ID
	histories := []models.TaskHistory{
		{
			TaskID:      task.ID,
			ChangedByID: &actorID,
			FieldName:   "assignee",
			OldValue:    formatAssignee(task.AssigneeID),
			NewValue:    strconv.FormatUint(actorID, 10),
		},
		{
			TaskID:      task.ID,
			ChangedByID: &actorID,
			FieldName:   "status",
			OldValue:    string(models.TaskStatusPlanning),
			NewValue:    string(input.TargetStatus),
		},
	}

	err = s.taskRepo.Claim(repository.ClaimUpdate{
		TaskID:    task.ID,
		ActorID:   actorID,
		Status:    input.TargetStatus,
		StartDate: startOfToday,
		EndDate:   *input.EndDate,
		Histories: histories,
	})
	if err != nil {
		if errors.Is(err, repository.ErrClaimLost) {
			return nil, ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}

	if task.CreatedByID != nil && *task.CreatedByID != actorID {
		s.notifier.Notify(notify.NewEvent(*task.CreatedByID, notify.EventTaskClaimed, map[string]interface{}{
			"task_id":    task.ID,
			"task_title": task.Title,
			"claimed_by": actorID,
			"status":     string(input.TargetStatus),
		}))
	}

	return s.taskRepo.FindByID(task.ID, "Project", "Assignee", "CreatedBy")
}

// CanDelete reports whether the deletion guard allows removing the task.
func (s *TaskService) CanDelete(task *models.Task) (bool, error) {
	hasChildren, err := s.taskRepo.HasChildren(task.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check subtasks: %w", err)
	}
	return !hasChildren, nil
}

// ListHistory returns a task's change history, newest first.
func (s *TaskService) ListHistory(taskID uint64, actor models.Actor) ([]models.TaskHistory, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	if !canMutate(actor, task) {
		return nil, ErrNotAuthorized
	}

	return s.taskRepo.ListHistory(taskID)
}

// MarkOverdueTasks runs the overdue sweep predicate: every unfinished
// task whose end date's day has passed gets flagged, once, and its
// assignee notified. Scheduled daily from main.
func (s *TaskService) MarkOverdueTasks(now time.Time) (int, error) {
	marked, err := s.taskRepo.MarkOverdue(now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue tasks: %w", err)
	}

	for _, task := range marked {
		if task.AssigneeID == nil {
			continue
		}
		s.notifier.Notify(notify.NewEvent(*task.AssigneeID, notify.EventTaskOverdue, map[string]interface{}{
			"task_id":    task.ID,
			"task_title": task.Title,
			"end_date":   formatDate(task.EndDate),
		}))
	}

	return len(marked), nil
}

// SuggestSubtasks asks the AI service to propose a breakdown of the task.
// Suggestions are not persisted; the caller creates the ones it keeps.
func (s *TaskService) SuggestSubtasks(ctx context.Context, taskID uint64, actor models.Actor) ([]SuggestedSubtask, error) {
	if s.aiService == nil {
		return nil, ErrAIServiceNotConfigured
	}

	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	if !canMutate(actor, task) {
		return nil, ErrNotAuthorized
	}
	if !task.CanHaveSubtasks() {
		return nil, ErrDepthExceeded
	}

	suggestions, err := s.aiService.SuggestSubtasks(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest subtasks: %w", err)
	}

	valid := make([]SuggestedSubtask, 0, len(suggestions))
	for _, suggestion := range suggestions {
		if strings.TrimSpace(suggestion.Title) == "" {
			continue
		}
		valid = append(valid, suggestion)
	}
	if len(valid) == 0 {
		return nil, ErrAINoSubtasksGenerated
	}
	if len(valid) > constants.MaxAISuggestedSubtasks {
		valid = valid[:constants.MaxAISuggestedSubtasks]
	}

	return valid, nil
}

// canMutate is the write-permission rule: admins, or the task's assignee.
func canMutate(actor models.Actor, task *models.Task) bool {
	if actor.IsAdmin() {
		return true
	}
	return task.AssigneeID != nil && *task.AssigneeID == actor.ID
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatAssignee(id *uint64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatUint(*id, 10)
}
