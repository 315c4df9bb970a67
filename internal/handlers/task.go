package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/teamsync-api/internal/constants"
	"github.com/yukikurage/teamsync-api/internal/dto"
	apierrors "github.com/yukikurage/teamsync-api/internal/errors"
	"github.com/yukikurage/teamsync-api/internal/middleware"
	"github.com/yukikurage/teamsync-api/internal/models"
	"github.com/yukikurage/teamsync-api/internal/services"
	"github.com/yukikurage/teamsync-api/internal/utils"
)

type TaskHandler struct {
	taskService       *services.TaskService
	visibilityService *services.VisibilityService
}

func NewTaskHandler(taskService *services.TaskService, visibilityService *services.VisibilityService) *TaskHandler {
	return &TaskHandler{
		taskService:       taskService,
		visibilityService: visibilityService,
	}
}

// taskFromContext reads the task loaded by RequireTaskAccess
func taskFromContext(c *gin.Context) (models.Task, bool) {
	raw, exists := c.Get(constants.ContextKeyTask)
	if !exists {
		return models.Task{}, false
	}
	task, ok := raw.(models.Task)
	return task, ok
}

func parseOptionalDate(c *gin.Context, value string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	t, err := utils.ParseFlexibleDate(value)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return nil, false
	}
	return &t, true
}

// CreateTask creates a level-1 task. Admin only.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	startDate, ok := parseOptionalDate(c, req.StartDate)
	if !ok {
		return
	}
	endDate, ok := parseOptionalDate(c, req.EndDate)
	if !ok {
		return
	}

	task, err := h.taskService.CreateMainTask(services.CreateMainTaskInput{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    models.TaskPriority(req.Priority),
		AssigneeID:  req.AssigneeID,
		StartDate:   startDate,
		EndDate:     endDate,
		Actor:       actor,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"task": dto.ToVisibleTask(*task, true)})
}

// CreateSubtask creates a child under the task in context. Only the
// parent's assignee may decompose it.
func (h *TaskHandler) CreateSubtask(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	parent, ok := taskFromContext(c)
	if !ok {
		apierrors.InternalError(c, "")
		return
	}

	var req dto.CreateSubtaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	startDate, okDate := parseOptionalDate(c, req.StartDate)
	if !okDate {
		return
	}
	endDate, okDate := parseOptionalDate(c, req.EndDate)
	if !okDate {
		return
	}

	task, err := h.taskService.CreateSubtask(services.CreateSubtaskInput{
		ParentID:    parent.ID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    models.TaskPriority(req.Priority),
		StartDate:   startDate,
		EndDate:     endDate,
		Actor:       actor,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"task": dto.ToVisibleTask(*task, true)})
}

// GetTask returns one task with its ancestor chain and subtask counts.
// Task existence and team scope were checked by RequireTaskAccess; the
// visibility filter decides between full detail and a redacted stub.
func (h *TaskHandler) GetTask(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	ctxTask, ok := taskFromContext(c)
	if !ok {
		apierrors.InternalError(c, "")
		return
	}

	task, err := h.taskService.GetTask(ctxTask.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	canView, err := h.visibilityService.CanViewFull(actor, task)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	var view dto.TaskView
	if canView {
		view = dto.ToVisibleTask(*task, h.visibilityService.CanEdit(actor, task))
	} else {
		view = dto.ToRedactedStub(*task)
	}

	response := dto.TaskDetailResponse{Task: view, Ancestors: []dto.TaskView{}}

	if canView {
		ancestors, err := h.taskService.Ancestors(task)
		if err != nil {
			apierrors.InternalError(c, "")
			return
		}
		for _, ancestor := range ancestors {
			response.Ancestors = append(response.Ancestors, dto.ToVisibleTask(ancestor, h.visibilityService.CanEdit(actor, &ancestor)))
		}

		total, completed, err := h.taskService.SubtaskCounts(task.ID)
		if err != nil {
			apierrors.InternalError(c, "")
			return
		}
		response.SubtaskCount = total
		response.CompletedSubtasks = completed
	}

	c.JSON(http.StatusOK, response)
}

// UpdateTask updates task fields. Status changes go through UpdateStatus.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	ctxTask, ok := taskFromContext(c)
	if !ok {
		apierrors.InternalError(c, "")
		return
	}

	var req dto.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	input := services.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Priority != nil {
		priority := models.TaskPriority(*req.Priority)
		input.Priority = &priority
	}
	if req.StartDate != nil {
		if *req.StartDate == "" {
			input.ClearStartDate = true
		} else {
			t, err := utils.ParseFlexibleDate(*req.StartDate)
			if err != nil {
				apierrors.BadRequest(c, err.Error())
				return
			}
			input.StartDate = &t
		}
	}
	if req.EndDate != nil {
		if *req.EndDate == "" {
			input.ClearEndDate = true
		} else {
			t, err := utils.ParseFlexibleDate(*req.EndDate)
			if err != nil {
				apierrors.BadRequest(c, err.Error())
				return
			}
			input.EndDate = &t
		}
	}

	task, err := h.taskService.UpdateTask(ctxTask.ID, input, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": dto.ToVisibleTask(*task, true)})
}

// UpdateStatus applies a status transition to the task in context.
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	ctxTask, ok := taskFromContext(c)
	if !ok {
		apierrors.InternalError(c, "")
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	task, err := h.taskService.UpdateStatus(ctxTask.ID, models.TaskStatus(req.Status), actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": dto.ToVisibleTask(*task, true)})
}

// ClaimTask is the kanban drag-to-claim operation: the actor takes an
// unassigned planning task and moves it to pending or in_progress.
func (h *TaskHandler) ClaimTask(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	ctxTask, ok := taskFromContext(c)
	if !ok {
		apierrors.InternalError(c, "")
		return
	}

	var req dto.ClaimTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	endDate, err := utils.ParseFlexibleDate(req.EndDate)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	task, err := h.taskService.Claim(services.ClaimInput{
		TaskID:       ctxTask.ID,
		TargetStatus: models.TaskStatus(req.TargetStatus),
		EndDate:      &endDate,
		Actor:        actor,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": dto.ToVisibleTask(*task, true)})
}

// GetHistory returns the task's change history, newest first.
func (h *TaskHandler) GetHistory(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	ctxTask, ok := taskFromContext(c)
	if !ok {
		apierrors.InternalError(c, "")
		return
	}

	histories, err := h.taskService.ListHistory(ctxTask.ID, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	items := make([]dto.TaskHistoryDTO, 0, len(histories))
	for _, history := range histories {
		items = append(items, dto.ToTaskHistoryDTO(history))
	}

	c.JSON(http.StatusOK, gin.H{"history": items})
}

// SuggestSubtasks asks the AI service for a subtask breakdown proposal.
// Nothing is persisted; the client creates the subtasks it keeps.
func (h *TaskHandler) SuggestSubtasks(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	ctxTask, ok := taskFromContext(c)
	if !ok {
		apierrors.InternalError(c, "")
		return
	}

	suggestions, err := h.taskService.SuggestSubtasks(c.Request.Context(), ctxTask.ID, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response := dto.SuggestSubtasksResponse{Suggestions: []dto.SuggestedSubtaskDTO{}}
	for _, s := range suggestions {
		response.Suggestions = append(response.Suggestions, dto.SuggestedSubtaskDTO{
			Title:       s.Title,
			Description: s.Description,
			Priority:    s.Priority,
		})
	}

	c.JSON(http.StatusOK, response)
}

// parseIDParam parses a numeric path parameter
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}
