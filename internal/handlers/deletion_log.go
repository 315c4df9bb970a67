package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/teamsync-api/internal/dto"
	apierrors "github.com/yukikurage/teamsync-api/internal/errors"
	"github.com/yukikurage/teamsync-api/internal/middleware"
	"github.com/yukikurage/teamsync-api/internal/repository"
	"github.com/yukikurage/teamsync-api/internal/services"
	"github.com/yukikurage/teamsync-api/internal/utils"
)

type DeletionLogHandler struct {
	deletionService *services.DeletionService
}

func NewDeletionLogHandler(deletionService *services.DeletionService) *DeletionLogHandler {
	return &DeletionLogHandler{deletionService: deletionService}
}

// DeleteTask snapshots and removes the task in context. Blocked while
// subtasks exist; deletion proceeds leaf-first.
func (h *DeletionLogHandler) DeleteTask(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	task, ok := taskFromContext(c)
	if !ok {
		apierrors.InternalError(c, "")
		return
	}

	// Reason body is optional
	var req dto.DeleteTaskRequest
	_ = c.ShouldBindJSON(&req)

	log, err := h.deletionService.DeleteTask(task.ID, actor, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Task deleted",
		"deletion_log": dto.ToDeletionLogDTO(*log),
	})
}

// ListLogs lists deletion audit entries, filterable by project, deleter,
// date range and title. Admin only.
func (h *DeletionLogHandler) ListLogs(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	filter := repository.DeletionLogFilter{
		TitleSearch: c.Query("search"),
		Page:        params.Page,
		PageSize:    params.Limit,
	}

	if raw := c.Query("project_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid project_id")
			return
		}
		filter.ProjectID = &id
	}
	if raw := c.Query("deleted_by"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid deleted_by")
			return
		}
		filter.DeletedByID = &id
	}
	if raw := c.Query("from"); raw != "" {
		t, err := utils.ParseFlexibleDate(raw)
		if err != nil {
			apierrors.BadRequest(c, err.Error())
			return
		}
		filter.DeletedFrom = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := utils.ParseFlexibleDate(raw)
		if err != nil {
			apierrors.BadRequest(c, err.Error())
			return
		}
		// Inclusive upper bound: the whole given day is in range
		end := utils.StartOfDay(t).AddDate(0, 0, 1)
		filter.DeletedTo = &end
	}

	logs, total, err := h.deletionService.ListLogs(filter, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	items := make([]dto.DeletionLogDTO, 0, len(logs))
	for _, log := range logs {
		items = append(items, dto.ToDeletionLogDTO(log))
	}

	totalPages := 0
	if params.Limit > 0 {
		totalPages = int((total + int64(params.Limit) - 1) / int64(params.Limit))
	}
	c.JSON(http.StatusOK, dto.DeletionLogListResponse{
		Logs:       items,
		Page:       params.Page,
		PageSize:   params.Limit,
		TotalCount: total,
		TotalPages: totalPages,
	})
}

// GetLog returns one deletion audit entry. Admin only.
func (h *DeletionLogHandler) GetLog(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	log, err := h.deletionService.GetLog(id, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deletion_log": dto.ToDeletionLogDTO(*log)})
}
