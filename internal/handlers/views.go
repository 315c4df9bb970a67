package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/teamsync-api/internal/constants"
	apierrors "github.com/yukikurage/teamsync-api/internal/errors"
	"github.com/yukikurage/teamsync-api/internal/middleware"
	"github.com/yukikurage/teamsync-api/internal/models"
	"github.com/yukikurage/teamsync-api/internal/services"
	"github.com/yukikurage/teamsync-api/internal/utils"
)

type ViewHandler struct {
	viewService *services.ViewService
}

func NewViewHandler(viewService *services.ViewService) *ViewHandler {
	return &ViewHandler{viewService: viewService}
}

// queryProjectID reads the optional project_id query parameter
func queryProjectID(c *gin.Context) (*uint64, bool) {
	raw := c.Query("project_id")
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid project_id")
		return nil, false
	}
	return &id, true
}

func queryDate(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := utils.ParseFlexibleDate(raw)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return nil, false
	}
	return &t, true
}

// Kanban returns the board grouped into the fixed status columns.
func (h *ViewHandler) Kanban(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	projectID, ok := queryProjectID(c)
	if !ok {
		return
	}

	board, err := h.viewService.Kanban(services.KanbanInput{
		ProjectID: projectID,
		Search:    c.Query("search"),
		Actor:     actor,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, board)
}

// Gantt returns level-1 tasks as chart rows.
func (h *ViewHandler) Gantt(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	projectID, ok := queryProjectID(c)
	if !ok {
		return
	}
	rangeStart, ok := queryDate(c, "start")
	if !ok {
		return
	}
	rangeEnd, ok := queryDate(c, "end")
	if !ok {
		return
	}

	chart, err := h.viewService.Gantt(services.GanttInput{
		ProjectID:  projectID,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		ViewMode:   c.Query("view_mode"),
		Actor:      actor,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, chart)
}

// Calendar returns one month of tasks bucketed by day.
func (h *ViewHandler) Calendar(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	projectID, ok := queryProjectID(c)
	if !ok {
		return
	}

	now := time.Now()
	year, err := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(now.Year())))
	if err != nil {
		apierrors.BadRequest(c, "Invalid year")
		return
	}
	month, err := strconv.Atoi(c.DefaultQuery("month", strconv.Itoa(int(now.Month()))))
	if err != nil {
		apierrors.BadRequest(c, "Invalid month")
		return
	}

	calendar, err := h.viewService.Calendar(services.CalendarInput{
		Year:      year,
		Month:     month,
		ProjectID: projectID,
		Actor:     actor,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, calendar)
}

// ListTasks returns a paginated tree or flat listing of level-1 tasks
// and their subtrees. A level filter narrows the listing to tasks at
// that depth instead.
func (h *ViewHandler) ListTasks(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	projectID, ok := queryProjectID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)

	input := services.ListInput{
		ProjectID: projectID,
		Search:    c.Query("search"),
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortDesc:  c.DefaultQuery("order", "desc") == "desc",
		ViewType:  c.DefaultQuery("view_type", "tree"),
		Page:      params.Page,
		PageSize:  params.Limit,
		Actor:     actor,
	}

	// status accepts a comma-separated list, e.g. status=pending,in_progress
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := models.TaskStatus(strings.TrimSpace(part))
			if !status.IsValid() {
				apierrors.BadRequest(c, "Invalid status")
				return
			}
			input.Statuses = append(input.Statuses, status)
		}
	}
	if raw := c.Query("priority"); raw != "" {
		priority := models.TaskPriority(raw)
		if !priority.IsValid() {
			apierrors.BadRequest(c, "Invalid priority")
			return
		}
		input.Priority = &priority
	}
	switch raw := c.Query("assignee"); raw {
	case "", "all":
	case "me":
		id := actor.ID
		input.AssigneeID = &id
	default:
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid assignee")
			return
		}
		input.AssigneeID = &id
	}
	if raw := c.Query("level"); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil || level < 1 || level > constants.MaxTaskLevel {
			apierrors.BadRequest(c, "Invalid level")
			return
		}
		input.Level = &level
	}

	list, err := h.viewService.List(input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// ProgressStats summarizes completion across the scoped task set.
func (h *ViewHandler) ProgressStats(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	projectID, ok := queryProjectID(c)
	if !ok {
		return
	}

	stats, err := h.viewService.ProgressStats(actor, projectID, time.Now())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ProjectProgress summarizes completion for the project loaded by
// RequireProjectAccess.
func (h *ViewHandler) ProjectProgress(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	raw, exists := c.Get(constants.ContextKeyProject)
	if !exists {
		apierrors.InternalError(c, "Project not loaded")
		return
	}
	project, ok := raw.(models.Project)
	if !ok {
		apierrors.InternalError(c, "Project not loaded")
		return
	}

	stats, err := h.viewService.ProgressStats(actor, &project.ID, time.Now())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
