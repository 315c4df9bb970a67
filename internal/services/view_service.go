package services

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/yukikurage/teamsync-api/internal/dto"
	"github.com/yukikurage/teamsync-api/internal/models"
	"github.com/yukikurage/teamsync-api/internal/repository"
	"gorm.io/gorm"
)

var ErrMonthInvalid = errors.New("month must be between 1 and 12")

// memberColors is the fixed palette gantt rows cycle through, keyed by
// assignee.
var memberColors = []string{"#0D9488", "#0891B2", "#10B981", "#F59E0B", "#F43F5E", "#8B5CF6"}

const dateLayout = "2006-01-02"

// ViewService builds the four read projections (kanban, gantt, calendar,
// tree/flat list) over a common task set. Redaction happens here at the
// read boundary, not in the queries, so column counts and tree shape
// stay accurate for the whole team.
type ViewService struct {
	taskRepo    repository.TaskRepository
	projectRepo repository.ProjectRepository
}

// NewViewService creates a new ViewService
func NewViewService(taskRepo repository.TaskRepository, projectRepo repository.ProjectRepository) *ViewService {
	return &ViewService{taskRepo: taskRepo, projectRepo: projectRepo}
}

// scopedFilter narrows a filter to one project or to the actor's team.
// Super admins without a team see everything. An explicitly requested
// project must itself sit within the actor's team scope.
func (s *ViewService) scopedFilter(actor models.Actor, projectID *uint64) (repository.TaskFilter, error) {
	filter := repository.TaskFilter{}
	if projectID != nil {
		project, err := s.projectRepo.FindByID(*projectID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return filter, ErrProjectNotFound
			}
			return filter, fmt.Errorf("failed to find project: %w", err)
		}
		if actor.Role != models.RoleSuperAdmin {
			if actor.TeamID == nil || project.TeamID == nil || *actor.TeamID != *project.TeamID {
				return filter, ErrProjectNotFound
			}
		}
		filter.ProjectID = projectID
		return filter, nil
	}
	if actor.Role == models.RoleSuperAdmin {
		return filter, nil
	}
	if actor.TeamID == nil {
		filter.ProjectIDs = []uint64{}
		return filter, nil
	}
	ids, err := s.projectRepo.ListIDsByTeam(*actor.TeamID)
	if err != nil {
		return filter, fmt.Errorf("failed to resolve team projects: %w", err)
	}
	filter.ProjectIDs = ids
	return filter, nil
}

// toView renders one task for the given viewer, applying the level-1
// redaction rule and refreshing the overdue flag on read.
func toView(actor models.Actor, task models.Task, now time.Time) dto.TaskView {
	if task.IsOverdueAt(now) {
		task.NormalFlag = models.OverdueFlagOverdue
	}
	if task.Level == 1 && !CanViewRoot(actor, &task) {
		return dto.ToRedactedStub(task)
	}
	return dto.ToVisibleTask(task, canMutate(actor, &task))
}

// KanbanInput selects the board's task set
type KanbanInput struct {
	ProjectID *uint64
	Search    string
	Actor     models.Actor
	Now       time.Time
}

// Kanban groups level-1 tasks into the fixed status columns. Within a
// column the viewer's own tasks come first, then urgency, then recency,
// with id as the final tiebreak so ordering is deterministic.
func (s *ViewService) Kanban(input KanbanInput) (*dto.KanbanResponse, error) {
	filter, err := s.scopedFilter(input.Actor, input.ProjectID)
	if err != nil {
		return nil, err
	}
	level := 1
	filter.Level = &level
	filter.Search = input.Search
	filter.Preload = []string{"Assignee", "CreatedBy"}

	tasks, _, err := s.taskRepo.List(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	byStatus := make(map[models.TaskStatus][]models.Task)
	for _, task := range tasks {
		byStatus[task.Status] = append(byStatus[task.Status], task)
	}

	response := &dto.KanbanResponse{Total: len(tasks)}
	for _, spec := range dto.KanbanColumns {
		column := byStatus[spec.Status]
		sortKanbanColumn(column, input.Actor.ID)

		views := make([]dto.TaskView, 0, len(column))
		for _, task := range column {
			views = append(views, toView(input.Actor, task, now))
		}
		response.Columns = append(response.Columns, dto.KanbanColumnDTO{
			Status: spec.Status,
			Title:  spec.Title,
			Color:  spec.Color,
			Count:  len(column),
			Tasks:  views,
		})
	}
	return response, nil
}

// sortKanbanColumn orders tasks by (isMine, priorityRank, created_at)
// descending, id ascending as the tiebreak.
func sortKanbanColumn(tasks []models.Task, viewerID uint64) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		aMine := a.AssigneeID != nil && *a.AssigneeID == viewerID
		bMine := b.AssigneeID != nil && *b.AssigneeID == viewerID
		if aMine != bMine {
			return aMine
		}
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// GanttInput selects and shapes the gantt row set
type GanttInput struct {
	ProjectID  *uint64
	RangeStart *time.Time
	RangeEnd   *time.Time
	ViewMode   string
	Actor      models.Actor
}

// Gantt renders level-1 tasks as chart rows. view_mode is a display
// granularity hint only; it never changes which tasks are returned.
func (s *ViewService) Gantt(input GanttInput) (*dto.GanttResponse, error) {
	viewMode := input.ViewMode
	switch viewMode {
	case "day", "week", "month":
	case "":
		viewMode = "week"
	default:
		viewMode = "week"
	}

	filter, err := s.scopedFilter(input.Actor, input.ProjectID)
	if err != nil {
		return nil, err
	}
	level := 1
	filter.Level = &level
	filter.EndAfter = input.RangeStart
	filter.StartBefore = input.RangeEnd
	filter.SortBy = "end_date"
	filter.Preload = []string{"Assignee"}

	tasks, _, err := s.taskRepo.List(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	progress, err := s.subtaskProgress(filter, tasks)
	if err != nil {
		return nil, err
	}
	colors := assigneeColors(tasks)

	response := &dto.GanttResponse{Tasks: []dto.GanttTaskDTO{}, ViewMode: viewMode}
	for _, task := range tasks {
		start, end, ok := ganttSpan(task)
		if !ok {
			continue
		}
		row := dto.GanttTaskDTO{
			ID:      task.ID,
			Title:   task.Title,
			Color:   memberColors[0],
			CanView: CanViewRoot(input.Actor, &task),
		}
		if !row.CanView {
			// Dates and progress are private detail; the row keeps its
			// slot on the chart but carries no schedule. The default
			// color avoids correlating private rows by member.
			row.AssigneeName = dto.RedactedAssigneeName
			response.Tasks = append(response.Tasks, row)
			continue
		}
		row.Start = start.Format(dateLayout)
		row.End = end.Format(dateLayout)
		row.Progress = progress[task.ID]
		if task.AssigneeID != nil {
			row.Color = colors[*task.AssigneeID]
		}
		if task.Assignee != nil {
			row.AssigneeID = task.AssigneeID
			row.AssigneeName = task.Assignee.Username
		}
		response.Tasks = append(response.Tasks, row)
	}
	return response, nil
}

// ganttSpan resolves the row's date range. Tasks with a single date
// render as one-day bars; tasks with no dates are not chartable.
func ganttSpan(task models.Task) (time.Time, time.Time, bool) {
	switch {
	case task.StartDate != nil && task.EndDate != nil:
		return *task.StartDate, *task.EndDate, true
	case task.StartDate != nil:
		return *task.StartDate, *task.StartDate, true
	case task.EndDate != nil:
		return *task.EndDate, *task.EndDate, true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// subtaskProgress computes each task's progress percentage: completed
// subtask ratio when subtasks exist, otherwise the status heuristic
// (completed=100, in_progress=50, else 0).
func (s *ViewService) subtaskProgress(scope repository.TaskFilter, tasks []models.Task) (map[uint64]int, error) {
	level := 2
	childFilter := repository.TaskFilter{
		ProjectID:  scope.ProjectID,
		ProjectIDs: scope.ProjectIDs,
		Level:      &level,
	}
	children, _, err := s.taskRepo.List(childFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtasks: %w", err)
	}

	total := make(map[uint64]int)
	completed := make(map[uint64]int)
	for _, child := range children {
		if child.ParentID == nil {
			continue
		}
		total[*child.ParentID]++
		if child.Status == models.TaskStatusCompleted {
			completed[*child.ParentID]++
		}
	}

	progress := make(map[uint64]int, len(tasks))
	for _, task := range tasks {
		if n := total[task.ID]; n > 0 {
			progress[task.ID] = int(math.Round(float64(completed[task.ID]) / float64(n) * 100))
			continue
		}
		switch task.Status {
		case models.TaskStatusCompleted:
			progress[task.ID] = 100
		case models.TaskStatusInProgress:
			progress[task.ID] = 50
		default:
			progress[task.ID] = 0
		}
	}
	return progress, nil
}

// assigneeColors assigns each assignee a stable palette color, keyed by
// ascending assignee id so the mapping survives reordering.
func assigneeColors(tasks []models.Task) map[uint64]string {
	var ids []uint64
	seen := make(map[uint64]bool)
	for _, task := range tasks {
		if task.AssigneeID != nil && !seen[*task.AssigneeID] {
			seen[*task.AssigneeID] = true
			ids = append(ids, *task.AssigneeID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	colors := make(map[uint64]string, len(ids))
	for i, id := range ids {
		colors[id] = memberColors[i%len(memberColors)]
	}
	return colors
}

// CalendarInput selects one month of level-1 tasks
type CalendarInput struct {
	Year      int
	Month     int
	ProjectID *uint64
	Actor     models.Actor
	Now       time.Time
}

// Calendar buckets level-1 tasks by day for one month. A task appears on
// every day its date span covers, clamped to the month; tasks with a
// single date appear on that day only.
func (s *ViewService) Calendar(input CalendarInput) (*dto.CalendarResponse, error) {
	if input.Month < 1 || input.Month > 12 {
		return nil, ErrMonthInvalid
	}

	monthStart := time.Date(input.Year, time.Month(input.Month), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, -1)

	filter, err := s.scopedFilter(input.Actor, input.ProjectID)
	if err != nil {
		return nil, err
	}
	level := 1
	filter.Level = &level
	filter.SpansMonth = &repository.MonthRange{Start: monthStart, End: monthEnd}
	filter.Preload = []string{"Assignee"}

	tasks, _, err := s.taskRepo.List(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	daysInMonth := monthEnd.Day()
	buckets := make([][]models.Task, daysInMonth+1)
	for _, task := range tasks {
		from, to, ok := ganttSpan(task)
		if !ok {
			continue
		}
		if from.Before(monthStart) {
			from = monthStart
		}
		if to.After(monthEnd) {
			to = monthEnd
		}
		for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
			buckets[day.Day()] = append(buckets[day.Day()], task)
		}
	}

	response := &dto.CalendarResponse{Year: input.Year, Month: input.Month}
	for day := 1; day <= daysInMonth; day++ {
		views := make([]dto.TaskView, 0, len(buckets[day]))
		for _, task := range buckets[day] {
			views = append(views, toView(input.Actor, task, now))
		}
		response.Days = append(response.Days, dto.CalendarDayDTO{
			Date:  time.Date(input.Year, time.Month(input.Month), day, 0, 0, 0, 0, time.UTC).Format(dateLayout),
			Tasks: views,
		})
	}
	return response, nil
}

// ListInput selects and shapes a tree or flat task listing
type ListInput struct {
	ProjectID  *uint64
	Statuses   []models.TaskStatus
	Priority   *models.TaskPriority
	AssigneeID *uint64
	Level      *int
	Search     string
	SortBy     string
	SortDesc   bool
	ViewType   string
	Page       int
	PageSize   int
	Actor      models.Actor
	Now        time.Time
}

// List returns a paginated page of level-1 tasks with their subtrees.
// Tree mode nests children under parents; flat mode returns every task
// in the subtree with empty children arrays. Redacted main tasks appear
// as stubs and their subtrees are not expanded, so counts stay stable
// without leaking private detail.
func (s *ViewService) List(input ListInput) (*dto.TaskListResponse, error) {
	viewType := input.ViewType
	if viewType != "flat" {
		viewType = "tree"
	}

	filter, err := s.scopedFilter(input.Actor, input.ProjectID)
	if err != nil {
		return nil, err
	}
	level := 1
	if input.Level != nil {
		level = *input.Level
	}
	filter.Level = &level
	filter.Statuses = input.Statuses
	filter.Priority = input.Priority
	filter.AssigneeID = input.AssigneeID
	filter.Search = input.Search
	filter.SortBy = input.SortBy
	filter.SortDesc = input.SortDesc
	filter.Page = input.Page
	filter.PageSize = input.PageSize
	filter.Preload = []string{"Assignee", "CreatedBy", "Project"}

	roots, total, err := s.taskRepo.List(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	totalPages := 0
	if input.PageSize > 0 {
		totalPages = int((total + int64(input.PageSize) - 1) / int64(input.PageSize))
	}
	response := &dto.TaskListResponse{
		ViewType:   viewType,
		Page:       input.Page,
		PageSize:   input.PageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}

	if level != 1 {
		views, err := s.subtaskViews(input.Actor, roots, now)
		if err != nil {
			return nil, err
		}
		response.Tasks = views
		return response, nil
	}

	views := make([]dto.TaskView, 0, len(roots))
	for _, root := range roots {
		if !CanViewRoot(input.Actor, &root) {
			if root.IsOverdueAt(now) {
				root.NormalFlag = models.OverdueFlagOverdue
			}
			views = append(views, dto.ToRedactedStub(root))
			continue
		}

		descendants, err := s.taskRepo.ListDescendants(root.FullPath())
		if err != nil {
			return nil, fmt.Errorf("failed to list subtree: %w", err)
		}

		if viewType == "flat" {
			views = append(views, toView(input.Actor, root, now))
			for _, task := range descendants {
				views = append(views, toView(input.Actor, task, now))
			}
			continue
		}
		views = append(views, s.buildTree(input.Actor, root, descendants, now))
	}

	response.Tasks = views
	return response, nil
}

// subtaskViews renders a level-filtered listing. Visibility follows the
// level-1 ancestor, and there is no subtree expansion at this depth.
func (s *ViewService) subtaskViews(actor models.Actor, tasks []models.Task, now time.Time) ([]dto.TaskView, error) {
	views := make([]dto.TaskView, 0, len(tasks))
	if len(tasks) == 0 {
		return views, nil
	}

	rootByID := make(map[uint64]models.Task)
	if !actor.IsAdmin() {
		seen := make(map[uint64]bool)
		var ids []uint64
		for _, task := range tasks {
			if a := task.AncestorIDs(); len(a) > 0 && !seen[a[0]] {
				seen[a[0]] = true
				ids = append(ids, a[0])
			}
		}
		roots, err := s.taskRepo.FindByIDs(ids)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve main tasks: %w", err)
		}
		for _, root := range roots {
			rootByID[root.ID] = root
		}
	}

	for _, task := range tasks {
		visible := actor.IsAdmin()
		if !visible {
			if a := task.AncestorIDs(); len(a) > 0 {
				if root, ok := rootByID[a[0]]; ok {
					visible = CanViewRoot(actor, &root)
				}
			}
		}
		if task.IsOverdueAt(now) {
			task.NormalFlag = models.OverdueFlagOverdue
		}
		if !visible {
			views = append(views, dto.ToRedactedStub(task))
			continue
		}
		views = append(views, dto.ToVisibleTask(task, canMutate(actor, &task)))
	}
	return views, nil
}

// buildTree nests a visible root's descendants under it recursively.
func (s *ViewService) buildTree(actor models.Actor, root models.Task, descendants []models.Task, now time.Time) dto.TaskView {
	byParent := make(map[uint64][]models.Task)
	for _, task := range descendants {
		if task.ParentID != nil {
			byParent[*task.ParentID] = append(byParent[*task.ParentID], task)
		}
	}

	var attach func(task models.Task) dto.VisibleTask
	attach = func(task models.Task) dto.VisibleTask {
		if task.IsOverdueAt(now) {
			task.NormalFlag = models.OverdueFlagOverdue
		}
		view := dto.ToVisibleTask(task, canMutate(actor, &task))
		for _, child := range byParent[task.ID] {
			view.Children = append(view.Children, attach(child))
		}
		return view
	}
	return attach(root)
}

// ProgressStats summarizes completion across the scoped set of main
// tasks. Subtasks report through their parent, not the totals.
func (s *ViewService) ProgressStats(actor models.Actor, projectID *uint64, now time.Time) (*dto.ProgressStatsResponse, error) {
	filter, err := s.scopedFilter(actor, projectID)
	if err != nil {
		return nil, err
	}
	level := 1
	filter.Level = &level

	tasks, total, err := s.taskRepo.List(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	if now.IsZero() {
		now = time.Now()
	}

	stats := &dto.ProgressStatsResponse{Total: total}
	for _, task := range tasks {
		switch task.Status {
		case models.TaskStatusCompleted:
			stats.Completed++
		case models.TaskStatusInProgress:
			stats.InProgress++
		case models.TaskStatusPending:
			stats.Pending++
		case models.TaskStatusPlanning:
			stats.Planning++
		}
		if task.IsOverdueAt(now) {
			stats.Overdue++
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = math.Round(float64(stats.Completed)/float64(stats.Total)*1000) / 10
	}
	return stats, nil
}
