package repository

import (
	"time"

	"github.com/yukikurage/teamsync-api/internal/constants"
	"github.com/yukikurage/teamsync-api/internal/models"
	"gorm.io/gorm"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(task *models.Task) error {
	return r.db.Create(task).Error
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// FindByIDs finds tasks by ID, unordered
func (r *GormTaskRepository) FindByIDs(ids []uint64) ([]models.Task, error) {
	if len(ids) == 0 {
		return []models.Task{}, nil
	}
	var tasks []models.Task
	if err := r.db.Where("id IN ?", ids).Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(filter TaskFilter) ([]models.Task, int64, error) {
	var tasks []models.Task

	query := r.db.Model(&models.Task{})

	if filter.ProjectID != nil {
		query = query.Where("tasks.project_id = ?", *filter.ProjectID)
	} else if filter.ProjectIDs != nil {
		if len(filter.ProjectIDs) == 0 {
			return []models.Task{}, 0, nil
		}
		query = query.Where("tasks.project_id IN ?", filter.ProjectIDs)
	}

	if filter.Level != nil {
		query = query.Where("tasks.level = ?", *filter.Level)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("tasks.status IN ?", filter.Statuses)
	}
	if filter.Priority != nil {
		query = query.Where("tasks.priority = ?", *filter.Priority)
	}
	if filter.AssigneeID != nil {
		query = query.Where("tasks.assignee_id = ?", *filter.AssigneeID)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("tasks.title LIKE ? OR tasks.description LIKE ?", like, like)
	}
	if filter.EndAfter != nil {
		query = query.Where("tasks.end_date >= ?", *filter.EndAfter)
	}
	if filter.StartBefore != nil {
		query = query.Where("tasks.start_date <= ?", *filter.StartBefore)
	}
	if filter.SpansMonth != nil {
		// A task belongs to a month when its span intersects it; tasks
		// missing one date use the other as a single-day span.
		m := filter.SpansMonth
		query = query.Where(
			"(tasks.start_date <= ? AND tasks.end_date >= ?)"+
				" OR (tasks.start_date IS NULL AND tasks.end_date >= ? AND tasks.end_date <= ?)"+
				" OR (tasks.end_date IS NULL AND tasks.start_date >= ? AND tasks.start_date <= ?)",
			m.End, m.Start, m.Start, m.End, m.Start, m.End,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query
	switch filter.SortBy {
	case "end_date":
		if filter.SortDesc {
			listQuery = listQuery.Order("CASE WHEN tasks.end_date IS NULL THEN 1 ELSE 0 END, tasks.end_date DESC")
		} else {
			listQuery = listQuery.Order("CASE WHEN tasks.end_date IS NULL THEN 1 ELSE 0 END, tasks.end_date ASC")
		}
	case "priority":
		order := "CASE tasks.priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END"
		if filter.SortDesc {
			listQuery = listQuery.Order(order + " DESC")
		} else {
			listQuery = listQuery.Order(order + " ASC")
		}
	default:
		if filter.SortDesc {
			listQuery = listQuery.Order("tasks.created_at DESC")
		} else {
			listQuery = listQuery.Order("tasks.created_at ASC")
		}
	}
	listQuery = listQuery.Order("tasks.id ASC")

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		listQuery = listQuery.Offset(offset).Limit(filter.PageSize)
	}

	for _, p := range filter.Preload {
		listQuery = listQuery.Preload(p)
	}

	if err := listQuery.Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// ListChildren lists a task's immediate children
func (r *GormTaskRepository) ListChildren(parentID uint64) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.Where("parent_id = ?", parentID).
		Order("created_at ASC, id ASC").
		Preload("Assignee").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListDescendants lists every task under the given subtree prefix. A
// direct child's path equals the prefix; deeper descendants extend it
// with a separator, which keeps "1" from matching "12".
func (r *GormTaskRepository) ListDescendants(fullPath string) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.Where("path = ? OR path LIKE ?", fullPath, fullPath+constants.PathSeparator+"%").
		Order("level ASC, id ASC").
		Preload("Assignee").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// HasChildren reports whether a task has at least one child
func (r *GormTaskRepository) HasChildren(taskID uint64) (bool, error) {
	var count int64
	err := r.db.Model(&models.Task{}).Where("parent_id = ?", taskID).Count(&count).Error
	return count > 0, err
}

// CountChildren counts immediate children, optionally by status
func (r *GormTaskRepository) CountChildren(parentID uint64, status *models.TaskStatus) (int64, error) {
	var count int64
	query := r.db.Model(&models.Task{}).Where("parent_id = ?", parentID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	err := query.Count(&count).Error
	return count, err
}

// UpdateWithHistory applies field updates and appends the matching
// history rows within one transaction. History is written only when the
// update itself commits.
func (r *GormTaskRepository) UpdateWithHistory(task *models.Task, histories []models.TaskHistory) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(task).Error; err != nil {
			return err
		}
		if len(histories) > 0 {
			if err := tx.Create(&histories).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Claim atomically assigns a planning task. The WHERE clause is the race
// guard: it only matches while the task is still in planning and
// unclaimed (or already claimed by the same actor), so of two concurrent
// claims exactly one sees RowsAffected == 1.
func (r *GormTaskRepository) Claim(input ClaimUpdate) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Task{}).
			Where("id = ? AND status = ? AND (assignee_id IS NULL OR assignee_id = ?)",
				input.TaskID, models.TaskStatusPlanning, input.ActorID).
			Updates(map[string]interface{}{
				"assignee_id": input.ActorID,
				"status":      input.Status,
				"start_date":  input.StartDate,
				"end_date":    input.EndDate,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrClaimLost
		}
		if len(input.Histories) > 0 {
			if err := tx.Create(&input.Histories).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkOverdue flips the normal_flag on tasks whose end date has passed.
// Date-part comparison: a task due yesterday 23:59 is overdue today.
func (r *GormTaskRepository) MarkOverdue(now time.Time) ([]models.Task, error) {
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var marked []models.Task
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("end_date < ? AND status IN ? AND normal_flag = ?",
			startOfToday,
			[]models.TaskStatus{models.TaskStatusPlanning, models.TaskStatusPending, models.TaskStatusInProgress},
			models.OverdueFlagNormal,
		).Find(&marked).Error; err != nil {
			return err
		}
		if len(marked) == 0 {
			return nil
		}
		ids := make([]uint64, len(marked))
		for i := range marked {
			ids[i] = marked[i].ID
			marked[i].NormalFlag = models.OverdueFlagOverdue
		}
		return tx.Model(&models.Task{}).Where("id IN ?", ids).
			Update("normal_flag", models.OverdueFlagOverdue).Error
	})
	if err != nil {
		return nil, err
	}
	return marked, nil
}

// ListHistory lists a task's change history, newest first
func (r *GormTaskRepository) ListHistory(taskID uint64) ([]models.TaskHistory, error) {
	var histories []models.TaskHistory
	err := r.db.Where("task_id = ?", taskID).
		Order("changed_at DESC, id DESC").
		Preload("ChangedBy").
		Find(&histories).Error
	if err != nil {
		return nil, err
	}
	return histories, nil
}
