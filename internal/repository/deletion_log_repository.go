package repository

import (
	"github.com/yukikurage/teamsync-api/internal/database"
	"github.com/yukikurage/teamsync-api/internal/models"
	"github.com/yukikurage/teamsync-api/internal/utils"
	"gorm.io/gorm"
)

// GormDeletionLogRepository is a GORM implementation of DeletionLogRepository
type GormDeletionLogRepository struct {
	db *gorm.DB
}

// NewDeletionLogRepository creates a new DeletionLogRepository
func NewDeletionLogRepository(db *gorm.DB) DeletionLogRepository {
	return &GormDeletionLogRepository{db: db}
}

// RecordAndDelete writes the snapshot, then removes the task and its
// history and attachment rows. Snapshot first: the log row is built from
// the live task before any delete runs, and the transaction keeps the
// pair atomic.
func (r *GormDeletionLogRepository) RecordAndDelete(log *models.TaskDeletionLog, taskID uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(log).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskAttachment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Task{}, taskID).Error
	})
}

// FindByID finds a deletion log entry
func (r *GormDeletionLogRepository) FindByID(id uint64) (*models.TaskDeletionLog, error) {
	var log models.TaskDeletionLog
	if err := r.db.First(&log, id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// List retrieves deletion logs with filtering and pagination
func (r *GormDeletionLogRepository) List(filter DeletionLogFilter) ([]models.TaskDeletionLog, int64, error) {
	var logs []models.TaskDeletionLog

	query := r.db.Model(&models.TaskDeletionLog{})

	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.DeletedByID != nil {
		query = query.Where("deleted_by_id = ?", *filter.DeletedByID)
	}
	if filter.DeletedFrom != nil {
		query = query.Where("deleted_at >= ?", *filter.DeletedFrom)
	}
	if filter.DeletedTo != nil {
		query = query.Where("deleted_at < ?", *filter.DeletedTo)
	}
	if filter.TitleSearch != "" {
		query = query.Where("title LIKE ?", "%"+filter.TitleSearch+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("deleted_at DESC, id DESC")
	if filter.Page > 0 && filter.PageSize > 0 {
		listQuery = listQuery.Scopes(database.Paginate(utils.PaginationParams{
			Page:   filter.Page,
			Limit:  filter.PageSize,
			Offset: (filter.Page - 1) * filter.PageSize,
		}))
	}

	if err := listQuery.Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
