package database

import (
	"fmt"

	"gorm.io/gorm"
)

// AddIndexes adds performance-critical indexes that AutoMigrate does not
// cover with the right shape, most importantly the path-prefix index that
// backs descendant queries.
func AddIndexes(db *gorm.DB) error {
	indexes := []struct {
		table   string
		name    string
		columns string
	}{
		// Subtree lookups scan on a path prefix; counts group by parent.
		{"tasks", "idx_tasks_path_prefix", "path, id"},
		{"tasks", "idx_tasks_parent_status", "parent_id, status"},

		// Kanban/list filtering and the overdue sweep.
		{"tasks", "idx_tasks_assignee_status", "assignee_id, status"},
		{"tasks", "idx_tasks_status_end_date", "status, end_date"},

		// History timeline per task.
		{"task_histories", "idx_task_history_lookup", "task_id, changed_at"},

		// Deletion log filters.
		{"task_deletion_logs", "idx_deletion_logs_title", "title"},
	}

	for _, idx := range indexes {
		var count int64
		err := db.Raw(`
			SELECT COUNT(*)
			FROM information_schema.statistics
			WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?
		`, idx.table, idx.name).Scan(&count).Error

		if err != nil {
			return fmt.Errorf("failed to check index %s: %w", idx.name, err)
		}

		if count > 0 {
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}
