package testutil

import (
	"github.com/glebarez/sqlite"
	"github.com/yukikurage/teamsync-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewInMemoryDB creates an in-memory SQLite DB and runs migrations.
func NewInMemoryDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Task{},
		&models.TaskHistory{},
		&models.TaskAttachment{},
		&models.TaskDeletionLog{},
	); err != nil {
		return nil, err
	}
	return db, nil
}
