package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/teamsync-api/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db, mock
}

func claimInput() ClaimUpdate {
	end := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	return ClaimUpdate{
		TaskID:    1,
		ActorID:   2,
		Status:    models.TaskStatusPending,
		StartDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   end,
	}
}

// The claim must be a single conditional UPDATE: the WHERE clause keeps
// the task-still-claimable check and the write atomic.
func TestClaim_ConditionalUpdateGuard(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTaskRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE .tasks. SET .+WHERE id = \? AND status = \? AND \(assignee_id IS NULL OR assignee_id = \?\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Claim(claimInput())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// When the guard matches no row another actor won the race; nothing may
// be written and the transaction must roll back.
func TestClaim_LostRaceRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTaskRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE .tasks. SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Claim(claimInput())
	assert.ErrorIs(t, err, ErrClaimLost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// History rows ride in the same transaction as the claim update.
func TestClaim_WritesHistoryInSameTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTaskRepository(db)

	input := claimInput()
	actorID := input.ActorID
	input.Histories = []models.TaskHistory{{
		TaskID:      input.TaskID,
		ChangedByID: &actorID,
		FieldName:   "status",
		OldValue:    string(models.TaskStatusPlanning),
		NewValue:    string(models.TaskStatusPending),
	}}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE .tasks. SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO .task_histories.`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Claim(input)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
