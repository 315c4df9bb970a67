package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/teamsync-api/internal/models"
	"github.com/yukikurage/teamsync-api/internal/notify"
	"github.com/yukikurage/teamsync-api/internal/repository"
	"github.com/yukikurage/teamsync-api/internal/testutil"
	"gorm.io/gorm"
)

// TaskServiceTestSuite defines the test suite for TaskService
type TaskServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *TaskService

	admin   models.User
	memberA models.User
	memberB models.User
	project models.Project
}

// SetupTest runs before each test
func (suite *TaskServiceTestSuite) SetupTest() {
	db, err := testutil.NewInMemoryDB()
	suite.Require().NoError(err)
	suite.db = db

	taskRepo := repository.NewTaskRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	userRepo := repository.NewUserRepository(db)
	suite.service = NewTaskService(taskRepo, projectRepo, userRepo, notify.NopNotifier{}, nil)

	teamID := uint64(1)
	suite.admin = models.User{Username: "admin", Role: models.RoleAdmin, TeamID: &teamID, IsActive: true}
	suite.memberA = models.User{Username: "alice", Role: models.RoleMember, TeamID: &teamID, IsActive: true}
	suite.memberB = models.User{Username: "bob", Role: models.RoleMember, TeamID: &teamID, IsActive: true}
	suite.Require().NoError(db.Create(&suite.admin).Error)
	suite.Require().NoError(db.Create(&suite.memberA).Error)
	suite.Require().NoError(db.Create(&suite.memberB).Error)

	suite.project = models.Project{TeamID: &teamID, Title: "Website Redesign"}
	suite.Require().NoError(db.Create(&suite.project).Error)
}

// TearDownTest runs after each test
func (suite *TaskServiceTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func actorFor(user models.User) models.Actor {
	return models.Actor{ID: user.ID, Role: user.Role, TeamID: user.TeamID}
}

func (suite *TaskServiceTestSuite) createMainTask(assigneeID *uint64) *models.Task {
	task, err := suite.service.CreateMainTask(CreateMainTaskInput{
		ProjectID:  suite.project.ID,
		Title:      "Main Task",
		Priority:   models.TaskPriorityHigh,
		AssigneeID: assigneeID,
		Actor:      actorFor(suite.admin),
	})
	suite.Require().NoError(err)
	return task
}

func (suite *TaskServiceTestSuite) createSubtask(parent *models.Task, actor models.Actor, title string) *models.Task {
	task, err := suite.service.CreateSubtask(CreateSubtaskInput{
		ParentID: parent.ID,
		Title:    title,
		Actor:    actor,
	})
	suite.Require().NoError(err)
	return task
}

func (suite *TaskServiceTestSuite) TestCreateMainTask() {
	task := suite.createMainTask(nil)

	assert.Equal(suite.T(), 1, task.Level)
	assert.Equal(suite.T(), "", task.Path)
	assert.Nil(suite.T(), task.ParentID)
	assert.Equal(suite.T(), models.TaskStatusPlanning, task.Status)
	assert.Equal(suite.T(), models.TaskPriorityHigh, task.Priority)
	assert.NotEmpty(suite.T(), task.FullPath())
}

func (suite *TaskServiceTestSuite) TestCreateMainTask_MemberForbidden() {
	_, err := suite.service.CreateMainTask(CreateMainTaskInput{
		ProjectID: suite.project.ID,
		Title:     "Main Task",
		Actor:     actorFor(suite.memberA),
	})
	assert.ErrorIs(suite.T(), err, ErrNotAuthorized)
}

func (suite *TaskServiceTestSuite) TestCreateMainTask_EmptyTitle() {
	_, err := suite.service.CreateMainTask(CreateMainTaskInput{
		ProjectID: suite.project.ID,
		Title:     "   ",
		Actor:     actorFor(suite.admin),
	})
	assert.ErrorIs(suite.T(), err, ErrTitleRequired)
}

func (suite *TaskServiceTestSuite) TestCreateMainTask_ArchivedProject() {
	suite.Require().NoError(suite.db.Model(&suite.project).Update("is_archived", true).Error)

	_, err := suite.service.CreateMainTask(CreateMainTaskInput{
		ProjectID: suite.project.ID,
		Title:     "Main Task",
		Actor:     actorFor(suite.admin),
	})
	assert.ErrorIs(suite.T(), err, ErrProjectArchived)
}

func (suite *TaskServiceTestSuite) TestCreateSubtask_PathAndLevel() {
	main := suite.createMainTask(&suite.memberA.ID)
	sub := suite.createSubtask(main, actorFor(suite.memberA), "Subtask")

	assert.Equal(suite.T(), 2, sub.Level)
	assert.Equal(suite.T(), main.FullPath(), sub.Path)
	assert.Equal(suite.T(), main.ID, *sub.ParentID)
	assert.Equal(suite.T(), suite.memberA.ID, *sub.AssigneeID)

	grand := suite.createSubtask(sub, actorFor(suite.memberA), "Sub-subtask")
	assert.Equal(suite.T(), 3, grand.Level)
	assert.Equal(suite.T(), sub.FullPath(), grand.Path)
}

func (suite *TaskServiceTestSuite) TestCreateSubtask_DepthCap() {
	main := suite.createMainTask(&suite.memberA.ID)
	sub := suite.createSubtask(main, actorFor(suite.memberA), "Subtask")
	grand := suite.createSubtask(sub, actorFor(suite.memberA), "Sub-subtask")

	_, err := suite.service.CreateSubtask(CreateSubtaskInput{
		ParentID: grand.ID,
		Title:    "Too deep",
		Actor:    actorFor(suite.memberA),
	})
	assert.ErrorIs(suite.T(), err, ErrDepthExceeded)
}

func (suite *TaskServiceTestSuite) TestCreateSubtask_NotParentAssignee() {
	main := suite.createMainTask(&suite.memberA.ID)

	_, err := suite.service.CreateSubtask(CreateSubtaskInput{
		ParentID: main.ID,
		Title:    "Subtask",
		Actor:    actorFor(suite.memberB),
	})
	assert.ErrorIs(suite.T(), err, ErrNotParentAssignee)
}

func (suite *TaskServiceTestSuite) TestAncestors_RootToParentOrder() {
	main := suite.createMainTask(&suite.memberA.ID)
	sub := suite.createSubtask(main, actorFor(suite.memberA), "Subtask")
	grand := suite.createSubtask(sub, actorFor(suite.memberA), "Sub-subtask")

	ancestors, err := suite.service.Ancestors(sub)
	suite.Require().NoError(err)
	suite.Require().Len(ancestors, 1)
	assert.Equal(suite.T(), main.ID, ancestors[0].ID)

	ancestors, err = suite.service.Ancestors(grand)
	suite.Require().NoError(err)
	suite.Require().Len(ancestors, 2)
	assert.Equal(suite.T(), main.ID, ancestors[0].ID)
	assert.Equal(suite.T(), sub.ID, ancestors[1].ID)
}

func (suite *TaskServiceTestSuite) TestDescendants_NoPrefixCollision() {
	// Main task ids like 1 and 12 must not shadow each other in the
	// path-prefix queries.
	first := suite.createMainTask(&suite.memberA.ID)

	var other *models.Task
	for {
		other = suite.createMainTask(&suite.memberA.ID)
		if other.FullPath() == first.FullPath()+"2" {
			break
		}
		suite.Require().Less(other.ID, first.ID+30)
	}

	firstChild := suite.createSubtask(first, actorFor(suite.memberA), "Child of first")
	otherChild := suite.createSubtask(other, actorFor(suite.memberA), "Child of other")

	descendants, err := suite.service.Descendants(first)
	suite.Require().NoError(err)
	suite.Require().Len(descendants, 1)
	assert.Equal(suite.T(), firstChild.ID, descendants[0].ID)

	descendants, err = suite.service.Descendants(other)
	suite.Require().NoError(err)
	suite.Require().Len(descendants, 1)
	assert.Equal(suite.T(), otherChild.ID, descendants[0].ID)
}

func (suite *TaskServiceTestSuite) TestUpdateStatus_ValidTransitions() {
	task := suite.createMainTask(&suite.memberA.ID)
	actor := actorFor(suite.memberA)

	task, err := suite.service.UpdateStatus(task.ID, models.TaskStatusPending, actor)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.TaskStatusPending, task.Status)

	task, err = suite.service.UpdateStatus(task.ID, models.TaskStatusInProgress, actor)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.TaskStatusInProgress, task.Status)

	task, err = suite.service.UpdateStatus(task.ID, models.TaskStatusPending, actor)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.TaskStatusPending, task.Status)

	task, err = suite.service.UpdateStatus(task.ID, models.TaskStatusCompleted, actor)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.TaskStatusCompleted, task.Status)
}

func (suite *TaskServiceTestSuite) TestUpdateStatus_CompletedIsTerminal() {
	task := suite.createMainTask(&suite.memberA.ID)
	actor := actorFor(suite.memberA)

	_, err := suite.service.UpdateStatus(task.ID, models.TaskStatusPending, actor)
	suite.Require().NoError(err)
	_, err = suite.service.UpdateStatus(task.ID, models.TaskStatusCompleted, actor)
	suite.Require().NoError(err)

	_, err = suite.service.UpdateStatus(task.ID, models.TaskStatusInProgress, actor)
	assert.ErrorIs(suite.T(), err, ErrTransitionInvalid)
}

func (suite *TaskServiceTestSuite) TestUpdateStatus_PlanningToCompletedRejected() {
	task := suite.createMainTask(&suite.memberA.ID)

	_, err := suite.service.UpdateStatus(task.ID, models.TaskStatusCompleted, actorFor(suite.memberA))
	assert.ErrorIs(suite.T(), err, ErrTransitionInvalid)
}

func (suite *TaskServiceTestSuite) TestUpdateStatus_UnassignedCannotLeavePlanning() {
	task := suite.createMainTask(nil)

	_, err := suite.service.UpdateStatus(task.ID, models.TaskStatusPending, actorFor(suite.admin))
	assert.ErrorIs(suite.T(), err, ErrAssigneeRequired)
}

func (suite *TaskServiceTestSuite) TestUpdateStatus_UnrecognizedValue() {
	task := suite.createMainTask(&suite.memberA.ID)

	_, err := suite.service.UpdateStatus(task.ID, models.TaskStatus("archived"), actorFor(suite.memberA))
	assert.ErrorIs(suite.T(), err, ErrStatusInvalid)
}

func (suite *TaskServiceTestSuite) TestUpdateStatus_NotAuthorized() {
	task := suite.createMainTask(&suite.memberA.ID)

	_, err := suite.service.UpdateStatus(task.ID, models.TaskStatusPending, actorFor(suite.memberB))
	assert.ErrorIs(suite.T(), err, ErrNotAuthorized)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_WritesPerFieldHistory() {
	task := suite.createMainTask(&suite.memberA.ID)

	newTitle := "Renamed"
	newPriority := models.TaskPriorityUrgent
	_, err := suite.service.UpdateTask(task.ID, UpdateTaskInput{
		Title:    &newTitle,
		Priority: &newPriority,
	}, actorFor(suite.memberA))
	suite.Require().NoError(err)

	histories, err := suite.service.ListHistory(task.ID, actorFor(suite.admin))
	suite.Require().NoError(err)
	suite.Require().Len(histories, 2)

	fields := map[string]bool{}
	for _, h := range histories {
		fields[h.FieldName] = true
	}
	assert.True(suite.T(), fields["title"])
	assert.True(suite.T(), fields["priority"])
}

func (suite *TaskServiceTestSuite) TestUpdateTask_NoHistoryOnFailure() {
	task := suite.createMainTask(&suite.memberA.ID)

	empty := ""
	_, err := suite.service.UpdateTask(task.ID, UpdateTaskInput{Title: &empty}, actorFor(suite.memberA))
	assert.ErrorIs(suite.T(), err, ErrTitleRequired)

	histories, err := suite.service.ListHistory(task.ID, actorFor(suite.admin))
	suite.Require().NoError(err)
	assert.Empty(suite.T(), histories)
}

func (suite *TaskServiceTestSuite) TestClaim_Success() {
	task := suite.createMainTask(nil)
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	endDate := now.AddDate(0, 0, 3)

	claimed, err := suite.service.Claim(ClaimInput{
		TaskID:       task.ID,
		TargetStatus: models.TaskStatusPending,
		EndDate:      &endDate,
		Actor:        actorFor(suite.memberA),
		Now:          now,
	})
	suite.Require().NoError(err)

	assert.Equal(suite.T(), suite.memberA.ID, *claimed.AssigneeID)
	assert.Equal(suite.T(), models.TaskStatusPending, claimed.Status)
	assert.True(suite.T(), claimed.StartDate.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))

	histories, err := suite.service.ListHistory(task.ID, actorFor(suite.admin))
	suite.Require().NoError(err)
	assert.Len(suite.T(), histories, 2)
}

func (suite *TaskServiceTestSuite) TestClaim_AlreadyClaimedByOther() {
	task := suite.createMainTask(nil)
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	endDate := now.AddDate(0, 0, 3)

	_, err := suite.service.Claim(ClaimInput{
		TaskID:       task.ID,
		TargetStatus: models.TaskStatusInProgress,
		EndDate:      &endDate,
		Actor:        actorFor(suite.memberA),
		Now:          now,
	})
	suite.Require().NoError(err)

	_, err = suite.service.Claim(ClaimInput{
		TaskID:       task.ID,
		TargetStatus: models.TaskStatusPending,
		EndDate:      &endDate,
		Actor:        actorFor(suite.memberB),
		Now:          now,
	})
	assert.ErrorIs(suite.T(), err, ErrOnlyPlanningClaimable)
}

func (suite *TaskServiceTestSuite) TestClaim_ForeignAssignee() {
	task := suite.createMainTask(&suite.memberA.ID)
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	endDate := now.AddDate(0, 0, 3)

	_, err := suite.service.Claim(ClaimInput{
		TaskID:       task.ID,
		TargetStatus: models.TaskStatusPending,
		EndDate:      &endDate,
		Actor:        actorFor(suite.memberB),
		Now:          now,
	})
	assert.ErrorIs(suite.T(), err, ErrAlreadyClaimed)
}

func (suite *TaskServiceTestSuite) TestClaim_PastEndDateLeavesTaskUntouched() {
	task := suite.createMainTask(nil)
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	endDate := now.AddDate(0, 0, -1)

	_, err := suite.service.Claim(ClaimInput{
		TaskID:       task.ID,
		TargetStatus: models.TaskStatusPending,
		EndDate:      &endDate,
		Actor:        actorFor(suite.memberA),
		Now:          now,
	})
	assert.ErrorIs(suite.T(), err, ErrEndDateInvalid)

	var reloaded models.Task
	suite.Require().NoError(suite.db.First(&reloaded, task.ID).Error)
	assert.Equal(suite.T(), models.TaskStatusPlanning, reloaded.Status)
	assert.Nil(suite.T(), reloaded.AssigneeID)
}

func (suite *TaskServiceTestSuite) TestClaim_SameDayEndDateAllowed() {
	task := suite.createMainTask(nil)
	now := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	endDate := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := suite.service.Claim(ClaimInput{
		TaskID:       task.ID,
		TargetStatus: models.TaskStatusPending,
		EndDate:      &endDate,
		Actor:        actorFor(suite.memberA),
		Now:          now,
	})
	assert.NoError(suite.T(), err)
}

func (suite *TaskServiceTestSuite) TestClaim_InvalidTargetStatus() {
	task := suite.createMainTask(nil)
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	endDate := now.AddDate(0, 0, 3)

	_, err := suite.service.Claim(ClaimInput{
		TaskID:       task.ID,
		TargetStatus: models.TaskStatusCompleted,
		EndDate:      &endDate,
		Actor:        actorFor(suite.memberA),
		Now:          now,
	})
	assert.ErrorIs(suite.T(), err, ErrStatusInvalid)
}

func (suite *TaskServiceTestSuite) TestMarkOverdueTasks() {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	tomorrow := now.AddDate(0, 0, 1)

	overdue := suite.createMainTask(&suite.memberA.ID)
	suite.Require().NoError(suite.db.Model(overdue).Updates(map[string]interface{}{
		"status": models.TaskStatusPending, "end_date": yesterday,
	}).Error)

	onTime := suite.createMainTask(&suite.memberA.ID)
	suite.Require().NoError(suite.db.Model(onTime).Updates(map[string]interface{}{
		"status": models.TaskStatusPending, "end_date": tomorrow,
	}).Error)

	done := suite.createMainTask(&suite.memberA.ID)
	suite.Require().NoError(suite.db.Model(done).Updates(map[string]interface{}{
		"status": models.TaskStatusCompleted, "end_date": yesterday,
	}).Error)

	count, err := suite.service.MarkOverdueTasks(now)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), 1, count)

	var reloaded models.Task
	suite.Require().NoError(suite.db.First(&reloaded, overdue.ID).Error)
	assert.Equal(suite.T(), models.OverdueFlagOverdue, reloaded.NormalFlag)

	// Already flagged tasks are not reported twice
	count, err = suite.service.MarkOverdueTasks(now)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), 0, count)
}

func (suite *TaskServiceTestSuite) TestListHistory_NotAuthorized() {
	task := suite.createMainTask(&suite.memberA.ID)

	_, err := suite.service.ListHistory(task.ID, actorFor(suite.memberB))
	assert.ErrorIs(suite.T(), err, ErrNotAuthorized)
}

func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}
