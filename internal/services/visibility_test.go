package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/teamsync-api/internal/models"
	"github.com/yukikurage/teamsync-api/internal/notify"
	"github.com/yukikurage/teamsync-api/internal/repository"
	"github.com/yukikurage/teamsync-api/internal/testutil"
	"gorm.io/gorm"
)

// VisibilityServiceTestSuite defines the test suite for VisibilityService
type VisibilityServiceTestSuite struct {
	suite.Suite
	db          *gorm.DB
	service     *VisibilityService
	taskService *TaskService

	admin   models.User
	memberA models.User
	memberB models.User
	project models.Project
}

// SetupTest runs before each test
func (suite *VisibilityServiceTestSuite) SetupTest() {
	db, err := testutil.NewInMemoryDB()
	suite.Require().NoError(err)
	suite.db = db

	taskRepo := repository.NewTaskRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	userRepo := repository.NewUserRepository(db)
	suite.service = NewVisibilityService(taskRepo)
	suite.taskService = NewTaskService(taskRepo, projectRepo, userRepo, notify.NopNotifier{}, nil)

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
func (suite *VisibilityServiceTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *VisibilityServiceTestSuite) TestCanViewFull_MainTask() {
	main, err := suite.taskService.CreateMainTask(CreateMainTaskInput{
		ProjectID:  suite.project.ID,
		Title:      "Main",
		AssigneeID: &suite.memberA.ID,
		Actor:      models.Actor{ID: suite.admin.ID, Role: models.RoleAdmin, TeamID: suite.admin.TeamID},
	})
	suite.Require().NoError(err)

	canView, err := suite.service.CanViewFull(models.Actor{ID: suite.memberA.ID, Role: models.RoleMember}, main)
	suite.Require().NoError(err)
	assert.True(suite.T(), canView)

	canView, err = suite.service.CanViewFull(models.Actor{ID: suite.memberB.ID, Role: models.RoleMember}, main)
	suite.Require().NoError(err)
	assert.False(suite.T(), canView)

	canView, err = suite.service.CanViewFull(models.Actor{ID: suite.admin.ID, Role: models.RoleAdmin}, main)
	suite.Require().NoError(err)
	assert.True(suite.T(), canView)
}

func (suite *VisibilityServiceTestSuite) TestCanViewFull_SubtaskInheritsFromMainTask() {
	main, err := suite.taskService.CreateMainTask(CreateMainTaskInput{
		ProjectID:  suite.project.ID,
		Title:      "Main",
		AssigneeID: &suite.memberA.ID,
		Actor:      models.Actor{ID: suite.admin.ID, Role: models.RoleAdmin, TeamID: suite.admin.TeamID},
	})
	suite.Require().NoError(err)

	memberActor := models.Actor{ID: suite.memberA.ID, Role: models.RoleMember, TeamID: suite.memberA.TeamID}
	sub, err := suite.taskService.CreateSubtask(CreateSubtaskInput{ParentID: main.ID, Title: "Sub", Actor: memberActor})
	suite.Require().NoError(err)
	grand, err := suite.taskService.CreateSubtask(CreateSubtaskInput{ParentID: sub.ID, Title: "Grand", Actor: memberActor})
	suite.Require().NoError(err)

	// The grandchild's visibility follows the level-1 ancestor, even if
	// the subtask's own assignee were to change later.
	canView, err := suite.service.CanViewFull(memberActor, grand)
	suite.Require().NoError(err)
	assert.True(suite.T(), canView)

	canView, err = suite.service.CanViewFull(models.Actor{ID: suite.memberB.ID, Role: models.RoleMember}, grand)
	suite.Require().NoError(err)
	assert.False(suite.T(), canView)
}

func (suite *VisibilityServiceTestSuite) TestCanEdit() {
	main, err := suite.taskService.CreateMainTask(CreateMainTaskInput{
		ProjectID:  suite.project.ID,
		Title:      "Main",
		AssigneeID: &suite.memberA.ID,
		Actor:      models.Actor{ID: suite.admin.ID, Role: models.RoleAdmin, TeamID: suite.admin.TeamID},
	})
	suite.Require().NoError(err)

	assert.True(suite.T(), suite.service.CanEdit(models.Actor{ID: suite.memberA.ID, Role: models.RoleMember}, main))
	assert.False(suite.T(), suite.service.CanEdit(models.Actor{ID: suite.memberB.ID, Role: models.RoleMember}, main))
	assert.True(suite.T(), suite.service.CanEdit(models.Actor{ID: suite.admin.ID, Role: models.RoleAdmin}, main))
}

func TestVisibilityServiceTestSuite(t *testing.T) {
	suite.Run(t, new(VisibilityServiceTestSuite))
}
