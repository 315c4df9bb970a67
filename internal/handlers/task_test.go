package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/teamsync-api/internal/constants"
	"github.com/yukikurage/teamsync-api/internal/models"
	"github.com/yukikurage/teamsync-api/internal/notify"
	"github.com/yukikurage/teamsync-api/internal/repository"
	"github.com/yukikurage/teamsync-api/internal/services"
	"github.com/yukikurage/teamsync-api/internal/testutil"
	"gorm.io/gorm"
)

// TaskHandlerTestSuite defines the test suite for TaskHandler
type TaskHandlerTestSuite struct {
	suite.Suite
	db              *gorm.DB
	handler         *TaskHandler
	deletionHandler *DeletionLogHandler
	taskService     *services.TaskService

	admin   models.User
	memberA models.User
	memberB models.User
	project models.Project
}

// SetupTest runs before each test
func (suite *TaskHandlerTestSuite) SetupTest() {
	db, err := testutil.NewInMemoryDB()
	suite.Require().NoError(err)
	suite.db = db

	taskRepo := repository.NewTaskRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	userRepo := repository.NewUserRepository(db)
	deletionLogRepo := repository.NewDeletionLogRepository(db)

	suite.taskService = services.NewTaskService(taskRepo, projectRepo, userRepo, notify.NopNotifier{}, nil)
	visibilityService := services.NewVisibilityService(taskRepo)
	deletionService := services.NewDeletionService(taskRepo, deletionLogRepo, userRepo)

	suite.handler = NewTaskHandler(suite.taskService, visibilityService)
	suite.deletionHandler = NewDeletionLogHandler(deletionService)

	teamID := uint64(1)
	suite.admin = models.User{Username: "admin", Role: models.RoleAdmin, TeamID: &teamID, IsActive: true}
	suite.memberA = models.User{Username: "alice", Role: models.RoleMember, TeamID: &teamID, IsActive: true}
	suite.memberB = models.User{Username: "bob", Role: models.RoleMember, TeamID: &teamID, IsActive: true}
	suite.Require().NoError(db.Create(&suite.admin).Error)
	suite.Require().NoError(db.Create(&suite.memberA).Error)
	suite.Require().NoError(db.Create(&suite.memberB).Error)

	suite.project = models.Project{TeamID: &teamID, Title: "Website Redesign"}
	suite.Require().NoError(db.Create(&suite.project).Error)

	gin.SetMode(gin.TestMode)
}

// TearDownTest runs after each test
func (suite *TaskHandlerTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *TaskHandlerTestSuite) actorFor(user models.User) models.Actor {
	return models.Actor{ID: user.ID, Role: user.Role, TeamID: user.TeamID}
}

// createAuthContext builds a gin context with the actor already resolved,
// simulating RequireAuth
func (suite *TaskHandlerTestSuite) createAuthContext(method, url string, body []byte, actor models.Actor) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, url, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(constants.ContextKeyActor, actor)
	c.Set(constants.ContextKeyUserID, actor.ID)

	return c, w
}

// setTaskContext simulates RequireTaskAccess
func (suite *TaskHandlerTestSuite) setTaskContext(c *gin.Context, task models.Task) {
	c.Set(constants.ContextKeyTask, task)
}

func (suite *TaskHandlerTestSuite) createMainTask(assigneeID *uint64) *models.Task {
	task, err := suite.taskService.CreateMainTask(services.CreateMainTaskInput{
		ProjectID:  suite.project.ID,
		Title:      "Main Task",
		AssigneeID: assigneeID,
		Actor:      suite.actorFor(suite.admin),
	})
	suite.Require().NoError(err)
	return task
}

func (suite *TaskHandlerTestSuite) TestCreateTask_Success() {
	body, _ := json.Marshal(map[string]interface{}{
		"project_id": suite.project.ID,
		"title":      "New Task",
		"priority":   "high",
	})
	c, w := suite.createAuthContext("POST", "/api/tasks", body, suite.actorFor(suite.admin))

	suite.handler.CreateTask(c)

	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	var response map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	task := response["task"].(map[string]interface{})
	assert.Equal(suite.T(), "New Task", task["title"])
	assert.Equal(suite.T(), "planning", task["status"])
	assert.Equal(suite.T(), float64(1), task["level"])
}

func (suite *TaskHandlerTestSuite) TestCreateTask_MemberForbidden() {
	body, _ := json.Marshal(map[string]interface{}{
		"project_id": suite.project.ID,
		"title":      "New Task",
	})
	c, w := suite.createAuthContext("POST", "/api/tasks", body, suite.actorFor(suite.memberA))

	suite.handler.CreateTask(c)

	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

func (suite *TaskHandlerTestSuite) TestGetTask_RedactedForNonAssignee() {
	task := suite.createMainTask(&suite.memberB.ID)

	c, w := suite.createAuthContext("GET", "/api/tasks/1", nil, suite.actorFor(suite.memberA))
	suite.setTaskContext(c, *task)

	suite.handler.GetTask(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	view := response["task"].(map[string]interface{})

	assert.Equal(suite.T(), false, view["can_view"])
	assert.Equal(suite.T(), "该任务未分配给您，无权查看详情", view["message"])
	assert.Equal(suite.T(), "Main Task", view["title"])

	assignee := view["assignee"].(map[string]interface{})
	assert.Nil(suite.T(), assignee["id"])
	assert.Equal(suite.T(), "🔒 私有任务", assignee["username"])

	// Suppressed fields are absent, not nulled
	_, hasDescription := view["description"]
	assert.False(suite.T(), hasDescription)
	_, hasEndDate := view["end_date"]
	assert.False(suite.T(), hasEndDate)
}

func (suite *TaskHandlerTestSuite) TestGetTask_FullDetailWithAncestors() {
	main := suite.createMainTask(&suite.memberA.ID)
	memberActor := suite.actorFor(suite.memberA)

	sub, err := suite.taskService.CreateSubtask(services.CreateSubtaskInput{ParentID: main.ID, Title: "Sub", Actor: memberActor})
	suite.Require().NoError(err)
	grand, err := suite.taskService.CreateSubtask(services.CreateSubtaskInput{ParentID: sub.ID, Title: "Grand", Actor: memberActor})
	suite.Require().NoError(err)

	c, w := suite.createAuthContext("GET", "/api/tasks/3", nil, memberActor)
	suite.setTaskContext(c, *grand)

	suite.handler.GetTask(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	view := response["task"].(map[string]interface{})
	assert.Equal(suite.T(), true, view["can_view"])

	ancestors := response["ancestors"].([]interface{})
	suite.Require().Len(ancestors, 2)
	first := ancestors[0].(map[string]interface{})
	second := ancestors[1].(map[string]interface{})
	assert.Equal(suite.T(), "Main Task", first["title"])
	assert.Equal(suite.T(), "Sub", second["title"])
}

func (suite *TaskHandlerTestSuite) TestClaimTask_Success() {
	task := suite.createMainTask(nil)

	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	body, _ := json.Marshal(map[string]string{
		"target_status": "pending",
		"end_date":      tomorrow,
	})
	c, w := suite.createAuthContext("POST", "/api/tasks/1/claim", body, suite.actorFor(suite.memberA))
	suite.setTaskContext(c, *task)

	suite.handler.ClaimTask(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	view := response["task"].(map[string]interface{})
	assert.Equal(suite.T(), "pending", view["status"])
	assignee := view["assignee"].(map[string]interface{})
	assert.Equal(suite.T(), float64(suite.memberA.ID), assignee["id"])
}

func (suite *TaskHandlerTestSuite) TestClaimTask_ConflictWhenClaimedByOther() {
	task := suite.createMainTask(&suite.memberB.ID)

	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	body, _ := json.Marshal(map[string]string{
		"target_status": "pending",
		"end_date":      tomorrow,
	})
	c, w := suite.createAuthContext("POST", "/api/tasks/1/claim", body, suite.actorFor(suite.memberA))
	suite.setTaskContext(c, *task)

	suite.handler.ClaimTask(c)

	assert.Equal(suite.T(), http.StatusConflict, w.Code)
}

func (suite *TaskHandlerTestSuite) TestClaimTask_PastEndDateRejected() {
	task := suite.createMainTask(nil)

	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	body, _ := json.Marshal(map[string]string{
		"target_status": "pending",
		"end_date":      yesterday,
	})
	c, w := suite.createAuthContext("POST", "/api/tasks/1/claim", body, suite.actorFor(suite.memberA))
	suite.setTaskContext(c, *task)

	suite.handler.ClaimTask(c)

	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestUpdateStatus_InvalidTransition() {
	task := suite.createMainTask(&suite.memberA.ID)

	body, _ := json.Marshal(map[string]string{"status": "completed"})
	c, w := suite.createAuthContext("PATCH", "/api/tasks/1/status", body, suite.actorFor(suite.memberA))
	suite.setTaskContext(c, *task)

	suite.handler.UpdateStatus(c)

	assert.Equal(suite.T(), http.StatusUnprocessableEntity, w.Code)
}

func (suite *TaskHandlerTestSuite) TestDeleteTask_BlockedWhileSubtasksExist() {
	main := suite.createMainTask(&suite.memberA.ID)
	_, err := suite.taskService.CreateSubtask(services.CreateSubtaskInput{
		ParentID: main.ID, Title: "Sub", Actor: suite.actorFor(suite.memberA),
	})
	suite.Require().NoError(err)

	c, w := suite.createAuthContext("DELETE", "/api/tasks/1", nil, suite.actorFor(suite.admin))
	suite.setTaskContext(c, *main)

	suite.deletionHandler.DeleteTask(c)

	assert.Equal(suite.T(), http.StatusUnprocessableEntity, w.Code)
}

func (suite *TaskHandlerTestSuite) TestDeleteTask_Success() {
	main := suite.createMainTask(&suite.memberA.ID)

	body, _ := json.Marshal(map[string]string{"reason": "duplicate"})
	c, w := suite.createAuthContext("DELETE", "/api/tasks/1", body, suite.actorFor(suite.admin))
	suite.setTaskContext(c, *main)

	suite.deletionHandler.DeleteTask(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	log := response["deletion_log"].(map[string]interface{})
	assert.Equal(suite.T(), "Main Task", log["title"])
	assert.Equal(suite.T(), "duplicate", log["deletion_reason"])
	assert.Equal(suite.T(), "admin", log["deleted_by_name"])

	var remaining int64
	suite.Require().NoError(suite.db.Model(&models.Task{}).Count(&remaining).Error)
	assert.Equal(suite.T(), int64(0), remaining)
}

func (suite *TaskHandlerTestSuite) TestGetHistory_ForbiddenForOutsider() {
	task := suite.createMainTask(&suite.memberB.ID)

	c, w := suite.createAuthContext("GET", "/api/tasks/1/history", nil, suite.actorFor(suite.memberA))
	suite.setTaskContext(c, *task)

	suite.handler.GetHistory(c)

	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

func TestTaskHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TaskHandlerTestSuite))
}
