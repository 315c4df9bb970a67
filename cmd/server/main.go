package main

import (
	"log"
	"time"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/teamsync-api/internal/auth"
	"github.com/yukikurage/teamsync-api/internal/config"
	"github.com/yukikurage/teamsync-api/internal/constants"
	"github.com/yukikurage/teamsync-api/internal/database"
	"github.com/yukikurage/teamsync-api/internal/handlers"
	"github.com/yukikurage/teamsync-api/internal/middleware"
	"github.com/yukikurage/teamsync-api/internal/notify"
	"github.com/yukikurage/teamsync-api/internal/realtime"
	"github.com/yukikurage/teamsync-api/internal/repository"
	"github.com/yukikurage/teamsync-api/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := database.AddIndexes(database.GetDB()); err != nil {
		log.Fatalf("Failed to add indexes: %v", err)
	}

	// Initialize Gin router
	r := gin.Default()

	// Setup session middleware with Redis
	redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
	store, err := redisStore.NewStore(
		10,                        // Redis pool size
		"tcp",                     // network type
		redisAddr,                 // Redis address from config
		"",                        // username (empty for default user)
		"",                        // password (empty = no password)
		[]byte(cfg.SessionSecret), // authentication key
	)
	if err != nil {
		log.Fatalf("Failed to create Redis store: %v", err)
	}
	// Configure session options based on environment
	isProduction := cfg.GinMode == "release"
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: 2, // SameSite=Lax (1=Strict, 2=Lax, 3=None)
	})
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	// Repositories
	db := database.GetDB()
	taskRepo := repository.NewTaskRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	userRepo := repository.NewUserRepository(db)
	deletionLogRepo := repository.NewDeletionLogRepository(db)

	// Initialize AI service
	var aiService *services.AIService
	if cfg.OpenAIAPIKey != "" {
		aiService = services.NewAIService(cfg.OpenAIAPIKey)
	}

	// Services
	notifier := notify.NewHubNotifier(realtime.GetHub())
	taskService := services.NewTaskService(taskRepo, projectRepo, userRepo, notifier, aiService)
	visibilityService := services.NewVisibilityService(taskRepo)
	viewService := services.NewViewService(taskRepo, projectRepo)
	deletionService := services.NewDeletionService(taskRepo, deletionLogRepo, userRepo)

	// Handlers
	taskHandler := handlers.NewTaskHandler(taskService, visibilityService)
	viewHandler := handlers.NewViewHandler(viewService)
	deletionLogHandler := handlers.NewDeletionLogHandler(deletionService)

	validator := auth.NewValidator(cfg.JWTSecret)
	requireAuth := middleware.RequireAuth(validator)

	// Daily overdue sweep, run in-process
	go runOverdueSweep(taskService)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "TeamSync API is running",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(requireAuth)
		{
			tasks.GET("", viewHandler.ListTasks)
			tasks.POST("", middleware.RequireAdmin(), taskHandler.CreateTask)
			tasks.GET("/:id", middleware.RequireTaskAccess(), taskHandler.GetTask)
			tasks.PATCH("/:id", middleware.RequireTaskAccess(), taskHandler.UpdateTask)
			tasks.DELETE("/:id", middleware.RequireTaskAccess(), middleware.RequireAdmin(), deletionLogHandler.DeleteTask)
			tasks.POST("/:id/subtasks", middleware.RequireTaskAccess(), taskHandler.CreateSubtask)
			tasks.PATCH("/:id/status", middleware.RequireTaskAccess(), taskHandler.UpdateStatus)
			tasks.POST("/:id/claim", middleware.RequireTaskAccess(), taskHandler.ClaimTask)
			tasks.GET("/:id/history", middleware.RequireTaskAccess(), taskHandler.GetHistory)
			tasks.POST("/:id/suggest-subtasks", middleware.RequireTaskAccess(), taskHandler.SuggestSubtasks)
		}

		// View routes (protected)
		views := api.Group("/views")
		views.Use(requireAuth)
		{
			views.GET("/kanban", viewHandler.Kanban)
			views.GET("/gantt", viewHandler.Gantt)
			views.GET("/calendar", viewHandler.Calendar)
			views.GET("/progress", middleware.RequireAdmin(), viewHandler.ProgressStats)
		}

		// Project-scoped routes (protected)
		projects := api.Group("/projects")
		projects.Use(requireAuth)
		{
			projects.GET("/:project_id/progress", middleware.RequireProjectAccess(), middleware.RequireAdmin(), viewHandler.ProjectProgress)
		}

		// Deletion audit routes (admin only)
		logs := api.Group("/deletion-logs")
		logs.Use(requireAuth, middleware.RequireAdmin())
		{
			logs.GET("", deletionLogHandler.ListLogs)
			logs.GET("/:id", deletionLogHandler.GetLog)
		}

		// WebSocket endpoint for live task events
		api.GET("/ws", requireAuth, handlers.WebSocketHandler)
	}

	// Start server
	log.Println("Server starting on :8080")
	if err := r.Run(":8080"); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// runOverdueSweep flags overdue tasks shortly after every midnight.
func runOverdueSweep(taskService *services.TaskService) {
	runOnce := func() {
		count, err := taskService.MarkOverdueTasks(time.Now())
		if err != nil {
			log.Printf("overdue sweep failed: %v", err)
			return
		}
		if count > 0 {
			log.Printf("overdue sweep flagged %d tasks", count)
		}
	}
	runOnce()

	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 5, 0, 0, now.Location()).AddDate(0, 0, 1)
		time.Sleep(time.Until(next))
		runOnce()
	}
}
