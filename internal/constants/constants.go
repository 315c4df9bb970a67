package constants

// Context keys
const (
	ContextKeyUserID  = "user_id"
	ContextKeyActor   = "actor"
	ContextKeyTask    = "task"
	ContextKeyProject = "project"
)

// Session
const (
	SessionCookieName = "teamsync_session"
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Task hierarchy
const (
	// MaxTaskLevel caps the tree depth: 1=main, 2=subtask, 3=sub-subtask.
	MaxTaskLevel = 3

	// PathSeparator joins ancestor IDs inside a materialized path.
	// Must never appear in the decimal form of an ID.
	PathSeparator = "/"
)

// AI
const (
	MaxAISuggestedSubtasks = 20
)
