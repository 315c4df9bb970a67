package models

import "time"

type UserRole string

const (
	RoleSuperAdmin UserRole = "super_admin"
	RoleAdmin      UserRole = "admin"
	RoleMember     UserRole = "member"
)

// IsAdmin reports whether the role carries team-wide visibility.
func (r UserRole) IsAdmin() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// Actor is the resolved request identity handed to every service call:
// who is asking, with what role, within which team.
type Actor struct {
	ID     uint64
	Role   UserRole
	TeamID *uint64
}

// IsAdmin reports whether the actor has team-wide visibility.
func (a Actor) IsAdmin() bool {
	return a.Role.IsAdmin()
}

// User mirrors the account record owned by the external identity
// provider. This core only reads it: actor resolution, assignee display
// names, and deletion-log denormalization.
type User struct {
	ID       uint64   `gorm:"primarykey" json:"id"`
	Username string   `gorm:"type:varchar(150);uniqueIndex;not null" json:"username"`
	Avatar   string   `gorm:"type:varchar(500)" json:"avatar"`
	Role     UserRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	TeamID   *uint64  `gorm:"index" json:"team_id"`
	IsActive bool     `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	AssignedTasks []Task `gorm:"foreignKey:AssigneeID" json:"-"`
	CreatedTasks  []Task `gorm:"foreignKey:CreatedByID" json:"-"`
}
