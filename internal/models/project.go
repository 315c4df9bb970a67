package models

import "time"

// Project is the owning container for tasks. Project CRUD and membership
// live in the external project service; the task core needs the archived
// flag, team scoping and the title for deletion snapshots.
type Project struct {
	ID         uint64  `gorm:"primarykey" json:"id"`
	TeamID     *uint64 `gorm:"index" json:"team_id"`
	Title      string  `gorm:"type:varchar(100);not null" json:"title"`
	IsArchived bool    `gorm:"not null;default:false" json:"is_archived"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Tasks []Task `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
}
