package models

import "time"

// TaskHistory is the append-only field-level change log. Rows are written
// only after the owning mutation has durably applied, never updated.
type TaskHistory struct {
	ID          uint64    `gorm:"primarykey" json:"id"`
	TaskID      uint64    `gorm:"not null;index:idx_task_history_task_changed" json:"task_id"`
	ChangedByID *uint64   `json:"changed_by_id"`
	FieldName   string    `gorm:"type:varchar(50);not null" json:"field_name"`
	OldValue    string    `gorm:"type:varchar(255)" json:"old_value"`
	NewValue    string    `gorm:"type:varchar(255)" json:"new_value"`
	ChangedAt   time.Time `gorm:"autoCreateTime;index:idx_task_history_task_changed" json:"changed_at"`

	// Relations
	Task      Task  `gorm:"foreignKey:TaskID" json:"-"`
	ChangedBy *User `gorm:"foreignKey:ChangedByID" json:"changed_by,omitempty"`
}
