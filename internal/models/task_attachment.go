package models

import "time"

// TaskAttachment holds attachment metadata only. Upload, download and
// presigned URL issuance belong to the external file service.
type TaskAttachment struct {
	ID           uint64    `gorm:"primarykey" json:"id"`
	TaskID       uint64    `gorm:"not null;index" json:"task_id"`
	FileKey      string    `gorm:"type:varchar(500);not null" json:"-"`
	FileName     string    `gorm:"type:varchar(255);not null" json:"file_name"`
	FileType     string    `gorm:"type:varchar(100)" json:"file_type"`
	FileSize     int64     `gorm:"not null" json:"file_size"`
	URL          string    `gorm:"type:varchar(500)" json:"url"`
	UploadedByID *uint64   `json:"uploaded_by_id"`
	CreatedAt    time.Time `json:"created_at"`

	// Relations
	Task       Task  `gorm:"foreignKey:TaskID" json:"-"`
	UploadedBy *User `gorm:"foreignKey:UploadedByID" json:"uploaded_by,omitempty"`
}
