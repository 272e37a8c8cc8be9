package models

import "github.com/google/uuid"

// TaskNote is a versioned free-text entry owned by a member.
type TaskNote struct {
	Base
	TaskID      uuid.UUID `gorm:"type:uuid;index;not null" json:"task_id"`
	UserID      uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	VersionName string    `gorm:"not null" json:"version_name"`
	Content     string    `gorm:"type:text" json:"content"`
	IsLocked    bool      `gorm:"not null;default:false" json:"is_locked"`
}

// NoteAttachment is a file attached to a note.
type NoteAttachment struct {
	Base
	NoteID   uuid.UUID `gorm:"type:uuid;index;not null" json:"note_id"`
	FilePath string    `gorm:"not null" json:"file_path"`
	FileName string    `json:"file_name"`
	FileSize int64     `json:"file_size"`
}
