package models

import "github.com/google/uuid"

// TaskComment is a threaded comment on a task.
type TaskComment struct {
	Base
	TaskID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"task_id"`
	UserID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	ParentID *uuid.UUID `gorm:"type:uuid;index" json:"parent_id"`
	Content  string     `gorm:"type:text;not null" json:"content"`
}

// Message is a project chat message.
type Message struct {
	Base
	ProjectID uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
}
