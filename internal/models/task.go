package models

import (
	"time"

	"github.com/google/uuid"
)

// Task is a unit of work inside a project, optionally attached to a stage.
// SubmissionLink holds either a plain link or a JSON encoded list of files.
type Task struct {
	Base
	ProjectID        uuid.UUID  `gorm:"type:uuid;index;not null" json:"project_id"`
	StageID          *uuid.UUID `gorm:"type:uuid;index" json:"stage_id"`
	Title            string     `gorm:"not null" json:"title"`
	Description      string     `gorm:"type:text" json:"description"`
	Status           string     `gorm:"type:varchar(32);not null;default:todo" json:"status"`
	Deadline         *time.Time `json:"deadline"`
	ExtendedDeadline *time.Time `json:"extended_deadline"`
	SubmissionLink   string     `gorm:"type:text" json:"submission_link"`
	MaxUploadSizeMB  int        `gorm:"not null;default:0" json:"max_upload_size_mb"`
	IsHidden         bool       `gorm:"not null;default:false" json:"is_hidden"`
	CreatedBy        *uuid.UUID `gorm:"type:uuid" json:"created_by"`
}

// TaskAssignment assigns a member to a task.
type TaskAssignment struct {
	Base
	TaskID uuid.UUID `gorm:"type:uuid;index;not null" json:"task_id"`
	UserID uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
}

// TaskScore is the per-member score row of a task.
type TaskScore struct {
	Base
	TaskID       uuid.UUID `gorm:"type:uuid;index;not null" json:"task_id"`
	UserID       uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	BaseScore    float64   `json:"base_score"`
	BonusScore   float64   `json:"bonus_score"`
	PenaltyScore float64   `json:"penalty_score"`
	Adjustment   float64   `json:"adjustment"`
	FinalScore   float64   `json:"final_score"`
}

// SubmissionHistory records one submission made by a member for a task.
type SubmissionHistory struct {
	Base
	TaskID      uuid.UUID `gorm:"type:uuid;index;not null" json:"task_id"`
	UserID      uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Content     string    `gorm:"type:text" json:"content"`
	FilePath    string    `json:"file_path"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size"`
	SubmittedAt time.Time `json:"submitted_at"`
}
