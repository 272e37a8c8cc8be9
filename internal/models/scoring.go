package models

import (
	"time"

	"github.com/google/uuid"
)

// StageWeight is the weight of a task inside a stage when computing stage scores.
type StageWeight struct {
	Base
	ProjectID uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id"`
	StageID   uuid.UUID `gorm:"type:uuid;index;not null" json:"stage_id"`
	TaskID    uuid.UUID `gorm:"type:uuid;index;not null" json:"task_id"`
	Weight    float64   `json:"weight"`
}

// MemberStageScore is a member's aggregated score for one stage.
type MemberStageScore struct {
	Base
	ProjectID  uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id"`
	StageID    uuid.UUID `gorm:"type:uuid;index;not null" json:"stage_id"`
	UserID     uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Score      float64   `json:"score"`
	Adjustment float64   `json:"adjustment"`
	FinalScore float64   `json:"final_score"`
}

// MemberFinalScore is a member's final project score.
type MemberFinalScore struct {
	Base
	ProjectID  uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id"`
	UserID     uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Score      float64   `json:"score"`
	Adjustment float64   `json:"adjustment"`
	FinalScore float64   `json:"final_score"`
	Comment    string    `gorm:"type:text" json:"comment"`
}

// ScoreAppeal is a member's appeal against a task score or a stage score.
type ScoreAppeal struct {
	Base
	ProjectID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"project_id"`
	TaskScoreID *uuid.UUID `gorm:"type:uuid;index" json:"task_score_id"`
	StageID     *uuid.UUID `gorm:"type:uuid;index" json:"stage_id"`
	UserID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	Reason      string     `gorm:"type:text" json:"reason"`
	Status      string     `gorm:"type:varchar(16);not null;default:pending" json:"status"`
	Response    string     `gorm:"type:text" json:"response"`
	ReviewedBy  *uuid.UUID `gorm:"type:uuid" json:"reviewed_by"`
	ReviewedAt  *time.Time `json:"reviewed_at"`
}
