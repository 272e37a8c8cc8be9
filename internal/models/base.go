package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the primary key and timestamps shared by every table.
// IDs are always minted locally on insert.
type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a fresh identifier when none is set.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// All returns every model that needs migration, in dependency order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Project{},
		&ProjectMember{},
		&Stage{},
		&Task{},
		&TaskAssignment{},
		&TaskScore{},
		&SubmissionHistory{},
		&TaskNote{},
		&NoteAttachment{},
		&TaskComment{},
		&Message{},
		&ResourceFolder{},
		&Resource{},
		&ActivityLog{},
		&StageWeight{},
		&MemberStageScore{},
		&MemberFinalScore{},
		&ScoreAppeal{},
		&Backup{},
	}
}
