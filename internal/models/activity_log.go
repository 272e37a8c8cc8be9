package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ActivityLog is an append-only audit entry.
type ActivityLog struct {
	Base
	ProjectID uuid.UUID      `gorm:"type:uuid;index;not null" json:"project_id"`
	UserID    *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"`
	Action    string         `gorm:"type:varchar(64);not null" json:"action"`
	Metadata  datatypes.JSON `gorm:"type:jsonb" json:"metadata"`
}
