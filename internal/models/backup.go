package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	BackupKindExport  = "export"
	BackupKindRestore = "restore"
)

const (
	BackupStatusPending   = "pending"
	BackupStatusRunning   = "running"
	BackupStatusCompleted = "completed"
	BackupStatusFailed    = "failed"
)

// Backup tracks one scheduled export or restore job.
type Backup struct {
	Base
	ProjectID    uuid.UUID      `gorm:"type:uuid;index;not null" json:"project_id"`
	RequestedBy  uuid.UUID      `gorm:"type:uuid;index;not null" json:"requested_by"`
	Kind         string         `gorm:"type:varchar(16);not null" json:"kind" validate:"oneof=export restore"`
	Status       string         `gorm:"type:varchar(16);index;not null" json:"status" validate:"oneof=pending running completed failed"`
	SourceID     *uuid.UUID     `gorm:"type:uuid" json:"source_id,omitempty"`
	Options      datatypes.JSON `gorm:"type:jsonb" json:"options"`
	ArchiveKey   string         `json:"archive_key"`
	SizeBytes    int64          `json:"size_bytes"`
	Checksum     string         `gorm:"type:varchar(64)" json:"checksum"`
	Summary      datatypes.JSON `gorm:"type:jsonb" json:"summary"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}
