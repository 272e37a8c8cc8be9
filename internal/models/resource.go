package models

import "github.com/google/uuid"

const (
	ResourceTypeFile = "file"
	ResourceTypeLink = "link"
)

// ResourceFolder groups project resources.
type ResourceFolder struct {
	Base
	ProjectID uuid.UUID  `gorm:"type:uuid;index;not null" json:"project_id"`
	Name      string     `gorm:"not null" json:"name"`
	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by"`
}

// Resource is a shared file or external link.
type Resource struct {
	Base
	ProjectID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"project_id"`
	FolderID    *uuid.UUID `gorm:"type:uuid;index" json:"folder_id"`
	Type        string     `gorm:"type:varchar(16);not null" json:"type" validate:"oneof=file link"`
	Name        string     `gorm:"not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	URL         string     `json:"url"`
	FilePath    string     `json:"file_path"`
	FileName    string     `json:"file_name"`
	FileSize    int64      `json:"file_size"`
	CreatedBy   *uuid.UUID `gorm:"type:uuid" json:"created_by"`
}
