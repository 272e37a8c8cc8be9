package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

const (
	RoleAdmin  = "admin"
	RoleLeader = "leader"
	RoleMember = "member"
)

// Project is the root of the project graph.
type Project struct {
	Base
	Name        string         `gorm:"not null;index" json:"name" validate:"required"`
	Description string         `gorm:"type:text" json:"description"`
	CreatedBy   uuid.UUID      `gorm:"type:uuid;index;not null" json:"created_by"`
	Visibility  string         `gorm:"type:varchar(16);not null;default:private" json:"visibility" validate:"oneof=private public"`
	ShareToken  *string        `gorm:"type:varchar(64);uniqueIndex" json:"share_token,omitempty"`
	Settings    datatypes.JSON `gorm:"type:jsonb" json:"settings"`
	Archived    bool           `gorm:"not null;default:false;index" json:"archived"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// ProjectMember links a user to a project with a role.
type ProjectMember struct {
	Base
	ProjectID uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role" validate:"oneof=admin leader member"`
	JoinedAt  time.Time `json:"joined_at"`
}
