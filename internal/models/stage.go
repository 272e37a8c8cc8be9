package models

import (
	"time"

	"github.com/google/uuid"
)

// Stage is an ordered phase of a project.
type Stage struct {
	Base
	ProjectID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"project_id"`
	Name        string     `gorm:"not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	OrderIndex  int        `gorm:"not null;default:0" json:"order_index"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Weight      float64    `gorm:"not null;default:0" json:"weight"`
	IsHidden    bool       `gorm:"not null;default:false" json:"is_hidden"`
}
