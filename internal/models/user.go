package models

// User represents a platform account. StudentID is the deployment-independent
// key used to match accounts across systems.
type User struct {
	Base
	StudentID    string `gorm:"type:varchar(64);uniqueIndex;not null" json:"student_id" validate:"required"`
	Email        string `gorm:"uniqueIndex;not null" json:"email" validate:"required,email"`
	Name         string `gorm:"not null" json:"name" validate:"required"`
	PasswordHash string `gorm:"not null" json:"-"`
}
