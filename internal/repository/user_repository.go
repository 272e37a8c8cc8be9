package repository

import (
	"context"
	"errors"

	"github.com/teamboard/engine/internal/models"
	appErr "github.com/teamboard/engine/pkg/errors"
	"gorm.io/gorm"
)

type UserRepository interface {
	BaseRepository[models.User]
	GetByEmail(ctx context.Context, email string, dest *models.User) error
	GetByStudentID(ctx context.Context, studentID string, dest *models.User) error
}

type userRepository struct {
	BaseRepository[models.User]
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{BaseRepository: NewBaseRepository[models.User](db), db: db}
}

func (r *userRepository) GetByEmail(ctx context.Context, email string, dest *models.User) error {
	return r.first(ctx, "email = ?", email, dest, "get user by email failed")
}

func (r *userRepository) GetByStudentID(ctx context.Context, studentID string, dest *models.User) error {
	return r.first(ctx, "student_id = ?", studentID, dest, "get user by student id failed")
}

func (r *userRepository) first(ctx context.Context, cond string, arg any, dest *models.User, msg string) error {
	if err := r.db.WithContext(ctx).Where(cond, arg).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.New(appErr.CodeNotFound, "user not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, msg)
	}
	return nil
}
