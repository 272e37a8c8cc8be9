package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/teamboard/engine/internal/models"
	"github.com/teamboard/engine/internal/repository"
	appErr "github.com/teamboard/engine/pkg/errors"
	"github.com/teamboard/engine/pkg/logger"
)

type ProjectService interface {
	CreateProject(ctx context.Context, userID uuid.UUID, input *CreateProjectInput) (*models.Project, error)
	GetProject(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	UpdateProject(ctx context.Context, projectID, userID uuid.UUID, updates *UpdateProjectInput) (*models.Project, error)
	ArchiveProject(ctx context.Context, projectID, userID uuid.UUID) error
}

type CreateProjectInput struct {
	Name        string
	Description string
	Settings    map[string]interface{}
}

type UpdateProjectInput struct {
	Name        *string
	Description *string
	Settings    map[string]interface{}
}

type projectService struct {
	db          *gorm.DB
	projectRepo repository.ProjectRepository
}

func NewProjectService(db *gorm.DB, projectRepo repository.ProjectRepository) ProjectService {
	return &projectService{db: db, projectRepo: projectRepo}
}

// Ensure interfaces are satisfied at compile time
var _ ProjectService = (*projectService)(nil)

// CreateProject creates a project and enrolls its creator as leader.
func (s *projectService) CreateProject(ctx context.Context, userID uuid.UUID, input *CreateProjectInput) (*models.Project, error) {
	logger.L().Info("create project called", zap.String("user_id", userID.String()), zap.String("name", input.Name))

	settings, err := encodeSettings(input.Settings)
	if err != nil {
		return nil, err
	}

	p := &models.Project{
		Name:        input.Name,
		Description: input.Description,
		CreatedBy:   userID,
		Visibility:  models.VisibilityPrivate,
		Settings:    settings,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "create project failed")
		}
		m := &models.ProjectMember{ProjectID: p.ID, UserID: userID, Role: models.RoleLeader, JoinedAt: time.Now().UTC()}
		if err := tx.Create(m).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "add project leader failed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("project created", zap.String("project_id", p.ID.String()), zap.String("user_id", userID.String()))
	return p, nil
}

func (s *projectService) GetProject(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error) {
	logger.L().Info("get project", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	if _, err := s.member(ctx, projectID, userID); err != nil {
		return nil, err
	}
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *projectService) ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	logger.L().Info("list projects", zap.String("user_id", userID.String()))
	return s.projectRepo.ListByUser(ctx, userID)
}

func (s *projectService) UpdateProject(ctx context.Context, projectID, userID uuid.UUID, updates *UpdateProjectInput) (*models.Project, error) {
	logger.L().Info("update project", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	if err := s.manager(ctx, projectID, userID); err != nil {
		return nil, err
	}
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		return nil, err
	}

	if updates.Name != nil {
		p.Name = *updates.Name
	}
	if updates.Description != nil {
		p.Description = *updates.Description
	}
	if updates.Settings != nil {
		settings, err := encodeSettings(updates.Settings)
		if err != nil {
			return nil, err
		}
		p.Settings = settings
	}

	if err := s.projectRepo.Update(ctx, &p); err != nil {
		return nil, err
	}

	logger.L().Info("project updated", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	return &p, nil
}

func (s *projectService) ArchiveProject(ctx context.Context, projectID, userID uuid.UUID) error {
	logger.L().Info("archive project", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	if err := s.manager(ctx, projectID, userID); err != nil {
		return err
	}
	if err := s.projectRepo.Archive(ctx, projectID); err != nil {
		return err
	}
	logger.L().Info("project archived", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	return nil
}

func (s *projectService) member(ctx context.Context, projectID, userID uuid.UUID) (*models.ProjectMember, error) {
	m, err := s.projectRepo.GetMembership(ctx, projectID, userID)
	if err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.New(appErr.CodeForbidden, "not a member of this project")
		}
		return nil, err
	}
	return m, nil
}

func (s *projectService) manager(ctx context.Context, projectID, userID uuid.UUID) error {
	m, err := s.member(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if m.Role != models.RoleAdmin && m.Role != models.RoleLeader {
		return appErr.New(appErr.CodeForbidden, "only project admins and leaders may change the project")
	}
	return nil
}

func encodeSettings(settings map[string]interface{}) (datatypes.JSON, error) {
	if settings == nil {
		return nil, nil
	}
	b, err := json.Marshal(settings)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "invalid settings json")
	}
	return datatypes.JSON(b), nil
}
