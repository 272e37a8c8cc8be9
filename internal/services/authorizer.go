package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/teamboard/engine/internal/models"
	"github.com/teamboard/engine/internal/repository"
	appErr "github.com/teamboard/engine/pkg/errors"
)

// Authorizer decides who may move a project in or out of the system.
type Authorizer interface {
	CanExport(ctx context.Context, userID, projectID uuid.UUID) error
	CanImport(ctx context.Context, userID uuid.UUID) error
}

// membershipAuthorizer lets project admins and leaders export and any
// authenticated user import.
type membershipAuthorizer struct {
	projectRepo repository.ProjectRepository
}

func NewMembershipAuthorizer(projectRepo repository.ProjectRepository) Authorizer {
	return &membershipAuthorizer{projectRepo: projectRepo}
}

var _ Authorizer = (*membershipAuthorizer)(nil)

func (a *membershipAuthorizer) CanExport(ctx context.Context, userID, projectID uuid.UUID) error {
	if userID == uuid.Nil {
		return appErr.New(appErr.CodeUnauthorized, "authentication required")
	}
	m, err := a.projectRepo.GetMembership(ctx, projectID, userID)
	if err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return appErr.New(appErr.CodeForbidden, "not a member of this project")
		}
		return err
	}
	switch m.Role {
	case models.RoleAdmin, models.RoleLeader:
		return nil
	}
	return appErr.New(appErr.CodeForbidden, "only project admins and leaders may export").WithMeta("role", m.Role)
}

func (a *membershipAuthorizer) CanImport(_ context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return appErr.New(appErr.CodeUnauthorized, "authentication required")
	}
	return nil
}
