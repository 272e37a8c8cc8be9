package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/teamboard/engine/internal/models"
	"github.com/teamboard/engine/internal/testutil"
	appErr "github.com/teamboard/engine/pkg/errors"
)

func TestProjectRepository_MembershipAndListing(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	repo := NewProjectRepository(db)
	u := testutil.SeedUser(t, db, "S001")

	p := &models.Project{Name: "P", CreatedBy: u.ID, Visibility: models.VisibilityPrivate}
	require.NoError(t, repo.Create(ctx, p))
	require.NoError(t, db.Create(&models.ProjectMember{ProjectID: p.ID, UserID: u.ID, Role: models.RoleLeader}).Error)

	m, err := repo.GetMembership(ctx, p.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleLeader, m.Role)

	_, err = repo.GetMembership(ctx, p.ID, uuid.New())
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	list, err := repo.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repo.Archive(ctx, p.ID))
	list, err = repo.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.True(t, appErr.IsCode(repo.Archive(ctx, uuid.New()), appErr.CodeNotFound))
}

func TestUserRepository_Lookups(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)
	seeded := testutil.SeedUser(t, db, "S042")

	var u models.User
	require.NoError(t, repo.GetByStudentID(ctx, "S042", &u))
	assert.Equal(t, seeded.ID, u.ID)
	require.NoError(t, repo.GetByEmail(ctx, "S042@example.edu", &u))

	err := repo.GetByStudentID(ctx, "nope", &u)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestBackupRepository_Lifecycle(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	repo := NewBackupRepository(db)

	b := &models.Backup{ProjectID: uuid.New(), RequestedBy: uuid.New(), Kind: models.BackupKindExport, Status: models.BackupStatusPending}
	require.NoError(t, repo.Create(ctx, b))

	require.NoError(t, repo.MarkRunning(ctx, b.ID))
	require.NoError(t, repo.MarkCompleted(ctx, b.ID, BackupOutcome{
		ArchiveKey: "p/1.zip",
		SizeBytes:  10,
		Checksum:   "abc",
		Summary:    datatypes.JSON(`{"tasks":1}`),
	}))

	var got models.Backup
	require.NoError(t, repo.GetByID(ctx, b.ID, &got))
	assert.Equal(t, models.BackupStatusCompleted, got.Status)
	assert.Equal(t, "p/1.zip", got.ArchiveKey)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)

	list, err := repo.ListByProject(ctx, b.ProjectID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.True(t, appErr.IsCode(repo.MarkFailed(ctx, uuid.New(), "x"), appErr.CodeNotFound))
}
