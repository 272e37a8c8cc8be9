package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/teamboard/engine/internal/models"
	appErr "github.com/teamboard/engine/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BackupRepository interface {
	BaseRepository[models.Backup]
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Backup, error)
	MarkRunning(ctx context.Context, backupID uuid.UUID) error
	MarkCompleted(ctx context.Context, backupID uuid.UUID, done BackupOutcome) error
	MarkFailed(ctx context.Context, backupID uuid.UUID, reason string) error
}

// BackupOutcome is what a finished job records.
type BackupOutcome struct {
	ArchiveKey string
	SizeBytes  int64
	Checksum   string
	Summary    datatypes.JSON
}

type backupRepository struct {
	BaseRepository[models.Backup]
	db *gorm.DB
}

func NewBackupRepository(db *gorm.DB) BackupRepository {
	return &backupRepository{BaseRepository: NewBaseRepository[models.Backup](db), db: db}
}

func (r *backupRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Backup, error) {
	var out []models.Backup
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list backups failed")
	}
	return out, nil
}

func (r *backupRepository) MarkRunning(ctx context.Context, backupID uuid.UUID) error {
	now := time.Now().UTC()
	return r.update(ctx, backupID, map[string]any{
		"status":     models.BackupStatusRunning,
		"started_at": &now,
	})
}

func (r *backupRepository) MarkCompleted(ctx context.Context, backupID uuid.UUID, done BackupOutcome) error {
	now := time.Now().UTC()
	return r.update(ctx, backupID, map[string]any{
		"status":        models.BackupStatusCompleted,
		"archive_key":   done.ArchiveKey,
		"size_bytes":    done.SizeBytes,
		"checksum":      done.Checksum,
		"summary":       done.Summary,
		"error_message": "",
		"completed_at":  &now,
	})
}

func (r *backupRepository) MarkFailed(ctx context.Context, backupID uuid.UUID, reason string) error {
	now := time.Now().UTC()
	return r.update(ctx, backupID, map[string]any{
		"status":        models.BackupStatusFailed,
		"error_message": reason,
		"completed_at":  &now,
	})
}

func (r *backupRepository) update(ctx context.Context, backupID uuid.UUID, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Backup{}).Where("id = ?", backupID).Updates(fields)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update backup status failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "backup not found")
	}
	return nil
}
