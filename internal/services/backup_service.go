package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/teamboard/engine/internal/backup"
	"github.com/teamboard/engine/internal/backup/manifest"
	"github.com/teamboard/engine/internal/metrics"
	"github.com/teamboard/engine/internal/models"
	"github.com/teamboard/engine/internal/repository"
	"github.com/teamboard/engine/internal/storage"
	appErr "github.com/teamboard/engine/pkg/errors"
	"github.com/teamboard/engine/pkg/logger"
)

// Task type names served by the worker.
const (
	TaskBackupExport  = "backup:export"
	TaskBackupRestore = "backup:restore"
)

// BackupJobPayload is the task payload for scheduled export and restore jobs.
type BackupJobPayload struct {
	BackupID string `json:"backup_id"`
}

// TaskEnqueuer is the part of *asynq.Client the service needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type BackupService interface {
	// Direct, caller-awaited runs
	Export(ctx context.Context, projectID, userID uuid.UUID, opts backup.Options) (*backup.ExportResult, error)
	Import(ctx context.Context, userID uuid.UUID, blob []byte) (*backup.ImportResult, error)

	// Stored backups
	ScheduleBackup(ctx context.Context, projectID, userID uuid.UUID, opts backup.Options) (*models.Backup, error)
	ScheduleRestore(ctx context.Context, backupID, userID uuid.UUID) (*models.Backup, error)
	ListBackups(ctx context.Context, projectID, userID uuid.UUID) ([]models.Backup, error)
	GetBackup(ctx context.Context, backupID, userID uuid.UUID) (*models.Backup, error)

	// Worker entry points
	RunExportJob(ctx context.Context, backupID uuid.UUID) error
	RunRestoreJob(ctx context.Context, backupID uuid.UUID) error
}

// BackupServiceOptions carries the knobs read from config.
type BackupServiceOptions struct {
	Bucket          string
	MaxArchiveBytes int64
	ExportRetries   int
}

type backupService struct {
	exporter   *backup.Exporter
	importer   *backup.Importer
	backupRepo repository.BackupRepository
	objects    storage.ObjectStore
	auth       Authorizer
	queue      TaskEnqueuer
	opts       BackupServiceOptions
}

func NewBackupService(exporter *backup.Exporter, importer *backup.Importer, backupRepo repository.BackupRepository, objects storage.ObjectStore, auth Authorizer, queue TaskEnqueuer, opts BackupServiceOptions) BackupService {
	return &backupService{
		exporter:   exporter,
		importer:   importer,
		backupRepo: backupRepo,
		objects:    objects,
		auth:       auth,
		queue:      queue,
		opts:       opts,
	}
}

var _ BackupService = (*backupService)(nil)

func (s *backupService) Export(ctx context.Context, projectID, userID uuid.UUID, opts backup.Options) (*backup.ExportResult, error) {
	logger.L().Info("export project", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	if err := s.auth.CanExport(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.export(ctx, projectID, opts)
}

func (s *backupService) export(ctx context.Context, projectID uuid.UUID, opts backup.Options) (res *backup.ExportResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRun(metrics.OpExport, start, err) }()

	res, err = s.exporter.Export(ctx, projectID, opts, progressLogger("export", projectID))
	if err != nil {
		return nil, err
	}
	metrics.ObserveArchive(res.SizeBytes)
	metrics.AddFilesFailed(metrics.OpExport, res.FilesFailed)
	return res, nil
}

func (s *backupService) Import(ctx context.Context, userID uuid.UUID, blob []byte) (*backup.ImportResult, error) {
	logger.L().Info("import archive", zap.String("user_id", userID.String()), zap.Int("size_bytes", len(blob)))
	if err := s.auth.CanImport(ctx, userID); err != nil {
		return nil, err
	}
	if s.opts.MaxArchiveBytes > 0 && int64(len(blob)) > s.opts.MaxArchiveBytes {
		return nil, appErr.New(appErr.CodeInvalid, "archive exceeds the size limit").WithMeta("max_bytes", s.opts.MaxArchiveBytes)
	}
	return s.restore(ctx, blob, userID)
}

func (s *backupService) restore(ctx context.Context, blob []byte, actorID uuid.UUID) (res *backup.ImportResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRun(metrics.OpImport, start, err) }()

	res, err = s.importer.Import(ctx, blob, actorID, progressLogger("import", uuid.Nil))
	if err != nil {
		return nil, err
	}
	recordRestored(res)
	return res, nil
}

func (s *backupService) ScheduleBackup(ctx context.Context, projectID, userID uuid.UUID, opts backup.Options) (*models.Backup, error) {
	logger.L().Info("schedule backup", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	if err := s.auth.CanExport(ctx, userID, projectID); err != nil {
		return nil, err
	}
	ob, err := json.Marshal(opts)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "invalid export options")
	}

	b := &models.Backup{
		ProjectID:   projectID,
		RequestedBy: userID,
		Kind:        models.BackupKindExport,
		Status:      models.BackupStatusPending,
		Options:     datatypes.JSON(ob),
	}
	if err := s.backupRepo.Create(ctx, b); err != nil {
		return nil, err
	}

	retries := s.opts.ExportRetries
	if retries <= 0 {
		retries = 3
	}
	if err := s.enqueue(ctx, TaskBackupExport, b, asynq.MaxRetry(retries)); err != nil {
		return nil, err
	}
	logger.L().Info("backup scheduled", zap.String("backup_id", b.ID.String()), zap.String("project_id", projectID.String()))
	return b, nil
}

func (s *backupService) ScheduleRestore(ctx context.Context, backupID, userID uuid.UUID) (*models.Backup, error) {
	logger.L().Info("schedule restore", zap.String("backup_id", backupID.String()), zap.String("user_id", userID.String()))
	var src models.Backup
	if err := s.backupRepo.GetByID(ctx, backupID, &src); err != nil {
		return nil, err
	}
	// Reading a stored archive discloses the whole source project.
	if err := s.auth.CanExport(ctx, userID, src.ProjectID); err != nil {
		return nil, err
	}
	if err := s.auth.CanImport(ctx, userID); err != nil {
		return nil, err
	}
	if src.Kind != models.BackupKindExport || src.Status != models.BackupStatusCompleted {
		return nil, appErr.New(appErr.CodeConflict, "only completed backups can be restored").
			WithMeta("kind", src.Kind).WithMeta("status", src.Status)
	}

	b := &models.Backup{
		ProjectID:   src.ProjectID,
		RequestedBy: userID,
		Kind:        models.BackupKindRestore,
		Status:      models.BackupStatusPending,
		SourceID:    &src.ID,
	}
	if err := s.backupRepo.Create(ctx, b); err != nil {
		return nil, err
	}
	// An import always creates a new project, so a restore is never retried.
	if err := s.enqueue(ctx, TaskBackupRestore, b, asynq.MaxRetry(0)); err != nil {
		return nil, err
	}
	logger.L().Info("restore scheduled", zap.String("backup_id", b.ID.String()), zap.String("source_id", src.ID.String()))
	return b, nil
}

func (s *backupService) enqueue(ctx context.Context, taskType string, b *models.Backup, opts ...asynq.Option) error {
	pb, err := json.Marshal(BackupJobPayload{BackupID: b.ID.String()})
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "marshal task payload failed")
	}
	if s.queue == nil {
		logger.L().Warn("asynq client not configured, skipping enqueue", zap.String("backup_id", b.ID.String()))
		return nil
	}
	if _, err := s.queue.EnqueueContext(ctx, asynq.NewTask(taskType, pb), opts...); err != nil {
		logger.L().Error("enqueue backup task failed", zap.Error(err), zap.String("backup_id", b.ID.String()), zap.String("task", taskType))
		if merr := s.backupRepo.MarkFailed(ctx, b.ID, "enqueue failed"); merr != nil {
			logger.L().Warn("mark backup failed", zap.Error(merr), zap.String("backup_id", b.ID.String()))
		}
		return appErr.Wrap(err, appErr.CodeUnavailable, "enqueue backup task failed")
	}
	return nil
}

func (s *backupService) ListBackups(ctx context.Context, projectID, userID uuid.UUID) ([]models.Backup, error) {
	if err := s.auth.CanExport(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.backupRepo.ListByProject(ctx, projectID)
}

func (s *backupService) GetBackup(ctx context.Context, backupID, userID uuid.UUID) (*models.Backup, error) {
	var b models.Backup
	if err := s.backupRepo.GetByID(ctx, backupID, &b); err != nil {
		return nil, err
	}
	if b.RequestedBy != userID {
		if err := s.auth.CanExport(ctx, userID, b.ProjectID); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

// RunExportJob runs one scheduled export and stores the archive. A completed
// job is left alone so redelivered tasks do not export twice.
func (s *backupService) RunExportJob(ctx context.Context, backupID uuid.UUID) error {
	var b models.Backup
	if err := s.backupRepo.GetByID(ctx, backupID, &b); err != nil {
		return err
	}
	if b.Kind != models.BackupKindExport {
		return appErr.New(appErr.CodeInvalid, "backup is not an export job")
	}
	if b.Status == models.BackupStatusCompleted {
		logger.L().Info("export job already completed", zap.String("backup_id", backupID.String()))
		return nil
	}

	var opts backup.Options
	if len(b.Options) > 0 {
		if err := json.Unmarshal(b.Options, &opts); err != nil {
			return s.fail(ctx, backupID, appErr.Wrap(err, appErr.CodeInvalid, "invalid stored export options"))
		}
	}
	if err := s.backupRepo.MarkRunning(ctx, backupID); err != nil {
		return err
	}

	res, err := s.export(ctx, b.ProjectID, opts)
	if err != nil {
		return s.fail(ctx, backupID, err)
	}

	key := fmt.Sprintf("%s/%s.zip", b.ProjectID, b.ID)
	if err := s.objects.Put(ctx, s.opts.Bucket, key, res.Archive, "application/zip"); err != nil {
		return s.fail(ctx, backupID, err)
	}
	summary, err := json.Marshal(exportSummary{Filename: res.Filename, Tally: res.Tally, FilesFailed: res.FilesFailed})
	if err != nil {
		return s.fail(ctx, backupID, appErr.Wrap(err, appErr.CodeInternal, "marshal summary failed"))
	}
	if err := s.backupRepo.MarkCompleted(ctx, backupID, repository.BackupOutcome{
		ArchiveKey: key,
		SizeBytes:  res.SizeBytes,
		Checksum:   res.Checksum,
		Summary:    datatypes.JSON(summary),
	}); err != nil {
		return err
	}
	logger.L().Info("export job completed", zap.String("backup_id", backupID.String()), zap.String("archive_key", key), zap.Int64("size_bytes", res.SizeBytes))
	return nil
}

// RunRestoreJob imports the archive of the job's source backup. Only pending
// jobs run.
func (s *backupService) RunRestoreJob(ctx context.Context, backupID uuid.UUID) error {
	var b models.Backup
	if err := s.backupRepo.GetByID(ctx, backupID, &b); err != nil {
		return err
	}
	if b.Kind != models.BackupKindRestore || b.SourceID == nil {
		return appErr.New(appErr.CodeInvalid, "backup is not a restore job")
	}
	if b.Status != models.BackupStatusPending {
		logger.L().Info("restore job not pending, skipping", zap.String("backup_id", backupID.String()), zap.String("status", b.Status))
		return nil
	}
	if err := s.backupRepo.MarkRunning(ctx, backupID); err != nil {
		return err
	}

	var src models.Backup
	if err := s.backupRepo.GetByID(ctx, *b.SourceID, &src); err != nil {
		return s.fail(ctx, backupID, err)
	}
	blob, err := s.objects.Get(ctx, s.opts.Bucket, src.ArchiveKey)
	if err != nil {
		return s.fail(ctx, backupID, err)
	}
	res, err := s.restore(ctx, blob, b.RequestedBy)
	if err != nil {
		return s.fail(ctx, backupID, err)
	}

	summary, err := json.Marshal(res)
	if err != nil {
		return s.fail(ctx, backupID, appErr.Wrap(err, appErr.CodeInternal, "marshal summary failed"))
	}
	if err := s.backupRepo.MarkCompleted(ctx, backupID, repository.BackupOutcome{
		ArchiveKey: src.ArchiveKey,
		SizeBytes:  int64(len(blob)),
		Checksum:   src.Checksum,
		Summary:    datatypes.JSON(summary),
	}); err != nil {
		return err
	}
	logger.L().Info("restore job completed", zap.String("backup_id", backupID.String()), zap.String("project_id", res.ProjectID.String()))
	return nil
}

func (s *backupService) fail(ctx context.Context, backupID uuid.UUID, cause error) error {
	logger.L().Error("backup job failed", zap.Error(cause), zap.String("backup_id", backupID.String()))
	if err := s.backupRepo.MarkFailed(ctx, backupID, cause.Error()); err != nil {
		logger.L().Warn("mark backup failed", zap.Error(err), zap.String("backup_id", backupID.String()))
	}
	return cause
}

type exportSummary struct {
	Filename    string         `json:"filename"`
	Tally       manifest.Tally `json:"tally"`
	FilesFailed int            `json:"files_failed"`
}

func progressLogger(op string, projectID uuid.UUID) backup.Progress {
	return func(percent int, phase string) {
		logger.L().Debug("backup progress",
			zap.String("op", op),
			zap.String("project_id", projectID.String()),
			zap.Int("percent", percent),
			zap.String("phase", phase))
	}
}

func recordRestored(res *backup.ImportResult) {
	t := res.Restored
	for kind, n := range map[string]int{
		"members":       t.Members,
		"stages":        t.Stages,
		"tasks":         t.Tasks,
		"assignments":   t.Assignments,
		"scores":        t.Scores,
		"submissions":   t.Submissions,
		"files":         t.Files,
		"messages":      t.Messages,
		"notes":         t.Notes,
		"attachments":   t.Attachments,
		"comments":      t.Comments,
		"folders":       t.Folders,
		"resources":     t.Resources,
		"activity_logs": t.Activity,
		"score_rows":    t.ScoreRows,
	} {
		metrics.AddRestored(kind, n)
	}
	metrics.AddDegraded("failed", res.RowsFailed)
	metrics.AddDegraded("skipped", res.RowsSkipped)
	metrics.AddFilesFailed(metrics.OpImport, res.FilesFailed)
}
