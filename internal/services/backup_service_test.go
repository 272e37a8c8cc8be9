package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/teamboard/engine/internal/backup"
	"github.com/teamboard/engine/internal/models"
	appErr "github.com/teamboard/engine/pkg/errors"
	"github.com/teamboard/engine/pkg/utils"
)

func TestBackupService_ExportAndImport(t *testing.T) {
	e := newEnv(t, nil)
	p := e.seedProject(t)

	res, err := e.backups.Export(e.ctx, p.ID, e.leader.ID, backup.AllOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tally.Stages)
	assert.Equal(t, 2, res.Tally.Members)
	assert.Contains(t, res.Filename, "Capstone_backup_")

	out, err := e.backups.Import(e.ctx, e.outsider.ID, res.Archive)
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, out.ProjectID)
	assert.Equal(t, "Capstone", out.ProjectName)
	assert.Equal(t, 1, out.Restored.Stages)

	// The importer is enrolled as leader of the new project.
	var m models.ProjectMember
	require.NoError(t, e.db.Where("project_id = ? AND user_id = ?", out.ProjectID, e.outsider.ID).First(&m).Error)
	assert.Equal(t, models.RoleLeader, m.Role)
}

func TestBackupService_ExportRequiresManager(t *testing.T) {
	e := newEnv(t, nil)
	p := e.seedProject(t)

	_, err := e.backups.Export(e.ctx, p.ID, e.member.ID, backup.AllOptions())
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))

	_, err = e.backups.Export(e.ctx, p.ID, e.outsider.ID, backup.AllOptions())
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))
}

func TestBackupService_ImportRejectsOversizedArchive(t *testing.T) {
	e := newEnv(t, nil)
	before := e.projectCount(t)

	_, err := e.backups.Import(e.ctx, e.outsider.ID, make([]byte, 2<<20))
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	assert.Equal(t, before, e.projectCount(t))
}

func TestBackupService_ImportGarbageIsArchiveInvalid(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.backups.Import(e.ctx, e.outsider.ID, []byte("not a zip"))
	assert.True(t, appErr.IsCode(err, appErr.CodeArchiveInvalid))
}

func TestBackupService_ImportDeniedByAuthorizer(t *testing.T) {
	auth := &mockAuthorizer{}
	e := newEnv(t, auth)
	auth.On("CanImport", e.outsider.ID).Return(appErr.New(appErr.CodeForbidden, "imports disabled"))

	_, err := e.backups.Import(e.ctx, e.outsider.ID, []byte("irrelevant"))
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))
	auth.AssertExpectations(t)
}

func TestBackupService_ScheduledExportLifecycle(t *testing.T) {
	e := newEnv(t, nil)
	p := e.seedProject(t)
	e.queue.On("EnqueueContext", TaskBackupExport).Return(&asynq.TaskInfo{ID: "t1"}, nil)

	b, err := e.backups.ScheduleBackup(e.ctx, p.ID, e.leader.ID, backup.Options{Notes: true})
	require.NoError(t, err)
	assert.Equal(t, models.BackupStatusPending, b.Status)
	assert.Equal(t, b.ID, e.queue.lastBackupID(t))
	e.queue.AssertExpectations(t)

	require.NoError(t, e.backups.RunExportJob(e.ctx, b.ID))

	got, err := e.backups.GetBackup(e.ctx, b.ID, e.leader.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BackupStatusCompleted, got.Status)
	require.NotEmpty(t, got.ArchiveKey)
	assert.NotNil(t, got.CompletedAt)

	blob, err := e.store.Get(e.ctx, backupBucket, got.ArchiveKey)
	require.NoError(t, err)
	assert.Equal(t, int64(len(blob)), got.SizeBytes)
	assert.Equal(t, utils.HexSHA256(blob), got.Checksum)
	assert.Contains(t, string(got.Summary), `"stages":1`)

	// Redelivery leaves the completed job alone.
	require.NoError(t, e.backups.RunExportJob(e.ctx, b.ID))

	list, err := e.backups.ListBackups(e.ctx, p.ID, e.leader.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBackupService_ScheduledRestoreLifecycle(t *testing.T) {
	e := newEnv(t, nil)
	p := e.seedProject(t)
	e.queue.On("EnqueueContext", TaskBackupExport).Return(&asynq.TaskInfo{ID: "t1"}, nil)
	e.queue.On("EnqueueContext", TaskBackupRestore).Return(&asynq.TaskInfo{ID: "t2"}, nil)

	src, err := e.backups.ScheduleBackup(e.ctx, p.ID, e.leader.ID, backup.AllOptions())
	require.NoError(t, err)

	// Not yet completed.
	_, err = e.backups.ScheduleRestore(e.ctx, src.ID, e.leader.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))

	require.NoError(t, e.backups.RunExportJob(e.ctx, src.ID))

	_, err = e.backups.ScheduleRestore(e.ctx, src.ID, e.member.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))

	job, err := e.backups.ScheduleRestore(e.ctx, src.ID, e.leader.ID)
	require.NoError(t, err)
	require.NotNil(t, job.SourceID)
	assert.Equal(t, src.ID, *job.SourceID)
	assert.Equal(t, models.BackupKindRestore, job.Kind)
	assert.Equal(t, job.ID, e.queue.lastBackupID(t))

	before := e.projectCount(t)
	require.NoError(t, e.backups.RunRestoreJob(e.ctx, job.ID))
	assert.Equal(t, before+1, e.projectCount(t))

	got, err := e.backups.GetBackup(e.ctx, job.ID, e.leader.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BackupStatusCompleted, got.Status)
	assert.Contains(t, string(got.Summary), `"project_name":"Capstone"`)

	// A second delivery must not create another project.
	require.NoError(t, e.backups.RunRestoreJob(e.ctx, job.ID))
	assert.Equal(t, before+1, e.projectCount(t))
}

func TestBackupService_EnqueueFailureMarksBackupFailed(t *testing.T) {
	e := newEnv(t, nil)
	p := e.seedProject(t)
	e.queue.On("EnqueueContext", TaskBackupExport).Return(nil, errors.New("redis down"))

	_, err := e.backups.ScheduleBackup(e.ctx, p.ID, e.leader.ID, backup.AllOptions())
	assert.True(t, appErr.IsCode(err, appErr.CodeUnavailable))

	list, err := e.backupRepo.ListByProject(e.ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.BackupStatusFailed, list[0].Status)
}

func TestBackupService_ExportJobFailureIsRecorded(t *testing.T) {
	e := newEnv(t, nil)
	b := &models.Backup{
		ProjectID:   uuid.New(),
		RequestedBy: e.leader.ID,
		Kind:        models.BackupKindExport,
		Status:      models.BackupStatusPending,
	}
	require.NoError(t, e.backupRepo.Create(e.ctx, b))

	err := e.backups.RunExportJob(e.ctx, b.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	var got models.Backup
	require.NoError(t, e.backupRepo.GetByID(e.ctx, b.ID, &got))
	assert.Equal(t, models.BackupStatusFailed, got.Status)
	assert.NotEmpty(t, got.ErrorMessage)
}

func TestBackupService_GetBackupVisibility(t *testing.T) {
	auth := &mockAuthorizer{}
	e := newEnv(t, auth)
	b := &models.Backup{ProjectID: uuid.New(), RequestedBy: e.leader.ID, Kind: models.BackupKindExport, Status: models.BackupStatusPending}
	require.NoError(t, e.backupRepo.Create(e.ctx, b))
	auth.On("CanExport", e.outsider.ID, b.ProjectID).Return(appErr.New(appErr.CodeForbidden, "no"))

	_, err := e.backups.GetBackup(e.ctx, b.ID, e.leader.ID)
	require.NoError(t, err)

	_, err = e.backups.GetBackup(e.ctx, b.ID, e.outsider.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))
	auth.AssertNotCalled(t, "CanExport", e.leader.ID, mock.Anything)
}
