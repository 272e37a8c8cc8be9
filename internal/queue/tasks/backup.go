package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/teamboard/engine/internal/services"
	appErr "github.com/teamboard/engine/pkg/errors"
	"github.com/teamboard/engine/pkg/logger"
)

// BackupTaskHandler runs scheduled export and restore jobs.
type BackupTaskHandler struct {
	backupSvc services.BackupService
}

func NewBackupTaskHandler(backupSvc services.BackupService) *BackupTaskHandler {
	return &BackupTaskHandler{backupSvc: backupSvc}
}

// Register mounts the handlers on mux.
func (h *BackupTaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(services.TaskBackupExport, h.HandleExport)
	mux.HandleFunc(services.TaskBackupRestore, h.HandleRestore)
}

func (h *BackupTaskHandler) HandleExport(ctx context.Context, t *asynq.Task) error {
	id, err := parsePayload(t)
	if err != nil {
		return err
	}
	logger.L().Info("handling export task", zap.String("backup_id", id.String()))
	return retryable(h.backupSvc.RunExportJob(ctx, id))
}

func (h *BackupTaskHandler) HandleRestore(ctx context.Context, t *asynq.Task) error {
	id, err := parsePayload(t)
	if err != nil {
		return err
	}
	logger.L().Info("handling restore task", zap.String("backup_id", id.String()))
	return retryable(h.backupSvc.RunRestoreJob(ctx, id))
}

func parsePayload(t *asynq.Task) (uuid.UUID, error) {
	var p services.BackupJobPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid backup task payload", zap.Error(err), zap.String("task", t.Type()))
		return uuid.Nil, fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	id, err := uuid.Parse(p.BackupID)
	if err != nil {
		logger.L().Error("invalid backup id in task", zap.Error(err), zap.String("task", t.Type()))
		return uuid.Nil, fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return id, nil
}

// retryable stops asynq from retrying errors another attempt cannot fix.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	switch appErr.CodeOf(err) {
	case appErr.CodeInvalid, appErr.CodeArchiveInvalid, appErr.CodeNotFound, appErr.CodeForbidden:
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return err
}
