// Package app wires configuration, storage, and repositories into the
// services shared by the binaries.
package app

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/teamboard/engine/internal/backup"
	"github.com/teamboard/engine/internal/repository"
	"github.com/teamboard/engine/internal/services"
	"github.com/teamboard/engine/internal/storage"
	"github.com/teamboard/engine/pkg/config"
	"github.com/teamboard/engine/pkg/database"
	"github.com/teamboard/engine/pkg/logger"
)

type App struct {
	Config  *config.Config
	DB      *gorm.DB
	Objects storage.ObjectStore

	Users    repository.UserRepository
	Projects repository.ProjectRepository
	Graph    repository.GraphRepository
	Backups  repository.BackupRepository

	Exporter *backup.Exporter
	Importer *backup.Importer
}

// New connects to the database and the configured object store.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL, cfg.AppEnv)
	if err != nil {
		return nil, err
	}
	objects, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open object storage: %w", err)
	}
	return Assemble(cfg, db, objects), nil
}

// Assemble builds the App around an already opened database and store.
func Assemble(cfg *config.Config, db *gorm.DB, objects storage.ObjectStore) *App {
	graph := repository.NewGraphRepository(db)
	settings := backup.SettingsFromConfig(cfg)
	return &App{
		Config:   cfg,
		DB:       db,
		Objects:  objects,
		Users:    repository.NewUserRepository(db),
		Projects: repository.NewProjectRepository(db),
		Graph:    graph,
		Backups:  repository.NewBackupRepository(db),
		Exporter: backup.NewExporter(graph, objects, settings),
		Importer: backup.NewImporter(graph, objects, settings),
	}
}

// BackupService returns the backup service. queue may be nil in processes
// that never schedule jobs.
func (a *App) BackupService(queue services.TaskEnqueuer) services.BackupService {
	return services.NewBackupService(
		a.Exporter, a.Importer, a.Backups, a.Objects,
		services.NewMembershipAuthorizer(a.Projects), queue,
		services.BackupServiceOptions{
			Bucket:          a.Config.BackupBucket,
			MaxArchiveBytes: a.Config.MaxArchiveBytes,
		},
	)
}

// Ping reports database reachability.
func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (a *App) Close() {
	if c, ok := a.Objects.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.L().Warn("close object storage failed", zap.Error(err))
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
