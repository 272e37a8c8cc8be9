package main

import (
	"gorm.io/gorm"

	"github.com/teamboard/engine/internal/models"
)

// runMigrations creates every table, then applies what AutoMigrate cannot express.
func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return err
	}
	return runCustomMigrations(db)
}

func runCustomMigrations(db *gorm.DB) error {
	migrations := []func(*gorm.DB) error{
		enableUUIDExtension,
		addMembershipUniqueness,
		addHistoryIndexes,
	}

	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}

	return nil
}

// enableUUIDExtension ensures UUID generation is available
func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error
}

// addMembershipUniqueness keeps one membership row per user and project.
func addMembershipUniqueness(db *gorm.DB) error {
	return db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_project_members_project_user
		ON project_members(project_id, user_id)
	`).Error
}

// addHistoryIndexes backs the most-recent-first reads of activity and backups.
func addHistoryIndexes(db *gorm.DB) error {
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_activity_logs_project_created ON activity_logs(project_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_backups_project_created ON backups(project_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_task_comments_task_created ON task_comments(task_id, created_at)`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
