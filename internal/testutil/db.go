// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/teamboard/engine/internal/models"
)

// OpenDB returns a migrated in-memory SQLite database private to the test.
// The pool is pinned to one connection so every query sees the same memory database.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// SeedUser inserts an account with the given student id.
func SeedUser(t testing.TB, db *gorm.DB, studentID string) models.User {
	t.Helper()
	u := models.User{
		StudentID:    studentID,
		Email:        studentID + "@example.edu",
		Name:         "Student " + studentID,
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}
