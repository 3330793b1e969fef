// Package testutil opens throwaway databases and seeds rows for package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aldoetobex/smb-crm-backend/pkg/database"
)

// OpenDB returns a migrated database. It uses TEST_DATABASE_URL (postgres)
// when set and a fresh sqlite file in t.TempDir() otherwise.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	_ = godotenv.Load()

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true}

	var (
		db  *gorm.DB
		err error
	)
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn != "" {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		db, err = gorm.Open(sqlite.Open(database.SQLiteDSN(filepath.Join(t.TempDir(), "crm_test.db"))), cfg)
	}
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	if dsn == "" {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		if dsn != "" {
			truncate := `
TRUNCATE TABLE
	status_histories, timesheets, tasks, notes, payments,
	quote_payments, quote_services, quotes, project_budgets, projects,
	contacts, customers, leads, services, lead_sources
RESTART IDENTITY CASCADE`
			if err := db.Exec(truncate).Error; err != nil {
				t.Logf("truncate failed (ignored): %v", err)
			}
		}
		_ = sqlDB.Close()
	})
	return db
}

// Count returns the number of rows of model matching the optional condition.
func Count(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}

// MockDB returns a gorm postgres handle backed by go-sqlmock, for tests that
// pin the exact statements a write issues.
func MockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open mock db: %v", err)
	}
	return db, mock
}
