// Package repo is the persistence layer: GORM over pure-Go SQLite,
// plus the free functions the services call for conversations, blog
// posts, and idempotency records.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/hkg945/edgeflow/internal/domain"
)

// OpenSQLite opens or creates the database file and tunes it for a
// single-process API server. WAL mode plus SQLite's single writer is
// what serializes concurrent appends to the same conversation.
func OpenSQLite(path string) (*gorm.DB, error) {
	// A missing parent directory surfaces as a cryptic sqlite error
	// ("out of memory (14)" on some platforms), so check it up front.
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate brings the schema up to date for every persisted model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Conversation{},
		&domain.Message{},
		&domain.BlogPost{},
		&domain.Idempotency{},
	)
}
