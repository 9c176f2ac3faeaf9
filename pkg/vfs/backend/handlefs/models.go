package handlefs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fileRow is the persisted form of one entry in the store. Rows are
// addressed by UUID so a cached access handle stays valid across renames.
type fileRow struct {
	ID      string    `gorm:"primaryKey"`
	Rel     string    `gorm:"uniqueIndex;not null"`
	Dir     bool      `gorm:"not null"`
	Size    int64     `gorm:"not null"`
	ModTime time.Time `gorm:"not null"`
	Data    []byte
	Staged  bool `gorm:"not null;index"`
}

// TableName keeps the table name singular-free and explicit.
func (fileRow) TableName() string {
	return "entries"
}

// openDB opens (or creates) the SQLite database backing a store.
func openDB(path string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL for concurrent readers, busy_timeout so a second open waits
	// instead of failing immediately.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&fileRow{}); err != nil {
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	return db, nil
}

// openMemoryDB opens an in-memory SQLite database, private to one store.
func openMemoryDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	if err := db.AutoMigrate(&fileRow{}); err != nil {
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	return db, nil
}
