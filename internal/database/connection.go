package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type DatabaseConfig struct {
	Path     string `env:"DMARCWATCH_DB_PATH" envDefault:"data/dmarcwatch.db"`
	LogLevel string `env:"DMARCWATCH_DB_LOG_LEVEL" envDefault:"warn"`
}

// NewConnection opens (and creates if needed) the SQLite store.
// The store is a single local file; foreign keys are enabled so record
// and analysis rows cascade with their report.
func NewConnection(dbConfig *DatabaseConfig) (*gorm.DB, error) {
	if dbConfig == nil || dbConfig.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if dir := filepath.Dir(dbConfig.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbConfig.Path + "?_foreign_keys=on&_busy_timeout=5000"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel(dbConfig.LogLevel)),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; a second connection would only
	// contend on the database lock.
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func logLevel(level string) gormlogger.LogLevel {
	switch level {
	case "info":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	case "silent":
		return gormlogger.Silent
	default:
		return gormlogger.Warn
	}
}
