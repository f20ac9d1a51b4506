package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"recon-ledger/internal/config"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const busyTimeoutMS = 5000

// Init creates a SQLite database connection with basic tuning.
func Init(cfg config.DatabaseConfig) (*gorm.DB, error) {
	// ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	gormLogger := logger.Default
	if !cfg.LogMode {
		gormLogger = gormLogger.LogMode(logger.Silent)
	}

	db, err := gorm.Open(sqlite.Open(DSN(cfg.Path)), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	// connection pool
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// journal mode is stored in the file; the per-connection pragmas come
	// from the DSN
	if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	return db, nil
}

// DSN appends the per-connection pragmas so every pooled connection gets
// them, not just the first one.
func DSN(path string) string {
	return path + "?_busy_timeout=" + strconv.Itoa(busyTimeoutMS) + "&_foreign_keys=on&_synchronous=NORMAL"
}

// Close checkpoints the WAL back into the main file and closes the pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	_, _ = sqlDB.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	return sqlDB.Close()
}
