package database

import (
	"fmt"

	"recon-ledger/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate runs database schema migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.Category{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
