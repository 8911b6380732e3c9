package database

import (
	"gorm.io/gorm"

	"github.com/stayloop/pulse/internal/models"
)

func autoMigrateModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Notification{},
	)
}
