package db

import (
	"fmt"
	"log"

	"go_crew/internal/model"

	"gorm.io/gorm"
)

// Migrate runs database migrations for all models
func Migrate(db *gorm.DB) error {
	log.Println("Starting database migration...")

	models := []interface{}{
		&model.User{},
		&model.Agent{},
		&model.Task{},
		&model.TaskResult{},
		&model.AutoReview{},
		&model.Message{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("✓ Database migration completed successfully (%d tables)", len(models))
	return nil
}
