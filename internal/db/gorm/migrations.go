package gorm

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Sessions table
		{
			ID: "001_sessions",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&SessionRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("sessions")
			},
		},

		// Migration 002: Events table with the ordered-range-read index
		{
			ID: "002_events",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&EventRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("events")
			},
		},

		// Migration 003: Slide manifests mirrored into the store
		{
			ID: "003_slides",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&SlideRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("slides")
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run gormigrate migrations: %w", err)
	}

	return nil
}
