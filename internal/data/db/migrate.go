package db

import (
	"gorm.io/gorm"

	types "github.com/laureon/slm-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// Type graph
		&types.LocationType{},
		&types.LocationTypeParent{},

		// Location tree + space grid
		&types.Location{},
		&types.LocationSpace{},

		// Sample registry
		&types.SampleItem{},
	); err != nil {
		return err
	}

	// Names are unique case-insensitively. The app-level LOWER(name) check
	// runs first for a friendly error; these functional indexes make the
	// constraint hold when two transactions race past that check with
	// different casings of the same name.
	for _, stmt := range []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_location_type_name_lower ON location_type (LOWER(name));`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_location_name_lower ON location (LOWER(name));`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
