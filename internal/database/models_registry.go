package database

import "fixmystuff/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.FixRequest{},
		&models.Image{},
		&models.ImageVariant{},
	}
}
