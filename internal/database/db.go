package database

import (
	"log"

	"lims/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM. Uniqueness
// constraints on emails, names and token values live in the schema; the
// application layer relies on them instead of re-checking.
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.User{},
		&model.Role{},
		&model.Group{},
		&model.UserRole{},
		&model.UserGroup{},
		&model.RefreshToken{},
		&model.Sample{},
		&model.AuditLog{},
	)
	if err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}
