package database

import (
	"whisperchain/internal/models"

	"gorm.io/gorm"
)

// AllModels returns every model registered for migration, in dependency
// order. Tests use this to build identical schemas on SQLite.
func AllModels() []any {
	return []any{
		&models.User{},
		&models.TokenMapping{},
		&models.UserBan{},
		&models.AuditLog{},
		&models.Message{},
	}
}

// Migrate applies the schema for all registered models. The uniqueness
// constraints on token_mappings (token_hash, and the (user_id, round_id)
// pair) are what the token registry's race handling relies on; a store
// without them cannot provide the convergence guarantee.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
