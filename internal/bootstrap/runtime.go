// Package bootstrap wires up runtime dependencies shared by the server and
// auxiliary commands.
package bootstrap

import (
	"errors"
	"fmt"
	"log"

	"whisperchain/internal/cache"
	"whisperchain/internal/config"
	"whisperchain/internal/crypto"
	"whisperchain/internal/database"
	"whisperchain/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// InitRuntime connects to DB and Redis and ensures a usable moderator
// account exists in development.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := EnsureDevModerator(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development moderator: %w", err)
	}

	return db, r, nil
}

// EnsureDevModerator creates an approved moderator account when none exists.
// Moderators cannot self-register, so a fresh development database would
// otherwise have no way to approve users or act on reports. Production
// environments are skipped; operators provision moderators there.
func EnsureDevModerator(cfg *config.Config, db *gorm.DB) error {
	if cfg.Env == "production" || cfg.Env == "prod" {
		return nil
	}
	username := cfg.DevModeratorUsername
	password := cfg.DevModeratorPassword
	if username == "" || password == "" {
		return nil
	}

	var existing models.User
	err := db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	publicPEM, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		return err
	}
	blob, err := crypto.ProtectPrivateKey(priv, password)
	if err != nil {
		return err
	}

	moderator := &models.User{
		Username:            username,
		Role:                models.RoleModerator,
		IsApproved:          true,
		Status:              models.StatusApproved,
		PublicKey:           publicPEM,
		EncryptedPrivateKey: blob,
	}
	if err := db.Create(moderator).Error; err != nil {
		return err
	}

	log.Printf("🔑 Bootstrapped development moderator %q", username)
	return nil
}
