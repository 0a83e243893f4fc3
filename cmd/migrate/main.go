// Command main applies the database schema. Production deployments run
// this before starting the server, since the server only auto-migrates in
// non-production environments.
package main

import (
	"log"

	"whisperchain/internal/config"
	"whisperchain/internal/database"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("✅ Schema is up to date")
}
