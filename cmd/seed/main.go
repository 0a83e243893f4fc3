// Command main runs the database seeder for WhisperChain.
package main

import (
	"flag"
	"log"
	"time"

	"whisperchain/internal/config"
	"whisperchain/internal/database"
	"whisperchain/internal/seed"
)

func main() {
	// Parse command line flags
	numSenders := flag.Int("senders", 5, "Number of sender accounts to create")
	numReceivers := flag.Int("receivers", 5, "Number of receiver accounts to create")
	numMessages := flag.Int("messages", 20, "Number of messages to deliver")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d senders, %d receivers, %d messages, clean=%v\n",
		*numSenders, *numReceivers, *numMessages, *shouldClean)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run seeder
	s := seed.NewSeeder(db, seed.Options{
		NumSenders:   *numSenders,
		NumReceivers: *numReceivers,
		NumMessages:  *numMessages,
		RoundLength:  time.Duration(cfg.RoundLengthSeconds) * time.Second,
		TokenSecret:  cfg.TokenEncryptionSecret,
		Lifetime:     time.Duration(cfg.TokenLifetimeHours) * time.Hour,
	})

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	if err := s.Run(); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Printf("📧 All test accounts have the password: %s", seed.DefaultPassword)
}
