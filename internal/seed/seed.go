// Package seed provides database seeding utilities for development and
// testing. Seeded accounts all share the password "password123".
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"whisperchain/internal/clock"
	"whisperchain/internal/crypto"
	"whisperchain/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DefaultPassword protects every seeded account's private key.
const DefaultPassword = "password123"

// Options configuration for the seeder.
type Options struct {
	NumSenders   int
	NumReceivers int
	NumMessages  int
	// RoundLength mirrors the server's configured rotation interval so that
	// seeded tokens land in the same rounds the running server computes.
	RoundLength time.Duration
	TokenSecret string
	// Lifetime controls how long seeded tokens stay spendable.
	Lifetime time.Duration
}

// Seeder populates the database with demo accounts, tokens and messages.
type Seeder struct {
	db     *gorm.DB
	opts   Options
	rounds *clock.RoundClock
	codec  *crypto.IDCodec
	rng    *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.NumSenders <= 0 {
		opts.NumSenders = 5
	}
	if opts.NumReceivers <= 0 {
		opts.NumReceivers = 5
	}
	if opts.RoundLength <= 0 {
		opts.RoundLength = 2 * time.Minute
	}
	if opts.Lifetime <= 0 {
		opts.Lifetime = 24 * time.Hour
	}
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:     db,
		opts:   opts,
		rounds: clock.NewRoundClock(clock.System(), opts.RoundLength),
		codec:  crypto.NewIDCodec(opts.TokenSecret),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll removes every row from the seeded tables. Order matters because
// of foreign keys.
func (s *Seeder) ClearAll() error {
	tables := []string{"audit_logs", "messages", "user_bans", "token_mappings", "users"}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	log.Println("🧹 Cleared existing data")
	return nil
}

// Run seeds the full demo dataset: a moderator, approved senders and
// receivers, current-round tokens for the senders, and a spread of
// encrypted messages with matching audit entries.
func (s *Seeder) Run() error {
	moderator, err := s.createUser("moderator1", models.RoleModerator)
	if err != nil {
		return fmt.Errorf("seeding moderator: %w", err)
	}
	log.Printf("👮 Created moderator %q (id=%d)", moderator.Username, moderator.ID)

	senders := make([]*models.User, 0, s.opts.NumSenders)
	for i := 0; i < s.opts.NumSenders; i++ {
		u, err := s.createUser(s.username(), models.RoleSender)
		if err != nil {
			return fmt.Errorf("seeding sender: %w", err)
		}
		senders = append(senders, u)
	}

	receivers := make([]*models.User, 0, s.opts.NumReceivers)
	for i := 0; i < s.opts.NumReceivers; i++ {
		u, err := s.createUser(s.username(), models.RoleReceiver)
		if err != nil {
			return fmt.Errorf("seeding receiver: %w", err)
		}
		receivers = append(receivers, u)
	}
	log.Printf("👥 Created %d senders and %d receivers", len(senders), len(receivers))

	numMessages := s.opts.NumMessages
	if numMessages <= 0 {
		numMessages = len(senders) * 2
	}
	sent, err := s.seedTraffic(senders, receivers, numMessages)
	if err != nil {
		return err
	}
	log.Printf("✉️  Delivered %d encrypted messages", sent)
	return nil
}

// seedTraffic issues tokens across past rounds and sends one message per
// token, so the audit log and inboxes look like real usage.
func (s *Seeder) seedTraffic(senders, receivers []*models.User, count int) (int, error) {
	if len(senders) == 0 || len(receivers) == 0 {
		return 0, nil
	}
	currentRound := s.rounds.CurrentRound()
	sent := 0
	for i := 0; i < count; i++ {
		sender := senders[i%len(senders)]
		recipient := receivers[s.rng.Intn(len(receivers))]

		// Walk backwards through rounds so each (sender, round) pair stays
		// unique and tokens rotate like they would in production.
		roundID := currentRound - int64(i/len(senders))
		mapping, err := s.issueToken(sender.ID, roundID)
		if err != nil {
			return sent, fmt.Errorf("issuing token for user %d: %w", sender.ID, err)
		}

		if err := s.sendMessage(sender, recipient, mapping); err != nil {
			return sent, fmt.Errorf("seeding message: %w", err)
		}
		sent++
	}
	return sent, nil
}

func (s *Seeder) issueToken(userID uint, roundID int64) (*models.TokenMapping, error) {
	encrypted, err := s.codec.Encrypt(userID)
	if err != nil {
		return nil, err
	}
	mapping := &models.TokenMapping{
		TokenHash:       crypto.TokenFingerprint(userID, roundID),
		EncryptedUserID: encrypted,
		UserID:          userID,
		RoundID:         roundID,
		CreatedAt:       s.rounds.RoundStart(roundID),
		ExpiresAt:       s.rounds.RoundStart(roundID).Add(s.opts.Lifetime),
	}
	if err := s.db.Create(mapping).Error; err != nil {
		return nil, err
	}
	return mapping, nil
}

func (s *Seeder) sendMessage(sender, recipient *models.User, mapping *models.TokenMapping) error {
	payload := gofakeit.Sentence(6 + s.rng.Intn(10))
	encrypted, err := crypto.EncryptMessage(payload, recipient.PublicKey)
	if err != nil {
		return err
	}
	sentAt := s.rounds.RoundStart(mapping.RoundID).Add(time.Duration(s.rng.Intn(60)) * time.Second)

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.TokenMapping{}).
			Where("id = ?", mapping.ID).
			Updates(map[string]any{
				"is_used":       true,
				"last_used_at":  sentAt,
				"messages_sent": gorm.Expr("messages_sent + 1"),
			}).Error; err != nil {
			return err
		}
		msg := &models.Message{
			PublicID:         gofakeit.UUID(),
			EncryptedContent: encrypted,
			SenderID:         sender.ID,
			RecipientID:      recipient.ID,
			TokenHash:        mapping.TokenHash,
			CreatedAt:        sentAt,
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		entry := &models.AuditLog{
			ActionType:    models.AuditMessageSent,
			TokenHash:     mapping.TokenHash,
			ActionDetails: fmt.Sprintf("message %s delivered", msg.PublicID),
			CreatedAt:     sentAt,
		}
		return tx.Create(entry).Error
	})
}

func (s *Seeder) createUser(username string, role models.UserRole) (*models.User, error) {
	publicPEM, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	blob, err := crypto.ProtectPrivateKey(priv, DefaultPassword)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:            username,
		Role:                role,
		IsApproved:          true,
		Status:              models.StatusApproved,
		PublicKey:           publicPEM,
		EncryptedPrivateKey: blob,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// username generates a handle that passes registration validation, which
// requires at least one digit.
func (s *Seeder) username() string {
	name := gofakeit.Username()
	if len(name) > 26 {
		name = name[:26]
	}
	return fmt.Sprintf("%s%d", name, s.rng.Intn(900)+100)
}
