package server

import (
	"time"

	"whisperchain/internal/models"
	"whisperchain/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetCurrentRound handles GET /api/rounds/current
func (s *Server) GetCurrentRound(c *fiber.Ctx) error {
	rounds := s.tokenService.Rounds()
	roundID := rounds.CurrentRound()

	return c.JSON(fiber.Map{
		"round_id":     roundID,
		"round_start":  rounds.RoundStart(roundID).UTC().Format(time.RFC3339),
		"round_end":    rounds.RoundEnd(roundID).UTC().Format(time.RFC3339),
		"round_length": int(rounds.Length().Seconds()),
	})
}

// GetMyToken handles GET /api/tokens/me
// Returns the caller's token for the current round, creating it if needed.
func (s *Server) GetMyToken(c *fiber.Ctx) error {
	userID := currentUserID(c)

	user, err := s.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return respondAppError(c, err)
	}
	if !user.CanSend() {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Only approved senders hold tokens"))
	}

	mapping, isNew, err := s.tokenService.GetOrCreateToken(c.Context(), userID)
	if err != nil {
		return respondAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"token_hash": mapping.TokenHash,
		"round_id":   mapping.RoundID,
		"expires_at": mapping.ExpiresAt.UTC().Format(time.RFC3339),
		"is_used":    mapping.IsUsed,
		"is_new":     isNew,
	})
}

// GetRecipients handles GET /api/recipients
// Lists the approved receiver accounts a sender may address.
func (s *Server) GetRecipients(c *fiber.Ctx) error {
	receivers, err := s.userRepo.ListByRole(c.Context(), models.RoleReceiver)
	if err != nil {
		return respondAppError(c, err)
	}

	type recipient struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
	}
	out := make([]recipient, len(receivers))
	for i, r := range receivers {
		out[i] = recipient{ID: r.ID, Username: r.Username}
	}
	return c.JSON(out)
}

// SendMessage handles POST /api/messages
func (s *Server) SendMessage(c *fiber.Ctx) error {
	var req struct {
		RecipientID uint   `json:"recipient_id"`
		Payload     string `json:"payload"`
		TokenHash   string `json:"token_hash"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.RecipientID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("recipient_id is required"))
	}

	result, err := s.msgService.Send(c.Context(), service.SendInput{
		SenderID:    currentUserID(c),
		RecipientID: req.RecipientID,
		Payload:     req.Payload,
		TokenHint:   req.TokenHash,
	})
	if err != nil {
		return respondAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// GetInbox handles GET /api/messages
func (s *Server) GetInbox(c *fiber.Ctx) error {
	p := parsePagination(c, 50)

	messages, err := s.msgService.Inbox(c.Context(), currentUserID(c), p.Limit, p.Offset)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(messages)
}

// MarkMessageRead handles POST /api/messages/:id/read
func (s *Server) MarkMessageRead(c *fiber.Ctx) error {
	publicID := c.Params("id")
	if publicID == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid message ID"))
	}

	if err := s.msgService.MarkRead(c.Context(), currentUserID(c), publicID); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Marked as read"})
}

// FlagMessage handles POST /api/messages/:id/flag
func (s *Server) FlagMessage(c *fiber.Ctx) error {
	publicID := c.Params("id")
	if publicID == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid message ID"))
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.msgService.Flag(c.Context(), currentUserID(c), publicID, req.Reason)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(message)
}

// DecryptMessage handles POST /api/messages/:id/decrypt
// The caller supplies their password; the recovered private key exists only
// for the duration of the request.
func (s *Server) DecryptMessage(c *fiber.Ctx) error {
	publicID := c.Params("id")
	if publicID == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid message ID"))
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Password is required"))
	}

	plaintext, err := s.msgService.Decrypt(c.Context(), currentUserID(c), publicID, req.Password)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"content": plaintext})
}
