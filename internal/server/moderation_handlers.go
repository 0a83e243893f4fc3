package server

import (
	"whisperchain/internal/models"
	"whisperchain/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetTokenStatus handles GET /api/moderation/tokens/:hash
func (s *Server) GetTokenStatus(c *fiber.Ctx) error {
	status, err := s.tokenService.Status(c.Context(), c.Params("hash"))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(status)
}

// GetTokenAuditLog handles GET /api/moderation/tokens/:hash/audit-log
func (s *Server) GetTokenAuditLog(c *fiber.Ctx) error {
	entries, err := s.modService.TokenAuditLogs(c.Context(), c.Params("hash"))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(entries)
}

// FreezeToken handles POST /api/moderation/tokens/:hash/freeze
func (s *Server) FreezeToken(c *fiber.Ctx) error {
	hash := c.Params("hash")
	if err := s.tokenService.FreezeToken(c.Context(), currentUserID(c), hash); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Token frozen", "token_hash": hash})
}

// UnfreezeToken handles POST /api/moderation/tokens/:hash/unfreeze
func (s *Server) UnfreezeToken(c *fiber.Ctx) error {
	hash := c.Params("hash")
	if err := s.tokenService.UnfreezeToken(c.Context(), currentUserID(c), hash); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Token unfrozen", "token_hash": hash})
}

// UnmaskToken handles POST /api/moderation/tokens/:hash/unmask
// Reveals the user behind a token. Moderator-only by routing.
func (s *Server) UnmaskToken(c *fiber.Ctx) error {
	hash := c.Params("hash")
	userID, err := s.tokenService.Unmask(c.Context(), hash)
	if err != nil {
		return respondAppError(c, err)
	}

	user, err := s.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return respondAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"token_hash": hash,
		"user_id":    user.ID,
		"username":   user.Username,
	})
}

// BanUser handles POST /api/moderation/bans
func (s *Server) BanUser(c *fiber.Ctx) error {
	var req struct {
		TokenHash string         `json:"token_hash"`
		UserID    uint           `json:"user_id"`
		BanType   models.BanType `json:"ban_type"`
		Reason    string         `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.TokenHash == "" && req.UserID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("token_hash or user_id is required"))
	}

	err := s.modService.Ban(c.Context(), service.BanInput{
		ModeratorID: currentUserID(c),
		TokenHash:   req.TokenHash,
		UserID:      req.UserID,
		BanType:     req.BanType,
		Reason:      req.Reason,
	})
	if err != nil {
		return respondAppError(c, err)
	}

	if req.BanType == models.BanTypeWarning {
		return c.JSON(fiber.Map{"message": "Warning issued"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "User banned"})
}

// UnbanUser handles DELETE /api/moderation/bans/:userId
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.modService.Unban(c.Context(), currentUserID(c), userID); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Ban lifted"})
}

// GetBanHistory handles GET /api/moderation/bans/:userId/history
func (s *Server) GetBanHistory(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	bans, err := s.modService.BanHistory(c.Context(), userID)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(bans)
}

// GetFlaggedMessages handles GET /api/moderation/messages/flagged
func (s *Server) GetFlaggedMessages(c *fiber.Ctx) error {
	messages, err := s.modService.FlaggedMessages(c.Context())
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(messages)
}

// GetAuditLog handles GET /api/moderation/audit-log
func (s *Server) GetAuditLog(c *fiber.Ctx) error {
	p := parsePagination(c, 50)

	entries, err := s.modService.AuditLogs(c.Context(), p.Limit, p.Offset)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(entries)
}

// GetPendingUsers handles GET /api/moderation/users/pending
func (s *Server) GetPendingUsers(c *fiber.Ctx) error {
	users, err := s.userRepo.ListPending(c.Context())
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(users)
}

// ApproveUser handles POST /api/moderation/users/:id/approve
func (s *Server) ApproveUser(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.userRepo.SetStatus(c.Context(), userID, models.StatusApproved, true); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User approved"})
}

// RejectUser handles POST /api/moderation/users/:id/reject
func (s *Server) RejectUser(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.userRepo.SetStatus(c.Context(), userID, models.StatusRejected, false); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User rejected"})
}
