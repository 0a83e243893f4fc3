package models

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes for the application's error taxonomy.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"

	CodeTokenNotFoundOrExpired = "TOKEN_NOT_FOUND_OR_EXPIRED"
	CodeTokenAlreadyUsed       = "TOKEN_ALREADY_USED"
	CodeTokenFrozen            = "TOKEN_FROZEN"
	CodeUserBanned             = "USER_BANNED"
	CodeTokenBanned            = "TOKEN_BANNED"
	CodeAlreadyBanned          = "ALREADY_BANNED"
	CodeNoActiveBan            = "NO_ACTIVE_BAN"
	CodeDecryption             = "DECRYPTION_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details string         `json:"details,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
	// Meta carries structured detail safe to surface to the caller,
	// e.g. ban type and expiry. It must never contain other users' ids.
	Meta map[string]any
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// Token validation failures (spec'd as TokenInvalid variants).

func NewTokenNotFoundOrExpiredError() *AppError {
	return &AppError{
		Code:    CodeTokenNotFoundOrExpired,
		Message: "Token not found or expired",
	}
}

func NewTokenAlreadyUsedError() *AppError {
	return &AppError{
		Code:    CodeTokenAlreadyUsed,
		Message: "Token has already been used this round",
	}
}

func NewTokenFrozenError(frozenAt string) *AppError {
	e := &AppError{
		Code:    CodeTokenFrozen,
		Message: "Token is frozen",
	}
	if frozenAt != "" {
		e.Meta = map[string]any{"frozen_at": frozenAt}
	}
	return e
}

// NewUserBannedError surfaces ban type, reason, and human-readable expiry.
func NewUserBannedError(info *BanInfo) *AppError {
	return &AppError{
		Code:    CodeUserBanned,
		Message: fmt.Sprintf("You are banned (%s) until %s: %s", info.Type, info.ExpiryString(), info.Reason),
		Meta: map[string]any{
			"ban_type": string(info.Type),
			"reason":   info.Reason,
			"until":    info.ExpiryString(),
		},
	}
}

// NewTokenBannedError surfaces a sanction scoped to the presented token only.
func NewTokenBannedError(info *BanInfo) *AppError {
	return &AppError{
		Code:    CodeTokenBanned,
		Message: fmt.Sprintf("This token is banned (%s) until %s: %s", info.Type, info.ExpiryString(), info.Reason),
		Meta: map[string]any{
			"ban_type": string(info.Type),
			"reason":   info.Reason,
			"until":    info.ExpiryString(),
		},
	}
}

func NewAlreadyBannedError() *AppError {
	return &AppError{
		Code:    CodeAlreadyBanned,
		Message: "User already has an active ban",
	}
}

func NewNoActiveBanError() *AppError {
	return &AppError{
		Code:    CodeNoActiveBan,
		Message: "User has no active ban",
	}
}

func NewDecryptionError(err error) *AppError {
	return &AppError{
		Code:    CodeDecryption,
		Message: "Decryption failed",
		Err:     err,
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	if appErr, ok := err.(*AppError); ok {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
			Meta:  appErr.Meta,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}

// StatusForError maps an AppError code to an HTTP status. Unknown errors are
// treated as internal.
func StatusForError(err error) int {
	appErr, ok := err.(*AppError)
	if !ok {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeNotFound, CodeTokenNotFoundOrExpired, CodeNoActiveBan:
		return fiber.StatusNotFound
	case CodeValidation, CodeDecryption:
		return fiber.StatusBadRequest
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeForbidden, CodeUserBanned, CodeTokenBanned, CodeTokenFrozen:
		return fiber.StatusForbidden
	case CodeConflict, CodeAlreadyBanned, CodeTokenAlreadyUsed:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
