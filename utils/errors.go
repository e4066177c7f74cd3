package utils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Taxonomy classes. Every rejected operation wraps exactly one of these
// so callers can distinguish "pick another action" (forbidden), "fix the
// input" (validation), "refresh and retry" (conflict) and "backend is
// down" (dependency).
var (
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrDependency = errors.New("dependency unavailable")
)

// AppError carries a user-facing message plus its taxonomy class
type AppError struct {
	Kind    error
	Message string
	Cause   error
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Kind }

func Forbidden(message string) error {
	return &AppError{Kind: ErrForbidden, Message: message}
}

func Invalid(message string) error {
	return &AppError{Kind: ErrValidation, Message: message}
}

func NotFound(message string) error {
	return &AppError{Kind: ErrNotFound, Message: message}
}

func Conflict(message string) error {
	return &AppError{Kind: ErrConflict, Message: message}
}

func Dependency(message string, cause error) error {
	return &AppError{Kind: ErrDependency, Message: message, Cause: cause}
}

// StatusFromError maps a taxonomy class to its HTTP status
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, ErrDependency):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondError writes a taxonomy-mapped error response. The wrapped
// cause of dependency errors is logged upstream, never sent to clients.
func RespondError(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return ErrorResponse(c, StatusFromError(err), appErr.Message, nil)
	}
	return ErrorResponse(c, fiber.StatusInternalServerError, "Something went wrong", err)
}
