// Package handlers exposes the services over the REST API.
package handlers

import (
	"fmt"

	"github.com/olauber7232/tournament-latest-1/middleware"
	"github.com/olauber7232/tournament-latest-1/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler struct {
	Auth        *services.AuthService
	Users       *services.UserService
	Games       *services.GameService
	Tournaments *services.TournamentService
	Results     *services.ResultService
	Payments    *services.PaymentService
	Support     *services.SupportService
	Log         *zap.Logger

	validate *validator.Validate
}

func New(auth *services.AuthService, users *services.UserService, games *services.GameService,
	tournaments *services.TournamentService, results *services.ResultService,
	payments *services.PaymentService, support *services.SupportService, log *zap.Logger) *Handler {
	return &Handler{
		Auth:        auth,
		Users:       users,
		Games:       games,
		Tournaments: tournaments,
		Results:     results,
		Payments:    payments,
		Support:     support,
		Log:         log,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// bind parses the JSON body into dst and runs its validate tags.
func (h *Handler) bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", services.ErrValidation)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", services.ErrValidation, validationMessage(err))
	}
	return nil
}

// selfOrAdmin rejects callers reading another user's data unless they are admin.
func selfOrAdmin(c *fiber.Ctx, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", services.ErrValidation)
	}
	if middleware.UserID(c) != userID && !middleware.IsAdmin(c) {
		return fmt.Errorf("%w: cannot access another user's data", services.ErrForbidden)
	}
	return nil
}
