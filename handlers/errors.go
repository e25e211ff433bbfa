package handlers

import (
	"errors"
	"strings"

	"github.com/olauber7232/tournament-latest-1/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{services.ErrNotFound, fiber.StatusNotFound, "not_found"},
	{services.ErrValidation, fiber.StatusBadRequest, "validation_error"},
	{services.ErrInsufficientFunds, fiber.StatusPaymentRequired, "insufficient_funds"},
	{services.ErrCapacityExceeded, fiber.StatusConflict, "capacity_exceeded"},
	{services.ErrWalletFrozen, fiber.StatusLocked, "wallet_frozen"},
	{services.ErrGateway, fiber.StatusBadGateway, "gateway_error"},
	{services.ErrConflict, fiber.StatusConflict, "conflict"},
	{services.ErrUnauthorized, fiber.StatusUnauthorized, "unauthorized"},
	{services.ErrForbidden, fiber.StatusForbidden, "forbidden"},
}

// StatusFor maps a service error to its HTTP status and machine-readable code.
func StatusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, strings.ToLower(strings.ReplaceAll(utils.StatusMessage(fe.Code), " ", "_"))
	}
	return fiber.StatusInternalServerError, "internal_error"
}

// ErrorHandler is the fiber error handler; every failure is answered as
// {"message", "code"} and 5xx details stay in the log.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, code := StatusFor(err)
		message := err.Error()
		if status >= fiber.StatusInternalServerError && status != fiber.StatusBadGateway {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
			message = "internal server error"
		}
		return c.Status(status).JSON(fiber.Map{"message": message, "code": code})
	}
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			parts = append(parts, fe.Field()+" failed "+fe.Tag()+"="+fe.Param())
		} else {
			parts = append(parts, fe.Field()+" failed "+fe.Tag())
		}
	}
	return strings.Join(parts, "; ")
}
