package handlers

import (
	"github.com/olauber7232/tournament-latest-1/services"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var req services.RegisterRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	user, err := h.Auth.Register(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": services.NewUserView(user)})
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req services.LoginRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	session, err := h.Auth.Login(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"user":       services.NewUserView(session.User),
	})
}

func (h *Handler) Recover(c *fiber.Ctx) error {
	var req services.RecoverRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if err := h.Auth.Recover(c.UserContext(), req); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "password updated"})
}

func (h *Handler) ValidateReferral(c *fiber.Ctx) error {
	var req struct {
		ReferralCode string `json:"referral_code" validate:"required"`
	}
	if err := h.bind(c, &req); err != nil {
		return err
	}
	owner, err := h.Users.ValidateReferralCode(c.UserContext(), req.ReferralCode)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"valid": true, "referrer": owner})
}
