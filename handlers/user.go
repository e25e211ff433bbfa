package handlers

import (
	"github.com/olauber7232/tournament-latest-1/services"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetUser(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := selfOrAdmin(c, id); err != nil {
		return err
	}
	user, err := h.Users.GetUser(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(services.NewUserView(user))
}

func (h *Handler) UserStats(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := selfOrAdmin(c, id); err != nil {
		return err
	}
	stats, err := h.Users.Stats(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (h *Handler) GameHistory(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := selfOrAdmin(c, id); err != nil {
		return err
	}
	history, err := h.Users.GameHistory(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(history)
}

func (h *Handler) UserTransactions(c *fiber.Ctx) error {
	id := c.Params("userId")
	if err := selfOrAdmin(c, id); err != nil {
		return err
	}
	txns, err := h.Users.Transactions(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(txns)
}

func (h *Handler) UserReferrals(c *fiber.Ctx) error {
	id := c.Params("userId")
	if err := selfOrAdmin(c, id); err != nil {
		return err
	}
	refs, err := h.Users.Referrals(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(refs)
}
