package handlers

import (
	"github.com/olauber7232/tournament-latest-1/services"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) AdminListUsers(c *fiber.Ctx) error {
	users, err := h.Users.ListUsers(c.UserContext(), c.Query("q"), c.QueryInt("limit", 100))
	if err != nil {
		return err
	}
	out := make([]services.UserView, len(users))
	for i := range users {
		out[i] = services.NewUserView(&users[i])
	}
	return c.JSON(out)
}

func (h *Handler) AdminGetUser(c *fiber.Ctx) error {
	user, err := h.Users.GetUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(services.NewUserView(user))
}

func (h *Handler) AdminTransactions(c *fiber.Ctx) error {
	txns, err := h.Users.AllTransactions(c.UserContext(), c.Query("type"), c.QueryInt("limit", 200))
	if err != nil {
		return err
	}
	return c.JSON(txns)
}

func (h *Handler) AdminUpdateWallet(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id" validate:"required"`
		services.WalletTargets
	}
	if err := h.bind(c, &req); err != nil {
		return err
	}
	user, txns, err := h.Users.UpdateWallets(c.UserContext(), req.UserID, req.WalletTargets)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": services.NewUserView(user), "transactions": txns})
}

func (h *Handler) AdminFreezeWallet(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id" validate:"required"`
		Action string `json:"action" validate:"required,oneof=freeze unfreeze"`
	}
	if err := h.bind(c, &req); err != nil {
		return err
	}
	user, err := h.Users.SetFrozen(c.UserContext(), req.UserID, req.Action == "freeze")
	if err != nil {
		return err
	}
	return c.JSON(services.NewUserView(user))
}
