package handlers

import (
	"github.com/olauber7232/tournament-latest-1/services"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) ListGames(c *fiber.Ctx) error {
	games, err := h.Games.ListActive(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(games)
}

func (h *Handler) AdminCreateGame(c *fiber.Ctx) error {
	var req services.CreateGameRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	game, err := h.Games.CreateGame(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(game)
}
