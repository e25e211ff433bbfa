package handlers

import (
	"github.com/olauber7232/tournament-latest-1/middleware"
	"github.com/olauber7232/tournament-latest-1/services"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) CreateHelpRequest(c *fiber.Ctx) error {
	var req services.HelpRequestInput
	if err := h.bind(c, &req); err != nil {
		return err
	}
	hr, err := h.Support.CreateHelpRequest(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(hr)
}

func (h *Handler) UserHelpRequests(c *fiber.Ctx) error {
	id := c.Params("userId")
	if err := selfOrAdmin(c, id); err != nil {
		return err
	}
	list, err := h.Support.UserHelpRequests(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *Handler) UserMessages(c *fiber.Ctx) error {
	msgs, err := h.Support.MessagesFor(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(msgs)
}

func (h *Handler) AdminHelpRequests(c *fiber.Ctx) error {
	list, err := h.Support.AllHelpRequests(c.UserContext(), c.Query("status"))
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *Handler) AdminUpdateHelpRequest(c *fiber.Ctx) error {
	var req services.HelpRequestUpdate
	if err := h.bind(c, &req); err != nil {
		return err
	}
	hr, err := h.Support.UpdateHelpRequest(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(hr)
}

func (h *Handler) AdminMessages(c *fiber.Ctx) error {
	msgs, err := h.Support.AllMessages(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(msgs)
}

func (h *Handler) AdminCreateMessage(c *fiber.Ctx) error {
	var req services.AdminMessageInput
	if err := h.bind(c, &req); err != nil {
		return err
	}
	msg, err := h.Support.CreateMessage(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}
