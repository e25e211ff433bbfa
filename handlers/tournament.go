package handlers

import (
	"github.com/olauber7232/tournament-latest-1/middleware"
	"github.com/olauber7232/tournament-latest-1/models"
	"github.com/olauber7232/tournament-latest-1/services"

	"github.com/gofiber/fiber/v2"
)

// tournamentView adds the derived free-slot count to a tournament.
type tournamentView struct {
	*models.Tournament
	AvailableSlots int `json:"available_slots"`
}

func viewTournaments(ts []models.Tournament) []tournamentView {
	out := make([]tournamentView, len(ts))
	for i := range ts {
		out[i] = tournamentView{Tournament: &ts[i], AvailableSlots: ts[i].AvailableSlots()}
	}
	return out
}

func (h *Handler) ListTournaments(c *fiber.Ctx) error {
	ts, err := h.Tournaments.ListOpen(c.UserContext(), c.Query("gameId"))
	if err != nil {
		return err
	}
	return c.JSON(viewTournaments(ts))
}

func (h *Handler) ListCompletedTournaments(c *fiber.Ctx) error {
	ts, err := h.Tournaments.ListCompleted(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(viewTournaments(ts))
}

func (h *Handler) TournamentResults(c *fiber.Ctx) error {
	rows, err := h.Results.ListResults(c.UserContext(), c.Params("tournamentId"))
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

func (h *Handler) JoinTournament(c *fiber.Ctx) error {
	var req struct {
		TournamentID string `json:"tournament_id" validate:"required"`
		UserID       string `json:"user_id"`
	}
	if err := h.bind(c, &req); err != nil {
		return err
	}
	userID := middleware.UserID(c)
	if req.UserID != "" && req.UserID != userID {
		if err := selfOrAdmin(c, req.UserID); err != nil {
			return err
		}
		userID = req.UserID
	}

	entry, err := h.Tournaments.JoinTournament(c.UserContext(), userID, req.TournamentID)
	if err != nil {
		return err
	}
	user, err := h.Users.GetUser(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"entry": entry,
		"user":  services.NewUserView(user),
	})
}

func (h *Handler) AdminListTournaments(c *fiber.Ctx) error {
	ts, err := h.Tournaments.ListAll(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(viewTournaments(ts))
}

func (h *Handler) AdminPendingResults(c *fiber.Ctx) error {
	ts, err := h.Tournaments.ListPendingResults(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(viewTournaments(ts))
}

func (h *Handler) AdminCreateTournament(c *fiber.Ctx) error {
	var req services.CreateTournamentRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	t, err := h.Tournaments.CreateTournament(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(tournamentView{Tournament: t, AvailableSlots: t.AvailableSlots()})
}

func (h *Handler) AdminCancelTournament(c *fiber.Ctx) error {
	t, refunded, err := h.Tournaments.CancelTournament(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tournament": t, "refunded_entries": refunded})
}

func (h *Handler) AdminTournamentImage(c *fiber.Ctx) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "image file is required")
	}
	t, err := h.Tournaments.SetTournamentImage(c.UserContext(), c.Params("id"), fh)
	if err != nil {
		return err
	}
	return c.JSON(t)
}

func (h *Handler) AdminUploadResults(c *fiber.Ctx) error {
	var req struct {
		Results []services.ResultInput `json:"results" validate:"required,min=1"`
	}
	if err := h.bind(c, &req); err != nil {
		return err
	}
	report, err := h.Results.Ingest(c.UserContext(), req.Results)
	if err != nil {
		return err
	}
	return c.JSON(report)
}
