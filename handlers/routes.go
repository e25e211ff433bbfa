package handlers

import (
	"github.com/olauber7232/tournament-latest-1/middleware"

	"github.com/gofiber/fiber/v2"
)

// Setup mounts the whole API under /api.
func Setup(app *fiber.App, h *Handler, webhookSecret string) {
	api := app.Group("/api")
	api.Get("/healthz", h.Health)

	// 🔓 Public
	api.Post("/auth/register", h.Register)
	api.Post("/auth/login", h.Login)
	api.Post("/auth/recover", h.Recover)
	api.Post("/referrals/validate", h.ValidateReferral)
	api.Get("/games", h.ListGames)
	api.Get("/tournaments", h.ListTournaments)
	api.Get("/tournaments/completed", h.ListCompletedTournaments)
	api.Get("/tournament-results/:tournamentId", h.TournamentResults)
	api.Post("/payment/webhook", middleware.WebhookSignature(webhookSecret, h.Log), h.PaymentWebhook)

	// 🔐 Authenticated
	secured := api.Group("", middleware.Auth(h.Auth))
	SetupUserRoutes(secured, h)
	SetupWalletRoutes(secured, h)
	secured.Post("/tournaments/join", h.JoinTournament)
	secured.Post("/help", h.CreateHelpRequest)
	secured.Get("/help/:userId", h.UserHelpRequests)
	secured.Get("/messages", h.UserMessages)

	// 🔒 Admin
	admin := secured.Group("/admin", middleware.RequireAdmin())
	SetupAdminRoutes(admin, h)
}

func SetupUserRoutes(r fiber.Router, h *Handler) {
	r.Get("/user/:id", h.GetUser)
	r.Get("/user/:id/stats", h.UserStats)
	r.Get("/user/:id/game-history", h.GameHistory)
	r.Get("/transactions/:userId", h.UserTransactions)
	r.Get("/referrals/:userId", h.UserReferrals)
}

func SetupWalletRoutes(r fiber.Router, h *Handler) {
	r.Post("/payment/create-order", h.CreateOrder)
	r.Post("/payment/verify", h.VerifyPayment)
	r.Post("/wallet/withdraw", h.Withdraw)
	r.Get("/withdrawal/status/:transferId", h.WithdrawalStatus)
	r.Get("/withdrawals", h.MyWithdrawals)
}

func SetupAdminRoutes(admin fiber.Router, h *Handler) {
	admin.Get("/users", h.AdminListUsers)
	admin.Get("/users/:id", h.AdminGetUser)
	admin.Post("/games", h.AdminCreateGame)
	admin.Get("/tournaments", h.AdminListTournaments)
	admin.Post("/tournaments", h.AdminCreateTournament)
	admin.Get("/tournaments/pending-results", h.AdminPendingResults)
	admin.Post("/tournaments/:id/cancel", h.AdminCancelTournament)
	admin.Post("/tournaments/:id/image", h.AdminTournamentImage)
	admin.Post("/tournament-results", h.AdminUploadResults)
	admin.Get("/transactions", h.AdminTransactions)
	admin.Post("/wallet/update", h.AdminUpdateWallet)
	admin.Post("/wallet/freeze", h.AdminFreezeWallet)
	admin.Get("/help-requests", h.AdminHelpRequests)
	admin.Put("/help-requests/:id", h.AdminUpdateHelpRequest)
	admin.Get("/messages", h.AdminMessages)
	admin.Post("/messages", h.AdminCreateMessage)
}
