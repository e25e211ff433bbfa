package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/olauber7232/tournament-latest-1/middleware"
	"github.com/olauber7232/tournament-latest-1/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (h *Handler) CreateOrder(c *fiber.Ctx) error {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := h.bind(c, &req); err != nil {
		return err
	}
	order, err := h.Payments.CreateDepositOrder(c.UserContext(), middleware.UserID(c), req.Amount)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order_id":           order.OrderID,
		"payment_session_id": order.PaymentSessionID,
		"amount":             order.Amount.StringFixed(2),
		"currency":           order.Currency,
	})
}

func (h *Handler) VerifyPayment(c *fiber.Ctx) error {
	var req struct {
		OrderID string `json:"order_id" validate:"required"`
	}
	if err := h.bind(c, &req); err != nil {
		return err
	}
	requester := middleware.UserID(c)
	if middleware.IsAdmin(c) {
		requester = ""
	}
	res, err := h.Payments.VerifyDeposit(c.UserContext(), req.OrderID, requester)
	if err != nil {
		return err
	}

	body := fiber.Map{
		"order_id":         res.Order.OrderID,
		"status":           res.GatewayStatus,
		"paid":             res.Order.Status == "paid",
		"credited":         res.Credited,
		"already_credited": res.AlreadyCredited,
	}
	if res.User != nil {
		body["user"] = services.NewUserView(res.User)
	}
	return c.JSON(body)
}

// PaymentWebhook runs behind the signature middleware.
func (h *Handler) PaymentWebhook(c *fiber.Ctx) error {
	var payload struct {
		Type string `json:"type"`
		Data struct {
			Order struct {
				OrderID     string          `json:"order_id"`
				OrderAmount decimal.Decimal `json:"order_amount"`
				OrderStatus string          `json:"order_status"`
			} `json:"order"`
			Payment struct {
				PaymentStatus string `json:"payment_status"`
			} `json:"payment"`
		} `json:"data"`
	}
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		return fmt.Errorf("%w: malformed webhook body", services.ErrValidation)
	}

	status := payload.Data.Order.OrderStatus
	if status == "" && payload.Data.Payment.PaymentStatus == "SUCCESS" {
		status = services.OrderStatusPaid
	}
	res, err := h.Payments.HandleWebhook(c.UserContext(), services.WebhookEvent{
		OrderID:     payload.Data.Order.OrderID,
		OrderStatus: status,
		OrderAmount: payload.Data.Order.OrderAmount,
	})
	if err != nil {
		h.Log.Error("payment webhook failed",
			zap.String("event", payload.Type),
			zap.String("order_id", payload.Data.Order.OrderID),
			zap.Error(err))
		return err
	}
	return c.JSON(fiber.Map{"received": true, "credited": res != nil && res.Credited})
}

func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req struct {
		Amount      decimal.Decimal      `json:"amount"`
		BankDetails services.BankDetails `json:"bank_details" validate:"required"`
	}
	if err := h.bind(c, &req); err != nil {
		return err
	}
	w, err := h.Payments.Withdraw(c.UserContext(), middleware.UserID(c), req.Amount, req.BankDetails)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(w)
}

func (h *Handler) WithdrawalStatus(c *fiber.Ctx) error {
	requester := middleware.UserID(c)
	if middleware.IsAdmin(c) {
		requester = ""
	}
	w, err := h.Payments.RefreshWithdrawal(c.UserContext(), c.Params("transferId"), requester)
	if err != nil {
		return err
	}
	return c.JSON(w)
}

func (h *Handler) MyWithdrawals(c *fiber.Ctx) error {
	list, err := h.Payments.UserWithdrawals(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(list)
}
