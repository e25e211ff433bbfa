package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/olauber7232/tournament-latest-1/metrics"
	"github.com/olauber7232/tournament-latest-1/models"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Alerter notifies operators about events that need a human.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

type PaymentService struct {
	DB      *gorm.DB
	Ledger  *Ledger
	Gateway PaymentGateway
	Locks   *KeyedMutex
	Clock   clockwork.Clock
	Log     *zap.Logger
	Alerts  Alerter
	Metrics *metrics.Metrics
}

func NewPaymentService(db *gorm.DB, ledger *Ledger, gateway PaymentGateway, locks *KeyedMutex, clock clockwork.Clock, log *zap.Logger, alerts Alerter, m *metrics.Metrics) *PaymentService {
	return &PaymentService{
		DB:      db,
		Ledger:  ledger,
		Gateway: gateway,
		Locks:   locks,
		Clock:   clock,
		Log:     log,
		Alerts:  alerts,
		Metrics: m,
	}
}

// CreateDepositOrder opens a gateway order. Nothing is credited until the order
// is verified as paid.
func (s *PaymentService) CreateDepositOrder(ctx context.Context, userID string, amount decimal.Decimal) (*models.PaymentOrder, error) {
	amount = amount.Round(2)
	if amount.LessThan(MinDeposit) {
		return nil, validationf("minimum deposit is ₹%s", MinDeposit.String())
	}

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, dbError(err, "user")
	}
	if user.IsWalletFrozen {
		return nil, ErrWalletFrozen
	}

	gw, err := s.Gateway.CreateOrder(ctx, user.ID, amount, CustomerInfo{CustomerID: user.ID, Name: user.Username})
	if err != nil {
		s.Log.Error("create deposit order failed", zap.String("user_id", userID), zap.Error(err))
		return nil, gatewayError(err)
	}

	currency := gw.Currency
	if currency == "" {
		currency = "INR"
	}
	order := &models.PaymentOrder{
		OrderID:          gw.OrderID,
		UserID:           user.ID,
		Amount:           amount,
		Currency:         currency,
		PaymentSessionID: gw.PaymentSessionID,
		Status:           models.OrderCreated,
	}
	if err := s.DB.WithContext(ctx).Create(order).Error; err != nil {
		return nil, dbError(err, "payment order")
	}

	s.Log.Info("deposit order created",
		zap.String("user_id", user.ID),
		zap.String("order_id", order.OrderID),
		zap.String("amount", amount.StringFixed(2)))
	return order, nil
}

type DepositResult struct {
	Order           *models.PaymentOrder `json:"order"`
	GatewayStatus   string               `json:"gateway_status"`
	Credited        bool                 `json:"credited"`
	AlreadyCredited bool                 `json:"already_credited"`
	Deposit         *models.Transaction  `json:"transaction,omitempty"`
	Commissions     []models.Transaction `json:"-"`
	User            *models.User         `json:"-"`
}

// VerifyDeposit asks the gateway for the order's state and, when paid, credits
// the deposit wallet and the referral chain in one transaction. An order is
// credited at most once no matter how often it is verified. requesterID, when
// set, must own the order; the webhook path passes "".
func (s *PaymentService) VerifyDeposit(ctx context.Context, orderID, requesterID string) (*DepositResult, error) {
	var order models.PaymentOrder
	if err := s.DB.WithContext(ctx).First(&order, "order_id = ?", orderID).Error; err != nil {
		return nil, dbError(err, "payment order")
	}
	if requesterID != "" && order.UserID != requesterID {
		return nil, fmt.Errorf("%w: order belongs to another user", ErrForbidden)
	}
	if order.Status == models.OrderPaid {
		return &DepositResult{Order: &order, GatewayStatus: order.GatewayStatus, AlreadyCredited: true}, nil
	}

	status, err := s.Gateway.VerifyPayment(ctx, orderID)
	if err != nil {
		s.Metrics.Deposit("gateway_error", 0)
		s.Log.Error("verify payment failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, gatewayError(err)
	}

	if status.Status != OrderStatusPaid {
		if status.Status != order.GatewayStatus {
			if err := s.DB.WithContext(ctx).Model(&order).Update("gateway_status", status.Status).Error; err != nil {
				s.Log.Warn("record gateway status failed", zap.String("order_id", orderID), zap.Error(err))
			}
			order.GatewayStatus = status.Status
		}
		s.Metrics.Deposit("unpaid", 0)
		return &DepositResult{Order: &order, GatewayStatus: status.Status}, nil
	}

	amount := status.Amount.Round(2)
	if !amount.IsPositive() {
		amount = order.Amount
	}
	if !amount.Equal(order.Amount) {
		s.Log.Warn("gateway amount differs from order amount",
			zap.String("order_id", orderID),
			zap.String("order_amount", order.Amount.StringFixed(2)),
			zap.String("paid_amount", amount.StringFixed(2)))
		s.alert(ctx, "Deposit amount mismatch",
			fmt.Sprintf("Order %s for user %s was created for ₹%s but the gateway reports ₹%s paid; crediting the paid amount.",
				orderID, order.UserID, order.Amount.StringFixed(2), amount.StringFixed(2)))
	}

	result := &DepositResult{GatewayStatus: status.Status}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.PaymentOrder
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, "id = ?", order.ID).Error; err != nil {
			return dbError(err, "payment order")
		}
		if locked.Status == models.OrderPaid {
			result.AlreadyCredited = true
			result.Order = &locked
			return nil
		}

		deposit, err := s.Ledger.Credit(tx, Posting{
			UserID:      locked.UserID,
			Wallet:      models.WalletDeposit,
			Amount:      amount,
			Type:        models.TxDeposit,
			Description: "Deposit via Cashfree",
			ReferenceID: locked.OrderID,
		})
		if err != nil {
			return err
		}

		commissions, err := s.Ledger.ReferralCommission(tx, locked.UserID, amount, "REF_"+locked.OrderID)
		if err != nil {
			return err
		}

		now := s.Clock.Now()
		res := tx.Model(&models.PaymentOrder{}).
			Where("id = ? AND status <> ?", locked.ID, models.OrderPaid).
			Updates(map[string]any{"status": models.OrderPaid, "gateway_status": status.Status, "credited_at": now})
		if res.Error != nil {
			return fmt.Errorf("mark order paid: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return conflictf("order %s was credited concurrently", locked.OrderID)
		}
		locked.Status = models.OrderPaid
		locked.GatewayStatus = status.Status
		locked.CreditedAt = &now

		result.Order = &locked
		result.Credited = true
		result.Deposit = deposit
		result.Commissions = commissions
		return nil
	})
	if err != nil {
		s.Metrics.Deposit("error", 0)
		s.Log.Error("deposit credit failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}

	if result.Credited {
		s.Metrics.Deposit("credited", amount.InexactFloat64())
		s.Log.Info("deposit credited",
			zap.String("order_id", orderID),
			zap.String("user_id", order.UserID),
			zap.String("amount", amount.StringFixed(2)),
			zap.Int("commissions", len(result.Commissions)))
	}

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", order.UserID).Error; err == nil {
		result.User = &user
	}
	return result, nil
}

// WebhookEvent is the subset of the gateway's payment webhook we act on.
type WebhookEvent struct {
	OrderID     string          `json:"order_id"`
	OrderStatus string          `json:"order_status"`
	OrderAmount decimal.Decimal `json:"order_amount"`
}

// HandleWebhook treats a signed PAID notification as a prompt to verify the
// order with the gateway; the webhook body alone never moves money.
func (s *PaymentService) HandleWebhook(ctx context.Context, ev WebhookEvent) (*DepositResult, error) {
	if ev.OrderID == "" {
		return nil, validationf("order_id is required")
	}
	if ev.OrderStatus != OrderStatusPaid {
		s.Log.Info("ignoring webhook", zap.String("order_id", ev.OrderID), zap.String("status", ev.OrderStatus))
		return nil, nil
	}
	return s.VerifyDeposit(ctx, ev.OrderID, "")
}

// Withdraw pays out from the withdrawal wallet. The user's lock is held across
// the gateway calls so two withdrawals cannot both pass the balance check, and
// the wallet is debited only after the gateway accepts the transfer.
func (s *PaymentService) Withdraw(ctx context.Context, userID string, amount decimal.Decimal, bank BankDetails) (*models.Withdrawal, error) {
	amount = amount.Round(2)
	if amount.LessThan(MinWithdrawal) {
		return nil, validationf("minimum withdrawal is ₹%s", MinWithdrawal.String())
	}

	unlock := s.Locks.Lock("user:" + userID)
	defer unlock()

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, dbError(err, "user")
	}
	if user.IsWalletFrozen {
		return nil, ErrWalletFrozen
	}
	if user.WithdrawalWallet.LessThan(amount) {
		s.Metrics.Withdrawal("insufficient_funds")
		return nil, fmt.Errorf("%w: withdrawal wallet holds %s", ErrInsufficientFunds, user.WithdrawalWallet.StringFixed(2))
	}

	today, err := s.withdrawnToday(ctx, userID)
	if err != nil {
		return nil, err
	}
	if today.Add(amount).GreaterThan(DailyWithdrawalLimit) {
		s.Metrics.Withdrawal("daily_limit")
		return nil, validationf("daily withdrawal limit of ₹%s exceeded (already withdrawn ₹%s today)",
			DailyWithdrawalLimit.String(), today.StringFixed(2))
	}

	beneID, err := s.Gateway.AddBeneficiary(ctx, userID, bank)
	if err != nil {
		s.Metrics.Withdrawal("gateway_error")
		s.Log.Error("add beneficiary failed", zap.String("user_id", userID), zap.Error(err))
		return nil, gatewayError(err)
	}
	transfer, err := s.Gateway.RequestWithdraw(ctx, userID, amount, beneID)
	if err != nil {
		s.Metrics.Withdrawal("gateway_error")
		s.Log.Error("request withdraw failed", zap.String("user_id", userID), zap.Error(err))
		return nil, gatewayError(err)
	}
	if st := withdrawalStatusFromGateway(transfer.Status); st == models.WithdrawalFailed || st == models.WithdrawalReversed {
		s.Metrics.Withdrawal("gateway_error")
		s.Log.Error("gateway did not accept withdrawal",
			zap.String("user_id", userID),
			zap.String("transfer_id", transfer.TransferID),
			zap.String("gateway_status", transfer.Status))
		return nil, gatewayError(fmt.Errorf("transfer %s: %s", transfer.TransferID, transfer.Status))
	}

	w := &models.Withdrawal{
		TransferID:    transfer.TransferID,
		UserID:        userID,
		Amount:        amount,
		BeneID:        beneID,
		AccountHolder: bank.AccountHolder,
		AccountMasked: bank.Masked(),
		IFSC:          bank.IFSC,
		Status:        withdrawalStatusFromGateway(transfer.Status),
		GatewayStatus: transfer.Status,
	}
	w.CreatedAt = s.Clock.Now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.Ledger.Debit(tx, Posting{
			UserID:      userID,
			Wallet:      models.WalletWithdrawal,
			Amount:      amount,
			Type:        models.TxWithdrawal,
			Description: fmt.Sprintf("Withdrawal to bank account %s", w.AccountMasked),
			ReferenceID: transfer.TransferID,
		}); err != nil {
			return err
		}
		return tx.Create(w).Error
	})
	if err != nil {
		// The gateway already accepted the transfer; this needs manual reconciliation.
		s.Metrics.Withdrawal("ledger_error")
		s.Log.Error("withdrawal accepted by gateway but ledger debit failed",
			zap.String("user_id", userID),
			zap.String("transfer_id", transfer.TransferID),
			zap.Error(err))
		s.alert(ctx, "Withdrawal needs reconciliation",
			fmt.Sprintf("Transfer %s for user %s (₹%s) was accepted by the gateway but the wallet debit failed: %v",
				transfer.TransferID, userID, amount.StringFixed(2), err))
		return nil, err
	}

	s.Metrics.Withdrawal("ok")
	s.Log.Info("withdrawal submitted",
		zap.String("user_id", userID),
		zap.String("transfer_id", w.TransferID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("status", string(w.Status)))
	return w, nil
}

// withdrawnToday sums today's (UTC) withdrawals that still count against the limit.
func (s *PaymentService) withdrawnToday(ctx context.Context, userID string) (decimal.Decimal, error) {
	now := s.Clock.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var recent []models.Withdrawal
	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []models.WithdrawalStatus{models.WithdrawalPending, models.WithdrawalSuccess}).
		Order("created_at DESC").
		Limit(200).
		Find(&recent).Error; err != nil {
		return decimal.Zero, fmt.Errorf("load recent withdrawals: %w", err)
	}

	total := decimal.Zero
	for _, w := range recent {
		if !w.CreatedAt.Before(startOfDay) {
			total = total.Add(w.Amount)
		}
	}
	return total, nil
}

// RefreshWithdrawal polls the gateway for a pending transfer. A failed or
// reversed transfer is refunded to the withdrawal wallet with a compensating
// Transaction.
func (s *PaymentService) RefreshWithdrawal(ctx context.Context, transferID, requesterID string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := s.DB.WithContext(ctx).First(&w, "transfer_id = ?", transferID).Error; err != nil {
		return nil, dbError(err, "withdrawal")
	}
	if requesterID != "" && w.UserID != requesterID {
		return nil, fmt.Errorf("%w: withdrawal belongs to another user", ErrForbidden)
	}
	if w.Status.Terminal() {
		return &w, nil
	}

	unlock := s.Locks.Lock("user:" + w.UserID)
	defer unlock()

	gwStatus, err := s.Gateway.GetWithdrawStatus(ctx, transferID)
	if err != nil {
		return nil, gatewayError(err)
	}
	next := withdrawalStatusFromGateway(gwStatus)
	now := s.Clock.Now()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&w, "id = ?", w.ID).Error; err != nil {
			return dbError(err, "withdrawal")
		}
		if w.Status.Terminal() {
			return nil
		}

		updates := map[string]any{"gateway_status": gwStatus, "last_checked_at": now, "status": next}
		if next == models.WithdrawalFailed || next == models.WithdrawalReversed {
			if _, err := s.Ledger.Credit(tx, Posting{
				UserID:      w.UserID,
				Wallet:      models.WalletWithdrawal,
				Amount:      w.Amount,
				Type:        models.TxWithdrawal,
				Description: fmt.Sprintf("Withdrawal %s - refunded", gwStatusLabel(gwStatus)),
				ReferenceID: "WREF_" + w.TransferID,
			}); err != nil {
				return err
			}
			updates["refunded_at"] = now
		}
		if err := tx.Model(&w).Updates(updates).Error; err != nil {
			return fmt.Errorf("update withdrawal: %w", err)
		}
		w.Status = next
		w.GatewayStatus = gwStatus
		w.LastCheckedAt = &now
		return nil
	})
	if err != nil {
		s.Log.Error("refresh withdrawal failed", zap.String("transfer_id", transferID), zap.Error(err))
		return nil, err
	}

	if next == models.WithdrawalFailed || next == models.WithdrawalReversed {
		s.Metrics.Withdrawal("refunded")
		s.alert(ctx, "Withdrawal refunded",
			fmt.Sprintf("Transfer %s for user %s (₹%s) ended as %s and was refunded to the withdrawal wallet.",
				w.TransferID, w.UserID, w.Amount.StringFixed(2), gwStatus))
	}
	return &w, nil
}

// PollPendingWithdrawals refreshes every pending transfer and reports how many
// changed state. Individual failures are logged and skipped.
func (s *PaymentService) PollPendingWithdrawals(ctx context.Context) (int, error) {
	var pending []models.Withdrawal
	if err := s.DB.WithContext(ctx).
		Where("status = ?", models.WithdrawalPending).
		Order("created_at ASC").
		Limit(100).
		Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("load pending withdrawals: %w", err)
	}

	changed := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}
		w, err := s.RefreshWithdrawal(ctx, p.TransferID, "")
		if err != nil {
			continue
		}
		if w.Status != p.Status {
			changed++
		}
	}
	return changed, nil
}

func (s *PaymentService) UserWithdrawals(ctx context.Context, userID string) ([]models.Withdrawal, error) {
	var out []models.Withdrawal
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	return out, nil
}

func (s *PaymentService) alert(ctx context.Context, subject, body string) {
	if s.Alerts == nil {
		return
	}
	if err := s.Alerts.Alert(ctx, subject, body); err != nil {
		s.Log.Warn("alert delivery failed", zap.String("subject", subject), zap.Error(err))
	}
}

func withdrawalStatusFromGateway(status string) models.WithdrawalStatus {
	switch status {
	case TransferSuccess:
		return models.WithdrawalSuccess
	case TransferFailed, TransferRejected:
		return models.WithdrawalFailed
	case TransferReversed:
		return models.WithdrawalReversed
	}
	return models.WithdrawalPending
}

func gwStatusLabel(status string) string {
	if status == TransferReversed {
		return "reversed"
	}
	return "failed"
}

// gatewayError makes sure gateway failures carry ErrGateway for the API layer.
func gatewayError(err error) error {
	if errors.Is(err, ErrGateway) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrGateway, err)
}
