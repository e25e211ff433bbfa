package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/olauber7232/tournament-latest-1/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu          sync.Mutex
	orders      map[string]*OrderStatus
	transfers   map[string]string
	seq         int
	failOrder   error
	failVerify  error
	failBene    error
	failPayout  error
	payoutState string
	verifyCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orders: map[string]*OrderStatus{}, transfers: map[string]string{}, payoutState: TransferPending}
}

func (g *fakeGateway) CreateOrder(_ context.Context, _ string, amount decimal.Decimal, _ CustomerInfo) (*GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failOrder != nil {
		return nil, g.failOrder
	}
	g.seq++
	id := fmt.Sprintf("KIRDA_%d", g.seq)
	g.orders[id] = &OrderStatus{OrderID: id, Status: OrderStatusActive, Amount: amount}
	return &GatewayOrder{OrderID: id, PaymentSessionID: "session_" + id, Amount: amount, Currency: "INR"}, nil
}

func (g *fakeGateway) VerifyPayment(_ context.Context, orderID string) (*OrderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.failVerify != nil {
		return nil, g.failVerify
	}
	o, ok := g.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown order", ErrGateway)
	}
	cp := *o
	return &cp, nil
}

func (g *fakeGateway) AddBeneficiary(context.Context, string, BankDetails) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failBene != nil {
		return "", g.failBene
	}
	g.seq++
	return fmt.Sprintf("BENE_%d", g.seq), nil
}

func (g *fakeGateway) RequestWithdraw(context.Context, string, decimal.Decimal, string) (*Transfer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failPayout != nil {
		return nil, g.failPayout
	}
	g.seq++
	id := fmt.Sprintf("WITHDRAW_%d", g.seq)
	g.transfers[id] = g.payoutState
	return &Transfer{TransferID: id, Status: g.payoutState}, nil
}

func (g *fakeGateway) GetWithdrawStatus(_ context.Context, transferID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.transfers[transferID]
	if !ok {
		return "", fmt.Errorf("%w: unknown transfer", ErrGateway)
	}
	return s, nil
}

func (g *fakeGateway) markPaid(orderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders[orderID].Status = OrderStatusPaid
}

func (g *fakeGateway) setTransfer(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transfers[id] = status
}

type recordingAlerter struct {
	mu       sync.Mutex
	subjects []string
}

func (a *recordingAlerter) Alert(_ context.Context, subject, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subjects = append(a.subjects, subject)
	return nil
}

type paymentEnv struct {
	*testEnv
	Gateway  *fakeGateway
	Alerts   *recordingAlerter
	Payments *PaymentService
}

func newPaymentEnv(t *testing.T) *paymentEnv {
	env := newTestEnv(t)
	gw := newFakeGateway()
	alerts := &recordingAlerter{}
	return &paymentEnv{
		testEnv:  env,
		Gateway:  gw,
		Alerts:   alerts,
		Payments: NewPaymentService(env.DB, env.Ledger, gw, NewKeyedMutex(), env.Clock, zaptest.NewLogger(t), alerts, nil),
	}
}

var testBank = BankDetails{AccountHolder: "Test Player", AccountNumber: "123456789012", IFSC: "HDFC0001234"}

func TestDepositCreditsExactAmountOnce(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()
	u := createUser(t, env.DB, "payer")

	order, err := env.Payments.CreateDepositOrder(ctx, u.ID, dec("500"))
	require.NoError(t, err)
	assert.Equal(t, models.OrderCreated, order.Status)
	assertDecimal(t, "0", reloadUser(t, env.DB, u.ID).DepositWallet, "creating an order credits nothing")

	res, err := env.Payments.VerifyDeposit(ctx, order.OrderID, u.ID)
	require.NoError(t, err)
	assert.False(t, res.Credited, "unpaid order")
	assertDecimal(t, "0", reloadUser(t, env.DB, u.ID).DepositWallet)

	env.Gateway.markPaid(order.OrderID)
	res, err = env.Payments.VerifyDeposit(ctx, order.OrderID, u.ID)
	require.NoError(t, err)
	assert.True(t, res.Credited)
	assertDecimal(t, "500", reloadUser(t, env.DB, u.ID).DepositWallet)

	res, err = env.Payments.VerifyDeposit(ctx, order.OrderID, u.ID)
	require.NoError(t, err)
	assert.True(t, res.AlreadyCredited)
	_, err = env.Payments.HandleWebhook(ctx, WebhookEvent{OrderID: order.OrderID, OrderStatus: OrderStatusPaid})
	require.NoError(t, err)

	assertDecimal(t, "500", reloadUser(t, env.DB, u.ID).DepositWallet)
	txns := userTransactions(t, env.DB, u.ID)
	require.Len(t, txns, 1)
	assert.Equal(t, order.OrderID, *txns[0].ReferenceID)
	assert.Equal(t, models.TxDeposit, txns[0].Type)
}

func TestDepositAmountMismatchRaisesAlert(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()
	u := createUser(t, env.DB, "payer")

	order, err := env.Payments.CreateDepositOrder(ctx, u.ID, dec("500"))
	require.NoError(t, err)
	env.Gateway.markPaid(order.OrderID)
	env.Gateway.orders[order.OrderID].Amount = dec("450")

	res, err := env.Payments.VerifyDeposit(ctx, order.OrderID, u.ID)
	require.NoError(t, err)
	assert.True(t, res.Credited)
	assertDecimal(t, "450", reloadUser(t, env.DB, u.ID).DepositWallet)
	assert.Equal(t, []string{"Deposit amount mismatch"}, env.Alerts.subjects)
}

func TestDepositPaysReferralChain(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()
	upline := createUser(t, env.DB, "upline")
	direct := createUser(t, env.DB, "direct", referredBy(upline.ReferralCode))
	payer := createUser(t, env.DB, "payer", referredBy(direct.ReferralCode))

	order, err := env.Payments.CreateDepositOrder(ctx, payer.ID, dec("1000"))
	require.NoError(t, err)
	env.Gateway.markPaid(order.OrderID)
	_, err = env.Payments.VerifyDeposit(ctx, order.OrderID, "")
	require.NoError(t, err)

	assertDecimal(t, "1000", reloadUser(t, env.DB, payer.ID).DepositWallet)
	assertDecimal(t, "70", reloadUser(t, env.DB, direct.ID).ReferralWallet)
	assertDecimal(t, "20", reloadUser(t, env.DB, upline.ID).ReferralWallet)

	var refs []models.Transaction
	require.NoError(t, env.DB.Where("reference_id = ?", "REF_"+order.OrderID).Find(&refs).Error)
	assert.Len(t, refs, 1)
}

func TestDepositConcurrentVerifyCreditsOnce(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()
	u := createUser(t, env.DB, "payer")
	order, err := env.Payments.CreateDepositOrder(ctx, u.ID, dec("100"))
	require.NoError(t, err)
	env.Gateway.markPaid(order.OrderID)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.Payments.VerifyDeposit(ctx, order.OrderID, "")
		}()
	}
	wg.Wait()

	assertDecimal(t, "100", reloadUser(t, env.DB, u.ID).DepositWallet)
	assert.Len(t, userTransactions(t, env.DB, u.ID), 1)
}

func TestDepositValidation(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()
	u := createUser(t, env.DB, "payer")
	icy := createUser(t, env.DB, "icy", frozen())

	_, err := env.Payments.CreateDepositOrder(ctx, u.ID, dec("19.99"))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.Payments.CreateDepositOrder(ctx, icy.ID, dec("100"))
	assert.ErrorIs(t, err, ErrWalletFrozen)
	_, err = env.Payments.CreateDepositOrder(ctx, "ghost", dec("100"))
	assert.ErrorIs(t, err, ErrNotFound)

	env.Gateway.failOrder = errors.New("connection reset")
	_, err = env.Payments.CreateDepositOrder(ctx, u.ID, dec("100"))
	assert.ErrorIs(t, err, ErrGateway)

	env.Gateway.failOrder = nil
	order, err := env.Payments.CreateDepositOrder(ctx, u.ID, dec("100"))
	require.NoError(t, err)
	other := createUser(t, env.DB, "other")
	_, err = env.Payments.VerifyDeposit(ctx, order.OrderID, other.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestWithdrawDebitsAfterGatewayAccepts(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()
	u := createUser(t, env.DB, "winner", withWallets("0", "1000", "0"))

	w, err := env.Payments.Withdraw(ctx, u.ID, dec("300"), testBank)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalPending, w.Status)
	assert.Equal(t, "********9012", w.AccountMasked)
	assertDecimal(t, "700", reloadUser(t, env.DB, u.ID).WithdrawalWallet)

	txns := userTransactions(t, env.DB, u.ID)
	require.Len(t, txns, 1)
	assertDecimal(t, "-300", txns[0].Amount)
	assert.Equal(t, w.TransferID, *txns[0].ReferenceID)
	assert.Equal(t, "Withdrawal to bank account ********9012", txns[0].Description)
}

func TestWithdrawGatewayFailureLeavesBalance(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()
	u := createUser(t, env.DB, "winner", withWallets("0", "1000", "0"))

	env.Gateway.failPayout = fmt.Errorf("%w: request transfer: insufficient balance in payout account", ErrGateway)
	_, err := env.Payments.Withdraw(ctx, u.ID, dec("300"), testBank)
	require.ErrorIs(t, err, ErrGateway)

	env.Gateway.failPayout = nil
	env.Gateway.failBene = errors.New("timeout")
	_, err = env.Payments.Withdraw(ctx, u.ID, dec("300"), testBank)
	require.ErrorIs(t, err, ErrGateway)

	assertDecimal(t, "1000", reloadUser(t, env.DB, u.ID).WithdrawalWallet)
	assert.Empty(t, userTransactions(t, env.DB, u.ID))
}

func TestWithdrawRejectedTransferLeavesBalance(t *testing.T) {
	for _, state := range []string{TransferFailed, TransferRejected, TransferReversed} {
		t.Run(state, func(t *testing.T) {
			env := newPaymentEnv(t)
			ctx := context.Background()
			u := createUser(t, env.DB, "winner", withWallets("0", "500", "0"))

			env.Gateway.payoutState = state
			_, err := env.Payments.Withdraw(ctx, u.ID, dec("200"), testBank)
			require.ErrorIs(t, err, ErrGateway)

			assertDecimal(t, "500", reloadUser(t, env.DB, u.ID).WithdrawalWallet)
			assert.Empty(t, userTransactions(t, env.DB, u.ID))
			var stored int64
			require.NoError(t, env.DB.Model(&models.Withdrawal{}).Count(&stored).Error)
			assert.Zero(t, stored)
		})
	}
}

func TestWithdrawRules(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()
	u := createUser(t, env.DB, "winner", withWallets("5000", "60000", "0"))

	_, err := env.Payments.Withdraw(ctx, u.ID, dec("99"), testBank)
	assert.ErrorIs(t, err, ErrValidation, "below minimum")

	poor := createUser(t, env.DB, "poor", withWallets("5000", "150", "5000"))
	_, err = env.Payments.Withdraw(ctx, poor.ID, dec("200"), testBank)
	assert.ErrorIs(t, err, ErrInsufficientFunds, "only the withdrawal wallet counts")

	icy := createUser(t, env.DB, "icy", withWallets("0", "1000", "0"), frozen())
	_, err = env.Payments.Withdraw(ctx, icy.ID, dec("200"), testBank)
	assert.ErrorIs(t, err, ErrWalletFrozen)

	_, err = env.Payments.Withdraw(ctx, u.ID, dec("30000"), testBank)
	require.NoError(t, err)
	_, err = env.Payments.Withdraw(ctx, u.ID, dec("20000"), testBank)
	require.NoError(t, err)
	_, err = env.Payments.Withdraw(ctx, u.ID, dec("100"), testBank)
	assert.ErrorIs(t, err, ErrValidation, "daily limit reached")

	env.Clock.Advance(24 * time.Hour)
	_, err = env.Payments.Withdraw(ctx, u.ID, dec("100"), testBank)
	assert.NoError(t, err, "limit resets the next day")

	assertDecimal(t, "9900", reloadUser(t, env.DB, u.ID).WithdrawalWallet)
}

func TestRefreshWithdrawalRefundsFailedTransfer(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()
	u := createUser(t, env.DB, "winner", withWallets("0", "1000", "0"))

	w, err := env.Payments.Withdraw(ctx, u.ID, dec("400"), testBank)
	require.NoError(t, err)

	got, err := env.Payments.RefreshWithdrawal(ctx, w.TransferID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalPending, got.Status)

	env.Gateway.setTransfer(w.TransferID, TransferFailed)
	changed, err := env.Payments.PollPendingWithdrawals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	assertDecimal(t, "1000", reloadUser(t, env.DB, u.ID).WithdrawalWallet)
	var refund []models.Transaction
	require.NoError(t, env.DB.Where("reference_id = ?", "WREF_"+w.TransferID).Find(&refund).Error)
	require.Len(t, refund, 1)
	assertDecimal(t, "400", refund[0].Amount)
	assert.Equal(t, models.TxWithdrawal, refund[0].Type)
	assert.Equal(t, []string{"Withdrawal refunded"}, env.Alerts.subjects)

	got, err = env.Payments.RefreshWithdrawal(ctx, w.TransferID, "")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalFailed, got.Status)
	assertDecimal(t, "1000", reloadUser(t, env.DB, u.ID).WithdrawalWallet, "terminal transfers are refunded once")
}

func TestRefreshWithdrawalSuccess(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()
	u := createUser(t, env.DB, "winner", withWallets("0", "1000", "0"))
	w, err := env.Payments.Withdraw(ctx, u.ID, dec("400"), testBank)
	require.NoError(t, err)

	other := createUser(t, env.DB, "other")
	_, err = env.Payments.RefreshWithdrawal(ctx, w.TransferID, other.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	env.Gateway.setTransfer(w.TransferID, TransferSuccess)
	got, err := env.Payments.RefreshWithdrawal(ctx, w.TransferID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalSuccess, got.Status)
	assertDecimal(t, "600", reloadUser(t, env.DB, u.ID).WithdrawalWallet)
	assert.Empty(t, env.Alerts.subjects)
}

func TestWebhookIgnoresUnpaidEvents(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()

	res, err := env.Payments.HandleWebhook(ctx, WebhookEvent{OrderID: "KIRDA_1", OrderStatus: "ACTIVE"})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Zero(t, env.Gateway.verifyCalls)

	_, err = env.Payments.HandleWebhook(ctx, WebhookEvent{OrderStatus: OrderStatusPaid})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVerifyUnpaidLogsStatusWriteFailure(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()
	u := createUser(t, env.DB, "payer")

	core, logs := observer.New(zap.WarnLevel)
	env.Payments.Log = zap.New(core)

	order, err := env.Payments.CreateDepositOrder(ctx, u.ID, dec("500"))
	require.NoError(t, err)
	env.Gateway.orders[order.OrderID].Status = "EXPIRED"

	require.NoError(t, env.DB.Callback().Update().Before("gorm:update").Register("test:fail_update", func(db *gorm.DB) {
		_ = db.AddError(errors.New("disk full"))
	}))

	res, err := env.Payments.VerifyDeposit(ctx, order.OrderID, u.ID)
	require.NoError(t, err)
	assert.False(t, res.Credited)
	assert.Equal(t, "EXPIRED", res.GatewayStatus)
	assert.Equal(t, 1, logs.FilterMessage("record gateway status failed").Len())
}
